package graph

import "github.com/mackron/miniaudio-sub001/internal/datasource"

// Read pulls exactly n frames into out (sized n*channels), mixing every
// attached upstream output bus's contribution. Short reads from any
// upstream are silenced so the sum is always fully defined; Read therefore
// always reports n frames produced ("silence counts as read").
func (ib *InputBus) Read(tick uint32, out []float32, n uint64, globalTime uint64) (uint64, datasource.Result) {
	ch := uint64(ib.channels)
	want := n * ch
	if uint64(len(out)) < want {
		return 0, datasource.InvalidArgs
	}

	var tmp []float32
	first := true

	for bus := ib.first(); bus != nil; {
		owner := bus.owner
		rc := owner.readCounter.Load()
		if rc > tick {
			// owner is currently mid-Process higher up this same call
			// stack: a cycle. Skip it silently and move on.
			bus = ib.next(bus)
			continue
		}
		owner.readCounter.Store(tick + 1)

		var dst []float32
		if first {
			dst = out[:want]
		} else {
			if tmp == nil {
				tmp = make([]float32, want)
			}
			dst = tmp
		}

		produced, _ := owner.readOutputBus(tick, bus.busIndex, dst, n, globalTime)
		owner.readCounter.Store(tick) // done: sibling bus reads this tick are no longer a cycle

		vol := bus.Volume()
		scaleAndSilence(dst, produced*ch, vol, want)

		if !first {
			addInto(out[:want], dst)
		}
		first = false

		bus = ib.next(bus)
	}

	if first {
		for i := range out[:want] {
			out[i] = 0
		}
	}
	return n, datasource.Success
}

func scaleAndSilence(buf []float32, validSamples uint64, vol float32, total uint64) {
	for i := uint64(0); i < validSamples; i++ {
		buf[i] *= vol
	}
	for i := validSamples; i < total; i++ {
		buf[i] = 0
	}
}

func addInto(dst, src []float32) {
	for i := range dst {
		dst[i] += src[i]
	}
}

// readOutputBus implements the per-node cache protocol: a node with 0
// inputs and 1 output is Process-ed directly every call (nothing to
// memoize); any other node runs Process at most once per graph tick no
// matter how many of its output buses are read this tick, serving repeat
// reads from its cache.
func (n *Node) readOutputBus(tick uint32, busIdx int, outBuf []float32, framesReq uint64, globalTime uint64) (uint64, datasource.Result) {
	ob := n.outputBuses[busIdx]
	ch := uint64(ob.channels)

	if n.isFastPath() {
		state, live, leading := n.stateByTimeRange(globalTime, framesReq)
		if state == Stopped {
			return 0, datasource.Success
		}
		for i := uint64(0); i < leading*ch; i++ {
			outBuf[i] = 0
		}
		_, produced, res := n.proc.Process(nil, 0, [][]float32{outBuf[leading*ch : leading*ch+live*ch]}, live, globalTime+leading)
		n.localTime.Add(leading + produced)
		return leading + produced, res
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if n.lastProcessedTick != tick {
		state, live, leading := n.stateByTimeRange(globalTime, framesReq)
		if leading > n.cacheCapFrames {
			leading = n.cacheCapFrames
		}

		if state == Stopped {
			n.cachedFrameCountOut = 0
			n.cachedLeadingOut = 0
			n.lastProcessedTick = tick
		} else {
			if n.cachedFrameCountIn == 0 {
				m := framesReq
				if m > n.cacheCapFrames {
					m = n.cacheCapFrames
				}
				for i, ib := range n.inputBuses {
					buf := n.cachedIn[i][:m*uint64(ib.channels)]
					got, _ := ib.Read(tick, buf, m, globalTime)
					if got < m {
						for j := got * uint64(ib.channels); j < m*uint64(ib.channels); j++ {
							buf[j] = 0
						}
					}
				}
				n.cachedFrameCountIn = m
			}

			inArg := make([][]float32, len(n.inputBuses))
			for i, ib := range n.inputBuses {
				inArg[i] = n.cachedIn[i][:n.cachedFrameCountIn*uint64(ib.channels)]
			}

			outReq := live
			if maxLive := n.cacheCapFrames - leading; outReq > maxLive {
				outReq = maxLive
			}

			outArg := make([][]float32, len(n.outputBuses))
			for i, obus := range n.outputBuses {
				lch := uint64(obus.channels)
				if i == busIdx {
					for j := uint64(0); j < leading*lch; j++ {
						outBuf[j] = 0
					}
					outArg[i] = outBuf[leading*lch : leading*lch+outReq*lch] // write straight into the caller's buffer instead of copying from cache
					continue
				}
				for j := uint64(0); j < leading*lch; j++ {
					n.cachedOut[i][j] = 0
				}
				outArg[i] = n.cachedOut[i][leading*lch : leading*lch+outReq*lch]
			}

			consumed, produced, res := n.proc.Process(inArg, n.cachedFrameCountIn, outArg, outReq, globalTime+leading)
			n.consumedFrameCountIn += consumed
			n.cachedFrameCountIn -= consumed
			n.cachedFrameCountOut = produced
			n.cachedLeadingOut = leading
			n.lastProcessedTick = tick
			if res != datasource.Success {
				return 0, res
			}
		}
	} else {
		got := n.cachedFrameCountOut
		leading := n.cachedLeadingOut
		for j := uint64(0); j < leading*ch; j++ {
			outBuf[j] = 0
		}
		copy(outBuf[leading*ch:(leading+got)*ch], n.cachedOut[busIdx][leading*ch:(leading+got)*ch])
	}

	n.localTime.Add(n.cachedFrameCountOut)
	return n.cachedLeadingOut + n.cachedFrameCountOut, datasource.Success
}
