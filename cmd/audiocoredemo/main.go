// Command audiocoredemo plays a single file through the engine and a real
// PortAudio output device, to exercise NodeGraph, ResourceManager and Engine
// end to end outside of unit tests.
package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/mackron/miniaudio-sub001/internal/datasource"
	"github.com/mackron/miniaudio-sub001/internal/engine"
)

func main() {
	rate := flag.Int("rate", 48000, "output sample rate")
	channels := flag.Int("channels", 2, "output channel count")
	period := flag.Int("period", 1024, "graph period size in frames")
	stream := flag.Bool("stream", false, "open the file as a streaming data source instead of fully decoding it up front")
	flag.Parse()

	if flag.NArg() != 1 {
		log.Fatalf("usage: audiocoredemo [flags] <file>")
	}
	path := flag.Arg(0)

	if err := portaudio.Initialize(); err != nil {
		log.Fatalf("[audiocoredemo] portaudio init: %v", err)
	}
	defer portaudio.Terminate()

	e := engine.New(engine.Options{
		Channels:   *channels,
		Rate:       uint32(*rate),
		PeriodSize: uint64(*period),
	})
	defer e.Close()

	var flags engine.DataSourceFlags
	if *stream {
		flags |= engine.FlagStream
	}
	snd, res := e.CreateSoundFromFile(path, flags, nil)
	if res != datasource.Success {
		log.Fatalf("[audiocoredemo] create sound: %v", res)
	}

	outDev, err := portaudio.DefaultOutputDevice()
	if err != nil {
		log.Fatalf("[audiocoredemo] default output device: %v", err)
	}

	buf := make([]float32, *period*(*channels))
	params := portaudio.StreamParameters{
		Output: portaudio.StreamDeviceParameters{
			Device:   outDev,
			Channels: *channels,
			Latency:  outDev.DefaultLowOutputLatency,
		},
		SampleRate:      float64(*rate),
		FramesPerBuffer: *period,
	}
	out, err := portaudio.OpenStream(params, buf)
	if err != nil {
		log.Fatalf("[audiocoredemo] open output stream: %v", err)
	}
	defer out.Close()

	if err := out.Start(); err != nil {
		log.Fatalf("[audiocoredemo] start output stream: %v", err)
	}
	defer out.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)

	log.Printf("[audiocoredemo] playing %s (rate=%d channels=%d period=%d)", path, *rate, *channels, *period)
	start := time.Now()
	for !snd.AtEnd() {
		select {
		case <-sigCh:
			log.Println("[audiocoredemo] interrupted")
			return
		default:
		}

		n, res := e.ReadPCMFrames(buf, uint64(*period))
		if res.IsFailure() && n == 0 {
			break
		}
		if err := out.Write(); err != nil {
			log.Fatalf("[audiocoredemo] write: %v", err)
		}
	}
	log.Printf("[audiocoredemo] done in %s", time.Since(start))
}
