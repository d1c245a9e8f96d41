package filter

import "math"

// RBJ-cookbook coefficient derivations, as published in Robert
// Bristow-Johnson's widely used audio-EQ cookbook formulas.

func normalize(b0, b1, b2, a0, a1, a2 float64) Coeffs {
	return Coeffs{
		B0: b0 / a0, B1: b1 / a0, B2: b2 / a0,
		A1: a1 / a0, A2: a2 / a0,
	}
}

// LowpassCoeffs computes a 2nd-order Butterworth-ish low-pass at cutoff Hz.
func LowpassCoeffs(sampleRate, cutoff, q float64) Coeffs {
	w0 := 2 * math.Pi * cutoff / sampleRate
	cosw0, alpha := cosAlpha(w0, q)
	b0 := (1 - cosw0) / 2
	b1 := 1 - cosw0
	b2 := (1 - cosw0) / 2
	a0 := 1 + alpha
	a1 := -2 * cosw0
	a2 := 1 - alpha
	return normalize(b0, b1, b2, a0, a1, a2)
}

// HighpassCoeffs computes a 2nd-order high-pass at cutoff Hz.
func HighpassCoeffs(sampleRate, cutoff, q float64) Coeffs {
	w0 := 2 * math.Pi * cutoff / sampleRate
	cosw0, alpha := cosAlpha(w0, q)
	b0 := (1 + cosw0) / 2
	b1 := -(1 + cosw0)
	b2 := (1 + cosw0) / 2
	a0 := 1 + alpha
	a1 := -2 * cosw0
	a2 := 1 - alpha
	return normalize(b0, b1, b2, a0, a1, a2)
}

// BandpassCoeffs computes a constant-0dB-peak-gain band-pass centered at freq Hz.
func BandpassCoeffs(sampleRate, freq, q float64) Coeffs {
	w0 := 2 * math.Pi * freq / sampleRate
	cosw0, alpha := cosAlpha(w0, q)
	b0 := alpha
	b1 := 0.0
	b2 := -alpha
	a0 := 1 + alpha
	a1 := -2 * cosw0
	a2 := 1 - alpha
	return normalize(b0, b1, b2, a0, a1, a2)
}

// NotchCoeffs computes a band-reject notch centered at freq Hz.
func NotchCoeffs(sampleRate, freq, q float64) Coeffs {
	w0 := 2 * math.Pi * freq / sampleRate
	cosw0, alpha := cosAlpha(w0, q)
	b0 := 1.0
	b1 := -2 * cosw0
	b2 := 1.0
	a0 := 1 + alpha
	a1 := -2 * cosw0
	a2 := 1 - alpha
	return normalize(b0, b1, b2, a0, a1, a2)
}

// PeakCoeffs computes a parametric peaking EQ boost/cut of gainDB at freq Hz.
func PeakCoeffs(sampleRate, freq, q, gainDB float64) Coeffs {
	w0 := 2 * math.Pi * freq / sampleRate
	cosw0, alpha := cosAlpha(w0, q)
	a := math.Pow(10, gainDB/40)
	b0 := 1 + alpha*a
	b1 := -2 * cosw0
	b2 := 1 - alpha*a
	a0 := 1 + alpha/a
	a1 := -2 * cosw0
	a2 := 1 - alpha/a
	return normalize(b0, b1, b2, a0, a1, a2)
}

// LowShelfCoeffs computes a low-shelf boost/cut of gainDB, shelf midpoint at
// freq Hz with shelf slope S (1.0 is the cookbook default, matching Q's role).
func LowShelfCoeffs(sampleRate, freq, shelfSlope, gainDB float64) Coeffs {
	w0 := 2 * math.Pi * freq / sampleRate
	cosw0, sinw0 := math.Cos(w0), math.Sin(w0)
	a := math.Pow(10, gainDB/40)
	alpha := sinw0 / 2 * math.Sqrt((a+1/a)*(1/shelfSlope-1)+2)
	sqrtA := math.Sqrt(a)

	b0 := a * ((a + 1) - (a-1)*cosw0 + 2*sqrtA*alpha)
	b1 := 2 * a * ((a - 1) - (a+1)*cosw0)
	b2 := a * ((a + 1) - (a-1)*cosw0 - 2*sqrtA*alpha)
	a0 := (a + 1) + (a-1)*cosw0 + 2*sqrtA*alpha
	a1 := -2 * ((a - 1) + (a+1)*cosw0)
	a2 := (a + 1) + (a-1)*cosw0 - 2*sqrtA*alpha
	return normalize(b0, b1, b2, a0, a1, a2)
}

// HighShelfCoeffs computes a high-shelf boost/cut of gainDB, shelf midpoint
// at freq Hz with shelf slope S.
func HighShelfCoeffs(sampleRate, freq, shelfSlope, gainDB float64) Coeffs {
	w0 := 2 * math.Pi * freq / sampleRate
	cosw0, sinw0 := math.Cos(w0), math.Sin(w0)
	a := math.Pow(10, gainDB/40)
	alpha := sinw0 / 2 * math.Sqrt((a+1/a)*(1/shelfSlope-1)+2)
	sqrtA := math.Sqrt(a)

	b0 := a * ((a + 1) + (a-1)*cosw0 + 2*sqrtA*alpha)
	b1 := -2 * a * ((a - 1) + (a+1)*cosw0)
	b2 := a * ((a + 1) + (a-1)*cosw0 - 2*sqrtA*alpha)
	a0 := (a + 1) - (a-1)*cosw0 + 2*sqrtA*alpha
	a1 := 2 * ((a - 1) - (a+1)*cosw0)
	a2 := (a + 1) - (a-1)*cosw0 - 2*sqrtA*alpha
	return normalize(b0, b1, b2, a0, a1, a2)
}

func cosAlpha(w0, q float64) (cosw0, alpha float64) {
	cosw0 = math.Cos(w0)
	alpha = math.Sin(w0) / (2 * q)
	return
}
