package boundplot

import "math"

const (
	// DefaultResolution is the number of samples of the bound curve domain.
	DefaultResolution = 100

	// DefaultDomainStart is slightly below 1 so the curves start left of the
	// first data point.
	DefaultDomainStart = 0.9
)

// ThesisBound evaluates C1 * p^-1 * (sqrt(log(p + 1)) + 1).
func ThesisBound(t, c1 float64) float64 {
	return c1 * (1 / t) * (math.Sqrt(math.Log(t+1)) + 1)
}

// AlgebraicBound evaluates C2 * p^-k.
func AlgebraicBound(t, c2, k float64) float64 {
	return c2 * math.Pow(t, -k)
}

// Linspace returns n evenly spaced samples over [start, stop]. Both ends are
// included when n > 1.
func Linspace(start, stop float64, n int) []float64 {
	if n <= 0 {
		return []float64{}
	}

	if n == 1 {
		return []float64{start}
	}

	out := make([]float64, n)
	step := (stop - start) / float64(n-1)
	for i := range out {
		out[i] = start + float64(i)*step
	}

	// Avoid accumulating rounding error on the last sample.
	out[n-1] = stop
	return out
}

// BoundDomain is the domain shared by every bound curve: from start up to the
// length of the longest series plus one.
func BoundDomain(start float64, maxRows, resolution int) []float64 {
	return Linspace(start, float64(maxRows+1), resolution)
}
