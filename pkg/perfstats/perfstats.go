// Package perfstats accumulates timing samples from the frame pipeline
package perfstats

import "time"

// Accumulate samples of how long something took
type TimeAccumulator struct {
	Samples int64
	Total   time.Duration
	Max     time.Duration
}

func (a *TimeAccumulator) Reset() {
	*a = TimeAccumulator{}
}

func (a *TimeAccumulator) AddSample(v time.Duration) {
	a.Samples++
	a.Total += v
	a.Max = max(a.Max, v)
}

func (a *TimeAccumulator) Average() time.Duration {
	if a.Samples == 0 {
		return 0
	}
	return time.Duration(a.Total.Nanoseconds() / a.Samples)
}

// SYNC-PERF-SUMMARY
type Summary struct {
	Samples   int64   `json:"samples"`
	AverageMS float64 `json:"averageMS"`
	MaxMS     float64 `json:"maxMS"`
}

func (a *TimeAccumulator) Summary() Summary {
	return Summary{
		Samples:   a.Samples,
		AverageMS: milliseconds(a.Average()),
		MaxMS:     milliseconds(a.Max),
	}
}

func milliseconds(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
