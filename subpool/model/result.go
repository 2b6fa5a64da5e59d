package model

import "time"

// ProbeResult is produced only for reachable descriptors; a failed probe
// yields no result at all.
type ProbeResult struct {
	Descriptor Descriptor

	LatencyMs  float64 // wall time of the probe dial, milliseconds
	Throughput float64 // estimator output, relative units
	Score      float64
	TestedAt   time.Time
}

// Score combines latency and a throughput estimate into a single ranking
// value: strictly decreasing in latency, non-decreasing in throughput,
// always positive. It has no absolute unit; only relative order matters.
func Score(latencyMs, throughput float64) float64 {
	return 1000/(latencyMs+1) + throughput
}
