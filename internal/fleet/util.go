package fleet

import "math"

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		set[item] = struct{}{}
	}
	return set
}

// symmetricDifference returns the set of keys present in exactly one
// of a, b.
func symmetricDifference(a, b map[string]struct{}) map[string]struct{} {
	diff := make(map[string]struct{})
	for k := range a {
		if _, ok := b[k]; !ok {
			diff[k] = struct{}{}
		}
	}
	for k := range b {
		if _, ok := a[k]; !ok {
			diff[k] = struct{}{}
		}
	}
	return diff
}

// pingTimeoutSchedule builds the geometric backoff of ping timeouts
// used by verifyRestart: starting at 0.1s, growing by 40% per step,
// capped at 1.0s, for up to maxAttempts steps.
func pingTimeoutSchedule(maxAttempts int) []float64 {
	const (
		start      = 0.1
		maxTimeout = 1.0
		growth     = 0.4
	)
	schedule := make([]float64, 0, maxAttempts)
	t := start
	for i := 0; i < maxAttempts; i++ {
		schedule = append(schedule, t)
		t = math.Min(maxTimeout, t*(1+growth))
	}
	return schedule
}
