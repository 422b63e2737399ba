package results

import (
	"math"
	"sort"
	"time"
)

// Statistics summarises a set of run durations.
type Statistics struct {
	Min               time.Duration `json:"min"`
	Max               time.Duration `json:"max"`
	Mean              float64       `json:"mean"`
	Variance          float64       `json:"variance"`
	StandardDeviation float64       `json:"standardDeviation"`
	P50               time.Duration `json:"p50"`
	P90               time.Duration `json:"p90"`
	P95               time.Duration `json:"p95"`
	P99               time.Duration `json:"p99"`
}

func statistics(durations []time.Duration) *Statistics {
	durationsInt64 := make([]int64, 0, len(durations))
	for _, d := range durations {
		durationsInt64 = append(durationsInt64, int64(d))
	}
	sorted := append([]int64{}, durationsInt64...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return &Statistics{
		Min:               time.Duration(minInt64(durationsInt64)),
		Max:               time.Duration(maxInt64(durationsInt64)),
		Mean:              avgInt64(durationsInt64),
		Variance:          varianceInt64(durationsInt64),
		StandardDeviation: standardDeviationInt64(durationsInt64),
		P50:               time.Duration(percentile(sorted, 50)),
		P90:               time.Duration(percentile(sorted, 90)),
		P95:               time.Duration(percentile(sorted, 95)),
		P99:               time.Duration(percentile(sorted, 99)),
	}
}

// percentile returns the nearest-rank percentile of a sorted slice.
func percentile(sorted []int64, p int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := int(math.Ceil(float64(p) / 100 * float64(len(sorted))))
	if rank < 1 {
		rank = 1
	}
	return sorted[rank-1]
}

func minInt64(input []int64) int64 {
	var m int64
	for i, e := range input {
		if i == 0 || e < m {
			m = e
		}
	}
	return m
}

func maxInt64(input []int64) int64 {
	var m int64
	for i, e := range input {
		if i == 0 || e > m {
			m = e
		}
	}
	return m
}

func sumInt64(input []int64) int64 {
	var sum int64
	for _, e := range input {
		sum += e
	}
	return sum
}

func avgInt64(input []int64) float64 {
	num := len(input)
	if num == 0 {
		return 0
	}
	return float64(sumInt64(input)) / float64(num)
}

func varianceInt64(numbers []int64) float64 {
	if len(numbers) < 2 {
		return 0
	}
	var total float64
	avg := avgInt64(numbers)
	for _, number := range numbers {
		total += math.Pow(float64(number)-avg, 2)
	}
	return total / float64(len(numbers)-1)
}

func standardDeviationInt64(numbers []int64) float64 {
	return math.Sqrt(varianceInt64(numbers))
}
