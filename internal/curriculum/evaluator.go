package curriculum

import "math"

// smoothingPrior and smoothingNew are the exponential-moving-average weights
// applied to reward measurements before threshold comparison.
const (
	smoothingPrior = 0.25
	smoothingNew   = 0.75
)

// NeedsIncrement decides whether a lesson's completion criteria are
// satisfied. It returns whether the lesson should advance and the updated
// smoothing value the caller must carry to the next evaluation.
//
// Regardless of measure, nothing advances until the reward buffer holds at
// least MinLessonLength entries. This gate applies to progress-measured
// criteria too, so callers must maintain a reward buffer either way.
//
// All threshold comparisons are strict: equality never advances.
func NeedsIncrement(c *CompletionCriteria, progress float64, rewardBuffer []float64, smoothing float64) (bool, float64) {
	if len(rewardBuffer) < c.MinLessonLength {
		return false, smoothing
	}
	switch c.Measure {
	case MeasureProgress:
		if progress > c.Threshold {
			return true, smoothing
		}
	case MeasureReward:
		if len(rewardBuffer) < 1 {
			return false, smoothing
		}
		measure := mean(rewardBuffer)
		if math.IsNaN(measure) {
			return false, smoothing
		}
		if c.SignalSmoothing {
			measure = smoothingPrior*smoothing + smoothingNew*measure
			smoothing = measure
		}
		if measure > c.Threshold {
			return true, smoothing
		}
	}
	return false, smoothing
}

func mean(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
