// Package curriculum drives curriculum learning for a training run: it
// tracks which randomization lesson is active for each environment
// parameter and advances a parameter to its next lesson once the trainer's
// performance satisfies the lesson's completion criteria.
package curriculum

import (
	"fmt"

	"github.com/geotyper/ml-agents/pkg/samplers"
)

// Measure selects which trainer signal a completion criterion monitors.
type Measure int

const (
	// MeasureProgress gates on the fraction of training steps consumed.
	MeasureProgress Measure = iota
	// MeasureReward gates on the mean of the recent reward buffer.
	MeasureReward
)

// ParseMeasure converts the YAML spelling of a measure into its tag.
func ParseMeasure(s string) (Measure, error) {
	switch s {
	case "progress", "":
		return MeasureProgress, nil
	case "reward":
		return MeasureReward, nil
	}
	return 0, fmt.Errorf("unknown completion measure %q (want progress or reward)", s)
}

func (m Measure) String() string {
	switch m {
	case MeasureProgress:
		return "progress"
	case MeasureReward:
		return "reward"
	}
	return fmt.Sprintf("measure(%d)", int(m))
}

// CompletionCriteria is the rule that determines when a lesson ends.
type CompletionCriteria struct {
	Measure         Measure
	Behavior        string
	Threshold       float64
	MinLessonLength int
	SignalSmoothing bool
	RequireReset    bool
}

// Lesson is one stage of a parameter's curriculum: a randomization
// distribution plus the criteria for leaving it. A nil Criteria means the
// lesson never completes on its own.
type Lesson struct {
	Name     string
	Sampler  *samplers.Sampler
	Criteria *CompletionCriteria
}

// ParameterSpec is the full ordered curriculum for one environment
// parameter. Lesson 0 is the initial lesson; ordering is fixed at
// construction.
type ParameterSpec struct {
	Name    string
	Lessons []Lesson
}

func (p *ParameterSpec) validate() error {
	if p.Name == "" {
		return fmt.Errorf("environment parameter with empty name")
	}
	if len(p.Lessons) == 0 {
		return fmt.Errorf("parameter %q has no lessons", p.Name)
	}
	for i, lesson := range p.Lessons {
		if lesson.Sampler == nil {
			return fmt.Errorf("parameter %q lesson %d (%q) has no sampler", p.Name, i, lesson.Name)
		}
		if err := lesson.Sampler.Validate(); err != nil {
			return fmt.Errorf("parameter %q lesson %d (%q): %w", p.Name, i, lesson.Name, err)
		}
		c := lesson.Criteria
		if c == nil {
			continue
		}
		if c.Behavior == "" {
			return fmt.Errorf("parameter %q lesson %d (%q): completion criteria without a behavior", p.Name, i, lesson.Name)
		}
		if c.MinLessonLength < 0 {
			return fmt.Errorf("parameter %q lesson %d (%q): negative min_lesson_length %d", p.Name, i, lesson.Name, c.MinLessonLength)
		}
		if c.Measure == MeasureProgress && (c.Threshold < 0 || c.Threshold > 1) {
			return fmt.Errorf("parameter %q lesson %d (%q): progress threshold %v outside [0, 1]", p.Name, i, lesson.Name, c.Threshold)
		}
	}
	return nil
}

func validateSpecs(specs []ParameterSpec) error {
	seen := make(map[string]bool, len(specs))
	for i := range specs {
		if err := specs[i].validate(); err != nil {
			return err
		}
		if seen[specs[i].Name] {
			return fmt.Errorf("duplicate environment parameter %q", specs[i].Name)
		}
		seen[specs[i].Name] = true
	}
	return nil
}
