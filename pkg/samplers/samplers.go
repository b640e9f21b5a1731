// Package samplers defines randomization-distribution descriptors for
// environment parameters. A Sampler describes how a parameter value is
// drawn each episode; the drawing itself is done by the environment side,
// this package only carries the descriptor and its seed.
package samplers

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// UnassignedSeed marks a sampler whose seed has not been chosen yet.
// Seed assignment replaces it with a concrete value derived from the run seed.
const UnassignedSeed = -1

// Kind identifies the distribution a sampler draws from.
type Kind string

const (
	KindUniform           Kind = "uniform"
	KindGaussian          Kind = "gaussian"
	KindMultiRangeUniform Kind = "multirangeuniform"
	KindConstant          Kind = "constant"
)

// Interval is an inclusive [min, max] range for multirange uniform sampling.
type Interval struct {
	Min float64
	Max float64
}

// Sampler is a randomization-distribution descriptor. Only the fields
// relevant to Kind are meaningful; the rest are zero.
type Sampler struct {
	Kind Kind
	Seed int64

	// uniform
	MinValue float64
	MaxValue float64

	// gaussian
	Mean   float64
	StdDev float64

	// multirangeuniform
	Intervals []Interval

	// constant
	Value float64
}

// NewConstant returns a constant sampler with an unassigned seed.
func NewConstant(value float64) *Sampler {
	return &Sampler{Kind: KindConstant, Seed: UnassignedSeed, Value: value}
}

// NewUniform returns a uniform sampler over [min, max] with an unassigned seed.
func NewUniform(min, max float64) *Sampler {
	return &Sampler{Kind: KindUniform, Seed: UnassignedSeed, MinValue: min, MaxValue: max}
}

// Validate checks that the descriptor is internally consistent.
func (s *Sampler) Validate() error {
	switch s.Kind {
	case KindUniform:
		if s.MinValue > s.MaxValue {
			return fmt.Errorf("uniform sampler: min_value %v greater than max_value %v", s.MinValue, s.MaxValue)
		}
	case KindGaussian:
		if s.StdDev < 0 {
			return fmt.Errorf("gaussian sampler: st_dev %v is negative", s.StdDev)
		}
	case KindMultiRangeUniform:
		if len(s.Intervals) == 0 {
			return fmt.Errorf("multirangeuniform sampler: no intervals")
		}
		for i, iv := range s.Intervals {
			if iv.Min > iv.Max {
				return fmt.Errorf("multirangeuniform sampler: interval %d has min %v greater than max %v", i, iv.Min, iv.Max)
			}
		}
	case KindConstant:
		// Nothing to check.
	default:
		return fmt.Errorf("unknown sampler_type %q", s.Kind)
	}
	return nil
}

// yamlSampler is the on-disk form:
//
//	sampler_type: uniform
//	sampler_parameters:
//	  min_value: 0.5
//	  max_value: 10
//	  seed: 12
type yamlSampler struct {
	SamplerType string         `yaml:"sampler_type"`
	Parameters  yamlParameters `yaml:"sampler_parameters"`
}

type yamlParameters struct {
	Seed      *int64       `yaml:"seed"`
	MinValue  float64      `yaml:"min_value"`
	MaxValue  float64      `yaml:"max_value"`
	Mean      float64      `yaml:"mean"`
	StdDev    float64      `yaml:"st_dev"`
	Intervals [][2]float64 `yaml:"intervals"`
	Value     float64      `yaml:"value"`
}

// UnmarshalYAML decodes either a full sampler mapping or a bare scalar,
// which is shorthand for a constant sampler.
func (s *Sampler) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		var v float64
		if err := node.Decode(&v); err != nil {
			return fmt.Errorf("sampler value: %w", err)
		}
		*s = Sampler{Kind: KindConstant, Seed: UnassignedSeed, Value: v}
		return nil
	}

	var raw yamlSampler
	if err := node.Decode(&raw); err != nil {
		return err
	}

	out := Sampler{Kind: Kind(raw.SamplerType), Seed: UnassignedSeed}
	if raw.Parameters.Seed != nil {
		out.Seed = *raw.Parameters.Seed
	}
	switch out.Kind {
	case KindUniform:
		out.MinValue = raw.Parameters.MinValue
		out.MaxValue = raw.Parameters.MaxValue
	case KindGaussian:
		out.Mean = raw.Parameters.Mean
		out.StdDev = raw.Parameters.StdDev
	case KindMultiRangeUniform:
		for _, iv := range raw.Parameters.Intervals {
			out.Intervals = append(out.Intervals, Interval{Min: iv[0], Max: iv[1]})
		}
	case KindConstant:
		out.Value = raw.Parameters.Value
	default:
		return fmt.Errorf("unknown sampler_type %q", raw.SamplerType)
	}

	*s = out
	return s.Validate()
}

func (s *Sampler) String() string {
	switch s.Kind {
	case KindUniform:
		return fmt.Sprintf("uniform[%v, %v]", s.MinValue, s.MaxValue)
	case KindGaussian:
		return fmt.Sprintf("gaussian(mean=%v, st_dev=%v)", s.Mean, s.StdDev)
	case KindMultiRangeUniform:
		return fmt.Sprintf("multirangeuniform(%d intervals)", len(s.Intervals))
	case KindConstant:
		return fmt.Sprintf("constant(%v)", s.Value)
	}
	return string(s.Kind)
}
