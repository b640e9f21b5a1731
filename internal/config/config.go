// Package config loads curriculum configuration from YAML files.
//
// The file layout mirrors the trainer configuration format:
//
//	environment_parameters:
//	  mass: 2.5
//	  gravity:
//	    sampler_type: uniform
//	    sampler_parameters: {min_value: 7, max_value: 12}
//	  wall_height:
//	    curriculum:
//	      - name: Lesson0
//	        completion_criteria:
//	          measure: progress
//	          behavior: BigWallJump
//	          threshold: 0.1
//	        value: 0.0
//	      - name: Lesson1
//	        value:
//	          sampler_type: uniform
//	          sampler_parameters: {min_value: 0, max_value: 4}
//
// A parameter is either a bare scalar (constant for the whole run), a
// sampler descriptor, or a full curriculum. Declaration order in the file
// is preserved so seed assignment stays deterministic.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/geotyper/ml-agents/internal/curriculum"
	"github.com/geotyper/ml-agents/pkg/samplers"
)

// defaultLessonName names the single implicit lesson of a parameter
// declared without a curriculum.
const defaultLessonName = "default"

// yamlFile is the top-level document.
type yamlFile struct {
	EnvironmentParameters yaml.Node `yaml:"environment_parameters"`
}

// rawLesson is one curriculum entry. Value decodes through the sampler's
// own UnmarshalYAML, so the bare-scalar constant shorthand works here too.
type rawLesson struct {
	Name               string            `yaml:"name"`
	CompletionCriteria *yamlCriteria     `yaml:"completion_criteria"`
	Value              *samplers.Sampler `yaml:"value"`
}

type yamlCriteria struct {
	Measure         string   `yaml:"measure"`
	Behavior        string   `yaml:"behavior"`
	Threshold       *float64 `yaml:"threshold"`
	MinLessonLength int      `yaml:"min_lesson_length"`
	SignalSmoothing *bool    `yaml:"signal_smoothing"`
	RequireReset    bool     `yaml:"require_reset"`
}

// Load reads and validates a curriculum configuration file, returning the
// parameter specs in declaration order. Environment variables in the file
// (e.g. ${RUN_SEED}) are expanded before parsing.
func Load(path string) ([]curriculum.ParameterSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return Parse([]byte(os.ExpandEnv(string(data))))
}

// Parse decodes curriculum configuration from YAML bytes.
func Parse(data []byte) ([]curriculum.ParameterSpec, error) {
	var file yamlFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if file.EnvironmentParameters.Kind == 0 {
		return nil, fmt.Errorf("config has no environment_parameters section")
	}
	if file.EnvironmentParameters.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("environment_parameters must be a mapping")
	}

	// A mapping node stores keys and values as alternating content nodes,
	// which preserves the declaration order Go maps would lose.
	content := file.EnvironmentParameters.Content
	specs := make([]curriculum.ParameterSpec, 0, len(content)/2)
	for i := 0; i+1 < len(content); i += 2 {
		name := content[i].Value
		spec, err := parseParameter(name, content[i+1])
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func parseParameter(name string, node *yaml.Node) (curriculum.ParameterSpec, error) {
	spec := curriculum.ParameterSpec{Name: name}

	// Scalar or sampler mapping: a single implicit lesson with no criteria.
	if node.Kind == yaml.ScalarNode || !hasKey(node, "curriculum") {
		var s samplers.Sampler
		if err := node.Decode(&s); err != nil {
			return spec, fmt.Errorf("parameter %q: %w", name, err)
		}
		spec.Lessons = []curriculum.Lesson{{Name: defaultLessonName, Sampler: &s}}
		return spec, nil
	}

	var param struct {
		Curriculum []rawLesson `yaml:"curriculum"`
	}
	if err := node.Decode(&param); err != nil {
		return spec, fmt.Errorf("parameter %q: %w", name, err)
	}
	if len(param.Curriculum) == 0 {
		return spec, fmt.Errorf("parameter %q: curriculum has no lessons", name)
	}

	for i, raw := range param.Curriculum {
		lesson, err := buildLesson(name, i, raw)
		if err != nil {
			return spec, err
		}
		spec.Lessons = append(spec.Lessons, lesson)
	}
	return spec, nil
}

func buildLesson(parameter string, index int, raw rawLesson) (curriculum.Lesson, error) {
	lesson := curriculum.Lesson{Name: raw.Name, Sampler: raw.Value}
	if lesson.Name == "" {
		lesson.Name = fmt.Sprintf("Lesson%d", index)
	}
	if lesson.Sampler == nil {
		return lesson, fmt.Errorf("parameter %q lesson %q: missing value", parameter, lesson.Name)
	}
	if raw.CompletionCriteria == nil {
		return lesson, nil
	}

	c := raw.CompletionCriteria
	measure, err := curriculum.ParseMeasure(c.Measure)
	if err != nil {
		return lesson, fmt.Errorf("parameter %q lesson %q: %w", parameter, lesson.Name, err)
	}
	if c.Threshold == nil {
		return lesson, fmt.Errorf("parameter %q lesson %q: completion_criteria requires a threshold", parameter, lesson.Name)
	}

	// signal_smoothing defaults to true, matching trainer defaults.
	smoothing := true
	if c.SignalSmoothing != nil {
		smoothing = *c.SignalSmoothing
	}

	lesson.Criteria = &curriculum.CompletionCriteria{
		Measure:         measure,
		Behavior:        c.Behavior,
		Threshold:       *c.Threshold,
		MinLessonLength: c.MinLessonLength,
		SignalSmoothing: smoothing,
		RequireReset:    c.RequireReset,
	}
	return lesson, nil
}

func hasKey(node *yaml.Node, key string) bool {
	if node.Kind != yaml.MappingNode {
		return false
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return true
		}
	}
	return false
}
