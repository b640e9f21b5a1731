package curriculum

import (
	"fmt"
	"log"

	"github.com/geotyper/ml-agents/internal/metrics"
	"github.com/geotyper/ml-agents/internal/status"
	"github.com/geotyper/ml-agents/pkg/samplers"
)

// Notifier receives lesson-change events. Implementations must not block
// the training step; delivery failures are theirs to handle.
type Notifier interface {
	LessonChanged(parameter, lessonName string, lessonNum int)
}

// Manager owns the curriculum position of every environment parameter for
// one training run. Lesson indices live in the injected status store so
// they survive restarts; smoothing accumulators are in-memory only and
// start at zero on every construction.
//
// Manager is step-driven and not safe for concurrent use.
type Manager struct {
	specs     []ParameterSpec
	store     status.Store
	smoothing map[string]float64

	metrics  *metrics.Metrics
	notifier Notifier
}

// New builds a Manager from validated parameter specs. When restore is true
// a lesson index already present in the store is kept; otherwise (or when
// the store has no entry) the index is reset to zero and written back
// eagerly. Samplers with unassigned seeds receive deterministic seeds
// derived from runSeed.
func New(specs []ParameterSpec, runSeed int64, restore bool, store status.Store) (*Manager, error) {
	if store == nil {
		return nil, fmt.Errorf("curriculum manager requires a status store")
	}
	if err := validateSpecs(specs); err != nil {
		return nil, err
	}

	m := &Manager{
		specs:     specs,
		store:     store,
		smoothing: make(map[string]float64, len(specs)),
	}

	for i := range specs {
		name := specs[i].Name
		num, found, err := store.GetLessonNum(name)
		if err != nil {
			return nil, fmt.Errorf("failed to read lesson index for %q: %w", name, err)
		}
		if !found || !restore {
			if err := store.SetLessonNum(name, 0); err != nil {
				return nil, fmt.Errorf("failed to reset lesson index for %q: %w", name, err)
			}
		} else if num < 0 || num >= len(specs[i].Lessons) {
			return nil, fmt.Errorf("restored lesson index %d for %q is out of range (parameter has %d lessons)", num, name, len(specs[i].Lessons))
		}
		m.smoothing[name] = 0.0
	}

	AssignSeeds(specs, runSeed)
	return m, nil
}

// SetMetrics wires Prometheus metrics into the manager. Optional.
func (m *Manager) SetMetrics(mx *metrics.Metrics) {
	m.metrics = mx
}

// SetNotifier wires a lesson-change notifier into the manager. Optional.
func (m *Manager) SetNotifier(n Notifier) {
	m.notifier = n
}

// GetMinimumRewardBufferSize returns the largest MinLessonLength among all
// lessons whose criteria target the given behavior, or 1 when none do.
// Callers use this to size their reward history buffers.
func (m *Manager) GetMinimumRewardBufferSize(behavior string) int {
	result := 1
	for _, spec := range m.specs {
		for _, lesson := range spec.Lessons {
			if lesson.Criteria == nil || lesson.Criteria.Behavior != behavior {
				continue
			}
			if lesson.Criteria.MinLessonLength > result {
				result = lesson.Criteria.MinLessonLength
			}
		}
	}
	return result
}

// GetCurrentSamplers returns the active lesson's sampler for each parameter.
func (m *Manager) GetCurrentSamplers() (map[string]*samplers.Sampler, error) {
	result := make(map[string]*samplers.Sampler, len(m.specs))
	for i := range m.specs {
		num, err := m.currentLesson(&m.specs[i])
		if err != nil {
			return nil, err
		}
		result[m.specs[i].Name] = m.specs[i].Lessons[num].Sampler
	}
	return result, nil
}

// GetCurrentLessonNumber returns the active lesson index for each parameter.
func (m *Manager) GetCurrentLessonNumber() (map[string]int, error) {
	result := make(map[string]int, len(m.specs))
	for i := range m.specs {
		num, err := m.currentLesson(&m.specs[i])
		if err != nil {
			return nil, err
		}
		result[m.specs[i].Name] = num
	}
	return result, nil
}

// currentLesson reads a parameter's lesson index from the store and bounds
// checks it against the lesson sequence.
func (m *Manager) currentLesson(spec *ParameterSpec) (int, error) {
	num, found, err := m.store.GetLessonNum(spec.Name)
	if err != nil {
		return 0, fmt.Errorf("failed to read lesson index for %q: %w", spec.Name, err)
	}
	if !found {
		return 0, fmt.Errorf("no lesson index stored for %q", spec.Name)
	}
	if num < 0 || num >= len(spec.Lessons) {
		return 0, fmt.Errorf("stored lesson index %d for %q is out of range (parameter has %d lessons)", num, spec.Name, len(spec.Lessons))
	}
	return num, nil
}

// UpdateLessons evaluates every parameter's active completion criteria
// against the trainers' step counters and reward histories, advancing any
// parameter whose criteria are met. It returns whether any lesson changed
// and whether any advancing lesson requires an environment reset.
//
// Each map must contain an entry for every behavior referenced by a
// currently active criterion; a missing entry or a non-positive max step
// count is a caller misconfiguration and aborts the step.
//
// A parameter already on its final lesson is terminal: its criteria are
// still evaluated (the smoothing accumulator keeps updating) but the index
// never advances past the end.
func (m *Manager) UpdateLessons(
	trainerSteps map[string]int64,
	trainerMaxSteps map[string]int64,
	trainerRewardBuffers map[string][]float64,
) (updated bool, mustReset bool, err error) {
	for i := range m.specs {
		spec := &m.specs[i]
		lessonNum, err := m.currentLesson(spec)
		if err != nil {
			return false, false, err
		}
		lesson := &spec.Lessons[lessonNum]
		if lesson.Criteria == nil {
			continue
		}
		behavior := lesson.Criteria.Behavior

		steps, ok := trainerSteps[behavior]
		if !ok {
			return false, false, fmt.Errorf("no step count supplied for behavior %q (required by parameter %q, lesson %q)", behavior, spec.Name, lesson.Name)
		}
		maxSteps, ok := trainerMaxSteps[behavior]
		if !ok {
			return false, false, fmt.Errorf("no max step count supplied for behavior %q (required by parameter %q, lesson %q)", behavior, spec.Name, lesson.Name)
		}
		buffer, ok := trainerRewardBuffers[behavior]
		if !ok {
			return false, false, fmt.Errorf("no reward buffer supplied for behavior %q (required by parameter %q, lesson %q)", behavior, spec.Name, lesson.Name)
		}
		if maxSteps <= 0 {
			return false, false, fmt.Errorf("max step count for behavior %q must be positive, got %d", behavior, maxSteps)
		}
		progress := float64(steps) / float64(maxSteps)

		increment, newSmoothing := NeedsIncrement(lesson.Criteria, progress, buffer, m.smoothing[spec.Name])
		m.smoothing[spec.Name] = newSmoothing
		if m.metrics != nil && lesson.Criteria.Measure == MeasureReward && lesson.Criteria.SignalSmoothing {
			m.metrics.RecordSmoothedReward(spec.Name, newSmoothing)
		}
		if !increment {
			continue
		}

		next := lessonNum + 1
		if next >= len(spec.Lessons) {
			// Final lesson completed its criteria: terminal, nothing to
			// advance to.
			continue
		}
		if err := m.store.SetLessonNum(spec.Name, next); err != nil {
			return false, false, fmt.Errorf("failed to persist lesson index for %q: %w", spec.Name, err)
		}
		log.Printf("[ParameterManager] Parameter '%s' has changed. Now in lesson '%s'", spec.Name, spec.Lessons[next].Name)
		updated = true
		if m.metrics != nil {
			m.metrics.RecordLesson(spec.Name, next)
			m.metrics.RecordTransition(spec.Name, behavior, lesson.Criteria.RequireReset)
		}
		if m.notifier != nil {
			m.notifier.LessonChanged(spec.Name, spec.Lessons[next].Name, next)
		}
		if lesson.Criteria.RequireReset {
			mustReset = true
		}
	}
	return updated, mustReset, nil
}
