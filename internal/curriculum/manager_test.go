package curriculum

import (
	"testing"

	"github.com/geotyper/ml-agents/internal/status"
	"github.com/geotyper/ml-agents/pkg/samplers"
)

func progressSpec(name, behavior string, threshold float64, requireReset bool) ParameterSpec {
	return ParameterSpec{
		Name: name,
		Lessons: []Lesson{
			{
				Name:    "Lesson0",
				Sampler: samplers.NewConstant(0),
				Criteria: &CompletionCriteria{
					Measure:         MeasureProgress,
					Behavior:        behavior,
					Threshold:       threshold,
					MinLessonLength: 1,
					RequireReset:    requireReset,
				},
			},
			{
				Name:    "Lesson1",
				Sampler: samplers.NewConstant(1),
			},
		},
	}
}

func stepInputs(behavior string, steps, maxSteps int64, rewards []float64) (map[string]int64, map[string]int64, map[string][]float64) {
	return map[string]int64{behavior: steps},
		map[string]int64{behavior: maxSteps},
		map[string][]float64{behavior: rewards}
}

func TestNewResetsLessonIndexWhenNotRestoring(t *testing.T) {
	store := status.NewMemoryStore()
	if err := store.SetLessonNum("height", 1); err != nil {
		t.Fatal(err)
	}

	m, err := New([]ParameterSpec{progressSpec("height", "walker", 0.5, false)}, 1337, false, store)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	nums, err := m.GetCurrentLessonNumber()
	if err != nil {
		t.Fatalf("GetCurrentLessonNumber failed: %v", err)
	}
	if nums["height"] != 0 {
		t.Errorf("restore=false must reset to lesson 0, got %d", nums["height"])
	}

	// The reset must be written back to the store eagerly.
	num, found, err := store.GetLessonNum("height")
	if err != nil || !found || num != 0 {
		t.Errorf("expected store to hold 0, got %d (found=%v, err=%v)", num, found, err)
	}
}

func TestNewRestoresPersistedLessonIndex(t *testing.T) {
	spec := ParameterSpec{
		Name: "height",
		Lessons: []Lesson{
			{Name: "Lesson0", Sampler: samplers.NewConstant(0)},
			{Name: "Lesson1", Sampler: samplers.NewConstant(1)},
			{Name: "Lesson2", Sampler: samplers.NewConstant(2)},
		},
	}
	store := status.NewMemoryStore()
	if err := store.SetLessonNum("height", 2); err != nil {
		t.Fatal(err)
	}

	m, err := New([]ParameterSpec{spec}, 1337, true, store)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	nums, err := m.GetCurrentLessonNumber()
	if err != nil {
		t.Fatalf("GetCurrentLessonNumber failed: %v", err)
	}
	if nums["height"] != 2 {
		t.Errorf("restore=true must keep persisted lesson 2, got %d", nums["height"])
	}
}

func TestNewRejectsOutOfRangeRestoredIndex(t *testing.T) {
	store := status.NewMemoryStore()
	if err := store.SetLessonNum("height", 7); err != nil {
		t.Fatal(err)
	}

	_, err := New([]ParameterSpec{progressSpec("height", "walker", 0.5, false)}, 0, true, store)
	if err == nil {
		t.Fatal("expected error for out-of-range restored lesson index")
	}
}

func TestNewAssignsSamplerSeeds(t *testing.T) {
	specs := []ParameterSpec{
		progressSpec("height", "walker", 0.5, false),
		progressSpec("mass", "walker", 0.5, false),
	}

	_, err := New(specs, 9000, false, status.NewMemoryStore())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	seeds := map[int64]bool{}
	for _, spec := range specs {
		for _, lesson := range spec.Lessons {
			seed := lesson.Sampler.Seed
			if seed == samplers.UnassignedSeed {
				t.Errorf("parameter %q lesson %q still has an unassigned seed", spec.Name, lesson.Name)
			}
			if seeds[seed] {
				t.Errorf("seed %d assigned twice", seed)
			}
			seeds[seed] = true
		}
	}
}

func TestGetMinimumRewardBufferSize(t *testing.T) {
	specs := []ParameterSpec{
		{
			Name: "height",
			Lessons: []Lesson{
				{
					Name:    "Lesson0",
					Sampler: samplers.NewConstant(0),
					Criteria: &CompletionCriteria{
						Measure: MeasureReward, Behavior: "walker",
						Threshold: 0.8, MinLessonLength: 100,
					},
				},
				{
					Name:    "Lesson1",
					Sampler: samplers.NewConstant(1),
					Criteria: &CompletionCriteria{
						Measure: MeasureReward, Behavior: "walker",
						Threshold: 0.9, MinLessonLength: 250,
					},
				},
			},
		},
		progressSpec("mass", "jumper", 0.5, false),
	}

	m, err := New(specs, 0, false, status.NewMemoryStore())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if got := m.GetMinimumRewardBufferSize("walker"); got != 250 {
		t.Errorf("expected 250 for walker, got %d", got)
	}
	if got := m.GetMinimumRewardBufferSize("jumper"); got != 1 {
		t.Errorf("expected 1 for jumper (min_lesson_length 1), got %d", got)
	}
	if got := m.GetMinimumRewardBufferSize("nobody"); got != 1 {
		t.Errorf("expected default 1 for untargeted behavior, got %d", got)
	}
}

func TestUpdateLessonsNoAdvancement(t *testing.T) {
	m, err := New([]ParameterSpec{progressSpec("height", "walker", 0.5, true)}, 0, false, status.NewMemoryStore())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	steps, maxSteps, buffers := stepInputs("walker", 100, 1000, []float64{0.0})
	updated, mustReset, err := m.UpdateLessons(steps, maxSteps, buffers)
	if err != nil {
		t.Fatalf("UpdateLessons failed: %v", err)
	}
	if updated || mustReset {
		t.Errorf("expected (false, false) below threshold, got (%v, %v)", updated, mustReset)
	}
}

func TestUpdateLessonsAdvancesAndPersists(t *testing.T) {
	store := status.NewMemoryStore()
	m, err := New([]ParameterSpec{progressSpec("height", "walker", 0.5, false)}, 0, false, store)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	steps, maxSteps, buffers := stepInputs("walker", 510, 1000, []float64{0.0})
	updated, mustReset, err := m.UpdateLessons(steps, maxSteps, buffers)
	if err != nil {
		t.Fatalf("UpdateLessons failed: %v", err)
	}
	if !updated {
		t.Error("expected advancement at progress 0.51")
	}
	if mustReset {
		t.Error("require_reset is false, mustReset must stay false")
	}

	num, found, err := store.GetLessonNum("height")
	if err != nil || !found {
		t.Fatalf("store lookup failed: found=%v err=%v", found, err)
	}
	if num != 1 {
		t.Errorf("expected persisted lesson 1, got %d", num)
	}

	samplersNow, err := m.GetCurrentSamplers()
	if err != nil {
		t.Fatalf("GetCurrentSamplers failed: %v", err)
	}
	if samplersNow["height"].Value != 1 {
		t.Errorf("expected lesson 1 sampler, got %s", samplersNow["height"].String())
	}
}

func TestUpdateLessonsRequireResetIsNotMasked(t *testing.T) {
	// Two parameters advance in the same step; only one requires a reset.
	// The aggregate flag must still be true.
	specs := []ParameterSpec{
		progressSpec("quiet", "walker", 0.1, false),
		progressSpec("resetting", "walker", 0.1, true),
	}
	m, err := New(specs, 0, false, status.NewMemoryStore())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	steps, maxSteps, buffers := stepInputs("walker", 900, 1000, []float64{0.0})
	updated, mustReset, err := m.UpdateLessons(steps, maxSteps, buffers)
	if err != nil {
		t.Fatalf("UpdateLessons failed: %v", err)
	}
	if !updated {
		t.Error("expected both parameters to advance")
	}
	if !mustReset {
		t.Error("one advancing lesson requires reset; aggregate flag must be true")
	}
}

func TestUpdateLessonsTerminalLessonIsNoOp(t *testing.T) {
	// Criteria on the final lesson: meeting them must not advance the index
	// past the end of the sequence.
	spec := ParameterSpec{
		Name: "height",
		Lessons: []Lesson{
			{
				Name:    "OnlyLesson",
				Sampler: samplers.NewConstant(0),
				Criteria: &CompletionCriteria{
					Measure: MeasureProgress, Behavior: "walker",
					Threshold: 0.1, MinLessonLength: 1,
					RequireReset: true,
				},
			},
		},
	}
	store := status.NewMemoryStore()
	m, err := New([]ParameterSpec{spec}, 0, false, store)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	steps, maxSteps, buffers := stepInputs("walker", 999, 1000, []float64{0.0})
	updated, mustReset, err := m.UpdateLessons(steps, maxSteps, buffers)
	if err != nil {
		t.Fatalf("UpdateLessons failed: %v", err)
	}
	if updated || mustReset {
		t.Errorf("final lesson must be terminal, got (%v, %v)", updated, mustReset)
	}

	num, _, _ := store.GetLessonNum("height")
	if num != 0 {
		t.Errorf("lesson index must not move past the last lesson, got %d", num)
	}
}

func TestUpdateLessonsSmoothingCarriesAcrossSteps(t *testing.T) {
	spec := ParameterSpec{
		Name: "height",
		Lessons: []Lesson{
			{
				Name:    "Lesson0",
				Sampler: samplers.NewConstant(0),
				Criteria: &CompletionCriteria{
					Measure: MeasureReward, Behavior: "walker",
					Threshold: 0.9, MinLessonLength: 4,
					SignalSmoothing: true,
				},
			},
			{Name: "Lesson1", Sampler: samplers.NewConstant(1)},
		},
	}
	m, err := New([]ParameterSpec{spec}, 0, false, status.NewMemoryStore())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	steps, maxSteps, buffers := stepInputs("walker", 0, 1000, []float64{1, 1, 1, 1})

	// Step 1: smoothed 0.75, no advancement.
	updated, _, err := m.UpdateLessons(steps, maxSteps, buffers)
	if err != nil {
		t.Fatalf("UpdateLessons failed: %v", err)
	}
	if updated {
		t.Error("smoothed measure 0.75 must not advance")
	}

	// Step 2: smoothed 0.9375, advancement.
	updated, _, err = m.UpdateLessons(steps, maxSteps, buffers)
	if err != nil {
		t.Fatalf("UpdateLessons failed: %v", err)
	}
	if !updated {
		t.Error("smoothed measure 0.9375 must advance")
	}
}

func TestUpdateLessonsMissingBehaviorKey(t *testing.T) {
	m, err := New([]ParameterSpec{progressSpec("height", "walker", 0.5, false)}, 0, false, status.NewMemoryStore())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	_, _, err = m.UpdateLessons(
		map[string]int64{"other": 1},
		map[string]int64{"walker": 1000},
		map[string][]float64{"walker": {0.0}},
	)
	if err == nil {
		t.Fatal("expected error for missing behavior step count")
	}

	_, _, err = m.UpdateLessons(
		map[string]int64{"walker": 1},
		map[string]int64{"walker": 1000},
		map[string][]float64{},
	)
	if err == nil {
		t.Fatal("expected error for missing reward buffer")
	}
}

func TestUpdateLessonsRejectsNonPositiveMaxSteps(t *testing.T) {
	m, err := New([]ParameterSpec{progressSpec("height", "walker", 0.5, false)}, 0, false, status.NewMemoryStore())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	steps, maxSteps, buffers := stepInputs("walker", 1, 0, []float64{0.0})
	_, _, err = m.UpdateLessons(steps, maxSteps, buffers)
	if err == nil {
		t.Fatal("expected error for zero max step count")
	}
}

func TestUpdateLessonsSkipsParametersWithoutCriteria(t *testing.T) {
	spec := ParameterSpec{
		Name:    "static",
		Lessons: []Lesson{{Name: "only", Sampler: samplers.NewConstant(3)}},
	}
	m, err := New([]ParameterSpec{spec}, 0, false, status.NewMemoryStore())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	// No behavior data at all: a criteria-free parameter must not need any.
	updated, mustReset, err := m.UpdateLessons(nil, nil, nil)
	if err != nil {
		t.Fatalf("UpdateLessons failed: %v", err)
	}
	if updated || mustReset {
		t.Errorf("expected (false, false), got (%v, %v)", updated, mustReset)
	}
}

func TestNewValidatesSpecs(t *testing.T) {
	tests := []struct {
		name  string
		specs []ParameterSpec
	}{
		{"no lessons", []ParameterSpec{{Name: "empty"}}},
		{"duplicate names", []ParameterSpec{
			progressSpec("height", "walker", 0.5, false),
			progressSpec("height", "walker", 0.5, false),
		}},
		{"nil sampler", []ParameterSpec{{
			Name:    "height",
			Lessons: []Lesson{{Name: "Lesson0"}},
		}}},
		{"criteria without behavior", []ParameterSpec{{
			Name: "height",
			Lessons: []Lesson{{
				Name:     "Lesson0",
				Sampler:  samplers.NewConstant(0),
				Criteria: &CompletionCriteria{Measure: MeasureProgress, Threshold: 0.5},
			}},
		}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.specs, 0, false, status.NewMemoryStore()); err == nil {
				t.Error("expected construction error")
			}
		})
	}
}
