package curriculum

import "github.com/geotyper/ml-agents/pkg/samplers"

// AssignSeeds gives a concrete seed to every sampler whose seed is still
// unassigned. Parameters are visited in declaration order and lessons in
// sequence order, each unassigned sampler receiving runSeed plus a running
// offset. Identical specs and run seed therefore always produce identical
// assignments, and user-specified seeds are never overwritten.
func AssignSeeds(specs []ParameterSpec, runSeed int64) {
	offset := int64(0)
	for _, spec := range specs {
		for _, lesson := range spec.Lessons {
			if lesson.Sampler.Seed == samplers.UnassignedSeed {
				lesson.Sampler.Seed = runSeed + offset
				offset++
			}
		}
	}
}
