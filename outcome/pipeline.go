package outcome

import "fmt"

// ValidatePreservesPastStages enforces invariant 4: a pipeline_update
// may only rewrite the suffix of execution_plan after currentIndex;
// every stage at or before currentIndex must be byte-for-byte
// unchanged, and the new plan must be at least as long as
// currentIndex+1. Ported from the original's
// validate_pipeline_preserves_past_stages.
func ValidatePreservesPastStages(current []string, currentIndex int, updated []string) error {
	if currentIndex >= len(updated) {
		return fmt.Errorf("pipeline_update is too short: must retain all %d past stages", currentIndex+1)
	}
	for i := 0; i <= currentIndex; i++ {
		if i >= len(current) {
			break
		}
		if current[i] != updated[i] {
			return fmt.Errorf("pipeline_update changes past stage %d (%q -> %q)", i, current[i], updated[i])
		}
	}
	return nil
}

// StageIndex returns the index of stage within plan, or -1.
func StageIndex(plan []string, stage string) int {
	for i, s := range plan {
		if s == stage {
			return i
		}
	}
	return -1
}
