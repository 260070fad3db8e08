// Package readiness grades how prepared a work item is for its next gate.
// The grade is advisory messaging for reviewers; gates never consult it.
package readiness

import (
	"sort"

	"github.com/gatewise/gatewise/internal/checklist"
	"github.com/gatewise/gatewise/internal/rolereq"
)

type Result struct {
	Grade   string   `json:"grade"`
	Reasons []string `json:"reasons"`
}

type Input struct {
	Contexts          []rolereq.Result
	Checklist         checklist.Result
	HumanReviewNeeded bool
}

func Evaluate(in Input) Result {
	missing := map[string]bool{}

	if in.HumanReviewNeeded {
		missing["human_review"] = true
	}

	if !in.Checklist.Compliant {
		missing["checklist"] = true
		for _, item := range in.Checklist.Missing {
			if item.Criticality == "high" {
				missing["critical_item"] = true
			}
		}
	}

	for _, ctx := range in.Contexts {
		if ctx.CompletenessPct < 100 {
			missing["context"] = true
		}
		if len(ctx.Desirable) > 0 {
			missing["desirable"] = true
		}
	}

	// Heuristic grading.
	grade := "A"
	switch {
	case missing["human_review"] || missing["critical_item"]:
		grade = "F"
	case missing["checklist"]:
		grade = "D"
	case missing["context"]:
		grade = "C"
	case missing["desirable"]:
		grade = "B"
	}

	reasons := []string{}
	for k, v := range missing {
		if v {
			reasons = append(reasons, "missing_"+k)
		}
	}
	sort.Strings(reasons)

	return Result{Grade: grade, Reasons: reasons}
}
