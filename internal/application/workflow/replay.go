package workflow

import (
	"sort"

	"github.com/omc-erp/approval-engine/internal/domain/entity"
	"github.com/omc-erp/approval-engine/internal/domain/rules"
)

// ReplayResult is the instance position derived from the audit trail.
type ReplayResult struct {
	Status    string
	StepID    string
	StepOrder int
}

// Replay derives an instance's status and current step by running the
// ordered history through the transition rules. The engine computes every
// transition this way: the persisted status is always the replay of the
// persisted history, so the audit trail can never disagree with the
// instance row.
//
// Rules, in entry order:
//   - the instance starts PENDING at the first applicable step;
//   - CANCELLED and SYSTEM_APPROVED are terminal where they stand;
//   - REJECTED terminates unless the step is optional with a SKIP policy,
//     in which case the instance advances past it; a system-authored
//     rejection (escalation auto-reject) always terminates;
//   - APPROVED counts distinct approvers per step; on quorum the instance
//     advances to the next applicable step, or terminal APPROVED after the
//     last one;
//   - DELEGATED and INFO_REQUESTED mark the instance IN_PROGRESS;
//   - ESCALATED and TIMEOUT set the matching alert status.
//
// Step applicability is the step's condition list evaluated against the
// metadata snapshot; a step whose conditions fail to evaluate stays
// applicable rather than being silently skipped.
func Replay(def *entity.WorkflowDefinition, md *entity.WorkflowMetadata, entries []*entity.ApprovalHistoryEntry) ReplayResult {
	rctx := rules.ContextFromMetadata(md)

	cur := firstApplicableStep(def, rctx)
	if cur == nil {
		return ReplayResult{Status: entity.StatusApproved}
	}

	res := ReplayResult{Status: entity.StatusPending, StepID: cur.StepID, StepOrder: cur.StepOrder}
	approvals := make(map[int]map[string]bool)

	for _, e := range entries {
		switch e.Action {
		case entity.HistoryCancelled:
			res.Status = entity.StatusCancelled
			return res

		case entity.HistorySystemApproved:
			res.Status = entity.StatusApproved
			return res

		case entity.HistoryRejected:
			step := def.Step(e.StepID)
			if step == nil {
				step = cur
			}
			if e.ActorType == entity.ActorSystem || step.RejectionTerminates() {
				res.Status = entity.StatusRejected
				return res
			}
			next := nextApplicableStep(def, rctx, step.StepOrder)
			if next == nil {
				res.Status = entity.StatusApproved
				return res
			}
			cur = next
			res.Status = entity.StatusInProgress
			res.StepID, res.StepOrder = cur.StepID, cur.StepOrder

		case entity.HistoryApproved:
			if approvals[cur.StepOrder] == nil {
				approvals[cur.StepOrder] = make(map[string]bool)
			}
			approvals[cur.StepOrder][e.ApproverID] = true
			if len(approvals[cur.StepOrder]) >= cur.RequiredApprovers {
				next := nextApplicableStep(def, rctx, cur.StepOrder)
				if next == nil {
					res.Status = entity.StatusApproved
					return res
				}
				cur = next
				res.StepID, res.StepOrder = cur.StepID, cur.StepOrder
			}
			res.Status = entity.StatusInProgress

		case entity.HistoryDelegated, entity.HistoryInfoRequested:
			res.Status = entity.StatusInProgress

		case entity.HistoryEscalated:
			res.Status = entity.StatusEscalated

		case entity.HistoryTimeout:
			res.Status = entity.StatusTimeout
		}
	}
	return res
}

// firstApplicableStep returns the lowest-ordered step whose conditions hold.
func firstApplicableStep(def *entity.WorkflowDefinition, rctx rules.Context) *entity.ApprovalStep {
	return nextApplicableStep(def, rctx, minOrder(def)-1)
}

// nextApplicableStep returns the next step after the given order whose
// conditions hold against the context, or nil past the last gate.
func nextApplicableStep(def *entity.WorkflowDefinition, rctx rules.Context, afterOrder int) *entity.ApprovalStep {
	steps := def.SortedSteps()
	for i := range steps {
		s := &steps[i]
		if s.StepOrder <= afterOrder {
			continue
		}
		if stepApplies(s, rctx) {
			return def.Step(s.StepID)
		}
	}
	return nil
}

// stepApplies evaluates a step's gating conditions. An evaluation error
// keeps the step applicable: an unreviewable gate must not vanish.
func stepApplies(s *entity.ApprovalStep, rctx rules.Context) bool {
	if len(s.Conditions) == 0 {
		return true
	}
	ok, err := rules.Evaluate(s.Conditions, rctx)
	if err != nil {
		return true
	}
	return ok
}

func minOrder(def *entity.WorkflowDefinition) int {
	orders := make([]int, 0, len(def.Steps))
	for i := range def.Steps {
		orders = append(orders, def.Steps[i].StepOrder)
	}
	sort.Ints(orders)
	if len(orders) == 0 {
		return 0
	}
	return orders[0]
}
