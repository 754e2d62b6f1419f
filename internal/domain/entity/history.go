package entity

import (
	"fmt"
	"time"
)

// ActorType tags who authored a history entry. Only the escalation sweeper
// writes SYSTEM entries; every API action is HUMAN.
type ActorType string

const (
	ActorHuman  ActorType = "HUMAN"
	ActorSystem ActorType = "SYSTEM"
)

// HistoryAction is the recorded outcome of one decision on an instance.
type HistoryAction string

const (
	HistoryApproved       HistoryAction = "APPROVED"
	HistoryRejected       HistoryAction = "REJECTED"
	HistoryDelegated      HistoryAction = "DELEGATED"
	HistoryEscalated      HistoryAction = "ESCALATED"
	HistoryTimeout        HistoryAction = "TIMEOUT"
	HistorySystemApproved HistoryAction = "SYSTEM_APPROVED"
	HistoryCancelled      HistoryAction = "CANCELLED"
	HistoryInfoRequested  HistoryAction = "INFO_REQUESTED"
)

// ApprovalHistoryEntry is one immutable, append-only audit record. The
// ordered entry list is the sole audit trail: replaying it through the
// transition rules must reproduce the instance's status and step.
type ApprovalHistoryEntry struct {
	EntryID            string        `json:"entry_id"`
	InstanceID         string        `json:"instance_id"`
	StepID             string        `json:"step_id,omitempty"`
	StepName           string        `json:"step_name,omitempty"`
	ApproverID         string        `json:"approver_id"`
	ApproverName       string        `json:"approver_name,omitempty"`
	ActorType          ActorType     `json:"actor_type"`
	Action             HistoryAction `json:"action"`
	ActionDate         time.Time     `json:"action_date"`
	Comments           string        `json:"comments,omitempty"`
	Attachments        []string      `json:"attachments,omitempty"`
	DelegatedTo        string        `json:"delegated_to,omitempty"`
	OriginalApproverID string        `json:"original_approver_id,omitempty"`
}

// NewHumanEntry builds a history entry for an approver-originated action.
func NewHumanEntry(instanceID string, step *ApprovalStep, approverID, approverName string, action HistoryAction, at time.Time) *ApprovalHistoryEntry {
	e := &ApprovalHistoryEntry{
		InstanceID:   instanceID,
		ApproverID:   approverID,
		ApproverName: approverName,
		ActorType:    ActorHuman,
		Action:       action,
		ActionDate:   at,
	}
	if step != nil {
		e.StepID = step.StepID
		e.StepName = step.StepName
	}
	return e
}

// NewSystemEntry builds a history entry authored by the engine itself
// (auto-approval, escalation, timeout).
func NewSystemEntry(instanceID string, step *ApprovalStep, action HistoryAction, comments string, at time.Time) *ApprovalHistoryEntry {
	e := &ApprovalHistoryEntry{
		InstanceID:   instanceID,
		ApproverID:   "SYSTEM",
		ApproverName: "System",
		ActorType:    ActorSystem,
		Action:       action,
		ActionDate:   at,
		Comments:     comments,
	}
	if step != nil {
		e.StepID = step.StepID
		e.StepName = step.StepName
	}
	return e
}

// Validate checks the entry invariants before it is appended.
func (e *ApprovalHistoryEntry) Validate() error {
	if e.InstanceID == "" {
		return fmt.Errorf("history entry has no instance id")
	}
	if e.ApproverID == "" {
		return fmt.Errorf("history entry has no approver id")
	}
	switch e.ActorType {
	case ActorHuman, ActorSystem:
	default:
		return fmt.Errorf("invalid actor type: %s", e.ActorType)
	}
	switch e.Action {
	case HistoryApproved, HistoryRejected, HistoryDelegated, HistoryEscalated,
		HistoryTimeout, HistorySystemApproved, HistoryCancelled, HistoryInfoRequested:
	default:
		return fmt.Errorf("invalid history action: %s", e.Action)
	}
	if e.ActorType == ActorHuman && (e.Action == HistorySystemApproved || e.Action == HistoryTimeout || e.Action == HistoryEscalated) {
		return fmt.Errorf("action %s requires a system actor", e.Action)
	}
	if e.ActionDate.IsZero() {
		return fmt.Errorf("history entry has no action date")
	}
	return nil
}
