package entity

import "time"

// ApprovalRequestNotice asks the notification service to alert the approvers
// of a newly submitted (or reassigned) instance. Delivery mechanics are the
// notification service's concern.
type ApprovalRequestNotice struct {
	InstanceID   string       `json:"instance_id"`
	WorkflowType WorkflowType `json:"workflow_type"`
	RequestedBy  string       `json:"requested_by"`
	Priority     Priority     `json:"priority"`
	SLADeadline  time.Time    `json:"sla_deadline"`
	Amount       float64      `json:"amount"`
	Currency     string       `json:"currency,omitempty"`
	StepName     string       `json:"step_name,omitempty"`
}

// ActionNotice informs interested parties that a decision was recorded.
type ActionNotice struct {
	InstanceID   string        `json:"instance_id"`
	Action       HistoryAction `json:"action"`
	ApproverID   string        `json:"approver_id"`
	ApproverName string        `json:"approver_name,omitempty"`
	Comments     string        `json:"comments,omitempty"`
	Status       string        `json:"status"`
}

// EscalationNotice informs the escalation target that a deadline was missed.
type EscalationNotice struct {
	InstanceID      string    `json:"instance_id"`
	EscalationLevel int       `json:"escalation_level"`
	TargetUserID    string    `json:"target_user_id,omitempty"`
	TargetRoleID    string    `json:"target_role_id,omitempty"`
	Template        string    `json:"template,omitempty"`
	Priority        Priority  `json:"priority,omitempty"`
	SLADeadline     time.Time `json:"sla_deadline"`
}
