package workflow

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/omc-erp/approval-engine/internal/application/port"
	"github.com/omc-erp/approval-engine/internal/domain/entity"
)

func bulkDefinition() *entity.WorkflowDefinition {
	return &entity.WorkflowDefinition{
		WorkflowID:   "WF_BULK_STD",
		WorkflowName: "Bulk Invoice Run Approval",
		WorkflowType: entity.WorkflowTypeBulkInvoice,
		IsActive:     true,
		Steps: []entity.ApprovalStep{
			{
				StepID:            "STEP_1",
				StepName:          "Finance Review",
				StepOrder:         1,
				StepType:          entity.StepTypeIndividual,
				RequiredApprovers: 1,
				Approvers: []entity.ApproverInfo{
					{ApproverID: "USR_FIN", ApproverType: entity.ApproverTypeUser},
				},
				TimeoutHours: 24,
			},
		},
	}
}

func TestSubmitBulkInvoiceRun(t *testing.T) {
	h := newTestHarness([]*entity.WorkflowDefinition{bulkDefinition()},
		deliveryDocument("DEL_1", 40000),
		deliveryDocument("DEL_2", 60000),
		deliveryDocument("DEL_3", 25000))
	ctx := context.Background()

	res, err := h.engine.SubmitBulkInvoiceRun(ctx, &BulkSubmitRequest{
		DeliveryIDs:   []string{"DEL_1", "DEL_2", "DEL_3"},
		RequestedBy:   "USR_BILLING",
		Justification: "month-end run",
	})
	if err != nil {
		t.Fatalf("SubmitBulkInvoiceRun() error = %v", err)
	}

	inst := res.Instance
	if inst.WorkflowType != entity.WorkflowTypeBulkInvoice {
		t.Errorf("workflow type = %s, want BULK_INVOICE_APPROVAL", inst.WorkflowType)
	}
	if inst.SourceDocumentType != entity.DocTypeBulkInvoiceRequest {
		t.Errorf("source document type = %s, want BULK_INVOICE_REQUEST", inst.SourceDocumentType)
	}
	if !strings.HasPrefix(inst.SourceDocumentID, "BULK_") {
		t.Errorf("source document id = %s, want BULK_ prefix", inst.SourceDocumentID)
	}
	if inst.Metadata.Amount != 125000 {
		t.Errorf("aggregate amount = %v, want 125000", inst.Metadata.Amount)
	}
	if !strings.HasPrefix(inst.Metadata.BusinessJustification, "Bulk invoice generation for 3 deliveries") {
		t.Errorf("justification = %q", inst.Metadata.BusinessJustification)
	}
	if inst.Metadata.RiskAssessment == nil {
		t.Fatal("bulk submission carries no risk assessment")
	}
	if inst.Metadata.RiskAssessment.RiskScore != 10 {
		t.Errorf("bulk risk score = %d, want base 10", inst.Metadata.RiskAssessment.RiskScore)
	}
	if inst.Status != entity.StatusPending {
		t.Errorf("status = %s, want PENDING", inst.Status)
	}
}

func TestSubmitBulkInvoiceRun_Validation(t *testing.T) {
	h := newTestHarness([]*entity.WorkflowDefinition{bulkDefinition()},
		deliveryDocument("DEL_1", 40000))
	ctx := context.Background()

	if _, err := h.engine.SubmitBulkInvoiceRun(ctx, &BulkSubmitRequest{
		RequestedBy: "USR_BILLING",
	}); !errors.Is(err, port.ErrValidation) {
		t.Errorf("empty delivery list error = %v, want ErrValidation", err)
	}

	if _, err := h.engine.SubmitBulkInvoiceRun(ctx, &BulkSubmitRequest{
		DeliveryIDs: []string{"DEL_1"},
	}); !errors.Is(err, port.ErrValidation) {
		t.Errorf("missing requester error = %v, want ErrValidation", err)
	}

	_, err := h.engine.SubmitBulkInvoiceRun(ctx, &BulkSubmitRequest{
		DeliveryIDs: []string{"DEL_1", "DEL_GONE", "DEL_ALSO_GONE"},
		RequestedBy: "USR_BILLING",
	})
	if !errors.Is(err, port.ErrValidation) {
		t.Fatalf("missing deliveries error = %v, want ErrValidation", err)
	}
	if !strings.Contains(err.Error(), "DEL_GONE") || !strings.Contains(err.Error(), "DEL_ALSO_GONE") {
		t.Errorf("error does not name the missing deliveries: %v", err)
	}
}

func TestBulkAct(t *testing.T) {
	h := newTestHarness([]*entity.WorkflowDefinition{singleStepDefinition()},
		deliveryDocument("DEL_1", 5000),
		deliveryDocument("DEL_2", 6000),
		deliveryDocument("DEL_3", 7000))
	ctx := context.Background()

	var ids []string
	for _, docID := range []string{"DEL_1", "DEL_2", "DEL_3"} {
		ids = append(ids, submitOne(t, h, docID).InstanceID)
	}

	// One instance is already rejected; the bulk approval must not touch it.
	if _, err := h.engine.Act(ctx, &ActionRequest{
		InstanceID: ids[1], Action: ActionReject, ApproverID: "USR_OPS",
	}); err != nil {
		t.Fatalf("Act(REJECT) error = %v", err)
	}

	result, err := h.engine.BulkAct(ctx, &BulkActionRequest{
		InstanceIDs: ids,
		Action:      ActionApprove,
		ApproverID:  "USR_OPS",
		Comments:    "batch cleared",
	})
	if err != nil {
		t.Fatalf("BulkAct() error = %v", err)
	}
	if result.Total != 3 || result.Successful != 2 || result.Failed != 1 {
		t.Fatalf("result = %+v, want total 3, 2 successful, 1 failed", result)
	}
	if len(result.Results) != 3 {
		t.Fatalf("results rows = %d, want 3", len(result.Results))
	}
	for _, row := range result.Results {
		if row.InstanceID == ids[1] {
			if row.Success || row.Error == "" {
				t.Errorf("rejected instance row = %+v, want failure with message", row)
			}
		} else if !row.Success || row.Status != entity.StatusApproved {
			t.Errorf("row = %+v, want success with APPROVED", row)
		}
	}
}

func TestBulkAct_Validation(t *testing.T) {
	h := newTestHarness(nil)
	ctx := context.Background()

	if _, err := h.engine.BulkAct(ctx, &BulkActionRequest{
		Action: ActionApprove, ApproverID: "USR_OPS",
	}); !errors.Is(err, port.ErrValidation) {
		t.Errorf("empty instance list error = %v, want ErrValidation", err)
	}

	if _, err := h.engine.BulkAct(ctx, &BulkActionRequest{
		InstanceIDs: []string{"X"}, Action: ActionDelegate, ApproverID: "USR_OPS",
	}); !errors.Is(err, port.ErrValidation) {
		t.Errorf("bulk delegate error = %v, want ErrValidation", err)
	}
}
