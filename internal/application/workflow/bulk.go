package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/omc-erp/approval-engine/internal/application/port"
	"github.com/omc-erp/approval-engine/internal/domain/entity"
	"github.com/omc-erp/approval-engine/internal/domain/event"
	"github.com/omc-erp/approval-engine/internal/domain/rules"
)

// SubmitBulkInvoiceRun starts one approval workflow authorizing invoice
// generation for a whole set of deliveries. The run is represented by a
// synthetic source document carrying the aggregate value; individual
// deliveries keep their own ids in the metadata justification trail.
func (e *engineImpl) SubmitBulkInvoiceRun(ctx context.Context, req *BulkSubmitRequest) (*SubmitResult, error) {
	if len(req.DeliveryIDs) == 0 {
		return nil, fmt.Errorf("%w: at least one delivery is required", port.ErrValidation)
	}
	if req.RequestedBy == "" {
		return nil, fmt.Errorf("%w: requested_by is required", port.ErrValidation)
	}
	if req.Priority != "" && !req.Priority.IsValid() {
		return nil, fmt.Errorf("%w: unknown priority %q", port.ErrValidation, req.Priority)
	}

	docs, err := e.documents.GetDocuments(ctx, entity.DocTypeDailyDelivery, req.DeliveryIDs)
	if err != nil {
		return nil, fmt.Errorf("fetching deliveries: %w", err)
	}
	if missing := missingIDs(req.DeliveryIDs, docs); len(missing) > 0 {
		return nil, fmt.Errorf("%w: deliveries not found: %s", port.ErrValidation, strings.Join(missing, ", "))
	}

	total := 0.0
	for _, d := range docs {
		total += d.TotalValue
	}
	assessment := e.assessor.AssessBulk(docs)

	now := e.now()
	bulkDocID := fmt.Sprintf("BULK_%d", now.UnixMilli())

	submitReq := &SubmitRequest{
		WorkflowType:       entity.WorkflowTypeBulkInvoice,
		SourceDocumentID:   bulkDocID,
		SourceDocumentType: entity.DocTypeBulkInvoiceRequest,
		RequestedBy:        req.RequestedBy,
		Priority:           req.Priority,
		Justification:      req.Justification,
	}

	rctx := rules.Context{Amount: total}
	def := e.resolver.Resolve(ctx, entity.WorkflowTypeBulkInvoice, rctx)
	if err := def.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", port.ErrValidation, err)
	}

	md := entity.WorkflowMetadata{
		Amount:                total,
		UrgentRequest:         false,
		BusinessJustification: bulkJustification(req, len(docs)),
		RiskAssessment:        assessment,
	}
	if len(docs) > 0 {
		md.Currency = docs[0].Currency
	}

	inst := e.newInstance(submitReq, def, md)

	e.logger.Info("Bulk invoice run submitted for approval",
		zap.String("instance_id", inst.InstanceID),
		zap.Int("delivery_count", len(docs)),
		zap.Float64("total_amount", total),
		zap.String("risk_level", string(assessment.RiskLevel)))

	return e.createInstance(ctx, inst, def, rctx)
}

// BulkAct applies one decision to many instances. Each instance runs in its
// own transaction; failures become result entries, never aborts.
func (e *engineImpl) BulkAct(ctx context.Context, req *BulkActionRequest) (*BulkActionResult, error) {
	if len(req.InstanceIDs) == 0 {
		return nil, fmt.Errorf("%w: at least one instance is required", port.ErrValidation)
	}
	if !req.Action.IsValid() {
		return nil, fmt.Errorf("%w: unknown action %q", port.ErrValidation, req.Action)
	}
	if req.Action == ActionDelegate {
		return nil, fmt.Errorf("%w: DELEGATE is not a bulk action", port.ErrValidation)
	}

	result := &BulkActionResult{Total: len(req.InstanceIDs)}
	for _, id := range req.InstanceIDs {
		inst, err := e.Act(ctx, &ActionRequest{
			InstanceID:   id,
			Action:       req.Action,
			ApproverID:   req.ApproverID,
			ApproverName: req.ApproverName,
			Roles:        req.Roles,
			Comments:     req.Comments,
		})
		if err != nil {
			result.Failed++
			result.Results = append(result.Results, BulkItemResult{
				InstanceID: id,
				Success:    false,
				Error:      bulkErrorMessage(err),
			})
			continue
		}
		result.Successful++
		result.Results = append(result.Results, BulkItemResult{
			InstanceID: id,
			Success:    true,
			Status:     inst.Status,
		})
	}

	e.logger.Info("Bulk approval action completed",
		zap.String("action", string(req.Action)),
		zap.String("approver_id", req.ApproverID),
		zap.Int("total", result.Total),
		zap.Int("successful", result.Successful),
		zap.Int("failed", result.Failed))

	e.emit(ctx, event.New(event.TypeBulkApprovalCompleted, "", "", map[string]interface{}{
		"action":      string(req.Action),
		"approver_id": req.ApproverID,
		"total":       result.Total,
		"successful":  result.Successful,
		"failed":      result.Failed,
	}))
	return result, nil
}

func missingIDs(requested []string, found []*entity.SourceDocument) []string {
	have := make(map[string]bool, len(found))
	for _, d := range found {
		have[d.ID] = true
	}
	var missing []string
	for _, id := range requested {
		if !have[id] {
			missing = append(missing, id)
		}
	}
	return missing
}

func bulkJustification(req *BulkSubmitRequest, count int) string {
	j := fmt.Sprintf("Bulk invoice generation for %d deliveries", count)
	if req.Justification != "" {
		j += ": " + req.Justification
	}
	return j
}

// bulkErrorMessage keeps the sentinel classification readable in a result
// row without leaking wrapped internals.
func bulkErrorMessage(err error) string {
	switch {
	case errors.Is(err, port.ErrNotFound):
		return "instance not found"
	case errors.Is(err, port.ErrConflict):
		return "conflicting decision"
	case errors.Is(err, port.ErrForbidden):
		return "not authorized for current step"
	case errors.Is(err, port.ErrInvalidState):
		return "instance not in an actionable state"
	case errors.Is(err, port.ErrValidation):
		return "invalid request for this instance"
	default:
		return err.Error()
	}
}
