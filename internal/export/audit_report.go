// Package export builds regulator-facing artifacts from workflow data.
package export

import (
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/omc-erp/approval-engine/internal/application/workflow"
	"github.com/omc-erp/approval-engine/internal/domain/entity"
)

const (
	summarySheet = "Summary"
	historySheet = "Approval History"
)

// AuditReporter builds an xlsx audit report for one workflow instance:
// a summary sheet with the transaction, risk and compliance snapshot, and a
// history sheet with the full decision trail.
type AuditReporter struct {
	engine workflow.Engine
	logger *zap.Logger
}

// NewAuditReporter creates an audit reporter over the engine.
func NewAuditReporter(engine workflow.Engine, logger *zap.Logger) *AuditReporter {
	return &AuditReporter{engine: engine, logger: logger}
}

// Build writes the audit workbook for the instance to w.
func (r *AuditReporter) Build(ctx context.Context, instanceID string, w io.Writer) error {
	inst, err := r.engine.GetInstance(ctx, instanceID)
	if err != nil {
		return err
	}
	entries, err := r.engine.History(ctx, instanceID)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}
	if _, err := f.NewSheet(historySheet); err != nil {
		return fmt.Errorf("failed to create history sheet: %w", err)
	}

	r.fillSummary(f, inst)
	r.fillHistory(f, entries)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}

	r.logger.Info("Audit report built",
		zap.String("instance_id", instanceID),
		zap.Int("history_entries", len(entries)))
	return nil
}

func (r *AuditReporter) fillSummary(f *excelize.File, inst *entity.WorkflowInstance) {
	rows := [][2]interface{}{
		{"Instance ID", inst.InstanceID},
		{"Workflow", inst.WorkflowID},
		{"Workflow Type", string(inst.WorkflowType)},
		{"Source Document", fmt.Sprintf("%s (%s)", inst.SourceDocumentID, inst.SourceDocumentType)},
		{"Status", inst.Status},
		{"Priority", string(inst.Priority)},
		{"Requested By", inst.RequestedBy},
		{"Requested At", inst.RequestedAt.Format("2006-01-02 15:04:05")},
		{"Amount", inst.Metadata.Amount},
		{"Currency", inst.Metadata.Currency},
		{"Customer", inst.Metadata.CustomerName},
		{"Supplier", inst.Metadata.SupplierName},
		{"Product", inst.Metadata.ProductType},
		{"SLA Deadline", inst.SLADeadline.Format("2006-01-02 15:04:05")},
		{"Escalation Level", inst.EscalationLevel},
	}

	if ra := inst.Metadata.RiskAssessment; ra != nil {
		rows = append(rows,
			[2]interface{}{"Risk Level", string(ra.RiskLevel)},
			[2]interface{}{"Risk Score", ra.RiskScore},
		)
		for i, m := range ra.MitigationActions {
			rows = append(rows, [2]interface{}{fmt.Sprintf("Mitigation %d", i+1), m})
		}
	}
	if c := inst.Metadata.Compliance; c != nil {
		rows = append(rows,
			[2]interface{}{"NPA Permit", c.NPAPermitNumber},
			[2]interface{}{"Customs Entry", c.CustomsEntryNumber},
			[2]interface{}{"UPPF Eligible", c.UPPFEligible},
			[2]interface{}{"Compliance Score", c.ComplianceScore},
			[2]interface{}{"Environmental Impact", c.EnvironmentalImpact},
		)
	}
	if inst.ApprovedBy != "" {
		rows = append(rows, [2]interface{}{"Decided By", inst.ApprovedBy})
	}
	if inst.ApprovalDate != nil {
		rows = append(rows, [2]interface{}{"Decision Date", inst.ApprovalDate.Format("2006-01-02 15:04:05")})
	}

	for i, kv := range rows {
		r.setCell(f, summarySheet, fmt.Sprintf("A%d", i+1), kv[0])
		r.setCell(f, summarySheet, fmt.Sprintf("B%d", i+1), kv[1])
	}
}

func (r *AuditReporter) fillHistory(f *excelize.File, entries []*entity.ApprovalHistoryEntry) {
	headers := []string{"#", "Action", "Actor", "Approver", "Step", "Date", "Comments", "Delegated To"}
	for i, h := range headers {
		col, _ := excelize.ColumnNumberToName(i + 1)
		r.setCell(f, historySheet, col+"1", h)
	}

	for i, e := range entries {
		row := i + 2
		values := []interface{}{
			i + 1,
			string(e.Action),
			string(e.ActorType),
			e.ApproverID,
			e.StepName,
			e.ActionDate.Format("2006-01-02 15:04:05"),
			e.Comments,
			e.DelegatedTo,
		}
		for j, v := range values {
			col, _ := excelize.ColumnNumberToName(j + 1)
			r.setCell(f, historySheet, fmt.Sprintf("%s%d", col, row), v)
		}
	}
}

// setCell sets a cell value, logging rather than failing on a bad reference.
func (r *AuditReporter) setCell(f *excelize.File, sheet, cell string, value interface{}) {
	if err := f.SetCellValue(sheet, cell, value); err != nil {
		r.logger.Warn("Failed to set cell value",
			zap.String("sheet", sheet),
			zap.String("cell", cell),
			zap.Error(err))
	}
}
