package repository

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/omc-erp/approval-engine/internal/application/port"
	"github.com/omc-erp/approval-engine/internal/domain/entity"
	"github.com/omc-erp/approval-engine/internal/infrastructure/persistence/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	schema, err := os.ReadFile("../../../../migrations/001_initial_schema.sql")
	if err != nil {
		t.Fatalf("failed to read schema: %v", err)
	}
	if _, err := db.Exec(string(schema)); err != nil {
		t.Fatalf("failed to apply schema: %v", err)
	}
	return db
}

func storedInstance(id, docID string) *entity.WorkflowInstance {
	now := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	return &entity.WorkflowInstance{
		InstanceID:         id,
		WorkflowID:         "WF_DELIVERY_STD",
		WorkflowType:       entity.WorkflowTypeDeliveryApproval,
		SourceDocumentID:   docID,
		SourceDocumentType: entity.DocTypeDailyDelivery,
		RequestedBy:        "USR_1",
		RequestedAt:        now,
		CurrentStepID:      "STEP_1",
		CurrentStepOrder:   1,
		Status:             entity.StatusPending,
		Priority:           entity.PriorityMedium,
		Metadata: entity.WorkflowMetadata{
			Amount:       50000,
			Currency:     "GHS",
			CustomerID:   "CUST_1",
			CustomerName: "Accra Fuels Ltd",
			ProductType:  entity.ProductAGO,
		},
		Definition: &entity.WorkflowDefinition{
			WorkflowID:   "WF_DELIVERY_STD",
			WorkflowType: entity.WorkflowTypeDeliveryApproval,
			IsActive:     true,
			Steps: []entity.ApprovalStep{
				{
					StepID: "STEP_1", StepName: "Operations Approval", StepOrder: 1,
					StepType: entity.StepTypeIndividual, RequiredApprovers: 1,
					Approvers: []entity.ApproverInfo{
						{ApproverID: "USR_OPS", ApproverType: entity.ApproverTypeUser},
					},
					TimeoutHours: 24,
				},
			},
		},
		SLADeadline: now.Add(24 * time.Hour),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestInstanceRepository_CreateAndGet(t *testing.T) {
	db := setupDB(t)
	repo := NewInstanceRepository(db, zap.NewNop())
	ctx := context.Background()

	inst := storedInstance("INST_1", "DEL_1")
	if err := repo.Create(ctx, inst); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if inst.Version != 1 {
		t.Errorf("version after create = %d, want 1", inst.Version)
	}

	got, err := repo.GetByID(ctx, "INST_1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got == nil {
		t.Fatal("GetByID() = nil for existing instance")
	}
	if got.Status != entity.StatusPending || got.CurrentStepID != "STEP_1" {
		t.Errorf("instance = %s at %s", got.Status, got.CurrentStepID)
	}
	if got.Metadata.Amount != 50000 || got.Metadata.CustomerName != "Accra Fuels Ltd" {
		t.Errorf("metadata roundtrip = %+v", got.Metadata)
	}
	if got.Definition == nil || len(got.Definition.Steps) != 1 {
		t.Fatalf("definition snapshot roundtrip = %+v", got.Definition)
	}
	if got.Definition.Steps[0].Approvers[0].ApproverID != "USR_OPS" {
		t.Errorf("approver roundtrip = %+v", got.Definition.Steps[0].Approvers)
	}
	if !got.RequestedAt.Equal(inst.RequestedAt) {
		t.Errorf("requested_at = %v, want %v", got.RequestedAt, inst.RequestedAt)
	}

	missing, err := repo.GetByID(ctx, "NOPE")
	if err != nil || missing != nil {
		t.Errorf("GetByID(missing) = %v, %v, want nil, nil", missing, err)
	}
}

func TestInstanceRepository_UpdateStateCAS(t *testing.T) {
	db := setupDB(t)
	repo := NewInstanceRepository(db, zap.NewNop())
	ctx := context.Background()

	inst := storedInstance("INST_1", "DEL_1")
	if err := repo.Create(ctx, inst); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	inst.Status = entity.StatusInProgress
	if err := repo.UpdateState(ctx, inst, 1); err != nil {
		t.Fatalf("UpdateState() error = %v", err)
	}
	if inst.Version != 2 {
		t.Errorf("version after update = %d, want 2", inst.Version)
	}

	// A stale version loses the race.
	err := repo.UpdateState(ctx, inst, 1)
	if !errors.Is(err, port.ErrConflict) {
		t.Errorf("UpdateState(stale) error = %v, want ErrConflict", err)
	}

	got, _ := repo.GetByID(ctx, "INST_1")
	if got.Status != entity.StatusInProgress || got.Version != 2 {
		t.Errorf("stored instance = %s v%d, want IN_PROGRESS v2", got.Status, got.Version)
	}
}

func TestInstanceRepository_GetActiveBySource(t *testing.T) {
	db := setupDB(t)
	repo := NewInstanceRepository(db, zap.NewNop())
	ctx := context.Background()

	inst := storedInstance("INST_1", "DEL_1")
	if err := repo.Create(ctx, inst); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := repo.GetActiveBySource(ctx, entity.DocTypeDailyDelivery, "DEL_1")
	if err != nil {
		t.Fatalf("GetActiveBySource() error = %v", err)
	}
	if got == nil || got.InstanceID != "INST_1" {
		t.Fatalf("GetActiveBySource() = %+v, want INST_1", got)
	}

	// Terminal instances stop blocking the document.
	inst.Status = entity.StatusApproved
	if err := repo.UpdateState(ctx, inst, 1); err != nil {
		t.Fatalf("UpdateState() error = %v", err)
	}
	got, err = repo.GetActiveBySource(ctx, entity.DocTypeDailyDelivery, "DEL_1")
	if err != nil || got != nil {
		t.Errorf("GetActiveBySource(after approval) = %v, %v, want nil, nil", got, err)
	}
}

func TestInstanceRepository_ListOverdue(t *testing.T) {
	db := setupDB(t)
	repo := NewInstanceRepository(db, zap.NewNop())
	ctx := context.Background()
	now := time.Date(2025, 6, 3, 12, 0, 0, 0, time.UTC)

	overdue := storedInstance("INST_OVERDUE", "DEL_1")
	overdue.SLADeadline = now.Add(-time.Hour)
	fresh := storedInstance("INST_FRESH", "DEL_2")
	fresh.SLADeadline = now.Add(time.Hour)
	done := storedInstance("INST_DONE", "DEL_3")
	done.SLADeadline = now.Add(-2 * time.Hour)
	done.Status = entity.StatusApproved

	for _, inst := range []*entity.WorkflowInstance{overdue, fresh, done} {
		if err := repo.Create(ctx, inst); err != nil {
			t.Fatalf("Create(%s) error = %v", inst.InstanceID, err)
		}
	}

	got, err := repo.ListOverdue(ctx, now)
	if err != nil {
		t.Fatalf("ListOverdue() error = %v", err)
	}
	if len(got) != 1 || got[0].InstanceID != "INST_OVERDUE" {
		t.Errorf("ListOverdue() = %d instances, want only INST_OVERDUE", len(got))
	}
}

func TestInstanceRepository_ListByStatuses(t *testing.T) {
	db := setupDB(t)
	repo := NewInstanceRepository(db, zap.NewNop())
	ctx := context.Background()

	a := storedInstance("INST_A", "DEL_1")
	b := storedInstance("INST_B", "DEL_2")
	b.Status = entity.StatusRejected
	c := storedInstance("INST_C", "DEL_3")
	c.WorkflowType = entity.WorkflowTypeUPPFClaim

	for _, inst := range []*entity.WorkflowInstance{a, b, c} {
		if err := repo.Create(ctx, inst); err != nil {
			t.Fatalf("Create(%s) error = %v", inst.InstanceID, err)
		}
	}

	got, err := repo.ListByStatuses(ctx, entity.ActiveStatuses, "")
	if err != nil {
		t.Fatalf("ListByStatuses() error = %v", err)
	}
	if len(got) != 2 {
		t.Errorf("active instances = %d, want 2", len(got))
	}

	got, _ = repo.ListByStatuses(ctx, entity.ActiveStatuses, entity.WorkflowTypeUPPFClaim)
	if len(got) != 1 || got[0].InstanceID != "INST_C" {
		t.Errorf("filtered instances = %d, want only INST_C", len(got))
	}
}

func TestDefinitionRepository(t *testing.T) {
	db := setupDB(t)
	repo := NewDefinitionRepository(db, zap.NewNop())
	ctx := context.Background()

	def := storedInstance("X", "Y").Definition
	if err := repo.Save(ctx, def); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := repo.GetByID(ctx, "WF_DELIVERY_STD")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got == nil || got.WorkflowID != "WF_DELIVERY_STD" || len(got.Steps) != 1 {
		t.Fatalf("GetByID() = %+v", got)
	}

	missing, err := repo.GetByID(ctx, "NOPE")
	if err != nil || missing != nil {
		t.Errorf("GetByID(missing) = %v, %v, want nil, nil", missing, err)
	}

	// Upsert replaces the payload and can deactivate the definition.
	def.IsActive = false
	def.WorkflowName = "Retired"
	if err := repo.Save(ctx, def); err != nil {
		t.Fatalf("Save(upsert) error = %v", err)
	}
	active, err := repo.GetActiveByType(ctx, entity.WorkflowTypeDeliveryApproval)
	if err != nil {
		t.Fatalf("GetActiveByType() error = %v", err)
	}
	if len(active) != 0 {
		t.Errorf("active definitions = %d, want 0 after deactivation", len(active))
	}

	// Structural validation guards the table.
	err = repo.Save(ctx, &entity.WorkflowDefinition{WorkflowID: "WF_EMPTY", WorkflowType: entity.WorkflowTypeDeliveryApproval})
	if !errors.Is(err, port.ErrValidation) {
		t.Errorf("Save(no steps) error = %v, want ErrValidation", err)
	}
}

func TestHistoryRepository(t *testing.T) {
	db := setupDB(t)
	repo := NewHistoryRepository(db, zap.NewNop())
	ctx := context.Background()
	now := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)

	first := &entity.ApprovalHistoryEntry{
		EntryID: "E1", InstanceID: "INST_1", StepID: "STEP_1", StepName: "Operations Approval",
		ApproverID: "USR_A", ActorType: entity.ActorHuman, Action: entity.HistoryApproved,
		ActionDate: now, Comments: "ok", Attachments: []string{"waybill.pdf"},
	}
	second := &entity.ApprovalHistoryEntry{
		EntryID: "E2", InstanceID: "INST_1", StepID: "STEP_1",
		ApproverID: "SYSTEM", ApproverName: "System", ActorType: entity.ActorSystem,
		Action: entity.HistoryEscalated, ActionDate: now.Add(time.Hour),
	}
	other := &entity.ApprovalHistoryEntry{
		EntryID: "E3", InstanceID: "INST_2",
		ApproverID: "USR_B", ActorType: entity.ActorHuman, Action: entity.HistoryRejected,
		ActionDate: now,
	}

	for _, e := range []*entity.ApprovalHistoryEntry{first, second, other} {
		if err := repo.Append(ctx, e); err != nil {
			t.Fatalf("Append(%s) error = %v", e.EntryID, err)
		}
	}

	entries, err := repo.ListByInstanceID(ctx, "INST_1")
	if err != nil {
		t.Fatalf("ListByInstanceID() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[0].EntryID != "E1" || entries[1].EntryID != "E2" {
		t.Errorf("order = %s, %s, want E1, E2", entries[0].EntryID, entries[1].EntryID)
	}
	if len(entries[0].Attachments) != 1 || entries[0].Attachments[0] != "waybill.pdf" {
		t.Errorf("attachments roundtrip = %v", entries[0].Attachments)
	}
	if entries[1].ActorType != entity.ActorSystem || entries[1].Action != entity.HistoryEscalated {
		t.Errorf("entry 2 = %s/%s", entries[1].ActorType, entries[1].Action)
	}

	// Invalid entries never reach the table.
	err = repo.Append(ctx, &entity.ApprovalHistoryEntry{EntryID: "E4", InstanceID: "INST_1"})
	if !errors.Is(err, port.ErrValidation) {
		t.Errorf("Append(invalid) error = %v, want ErrValidation", err)
	}
}

func TestWithTransaction_RollsBackOnError(t *testing.T) {
	db := setupDB(t)
	txManager := sqlite.NewDB(db, zap.NewNop())
	repo := NewInstanceRepository(db, zap.NewNop())
	ctx := context.Background()

	boom := errors.New("boom")
	err := txManager.WithTransaction(ctx, func(ctx context.Context) error {
		if err := repo.Create(ctx, storedInstance("INST_TX", "DEL_TX")); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithTransaction() error = %v, want boom", err)
	}

	got, err := repo.GetByID(ctx, "INST_TX")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got != nil {
		t.Error("rolled-back instance is still visible")
	}
}

func TestWithTransaction_CommitsAndNests(t *testing.T) {
	db := setupDB(t)
	txManager := sqlite.NewDB(db, zap.NewNop())
	repo := NewInstanceRepository(db, zap.NewNop())
	ctx := context.Background()

	err := txManager.WithTransaction(ctx, func(ctx context.Context) error {
		if err := repo.Create(ctx, storedInstance("INST_TX", "DEL_TX")); err != nil {
			return err
		}
		// Nested call joins the outer transaction and sees its writes.
		return txManager.WithTransaction(ctx, func(ctx context.Context) error {
			inner, err := repo.GetByID(ctx, "INST_TX")
			if err != nil {
				return err
			}
			if inner == nil {
				return errors.New("uncommitted write not visible inside transaction")
			}
			return nil
		})
	})
	if err != nil {
		t.Fatalf("WithTransaction() error = %v", err)
	}

	got, _ := repo.GetByID(ctx, "INST_TX")
	if got == nil {
		t.Error("committed instance not found")
	}
}
