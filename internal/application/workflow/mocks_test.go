package workflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/omc-erp/approval-engine/internal/application/port"
	"github.com/omc-erp/approval-engine/internal/domain/entity"
)

// Mock repositories and gateways backed by in-memory maps.

type mockDefinitionRepo struct {
	defs    []*entity.WorkflowDefinition
	getErr  error
	saveErr error
}

func (m *mockDefinitionRepo) GetByID(ctx context.Context, workflowID string) (*entity.WorkflowDefinition, error) {
	for _, d := range m.defs {
		if d.WorkflowID == workflowID {
			return d, nil
		}
	}
	return nil, nil
}

func (m *mockDefinitionRepo) GetActiveByType(ctx context.Context, t entity.WorkflowType) ([]*entity.WorkflowDefinition, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	var out []*entity.WorkflowDefinition
	for _, d := range m.defs {
		if d.WorkflowType == t && d.IsActive {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *mockDefinitionRepo) Save(ctx context.Context, def *entity.WorkflowDefinition) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.defs = append(m.defs, def)
	return nil
}

type mockInstanceRepo struct {
	mu        sync.Mutex
	instances map[string]*entity.WorkflowInstance
}

func newMockInstanceRepo() *mockInstanceRepo {
	return &mockInstanceRepo{instances: make(map[string]*entity.WorkflowInstance)}
}

func (m *mockInstanceRepo) Create(ctx context.Context, inst *entity.WorkflowInstance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.instances[inst.InstanceID]; ok {
		return fmt.Errorf("%w: duplicate instance %s", port.ErrConflict, inst.InstanceID)
	}
	inst.Version = 1
	m.instances[inst.InstanceID] = inst
	return nil
}

func (m *mockInstanceRepo) GetByID(ctx context.Context, instanceID string) (*entity.WorkflowInstance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.instances[instanceID], nil
}

func (m *mockInstanceRepo) GetActiveBySource(ctx context.Context, docType, docID string) (*entity.WorkflowInstance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, inst := range m.instances {
		if inst.SourceDocumentType == docType && inst.SourceDocumentID == docID && !inst.IsTerminal() {
			return inst, nil
		}
	}
	return nil, nil
}

func (m *mockInstanceRepo) UpdateState(ctx context.Context, inst *entity.WorkflowInstance, expectedVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.instances[inst.InstanceID]
	if !ok {
		return fmt.Errorf("%w: instance %s", port.ErrNotFound, inst.InstanceID)
	}
	if stored.Version != expectedVersion {
		return fmt.Errorf("%w: instance %s version %d, expected %d",
			port.ErrConflict, inst.InstanceID, stored.Version, expectedVersion)
	}
	inst.Version = expectedVersion + 1
	m.instances[inst.InstanceID] = inst
	return nil
}

func (m *mockInstanceRepo) ListByStatuses(ctx context.Context, statuses []string, workflowType entity.WorkflowType) ([]*entity.WorkflowInstance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.WorkflowInstance
	for _, inst := range m.instances {
		if workflowType != "" && inst.WorkflowType != workflowType {
			continue
		}
		for _, s := range statuses {
			if inst.Status == s {
				out = append(out, inst)
				break
			}
		}
	}
	return out, nil
}

func (m *mockInstanceRepo) ListOverdue(ctx context.Context, now time.Time) ([]*entity.WorkflowInstance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.WorkflowInstance
	for _, inst := range m.instances {
		if inst.IsTerminal() {
			continue
		}
		if inst.SLADeadline.Before(now) {
			out = append(out, inst)
		}
	}
	return out, nil
}

type mockHistoryRepo struct {
	mu      sync.Mutex
	entries map[string][]*entity.ApprovalHistoryEntry
}

func newMockHistoryRepo() *mockHistoryRepo {
	return &mockHistoryRepo{entries: make(map[string][]*entity.ApprovalHistoryEntry)}
}

func (m *mockHistoryRepo) Append(ctx context.Context, e *entity.ApprovalHistoryEntry) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("%w: %v", port.ErrValidation, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[e.InstanceID] = append(m.entries[e.InstanceID], e)
	return nil
}

func (m *mockHistoryRepo) ListByInstanceID(ctx context.Context, instanceID string) ([]*entity.ApprovalHistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*entity.ApprovalHistoryEntry, len(m.entries[instanceID]))
	copy(out, m.entries[instanceID])
	return out, nil
}

// nopTxManager runs the callback directly; the mock repositories commit
// every write immediately.
type nopTxManager struct{}

func (nopTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type mockDocumentGateway struct {
	mu       sync.Mutex
	docs     map[string]*entity.SourceDocument
	outcomes []*entity.ApprovalOutcome
}

func newMockDocumentGateway(docs ...*entity.SourceDocument) *mockDocumentGateway {
	g := &mockDocumentGateway{docs: make(map[string]*entity.SourceDocument)}
	for _, d := range docs {
		g.docs[d.Type+"/"+d.ID] = d
	}
	return g
}

func (g *mockDocumentGateway) GetDocument(ctx context.Context, docType, docID string) (*entity.SourceDocument, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	doc, ok := g.docs[docType+"/"+docID]
	if !ok {
		return nil, fmt.Errorf("%w: document %s/%s", port.ErrNotFound, docType, docID)
	}
	return doc, nil
}

func (g *mockDocumentGateway) GetDocuments(ctx context.Context, docType string, docIDs []string) ([]*entity.SourceDocument, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []*entity.SourceDocument
	for _, id := range docIDs {
		if doc, ok := g.docs[docType+"/"+id]; ok {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (g *mockDocumentGateway) RecordOutcome(ctx context.Context, docType, docID string, outcome *entity.ApprovalOutcome) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.outcomes = append(g.outcomes, outcome)
	return nil
}

type mockNotificationGateway struct {
	mu          sync.Mutex
	requested   []*entity.ApprovalRequestNotice
	processed   []*entity.ActionNotice
	escalations []*entity.EscalationNotice
}

func (g *mockNotificationGateway) ApprovalRequested(ctx context.Context, n *entity.ApprovalRequestNotice) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requested = append(g.requested, n)
	return nil
}

func (g *mockNotificationGateway) ActionProcessed(ctx context.Context, n *entity.ActionNotice) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.processed = append(g.processed, n)
	return nil
}

func (g *mockNotificationGateway) EscalationRaised(ctx context.Context, n *entity.EscalationNotice) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.escalations = append(g.escalations, n)
	return nil
}

// testClock is a settable time source.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(start time.Time) *testClock {
	return &testClock{now: start}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// testHarness bundles an engine with its mock collaborators.
type testHarness struct {
	engine    Engine
	defs      *mockDefinitionRepo
	instances *mockInstanceRepo
	history   *mockHistoryRepo
	documents *mockDocumentGateway
	notifier  *mockNotificationGateway
	clock     *testClock
}

func newTestHarness(defs []*entity.WorkflowDefinition, docs ...*entity.SourceDocument) *testHarness {
	h := &testHarness{
		defs:      &mockDefinitionRepo{defs: defs},
		instances: newMockInstanceRepo(),
		history:   newMockHistoryRepo(),
		documents: newMockDocumentGateway(docs...),
		notifier:  &mockNotificationGateway{},
		clock:     newTestClock(time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)),
	}
	h.engine = NewEngine(
		h.defs, h.instances, h.history, nopTxManager{},
		h.documents, h.notifier, zap.NewNop(),
		WithClock(h.clock.Now),
	)
	return h
}

// Shared fixture builders.

func singleStepDefinition() *entity.WorkflowDefinition {
	return &entity.WorkflowDefinition{
		WorkflowID:   "WF_DELIVERY_STD",
		WorkflowName: "Standard Delivery Approval",
		WorkflowType: entity.WorkflowTypeDeliveryApproval,
		IsActive:     true,
		Steps: []entity.ApprovalStep{
			{
				StepID:            "STEP_1",
				StepName:          "Operations Approval",
				StepOrder:         1,
				StepType:          entity.StepTypeIndividual,
				RequiredApprovers: 1,
				Approvers: []entity.ApproverInfo{
					{ApproverID: "USR_OPS", ApproverType: entity.ApproverTypeUser, ApproverName: "Ops Lead", DelegationEnabled: true},
				},
				TimeoutHours: 24,
			},
		},
	}
}

func twoStepDefinition() *entity.WorkflowDefinition {
	return &entity.WorkflowDefinition{
		WorkflowID:   "WF_DELIVERY_DUAL",
		WorkflowName: "Dual Control Delivery Approval",
		WorkflowType: entity.WorkflowTypeDeliveryApproval,
		IsActive:     true,
		Steps: []entity.ApprovalStep{
			{
				StepID:            "STEP_1",
				StepName:          "Operations Review",
				StepOrder:         1,
				StepType:          entity.StepTypeGroup,
				RequiredApprovers: 2,
				Approvers: []entity.ApproverInfo{
					{ApproverID: "USR_A", ApproverType: entity.ApproverTypeUser},
					{ApproverID: "USR_B", ApproverType: entity.ApproverTypeUser},
					{ApproverID: "USR_C", ApproverType: entity.ApproverTypeUser},
				},
				TimeoutHours: 24,
			},
			{
				StepID:            "STEP_2",
				StepName:          "Finance Approval",
				StepOrder:         2,
				StepType:          entity.StepTypeIndividual,
				RequiredApprovers: 1,
				Approvers: []entity.ApproverInfo{
					{ApproverID: "USR_FIN", ApproverType: entity.ApproverTypeUser},
				},
				TimeoutHours: 48,
			},
		},
	}
}

func deliveryDocument(id string, value float64) *entity.SourceDocument {
	return &entity.SourceDocument{
		ID:                 id,
		Type:               entity.DocTypeDailyDelivery,
		Number:             "DD-" + id,
		TotalValue:         value,
		Currency:           "GHS",
		CustomerID:         "CUST_1",
		CustomerName:       "Accra Fuels Ltd",
		ProductType:        entity.ProductAGO,
		NPAPermitNumber:    "NPA-2025-001",
		CustomsEntryNumber: "CST-2025-001",
		ComplianceScore:    92,
	}
}
