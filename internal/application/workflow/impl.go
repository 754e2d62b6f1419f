package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/omc-erp/approval-engine/internal/application/dispatcher"
	"github.com/omc-erp/approval-engine/internal/application/port"
	"github.com/omc-erp/approval-engine/internal/domain/entity"
	"github.com/omc-erp/approval-engine/internal/domain/event"
	"github.com/omc-erp/approval-engine/internal/domain/risk"
	"github.com/omc-erp/approval-engine/internal/domain/rules"
	wf "github.com/omc-erp/approval-engine/internal/domain/workflow"
)

// defaultSLAHours applies when neither the step nor the definition sets a
// timeout: two business days.
const defaultSLAHours = 48

type engineImpl struct {
	definitions port.DefinitionRepository
	instances   port.InstanceRepository
	history     port.HistoryRepository
	tx          port.TransactionManager
	documents   port.DocumentGateway
	notifier    port.NotificationGateway

	resolver   *DefinitionResolver
	assessor   *risk.Assessor
	dispatcher dispatcher.Dispatcher
	logger     *zap.Logger

	// now is swappable for tests.
	now func() time.Time

	slaHours int
}

// EngineOption configures optional engine collaborators.
type EngineOption func(*engineImpl)

// WithDispatcher attaches an event dispatcher. Without one the engine still
// works; events are simply not emitted.
func WithDispatcher(d dispatcher.Dispatcher) EngineOption {
	return func(e *engineImpl) { e.dispatcher = d }
}

// WithClock overrides the engine's time source.
func WithClock(now func() time.Time) EngineOption {
	return func(e *engineImpl) { e.now = now }
}

// WithRiskConfig overrides the risk scoring tables.
func WithRiskConfig(cfg risk.Config) EngineOption {
	return func(e *engineImpl) { e.assessor = risk.NewAssessor(cfg) }
}

// WithDefaultSLA overrides the fallback SLA in hours.
func WithDefaultSLA(hours int) EngineOption {
	return func(e *engineImpl) {
		if hours > 0 {
			e.slaHours = hours
		}
	}
}

// NewEngine wires the approval engine from its ports.
func NewEngine(
	definitions port.DefinitionRepository,
	instances port.InstanceRepository,
	history port.HistoryRepository,
	tx port.TransactionManager,
	documents port.DocumentGateway,
	notifier port.NotificationGateway,
	logger *zap.Logger,
	opts ...EngineOption,
) Engine {
	e := &engineImpl{
		definitions: definitions,
		instances:   instances,
		history:     history,
		tx:          tx,
		documents:   documents,
		notifier:    notifier,
		resolver:    NewDefinitionResolver(definitions, logger),
		assessor:    risk.NewAssessor(risk.DefaultConfig()),
		logger:      logger,
		now:         time.Now,
		slaHours:    defaultSLAHours,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *engineImpl) Submit(ctx context.Context, req *SubmitRequest) (*SubmitResult, error) {
	if err := validateSubmit(req); err != nil {
		return nil, err
	}

	doc, err := e.documents.GetDocument(ctx, req.SourceDocumentType, req.SourceDocumentID)
	if err != nil {
		return nil, fmt.Errorf("fetching source document %s: %w", req.SourceDocumentID, err)
	}

	active, err := e.instances.GetActiveBySource(ctx, req.SourceDocumentType, req.SourceDocumentID)
	if err != nil {
		return nil, fmt.Errorf("checking active instance: %w", err)
	}
	if active != nil {
		return nil, fmt.Errorf("%w: document %s already has active workflow %s",
			port.ErrConflict, req.SourceDocumentID, active.InstanceID)
	}

	rctx := rules.ContextFromDocument(doc)
	def := e.resolver.Resolve(ctx, req.WorkflowType, rctx)
	if err := def.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", port.ErrValidation, err)
	}

	assessment := e.assessor.Assess(doc)
	inst := e.newInstance(req, def, metadataFromDocument(doc, req, assessment))

	return e.createInstance(ctx, inst, def, rctx)
}

// createInstance persists a freshly built instance, applying the
// auto-approval short circuit. Shared by Submit and SubmitBulkInvoiceRun.
func (e *engineImpl) createInstance(ctx context.Context, inst *entity.WorkflowInstance, def *entity.WorkflowDefinition, rctx rules.Context) (*SubmitResult, error) {
	now := e.now()

	if rule := matchAutoApproval(def, inst.WorkflowType, rctx); rule != nil {
		inst.Status = entity.StatusApproved
		inst.ApprovedBy = "SYSTEM"
		inst.ApprovalDate = &now
		inst.ApprovalComments = "Auto-approved: " + rule.RuleName

		entry := entity.NewSystemEntry(inst.InstanceID, nil, entity.HistorySystemApproved,
			"Auto-approved by rule "+rule.RuleName, now)
		entry.EntryID = uuid.NewString()

		err := e.tx.WithTransaction(ctx, func(ctx context.Context) error {
			if err := e.instances.Create(ctx, inst); err != nil {
				return err
			}
			return e.history.Append(ctx, entry)
		})
		if err != nil {
			return nil, err
		}

		e.logger.Info("Workflow auto-approved",
			zap.String("instance_id", inst.InstanceID),
			zap.String("rule_id", rule.RuleID),
			zap.String("source_document_id", inst.SourceDocumentID))

		e.recordOutcome(ctx, inst)
		e.emit(ctx, event.New(event.TypeAutoApproved, inst.InstanceID, inst.SourceDocumentID, map[string]interface{}{
			"workflow_type": string(inst.WorkflowType),
			"rule_id":       rule.RuleID,
		}))
		return &SubmitResult{Instance: inst, AutoApproved: true}, nil
	}

	// Position at the first applicable step. A definition whose every gate
	// is condition-skipped for this transaction has nothing to approve.
	start := firstApplicableStep(def, rctx)
	if start == nil {
		return nil, fmt.Errorf("%w: workflow %s has no applicable approval step", port.ErrValidation, def.WorkflowID)
	}
	inst.CurrentStepID = start.StepID
	inst.CurrentStepOrder = start.StepOrder
	inst.SLADeadline = now.Add(e.stepSLA(start))

	if err := e.tx.WithTransaction(ctx, func(ctx context.Context) error {
		return e.instances.Create(ctx, inst)
	}); err != nil {
		return nil, err
	}

	e.logger.Info("Workflow submitted",
		zap.String("instance_id", inst.InstanceID),
		zap.String("workflow_type", string(inst.WorkflowType)),
		zap.String("source_document_id", inst.SourceDocumentID),
		zap.String("first_step", start.StepName))

	e.notify(ctx, func(ctx context.Context) error {
		return e.notifier.ApprovalRequested(ctx, &entity.ApprovalRequestNotice{
			InstanceID:   inst.InstanceID,
			WorkflowType: inst.WorkflowType,
			RequestedBy:  inst.RequestedBy,
			Priority:     inst.Priority,
			SLADeadline:  inst.SLADeadline,
			Amount:       inst.Metadata.Amount,
			Currency:     inst.Metadata.Currency,
			StepName:     start.StepName,
		})
	})

	evtType := event.TypeSubmittedForApproval
	if inst.WorkflowType == entity.WorkflowTypeBulkInvoice {
		evtType = event.TypeBulkSubmittedForApproval
	}
	e.emit(ctx, event.New(evtType, inst.InstanceID, inst.SourceDocumentID, map[string]interface{}{
		"workflow_type": string(inst.WorkflowType),
		"amount":        inst.Metadata.Amount,
		"priority":      string(inst.Priority),
	}))

	return &SubmitResult{Instance: inst, AutoApproved: false}, nil
}

func (e *engineImpl) Act(ctx context.Context, req *ActionRequest) (*entity.WorkflowInstance, error) {
	if req.InstanceID == "" || req.ApproverID == "" {
		return nil, fmt.Errorf("%w: instance id and approver id are required", port.ErrValidation)
	}
	if !req.Action.IsValid() {
		return nil, fmt.Errorf("%w: unknown action %q", port.ErrValidation, req.Action)
	}
	if req.Action == ActionDelegate && req.DelegateTo == "" {
		return nil, fmt.Errorf("%w: DELEGATE requires a delegate", port.ErrValidation)
	}

	var result *entity.WorkflowInstance
	err := e.tx.WithTransaction(ctx, func(ctx context.Context) error {
		inst, err := e.instances.GetByID(ctx, req.InstanceID)
		if err != nil {
			return err
		}
		if inst == nil {
			return fmt.Errorf("%w: workflow instance %s", port.ErrNotFound, req.InstanceID)
		}
		if inst.IsTerminal() {
			return fmt.Errorf("%w: instance %s is %s", port.ErrInvalidState, inst.InstanceID, inst.Status)
		}

		machine := machineAt(inst.Status)
		if !machine.CanFire(actionTrigger(req.Action)) {
			return fmt.Errorf("%w: %s not allowed from %s", port.ErrInvalidState, req.Action, inst.Status)
		}

		step := inst.CurrentStep()
		if step == nil {
			return fmt.Errorf("%w: instance %s has no current step", port.ErrValidation, inst.InstanceID)
		}
		if req.StepID != "" && req.StepID != step.StepID {
			return fmt.Errorf("%w: decision targets step %s but instance is at %s",
				port.ErrValidation, req.StepID, step.StepID)
		}

		approver := authorizedApprover(inst, step, req.ApproverID, req.Roles)
		if approver == nil {
			return fmt.Errorf("%w: %s is not an approver for step %s",
				port.ErrForbidden, req.ApproverID, step.StepID)
		}

		entries, err := e.history.ListByInstanceID(ctx, inst.InstanceID)
		if err != nil {
			return err
		}

		entry, err := e.buildEntry(inst, step, approver, req, entries)
		if err != nil {
			return err
		}

		prevOrder := inst.CurrentStepOrder
		replayed := Replay(inst.Definition, &inst.Metadata, append(entries, entry))
		e.applyReplay(inst, replayed, step, entry, prevOrder)

		if err := e.history.Append(ctx, entry); err != nil {
			return err
		}
		if err := e.instances.UpdateState(ctx, inst, inst.Version); err != nil {
			return err
		}
		result = inst
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("Approval action processed",
		zap.String("instance_id", result.InstanceID),
		zap.String("action", string(req.Action)),
		zap.String("approver_id", req.ApproverID),
		zap.String("status", result.Status))

	e.notify(ctx, func(ctx context.Context) error {
		return e.notifier.ActionProcessed(ctx, &entity.ActionNotice{
			InstanceID:   result.InstanceID,
			Action:       historyAction(req.Action),
			ApproverID:   req.ApproverID,
			ApproverName: req.ApproverName,
			Comments:     req.Comments,
			Status:       result.Status,
		})
	})
	if result.IsTerminal() {
		e.recordOutcome(ctx, result)
	}
	e.emit(ctx, event.New(event.TypeActionProcessed, result.InstanceID, result.SourceDocumentID, map[string]interface{}{
		"action":      string(req.Action),
		"approver_id": req.ApproverID,
		"status":      result.Status,
	}))

	return result, nil
}

func (e *engineImpl) Cancel(ctx context.Context, instanceID, cancelledBy, reason string) (*entity.WorkflowInstance, error) {
	if instanceID == "" || cancelledBy == "" {
		return nil, fmt.Errorf("%w: instance id and canceller are required", port.ErrValidation)
	}

	var result *entity.WorkflowInstance
	err := e.tx.WithTransaction(ctx, func(ctx context.Context) error {
		inst, err := e.instances.GetByID(ctx, instanceID)
		if err != nil {
			return err
		}
		if inst == nil {
			return fmt.Errorf("%w: workflow instance %s", port.ErrNotFound, instanceID)
		}

		if inst.IsTerminal() || !machineAt(inst.Status).CanFire(wf.TriggerCancel) {
			return fmt.Errorf("%w: cannot cancel instance in status %s", port.ErrInvalidState, inst.Status)
		}

		now := e.now()
		entry := entity.NewHumanEntry(inst.InstanceID, inst.CurrentStep(), cancelledBy, "", entity.HistoryCancelled, now)
		entry.EntryID = uuid.NewString()
		entry.Comments = reason

		inst.Status = entity.StatusCancelled
		inst.ApprovalComments = reason
		inst.UpdatedAt = now

		if err := e.history.Append(ctx, entry); err != nil {
			return err
		}
		if err := e.instances.UpdateState(ctx, inst, inst.Version); err != nil {
			return err
		}
		result = inst
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("Workflow cancelled",
		zap.String("instance_id", result.InstanceID),
		zap.String("cancelled_by", cancelledBy))

	e.recordOutcome(ctx, result)
	e.emit(ctx, event.New(event.TypeCancelled, result.InstanceID, result.SourceDocumentID, map[string]interface{}{
		"cancelled_by": cancelledBy,
		"reason":       reason,
	}))
	return result, nil
}

func (e *engineImpl) GetInstance(ctx context.Context, instanceID string) (*entity.WorkflowInstance, error) {
	inst, err := e.instances.GetByID(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	if inst == nil {
		return nil, fmt.Errorf("%w: workflow instance %s", port.ErrNotFound, instanceID)
	}
	return inst, nil
}

func (e *engineImpl) History(ctx context.Context, instanceID string) ([]*entity.ApprovalHistoryEntry, error) {
	inst, err := e.instances.GetByID(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	if inst == nil {
		return nil, fmt.Errorf("%w: workflow instance %s", port.ErrNotFound, instanceID)
	}
	return e.history.ListByInstanceID(ctx, instanceID)
}

func (e *engineImpl) ListPending(ctx context.Context, approverID string, workflowType entity.WorkflowType) ([]*entity.WorkflowInstance, error) {
	if approverID == "" {
		return nil, fmt.Errorf("%w: approver id is required", port.ErrValidation)
	}
	candidates, err := e.instances.ListByStatuses(ctx, entity.ActiveStatuses, workflowType)
	if err != nil {
		return nil, err
	}
	var pending []*entity.WorkflowInstance
	for _, inst := range candidates {
		step := inst.CurrentStep()
		if step == nil {
			continue
		}
		if authorizedApprover(inst, step, approverID, nil) != nil {
			pending = append(pending, inst)
		}
	}
	return pending, nil
}

// buildEntry constructs and validates the candidate history entry for one
// decision, enforcing duplicate-approval and delegation rules against the
// prior trail.
func (e *engineImpl) buildEntry(inst *entity.WorkflowInstance, step *entity.ApprovalStep, approver *entity.ApproverInfo, req *ActionRequest, prior []*entity.ApprovalHistoryEntry) (*entity.ApprovalHistoryEntry, error) {
	now := e.now()
	entry := entity.NewHumanEntry(inst.InstanceID, step, req.ApproverID, req.ApproverName, historyAction(req.Action), now)
	entry.EntryID = uuid.NewString()
	entry.Comments = req.Comments
	entry.Attachments = req.Attachments

	switch req.Action {
	case ActionApprove:
		for _, p := range prior {
			if p.StepID == step.StepID && p.Action == entity.HistoryApproved && p.ApproverID == req.ApproverID {
				return nil, fmt.Errorf("%w: %s already approved step %s",
					port.ErrConflict, req.ApproverID, step.StepID)
			}
		}
	case ActionDelegate:
		if !approver.DelegationEnabled {
			return nil, fmt.Errorf("%w: delegation is not enabled for %s on step %s",
				port.ErrForbidden, approver.ApproverID, step.StepID)
		}
		entry.DelegatedTo = req.DelegateTo
		entry.OriginalApproverID = approver.ApproverID
	}

	if err := entry.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", port.ErrValidation, err)
	}
	return entry, nil
}

// applyReplay moves the instance to the replayed position and maintains the
// derived fields: SLA deadline, delegation table, approval stamp.
func (e *engineImpl) applyReplay(inst *entity.WorkflowInstance, r ReplayResult, actedStep *entity.ApprovalStep, entry *entity.ApprovalHistoryEntry, prevOrder int) {
	now := e.now()
	inst.Status = r.Status
	inst.UpdatedAt = now

	switch entry.Action {
	case entity.HistoryDelegated:
		if inst.Delegations == nil {
			inst.Delegations = make(map[string]string)
		}
		inst.Delegations[entry.OriginalApproverID] = entry.DelegatedTo
	case entity.HistoryInfoRequested:
		inst.SLADeadline = inst.SLADeadline.Add(e.stepSLA(actedStep))
	}

	if inst.IsTerminal() {
		if inst.Status == entity.StatusApproved {
			inst.ApprovedBy = entry.ApproverID
			inst.ApprovalDate = &now
			inst.ApprovalComments = entry.Comments
		}
		return
	}

	inst.CurrentStepID = r.StepID
	inst.CurrentStepOrder = r.StepOrder
	if r.StepOrder != prevOrder {
		// New gate: delegations are per step, and the step gets its own SLA.
		inst.Delegations = nil
		if next := inst.Definition.Step(r.StepID); next != nil {
			inst.SLADeadline = now.Add(e.stepSLA(next))
		}
	}
}

func (e *engineImpl) newInstance(req *SubmitRequest, def *entity.WorkflowDefinition, md entity.WorkflowMetadata) *entity.WorkflowInstance {
	now := e.now()
	return &entity.WorkflowInstance{
		InstanceID:         uuid.NewString(),
		WorkflowID:         def.WorkflowID,
		WorkflowType:       req.WorkflowType,
		SourceDocumentID:   req.SourceDocumentID,
		SourceDocumentType: req.SourceDocumentType,
		RequestedBy:        req.RequestedBy,
		RequestedAt:        now,
		Status:             entity.StatusPending,
		Priority:           derivePriority(req.Priority, req.UrgentRequest, md.RiskAssessment),
		Metadata:           md,
		Definition:         def,
		Attachments:        req.Attachments,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

// stepSLA returns the SLA window for a step, falling back to the default.
func (e *engineImpl) stepSLA(step *entity.ApprovalStep) time.Duration {
	hours := e.slaHours
	if step != nil && step.TimeoutHours > 0 {
		hours = step.TimeoutHours
	}
	return time.Duration(hours) * time.Hour
}

// recordOutcome reports a decision back to the document's owning service.
// Fire-and-log: the committed transition is never rolled back for this.
func (e *engineImpl) recordOutcome(ctx context.Context, inst *entity.WorkflowInstance) {
	outcome := &entity.ApprovalOutcome{
		Status:     inst.Status,
		DecidedBy:  inst.ApprovedBy,
		DecidedAt:  inst.UpdatedAt,
		Comments:   inst.ApprovalComments,
		InstanceID: inst.InstanceID,
	}
	if err := e.documents.RecordOutcome(ctx, inst.SourceDocumentType, inst.SourceDocumentID, outcome); err != nil {
		e.logger.Warn("Failed to record approval outcome on source document",
			zap.String("instance_id", inst.InstanceID),
			zap.String("source_document_id", inst.SourceDocumentID),
			zap.Error(err))
	}
}

// notify runs a notification call fire-and-log.
func (e *engineImpl) notify(ctx context.Context, fn func(ctx context.Context) error) {
	if err := fn(ctx); err != nil {
		e.logger.Warn("Notification delivery failed", zap.Error(err))
	}
}

// emit dispatches a domain event asynchronously, post commit.
func (e *engineImpl) emit(ctx context.Context, evt *event.Event) {
	if e.dispatcher == nil {
		return
	}
	e.dispatcher.DispatchAsync(ctx, evt)
}

func validateSubmit(req *SubmitRequest) error {
	if !req.WorkflowType.IsValid() {
		return fmt.Errorf("%w: unknown workflow type %q", port.ErrValidation, req.WorkflowType)
	}
	if req.SourceDocumentID == "" || req.SourceDocumentType == "" {
		return fmt.Errorf("%w: source document id and type are required", port.ErrValidation)
	}
	if req.RequestedBy == "" {
		return fmt.Errorf("%w: requested_by is required", port.ErrValidation)
	}
	if req.Priority != "" && !req.Priority.IsValid() {
		return fmt.Errorf("%w: unknown priority %q", port.ErrValidation, req.Priority)
	}
	return nil
}

// matchAutoApproval returns the first active auto-approval rule whose
// conditions hold. A rule that fails to evaluate never auto-approves.
func matchAutoApproval(def *entity.WorkflowDefinition, t entity.WorkflowType, rctx rules.Context) *entity.AutoApprovalRule {
	for i := range def.AutoApprovalRules {
		rule := &def.AutoApprovalRules[i]
		if !rule.IsActive || !rule.AppliesTo(t) {
			continue
		}
		ok, err := rules.Evaluate(rule.Conditions, rctx)
		if err != nil || !ok {
			continue
		}
		return rule
	}
	return nil
}

// authorizedApprover resolves the step approver a decision maker acts for:
// a direct or alternate assignment, a role held by the caller, or a
// delegation registered on the current step.
func authorizedApprover(inst *entity.WorkflowInstance, step *entity.ApprovalStep, approverID string, roles []string) *entity.ApproverInfo {
	for i := range step.Approvers {
		a := &step.Approvers[i]
		if a.ApproverID == approverID || a.AlternateApproverID == approverID {
			return a
		}
		if a.ApproverType == entity.ApproverTypeRole {
			for _, role := range roles {
				if role == a.ApproverID {
					return a
				}
			}
		}
		if delegate, ok := inst.DelegateFor(a.ApproverID); ok && delegate == approverID {
			return a
		}
	}
	return nil
}

func historyAction(a Action) entity.HistoryAction {
	switch a {
	case ActionApprove:
		return entity.HistoryApproved
	case ActionReject:
		return entity.HistoryRejected
	case ActionDelegate:
		return entity.HistoryDelegated
	case ActionRequestInfo:
		return entity.HistoryInfoRequested
	default:
		return entity.HistoryAction(string(a))
	}
}

func derivePriority(requested entity.Priority, urgent bool, ra *entity.RiskAssessment) entity.Priority {
	if requested.IsValid() {
		return requested
	}
	if urgent {
		return entity.PriorityHigh
	}
	if ra != nil && ra.RiskLevel == entity.RiskHigh {
		return entity.PriorityHigh
	}
	return entity.PriorityMedium
}

func metadataFromDocument(doc *entity.SourceDocument, req *SubmitRequest, ra *entity.RiskAssessment) entity.WorkflowMetadata {
	return entity.WorkflowMetadata{
		Amount:                doc.TotalValue,
		Currency:              doc.Currency,
		CustomerID:            doc.CustomerID,
		CustomerName:          doc.CustomerName,
		SupplierID:            doc.SupplierID,
		SupplierName:          doc.SupplierName,
		ProductType:           doc.ProductType,
		DeliveryDate:          doc.DeliveryDate,
		CreditLimit:           doc.CreditLimit,
		CustomerRating:        doc.CustomerRating,
		UrgentRequest:         req.UrgentRequest,
		BusinessJustification: req.Justification,
		RiskAssessment:        ra,
		Compliance: &entity.ComplianceMetadata{
			NPAPermitNumber:     doc.NPAPermitNumber,
			CustomsEntryNumber:  doc.CustomsEntryNumber,
			UPPFEligible:        doc.UPPFLevy > 0,
			PetroleumTaxAmount:  doc.PetroleumTaxAmount,
			TotalTaxes:          doc.TotalTaxes,
			ComplianceScore:     doc.ComplianceScore,
			EnvironmentalImpact: risk.EnvironmentalImpact(doc.ProductType),
		},
	}
}
