package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/ledgerflow/approval-engine/internal/application/dispatcher"
	"github.com/ledgerflow/approval-engine/internal/application/port"
	"github.com/ledgerflow/approval-engine/internal/application/tx"
	"github.com/ledgerflow/approval-engine/internal/domain/entity"
	"github.com/ledgerflow/approval-engine/internal/domain/event"
	"github.com/ledgerflow/approval-engine/internal/domain/permission"
	domainwf "github.com/ledgerflow/approval-engine/internal/domain/workflow"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// engineImpl is the concrete implementation of Engine
type engineImpl struct {
	machine    *domainwf.Machine
	gate       *permission.Gate
	entityRepo port.EntityRepository
	history    port.HistoryRepository
	txManager  *tx.Manager
	bus        dispatcher.Bus
	effects    EffectRunner
	logger     Logger
}

// EngineOption configures the engine
type EngineOption func(*engineImpl)

// WithBus sets the event bus used for async side effect dispatch
func WithBus(b dispatcher.Bus) EngineOption {
	return func(e *engineImpl) { e.bus = b }
}

// WithEffectRunner sets the executor for synchronous side effects
func WithEffectRunner(r EffectRunner) EngineOption {
	return func(e *engineImpl) { e.effects = r }
}

// WithLogger sets the engine logger
func WithLogger(l Logger) EngineOption {
	return func(e *engineImpl) { e.logger = l }
}

// NewEngine creates a transition engine
func NewEngine(
	machine *domainwf.Machine,
	gate *permission.Gate,
	entityRepo port.EntityRepository,
	history port.HistoryRepository,
	txManager *tx.Manager,
	opts ...EngineOption,
) Engine {
	e := &engineImpl{
		machine:    machine,
		gate:       gate,
		entityRepo: entityRepo,
		history:    history,
		txManager:  txManager,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExecuteTransition validates and applies one transition
func (e *engineImpl) ExecuteTransition(ctx context.Context, tctx domainwf.Context) (*Result, error) {
	if tctx.Timestamp.IsZero() {
		tctx.Timestamp = time.Now()
	}

	decision := e.machine.CanTransition(tctx)
	if !decision.Allowed {
		return nil, &InvalidTransitionError{From: tctx.From, To: tctx.To, Reason: decision.Reason}
	}

	ent := tctx.Entity
	expectedVersion := ent.CurrentVersion()
	upd := e.buildUpdate(tctx)

	err := e.txManager.ExecuteWithOptimisticLock(ctx, func(txCtx context.Context) (int64, error) {
		rows, err := e.entityRepo.UpdateWithVersionCheck(txCtx, ent.EntityType(), ent.EntityID(), upd, expectedVersion)
		if err != nil {
			return 0, fmt.Errorf("failed to update %s %d: %w", ent.EntityType(), ent.EntityID(), err)
		}
		if rows == 0 {
			return 0, nil
		}

		h := &entity.WorkflowHistory{
			EntityType: ent.EntityType(),
			EntityID:   ent.EntityID(),
			FromStatus: tctx.From.String(),
			ToStatus:   tctx.To.String(),
			ActorID:    tctx.ActorID,
			Reason:     tctx.Reason,
			Timestamp:  tctx.Timestamp,
		}
		if err := e.history.Insert(txCtx, h); err != nil {
			return 0, fmt.Errorf("failed to record workflow history: %w", err)
		}

		return rows, nil
	})
	if err != nil {
		return nil, err
	}

	result := &Result{
		NewStatus:  tctx.To,
		NewVersion: expectedVersion + 1,
	}

	// The transition is committed; side effect failures only warn from here
	e.runSideEffects(ctx, tctx, result)

	return result, nil
}

func (e *engineImpl) buildUpdate(tctx domainwf.Context) port.StatusUpdate {
	upd := port.StatusUpdate{Status: tctx.To.String()}

	switch tctx.To {
	case domainwf.StatusApproved:
		now := tctx.Timestamp
		upd.Approval = &entity.ApprovalMeta{ApprovedBy: tctx.ActorID, ApprovedAt: &now}
	case domainwf.StatusRejected:
		now := tctx.Timestamp
		upd.Approval = &entity.ApprovalMeta{
			RejectedBy:      tctx.ActorID,
			RejectedAt:      &now,
			RejectionReason: tctx.Reason,
		}
	}

	return upd
}

func (e *engineImpl) runSideEffects(ctx context.Context, tctx domainwf.Context, result *Result) {
	t, ok := e.machine.Registry().Lookup(tctx.Entity.EntityType(), tctx.From, tctx.To)
	if !ok {
		return
	}

	for _, effect := range t.SideEffects {
		label := string(effect.Kind)

		if effect.Async {
			if e.bus == nil {
				result.Warnings = append(result.Warnings, fmt.Sprintf("async side effect %s skipped: no event bus", effect.Kind))
				continue
			}
			e.bus.Publish(ctx, e.effectEvent(effect, tctx))
			result.ExecutedSideEffects = append(result.ExecutedSideEffects, label+" (async)")
			continue
		}

		if e.effects == nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("side effect %s skipped: no runner configured", effect.Kind))
			continue
		}

		if err := e.effects.Run(ctx, effect, tctx); err != nil {
			if e.logger != nil {
				e.logger.Warn("Side effect failed after committed transition",
					"effect", effect.Kind,
					"entity_type", tctx.Entity.EntityType(),
					"entity_id", tctx.Entity.EntityID(),
					"error", err,
				)
			}
			result.Warnings = append(result.Warnings, fmt.Sprintf("side effect %s failed: %v", effect.Kind, err))
			continue
		}
		result.ExecutedSideEffects = append(result.ExecutedSideEffects, label)
	}
}

func (e *engineImpl) effectEvent(effect domainwf.SideEffect, tctx domainwf.Context) *event.Event {
	payload := map[string]interface{}{
		"effect_kind": string(effect.Kind),
		"from_status": tctx.From.String(),
		"to_status":   tctx.To.String(),
		"actor_id":    tctx.ActorID,
	}
	for k, v := range effect.Params {
		payload["param_"+k] = v
	}

	return event.New(
		event.TypeNotifyRequested,
		tctx.Entity.EntityID(),
		tctx.Entity.EntityType().String(),
		payload,
	)
}

// AvailableActions computes the reachable next states for the caller
func (e *engineImpl) AvailableActions(ctx context.Context, tctx domainwf.Context) (*ActionSet, error) {
	ent := tctx.Entity
	ownerID := ""
	if v, ok := ent.Field("created_by"); ok {
		if s, isStr := v.(string); isStr {
			ownerID = s
		}
	}

	set := &ActionSet{PermittedFlags: make(map[string]bool)}

	for _, t := range e.machine.Registry().From(ent.EntityType(), tctx.From) {
		perm := t.RequiredPermission
		if !e.gate.HasPermission(tctx.ActorID, tctx.Roles, perm.Resource, perm.Action, ownerID) {
			continue
		}

		candidate := tctx
		candidate.To = t.To
		if decision := e.machine.CanTransition(candidate); !decision.Allowed {
			continue
		}

		set.NextStates = append(set.NextStates, t.To)
		set.PermittedFlags[perm.Action] = true
	}

	return set, nil
}
