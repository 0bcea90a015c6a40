package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ledgerflow/approval-engine/internal/application/dispatcher"
	"github.com/ledgerflow/approval-engine/internal/application/port"
	"github.com/ledgerflow/approval-engine/internal/domain/entity"
	"github.com/ledgerflow/approval-engine/internal/domain/event"
	domainwf "github.com/ledgerflow/approval-engine/internal/domain/workflow"
)

// CustomEffectFunc executes a CUSTOM side effect identified by name
type CustomEffectFunc func(ctx context.Context, tctx domainwf.Context, params map[string]string) error

// EffectRunner executes transition side effects. Failures never abort the
// already-committed transition; the engine degrades them to warnings.
type EffectRunner struct {
	audits        AuditService
	notifications port.NotificationRepository
	custom        map[string]CustomEffectFunc
	logger        Logger
}

// NewEffectRunner creates a side effect runner
func NewEffectRunner(audits AuditService, notifications port.NotificationRepository, logger Logger) *EffectRunner {
	return &EffectRunner{
		audits:        audits,
		notifications: notifications,
		custom:        make(map[string]CustomEffectFunc),
		logger:        logger,
	}
}

// RegisterCustom binds a named CUSTOM effect. Assembled at startup.
func (r *EffectRunner) RegisterCustom(name string, fn CustomEffectFunc) {
	r.custom[name] = fn
}

// Run executes one side effect
func (r *EffectRunner) Run(ctx context.Context, effect domainwf.SideEffect, tctx domainwf.Context) error {
	switch effect.Kind {
	case domainwf.SideEffectNotification:
		return r.enqueueNotification(ctx, tctx, effect.Params, "")

	case domainwf.SideEffectAuditLog:
		changeSet, _ := json.Marshal(map[string]string{
			"from": tctx.From.String(),
			"to":   tctx.To.String(),
		})
		_, err := r.audits.Log(ctx, tctx.ActorID, auditActionFor(tctx.To), tctx.Entity.EntityType(), tctx.Entity.EntityID(), string(changeSet))
		return err

	case domainwf.SideEffectWebhook:
		// Delivery belongs to an external worker; the intent is queued like
		// any other notification
		return r.enqueueNotification(ctx, tctx, effect.Params, entity.NotificationChannelWebhook)

	case domainwf.SideEffectCustom:
		name := effect.Params["name"]
		fn, ok := r.custom[name]
		if !ok {
			return fmt.Errorf("unknown custom side effect %q", name)
		}
		return fn(ctx, tctx, effect.Params)

	default:
		return fmt.Errorf("unknown side effect kind %q", effect.Kind)
	}
}

func (r *EffectRunner) enqueueNotification(ctx context.Context, tctx domainwf.Context, params map[string]string, channel string) error {
	if channel == "" {
		channel = params["channel"]
		if channel == "" {
			channel = entity.NotificationChannelInApp
		}
	}

	recipient := params["recipient"]
	if recipient == "" {
		if v, ok := tctx.Entity.Field("created_by"); ok {
			recipient, _ = v.(string)
		}
	}

	n := &entity.NotificationPayload{
		RecipientID: recipient,
		Channel:     channel,
		Subject:     fmt.Sprintf("%s %d is now %s", tctx.Entity.EntityType(), tctx.Entity.EntityID(), tctx.To),
		Body: fmt.Sprintf("%s %d moved from %s to %s by %s",
			tctx.Entity.EntityType(), tctx.Entity.EntityID(), tctx.From, tctx.To, tctx.ActorID),
		EntityType: tctx.Entity.EntityType(),
		EntityID:   tctx.Entity.EntityID(),
		Status:     entity.NotificationStatusPending,
	}
	if url, ok := params["url"]; ok {
		n.Body = n.Body + " -> " + url
	}

	if err := r.notifications.Enqueue(ctx, n); err != nil {
		return fmt.Errorf("failed to enqueue notification: %w", err)
	}
	return nil
}

func auditActionFor(to domainwf.Status) string {
	switch to {
	case domainwf.StatusPendingApproval:
		return entity.AuditActionSubmitForApproval
	case domainwf.StatusApproved:
		return entity.AuditActionApprove
	case domainwf.StatusRejected:
		return entity.AuditActionReject
	default:
		return entity.AuditActionStatusChange
	}
}

// NewAsyncEffectHandler returns the bus handler that executes side effects
// the engine dispatched asynchronously. It reloads the entity so the effect
// sees committed state.
func NewAsyncEffectHandler(runner *EffectRunner, entities port.EntityRepository, logger Logger) dispatcher.Handler {
	return func(ctx context.Context, evt *event.Event) error {
		entityType := entity.EntityType(evt.AggregateType)
		ent, err := entities.FindByID(ctx, entityType, evt.AggregateID)
		if err != nil {
			return fmt.Errorf("failed to load %s %d for async effect: %w", entityType, evt.AggregateID, err)
		}

		params := make(map[string]string)
		for k, v := range evt.Payload {
			if s, ok := v.(string); ok && len(k) > 6 && k[:6] == "param_" {
				params[k[6:]] = s
			}
		}

		effect := domainwf.SideEffect{
			Kind:   domainwf.SideEffectKind(evt.PayloadString("effect_kind")),
			Async:  true,
			Params: params,
		}
		tctx := domainwf.Context{
			Entity:  ent,
			From:    domainwf.Status(evt.PayloadString("from_status")),
			To:      domainwf.Status(evt.PayloadString("to_status")),
			ActorID: evt.PayloadString("actor_id"),
		}

		return runner.Run(ctx, effect, tctx)
	}
}
