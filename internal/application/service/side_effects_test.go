package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerflow/approval-engine/internal/domain/entity"
	"github.com/ledgerflow/approval-engine/internal/domain/event"
	domainwf "github.com/ledgerflow/approval-engine/internal/domain/workflow"
)

func effectContext(ent entity.WorkflowableEntity) domainwf.Context {
	return domainwf.Context{
		Entity:  ent,
		From:    domainwf.StatusPendingApproval,
		To:      domainwf.StatusApproved,
		ActorID: "bob",
		Roles:   []string{"manager"},
	}
}

func newEffectRunnerFixture() (*EffectRunner, *mockAuditService, *mockNotificationRepo) {
	audits := &mockAuditService{}
	notifications := &mockNotificationRepo{}
	return NewEffectRunner(audits, notifications, nopLogger{}), audits, notifications
}

func TestEffectRunnerNotification(t *testing.T) {
	runner, _, notifications := newEffectRunnerFixture()

	inv := &entity.Invoice{ID: 11, Status: "APPROVED", CreatedBy: "alice"}
	err := runner.Run(context.Background(), domainwf.SideEffect{Kind: domainwf.SideEffectNotification}, effectContext(inv))

	require.NoError(t, err)
	require.Len(t, notifications.enqueued, 1)
	n := notifications.enqueued[0]
	assert.Equal(t, "alice", n.RecipientID, "the document owner is the default recipient")
	assert.Equal(t, entity.NotificationChannelInApp, n.Channel)
	assert.Equal(t, entity.NotificationStatusPending, n.Status)
	assert.Contains(t, n.Body, "PENDING_APPROVAL")
	assert.Contains(t, n.Body, "APPROVED")
}

func TestEffectRunnerNotificationParams(t *testing.T) {
	runner, _, notifications := newEffectRunnerFixture()

	inv := &entity.Invoice{ID: 11, CreatedBy: "alice"}
	effect := domainwf.SideEffect{
		Kind:   domainwf.SideEffectNotification,
		Params: map[string]string{"recipient": "finance-team", "channel": entity.NotificationChannelEmail},
	}

	require.NoError(t, runner.Run(context.Background(), effect, effectContext(inv)))
	require.Len(t, notifications.enqueued, 1)
	assert.Equal(t, "finance-team", notifications.enqueued[0].RecipientID)
	assert.Equal(t, entity.NotificationChannelEmail, notifications.enqueued[0].Channel)
}

func TestEffectRunnerAuditLog(t *testing.T) {
	runner, audits, _ := newEffectRunnerFixture()

	inv := &entity.Invoice{ID: 11, CreatedBy: "alice"}
	err := runner.Run(context.Background(), domainwf.SideEffect{Kind: domainwf.SideEffectAuditLog}, effectContext(inv))

	require.NoError(t, err)
	require.Len(t, audits.calls, 1)
	call := audits.calls[0]
	assert.Equal(t, "bob", call.actorID)
	assert.Equal(t, entity.AuditActionApprove, call.action)
	assert.Equal(t, int64(11), call.entityID)
	assert.Contains(t, call.changeSet, "PENDING_APPROVAL")
}

func TestEffectRunnerWebhook(t *testing.T) {
	runner, _, notifications := newEffectRunnerFixture()

	inv := &entity.Invoice{ID: 11, CreatedBy: "alice"}
	effect := domainwf.SideEffect{
		Kind:   domainwf.SideEffectWebhook,
		Params: map[string]string{"url": "https://hooks.example.com/approvals"},
	}

	require.NoError(t, runner.Run(context.Background(), effect, effectContext(inv)))
	require.Len(t, notifications.enqueued, 1)
	assert.Equal(t, entity.NotificationChannelWebhook, notifications.enqueued[0].Channel)
	assert.Contains(t, notifications.enqueued[0].Body, "https://hooks.example.com/approvals")
}

func TestEffectRunnerCustom(t *testing.T) {
	runner, _, _ := newEffectRunnerFixture()

	var gotParams map[string]string
	runner.RegisterCustom("recalc-totals", func(ctx context.Context, tctx domainwf.Context, params map[string]string) error {
		gotParams = params
		return nil
	})

	inv := &entity.Invoice{ID: 11}
	effect := domainwf.SideEffect{
		Kind:   domainwf.SideEffectCustom,
		Params: map[string]string{"name": "recalc-totals", "scope": "company"},
	}

	require.NoError(t, runner.Run(context.Background(), effect, effectContext(inv)))
	assert.Equal(t, "company", gotParams["scope"])

	err := runner.Run(context.Background(), domainwf.SideEffect{
		Kind:   domainwf.SideEffectCustom,
		Params: map[string]string{"name": "unregistered"},
	}, effectContext(inv))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown custom side effect")
}

func TestAsyncEffectHandler(t *testing.T) {
	runner, _, notifications := newEffectRunnerFixture()

	inv := &entity.Invoice{ID: 11, Status: "APPROVED", CreatedBy: "alice"}
	entities := &mockEntityRepo{
		findByID: func(ctx context.Context, entityType entity.EntityType, id int64) (entity.WorkflowableEntity, error) {
			assert.Equal(t, entity.EntityTypeInvoice, entityType)
			assert.Equal(t, int64(11), id)
			return inv, nil
		},
	}

	handler := NewAsyncEffectHandler(runner, entities, nopLogger{})

	evt := event.New(event.TypeNotifyRequested, 11, "invoice", map[string]interface{}{
		"effect_kind":     "NOTIFICATION",
		"from_status":     "PENDING_APPROVAL",
		"to_status":       "APPROVED",
		"actor_id":        "bob",
		"param_recipient": "finance-team",
	})

	require.NoError(t, handler(context.Background(), evt))
	require.Len(t, notifications.enqueued, 1)
	n := notifications.enqueued[0]
	assert.Equal(t, "finance-team", n.RecipientID, "param_ payload entries become effect params")
	assert.Equal(t, int64(11), n.EntityID)
	assert.Contains(t, n.Subject, "APPROVED")
}

func TestAsyncEffectHandlerLoadFailure(t *testing.T) {
	runner, _, _ := newEffectRunnerFixture()
	entities := &mockEntityRepo{}

	handler := NewAsyncEffectHandler(runner, entities, nopLogger{})
	evt := event.New(event.TypeNotifyRequested, 404, "invoice", map[string]interface{}{"effect_kind": "NOTIFICATION"})

	err := handler(context.Background(), evt)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load invoice 404")
}
