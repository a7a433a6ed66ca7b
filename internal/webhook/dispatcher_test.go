package webhook

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sambatesdesign/ChimpLink/internal/audit"
	"github.com/sambatesdesign/ChimpLink/internal/blobstore"
	"github.com/sambatesdesign/ChimpLink/internal/event"
	"github.com/sambatesdesign/ChimpLink/internal/identity"
	"github.com/sambatesdesign/ChimpLink/internal/sync"
)

type syncCall struct {
	member *event.Member
	sub    *event.Subscription
	kind   event.Kind
	opts   sync.Options
}

type fakeSyncer struct {
	calls  []syncCall
	result sync.Result
}

func (f *fakeSyncer) Sync(_ context.Context, member *event.Member, sub *event.Subscription, kind event.Kind, opts sync.Options) sync.Result {
	f.calls = append(f.calls, syncCall{member: member, sub: sub, kind: kind, opts: opts})
	return f.result
}

func newDispatcherFixture(t *testing.T) (*Dispatcher, *fakeSyncer, *identity.Cache) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	cache := identity.NewCache(blobstore.NewInMemoryStore(), logger)
	engine := &fakeSyncer{result: sync.Result{Status: audit.StatusSuccess}}
	return NewDispatcher(engine, cache, logger, nil), engine, cache
}

func TestSignupRunsFullSync(t *testing.T) {
	d, engine, _ := newDispatcherFixture(t)

	raw := []byte(`{"event":"member_signup","member":{"id":42,"email":"new@example.com","first_name":"Ada"}}`)
	require.NoError(t, d.DispatchMemberful(context.Background(), raw))

	require.Len(t, engine.calls, 1)
	call := engine.calls[0]
	assert.Equal(t, event.KindMemberSignup, call.kind)
	assert.Equal(t, "new@example.com", call.member.Email)
	assert.Equal(t, "42", string(call.member.ID))
	assert.False(t, call.opts.TagOnly)
	assert.False(t, call.opts.OverrideIdentity)
	assert.JSONEq(t, string(raw), string(call.opts.Payload))
}

func TestMemberFallsBackToSubscriptionMember(t *testing.T) {
	d, engine, _ := newDispatcherFixture(t)

	raw := []byte(`{"event":"subscription.renewed","subscription":{"active":true,"member":{"id":"7","email":"sub@example.com"}}}`)
	require.NoError(t, d.DispatchMemberful(context.Background(), raw))

	require.Len(t, engine.calls, 1)
	assert.Equal(t, "sub@example.com", engine.calls[0].member.Email)
}

func TestUpdateForwardsChangedDiff(t *testing.T) {
	d, engine, _ := newDispatcherFixture(t)

	raw := []byte(`{"event":"member_updated","member":{"id":1,"email":"a@example.com"},"changed":{"email":["old@example.com","a@example.com"]}}`)
	require.NoError(t, d.DispatchMemberful(context.Background(), raw))

	require.Len(t, engine.calls, 1)
	require.Contains(t, engine.calls[0].opts.Changes, "email")
}

func TestChangedDiffOnlyAttachedToUpdates(t *testing.T) {
	d, engine, _ := newDispatcherFixture(t)

	raw := []byte(`{"event":"member_signup","member":{"id":1,"email":"a@example.com"},"changed":{"email":["x","y"]}}`)
	require.NoError(t, d.DispatchMemberful(context.Background(), raw))

	require.Len(t, engine.calls, 1)
	assert.Nil(t, engine.calls[0].opts.Changes)
}

func TestMissingEmailSkipsSync(t *testing.T) {
	d, engine, _ := newDispatcherFixture(t)

	raw := []byte(`{"event":"member_updated","member":{"id":9}}`)
	require.NoError(t, d.DispatchMemberful(context.Background(), raw))
	assert.Empty(t, engine.calls)
}

func TestUnknownEventIsAcknowledgedAndDropped(t *testing.T) {
	d, engine, _ := newDispatcherFixture(t)

	raw := []byte(`{"event":"download.created","member":{"id":1,"email":"a@example.com"}}`)
	require.NoError(t, d.DispatchMemberful(context.Background(), raw))
	assert.Empty(t, engine.calls)
}

func TestMalformedBodyIsAnError(t *testing.T) {
	d, engine, _ := newDispatcherFixture(t)

	require.Error(t, d.DispatchMemberful(context.Background(), []byte(`{"event":`)))
	assert.Empty(t, engine.calls)
}

func TestDeactivationSyncsInactiveStubWithPlanMetadata(t *testing.T) {
	d, engine, _ := newDispatcherFixture(t)

	raw := []byte(`{"event":"subscription.deactivated","subscription":{"active":true,"autorenew":true,"expires_at":1767139200,"subscription_plan":{"name":"Annual"},"member":{"id":5,"email":"gone@example.com"}}}`)
	require.NoError(t, d.DispatchMemberful(context.Background(), raw))

	require.Len(t, engine.calls, 1)
	call := engine.calls[0]
	require.NotNil(t, call.sub)
	assert.Equal(t, false, call.sub.Active)
	assert.Equal(t, "Annual", call.sub.Plan())
	assert.Equal(t, true, call.sub.Autorenew)
	assert.NotNil(t, call.sub.ExpiresAt)
}

func TestSubscriptionDeletionResolvesEmailFromCache(t *testing.T) {
	d, engine, cache := newDispatcherFixture(t)
	require.NoError(t, cache.Put(context.Background(), "5", "cached@example.com"))

	raw := []byte(`{"event":"subscription.deleted","subscription":{"member":{"id":5}}}`)
	require.NoError(t, d.DispatchMemberful(context.Background(), raw))

	require.Len(t, engine.calls, 1)
	call := engine.calls[0]
	assert.Equal(t, "cached@example.com", call.member.Email)
	require.NotNil(t, call.sub)
	assert.Equal(t, false, call.sub.Active)
}

func TestSubscriptionDeletionWithoutAnyEmailIsDropped(t *testing.T) {
	d, engine, _ := newDispatcherFixture(t)

	raw := []byte(`{"event":"subscription.deleted","subscription":{"member":{"id":5}}}`)
	require.NoError(t, d.DispatchMemberful(context.Background(), raw))
	assert.Empty(t, engine.calls)
}

func TestMemberDeletionMarksRecordThenEvictsCache(t *testing.T) {
	d, engine, cache := newDispatcherFixture(t)
	ctx := context.Background()
	require.NoError(t, cache.Put(ctx, "5", "doomed@example.com"))

	raw := []byte(`{"event":"member.deleted","member":{"id":5}}`)
	require.NoError(t, d.DispatchMemberful(ctx, raw))

	require.Len(t, engine.calls, 1)
	call := engine.calls[0]
	assert.Equal(t, "doomed@example.com", call.member.Email)
	assert.True(t, call.opts.OverrideIdentity)
	require.NotNil(t, call.sub)
	assert.Equal(t, false, call.sub.Active)

	_, ok := cache.Get(ctx, "5")
	assert.False(t, ok)
}

func TestMemberDeletionWithoutCachedEmailOnlyLogs(t *testing.T) {
	d, engine, _ := newDispatcherFixture(t)

	raw := []byte(`{"event":"member.deleted","member":{"id":5}}`)
	require.NoError(t, d.DispatchMemberful(context.Background(), raw))
	assert.Empty(t, engine.calls)
}

func TestOrderFailedUsesOrderMember(t *testing.T) {
	d, engine, _ := newDispatcherFixture(t)

	raw := []byte(`{"event":"order.failed","order":{"member":{"id":8,"email":"late@example.com"}}}`)
	require.NoError(t, d.DispatchMemberful(context.Background(), raw))

	require.Len(t, engine.calls, 1)
	call := engine.calls[0]
	assert.Equal(t, event.KindOrderFailed, call.kind)
	assert.Equal(t, "late@example.com", call.member.Email)
	assert.Nil(t, call.sub)
}

func TestOrderFailedWithoutEmailIsDropped(t *testing.T) {
	d, engine, _ := newDispatcherFixture(t)

	raw := []byte(`{"event":"order.failed","order":{"member":{"id":8}}}`)
	require.NoError(t, d.DispatchMemberful(context.Background(), raw))
	assert.Empty(t, engine.calls)
}
