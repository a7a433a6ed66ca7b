package webhook

import (
	"context"
	"log/slog"

	"github.com/sambatesdesign/ChimpLink/internal/event"
	"github.com/sambatesdesign/ChimpLink/internal/identity"
	"github.com/sambatesdesign/ChimpLink/internal/platform/metrics"
	"github.com/sambatesdesign/ChimpLink/internal/sync"
)

// Syncer is the engine surface the dispatchers drive.
type Syncer interface {
	Sync(ctx context.Context, member *event.Member, sub *event.Subscription, kind event.Kind, opts sync.Options) sync.Result
}

// Dispatcher routes decoded membership-platform events to the sync engine
// according to their kind. It never fails a delivery over missing data; those
// are logged and acknowledged so the sender does not retry.
type Dispatcher struct {
	engine  Syncer
	cache   *identity.Cache
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewDispatcher(engine Syncer, cache *identity.Cache, logger *slog.Logger, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{engine: engine, cache: cache, logger: logger, metrics: m}
}

// DispatchMemberful handles one raw delivery. The only error it returns is a
// malformed body; every structurally valid event is accepted, even when it
// carries nothing actionable.
func (d *Dispatcher) DispatchMemberful(ctx context.Context, raw []byte) error {
	env, err := DecodeEnvelope(raw)
	if err != nil {
		return err
	}
	kind := event.Classify(env.Event)
	d.metrics.IncEventReceived("memberful", env.Event)

	// Failed orders nest the member under the order object and skip the
	// shared presence checks below.
	if kind == event.KindOrderFailed {
		d.dispatchOrderFailed(ctx, env)
		return nil
	}

	member := env.Member
	if member == nil && env.Subscription != nil {
		member = env.Subscription.Member
	}
	if member == nil {
		member = &event.Member{}
	}

	// Deletion events may legitimately arrive without an address; everything
	// else needs one to be actionable.
	if member.Email == "" && kind != event.KindMemberDeleted && kind != event.KindSubscriptionDeleted {
		d.logger.Info("member missing or has no email, skipping sync", "event", env.Event)
		return nil
	}

	switch kind.MemberfulPolicy() {
	case event.PolicyFullSync:
		opts := sync.Options{Payload: env.Raw}
		if kind == event.KindMemberUpdated && len(env.Changed) > 0 {
			opts.Changes = env.Changed
		}
		d.engine.Sync(ctx, member, env.Subscription, kind, opts)

	case event.PolicyDeactivationStub:
		d.engine.Sync(ctx, member, deactivationStub(env.Subscription), kind, sync.Options{Payload: env.Raw})

	case event.PolicySubscriptionDeletion:
		if member.Email == "" {
			cached, ok := d.cache.Get(ctx, string(member.ID))
			if !ok {
				d.logger.Info("no email found for deleted subscription", "member_id", string(member.ID))
				return nil
			}
			member.Email = cached
		}
		d.engine.Sync(ctx, member, &event.Subscription{Active: false}, kind, sync.Options{Payload: env.Raw})

	case event.PolicyMemberDeletion:
		d.dispatchMemberDeleted(ctx, env, member)

	default:
		d.logger.Debug("no handler for event, ignoring", "event", env.Event)
	}
	return nil
}

func (d *Dispatcher) dispatchOrderFailed(ctx context.Context, env *Envelope) {
	var member *event.Member
	if env.Order != nil {
		member = env.Order.Member
	}
	if member == nil || member.Email == "" {
		d.logger.Info("no email in failed-order event, skipping")
		return
	}
	d.engine.Sync(ctx, member, nil, event.KindOrderFailed, sync.Options{Payload: env.Raw})
}

// dispatchMemberDeleted marks the remote contact before evicting the cached
// address; eviction happens regardless of the sync outcome so no stale
// mapping survives the deletion.
func (d *Dispatcher) dispatchMemberDeleted(ctx context.Context, env *Envelope, member *event.Member) {
	memberID := string(member.ID)
	if memberID == "" {
		d.logger.Info("member deletion event without a member id, skipping")
		return
	}
	cached, ok := d.cache.Get(ctx, memberID)
	if !ok {
		d.logger.Info("no cached email for deleted member, nothing to sync", "member_id", memberID)
		return
	}
	stub := &event.Member{ID: member.ID, Email: cached}
	d.engine.Sync(ctx, stub, &event.Subscription{Active: false}, event.KindMemberDeleted, sync.Options{
		OverrideIdentity: true,
		Payload:          env.Raw,
	})
	if err := d.cache.Remove(ctx, memberID); err != nil {
		d.logger.Warn("failed to evict cached email for deleted member", "member_id", memberID, "error", err)
	}
}

// deactivationStub preserves the plan metadata a deactivation event still
// carries while forcing the contact inactive.
func deactivationStub(sub *event.Subscription) *event.Subscription {
	stub := &event.Subscription{Active: false}
	if sub != nil {
		stub.PlanName = sub.Plan()
		stub.Autorenew = sub.Autorenew
		stub.ExpiresAt = sub.ExpiresAt
	}
	return stub
}
