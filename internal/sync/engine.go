// Package sync holds the identity-reconciliation and sync-decision engine:
// the one place that resolves which remote contact an event refers to, builds
// the outbound mutation, and keeps the cache and audit log consistent with
// the outcome.
package sync

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/sambatesdesign/ChimpLink/internal/audit"
	"github.com/sambatesdesign/ChimpLink/internal/event"
	"github.com/sambatesdesign/ChimpLink/internal/identity"
	"github.com/sambatesdesign/ChimpLink/internal/mailchimp"
	"github.com/sambatesdesign/ChimpLink/internal/platform/metrics"
)

// PaymentFailedTag is the fixed tag toggled by payment-class events.
const PaymentFailedTag = "Payment Failed"

// deletedIDSentinel replaces the member-id field on deletion stub syncs so
// the remote record is clearly marked instead of silently reusing a recycled
// id.
const deletedIDSentinel = "USER DELETED"

// ContactAPI is the outbound contact-list surface the engine needs. Satisfied
// by *mailchimp.Client; tests substitute fakes.
type ContactAPI interface {
	UpsertContact(ctx context.Context, contactKey string, upsert mailchimp.ContactUpsert) error
	UpdateTag(ctx context.Context, contactKey string, tag mailchimp.Tag) error
}

// Options tune one sync call.
type Options struct {
	// OverrideIdentity marks the remote record's member-id field with the
	// deletion sentinel and suppresses the cache update. Used by member
	// deletion stub syncs.
	OverrideIdentity bool
	// TagOnly skips the profile upsert entirely; only the tag transition
	// applies. Used by payment-processor events so processor data never
	// overwrites profile fields.
	TagOnly bool
	// Payload is the original raw event, logged for replay.
	Payload json.RawMessage
	// Changes is a free-form diff map logged alongside a success.
	Changes map[string]any
}

// Result reports the outcome of one sync call. No failure here is fatal to
// the caller: the webhook is acknowledged regardless.
type Result struct {
	Status audit.Status
	Email  string
	Detail string
}

// Engine executes syncs. It is the sole writer of the identity cache and the
// audit log.
type Engine struct {
	cache    *identity.Cache
	log      *audit.Log
	fields   *FieldSource
	contacts ContactAPI
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer
}

type EngineOption func(*Engine)

// WithMetrics wires Prometheus counters into the engine.
func WithMetrics(m *metrics.Metrics) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

func NewEngine(cache *identity.Cache, log *audit.Log, fields *FieldSource, contacts ContactAPI, logger *slog.Logger, opts ...EngineOption) *Engine {
	e := &Engine{
		cache:    cache,
		log:      log,
		fields:   fields,
		contacts: contacts,
		logger:   logger,
		tracer:   otel.Tracer("chimplink/sync"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Sync reconciles one event against the remote contact record. Replays are
// safe: an identical event produces the same remote end-state and one more
// log entry, nothing else.
func (e *Engine) Sync(ctx context.Context, member *event.Member, sub *event.Subscription, kind event.Kind, opts Options) Result {
	ctx, span := e.tracer.Start(ctx, "sync",
		trace.WithAttributes(attribute.String("event.kind", string(kind))),
	)
	defer span.End()

	start := time.Now()
	result := e.run(ctx, member, sub, kind, opts)
	e.metrics.ObserveSync(string(result.Status), time.Since(start))

	span.SetAttributes(attribute.String("sync.status", string(result.Status)))
	return result
}

func (e *Engine) run(ctx context.Context, member *event.Member, sub *event.Subscription, kind event.Kind, opts Options) Result {
	memberID := string(member.ID)
	currentEmail := member.Email

	// The cached address locates the remote record; the event's address is
	// what gets written to it. The split is what lets an email change find
	// the old record and update it to the new address in one call.
	targetEmail := currentEmail
	if cached, ok := e.cache.Get(ctx, memberID); ok {
		targetEmail = cached
		if cached != currentEmail && currentEmail != "" {
			e.logger.InfoContext(ctx, "email changed upstream",
				"member_id", memberID,
				"old_email", cached,
				"new_email", currentEmail,
			)
		}
	}
	if targetEmail == "" {
		return e.exception(ctx, kind, currentEmail, opts, "no email available to address the remote contact")
	}

	fieldMap, err := e.fields.Load(ctx)
	if err != nil {
		return e.exception(ctx, kind, currentEmail, opts, err.Error())
	}

	mergeFields := buildMergeFields(fieldMap, member, sub, opts.OverrideIdentity)
	contactKey := mailchimp.ContactKey(targetEmail)

	if !opts.TagOnly {
		err := e.contacts.UpsertContact(ctx, contactKey, mailchimp.ContactUpsert{
			EmailAddress: currentEmail,
			StatusIfNew:  "subscribed",
			MergeFields:  mergeFields,
		})
		var apiErr *mailchimp.APIError
		if errors.As(err, &apiErr) {
			// Remote rejection: record it and abort. No tag mutation, no
			// cache write.
			e.logger.ErrorContext(ctx, "contact upsert rejected",
				"event", kind,
				"email", targetEmail,
				"status", apiErr.StatusCode,
			)
			e.log.Append(ctx, audit.Entry{
				Event:  string(kind),
				Email:  currentEmail,
				Status: audit.StatusError,
				Changes: map[string]any{
					"mailchimp_status": apiErr.StatusCode,
					"mailchimp_error":  apiErr.Body,
				},
				Payload: opts.Payload,
			})
			return Result{Status: audit.StatusError, Email: currentEmail, Detail: apiErr.Error()}
		}
		if err != nil {
			return e.exception(ctx, kind, currentEmail, opts, err.Error())
		}

		if !opts.OverrideIdentity && kind.CacheEligible() && memberID != "" {
			if err := e.cache.Put(ctx, memberID, currentEmail); err != nil {
				e.logger.WarnContext(ctx, "cache update failed after successful sync",
					"member_id", memberID,
					"error", err,
				)
			}
		}

		e.log.Append(ctx, audit.Entry{
			Event:   string(kind),
			Email:   currentEmail,
			Status:  audit.StatusSuccess,
			Changes: opts.Changes,
			Payload: opts.Payload,
		})
	}

	e.applyTagTransition(ctx, kind, contactKey)

	if opts.TagOnly {
		// Tag-only syncs still leave an audit trail; a tag failure above is
		// already downgraded to a warning so the entry records success.
		e.log.Append(ctx, audit.Entry{
			Event:   string(kind),
			Email:   currentEmail,
			Status:  audit.StatusSuccess,
			Changes: opts.Changes,
			Payload: opts.Payload,
		})
	}

	return Result{Status: audit.StatusSuccess, Email: currentEmail}
}

// applyTagTransition flips the payment-failed tag when the kind calls for it.
// Tag failures are warnings only: the profile sync already succeeded and must
// not be reported as failed.
func (e *Engine) applyTagTransition(ctx context.Context, kind event.Kind, contactKey string) {
	var status string
	switch {
	case kind.AddsPaymentFailedTag():
		status = "active"
	case kind.RemovesPaymentFailedTag():
		status = "inactive"
	default:
		return
	}

	err := e.contacts.UpdateTag(ctx, contactKey, mailchimp.Tag{Name: PaymentFailedTag, Status: status})
	if err != nil {
		e.metrics.IncTagUpdateFailure()
		e.logger.WarnContext(ctx, "tag update failed",
			"event", kind,
			"tag", PaymentFailedTag,
			"status", status,
			"error", err,
		)
	}
}

func (e *Engine) exception(ctx context.Context, kind event.Kind, email string, opts Options, detail string) Result {
	e.logger.ErrorContext(ctx, "sync aborted",
		"event", kind,
		"email", email,
		"error", detail,
	)
	e.log.Append(ctx, audit.Entry{
		Event:   string(kind),
		Email:   email,
		Status:  audit.StatusException,
		Changes: map[string]any{"error": detail},
		Payload: opts.Payload,
	})
	return Result{Status: audit.StatusException, Email: email, Detail: detail}
}

// buildMergeFields assembles the outbound field mutation. Fixed member fields
// come first, then any extra member attributes with a configured mapping that
// is not already taken, then subscription fields.
func buildMergeFields(fm FieldMap, member *event.Member, sub *event.Subscription, overrideIdentity bool) map[string]string {
	fields := make(map[string]string)

	if tag, ok := fm.Tag(FieldFirstName); ok {
		fields[tag] = member.FirstName
	}
	if tag, ok := fm.Tag(FieldLastName); ok {
		fields[tag] = member.LastName
	}
	if tag, ok := fm.Tag(FieldMemberID); ok {
		if overrideIdentity {
			fields[tag] = deletedIDSentinel
		} else {
			fields[tag] = string(member.ID)
		}
	}
	if tag, ok := fm.Tag(FieldSignupDate); ok {
		fields[tag] = FormatDate(member.CreatedAt)
	}

	for name, tag := range fm {
		if _, taken := fields[tag]; taken {
			continue
		}
		if value, ok := member.Extra[name]; ok {
			fields[tag] = stringify(value)
		}
	}

	if sub != nil {
		if tag, ok := fm.Tag(FieldPlanName); ok {
			fields[tag] = sub.Plan()
		}
		if tag, ok := fm.Tag(FieldPlanActive); ok {
			fields[tag] = YesNo(sub.Active)
		}
		if tag, ok := fm.Tag(FieldAutoRenew); ok {
			fields[tag] = OnOff(sub.Autorenew)
		}
		if tag, ok := fm.Tag(FieldExpiresAt); ok {
			fields[tag] = FormatDate(sub.ExpiresAt)
		}
	}

	return fields
}

func stringify(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		if v == math.Trunc(v) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case nil:
		return ""
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(encoded)
	}
}
