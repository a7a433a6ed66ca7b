package sync

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/sambatesdesign/ChimpLink/internal/audit"
	"github.com/sambatesdesign/ChimpLink/internal/mailchimp"
)

// profileSyncEvent is the log event name for GBX profile pushes. GBX is the
// member-facing profile system; it pushes flat profile documents rather than
// webhook events, so these syncs bypass the dispatcher entirely.
const profileSyncEvent = "gbx_profile_sync"

// ProfileSyncer upserts a contact from a GBX profile payload. The payload is
// a flat object keyed by profile attribute names; the merge map's
// GBX_PROFILE_FIELDS section decides which attributes flow to the remote
// record. No identity cache is involved: profile pushes always carry the
// member's current address and never rename it.
type ProfileSyncer struct {
	log      *audit.Log
	fields   *FieldSource
	contacts ContactAPI
	logger   *slog.Logger
}

func NewProfileSyncer(log *audit.Log, fields *FieldSource, contacts ContactAPI, logger *slog.Logger) *ProfileSyncer {
	return &ProfileSyncer{log: log, fields: fields, contacts: contacts, logger: logger}
}

// SyncProfile pushes one profile document to the remote contact record and
// appends exactly one log entry with the outcome. raw is the original body,
// kept for replay.
func (s *ProfileSyncer) SyncProfile(ctx context.Context, payload map[string]any, raw json.RawMessage) Result {
	email, _ := payload["email"].(string)
	if email == "" {
		return s.failure(ctx, "unknown", audit.StatusException, raw, "missing email in profile payload")
	}

	fieldMap, err := s.fields.LoadProfileFields(ctx)
	if err != nil {
		return s.failure(ctx, email, audit.StatusException, raw, err.Error())
	}

	mergeFields := make(map[string]string)
	for name, tag := range fieldMap {
		if value, ok := payload[name]; ok && value != nil {
			mergeFields[tag] = stringify(value)
		}
	}

	err = s.contacts.UpsertContact(ctx, mailchimp.ContactKey(email), mailchimp.ContactUpsert{
		EmailAddress: email,
		StatusIfNew:  "subscribed",
		MergeFields:  mergeFields,
	})
	if err != nil {
		status := audit.StatusException
		var apiErr *mailchimp.APIError
		if errors.As(err, &apiErr) {
			status = audit.StatusError
		}
		return s.failure(ctx, email, status, raw, err.Error())
	}

	s.log.Append(ctx, audit.Entry{
		Event:   profileSyncEvent,
		Email:   email,
		Status:  audit.StatusSuccess,
		Payload: raw,
	})
	return Result{Status: audit.StatusSuccess, Email: email}
}

func (s *ProfileSyncer) failure(ctx context.Context, email string, status audit.Status, raw json.RawMessage, detail string) Result {
	s.logger.ErrorContext(ctx, "profile sync failed",
		"email", email,
		"status", status,
		"error", detail,
	)
	s.log.Append(ctx, audit.Entry{
		Event:   profileSyncEvent,
		Email:   email,
		Status:  status,
		Changes: map[string]any{"error": detail},
		Payload: raw,
	})
	return Result{Status: status, Email: email, Detail: detail}
}
