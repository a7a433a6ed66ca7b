package sync

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sambatesdesign/ChimpLink/internal/blobstore"
)

// Semantic field names recognized in the merge mapping.
const (
	FieldFirstName  = "first_name"
	FieldLastName   = "last_name"
	FieldMemberID   = "member_id"
	FieldSignupDate = "signup_date"
	FieldPlanName   = "plan_name"
	FieldPlanActive = "plan_active"
	FieldAutoRenew  = "auto_renew"
	FieldExpiresAt  = "expires_at"
)

// FieldMap translates semantic field names to remote merge-field identifiers.
type FieldMap map[string]string

// Tag returns the remote identifier for a semantic name.
func (m FieldMap) Tag(name string) (string, bool) {
	tag, ok := m[name]
	return tag, ok && tag != ""
}

type mergeMapDoc struct {
	MergeFields   map[string]string `json:"MERGE_FIELDS"`
	ProfileFields map[string]string `json:"GBX_PROFILE_FIELDS"`
}

// FieldSource loads the merge mapping from the blob store. It is read on
// every sync so operators can hot-edit the mapping without a restart.
type FieldSource struct {
	store blobstore.Store
}

func NewFieldSource(store blobstore.Store) *FieldSource {
	return &FieldSource{store: store}
}

// Load fetches the current mapping. A missing blob or missing MERGE_FIELDS
// section is an error: syncing without a mapping would write garbage field
// ids to the remote record.
func (s *FieldSource) Load(ctx context.Context) (FieldMap, error) {
	data, err := s.store.Load(ctx, blobstore.KeyMergeMap)
	if err != nil {
		return nil, fmt.Errorf("load merge map: %w", err)
	}
	var doc mergeMapDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode merge map: %w", err)
	}
	if len(doc.MergeFields) == 0 {
		return nil, fmt.Errorf("merge map has no MERGE_FIELDS section")
	}
	return FieldMap(doc.MergeFields), nil
}

// LoadProfileFields fetches the GBX profile mapping. Unlike the webhook
// mapping, a missing GBX_PROFILE_FIELDS section is not an error: a profile
// sync with no configured mappings still upserts the bare email address.
func (s *FieldSource) LoadProfileFields(ctx context.Context) (FieldMap, error) {
	data, err := s.store.Load(ctx, blobstore.KeyMergeMap)
	if err != nil {
		return nil, fmt.Errorf("load merge map: %w", err)
	}
	var doc mergeMapDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode merge map: %w", err)
	}
	return FieldMap(doc.ProfileFields), nil
}
