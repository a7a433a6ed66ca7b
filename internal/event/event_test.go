package event

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	assert.Equal(t, KindMemberSignup, Classify("member_signup"))
	assert.Equal(t, KindSubscriptionRenewed, Classify("subscription.renewed"))
	assert.Equal(t, KindChargeFailed, Classify("charge.failed"))
	assert.Equal(t, KindUnknown, Classify("member.suspended"))
	assert.Equal(t, KindUnknown, Classify(""))
}

func TestMemberfulPolicy(t *testing.T) {
	tests := []struct {
		kind   Kind
		policy Policy
	}{
		{KindMemberSignup, PolicyFullSync},
		{KindMemberUpdated, PolicyFullSync},
		{KindSubscriptionCreated, PolicyFullSync},
		{KindSubscriptionUpdated, PolicyFullSync},
		{KindSubscriptionRenewed, PolicyFullSync},
		{KindSubscriptionActivated, PolicyFullSync},
		{KindSubscriptionExpired, PolicyFullSync},
		{KindSubscriptionDeactivated, PolicyDeactivationStub},
		{KindSubscriptionDeleted, PolicySubscriptionDeletion},
		{KindMemberDeleted, PolicyMemberDeletion},
		{KindOrderFailed, PolicyOrderFailed},
		{KindChargeFailed, PolicyIgnore},
		{KindUnknown, PolicyIgnore},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.policy, tt.kind.MemberfulPolicy(), "kind %q", tt.kind)
	}
}

func TestTagSetsAreDisjoint(t *testing.T) {
	adds := []Kind{KindOrderFailed, KindInvoicePaymentFailed, KindChargeFailed, KindPaymentIntentPaymentFailed}
	removes := []Kind{KindInvoicePaid, KindInvoicePaymentSucceeded, KindChargeSucceeded, KindPaymentIntentSucceeded}

	for _, k := range adds {
		assert.True(t, k.AddsPaymentFailedTag(), "kind %q", k)
		assert.False(t, k.RemovesPaymentFailedTag(), "kind %q", k)
	}
	for _, k := range removes {
		assert.True(t, k.RemovesPaymentFailedTag(), "kind %q", k)
		assert.False(t, k.AddsPaymentFailedTag(), "kind %q", k)
	}
	assert.False(t, KindMemberSignup.AddsPaymentFailedTag())
	assert.False(t, KindMemberSignup.RemovesPaymentFailedTag())
}

func TestCacheEligibilityExcludesPaymentKinds(t *testing.T) {
	assert.True(t, KindMemberSignup.CacheEligible())
	assert.True(t, KindMemberUpdated.CacheEligible())
	assert.True(t, KindSubscriptionDeleted.CacheEligible())

	// Payment-class events must never move the identity cache.
	assert.False(t, KindOrderFailed.CacheEligible())
	assert.False(t, KindInvoicePaid.CacheEligible())
	assert.False(t, KindChargeFailed.CacheEligible())
	assert.False(t, KindPaymentIntentSucceeded.CacheEligible())
	assert.False(t, KindMemberDeleted.CacheEligible())
}

func TestMemberDecodesNumericID(t *testing.T) {
	var m Member
	require.NoError(t, json.Unmarshal([]byte(`{"id":7000123,"email":"a@b.com"}`), &m))
	assert.Equal(t, FlexString("7000123"), m.ID)

	require.NoError(t, json.Unmarshal([]byte(`{"id":"abc-42"}`), &m))
	assert.Equal(t, FlexString("abc-42"), m.ID)

	require.NoError(t, json.Unmarshal([]byte(`{"id":null}`), &m))
	assert.Equal(t, FlexString(""), m.ID)
}

func TestMemberCollectsExtraFields(t *testing.T) {
	raw := `{
		"id": 42,
		"email": "a@b.com",
		"first_name": "Ada",
		"last_name": "Lovelace",
		"created_at": "2023-01-01T00:00:00Z",
		"phone": "+44123",
		"country": "UK"
	}`
	var m Member
	require.NoError(t, json.Unmarshal([]byte(raw), &m))

	assert.Equal(t, "Ada", m.FirstName)
	assert.Equal(t, "a@b.com", m.Email)
	require.NotNil(t, m.Extra)
	assert.Equal(t, "+44123", m.Extra["phone"])
	assert.Equal(t, "UK", m.Extra["country"])
	// Known fields never leak into Extra.
	assert.NotContains(t, m.Extra, "email")
	assert.NotContains(t, m.Extra, "created_at")
}

func TestSubscriptionPlanFallback(t *testing.T) {
	var s Subscription
	require.NoError(t, json.Unmarshal([]byte(`{"plan_name":"Starter Plan"}`), &s))
	assert.Equal(t, "Starter Plan", s.Plan())

	var nested Subscription
	require.NoError(t, json.Unmarshal([]byte(`{"subscription_plan":{"name":"Pro Plan"}}`), &nested))
	assert.Equal(t, "Pro Plan", nested.Plan())

	var both Subscription
	require.NoError(t, json.Unmarshal([]byte(`{"plan_name":"Flat","subscription_plan":{"name":"Nested"}}`), &both))
	assert.Equal(t, "Flat", both.Plan())
}

func TestSubscriptionNestedMember(t *testing.T) {
	raw := `{"active":true,"autorenew":"true","expires_at":1700000000,"member":{"id":42,"email":"a@b.com"}}`
	var s Subscription
	require.NoError(t, json.Unmarshal([]byte(raw), &s))
	require.NotNil(t, s.Member)
	assert.Equal(t, FlexString("42"), s.Member.ID)
	assert.Equal(t, true, s.Active)
	assert.Equal(t, "true", s.Autorenew)
	assert.Equal(t, float64(1700000000), s.ExpiresAt)
}
