// Package event defines the closed set of recognized webhook event kinds and
// the domain objects they carry. Classification is by the literal event
// string; anything else maps to KindUnknown rather than falling through
// untyped access.
package event

// Kind is a recognized webhook event type.
type Kind string

// Membership-platform kinds.
const (
	KindMemberSignup            Kind = "member_signup"
	KindMemberUpdated           Kind = "member_updated"
	KindMemberDeleted           Kind = "member.deleted"
	KindSubscriptionCreated     Kind = "subscription.created"
	KindSubscriptionUpdated     Kind = "subscription.updated"
	KindSubscriptionRenewed     Kind = "subscription.renewed"
	KindSubscriptionActivated   Kind = "subscription.activated"
	KindSubscriptionExpired     Kind = "subscription.expired"
	KindSubscriptionDeactivated Kind = "subscription.deactivated"
	KindSubscriptionDeleted     Kind = "subscription.deleted"
	KindOrderFailed             Kind = "order.failed"
)

// Payment-processor kinds.
const (
	KindInvoicePaymentFailed       Kind = "invoice.payment_failed"
	KindChargeFailed               Kind = "charge.failed"
	KindPaymentIntentPaymentFailed Kind = "payment_intent.payment_failed"
	KindInvoicePaid                Kind = "invoice.paid"
	KindInvoicePaymentSucceeded    Kind = "invoice.payment_succeeded"
	KindChargeSucceeded            Kind = "charge.succeeded"
	KindPaymentIntentSucceeded     Kind = "payment_intent.succeeded"
)

// KindUnknown covers every unrecognized event string.
const KindUnknown Kind = ""

// Classify maps an event string to its Kind.
func Classify(eventType string) Kind {
	switch k := Kind(eventType); k {
	case KindMemberSignup, KindMemberUpdated, KindMemberDeleted,
		KindSubscriptionCreated, KindSubscriptionUpdated, KindSubscriptionRenewed,
		KindSubscriptionActivated, KindSubscriptionExpired,
		KindSubscriptionDeactivated, KindSubscriptionDeleted,
		KindOrderFailed,
		KindInvoicePaymentFailed, KindChargeFailed, KindPaymentIntentPaymentFailed,
		KindInvoicePaid, KindInvoicePaymentSucceeded, KindChargeSucceeded,
		KindPaymentIntentSucceeded:
		return k
	default:
		return KindUnknown
	}
}

// Policy is the handling strategy the dispatcher applies to a kind.
type Policy int

const (
	PolicyIgnore Policy = iota
	PolicyFullSync
	PolicyDeactivationStub
	PolicySubscriptionDeletion
	PolicyMemberDeletion
	PolicyOrderFailed
	PolicyPaymentTag
)

// MemberfulPolicy returns the handling strategy for membership-platform
// events. Payment-processor kinds arrive on a different ingress and are
// ignored here.
func (k Kind) MemberfulPolicy() Policy {
	switch k {
	case KindMemberSignup, KindMemberUpdated,
		KindSubscriptionCreated, KindSubscriptionUpdated, KindSubscriptionRenewed,
		KindSubscriptionActivated, KindSubscriptionExpired:
		return PolicyFullSync
	case KindSubscriptionDeactivated:
		return PolicyDeactivationStub
	case KindSubscriptionDeleted:
		return PolicySubscriptionDeletion
	case KindMemberDeleted:
		return PolicyMemberDeletion
	case KindOrderFailed:
		return PolicyOrderFailed
	default:
		return PolicyIgnore
	}
}

// AddsPaymentFailedTag reports whether the kind activates the payment-failed
// tag on the remote contact.
func (k Kind) AddsPaymentFailedTag() bool {
	switch k {
	case KindOrderFailed, KindInvoicePaymentFailed, KindChargeFailed, KindPaymentIntentPaymentFailed:
		return true
	}
	return false
}

// RemovesPaymentFailedTag reports whether the kind clears the payment-failed
// tag on the remote contact.
func (k Kind) RemovesPaymentFailedTag() bool {
	switch k {
	case KindInvoicePaid, KindInvoicePaymentSucceeded, KindChargeSucceeded, KindPaymentIntentSucceeded:
		return true
	}
	return false
}

// CacheEligible reports whether a successful profile sync for this kind may
// move the identity cache. This is an explicit allow-set: only the
// profile-bearing membership kinds qualify; payment-class events never touch
// the cache.
func (k Kind) CacheEligible() bool {
	switch k {
	case KindMemberSignup, KindMemberUpdated,
		KindSubscriptionCreated, KindSubscriptionUpdated, KindSubscriptionRenewed,
		KindSubscriptionActivated, KindSubscriptionExpired,
		KindSubscriptionDeactivated, KindSubscriptionDeleted:
		return true
	}
	return false
}
