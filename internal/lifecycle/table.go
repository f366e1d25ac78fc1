package lifecycle

import "fmt"

// Party is a bit set describing how an actor relates to a transaction.
type Party uint8

const (
	PartyBuyer Party = 1 << iota
	PartySeller
	PartyAdmin
)

// Has reports whether any bit of q is present in p.
func (p Party) Has(q Party) bool {
	return p&q != 0
}

func (p Party) String() string {
	s := ""
	for _, named := range []struct {
		bit  Party
		name string
	}{{PartyBuyer, "buyer"}, {PartySeller, "seller"}, {PartyAdmin, "admin"}} {
		if p&named.bit == 0 {
			continue
		}
		if s != "" {
			s += "|"
		}
		s += named.name
	}
	if s == "" {
		return "none"
	}
	return s
}

// Requirement flags extra preconditions carried by an edge.
type Requirement uint8

const (
	NeedProof Requirement = 1 << iota
	NeedTracking
)

// NotificationType names the message sent as a side effect of a transition.
type NotificationType string

const (
	NotifyNone               NotificationType = ""
	NotifyPaymentSubmitted   NotificationType = "payment_submitted"
	NotifyPaymentConfirmed   NotificationType = "payment_confirmed"
	NotifyPaymentRejected    NotificationType = "payment_rejected"
	NotifyOrderShipped       NotificationType = "order_shipped"
	NotifyOrderDelivered     NotificationType = "order_delivered"
	NotifyOrderCompleted     NotificationType = "order_completed"
	NotifyEnrollmentApproved NotificationType = "enrollment_approved"
	NotifyEnrollmentRejected NotificationType = "enrollment_rejected"
)

// Edge is one legal row of the transition table.
type Edge struct {
	Kind        Kind
	Op          Op
	From        Status
	Payment     PaymentStatus
	To          Status
	NextPayment PaymentStatus
	Actor       Party
	Requires    Requirement
	Notify      NotificationType
	Recipient   Party
	Message     string
}

// table is the single source of truth for every lifecycle. Anything not listed
// here is rejected by Evaluate.
var table = []Edge{
	{KindOrder, OpSubmitProof, StatusPending, PaymentUnpaid, StatusPending, PaymentUnpaid,
		PartyBuyer, 0, NotifyPaymentSubmitted, PartySeller, "The buyer submitted a payment proof; awaiting verification."},
	{KindOrder, OpApprove, StatusPending, PaymentUnpaid, StatusPaymentConfirmed, PaymentPaid,
		PartyAdmin, NeedProof, NotifyPaymentConfirmed, PartyBuyer, "Your payment has been confirmed."},
	{KindOrder, OpReject, StatusPending, PaymentUnpaid, StatusCancelled, PaymentRejected,
		PartyAdmin, 0, NotifyPaymentRejected, PartyBuyer, "Your payment was rejected and the order has been cancelled."},
	{KindOrder, OpShip, StatusPaymentConfirmed, PaymentPaid, StatusShipped, PaymentPaid,
		PartySeller, NeedTracking, NotifyOrderShipped, PartyBuyer, "Your order has been shipped."},
	{KindOrder, OpConfirmDelivery, StatusShipped, PaymentPaid, StatusDelivered, PaymentPaid,
		PartyBuyer, 0, NotifyOrderDelivered, PartySeller, "The buyer confirmed delivery."},
	{KindOrder, OpComplete, StatusDelivered, PaymentPaid, StatusCompleted, PaymentPaid,
		PartyBuyer | PartySeller, 0, NotifyOrderCompleted, PartySeller, "The order has been completed."},

	{KindEnrollment, OpSubmitProof, StatusActive, PaymentUnpaid, StatusActive, PaymentUnpaid,
		PartyBuyer, 0, NotifyNone, 0, ""},
	{KindEnrollment, OpApprove, StatusActive, PaymentUnpaid, StatusApproved, PaymentPaid,
		PartyAdmin, NeedProof, NotifyEnrollmentApproved, PartyBuyer, "Your payment has been approved; the course is unlocked."},
	{KindEnrollment, OpReject, StatusActive, PaymentUnpaid, StatusRejected, PaymentRejected,
		PartyAdmin, 0, NotifyEnrollmentRejected, PartyBuyer, "Your payment was rejected."},
	{KindEnrollment, OpComplete, StatusApproved, PaymentPaid, StatusCompleted, PaymentPaid,
		PartyBuyer, 0, NotifyNone, 0, ""},
}

type edgeKey struct {
	kind Kind
	op   Op
}

var index = func() map[edgeKey][]Edge {
	m := make(map[edgeKey][]Edge, len(table))
	for _, e := range table {
		k := edgeKey{e.Kind, e.Op}
		m[k] = append(m[k], e)
	}
	return m
}()

// Table returns a copy of every legal edge.
func Table() []Edge {
	out := make([]Edge, len(table))
	copy(out, table)
	return out
}

// Facts is everything Evaluate needs to know about the current row and request.
type Facts struct {
	Kind     Kind
	Status   Status
	Payment  PaymentStatus
	HasProof bool
	Tracking bool
	Actor    Party
}

// Evaluate resolves op against the table. It is a total function: it returns
// exactly one edge or exactly one named error.
func Evaluate(f Facts, op Op) (Edge, error) {
	edges := index[edgeKey{f.Kind, op}]
	if len(edges) == 0 {
		return Edge{}, fmt.Errorf("%w: %s is not defined for %s", ErrInvalidTransition, op, f.Kind)
	}
	if !f.Actor.Has(edges[0].Actor) {
		return Edge{}, fmt.Errorf("%w: %s requires %s, actor is %s", ErrUnauthorized, op, edges[0].Actor, f.Actor)
	}
	if op.Verification() && f.Payment != PaymentUnpaid {
		return Edge{}, fmt.Errorf("%w: payment is already %s", ErrAlreadyResolved, f.Payment)
	}
	if op == OpSubmitProof && f.HasProof {
		return Edge{}, fmt.Errorf("%w: payment proof already present", ErrAlreadySubmitted)
	}
	for _, e := range edges {
		if e.From != f.Status || e.Payment != f.Payment {
			continue
		}
		if e.Requires&NeedProof != 0 && !f.HasProof {
			return Edge{}, fmt.Errorf("%w: %s requires a payment proof", ErrInvalidTransition, op)
		}
		if e.Requires&NeedTracking != 0 && !f.Tracking {
			return Edge{}, fmt.Errorf("%w: tracking reference is required", ErrInvalidInput)
		}
		return e, nil
	}
	return Edge{}, fmt.Errorf("%w: cannot %s from %s/%s", ErrInvalidTransition, op, f.Status, f.Payment)
}
