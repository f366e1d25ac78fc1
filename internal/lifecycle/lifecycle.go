package lifecycle

import "fmt"

// Kind distinguishes the two transaction variants sharing the payment workflow.
type Kind string

const (
	KindOrder      Kind = "order"
	KindEnrollment Kind = "enrollment"
)

func (k Kind) Valid() bool {
	return k == KindOrder || k == KindEnrollment
}

// Status is the progression state of a transaction. Which values are legal
// depends on the Kind; see Statuses.
type Status string

const (
	// Order
	StatusPending          Status = "pending"
	StatusPaymentConfirmed Status = "payment_confirmed"
	StatusShipped          Status = "shipped"
	StatusDelivered        Status = "delivered"
	StatusCancelled        Status = "cancelled"

	// Enrollment
	StatusActive   Status = "active"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"

	// Both
	StatusCompleted Status = "completed"
)

// PaymentStatus tracks the manual bank transfer verification.
type PaymentStatus string

const (
	PaymentUnpaid   PaymentStatus = "unpaid"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRejected PaymentStatus = "rejected"
)

var paymentStatuses = []PaymentStatus{PaymentUnpaid, PaymentPaid, PaymentRejected}

// PaymentStatuses lists every payment status.
func PaymentStatuses() []PaymentStatus {
	out := make([]PaymentStatus, len(paymentStatuses))
	copy(out, paymentStatuses)
	return out
}

func (p PaymentStatus) Valid() bool {
	for _, v := range paymentStatuses {
		if v == p {
			return true
		}
	}
	return false
}

// statusOrder holds each kind's statuses ranked by progression. The rank is
// used to assert that transitions only move forward.
var statusOrder = map[Kind][]Status{
	KindOrder:      {StatusPending, StatusPaymentConfirmed, StatusShipped, StatusDelivered, StatusCompleted, StatusCancelled},
	KindEnrollment: {StatusActive, StatusApproved, StatusCompleted, StatusRejected},
}

var terminal = map[Status]bool{
	StatusCompleted: true,
	StatusCancelled: true,
	StatusRejected:  true,
}

// Statuses returns the legal statuses for a kind in progression order.
func Statuses(k Kind) []Status {
	src := statusOrder[k]
	out := make([]Status, len(src))
	copy(out, src)
	return out
}

// InitialStatus is the status a freshly created transaction starts in.
func InitialStatus(k Kind) Status {
	if k == KindEnrollment {
		return StatusActive
	}
	return StatusPending
}

// Valid reports whether s belongs to the status set of k.
func (s Status) Valid(k Kind) bool {
	return rank(k, s) >= 0
}

// Terminal reports whether no further transition is accepted from s.
func (s Status) Terminal() bool {
	return terminal[s]
}

func rank(k Kind, s Status) int {
	for i, v := range statusOrder[k] {
		if v == s {
			return i
		}
	}
	return -1
}

// Op is an operation requested against an existing transaction.
type Op string

const (
	OpSubmitProof     Op = "submit_proof"
	OpApprove         Op = "approve"
	OpReject          Op = "reject"
	OpShip            Op = "ship"
	OpConfirmDelivery Op = "confirm_delivery"
	OpComplete        Op = "complete"
)

// OpCreate only appears in history; creation is not a table transition.
const OpCreate Op = "create"

var ops = []Op{OpSubmitProof, OpApprove, OpReject, OpShip, OpConfirmDelivery, OpComplete}

// Ops lists every operation known to the table.
func Ops() []Op {
	out := make([]Op, len(ops))
	copy(out, ops)
	return out
}

// Verification reports whether op resolves the payment.
func (o Op) Verification() bool {
	return o == OpApprove || o == OpReject
}

// Decision is the administrator's verdict on a submitted proof.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// Op maps a decision onto its table operation.
func (d Decision) Op() (Op, error) {
	switch d {
	case DecisionApprove:
		return OpApprove, nil
	case DecisionReject:
		return OpReject, nil
	default:
		return "", fmt.Errorf("%w: unknown decision %q", ErrInvalidInput, string(d))
	}
}
