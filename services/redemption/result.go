package redemption

import (
	"time"

	"studentslife/services/loyalty"
)

// Kind tags the outcome of a redemption attempt.
type Kind string

const (
	KindSuccess         Kind = "success"
	KindInvalidFormat   Kind = "invalid_format"
	KindCodeNotFound    Kind = "code_not_found"
	KindCodeNotOwned    Kind = "code_not_owned"
	KindAlreadyUsed     Kind = "already_used"
	KindEventExpired    Kind = "event_expired"
	KindValidationError Kind = "validation_error"
)

func (k Kind) Message() string {
	switch k {
	case KindSuccess:
		return "Discount applied"
	case KindInvalidFormat:
		return "Codes are 12 letters and digits, please check and try again"
	case KindCodeNotFound:
		return "This code does not exist"
	case KindCodeNotOwned:
		return "This code belongs to another partner's event"
	case KindAlreadyUsed:
		return "This code has already been used"
	case KindEventExpired:
		return "The event for this code has ended"
	case KindValidationError:
		return "The code could not be redeemed right now, please try again"
	default:
		return ""
	}
}

type Success struct {
	CodeID             string                `json:"code_id"`
	EventID            string                `json:"event_id"`
	ClientID           string                `json:"client_id"`
	EventTitle         string                `json:"event_title"`
	DiscountPercentage int32                 `json:"discount_percentage"`
	UsedAt             time.Time             `json:"used_at"`
	Stamp              *loyalty.StampOutcome `json:"stamp,omitempty"`
}

type AlreadyUsed struct {
	UsedAt time.Time `json:"used_at"`
}

type EventExpired struct {
	EndDate time.Time `json:"end_date"`
}

// Result is a tagged union: Kind names the variant and only the matching
// payload is set. ValidationError keeps its cause for logs, never for
// clients.
type Result struct {
	Kind         Kind
	Success      *Success
	AlreadyUsed  *AlreadyUsed
	EventExpired *EventExpired
	Cause        error
}

func (r Result) OK() bool { return r.Kind == KindSuccess }

func (r Result) Message() string { return r.Kind.Message() }

func succeeded(s *Success) Result { return Result{Kind: KindSuccess, Success: s} }

func failed(kind Kind) Result { return Result{Kind: kind} }

func alreadyUsed(usedAt *time.Time) Result {
	var at time.Time
	if usedAt != nil {
		at = *usedAt
	}
	return Result{Kind: KindAlreadyUsed, AlreadyUsed: &AlreadyUsed{UsedAt: at}}
}

func eventExpired(end time.Time) Result {
	return Result{Kind: KindEventExpired, EventExpired: &EventExpired{EndDate: end}}
}

func validationFailed(cause error) Result {
	return Result{Kind: KindValidationError, Cause: cause}
}
