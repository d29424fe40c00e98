package event

import (
	"time"

	"studentslife/pkg/errutil"
)

type WindowStatus string

const (
	WindowOpen       WindowStatus = "open"
	WindowNotStarted WindowStatus = "not_started"
	WindowEnded      WindowStatus = "ended"
	WindowInactive   WindowStatus = "inactive"
)

// CheckWindow places now against the event's [StartDate, EndDate] bounds and
// active flag. Both bounds are inclusive.
func CheckWindow(e *Event, now time.Time) WindowStatus {
	switch {
	case !e.IsActive:
		return WindowInactive
	case now.Before(e.StartDate):
		return WindowNotStarted
	case now.After(e.EndDate):
		return WindowEnded
	default:
		return WindowOpen
	}
}

// Ended reports whether now is past the end of the event. Redemption only
// looks at this bound.
func (e *Event) Ended(now time.Time) bool {
	return now.After(e.EndDate)
}

func (e *Event) Validate() error {
	var details []errutil.Detail
	if e.PartnerID == "" {
		details = append(details, errutil.Detail{Field: "partner_id", Message: "is required"})
	}
	if e.Title == "" {
		details = append(details, errutil.Detail{Field: "title", Message: "is required"})
	}
	if e.DiscountPercentage < 0 || e.DiscountPercentage > 100 {
		details = append(details, errutil.Detail{Field: "discount_percentage", Message: "must be between 0 and 100"})
	}
	if e.StartDate.IsZero() || e.EndDate.IsZero() {
		details = append(details, errutil.Detail{Field: "start_date", Message: "start_date and end_date are required"})
	} else if e.EndDate.Before(e.StartDate) {
		details = append(details, errutil.Detail{Field: "end_date", Message: "must not be before start_date"})
	}

	if len(details) > 0 {
		return errutil.ValidationFailed("invalid event", nil, errutil.WithDetails(details...))
	}
	return nil
}
