package scope

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// InquiryStatus is a vendor inquiry's lifecycle state
type InquiryStatus string

const (
	InquiryPending           InquiryStatus = "pending"
	InquiryResponded         InquiryStatus = "responded"
	InquiryWaitingOnCustomer InquiryStatus = "waiting_on_customer"
	InquiryBooked            InquiryStatus = "booked"
	InquiryDeclined          InquiryStatus = "declined"
	InquiryExpired           InquiryStatus = "expired"
)

// Terminal reports whether the state admits no further transitions
func (s InquiryStatus) Terminal() bool {
	switch s {
	case InquiryBooked, InquiryDeclined, InquiryExpired:
		return true
	}
	return false
}

// inquiryTransitions is the allowed state machine
var inquiryTransitions = map[InquiryStatus][]InquiryStatus{
	InquiryPending:           {InquiryResponded, InquiryDeclined, InquiryExpired},
	InquiryResponded:         {InquiryBooked, InquiryWaitingOnCustomer},
	InquiryWaitingOnCustomer: {InquiryResponded, InquiryExpired},
}

// CanTransitionTo reports whether the transition is allowed
func (s InquiryStatus) CanTransitionTo(next InquiryStatus) bool {
	for _, allowed := range inquiryTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Inquiry tracks a customer inquiry sent to one vendor. Only the fields
// the authorization layer consults are modeled here.
type Inquiry struct {
	ID          string
	VendorID    string
	SubmittedBy int64
	Status      InquiryStatus
	CreatedAt   time.Time
	RespondedAt *time.Time
}

var (
	// ErrInvalidTransition indicates the requested state change is not in
	// the inquiry state machine.
	ErrInvalidTransition = errors.New("invalid inquiry transition")

	// ErrRespondNotPermitted indicates the acting principal's grant does
	// not include the respond-to-inquiries capability for the vendor.
	ErrRespondNotPermitted = errors.New("responding to inquiries not permitted")
)

// TransitionInquiry validates and applies an inquiry state change. Any
// transition into the responded state requires the acting principal's
// grant to include the respond-to-inquiries capability for the inquiry's
// vendor.
func (s *Store) TransitionInquiry(ctx context.Context, grant *AccessGrant, inq *Inquiry, next InquiryStatus) error {
	if !inq.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, inq.Status, next)
	}

	if next == InquiryResponded {
		if grant == nil || grant.VendorID != inq.VendorID || !grant.Allows(CapabilityRespondInquiries) {
			return ErrRespondNotPermitted
		}
	}

	if err := s.UpdateInquiryStatus(ctx, inq.ID, inq.Status, next); err != nil {
		return err
	}
	inq.Status = next
	return nil
}
