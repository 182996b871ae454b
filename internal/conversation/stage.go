package conversation

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// StateName identifies a conversation state.
type StateName string

const (
	StateIdle                 StateName = "idle"
	StateListingServices      StateName = "listing_services"
	StateCollectingName       StateName = "collecting_name"
	StateCollectingPhone      StateName = "collecting_phone"
	StateCollectingDatetime   StateName = "collecting_datetime"
	StateConfirmingBooking    StateName = "confirming_booking"
	StateCancelRequested      StateName = "cancel_requested"
	StateRescheduleRequested  StateName = "reschedule_requested"
	StateQueryingAvailability StateName = "querying_availability"
)

// Stage is the data carried by the active state. Exactly one stage is active per
// conversation; the set of implementations is closed.
type Stage interface {
	State() StateName
	stage()
}

// BookingDraft accumulates booking details while the customer answers prompts.
type BookingDraft struct {
	CustomerName  string    `json:"customer_name,omitempty"`
	Phone         string    `json:"phone,omitempty"`
	ServiceID     string    `json:"service_id,omitempty"`
	RequestedTime time.Time `json:"requested_time,omitzero"`
}

// ConfirmedBooking is the reference kept after the calendar accepted a booking.
type ConfirmedBooking struct {
	ID           string    `json:"id"`
	CustomerName string    `json:"customer_name"`
	Phone        string    `json:"phone"`
	ServiceID    string    `json:"service_id"`
	Start        time.Time `json:"start"`
}

type Idle struct{}

type ListingServices struct {
	Draft BookingDraft `json:"draft"`
}

type CollectingName struct {
	Draft BookingDraft `json:"draft"`
}

type CollectingPhone struct {
	Draft BookingDraft `json:"draft"`
}

// CollectingDatetime waits for a date expression. Alternatives holds the slots
// offered after the last requested time was taken; a bare list number selects one.
type CollectingDatetime struct {
	Draft        BookingDraft `json:"draft"`
	Alternatives []time.Time  `json:"alternatives,omitempty"`
}

// ConfirmingBooking can only be built from a complete draft.
type ConfirmingBooking struct {
	draft BookingDraft
}

// CancelRequested waits for the customer to confirm a cancellation. CustomerName
// narrows the calendar search when no booking reference is known.
type CancelRequested struct {
	CustomerName string `json:"customer_name,omitempty"`
}

type RescheduleRequested struct{}

// QueryingAvailability waits for a day to list free slots. Resume is the booking
// step to return to afterwards, if the query interrupted one.
type QueryingAvailability struct {
	Resume *CollectingDatetime `json:"resume,omitempty"`
}

// ErrIncompleteDraft is returned when a confirmation stage is built from a draft with missing fields.
var ErrIncompleteDraft = errors.New("conversation: incomplete booking draft")

// NewConfirmingBooking validates that service, name, phone and time are all set.
func NewConfirmingBooking(draft BookingDraft) (ConfirmingBooking, error) {
	var missing []string
	if draft.ServiceID == "" {
		missing = append(missing, "service")
	}
	if draft.CustomerName == "" {
		missing = append(missing, "name")
	}
	if draft.Phone == "" {
		missing = append(missing, "phone")
	}
	if draft.RequestedTime.IsZero() {
		missing = append(missing, "time")
	}
	if len(missing) > 0 {
		return ConfirmingBooking{}, fmt.Errorf("%w: missing %v", ErrIncompleteDraft, missing)
	}
	return ConfirmingBooking{draft: draft}, nil
}

// Draft returns the complete draft awaiting confirmation.
func (c ConfirmingBooking) Draft() BookingDraft { return c.draft }

func (Idle) State() StateName                 { return StateIdle }
func (ListingServices) State() StateName      { return StateListingServices }
func (CollectingName) State() StateName       { return StateCollectingName }
func (CollectingPhone) State() StateName      { return StateCollectingPhone }
func (CollectingDatetime) State() StateName   { return StateCollectingDatetime }
func (ConfirmingBooking) State() StateName    { return StateConfirmingBooking }
func (CancelRequested) State() StateName      { return StateCancelRequested }
func (RescheduleRequested) State() StateName  { return StateRescheduleRequested }
func (QueryingAvailability) State() StateName { return StateQueryingAvailability }

func (Idle) stage()                 {}
func (ListingServices) stage()      {}
func (CollectingName) stage()       {}
func (CollectingPhone) stage()      {}
func (CollectingDatetime) stage()   {}
func (ConfirmingBooking) stage()    {}
func (CancelRequested) stage()      {}
func (RescheduleRequested) stage()  {}
func (QueryingAvailability) stage() {}

// draftOf returns the draft carried by s, if any.
func draftOf(s Stage) BookingDraft {
	switch st := s.(type) {
	case ListingServices:
		return st.Draft
	case CollectingName:
		return st.Draft
	case CollectingPhone:
		return st.Draft
	case CollectingDatetime:
		return st.Draft
	case ConfirmingBooking:
		return st.draft
	case QueryingAvailability:
		if st.Resume != nil {
			return st.Resume.Draft
		}
	}
	return BookingDraft{}
}

func cloneStage(s Stage) Stage {
	switch st := s.(type) {
	case CollectingDatetime:
		if st.Alternatives != nil {
			st.Alternatives = append([]time.Time(nil), st.Alternatives...)
		}
		return st
	case QueryingAvailability:
		if st.Resume != nil {
			resume := cloneStage(*st.Resume).(CollectingDatetime)
			st.Resume = &resume
		}
		return st
	case nil:
		return Idle{}
	default:
		return st
	}
}

type confirmingJSON struct {
	Draft BookingDraft `json:"draft"`
}

func encodeStage(s Stage) (StateName, json.RawMessage, error) {
	if s == nil {
		s = Idle{}
	}
	var payload any = s
	if c, ok := s.(ConfirmingBooking); ok {
		payload = confirmingJSON{Draft: c.draft}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", nil, fmt.Errorf("conversation: encode %s stage: %w", s.State(), err)
	}
	return s.State(), data, nil
}

func decodeStage(state StateName, data json.RawMessage) (Stage, error) {
	if len(data) == 0 {
		data = json.RawMessage("{}")
	}
	var (
		st  Stage
		err error
	)
	switch state {
	case StateIdle, "":
		st = Idle{}
	case StateListingServices:
		var v ListingServices
		err = json.Unmarshal(data, &v)
		st = v
	case StateCollectingName:
		var v CollectingName
		err = json.Unmarshal(data, &v)
		st = v
	case StateCollectingPhone:
		var v CollectingPhone
		err = json.Unmarshal(data, &v)
		st = v
	case StateCollectingDatetime:
		var v CollectingDatetime
		err = json.Unmarshal(data, &v)
		st = v
	case StateConfirmingBooking:
		var v confirmingJSON
		if err = json.Unmarshal(data, &v); err == nil {
			st, err = NewConfirmingBooking(v.Draft)
		}
	case StateCancelRequested:
		var v CancelRequested
		err = json.Unmarshal(data, &v)
		st = v
	case StateRescheduleRequested:
		st = RescheduleRequested{}
	case StateQueryingAvailability:
		var v QueryingAvailability
		err = json.Unmarshal(data, &v)
		st = v
	default:
		return nil, fmt.Errorf("conversation: unknown state %q", state)
	}
	if err != nil {
		return nil, fmt.Errorf("conversation: decode %s stage: %w", state, err)
	}
	return st, nil
}
