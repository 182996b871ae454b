package conversation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/wolfman30/barberbot/internal/business"
	"github.com/wolfman30/barberbot/internal/calendar"
	"github.com/wolfman30/barberbot/internal/intent"
	"github.com/wolfman30/barberbot/internal/notify"
	"github.com/wolfman30/barberbot/pkg/textnorm"
)

const (
	minNameRunes  = 3
	minPhoneDigit = 8
	// daySlotLimit caps the slots listed for an availability query.
	daySlotLimit = 100
)

func (e *Engine) step(ctx context.Context, conv *Conversation, text string, now time.Time) (result, error) {
	in := e.classifier.Classify(text)
	if in.Global() {
		return e.onGlobal(conv, in), nil
	}

	switch st := conv.Stage.(type) {
	case Idle:
		return e.onIdle(conv, text, in), nil
	case ListingServices:
		return e.onListingServices(conv, st, text, in), nil
	case CollectingName:
		return e.onCollectingName(conv, st, text), nil
	case CollectingPhone:
		return e.onCollectingPhone(conv, st, text), nil
	case CollectingDatetime:
		return e.onCollectingDatetime(ctx, conv, st, text, now)
	case ConfirmingBooking:
		return e.onConfirmingBooking(ctx, conv, st, text)
	case CancelRequested:
		return e.onCancelRequested(ctx, conv, st, text), nil
	case RescheduleRequested:
		return e.onRescheduleRequested(ctx, conv, text), nil
	case QueryingAvailability:
		return e.onQueryingAvailability(ctx, conv, st, text, now)
	default:
		return result{}, fmt.Errorf("conversation: unhandled stage %T", st)
	}
}

// onGlobal handles the commands honored in every state.
func (e *Engine) onGlobal(conv *Conversation, in intent.Intent) result {
	switch in {
	case intent.Reset:
		return result{text: e.welcome(), remove: true}
	case intent.Cancel:
		conv.Stage = CancelRequested{CustomerName: draftOf(conv.Stage).CustomerName}
		return result{text: msgConfirmCancel}
	case intent.Reschedule:
		if conv.Booking == nil {
			return result{text: msgNothingToResched}
		}
		conv.Stage = RescheduleRequested{}
		return result{text: msgConfirmReschedule}
	case intent.ShowAvailability:
		query := QueryingAvailability{}
		switch st := conv.Stage.(type) {
		case CollectingDatetime:
			resume := CollectingDatetime{Draft: st.Draft}
			query.Resume = &resume
		case ConfirmingBooking:
			draft := st.Draft()
			draft.RequestedTime = time.Time{}
			query.Resume = &CollectingDatetime{Draft: draft}
		case QueryingAvailability:
			query.Resume = st.Resume
		}
		conv.Stage = query
		return result{text: msgAskDay}
	}
	return result{}
}

func (e *Engine) onIdle(conv *Conversation, text string, in intent.Intent) result {
	switch in {
	case intent.Services:
		conv.Stage = ListingServices{}
		return result{text: e.catalog.Render()}
	case intent.Book:
		if svc, ok := e.catalog.Resolve(text); ok {
			conv.Stage = CollectingName{Draft: BookingDraft{ServiceID: svc.ID}}
			return result{text: askNameForService(svc)}
		}
		conv.Stage = CollectingName{}
		return result{text: msgAskName}
	default:
		return result{text: e.welcome()}
	}
}

func (e *Engine) onListingServices(conv *Conversation, st ListingServices, text string, in intent.Intent) result {
	svc, ok := e.catalog.Resolve(text)
	if !ok {
		if in == intent.Book {
			return result{text: msgChooseFirst + e.catalog.Render()}
		}
		return result{text: msgUnknownService + e.catalog.Render()}
	}

	draft := st.Draft
	draft.ServiceID = svc.ID
	switch {
	case draft.CustomerName == "":
		conv.Stage = CollectingName{Draft: draft}
		return result{text: askNameForService(svc)}
	case draft.Phone == "":
		conv.Stage = CollectingPhone{Draft: draft}
		return result{text: askPhone(draft.CustomerName)}
	default:
		conv.Stage = CollectingDatetime{Draft: draft}
		return result{text: askDatetime(svc, e.validator.Hours())}
	}
}

func (e *Engine) onCollectingName(conv *Conversation, st CollectingName, text string) result {
	name := strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(name) < minNameRunes || e.classifier.IsGreetingOnly(name) {
		return result{text: msgNameTooShort}
	}

	draft := st.Draft
	draft.CustomerName = name
	if _, ok := e.catalog.Get(draft.ServiceID); !ok {
		// Without a default service the customer picks one before giving a phone.
		draft.ServiceID = ""
		if svc, ok := e.catalog.Get(e.defaultServiceID); ok {
			draft.ServiceID = svc.ID
		} else {
			conv.Stage = ListingServices{Draft: draft}
			return result{text: askServiceAfterName(name, e.catalog.Render())}
		}
	}
	conv.Stage = CollectingPhone{Draft: draft}
	return result{text: askPhone(name)}
}

func (e *Engine) onCollectingPhone(conv *Conversation, st CollectingPhone, text string) result {
	phone, digits := cleanPhone(text)
	if digits < minPhoneDigit {
		return result{text: msgInvalidPhone}
	}

	draft := st.Draft
	draft.Phone = phone
	svc, ok := e.catalog.Get(draft.ServiceID)
	if !ok {
		conv.Stage = ListingServices{Draft: draft}
		return result{text: msgChooseFirst + e.catalog.Render()}
	}
	conv.Stage = CollectingDatetime{Draft: draft}
	return result{text: askDatetime(svc, e.validator.Hours())}
}

func (e *Engine) onCollectingDatetime(ctx context.Context, conv *Conversation, st CollectingDatetime, text string, now time.Time) (result, error) {
	svc, ok := e.catalog.Get(st.Draft.ServiceID)
	if !ok {
		conv.Stage = ListingServices{Draft: st.Draft}
		return result{text: msgChooseFirst + e.catalog.Render()}, nil
	}

	requested, picked := pickAlternative(st.Alternatives, text)
	if !picked {
		var parsed bool
		requested, parsed = e.parser.Parse(text, now)
		if !parsed {
			if other, ok := e.switchService(text); ok && other.ID != svc.ID {
				draft := st.Draft
				draft.ServiceID = other.ID
				conv.Stage = CollectingDatetime{Draft: draft}
				return result{text: askDatetime(other, e.validator.Hours())}, nil
			}
		}
	}
	if err := e.validator.Validate(requested, now); err != nil {
		var verr *business.ValidationError
		if errors.As(err, &verr) {
			return result{text: verr.Message}, nil
		}
		return result{}, err
	}

	free, err := e.oracle.CheckFree(ctx, requested, svc.Duration())
	if err != nil {
		e.logger.Warn("conversation: availability check failed", "user_id", conv.UserID, "error", err)
		return result{text: msgCalendarDown}, nil
	}
	if !free {
		alts := e.alternativesFor(ctx, conv.UserID, requested, svc)
		conv.Stage = CollectingDatetime{Draft: st.Draft, Alternatives: alts}
		return result{text: slotTakenMessage(alts)}, nil
	}

	draft := st.Draft
	draft.RequestedTime = requested
	confirm, err := NewConfirmingBooking(draft)
	if err != nil {
		return result{}, err
	}
	conv.Stage = confirm
	return result{text: confirmPrompt(draft, svc)}, nil
}

func (e *Engine) onConfirmingBooking(ctx context.Context, conv *Conversation, st ConfirmingBooking, text string) (result, error) {
	draft := st.Draft()
	switch {
	case e.classifier.IsNegative(text):
		draft.RequestedTime = time.Time{}
		conv.Stage = CollectingDatetime{Draft: draft}
		return result{text: msgAskAnotherTime}, nil
	case !e.classifier.IsAffirmative(text):
		return result{text: msgConfirmReprompt}, nil
	}

	svc, ok := e.catalog.Get(draft.ServiceID)
	if !ok {
		return result{}, fmt.Errorf("conversation: unknown service %q in draft", draft.ServiceID)
	}

	// The slot may have been taken while the customer was deciding.
	if free, err := e.oracle.CheckFree(ctx, draft.RequestedTime, svc.Duration()); err == nil && !free {
		// A create that timed out may still have written the event.
		if id, err := e.oracle.FindBooking(ctx, conv.UserID, draft.RequestedTime); err == nil {
			e.logger.Info("conversation: adopting booking from earlier attempt", "user_id", conv.UserID, "booking_id", id)
			return e.confirmBooking(ctx, conv, draft, svc, id), nil
		}
		alts := e.alternativesFor(ctx, conv.UserID, draft.RequestedTime, svc)
		draft.RequestedTime = time.Time{}
		conv.Stage = CollectingDatetime{Draft: draft, Alternatives: alts}
		return result{text: slotTakenMessage(alts)}, nil
	}

	id, err := e.oracle.CreateBooking(ctx, calendar.BookingDetails{
		CustomerName: draft.CustomerName,
		Phone:        draft.Phone,
		Sender:       conv.UserID,
		Service:      svc,
		Start:        draft.RequestedTime,
	})
	if err != nil {
		e.logger.Error("conversation: create booking failed", "user_id", conv.UserID, "error", err)
		e.alert(ctx, notify.OperatorAlert{
			Kind:         notify.AlertBookingFailed,
			CustomerName: draft.CustomerName,
			Phone:        draft.Phone,
			Sender:       conv.UserID,
			ServiceName:  svc.DisplayName(),
			Start:        draft.RequestedTime,
			Error:        err.Error(),
		})
		return result{text: msgBookingFailed}, nil
	}
	return e.confirmBooking(ctx, conv, draft, svc, id), nil
}

func (e *Engine) confirmBooking(ctx context.Context, conv *Conversation, draft BookingDraft, svc business.Service, id string) result {
	booking := &ConfirmedBooking{
		ID:           id,
		CustomerName: draft.CustomerName,
		Phone:        draft.Phone,
		ServiceID:    svc.ID,
		Start:        draft.RequestedTime,
	}
	conv.Booking = booking
	conv.Stage = Idle{}

	lead := time.Duration(0)
	if e.scheduleReminder(ctx, conv.UserID, booking, svc) {
		lead = e.reminderLead
	}
	e.alert(ctx, notify.OperatorAlert{
		Kind:         notify.AlertBookingConfirmed,
		CustomerName: booking.CustomerName,
		Phone:        booking.Phone,
		Sender:       conv.UserID,
		ServiceName:  svc.DisplayName(),
		BookingID:    id,
		Start:        booking.Start,
	})
	e.logger.Info("conversation: booking confirmed", "user_id", conv.UserID, "booking_id", id, "service", svc.ID)
	return result{text: bookingConfirmed(booking.Start, svc, lead)}
}

func (e *Engine) onCancelRequested(ctx context.Context, conv *Conversation, st CancelRequested, text string) result {
	if !e.classifier.IsAffirmative(text) {
		conv.Stage = Idle{}
		return result{text: msgCancelAborted}
	}

	req := calendar.CancelRequest{CustomerName: st.CustomerName, Sender: conv.UserID}
	if conv.Booking != nil {
		req.BookingID = conv.Booking.ID
		req.CustomerName = conv.Booking.CustomerName
	}
	if err := e.oracle.CancelBooking(ctx, req); err != nil {
		if errors.Is(err, calendar.ErrBookingNotFound) {
			if b := conv.Booking; b != nil {
				e.cancelReminders(ctx, b.ID, conv.UserID)
				conv.Booking = nil
			}
			conv.Stage = Idle{}
			return result{text: msgCancelNotFound}
		}
		e.logger.Error("conversation: cancel booking failed", "user_id", conv.UserID, "error", err)
		return result{text: msgCancelFailed}
	}

	e.cancelReminders(ctx, req.BookingID, conv.UserID)
	alert := notify.OperatorAlert{Kind: notify.AlertBookingCancelled, Sender: conv.UserID, CustomerName: req.CustomerName, BookingID: req.BookingID}
	if b := conv.Booking; b != nil {
		alert.Phone = b.Phone
		alert.Start = b.Start
		if svc, ok := e.catalog.Get(b.ServiceID); ok {
			alert.ServiceName = svc.DisplayName()
		}
	}
	e.alert(ctx, alert)
	return result{text: msgCancelled, remove: true}
}

func (e *Engine) onRescheduleRequested(ctx context.Context, conv *Conversation, text string) result {
	if !e.classifier.IsAffirmative(text) {
		conv.Stage = Idle{}
		return result{text: msgRescheduleAborted}
	}
	b := conv.Booking
	if b == nil {
		conv.Stage = Idle{}
		return result{text: msgNothingToResched}
	}

	err := e.oracle.CancelBooking(ctx, calendar.CancelRequest{BookingID: b.ID, CustomerName: b.CustomerName, Sender: conv.UserID})
	if errors.Is(err, calendar.ErrBookingNotFound) {
		// Already gone from the calendar; the old slot is free either way.
		e.logger.Warn("conversation: booking to reschedule no longer exists", "user_id", conv.UserID, "booking_id", b.ID)
		err = nil
	}
	if err != nil {
		e.logger.Error("conversation: reschedule cancel failed", "user_id", conv.UserID, "booking_id", b.ID, "error", err)
		conv.Stage = Idle{}
		return result{text: msgRescheduleFailed}
	}
	e.cancelReminders(ctx, b.ID, conv.UserID)

	conv.Booking = nil
	draft := BookingDraft{CustomerName: b.CustomerName, Phone: b.Phone, ServiceID: b.ServiceID}
	svc, ok := e.catalog.Get(b.ServiceID)
	if !ok {
		draft.ServiceID = ""
		conv.Stage = ListingServices{Draft: draft}
		return result{text: msgChooseFirst + e.catalog.Render()}
	}
	conv.Stage = CollectingDatetime{Draft: draft}
	return result{text: askNewDatetime(svc)}
}

func (e *Engine) onQueryingAvailability(ctx context.Context, conv *Conversation, st QueryingAvailability, text string, now time.Time) (result, error) {
	day, ok := e.parser.ParseDay(text, now)
	if !ok {
		return result{text: msgUnknownDay}, nil
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if day.Before(today) {
		return result{text: msgPastDay}, nil
	}
	if e.validator.Hours().IsClosed(day.Weekday()) {
		return result{text: msgClosedDay}, nil
	}

	slots, err := e.oracle.ListFreeSlots(ctx, day, business.DefaultSlotDuration, daySlotLimit)
	if err != nil {
		e.logger.Warn("conversation: list free slots failed", "user_id", conv.UserID, "error", err)
		return result{text: msgCalendarDown}, nil
	}
	if len(slots) == 0 {
		return result{text: daySlotsMessage(day, nil)}, nil
	}

	reply := daySlotsMessage(day, slots)
	if st.Resume != nil {
		conv.Stage = *st.Resume
		if svc, ok := e.catalog.Get(st.Resume.Draft.ServiceID); ok {
			reply += resumeDatetimePrompt(svc)
		}
		return result{text: reply}, nil
	}
	conv.Stage = Idle{}
	return result{text: reply + availabilityFooter}, nil
}

func (e *Engine) alternativesFor(ctx context.Context, userID string, requested time.Time, svc business.Service) []time.Time {
	alts, err := e.oracle.ListFreeSlots(ctx, requested, svc.Duration(), e.alternatives)
	if err != nil {
		e.logger.Warn("conversation: list alternatives failed", "user_id", userID, "error", err)
		return nil
	}
	return alts
}

// switchService resolves a service named while a date is expected. Bare numbers are
// left to the date flow.
func (e *Engine) switchService(text string) (business.Service, bool) {
	trimmed := textnorm.StripPunctuation(strings.TrimSpace(text))
	if _, err := strconv.Atoi(trimmed); err == nil {
		return business.Service{}, false
	}
	return e.catalog.Resolve(trimmed)
}

// pickAlternative resolves a bare list number against the offered alternatives.
func pickAlternative(alts []time.Time, text string) (time.Time, bool) {
	if len(alts) == 0 {
		return time.Time{}, false
	}
	n, err := strconv.Atoi(textnorm.StripPunctuation(strings.TrimSpace(text)))
	if err != nil || n < 1 || n > len(alts) {
		return time.Time{}, false
	}
	return alts[n-1], true
}

// cleanPhone keeps digits and single spaces and reports how many digits were found.
func cleanPhone(text string) (string, int) {
	var b strings.Builder
	digits := 0
	for _, r := range text {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
			digits++
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " "), digits
}
