package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	propCustomerName = "customer_name"
	propPhone        = "phone"
	propSender       = "sender"
	propServiceID    = "service_id"

	// upcomingWindow bounds how far ahead cancellations search for a booking.
	upcomingWindow = 90 * 24 * time.Hour
)

// GoogleConfig selects the calendar and the service-account credentials.
type GoogleConfig struct {
	CalendarID      string
	CredentialsJSON string
	CredentialsFile string
	Location        *time.Location
}

// GoogleBackend stores bookings as events on a Google Calendar.
type GoogleBackend struct {
	svc        *gcal.Service
	calendarID string
	loc        *time.Location
}

// NewGoogleBackend builds the Calendar API client. Extra client options (endpoint,
// HTTP client) are appended after the credentials.
func NewGoogleBackend(ctx context.Context, cfg GoogleConfig, extra ...option.ClientOption) (*GoogleBackend, error) {
	if cfg.CalendarID == "" {
		return nil, errors.New("calendar: google calendar id is required")
	}
	opts := []option.ClientOption{option.WithScopes(gcal.CalendarScope)}
	switch {
	case cfg.CredentialsJSON != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
	case cfg.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	opts = append(opts, extra...)

	svc, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("calendar: create google service: %w", err)
	}
	return NewGoogleBackendWithService(svc, cfg.CalendarID, cfg.Location), nil
}

// NewGoogleBackendWithService wraps an existing client.
func NewGoogleBackendWithService(svc *gcal.Service, calendarID string, loc *time.Location) *GoogleBackend {
	if loc == nil {
		loc = time.UTC
	}
	return &GoogleBackend{svc: svc, calendarID: calendarID, loc: loc}
}

func (g *GoogleBackend) Busy(ctx context.Context, from, to time.Time) ([]Interval, error) {
	events, err := g.list(ctx, from, to)
	if err != nil {
		return nil, err
	}
	out := make([]Interval, 0, len(events))
	for _, ev := range events {
		if ev.Transparency == "transparent" {
			continue
		}
		start, end, err := g.bounds(ev)
		if err != nil {
			return nil, err
		}
		out = append(out, Interval{Start: start, End: end})
	}
	return out, nil
}

func (g *GoogleBackend) Insert(ctx context.Context, ev Event) (string, error) {
	created, err := g.svc.Events.Insert(g.calendarID, &gcal.Event{
		Summary:     ev.Summary,
		Description: fmt.Sprintf("Cliente: %s\nTeléfono: %s\nWhatsApp: %s", ev.CustomerName, ev.Phone, ev.Sender),
		Start:       &gcal.EventDateTime{DateTime: ev.Start.In(g.loc).Format(time.RFC3339), TimeZone: g.loc.String()},
		End:         &gcal.EventDateTime{DateTime: ev.End.In(g.loc).Format(time.RFC3339), TimeZone: g.loc.String()},
		ExtendedProperties: &gcal.EventExtendedProperties{
			Private: map[string]string{
				propCustomerName: ev.CustomerName,
				propPhone:        ev.Phone,
				propSender:       ev.Sender,
				propServiceID:    ev.ServiceID,
			},
		},
	}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("calendar: insert event: %w", err)
	}
	return created.Id, nil
}

func (g *GoogleBackend) Delete(ctx context.Context, id string) error {
	err := g.svc.Events.Delete(g.calendarID, id).Context(ctx).Do()
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && (apiErr.Code == http.StatusNotFound || apiErr.Code == http.StatusGone) {
			return ErrBookingNotFound
		}
		return fmt.Errorf("calendar: delete event: %w", err)
	}
	return nil
}

func (g *GoogleBackend) FindUpcoming(ctx context.Context, from time.Time) ([]Event, error) {
	items, err := g.list(ctx, from, from.Add(upcomingWindow))
	if err != nil {
		return nil, err
	}
	out := make([]Event, 0, len(items))
	for _, item := range items {
		start, end, err := g.bounds(item)
		if err != nil {
			return nil, err
		}
		if start.Before(from) {
			continue
		}
		ev := Event{ID: item.Id, Start: start, End: end, Summary: item.Summary}
		if item.ExtendedProperties != nil {
			props := item.ExtendedProperties.Private
			ev.CustomerName = props[propCustomerName]
			ev.Phone = props[propPhone]
			ev.Sender = props[propSender]
			ev.ServiceID = props[propServiceID]
		}
		out = append(out, ev)
	}
	return out, nil
}

func (g *GoogleBackend) Ping(ctx context.Context) error {
	if _, err := g.svc.Calendars.Get(g.calendarID).Context(ctx).Do(); err != nil {
		return fmt.Errorf("calendar: get calendar: %w", err)
	}
	return nil
}

func (g *GoogleBackend) list(ctx context.Context, from, to time.Time) ([]*gcal.Event, error) {
	var out []*gcal.Event
	pageToken := ""
	for {
		call := g.svc.Events.List(g.calendarID).
			TimeMin(from.Format(time.RFC3339)).
			TimeMax(to.Format(time.RFC3339)).
			SingleEvents(true).
			OrderBy("startTime").
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		resp, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("calendar: list events: %w", err)
		}
		for _, item := range resp.Items {
			if item.Status == "cancelled" {
				continue
			}
			out = append(out, item)
		}
		if resp.NextPageToken == "" {
			return out, nil
		}
		pageToken = resp.NextPageToken
	}
}

// bounds converts event start/end, treating all-day events as the whole local day.
func (g *GoogleBackend) bounds(ev *gcal.Event) (time.Time, time.Time, error) {
	start, err := g.parseDateTime(ev.Start)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("calendar: event %s start: %w", ev.Id, err)
	}
	end, err := g.parseDateTime(ev.End)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("calendar: event %s end: %w", ev.Id, err)
	}
	return start, end, nil
}

func (g *GoogleBackend) parseDateTime(dt *gcal.EventDateTime) (time.Time, error) {
	if dt == nil {
		return time.Time{}, errors.New("missing date")
	}
	if dt.DateTime != "" {
		t, err := time.Parse(time.RFC3339, dt.DateTime)
		if err != nil {
			return time.Time{}, err
		}
		return t.In(g.loc), nil
	}
	return time.ParseInLocation("2006-01-02", dt.Date, g.loc)
}
