// Package conversation runs the per-customer booking dialogue and keeps its state.
package conversation

import (
	"encoding/json"
	"time"
)

// Conversation is the dialogue state of one customer.
type Conversation struct {
	UserID string
	Stage  Stage
	// Booking is the last confirmed booking. It survives the return to idle so the
	// customer can later cancel or reschedule it.
	Booking      *ConfirmedBooking
	LastActivity time.Time
	CreatedAt    time.Time
}

// New returns an idle conversation created at now.
func New(userID string, now time.Time) *Conversation {
	return &Conversation{UserID: userID, Stage: Idle{}, LastActivity: now, CreatedAt: now}
}

// State returns the name of the active state.
func (c *Conversation) State() StateName {
	if c.Stage == nil {
		return StateIdle
	}
	return c.Stage.State()
}

// ExpiredAt reports whether the conversation has been idle longer than ttl at now.
func (c *Conversation) ExpiredAt(now time.Time, ttl time.Duration) bool {
	return ttl > 0 && now.Sub(c.LastActivity) > ttl
}

// Clone returns a deep copy.
func (c *Conversation) Clone() *Conversation {
	out := *c
	if c.Booking != nil {
		b := *c.Booking
		out.Booking = &b
	}
	out.Stage = cloneStage(c.Stage)
	return &out
}

type conversationJSON struct {
	UserID       string            `json:"user_id"`
	State        StateName         `json:"state"`
	Stage        json.RawMessage   `json:"stage,omitempty"`
	Booking      *ConfirmedBooking `json:"booking,omitempty"`
	LastActivity time.Time         `json:"last_activity"`
	CreatedAt    time.Time         `json:"created_at"`
}

func (c *Conversation) MarshalJSON() ([]byte, error) {
	state, stage, err := encodeStage(c.Stage)
	if err != nil {
		return nil, err
	}
	return json.Marshal(conversationJSON{
		UserID:       c.UserID,
		State:        state,
		Stage:        stage,
		Booking:      c.Booking,
		LastActivity: c.LastActivity,
		CreatedAt:    c.CreatedAt,
	})
}

func (c *Conversation) UnmarshalJSON(data []byte) error {
	var raw conversationJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	stage, err := decodeStage(raw.State, raw.Stage)
	if err != nil {
		return err
	}
	*c = Conversation{
		UserID:       raw.UserID,
		Stage:        stage,
		Booking:      raw.Booking,
		LastActivity: raw.LastActivity,
		CreatedAt:    raw.CreatedAt,
	}
	return nil
}
