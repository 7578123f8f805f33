package localstore

import (
	"encoding/json"
	"fmt"
	"log"
	"time"
)

// AckKey is the key holding the acknowledgement mapping.
const AckKey = "acknowledged_birthdays"

// Acknowledgements records dismissed birthday notifications.
//
// The mapping is record id -> calendar day of dismissal. A record counts as
// acknowledged only on the day it was dismissed, so next year's birthday
// shows up again. Entries from earlier days are dropped on the next write.
type Acknowledgements struct {
	store *Store
	now   func() time.Time
}

// NewAcknowledgements wraps store. now defaults to time.Now.
func NewAcknowledgements(store *Store, now func() time.Time) *Acknowledgements {
	if now == nil {
		now = time.Now
	}
	return &Acknowledgements{store: store, now: now}
}

func (a *Acknowledgements) today() string {
	return a.now().Format("2006-01-02")
}

func (a *Acknowledgements) mapping() (map[string]string, error) {
	m := make(map[string]string)
	if _, err := a.store.Get(AckKey, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// IsAcknowledged reports whether id was dismissed today. A storage failure
// reads as "not acknowledged".
func (a *Acknowledgements) IsAcknowledged(id string) bool {
	m, err := a.mapping()
	if err != nil {
		log.Printf("[Acknowledgements] Error loading mapping: %v", err)
		return false
	}
	return m[id] == a.today()
}

// Acknowledged returns the ids dismissed today.
func (a *Acknowledgements) Acknowledged() (map[string]bool, error) {
	m, err := a.mapping()
	if err != nil {
		return nil, err
	}
	today := a.today()
	out := make(map[string]bool, len(m))
	for id, day := range m {
		if day == today {
			out[id] = true
		}
	}
	return out, nil
}

// Acknowledge dismisses one record for today.
func (a *Acknowledgements) Acknowledge(id string) error {
	return a.AcknowledgeAll([]string{id})
}

// AcknowledgeAll dismisses every id in one rewrite of the mapping.
func (a *Acknowledgements) AcknowledgeAll(ids []string) error {
	today := a.today()
	return a.store.Update(AckKey, func(raw json.RawMessage) (any, error) {
		m := make(map[string]string)
		if raw != nil {
			if err := json.Unmarshal(raw, &m); err != nil {
				return nil, fmt.Errorf("failed to decode %q: %w", AckKey, err)
			}
		}
		if m == nil {
			m = make(map[string]string)
		}
		for id, day := range m {
			if day != today {
				delete(m, id)
			}
		}
		for _, id := range ids {
			m[id] = today
		}
		return m, nil
	})
}

// Clear forgets every acknowledgement.
func (a *Acknowledgements) Clear() error {
	return a.store.Delete(AckKey)
}
