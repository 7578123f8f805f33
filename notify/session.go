package notify

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/warp/crm-engine/crm"
	"github.com/warp/crm-engine/localstore"
)

// =============================================================================
// SESSION - one signed-in owner
// =============================================================================

// SessionConfig is shared by every session of a process.
type SessionConfig struct {
	Store crm.Store

	// StateDir holds one local state file per owner. Empty keeps local
	// state in memory.
	StateDir string

	// RefreshInterval is the timed refresh period (default 1 hour).
	RefreshInterval time.Duration

	// Live subscribes to the store's change feed.
	Live bool

	// Timed enables the periodic refresh.
	Timed bool

	Now func() time.Time
}

// Session owns everything the notification UI needs for one owner. It is
// built at sign-in and closed at sign-out; nothing about it is global.
type Session struct {
	Owner      crm.OwnerID
	Aggregator *Aggregator
	Acks       *localstore.Acknowledgements
	Prefs      *localstore.Preferences
	Notices    *NoticeBuffer
	Trigger    *RefreshTrigger
	StartedAt  time.Time
}

// BirthdayCard is one dismissible birthday notification.
type BirthdayCard struct {
	Customer    crm.Customer
	MessageLink string
}

// NotificationsView is what the notifications page renders.
type NotificationsView struct {
	Counts       Counts
	OverdueTasks []crm.Task
	OverdueBills []crm.Bill

	// Birthdays excludes those acknowledged today.
	Birthdays             []BirthdayCard
	AcknowledgedBirthdays int

	RefreshedAt time.Time
	Stale       []crm.Collection
}

// NewSession wires a session for owner. It does not fetch anything yet.
func NewSession(cfg SessionConfig, owner crm.OwnerID) (*Session, error) {
	if owner == "" {
		return nil, crm.ErrMissingOwner
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	local := localstore.NewMemory()
	if cfg.StateDir != "" {
		var err error
		local, err = localstore.Open(StatePath(cfg.StateDir, owner))
		if err != nil {
			return nil, fmt.Errorf("failed to open local state for %s: %w", owner, err)
		}
	}

	notices := NewNoticeBuffer(DefaultNoticeCapacity)
	agg := NewAggregator(owner, cfg.Store, notices, now)

	s := &Session{
		Owner:      owner,
		Aggregator: agg,
		Acks:       localstore.NewAcknowledgements(local, now),
		Prefs:      localstore.NewPreferences(local),
		Notices:    notices,
		StartedAt:  now(),
	}

	if cfg.Timed || cfg.Live {
		var feed crm.ChangeFeed
		if cfg.Live {
			feed = cfg.Store
		}
		s.Trigger = NewRefreshTrigger(agg, owner, feed)
		switch {
		case !cfg.Timed:
			s.Trigger.CheckInterval = 0
		case cfg.RefreshInterval > 0:
			s.Trigger.CheckInterval = cfg.RefreshInterval
		}
	}
	return s, nil
}

// StatePath is the local state file of owner under dir.
func StatePath(dir string, owner crm.OwnerID) string {
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, string(owner))
	return filepath.Join(dir, safe, "local.json")
}

// Start runs the first refresh and starts the background trigger.
func (s *Session) Start(ctx context.Context) RefreshResult {
	res := s.Aggregator.Refresh(ctx)
	if s.Trigger != nil {
		s.Trigger.Start()
	}
	return res
}

// Refresh re-runs the pipeline now.
func (s *Session) Refresh(ctx context.Context) RefreshResult {
	return s.Aggregator.Refresh(ctx)
}

// Close stops background refreshes. In-flight status writes still finish.
func (s *Session) Close() {
	if s.Trigger != nil {
		s.Trigger.Stop()
	}
}

// Notifications builds the page view from the current snapshot.
func (s *Session) Notifications() NotificationsView {
	snap := s.Aggregator.Snapshot()

	acked, err := s.Acks.Acknowledged()
	if err != nil {
		log.Printf("[Session] Error loading acknowledgements for %s: %v", s.Owner, err)
		acked = map[string]bool{}
	}

	view := NotificationsView{
		Counts:       snap.Counts,
		OverdueTasks: snap.OverdueTasks,
		OverdueBills: snap.OverdueBills,
		Birthdays:    []BirthdayCard{},
		RefreshedAt:  snap.RefreshedAt,
		Stale:        snap.Stale,
	}
	for _, c := range snap.BirthdaysToday {
		if acked[string(c.ID)] {
			view.AcknowledgedBirthdays++
			continue
		}
		link, _ := crm.MessageLink(c.Phone, crm.BirthdayGreeting(c))
		view.Birthdays = append(view.Birthdays, BirthdayCard{Customer: c, MessageLink: link})
	}
	return view
}

// AcknowledgeBirthday dismisses one birthday notification for today.
func (s *Session) AcknowledgeBirthday(id crm.CustomerID) error {
	return s.Acks.Acknowledge(string(id))
}

// AcknowledgeAllBirthdays dismisses every birthday currently shown in one
// rewrite and returns the ids it marked.
func (s *Session) AcknowledgeAllBirthdays() ([]string, error) {
	snap := s.Aggregator.Snapshot()
	ids := make([]string, 0, len(snap.BirthdaysToday))
	for _, c := range snap.BirthdaysToday {
		ids = append(ids, string(c.ID))
	}
	if len(ids) == 0 {
		return ids, nil
	}
	return ids, s.Acks.AcknowledgeAll(ids)
}

// =============================================================================
// SESSIONS - sign-in / sign-out
// =============================================================================

// Sessions indexes live sessions by owner.
type Sessions struct {
	cfg SessionConfig

	mu      sync.Mutex
	byOwner map[crm.OwnerID]*Session
}

func NewSessions(cfg SessionConfig) *Sessions {
	return &Sessions{cfg: cfg, byOwner: make(map[crm.OwnerID]*Session)}
}

// SignIn returns the owner's session, creating and starting it if needed.
// Signing in again counts as an auth state change and refreshes.
func (m *Sessions) SignIn(ctx context.Context, owner crm.OwnerID) (*Session, error) {
	m.mu.Lock()
	existing, ok := m.byOwner[owner]
	m.mu.Unlock()
	if ok {
		existing.Refresh(ctx)
		return existing, nil
	}

	s, err := NewSession(m.cfg, owner)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if raced, ok := m.byOwner[owner]; ok {
		m.mu.Unlock()
		raced.Refresh(ctx)
		return raced, nil
	}
	m.byOwner[owner] = s
	m.mu.Unlock()

	s.Start(ctx)
	log.Printf("[Session] Signed in %s", owner)
	return s, nil
}

// SignOut tears the owner's session down. It reports false if none existed.
func (m *Sessions) SignOut(owner crm.OwnerID) bool {
	m.mu.Lock()
	s, ok := m.byOwner[owner]
	delete(m.byOwner, owner)
	m.mu.Unlock()

	if !ok {
		return false
	}
	s.Close()
	log.Printf("[Session] Signed out %s", owner)
	return true
}

func (m *Sessions) Get(owner crm.OwnerID) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byOwner[owner]
	return s, ok
}

// Each calls fn for every live session.
func (m *Sessions) Each(fn func(*Session)) {
	m.mu.Lock()
	list := make([]*Session, 0, len(m.byOwner))
	for _, s := range m.byOwner {
		list = append(list, s)
	}
	m.mu.Unlock()

	for _, s := range list {
		fn(s)
	}
}

// CloseAll signs every owner out (shutdown).
func (m *Sessions) CloseAll() {
	m.mu.Lock()
	list := m.byOwner
	m.byOwner = make(map[crm.OwnerID]*Session)
	m.mu.Unlock()

	for _, s := range list {
		s.Close()
	}
}
