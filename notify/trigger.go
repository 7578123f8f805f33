/*
trigger.go - Timed and live refresh

PURPOSE:
  Re-runs the aggregator without a user action: on a fixed interval, and
  whenever the storage change feed reports a write to tasks, customers or
  bills for this owner.

DESIGN:
  - One background goroutine selects on a ticker and the feed channel
  - A burst of change events collapses into a single refresh
  - Events for other owners are ignored; events without an owner count
  - No coordination with manual refreshes; they may overlap (the
    aggregator drops results older than what it already shows)

CONFIGURATION:
  - CheckInterval: How often to refresh (default: 1 hour, 0 disables)
  - Feed:          Change feed, nil disables live refresh
  - Enabled:       Whether the trigger runs at all (default: true)

USAGE:
  trigger := NewRefreshTrigger(aggregator, owner, store)
  trigger.Start()
  // ... later
  trigger.Stop()
*/
package notify

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/warp/crm-engine/crm"
)

// DefaultRefreshInterval is the timed refresh period.
const DefaultRefreshInterval = time.Hour

// Refresher is anything that can re-run the notification pipeline.
type Refresher interface {
	Refresh(ctx context.Context) RefreshResult
}

type RefreshTrigger struct {
	Refresher     Refresher
	Owner         crm.OwnerID
	Feed          crm.ChangeFeed
	CheckInterval time.Duration
	Enabled       bool

	ticker      *time.Ticker
	stop        chan struct{}
	unsubscribe func()
	wg          sync.WaitGroup
	mu          sync.Mutex
	running     bool
	runs        atomic.Int64
}

// NewRefreshTrigger creates an enabled trigger with the default interval.
func NewRefreshTrigger(r Refresher, owner crm.OwnerID, feed crm.ChangeFeed) *RefreshTrigger {
	return &RefreshTrigger{
		Refresher:     r,
		Owner:         owner,
		Feed:          feed,
		CheckInterval: DefaultRefreshInterval,
		Enabled:       true,
	}
}

// Start begins the trigger. Starting a running trigger does nothing.
func (rt *RefreshTrigger) Start() {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if !rt.Enabled {
		log.Printf("[Trigger] Disabled for %s, not starting", rt.Owner)
		return
	}
	if rt.running {
		return
	}

	var tick <-chan time.Time
	if rt.CheckInterval > 0 {
		rt.ticker = time.NewTicker(rt.CheckInterval)
		tick = rt.ticker.C
	}
	rt.stop = make(chan struct{})

	var changes <-chan crm.Change
	if rt.Feed != nil {
		changes, rt.unsubscribe = rt.Feed.Subscribe(context.Background(),
			crm.CollectionTasks, crm.CollectionCustomers, crm.CollectionBills)
	}

	rt.running = true
	rt.wg.Add(1)
	go rt.run(tick, changes, rt.stop)

	log.Printf("[Trigger] Started for %s with interval %v (live: %t)", rt.Owner, rt.CheckInterval, rt.Feed != nil)
}

// Stop stops the trigger and waits for an in-progress refresh to return.
func (rt *RefreshTrigger) Stop() {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if !rt.running {
		return
	}
	if rt.ticker != nil {
		rt.ticker.Stop()
		rt.ticker = nil
	}
	if rt.unsubscribe != nil {
		rt.unsubscribe()
		rt.unsubscribe = nil
	}
	close(rt.stop)
	rt.wg.Wait()
	rt.running = false
	log.Printf("[Trigger] Stopped for %s", rt.Owner)
}

// Running reports whether the background goroutine is active.
func (rt *RefreshTrigger) Running() bool {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.running
}

func (rt *RefreshTrigger) run(tick <-chan time.Time, changes <-chan crm.Change, stop <-chan struct{}) {
	defer rt.wg.Done()

	for {
		select {
		case <-tick:
			rt.refresh("timer")
		case c, ok := <-changes:
			if !ok {
				changes = nil
				continue
			}
			relevant := rt.relevant(c)
			// Collapse whatever else is already queued.
		drain:
			for {
				select {
				case c, ok := <-changes:
					if !ok {
						changes = nil
						break drain
					}
					relevant = relevant || rt.relevant(c)
				default:
					break drain
				}
			}
			if relevant {
				rt.refresh("change feed")
			}
		case <-stop:
			return
		}
	}
}

func (rt *RefreshTrigger) relevant(c crm.Change) bool {
	return c.OwnerID == "" || c.OwnerID == rt.Owner
}

func (rt *RefreshTrigger) refresh(reason string) {
	res := rt.Refresher.Refresh(context.Background())
	rt.runs.Add(1)
	log.Printf("[Trigger] Refreshed %s on %s: %d tasks, %d birthdays, %d bills overdue",
		rt.Owner, reason, res.Snapshot.Counts.OverdueTasks, res.Snapshot.Counts.BirthdaysToday, res.Snapshot.Counts.OverdueBills)
}

// Runs counts background refreshes since creation.
func (rt *RefreshTrigger) Runs() int64 {
	return rt.runs.Load()
}

// RunNow triggers an immediate refresh (for testing/admin).
func (rt *RefreshTrigger) RunNow() RefreshResult {
	return rt.Refresher.Refresh(context.Background())
}
