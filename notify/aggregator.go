/*
Package notify aggregates CRM notifications for one signed-in owner.

PURPOSE:
  Turns three remote collections into the badge counts and notification
  cards the UI shows: overdue tasks, today's birthdays, overdue bills.

PIPELINE (one Refresh):
  1. Fetch tasks, customers and bills concurrently (fetch.go)
  2. Reconcile stale bill statuses in the background (reconcile.go)
  3. Classify each collection by date (crm/classify.go)
  4. Count the classified collections (count.go)
  5. Publish a Snapshot

FAILURE MODEL:
  A failed fetch is logged, raises one notice, and leaves that collection
  at its last good value. The other collections still update. Nothing is
  retried and nothing is returned as an error: the worst case is a stale
  count.

OVERLAP:
  Refreshes may run concurrently (timer, change feed, manual). Each one
  takes a generation number; a collection outcome older than the one
  already settled is dropped, so a slow refresh can neither roll values
  back nor mark a collection stale after a newer success.

SEE ALSO:
  - trigger.go: When refreshes run
  - session.go: Per-owner wiring
*/
package notify

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/warp/crm-engine/crm"
)

// Snapshot is the aggregator's published state.
type Snapshot struct {
	Counts         Counts
	OverdueTasks   []crm.Task
	BirthdaysToday []crm.Customer
	OverdueBills   []crm.Bill
	RefreshedAt    time.Time

	// Stale lists collections whose last fetch failed.
	Stale []crm.Collection
}

// RefreshResult is what one Refresh produced.
type RefreshResult struct {
	Snapshot Snapshot

	// Errors holds the fetch error per failed collection.
	Errors map[crm.Collection]error

	// Reconciled yields status-write results; see Reconciler.Reconcile.
	Reconciled <-chan ReconcileResult
}

type Aggregator struct {
	Owner      crm.OwnerID
	Fetcher    *Fetcher
	Reconciler *Reconciler
	Notices    NoticeSink
	Now        func() time.Time

	seq atomic.Uint64

	mu      sync.RWMutex
	state   Snapshot
	settled map[crm.Collection]uint64
	stale   map[crm.Collection]bool

	refreshedGen uint64
}

// NewAggregator wires an aggregator for owner on top of store.
func NewAggregator(owner crm.OwnerID, store crm.Store, notices NoticeSink, now func() time.Time) *Aggregator {
	if notices == nil {
		notices = Discard
	}
	if now == nil {
		now = time.Now
	}
	return &Aggregator{
		Owner:      owner,
		Fetcher:    NewFetcher(store),
		Reconciler: NewReconciler(store, notices),
		Notices:    notices,
		Now:        now,
		state: Snapshot{
			OverdueTasks:   []crm.Task{},
			BirthdaysToday: []crm.Customer{},
			OverdueBills:   []crm.Bill{},
		},
		settled: make(map[crm.Collection]uint64),
		stale:   make(map[crm.Collection]bool),
	}
}

// Refresh runs the whole pipeline once.
func (a *Aggregator) Refresh(ctx context.Context) RefreshResult {
	gen := a.seq.Add(1)
	today := a.Now()

	var (
		wg        sync.WaitGroup
		tasks     []crm.Task
		customers []crm.Customer
		bills     []crm.Bill
		taskErr   error
		custErr   error
		billErr   error
	)
	wg.Add(3)
	go func() {
		defer wg.Done()
		tasks, taskErr = a.Fetcher.FetchTasks(ctx, a.Owner)
	}()
	go func() {
		defer wg.Done()
		customers, custErr = a.Fetcher.FetchCustomers(ctx, a.Owner)
	}()
	go func() {
		defer wg.Done()
		bills, billErr = a.Fetcher.FetchBills(ctx, a.Owner)
	}()
	wg.Wait()

	errs := make(map[crm.Collection]error)

	var overdueTasks []crm.Task
	if taskErr != nil {
		errs[crm.CollectionTasks] = taskErr
	} else {
		overdueTasks = crm.OverdueTasks(tasks, today)
	}

	var birthdays []crm.Customer
	if custErr != nil {
		errs[crm.CollectionCustomers] = custErr
	} else {
		birthdays = crm.BirthdaysToday(customers, today)
	}

	var overdueBills []crm.Bill
	var reconciled <-chan ReconcileResult
	if billErr != nil {
		errs[crm.CollectionBills] = billErr
		closed := make(chan ReconcileResult)
		close(closed)
		reconciled = closed
	} else {
		var corrected []crm.Bill
		corrected, reconciled = a.Reconciler.Reconcile(ctx, bills, today)
		overdueBills = crm.OverdueBills(corrected, today)
	}

	for coll, err := range errs {
		a.reportFetchError(coll, err)
	}

	a.mu.Lock()
	refreshed := false
	apply := func(coll crm.Collection, err error, set func()) {
		if !a.accept(coll, gen) {
			return
		}
		if err != nil {
			a.stale[coll] = true
			return
		}
		set()
		delete(a.stale, coll)
		refreshed = true
	}
	apply(crm.CollectionTasks, taskErr, func() { a.state.OverdueTasks = overdueTasks })
	apply(crm.CollectionCustomers, custErr, func() { a.state.BirthdaysToday = birthdays })
	apply(crm.CollectionBills, billErr, func() { a.state.OverdueBills = overdueBills })
	if refreshed && gen > a.refreshedGen {
		a.refreshedGen = gen
		a.state.RefreshedAt = today
	}
	a.state.Counts = Counts{
		OverdueTasks:   Count(a.state.OverdueTasks),
		BirthdaysToday: Count(a.state.BirthdaysToday),
		OverdueBills:   Count(a.state.OverdueBills),
	}
	snap := a.snapshotLocked()
	a.mu.Unlock()

	return RefreshResult{Snapshot: snap, Errors: errs, Reconciled: reconciled}
}

// accept records gen as the settled outcome for coll unless a newer
// outcome, success or failure, is already in place. Caller holds a.mu.
func (a *Aggregator) accept(coll crm.Collection, gen uint64) bool {
	if gen < a.settled[coll] {
		return false
	}
	a.settled[coll] = gen
	return true
}

func (a *Aggregator) reportFetchError(coll crm.Collection, err error) {
	log.Printf("[Aggregator] Error refreshing %s for %s: %v", coll, a.Owner, err)
	a.Notices.Notify(Notice{
		Level:   LevelError,
		Message: fmt.Sprintf("Could not load %s, showing last known values", coll),
		At:      time.Now(),
	})
}

// Snapshot returns a copy of the current state.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.snapshotLocked()
}

// Counts returns the current badge numbers.
func (a *Aggregator) Counts() Counts {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state.Counts
}

func (a *Aggregator) snapshotLocked() Snapshot {
	snap := a.state
	snap.OverdueTasks = append([]crm.Task{}, a.state.OverdueTasks...)
	snap.BirthdaysToday = append([]crm.Customer{}, a.state.BirthdaysToday...)
	snap.OverdueBills = append([]crm.Bill{}, a.state.OverdueBills...)
	snap.Stale = nil
	for _, coll := range []crm.Collection{crm.CollectionTasks, crm.CollectionCustomers, crm.CollectionBills} {
		if a.stale[coll] {
			snap.Stale = append(snap.Stale, coll)
		}
	}
	return snap
}
