/*
reconcile.go - Opportunistic bill status correction

PURPOSE:
  A bill's stored status is a cache of "due date vs. today". When a fetched
  bill is past due but still stored as pending, the in-memory copy is
  marked overdue right away and an update is sent to storage in the
  background.

GUARANTEES:
  - The corrected slice is returned before any write completes.
  - Writes are never rolled back in memory; a failed write only logs and
    raises one notice.
  - Writes outlive the caller's context (a closed page does not cancel them).
  - The update is an unconditional overwrite, so overlapping passes from two
    sessions write the same value.

OBSERVING WRITES:
  Reconcile returns a channel buffered to the number of writes. It yields
  one ReconcileResult per write and is closed when all are done. Ignoring
  it is fine; nothing blocks on it.
*/
package notify

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/warp/crm-engine/crm"
)

// StatusWriter is the single write the reconciler needs.
type StatusWriter interface {
	UpdateBillStatus(ctx context.Context, id crm.BillID, status crm.BillStatus) error
}

// ReconcileResult reports one status write.
type ReconcileResult struct {
	BillID crm.BillID
	Err    error
}

type Reconciler struct {
	Writer  StatusWriter
	Notices NoticeSink
}

func NewReconciler(w StatusWriter, notices NoticeSink) *Reconciler {
	if notices == nil {
		notices = Discard
	}
	return &Reconciler{Writer: w, Notices: notices}
}

// Reconcile returns a copy of bills with every overdue bill marked
// BillOverdue, and starts a background write for each one stored as pending.
func (r *Reconciler) Reconcile(ctx context.Context, bills []crm.Bill, today time.Time) ([]crm.Bill, <-chan ReconcileResult) {
	corrected := make([]crm.Bill, len(bills))
	copy(corrected, bills)

	var stale []crm.BillID
	for i, b := range corrected {
		if !crm.IsOverdueBill(b, today) {
			continue
		}
		if b.Status == crm.BillPending {
			stale = append(stale, b.ID)
		}
		corrected[i].Status = crm.BillOverdue
	}

	results := make(chan ReconcileResult, len(stale))
	if len(stale) == 0 {
		close(results)
		return corrected, results
	}

	writeCtx := context.WithoutCancel(ctx)
	var wg sync.WaitGroup
	for _, id := range stale {
		wg.Add(1)
		go func(id crm.BillID) {
			defer wg.Done()
			results <- r.write(writeCtx, id)
		}(id)
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	return corrected, results
}

func (r *Reconciler) write(ctx context.Context, id crm.BillID) ReconcileResult {
	err := r.Writer.UpdateBillStatus(ctx, id, crm.BillOverdue)
	if err != nil {
		log.Printf("[Reconciler] Error marking bill %s overdue: %v", id, err)
		r.Notices.Notify(Notice{
			Level:   LevelError,
			Message: fmt.Sprintf("Could not update status of bill %s", id),
			At:      time.Now(),
		})
	}
	return ReconcileResult{BillID: id, Err: err}
}

// Wait drains results and returns the failed writes. Mostly for tests and
// callers that want to confirm persistence.
func Wait(results <-chan ReconcileResult) []ReconcileResult {
	var failed []ReconcileResult
	for res := range results {
		if res.Err != nil {
			failed = append(failed, res)
		}
	}
	return failed
}
