/*
store.go - Storage collaborator interfaces

PURPOSE:
  Defines the boundary between the notification engine and the hosted
  storage service. The engine only needs collection-style reads filtered by
  owner and status, single-field status updates, plain record writes, and
  a table-level change feed.

KEY INTERFACES:
  TaskStore, CustomerStore, BillStore: per-collection reads and writes
  ChangeFeed:                         push notification of committed writes
  Store:                              all of the above

QUERY MODEL:
  Query carries the predicates the engine chooses (owner eq, status in,
  order by due date). Stores execute it; they never decide which filter
  applies to which screen. That choice lives in notify/fetch.go.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite-backed store
  - crm/store/memory.go:    In-memory store for tests and demos
*/
package crm

import "context"

// Query selects records of one owner.
type Query struct {
	OwnerID OwnerID

	// Statuses restricts results to these status values. Empty means any.
	Statuses []string

	// OrderByDue sorts by due date ascending, records without a date last.
	OrderByDue bool
}

// MatchesStatus reports whether status passes the query's status filter.
func (q Query) MatchesStatus(status string) bool {
	if len(q.Statuses) == 0 {
		return true
	}
	for _, s := range q.Statuses {
		if s == status {
			return true
		}
	}
	return false
}

// =============================================================================
// COLLECTION STORES
// =============================================================================

// Save* upserts by id. Saving over an id held by another owner fails with
// ErrNotFound and leaves the record untouched.

type TaskStore interface {
	ListTasks(ctx context.Context, q Query) ([]Task, error)
	GetTask(ctx context.Context, owner OwnerID, id TaskID) (Task, error)
	SaveTask(ctx context.Context, t Task) error
	DeleteTask(ctx context.Context, owner OwnerID, id TaskID) error
}

type CustomerStore interface {
	ListCustomers(ctx context.Context, q Query) ([]Customer, error)
	GetCustomer(ctx context.Context, owner OwnerID, id CustomerID) (Customer, error)
	SaveCustomer(ctx context.Context, c Customer) error
	DeleteCustomer(ctx context.Context, owner OwnerID, id CustomerID) error
}

type BillStore interface {
	ListBills(ctx context.Context, q Query) ([]Bill, error)
	GetBill(ctx context.Context, owner OwnerID, id BillID) (Bill, error)
	SaveBill(ctx context.Context, b Bill) error
	DeleteBill(ctx context.Context, owner OwnerID, id BillID) error

	// UpdateBillStatus overwrites the status field only. Unconditional, so
	// repeating it is harmless.
	UpdateBillStatus(ctx context.Context, id BillID, status BillStatus) error
}

// =============================================================================
// CHANGE FEED
// =============================================================================

type ChangeOp string

const (
	OpInsert ChangeOp = "insert"
	OpUpdate ChangeOp = "update"
	OpDelete ChangeOp = "delete"
)

// Change describes one committed write.
type Change struct {
	Collection Collection
	Op         ChangeOp
	ID         string
	OwnerID    OwnerID
}

// ChangeFeed pushes table-level change events. The returned cancel func
// ends the subscription and closes the channel.
type ChangeFeed interface {
	Subscribe(ctx context.Context, collections ...Collection) (<-chan Change, func())
}

// Store is the full storage collaborator.
type Store interface {
	TaskStore
	CustomerStore
	BillStore
	ChangeFeed
}

// Resetter is implemented by stores that can wipe all data (demo only).
type Resetter interface {
	Reset(ctx context.Context) error
}
