/*
Package crm provides the core records and rules of the CRM notification engine.

PURPOSE:
  Holds the flat records the storage service returns (tasks, customers, bills),
  the date rules that classify them, and the storage interfaces the rest of the
  module depends on. Nothing here talks to a database or the network.

KEY CONCEPTS IN THIS FILE (types.go):
  - Task, Customer, Bill: anemic records scoped by OwnerID
  - Status enums: TaskStatus, BillStatus, BillType
  - Collection: the named remote tables a change feed reports on

DATE FIELDS:
  Due dates and birthdays are kept as the raw strings the storage service
  returns ("2024-01-10" or "2024-01-10T09:30:00Z"). They are parsed only by
  the classifier (classify.go), so a malformed value degrades to "no match"
  instead of failing a whole fetch.

MONEY:
  Bill amounts use decimal.Decimal, never float64.

SEE ALSO:
  - classify.go: Overdue / birthday rules
  - store.go: Storage interfaces
  - validate.go: Required-field checks before writes
*/
package crm

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

// OwnerID scopes a record to the authenticated account that created it.
type OwnerID string

type TaskID string
type CustomerID string
type BillID string

// =============================================================================
// TASK
// =============================================================================

type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskCompleted TaskStatus = "completed"
)

func (s TaskStatus) Valid() bool {
	return s == TaskPending || s == TaskCompleted
}

// Task is a to-do item. DueDate is optional.
type Task struct {
	ID        TaskID
	OwnerID   OwnerID
	Title     string
	Status    TaskStatus
	DueDate   string
	CreatedAt time.Time
}

// =============================================================================
// CUSTOMER
// =============================================================================

// Customer is a client record. Birthday is stored as "YYYY-MM-DD".
type Customer struct {
	ID        CustomerID
	OwnerID   OwnerID
	Name      string
	Phone     string
	Email     string
	Birthday  string
	CreatedAt time.Time
}

// =============================================================================
// BILL (finance record)
// =============================================================================

// BillStatus is a value derived from DueDate vs. today and cached in storage.
type BillStatus string

const (
	BillPending  BillStatus = "pending"
	BillOverdue  BillStatus = "overdue"
	BillPaid     BillStatus = "paid"
	BillArchived BillStatus = "archived"
)

func (s BillStatus) Valid() bool {
	switch s {
	case BillPending, BillOverdue, BillPaid, BillArchived:
		return true
	}
	return false
}

// Open reports whether the bill still awaits payment.
func (s BillStatus) Open() bool {
	return s == BillPending || s == BillOverdue
}

type BillType string

const (
	BillIncome  BillType = "income"
	BillExpense BillType = "expense"
)

func (t BillType) Valid() bool {
	return t == BillIncome || t == BillExpense
}

type Bill struct {
	ID          BillID
	OwnerID     OwnerID
	Description string
	Amount      decimal.Decimal
	DueDate     string
	Status      BillStatus
	Important   bool
	Category    string
	Type        BillType
	CreatedAt   time.Time
}

// =============================================================================
// COLLECTIONS
// =============================================================================

// Collection names a remote table.
type Collection string

const (
	CollectionTasks     Collection = "tasks"
	CollectionCustomers Collection = "customers"
	CollectionBills     Collection = "bills"
)
