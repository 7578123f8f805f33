/*
Package sqlite provides a SQLite-backed implementation of crm.Store.

PURPOSE:
  Stands in for the hosted storage service: owner-scoped collections of
  tasks, customers and bills, single-field status updates, and a change
  feed that fires after every committed write.

KEY TABLES:
  tasks:      to-do items, optional due date
  customers:  client records, optional birthday
  bills:      finance records, amount stored as decimal text

INDEXES:
  - idx_tasks_owner_status_due:  pending-task fetch (hot path)
  - idx_bills_owner_status_due:  open-bill fetch (hot path)
  - idx_customers_owner:         birthday scan

DATES:
  Due dates and birthdays are stored as the raw text the client sent.
  Ordering is textual, which matches calendar order for ISO dates. Rows
  without a due date sort last.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. ":memory:" databases are pinned to a
  single connection so every caller sees the same data.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Multiple readers don't block
  - Single writer at a time

USAGE:
  store, err := sqlite.New("./data/crm.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - crm/store.go: Interface definitions
  - crm/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/crm-engine/crm"
)

// Store implements crm.Store using SQLite.
type Store struct {
	crm.Broadcaster

	db *sql.DB
	mu sync.RWMutex
}

var _ crm.Store = (*Store)(nil)
var _ crm.Resetter = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		title TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		due_date TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_owner_status_due
		ON tasks(owner_id, status, due_date);

	CREATE TABLE IF NOT EXISTS customers (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		name TEXT NOT NULL,
		phone TEXT,
		email TEXT,
		birthday TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_customers_owner
		ON customers(owner_id);

	CREATE TABLE IF NOT EXISTS bills (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		description TEXT NOT NULL,
		amount TEXT NOT NULL DEFAULT '0',
		due_date TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		important BOOLEAN DEFAULT FALSE,
		category TEXT,
		bill_type TEXT NOT NULL DEFAULT 'expense',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_bills_owner_status_due
		ON bills(owner_id, status, due_date);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Reset deletes all data (for demo scenarios).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"tasks", "customers", "bills"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to reset %s: %w", table, err)
		}
	}
	return nil
}

// =============================================================================
// QUERY HELPERS
// =============================================================================

// where renders the owner/status predicates of q.
func where(q crm.Query) (string, []any) {
	clause := "WHERE owner_id = ?"
	args := []any{string(q.OwnerID)}
	if len(q.Statuses) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(q.Statuses)), ",")
		clause += " AND status IN (" + placeholders + ")"
		for _, st := range q.Statuses {
			args = append(args, st)
		}
	}
	return clause, args
}

func orderByDue(q crm.Query, fallback string) string {
	if q.OrderByDue {
		return " ORDER BY due_date IS NULL OR due_date = '', due_date ASC, id ASC"
	}
	return " ORDER BY " + fallback
}

// exists reports whether the row is already present, so the change feed
// can label the event.
// claim reports whether id already exists in table. An id held by a
// different owner is reported as crm.ErrNotFound.
func (s *Store) claim(ctx context.Context, table, owner, id string) (bool, error) {
	var held string
	err := s.db.QueryRowContext(ctx, "SELECT owner_id FROM "+table+" WHERE id = ?", id).Scan(&held)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	case err != nil:
		return false, err
	case held != owner:
		return false, crm.ErrNotFound
	}
	return true, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func createdAt(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(time.RFC3339)
}

func opFor(existed bool) crm.ChangeOp {
	if existed {
		return crm.OpUpdate
	}
	return crm.OpInsert
}

// =============================================================================
// TASKS
// =============================================================================

func (s *Store) ListTasks(ctx context.Context, q crm.Query) ([]crm.Task, error) {
	if q.OwnerID == "" {
		return nil, crm.ErrMissingOwner
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	clause, args := where(q)
	query := "SELECT id, owner_id, title, status, due_date, created_at FROM tasks " +
		clause + orderByDue(q, "created_at ASC, id ASC")

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	tasks := make([]crm.Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (s *Store) GetTask(ctx context.Context, owner crm.OwnerID, id crm.TaskID) (crm.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT id, owner_id, title, status, due_date, created_at FROM tasks WHERE id = ? AND owner_id = ?",
		string(id), string(owner),
	)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return crm.Task{}, fmt.Errorf("task %s: %w", id, crm.ErrNotFound)
	}
	return t, err
}

func (s *Store) SaveTask(ctx context.Context, t crm.Task) error {
	s.mu.Lock()
	existed, err := s.claim(ctx, "tasks", string(t.OwnerID), string(t.ID))
	if err != nil {
		s.mu.Unlock()
		if crm.IsNotFound(err) {
			return fmt.Errorf("task %s: %w", t.ID, err)
		}
		return fmt.Errorf("failed to save task: %w", err)
	}

	query := `
		INSERT INTO tasks (id, owner_id, title, status, due_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			status = excluded.status,
			due_date = excluded.due_date
		WHERE tasks.owner_id = excluded.owner_id
	`
	_, err = s.db.ExecContext(ctx, query,
		string(t.ID), string(t.OwnerID), t.Title, string(t.Status),
		nullString(t.DueDate), createdAt(t.CreatedAt),
	)
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to save task: %w", err)
	}

	s.Publish(crm.Change{Collection: crm.CollectionTasks, Op: opFor(existed), ID: string(t.ID), OwnerID: t.OwnerID})
	return nil
}

func (s *Store) DeleteTask(ctx context.Context, owner crm.OwnerID, id crm.TaskID) error {
	if err := s.delete(ctx, "tasks", string(owner), string(id)); err != nil {
		return fmt.Errorf("task %s: %w", id, err)
	}
	s.Publish(crm.Change{Collection: crm.CollectionTasks, Op: crm.OpDelete, ID: string(id), OwnerID: owner})
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(row scanner) (crm.Task, error) {
	var (
		t                 crm.Task
		id, owner, status string
		dueDate           sql.NullString
		created           string
	)
	if err := row.Scan(&id, &owner, &t.Title, &status, &dueDate, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return t, err
		}
		return t, fmt.Errorf("failed to scan task: %w", err)
	}
	t.ID = crm.TaskID(id)
	t.OwnerID = crm.OwnerID(owner)
	t.Status = crm.TaskStatus(status)
	t.DueDate = dueDate.String
	t.CreatedAt, _ = time.Parse(time.RFC3339, created)
	return t, nil
}

// =============================================================================
// CUSTOMERS
// =============================================================================

func (s *Store) ListCustomers(ctx context.Context, q crm.Query) ([]crm.Customer, error) {
	if q.OwnerID == "" {
		return nil, crm.ErrMissingOwner
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, owner_id, name, phone, email, birthday, created_at FROM customers WHERE owner_id = ? ORDER BY name, id",
		string(q.OwnerID),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query customers: %w", err)
	}
	defer rows.Close()

	customers := make([]crm.Customer, 0)
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

func (s *Store) GetCustomer(ctx context.Context, owner crm.OwnerID, id crm.CustomerID) (crm.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT id, owner_id, name, phone, email, birthday, created_at FROM customers WHERE id = ? AND owner_id = ?",
		string(id), string(owner),
	)
	c, err := scanCustomer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return crm.Customer{}, fmt.Errorf("customer %s: %w", id, crm.ErrNotFound)
	}
	return c, err
}

func (s *Store) SaveCustomer(ctx context.Context, c crm.Customer) error {
	s.mu.Lock()
	existed, err := s.claim(ctx, "customers", string(c.OwnerID), string(c.ID))
	if err != nil {
		s.mu.Unlock()
		if crm.IsNotFound(err) {
			return fmt.Errorf("customer %s: %w", c.ID, err)
		}
		return fmt.Errorf("failed to save customer: %w", err)
	}

	query := `
		INSERT INTO customers (id, owner_id, name, phone, email, birthday, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			phone = excluded.phone,
			email = excluded.email,
			birthday = excluded.birthday
		WHERE customers.owner_id = excluded.owner_id
	`
	_, err = s.db.ExecContext(ctx, query,
		string(c.ID), string(c.OwnerID), c.Name,
		nullString(c.Phone), nullString(c.Email), nullString(c.Birthday),
		createdAt(c.CreatedAt),
	)
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to save customer: %w", err)
	}

	s.Publish(crm.Change{Collection: crm.CollectionCustomers, Op: opFor(existed), ID: string(c.ID), OwnerID: c.OwnerID})
	return nil
}

func (s *Store) DeleteCustomer(ctx context.Context, owner crm.OwnerID, id crm.CustomerID) error {
	if err := s.delete(ctx, "customers", string(owner), string(id)); err != nil {
		return fmt.Errorf("customer %s: %w", id, err)
	}
	s.Publish(crm.Change{Collection: crm.CollectionCustomers, Op: crm.OpDelete, ID: string(id), OwnerID: owner})
	return nil
}

func scanCustomer(row scanner) (crm.Customer, error) {
	var (
		c                      crm.Customer
		id, owner              string
		phone, email, birthday sql.NullString
		created                string
	)
	if err := row.Scan(&id, &owner, &c.Name, &phone, &email, &birthday, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c, err
		}
		return c, fmt.Errorf("failed to scan customer: %w", err)
	}
	c.ID = crm.CustomerID(id)
	c.OwnerID = crm.OwnerID(owner)
	c.Phone = phone.String
	c.Email = email.String
	c.Birthday = birthday.String
	c.CreatedAt, _ = time.Parse(time.RFC3339, created)
	return c, nil
}

// =============================================================================
// BILLS
// =============================================================================

const billColumns = "id, owner_id, description, amount, due_date, status, important, category, bill_type, created_at"

func (s *Store) ListBills(ctx context.Context, q crm.Query) ([]crm.Bill, error) {
	if q.OwnerID == "" {
		return nil, crm.ErrMissingOwner
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	clause, args := where(q)
	query := "SELECT " + billColumns + " FROM bills " + clause + orderByDue(q, "created_at ASC, id ASC")

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bills: %w", err)
	}
	defer rows.Close()

	bills := make([]crm.Bill, 0)
	for rows.Next() {
		b, err := scanBill(rows)
		if err != nil {
			return nil, err
		}
		bills = append(bills, b)
	}
	return bills, rows.Err()
}

func (s *Store) GetBill(ctx context.Context, owner crm.OwnerID, id crm.BillID) (crm.Bill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT "+billColumns+" FROM bills WHERE id = ? AND owner_id = ?",
		string(id), string(owner),
	)
	b, err := scanBill(row)
	if errors.Is(err, sql.ErrNoRows) {
		return crm.Bill{}, fmt.Errorf("bill %s: %w", id, crm.ErrNotFound)
	}
	return b, err
}

func (s *Store) SaveBill(ctx context.Context, b crm.Bill) error {
	s.mu.Lock()
	existed, err := s.claim(ctx, "bills", string(b.OwnerID), string(b.ID))
	if err != nil {
		s.mu.Unlock()
		if crm.IsNotFound(err) {
			return fmt.Errorf("bill %s: %w", b.ID, err)
		}
		return fmt.Errorf("failed to save bill: %w", err)
	}

	query := `
		INSERT INTO bills (` + billColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			description = excluded.description,
			amount = excluded.amount,
			due_date = excluded.due_date,
			status = excluded.status,
			important = excluded.important,
			category = excluded.category,
			bill_type = excluded.bill_type
		WHERE bills.owner_id = excluded.owner_id
	`
	_, err = s.db.ExecContext(ctx, query,
		string(b.ID), string(b.OwnerID), b.Description, b.Amount.String(),
		b.DueDate, string(b.Status), b.Important, nullString(b.Category),
		string(b.Type), createdAt(b.CreatedAt),
	)
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to save bill: %w", err)
	}

	s.Publish(crm.Change{Collection: crm.CollectionBills, Op: opFor(existed), ID: string(b.ID), OwnerID: b.OwnerID})
	return nil
}

func (s *Store) DeleteBill(ctx context.Context, owner crm.OwnerID, id crm.BillID) error {
	if err := s.delete(ctx, "bills", string(owner), string(id)); err != nil {
		return fmt.Errorf("bill %s: %w", id, err)
	}
	s.Publish(crm.Change{Collection: crm.CollectionBills, Op: crm.OpDelete, ID: string(id), OwnerID: owner})
	return nil
}

// UpdateBillStatus overwrites the status column of one bill.
func (s *Store) UpdateBillStatus(ctx context.Context, id crm.BillID, status crm.BillStatus) error {
	s.mu.Lock()
	var owner string
	err := s.db.QueryRowContext(ctx, "SELECT owner_id FROM bills WHERE id = ?", string(id)).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		s.mu.Unlock()
		return fmt.Errorf("bill %s: %w", id, crm.ErrNotFound)
	}
	if err == nil {
		_, err = s.db.ExecContext(ctx, "UPDATE bills SET status = ? WHERE id = ?", string(status), string(id))
	}
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to update bill status: %w", err)
	}

	s.Publish(crm.Change{Collection: crm.CollectionBills, Op: crm.OpUpdate, ID: string(id), OwnerID: crm.OwnerID(owner)})
	return nil
}

func scanBill(row scanner) (crm.Bill, error) {
	var (
		b                             crm.Bill
		id, owner, amount, status, bt string
		category                      sql.NullString
		created                       string
	)
	err := row.Scan(&id, &owner, &b.Description, &amount, &b.DueDate, &status,
		&b.Important, &category, &bt, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return b, err
		}
		return b, fmt.Errorf("failed to scan bill: %w", err)
	}
	b.ID = crm.BillID(id)
	b.OwnerID = crm.OwnerID(owner)
	b.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		b.Amount = decimal.Zero
	}
	b.Status = crm.BillStatus(status)
	b.Category = category.String
	b.Type = crm.BillType(bt)
	b.CreatedAt, _ = time.Parse(time.RFC3339, created)
	return b, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (s *Store) delete(ctx context.Context, table, owner, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM "+table+" WHERE id = ? AND owner_id = ?", id, owner)
	if err != nil {
		return fmt.Errorf("failed to delete: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete: %w", err)
	}
	if n == 0 {
		return crm.ErrNotFound
	}
	return nil
}
