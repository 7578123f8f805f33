// Package store provides an in-memory crm.Store.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/warp/crm-engine/crm"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	crm.Broadcaster

	mu        sync.RWMutex
	tasks     map[crm.TaskID]crm.Task
	customers map[crm.CustomerID]crm.Customer
	bills     map[crm.BillID]crm.Bill

	now func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		tasks:     make(map[crm.TaskID]crm.Task),
		customers: make(map[crm.CustomerID]crm.Customer),
		bills:     make(map[crm.BillID]crm.Bill),
		now:       time.Now,
	}
}

var _ crm.Store = (*Memory)(nil)
var _ crm.Resetter = (*Memory)(nil)

// dueLess orders by raw due date ascending with empty dates last.
func dueLess(a, b string) bool {
	if a == "" {
		return false
	}
	if b == "" {
		return true
	}
	return a < b
}

// =============================================================================
// TASKS
// =============================================================================

func (m *Memory) ListTasks(_ context.Context, q crm.Query) ([]crm.Task, error) {
	if q.OwnerID == "" {
		return nil, crm.ErrMissingOwner
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]crm.Task, 0)
	for _, t := range m.tasks {
		if t.OwnerID == q.OwnerID && q.MatchesStatus(string(t.Status)) {
			result = append(result, t)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		if q.OrderByDue && result[i].DueDate != result[j].DueDate {
			return dueLess(result[i].DueDate, result[j].DueDate)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (m *Memory) GetTask(_ context.Context, owner crm.OwnerID, id crm.TaskID) (crm.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tasks[id]
	if !ok || t.OwnerID != owner {
		return crm.Task{}, fmt.Errorf("task %s: %w", id, crm.ErrNotFound)
	}
	return t, nil
}

func (m *Memory) SaveTask(_ context.Context, t crm.Task) error {
	m.mu.Lock()
	op := crm.OpUpdate
	if prev, exists := m.tasks[t.ID]; exists && prev.OwnerID != t.OwnerID {
		m.mu.Unlock()
		return fmt.Errorf("task %s: %w", t.ID, crm.ErrNotFound)
	} else if !exists {
		op = crm.OpInsert
		if t.CreatedAt.IsZero() {
			t.CreatedAt = m.now().UTC()
		}
	}
	m.tasks[t.ID] = t
	m.mu.Unlock()

	m.Publish(crm.Change{Collection: crm.CollectionTasks, Op: op, ID: string(t.ID), OwnerID: t.OwnerID})
	return nil
}

func (m *Memory) DeleteTask(_ context.Context, owner crm.OwnerID, id crm.TaskID) error {
	m.mu.Lock()
	t, ok := m.tasks[id]
	if !ok || t.OwnerID != owner {
		m.mu.Unlock()
		return fmt.Errorf("task %s: %w", id, crm.ErrNotFound)
	}
	delete(m.tasks, id)
	m.mu.Unlock()

	m.Publish(crm.Change{Collection: crm.CollectionTasks, Op: crm.OpDelete, ID: string(id), OwnerID: owner})
	return nil
}

// =============================================================================
// CUSTOMERS
// =============================================================================

func (m *Memory) ListCustomers(_ context.Context, q crm.Query) ([]crm.Customer, error) {
	if q.OwnerID == "" {
		return nil, crm.ErrMissingOwner
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]crm.Customer, 0)
	for _, c := range m.customers {
		if c.OwnerID == q.OwnerID {
			result = append(result, c)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Name != result[j].Name {
			return result[i].Name < result[j].Name
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (m *Memory) GetCustomer(_ context.Context, owner crm.OwnerID, id crm.CustomerID) (crm.Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.customers[id]
	if !ok || c.OwnerID != owner {
		return crm.Customer{}, fmt.Errorf("customer %s: %w", id, crm.ErrNotFound)
	}
	return c, nil
}

func (m *Memory) SaveCustomer(_ context.Context, c crm.Customer) error {
	m.mu.Lock()
	op := crm.OpUpdate
	if prev, exists := m.customers[c.ID]; exists && prev.OwnerID != c.OwnerID {
		m.mu.Unlock()
		return fmt.Errorf("customer %s: %w", c.ID, crm.ErrNotFound)
	} else if !exists {
		op = crm.OpInsert
		if c.CreatedAt.IsZero() {
			c.CreatedAt = m.now().UTC()
		}
	}
	m.customers[c.ID] = c
	m.mu.Unlock()

	m.Publish(crm.Change{Collection: crm.CollectionCustomers, Op: op, ID: string(c.ID), OwnerID: c.OwnerID})
	return nil
}

func (m *Memory) DeleteCustomer(_ context.Context, owner crm.OwnerID, id crm.CustomerID) error {
	m.mu.Lock()
	c, ok := m.customers[id]
	if !ok || c.OwnerID != owner {
		m.mu.Unlock()
		return fmt.Errorf("customer %s: %w", id, crm.ErrNotFound)
	}
	delete(m.customers, id)
	m.mu.Unlock()

	m.Publish(crm.Change{Collection: crm.CollectionCustomers, Op: crm.OpDelete, ID: string(id), OwnerID: owner})
	return nil
}

// =============================================================================
// BILLS
// =============================================================================

func (m *Memory) ListBills(_ context.Context, q crm.Query) ([]crm.Bill, error) {
	if q.OwnerID == "" {
		return nil, crm.ErrMissingOwner
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]crm.Bill, 0)
	for _, b := range m.bills {
		if b.OwnerID == q.OwnerID && q.MatchesStatus(string(b.Status)) {
			result = append(result, b)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		if q.OrderByDue && result[i].DueDate != result[j].DueDate {
			return dueLess(result[i].DueDate, result[j].DueDate)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (m *Memory) GetBill(_ context.Context, owner crm.OwnerID, id crm.BillID) (crm.Bill, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.bills[id]
	if !ok || b.OwnerID != owner {
		return crm.Bill{}, fmt.Errorf("bill %s: %w", id, crm.ErrNotFound)
	}
	return b, nil
}

func (m *Memory) SaveBill(_ context.Context, b crm.Bill) error {
	m.mu.Lock()
	op := crm.OpUpdate
	if prev, exists := m.bills[b.ID]; exists && prev.OwnerID != b.OwnerID {
		m.mu.Unlock()
		return fmt.Errorf("bill %s: %w", b.ID, crm.ErrNotFound)
	} else if !exists {
		op = crm.OpInsert
		if b.CreatedAt.IsZero() {
			b.CreatedAt = m.now().UTC()
		}
	}
	m.bills[b.ID] = b
	m.mu.Unlock()

	m.Publish(crm.Change{Collection: crm.CollectionBills, Op: op, ID: string(b.ID), OwnerID: b.OwnerID})
	return nil
}

func (m *Memory) DeleteBill(_ context.Context, owner crm.OwnerID, id crm.BillID) error {
	m.mu.Lock()
	b, ok := m.bills[id]
	if !ok || b.OwnerID != owner {
		m.mu.Unlock()
		return fmt.Errorf("bill %s: %w", id, crm.ErrNotFound)
	}
	delete(m.bills, id)
	m.mu.Unlock()

	m.Publish(crm.Change{Collection: crm.CollectionBills, Op: crm.OpDelete, ID: string(id), OwnerID: owner})
	return nil
}

func (m *Memory) UpdateBillStatus(_ context.Context, id crm.BillID, status crm.BillStatus) error {
	m.mu.Lock()
	b, ok := m.bills[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("bill %s: %w", id, crm.ErrNotFound)
	}
	b.Status = status
	m.bills[id] = b
	m.mu.Unlock()

	m.Publish(crm.Change{Collection: crm.CollectionBills, Op: crm.OpUpdate, ID: string(id), OwnerID: b.OwnerID})
	return nil
}

// Reset drops every record.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.tasks = make(map[crm.TaskID]crm.Task)
	m.customers = make(map[crm.CustomerID]crm.Customer)
	m.bills = make(map[crm.BillID]crm.Bill)
	return nil
}
