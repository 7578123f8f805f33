package notify

import (
	"context"
	"fmt"

	"github.com/warp/crm-engine/crm"
)

// =============================================================================
// FILTER SELECTION
// =============================================================================

// TaskQuery selects pending tasks ordered by due date.
func TaskQuery(owner crm.OwnerID) crm.Query {
	return crm.Query{
		OwnerID:    owner,
		Statuses:   []string{string(crm.TaskPending)},
		OrderByDue: true,
	}
}

// CustomerQuery selects every customer; birthdays are matched client-side.
func CustomerQuery(owner crm.OwnerID) crm.Query {
	return crm.Query{OwnerID: owner}
}

// BillQuery selects open bills (pending or overdue) ordered by due date.
func BillQuery(owner crm.OwnerID) crm.Query {
	return crm.Query{
		OwnerID:    owner,
		Statuses:   []string{string(crm.BillPending), string(crm.BillOverdue)},
		OrderByDue: true,
	}
}

// =============================================================================
// FETCHER
// =============================================================================

// Fetcher pulls the three collections the aggregator needs. It does not
// retry; errors go straight back to the caller.
type Fetcher struct {
	Tasks     crm.TaskStore
	Customers crm.CustomerStore
	Bills     crm.BillStore
}

func NewFetcher(store crm.Store) *Fetcher {
	return &Fetcher{Tasks: store, Customers: store, Bills: store}
}

func (f *Fetcher) FetchTasks(ctx context.Context, owner crm.OwnerID) ([]crm.Task, error) {
	tasks, err := f.Tasks.ListTasks(ctx, TaskQuery(owner))
	if err != nil {
		return nil, fmt.Errorf("fetch tasks: %w", err)
	}
	return tasks, nil
}

func (f *Fetcher) FetchCustomers(ctx context.Context, owner crm.OwnerID) ([]crm.Customer, error) {
	customers, err := f.Customers.ListCustomers(ctx, CustomerQuery(owner))
	if err != nil {
		return nil, fmt.Errorf("fetch customers: %w", err)
	}
	return customers, nil
}

func (f *Fetcher) FetchBills(ctx context.Context, owner crm.OwnerID) ([]crm.Bill, error) {
	bills, err := f.Bills.ListBills(ctx, BillQuery(owner))
	if err != nil {
		return nil, fmt.Errorf("fetch bills: %w", err)
	}
	return bills, nil
}
