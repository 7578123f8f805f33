package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/warp/crm-engine/crm"
	"github.com/warp/crm-engine/crm/store"
)

const testOwner crm.OwnerID = "owner-1"

var errNetwork = errors.New("network unreachable")

func clockAt(t *time.Time) func() time.Time {
	return func() time.Time { return *t }
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

func seedTask(t *testing.T, s crm.Store, id, due string) {
	t.Helper()
	require.NoError(t, s.SaveTask(context.Background(), crm.Task{
		ID: crm.TaskID(id), OwnerID: testOwner, Title: id, Status: crm.TaskPending, DueDate: due,
	}))
}

func seedCustomer(t *testing.T, s crm.Store, id, birthday string) {
	t.Helper()
	require.NoError(t, s.SaveCustomer(context.Background(), crm.Customer{
		ID: crm.CustomerID(id), OwnerID: testOwner, Name: id, Phone: "+1 555 0100", Birthday: birthday,
	}))
}

func seedBill(t *testing.T, s crm.Store, id, due string, status crm.BillStatus) {
	t.Helper()
	require.NoError(t, s.SaveBill(context.Background(), crm.Bill{
		ID: crm.BillID(id), OwnerID: testOwner, Description: id, Amount: decimal.NewFromInt(100),
		DueDate: due, Status: status, Type: crm.BillExpense,
	}))
}

// flakyStore fails selected operations on demand.
type flakyStore struct {
	*store.Memory

	mu          sync.Mutex
	billsErr    error
	tasksErr    error
	statusErr   error
	statusCalls int
}

func newFlakyStore() *flakyStore {
	return &flakyStore{Memory: store.NewMemory()}
}

func (f *flakyStore) failBills(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.billsErr = err
}

func (f *flakyStore) failTasks(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasksErr = err
}

func (f *flakyStore) failStatus(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusErr = err
}

func (f *flakyStore) ListBills(ctx context.Context, q crm.Query) ([]crm.Bill, error) {
	f.mu.Lock()
	err := f.billsErr
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return f.Memory.ListBills(ctx, q)
}

func (f *flakyStore) ListTasks(ctx context.Context, q crm.Query) ([]crm.Task, error) {
	f.mu.Lock()
	err := f.tasksErr
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return f.Memory.ListTasks(ctx, q)
}

func (f *flakyStore) UpdateBillStatus(ctx context.Context, id crm.BillID, status crm.BillStatus) error {
	f.mu.Lock()
	f.statusCalls++
	err := f.statusErr
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.Memory.UpdateBillStatus(ctx, id, status)
}

func (f *flakyStore) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statusCalls
}

// gatedStore holds the first ListTasks call until release is closed. The
// held call returns what the store had when it entered, or heldErr.
type gatedStore struct {
	*flakyStore

	heldErr error
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGatedStore(heldErr error) *gatedStore {
	return &gatedStore{
		flakyStore: newFlakyStore(),
		heldErr:    heldErr,
		entered:    make(chan struct{}),
		release:    make(chan struct{}),
	}
}

func (g *gatedStore) ListTasks(ctx context.Context, q crm.Query) ([]crm.Task, error) {
	first := false
	g.once.Do(func() { first = true })
	if !first {
		return g.flakyStore.ListTasks(ctx, q)
	}
	tasks, err := g.flakyStore.ListTasks(ctx, q)
	if g.heldErr != nil {
		tasks, err = nil, g.heldErr
	}
	close(g.entered)
	<-g.release
	return tasks, err
}
