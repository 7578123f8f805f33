package crm_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/warp/crm-engine/crm"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// =============================================================================
// TASKS
// =============================================================================

func TestIsOverdueTask_DueToday(t *testing.T) {
	// GIVEN: A pending task due 2024-01-10
	// WHEN: Today is 2024-01-10
	// THEN: It is overdue (inclusive boundary)
	task := crm.Task{ID: "t1", Status: crm.TaskPending, DueDate: "2024-01-10"}

	assert.True(t, crm.IsOverdueTask(task, date(2024, 1, 10)))
	assert.Len(t, crm.OverdueTasks([]crm.Task{task}, date(2024, 1, 10)), 1)
}

func TestIsOverdueTask_Cases(t *testing.T) {
	today := time.Date(2024, 1, 10, 15, 30, 0, 0, time.UTC)

	tests := []struct {
		name string
		task crm.Task
		want bool
	}{
		{"due yesterday", crm.Task{Status: crm.TaskPending, DueDate: "2024-01-09"}, true},
		{"due tomorrow", crm.Task{Status: crm.TaskPending, DueDate: "2024-01-11"}, false},
		{"completed", crm.Task{Status: crm.TaskCompleted, DueDate: "2024-01-01"}, false},
		{"no due date", crm.Task{Status: crm.TaskPending}, false},
		{"garbage due date", crm.Task{Status: crm.TaskPending, DueDate: "soon"}, false},
		{"timestamp due today", crm.Task{Status: crm.TaskPending, DueDate: "2024-01-10T23:59:00Z"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, crm.IsOverdueTask(tt.task, today))
		})
	}
}

// =============================================================================
// BILLS
// =============================================================================

func TestIsOverdueBill_StrictBoundary(t *testing.T) {
	// GIVEN: A pending bill due 2024-01-10
	bill := crm.Bill{ID: "b1", Status: crm.BillPending, DueDate: "2024-01-10"}

	// WHEN: Today is the due date
	// THEN: Not yet overdue
	assert.False(t, crm.IsOverdueBill(bill, date(2024, 1, 10)))
	assert.Empty(t, crm.OverdueBills([]crm.Bill{bill}, date(2024, 1, 10)))

	// WHEN: Today is the day after
	// THEN: Overdue
	assert.True(t, crm.IsOverdueBill(bill, date(2024, 1, 11)))
}

func TestIsOverdueBill_Statuses(t *testing.T) {
	today := date(2024, 1, 11)
	for _, tt := range []struct {
		status crm.BillStatus
		want   bool
	}{
		{crm.BillPending, true},
		{crm.BillOverdue, true},
		{crm.BillPaid, false},
		{crm.BillArchived, false},
	} {
		t.Run(string(tt.status), func(t *testing.T) {
			bill := crm.Bill{Status: tt.status, DueDate: "2024-01-10"}
			assert.Equal(t, tt.want, crm.IsOverdueBill(bill, today))
		})
	}
}

func TestBoundaries_AreAsymmetric(t *testing.T) {
	// Tasks and bills due today disagree; both rules are kept as they are.
	today := date(2024, 1, 10)
	assert.Equal(t, crm.BoundaryInclusive, crm.TaskBoundary)
	assert.Equal(t, crm.BoundaryStrict, crm.BillBoundary)
	assert.True(t, crm.IsOverdueTask(crm.Task{Status: crm.TaskPending, DueDate: "2024-01-10"}, today))
	assert.False(t, crm.IsOverdueBill(crm.Bill{Status: crm.BillPending, DueDate: "2024-01-10"}, today))
}

// =============================================================================
// BIRTHDAYS
// =============================================================================

func TestIsBirthdayToday(t *testing.T) {
	// GIVEN: A customer born 1990-03-15
	c := crm.Customer{ID: "c1", Birthday: "1990-03-15"}

	// THEN: Matches on 2024-03-15, not on 2024-03-16
	assert.True(t, crm.IsBirthdayToday(c, date(2024, 3, 15)))
	assert.False(t, crm.IsBirthdayToday(c, date(2024, 3, 16)))
}

func TestIsBirthdayToday_IgnoresYear(t *testing.T) {
	c := crm.Customer{Birthday: "1990-03-15"}
	for _, year := range []int{1990, 2000, 2024, 2031} {
		assert.True(t, crm.IsBirthdayToday(c, date(year, 3, 15)), "year %d", year)
	}
}

func TestIsBirthdayToday_MissingOrInvalid(t *testing.T) {
	today := date(2024, 3, 15)
	assert.False(t, crm.IsBirthdayToday(crm.Customer{}, today))
	assert.False(t, crm.IsBirthdayToday(crm.Customer{Birthday: "15/03/1990"}, today))
	assert.False(t, crm.IsBirthdayToday(crm.Customer{Birthday: "1990-02-30"}, today))
}

func TestBirthdaysToday_Partition(t *testing.T) {
	today := date(2024, 3, 15)
	customers := []crm.Customer{
		{ID: "a", Birthday: "1990-03-15"},
		{ID: "b", Birthday: "1991-03-16"},
		{ID: "c"},
		{ID: "d", Birthday: "2001-03-15"},
	}

	got := crm.BirthdaysToday(customers, today)

	assert.Len(t, got, 2)
	assert.Equal(t, crm.CustomerID("a"), got[0].ID)
	assert.Equal(t, crm.CustomerID("d"), got[1].ID)
	assert.NotNil(t, crm.BirthdaysToday(nil, today))
}

func TestClassify_UsesTodaysLocation(t *testing.T) {
	// GIVEN: 23:00 on Jan 10 in UTC-3, which is already Jan 11 in UTC
	loc := time.FixedZone("BRT", -3*60*60)
	today := time.Date(2024, 1, 10, 23, 0, 0, 0, loc)

	// THEN: A bill due Jan 10 is still not overdue locally
	assert.False(t, crm.IsOverdueBill(crm.Bill{Status: crm.BillPending, DueDate: "2024-01-10"}, today))
	assert.True(t, crm.IsBirthdayToday(crm.Customer{Birthday: "1985-01-10"}, today))
}
