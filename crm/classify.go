/*
classify.go - Date rules for notifications

PURPOSE:
  Pure functions deciding whether a record deserves a notification on a
  given day. Every consumer (badges, notifications page, live refresh) goes
  through these; there is no second copy of the rules anywhere.

RULES:
  Task overdue:     status == pending  AND due <= start of today
  Bill overdue:     status in {pending, overdue} AND due < start of today
  Birthday today:   month and day of birthday == month and day of today

BOUNDARIES:
  Tasks use an inclusive boundary, bills a strict one. A task due today is
  already overdue; a bill due today is not. The asymmetry is kept as-is and
  exposed through TaskBoundary / BillBoundary so it stays visible.

TIME ZONES:
  "Today" is truncated to midnight in today.Location(). Due dates are read
  as calendar days in that same location (see date.go).
*/
package crm

import "time"

// Boundary describes how a due date is compared with the start of today.
type Boundary string

const (
	BoundaryInclusive Boundary = "due <= today"
	BoundaryStrict    Boundary = "due < today"
)

const (
	TaskBoundary = BoundaryInclusive
	BillBoundary = BoundaryStrict
)

// IsOverdueTask reports whether a pending task is due on or before today.
func IsOverdueTask(task Task, today time.Time) bool {
	if task.Status != TaskPending {
		return false
	}
	due, err := ParseDay(task.DueDate, today.Location())
	if err != nil {
		return false
	}
	return !due.After(StartOfDay(today))
}

// IsOverdueBill reports whether an open bill's due date is strictly before today.
func IsOverdueBill(bill Bill, today time.Time) bool {
	if !bill.Status.Open() {
		return false
	}
	due, err := ParseDay(bill.DueDate, today.Location())
	if err != nil {
		return false
	}
	return due.Before(StartOfDay(today))
}

// IsBirthdayToday compares month and day only. Unparseable dates never match.
func IsBirthdayToday(customer Customer, today time.Time) bool {
	bday, err := ParseDay(customer.Birthday, today.Location())
	if err != nil {
		return false
	}
	return bday.Month() == today.Month() && bday.Day() == today.Day()
}

// =============================================================================
// PARTITIONS
// =============================================================================

func OverdueTasks(tasks []Task, today time.Time) []Task {
	out := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		if IsOverdueTask(t, today) {
			out = append(out, t)
		}
	}
	return out
}

func OverdueBills(bills []Bill, today time.Time) []Bill {
	out := make([]Bill, 0, len(bills))
	for _, b := range bills {
		if IsOverdueBill(b, today) {
			out = append(out, b)
		}
	}
	return out
}

func BirthdaysToday(customers []Customer, today time.Time) []Customer {
	out := make([]Customer, 0)
	for _, c := range customers {
		if IsBirthdayToday(c, today) {
			out = append(out, c)
		}
	}
	return out
}
