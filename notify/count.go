package notify

// Counts are the three badge numbers.
type Counts struct {
	OverdueTasks   int `json:"overdue_tasks"`
	BirthdaysToday int `json:"birthdays_today"`
	OverdueBills   int `json:"overdue_bills"`
}

// Total is the sum shown on the bell icon.
func (c Counts) Total() int {
	return c.OverdueTasks + c.BirthdaysToday + c.OverdueBills
}

// Count is the length of a classified collection. Uniqueness is whatever
// the storage primary key already guarantees.
func Count[T any](records []T) int {
	return len(records)
}
