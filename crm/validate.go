package crm

import "strings"

// ValidateTask checks the fields a task form requires before it is saved.
func ValidateTask(t Task) error {
	v := &ValidationError{Record: "task"}
	if t.OwnerID == "" {
		v.add("owner_id", "is required")
	}
	if strings.TrimSpace(t.Title) == "" {
		v.add("title", "is required")
	}
	if !t.Status.Valid() {
		v.add("status", "must be pending or completed")
	}
	if t.DueDate != "" && !ValidDate(t.DueDate) {
		v.add("due_date", "must be YYYY-MM-DD or an ISO-8601 timestamp")
	}
	return v.orNil()
}

// ValidateCustomer checks the fields a customer form requires.
func ValidateCustomer(c Customer) error {
	v := &ValidationError{Record: "customer"}
	if c.OwnerID == "" {
		v.add("owner_id", "is required")
	}
	if strings.TrimSpace(c.Name) == "" {
		v.add("name", "is required")
	}
	if c.Birthday != "" && !ValidDate(c.Birthday) {
		v.add("birthday", "must be YYYY-MM-DD")
	}
	return v.orNil()
}

// ValidateBill checks the fields a finance form requires.
func ValidateBill(b Bill) error {
	v := &ValidationError{Record: "bill"}
	if b.OwnerID == "" {
		v.add("owner_id", "is required")
	}
	if strings.TrimSpace(b.Description) == "" {
		v.add("description", "is required")
	}
	if b.DueDate == "" {
		v.add("due_date", "is required")
	} else if !ValidDate(b.DueDate) {
		v.add("due_date", "must be YYYY-MM-DD or an ISO-8601 timestamp")
	}
	if b.Amount.IsNegative() {
		v.add("amount", "must not be negative")
	}
	if !b.Type.Valid() {
		v.add("type", "must be income or expense")
	}
	if !b.Status.Valid() {
		v.add("status", "must be pending, overdue, paid or archived")
	}
	return v.orNil()
}
