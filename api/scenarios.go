/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the store with records dated
	relative to today, so the notification badges show something meaningful
	whatever day the demo runs.

AVAILABLE SCENARIOS:

	overdue-mix:    Tasks and bills on every side of the overdue boundary
	birthday-party: Several customers born today, one without a phone
	clean-slate:    Nothing overdue, nobody's birthday

HOW SCENARIOS WORK:
 1. Reset the store (clear all data, every owner)
 2. Save tasks, customers and bills for the target owner
 3. Refresh the owner's session if one is signed in

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "overdue-mix", "owner_id": "demo"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Create a seed function returning a scenarioData
 3. Add it to the 'seeds' map

NOTE:

	Scenarios reset the store. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Record handlers and helpers
  - crm/classify.go: What counts as overdue
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/crm-engine/crm"
	"github.com/warp/crm-engine/notify"
)

// DemoOwner owns scenario data when the request names nobody.
const DemoOwner crm.OwnerID = "demo"

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "overdue-mix",
		Name:        "Overdue Mix",
		Description: "Tasks and bills due yesterday, today and tomorrow; one birthday today",
	},
	{
		ID:          "birthday-party",
		Name:        "Birthday Party",
		Description: "Three customers born today, one of them without a phone number",
	},
	{
		ID:          "clean-slate",
		Name:        "Clean Slate",
		Description: "Future tasks, paid bills and no birthdays: every badge is zero",
	},
}

type scenarioData struct {
	Tasks     []crm.Task
	Customers []crm.Customer
	Bills     []crm.Bill
}

var seeds = map[string]func(today time.Time) scenarioData{
	"overdue-mix":    overdueMixScenario,
	"birthday-party": birthdayPartyScenario,
	"clean-slate":    cleanSlateScenario,
}

// =============================================================================
// HANDLERS
// =============================================================================

func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	current := h.scenario()
	if current == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, ScenarioDTO{ID: current, Name: current})
}

func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	seed, ok := seeds[req.ScenarioID]
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	owner := crm.OwnerID(strings.TrimSpace(req.OwnerID))
	if owner == "" {
		owner = crm.OwnerID(strings.TrimSpace(r.Header.Get(OwnerHeader)))
	}
	if owner == "" {
		owner = DemoOwner
	}

	ctx := r.Context()

	// Reset first
	if err := h.reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset store", err)
		return
	}
	h.setScenario("")

	if err := h.seed(ctx, owner, seed(h.Now())); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}

	// Track the loaded scenario
	h.setScenario(req.ScenarioID)

	if s, ok := h.Sessions.Get(owner); ok {
		s.Refresh(ctx)
	}
	log.Printf("[Scenarios] Loaded %s for %s", req.ScenarioID, owner)

	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID, "owner_id": string(owner)})
}

// ResetDatabase clears every record and refreshes all live sessions.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset store", err)
		return
	}
	h.setScenario("")
	h.Sessions.Each(func(s *notify.Session) { s.Refresh(r.Context()) })

	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (h *Handler) reset(ctx context.Context) error {
	resetter, ok := h.Store.(crm.Resetter)
	if !ok {
		return fmt.Errorf("store does not support reset")
	}
	return resetter.Reset(ctx)
}

func (h *Handler) seed(ctx context.Context, owner crm.OwnerID, data scenarioData) error {
	for _, t := range data.Tasks {
		t.OwnerID = owner
		if err := h.Store.SaveTask(ctx, t); err != nil {
			return fmt.Errorf("task %s: %w", t.ID, err)
		}
	}
	for _, c := range data.Customers {
		c.OwnerID = owner
		if err := h.Store.SaveCustomer(ctx, c); err != nil {
			return fmt.Errorf("customer %s: %w", c.ID, err)
		}
	}
	for _, b := range data.Bills {
		b.OwnerID = owner
		if err := h.Store.SaveBill(ctx, b); err != nil {
			return fmt.Errorf("bill %s: %w", b.ID, err)
		}
	}
	return nil
}

// =============================================================================
// SCENARIO DATA
// =============================================================================

func day(today time.Time, offset int) string {
	return crm.FormatDay(today.AddDate(0, 0, offset))
}

// bornToday is a birthday in a leap year so Feb 29 stays Feb 29.
func bornToday(today time.Time, year int) string {
	return crm.FormatDay(time.Date(year, today.Month(), today.Day(), 0, 0, 0, 0, time.UTC))
}

func bornOn(today time.Time, year, offset int) string {
	d := today.AddDate(0, 0, offset)
	return crm.FormatDay(time.Date(year, d.Month(), d.Day(), 0, 0, 0, 0, time.UTC))
}

// overdueMixScenario: 2 overdue tasks, 1 birthday, 2 overdue bills.
func overdueMixScenario(today time.Time) scenarioData {
	return scenarioData{
		Tasks: []crm.Task{
			{ID: "task-call-supplier", Title: "Call supplier", Status: crm.TaskPending, DueDate: day(today, -1)},
			{ID: "task-send-quote", Title: "Send quote to Ana", Status: crm.TaskPending, DueDate: day(today, 0)},
			{ID: "task-restock", Title: "Restock shelves", Status: crm.TaskPending, DueDate: day(today, 1)},
			{ID: "task-invoice", Title: "Issue invoice", Status: crm.TaskCompleted, DueDate: day(today, -3)},
			{ID: "task-someday", Title: "Redesign flyer", Status: crm.TaskPending},
		},
		Customers: []crm.Customer{
			{ID: "cust-maria", Name: "Maria Souza", Phone: "+55 (11) 98765-4321", Birthday: bornToday(today, 1988)},
			{ID: "cust-joao", Name: "Joao Lima", Phone: "+55 21 91234-5678", Birthday: bornOn(today, 1992, 1)},
			{ID: "cust-paula", Name: "Paula Reis", Email: "paula@example.com"},
		},
		Bills: []crm.Bill{
			{ID: "bill-rent", Description: "Shop rent", Amount: decimal.RequireFromString("2500.00"), DueDate: day(today, -1), Status: crm.BillPending, Important: true, Category: "rent", Type: crm.BillExpense},
			{ID: "bill-power", Description: "Electricity", Amount: decimal.RequireFromString("310.45"), DueDate: day(today, -10), Status: crm.BillOverdue, Category: "utilities", Type: crm.BillExpense},
			{ID: "bill-internet", Description: "Internet", Amount: decimal.RequireFromString("129.90"), DueDate: day(today, 0), Status: crm.BillPending, Category: "utilities", Type: crm.BillExpense},
			{ID: "bill-client-a", Description: "Client A payment", Amount: decimal.RequireFromString("1800.00"), DueDate: day(today, 5), Status: crm.BillPending, Type: crm.BillIncome},
			{ID: "bill-water", Description: "Water", Amount: decimal.RequireFromString("88.10"), DueDate: day(today, -7), Status: crm.BillPaid, Category: "utilities", Type: crm.BillExpense},
		},
	}
}

// birthdayPartyScenario: 3 birthdays, nothing overdue.
func birthdayPartyScenario(today time.Time) scenarioData {
	return scenarioData{
		Customers: []crm.Customer{
			{ID: "cust-ana", Name: "Ana Costa", Phone: "+55 11 99999-0001", Birthday: bornToday(today, 1980)},
			{ID: "cust-bruno", Name: "Bruno Alves", Phone: "+55 11 99999-0002", Birthday: bornToday(today, 1996)},
			{ID: "cust-carla", Name: "Carla Dias", Email: "carla@example.com", Birthday: bornToday(today, 2000)},
			{ID: "cust-diego", Name: "Diego Melo", Phone: "+55 11 99999-0004", Birthday: bornOn(today, 1984, -1)},
		},
		Tasks: []crm.Task{
			{ID: "task-cake", Title: "Order cake", Status: crm.TaskPending, DueDate: day(today, 2)},
		},
	}
}

// cleanSlateScenario: every badge is zero.
func cleanSlateScenario(today time.Time) scenarioData {
	return scenarioData{
		Tasks: []crm.Task{
			{ID: "task-plan", Title: "Plan next month", Status: crm.TaskPending, DueDate: day(today, 7)},
			{ID: "task-done", Title: "Close the books", Status: crm.TaskCompleted, DueDate: day(today, -2)},
		},
		Customers: []crm.Customer{
			{ID: "cust-eva", Name: "Eva Rocha", Phone: "+55 31 98888-0000", Birthday: bornOn(today, 1990, 30)},
		},
		Bills: []crm.Bill{
			{ID: "bill-paid", Description: "Accountant", Amount: decimal.RequireFromString("450.00"), DueDate: day(today, -5), Status: crm.BillPaid, Type: crm.BillExpense},
			{ID: "bill-archived", Description: "Old loan", Amount: decimal.RequireFromString("1000.00"), DueDate: day(today, -60), Status: crm.BillArchived, Type: crm.BillExpense},
			{ID: "bill-future", Description: "Insurance", Amount: decimal.RequireFromString("210.00"), DueDate: day(today, 14), Status: crm.BillPending, Type: crm.BillExpense},
		},
	}
}
