/*
handlers.go - HTTP API handlers for the CRM notification engine

PURPOSE:
  Exposes sessions, notifications and the three record collections via a
  REST API. Handles HTTP request/response and JSON, and delegates to the
  crm store and the per-owner notify.Session.

ENDPOINTS:
  Session:
    POST   /api/session                          Sign in (starts refreshes)
    DELETE /api/session                          Sign out

  Notifications:
    GET    /api/notifications/counts             Badge counts
    GET    /api/notifications                    Cards for the notifications page
    POST   /api/notifications/refresh            Re-run the pipeline now
    POST   /api/notifications/birthdays/{id}/ack Dismiss one birthday
    POST   /api/notifications/birthdays/ack-all  Dismiss all shown birthdays
    GET    /api/notices                          Drain transient notices

  Records:
    GET|POST /api/tasks, POST /api/tasks/{id}/complete, DELETE /api/tasks/{id}
    GET|POST /api/customers, DELETE /api/customers/{id},
             GET /api/customers/{id}/message-link
    GET|POST /api/bills, POST /api/bills/{id}/pay, DELETE /api/bills/{id}

  Preferences:
    GET|PUT /api/preferences

OWNER:
  Authentication is external. The caller's owner id arrives in the
  X-Owner-ID header; notification endpoints also need a live session.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 401: Missing owner header
  - 404: Record not found, or no session for the owner
  - 500: Storage failures

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo data loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/warp/crm-engine/crm"
	"github.com/warp/crm-engine/localstore"
	"github.com/warp/crm-engine/notify"
)

// OwnerHeader carries the authenticated owner id.
const OwnerHeader = "X-Owner-ID"

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store    crm.Store
	Sessions *notify.Sessions

	// Now dates demo scenarios. Defaults to time.Now.
	Now func() time.Time

	// Track currently loaded scenario
	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a new handler with the given store and sessions.
func NewHandler(store crm.Store, sessions *notify.Sessions) *Handler {
	return &Handler{
		Store:    store,
		Sessions: sessions,
		Now:      time.Now,
	}
}

func (h *Handler) setScenario(id string) {
	h.mu.Lock()
	h.currentScenario = id
	h.mu.Unlock()
}

func (h *Handler) scenario() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.currentScenario
}

func ownerFrom(w http.ResponseWriter, r *http.Request) (crm.OwnerID, bool) {
	owner := strings.TrimSpace(r.Header.Get(OwnerHeader))
	if owner == "" {
		writeError(w, http.StatusUnauthorized, "Missing "+OwnerHeader+" header", nil)
		return "", false
	}
	return crm.OwnerID(owner), true
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*notify.Session, bool) {
	owner, ok := ownerFrom(w, r)
	if !ok {
		return nil, false
	}
	s, ok := h.Sessions.Get(owner)
	if !ok {
		writeError(w, http.StatusNotFound, "No active session, sign in first", nil)
		return nil, false
	}
	return s, true
}

// =============================================================================
// SESSION HANDLERS
// =============================================================================

// SignIn starts (or refreshes) the owner's session.
func (h *Handler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req SignInRequest
	// An empty body signs in with the header owner.
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	owner := strings.TrimSpace(req.OwnerID)
	if owner == "" {
		owner = strings.TrimSpace(r.Header.Get(OwnerHeader))
	}
	if owner == "" {
		writeError(w, http.StatusBadRequest, "owner_id is required", nil)
		return
	}

	s, err := h.Sessions.SignIn(r.Context(), crm.OwnerID(owner))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to start session", err)
		return
	}

	writeJSON(w, http.StatusOK, SessionDTO{
		OwnerID:   string(s.Owner),
		StartedAt: s.StartedAt.Format(time.RFC3339),
		Counts:    s.Aggregator.Counts(),
		Live:      s.Trigger != nil && s.Trigger.Feed != nil,
	})
}

// SignOut tears the owner's session down.
func (h *Handler) SignOut(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFrom(w, r)
	if !ok {
		return
	}
	if !h.Sessions.SignOut(owner) {
		writeError(w, http.StatusNotFound, "No active session", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// NOTIFICATION HANDLERS
// =============================================================================

// GetCounts returns the three badge counts.
func (h *Handler) GetCounts(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.Aggregator.Counts())
}

// GetNotifications returns overdue tasks, overdue bills and today's
// birthdays that have not been dismissed.
func (h *Handler) GetNotifications(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toNotificationsDTO(s.Notifications()))
}

// RefreshNotifications re-runs the pipeline and returns the new view.
// Fetch failures do not fail the request; they show up as notices.
func (h *Handler) RefreshNotifications(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	s.Refresh(r.Context())
	writeJSON(w, http.StatusOK, toNotificationsDTO(s.Notifications()))
}

// AcknowledgeBirthday dismisses one birthday card for today.
func (h *Handler) AcknowledgeBirthday(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	if err := s.AcknowledgeBirthday(crm.CustomerID(id)); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save acknowledgement", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "acknowledged": true})
}

// AcknowledgeAllBirthdays dismisses every birthday currently shown.
func (h *Handler) AcknowledgeAllBirthdays(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	ids, err := s.AcknowledgeAllBirthdays()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save acknowledgements", err)
		return
	}
	writeJSON(w, http.StatusOK, AcknowledgeAllResponse{Acknowledged: ids})
}

// ListNotices returns and clears pending notices.
func (h *Handler) ListNotices(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"notices": s.Notices.Drain()})
}

// =============================================================================
// TASK HANDLERS
// =============================================================================

// ListTasks returns the owner's tasks, optionally filtered by ?status=.
func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFrom(w, r)
	if !ok {
		return
	}
	q := crm.Query{OwnerID: owner, OrderByDue: true}
	if status := r.URL.Query().Get("status"); status != "" {
		q.Statuses = []string{status}
	}

	tasks, err := h.Store.ListTasks(r.Context(), q)
	if err != nil {
		writeStoreError(w, "Failed to list tasks", err)
		return
	}
	writeJSON(w, http.StatusOK, toTaskDTOs(tasks))
}

// CreateTask creates or replaces a task.
func (h *Handler) CreateTask(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFrom(w, r)
	if !ok {
		return
	}
	var req CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	task := crm.Task{
		ID:      crm.TaskID(idOrNew(req.ID)),
		OwnerID: owner,
		Title:   strings.TrimSpace(req.Title),
		Status:  crm.TaskStatus(req.Status),
		DueDate: strings.TrimSpace(req.DueDate),
	}
	if task.Status == "" {
		task.Status = crm.TaskPending
	}
	if err := crm.ValidateTask(task); err != nil {
		writeStoreError(w, "Invalid task", err)
		return
	}

	if err := h.Store.SaveTask(r.Context(), task); err != nil {
		writeStoreError(w, "Failed to create task", err)
		return
	}
	saved, err := h.Store.GetTask(r.Context(), owner, task.ID)
	if err != nil {
		saved = task
	}
	writeJSON(w, http.StatusCreated, toTaskDTO(saved))
}

// CompleteTask marks a task completed.
func (h *Handler) CompleteTask(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFrom(w, r)
	if !ok {
		return
	}
	id := crm.TaskID(chi.URLParam(r, "id"))

	task, err := h.Store.GetTask(r.Context(), owner, id)
	if err != nil {
		writeStoreError(w, "Failed to get task", err)
		return
	}
	task.Status = crm.TaskCompleted
	if err := h.Store.SaveTask(r.Context(), task); err != nil {
		writeStoreError(w, "Failed to complete task", err)
		return
	}
	writeJSON(w, http.StatusOK, toTaskDTO(task))
}

// DeleteTask removes a task.
func (h *Handler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFrom(w, r)
	if !ok {
		return
	}
	if err := h.Store.DeleteTask(r.Context(), owner, crm.TaskID(chi.URLParam(r, "id"))); err != nil {
		writeStoreError(w, "Failed to delete task", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// CUSTOMER HANDLERS
// =============================================================================

// ListCustomers returns the owner's customers.
func (h *Handler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFrom(w, r)
	if !ok {
		return
	}
	customers, err := h.Store.ListCustomers(r.Context(), crm.Query{OwnerID: owner})
	if err != nil {
		writeStoreError(w, "Failed to list customers", err)
		return
	}
	writeJSON(w, http.StatusOK, toCustomerDTOs(customers))
}

// CreateCustomer creates or replaces a customer.
func (h *Handler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFrom(w, r)
	if !ok {
		return
	}
	var req CreateCustomerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	customer := crm.Customer{
		ID:       crm.CustomerID(idOrNew(req.ID)),
		OwnerID:  owner,
		Name:     strings.TrimSpace(req.Name),
		Phone:    strings.TrimSpace(req.Phone),
		Email:    strings.TrimSpace(req.Email),
		Birthday: strings.TrimSpace(req.Birthday),
	}
	if err := crm.ValidateCustomer(customer); err != nil {
		writeStoreError(w, "Invalid customer", err)
		return
	}

	if err := h.Store.SaveCustomer(r.Context(), customer); err != nil {
		writeStoreError(w, "Failed to create customer", err)
		return
	}
	saved, err := h.Store.GetCustomer(r.Context(), owner, customer.ID)
	if err != nil {
		saved = customer
	}
	writeJSON(w, http.StatusCreated, toCustomerDTO(saved))
}

// DeleteCustomer removes a customer.
func (h *Handler) DeleteCustomer(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFrom(w, r)
	if !ok {
		return
	}
	if err := h.Store.DeleteCustomer(r.Context(), owner, crm.CustomerID(chi.URLParam(r, "id"))); err != nil {
		writeStoreError(w, "Failed to delete customer", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetMessageLink returns a messaging deep link for the customer, pre-filled
// with ?text= or a birthday greeting.
func (h *Handler) GetMessageLink(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFrom(w, r)
	if !ok {
		return
	}
	customer, err := h.Store.GetCustomer(r.Context(), owner, crm.CustomerID(chi.URLParam(r, "id")))
	if err != nil {
		writeStoreError(w, "Failed to get customer", err)
		return
	}

	text := r.URL.Query().Get("text")
	if text == "" {
		text = crm.BirthdayGreeting(customer)
	}
	link, err := crm.MessageLink(customer.Phone, text)
	if err != nil {
		writeStoreError(w, "Cannot build message link", err)
		return
	}
	writeJSON(w, http.StatusOK, MessageLinkDTO{CustomerID: string(customer.ID), Link: link})
}

// =============================================================================
// BILL HANDLERS
// =============================================================================

// ListBills returns the owner's bills, optionally filtered by ?status=.
func (h *Handler) ListBills(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFrom(w, r)
	if !ok {
		return
	}
	q := crm.Query{OwnerID: owner, OrderByDue: true}
	if status := r.URL.Query().Get("status"); status != "" {
		q.Statuses = strings.Split(status, ",")
	}

	bills, err := h.Store.ListBills(r.Context(), q)
	if err != nil {
		writeStoreError(w, "Failed to list bills", err)
		return
	}
	writeJSON(w, http.StatusOK, toBillDTOs(bills))
}

// CreateBill creates or replaces a bill.
func (h *Handler) CreateBill(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFrom(w, r)
	if !ok {
		return
	}
	var req CreateBillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	bill := crm.Bill{
		ID:          crm.BillID(idOrNew(req.ID)),
		OwnerID:     owner,
		Description: strings.TrimSpace(req.Description),
		Amount:      req.Amount,
		DueDate:     strings.TrimSpace(req.DueDate),
		Status:      crm.BillStatus(req.Status),
		Important:   req.Important,
		Category:    strings.TrimSpace(req.Category),
		Type:        crm.BillType(req.Type),
	}
	if bill.Status == "" {
		bill.Status = crm.BillPending
	}
	if bill.Type == "" {
		bill.Type = crm.BillExpense
	}
	if err := crm.ValidateBill(bill); err != nil {
		writeStoreError(w, "Invalid bill", err)
		return
	}

	if err := h.Store.SaveBill(r.Context(), bill); err != nil {
		writeStoreError(w, "Failed to create bill", err)
		return
	}
	saved, err := h.Store.GetBill(r.Context(), owner, bill.ID)
	if err != nil {
		saved = bill
	}
	writeJSON(w, http.StatusCreated, toBillDTO(saved))
}

// PayBill marks a bill paid.
func (h *Handler) PayBill(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFrom(w, r)
	if !ok {
		return
	}
	id := crm.BillID(chi.URLParam(r, "id"))

	bill, err := h.Store.GetBill(r.Context(), owner, id)
	if err != nil {
		writeStoreError(w, "Failed to get bill", err)
		return
	}
	if err := h.Store.UpdateBillStatus(r.Context(), id, crm.BillPaid); err != nil {
		writeStoreError(w, "Failed to pay bill", err)
		return
	}
	bill.Status = crm.BillPaid
	writeJSON(w, http.StatusOK, toBillDTO(bill))
}

// DeleteBill removes a bill.
func (h *Handler) DeleteBill(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFrom(w, r)
	if !ok {
		return
	}
	if err := h.Store.DeleteBill(r.Context(), owner, crm.BillID(chi.URLParam(r, "id"))); err != nil {
		writeStoreError(w, "Failed to delete bill", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// PREFERENCE HANDLERS
// =============================================================================

// GetPreferences returns the owner's local preferences.
func (h *Handler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	dto, err := preferencesDTO(s.Prefs)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load preferences", err)
		return
	}
	writeJSON(w, http.StatusOK, dto)
}

// UpdatePreferences changes theme and/or daily sales goal.
func (h *Handler) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req UpdatePreferencesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if req.Theme != nil {
		if err := s.Prefs.SetTheme(localstore.Theme(*req.Theme)); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid theme", err)
			return
		}
	}
	if req.DailySalesGoal != nil {
		if err := s.Prefs.SetDailySalesGoal(*req.DailySalesGoal); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid daily sales goal", err)
			return
		}
	}

	dto, err := preferencesDTO(s.Prefs)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load preferences", err)
		return
	}
	writeJSON(w, http.StatusOK, dto)
}

func preferencesDTO(p *localstore.Preferences) (PreferencesDTO, error) {
	theme, err := p.Theme()
	if err != nil {
		return PreferencesDTO{}, err
	}
	goal, err := p.DailySalesGoal()
	if err != nil {
		return PreferencesDTO{}, err
	}
	return PreferencesDTO{Theme: string(theme), DailySalesGoal: goal}, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeStoreError maps crm errors to HTTP status codes.
func writeStoreError(w http.ResponseWriter, message string, err error) {
	var verr *crm.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: message, Code: "validation", Details: verr.Fields})
	case crm.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case crm.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func idOrNew(id string) string {
	if id = strings.TrimSpace(id); id != "" {
		return id
	}
	return uuid.NewString()
}
