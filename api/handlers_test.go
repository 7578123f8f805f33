/*
handlers_test.go - HTTP tests for the API handlers

Tests for:
- Sign-in / sign-out and owner header handling
- Record CRUD and validation errors
- Notifications, acknowledgements and notices
- Message links and preferences
*/
package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/crm-engine/crm"
	"github.com/warp/crm-engine/crm/store"
	"github.com/warp/crm-engine/notify"
)

const owner = "owner-1"

type testServer struct {
	store  *store.Memory
	router *chi.Mux
	now    time.Time
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{store: store.NewMemory(), now: time.Date(2024, 3, 15, 10, 0, 0, 0, time.Local)}
	clock := func() time.Time { return ts.now }
	sessions := notify.NewSessions(notify.SessionConfig{Store: ts.store, Now: clock})
	t.Cleanup(sessions.CloseAll)

	h := NewHandler(ts.store, sessions)
	h.Now = clock
	ts.router = NewRouter(h, nil)
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body any, ownerID string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if ownerID != "" {
		req.Header.Set(OwnerHeader, ownerID)
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (ts *testServer) signIn(t *testing.T) SessionDTO {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/api/session", SignInRequest{OwnerID: owner}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[SessionDTO](t, rec)
}

// =============================================================================
// SESSION
// =============================================================================

func TestSignIn_RunsInitialRefresh(t *testing.T) {
	// GIVEN: An overdue task already stored
	ts := newTestServer(t)
	ts.do(t, http.MethodPost, "/api/tasks", CreateTaskRequest{Title: "Call", DueDate: "2024-03-15"}, owner)

	// WHEN: Signing in
	session := ts.signIn(t)

	// THEN: Counts are ready immediately
	assert.Equal(t, owner, session.OwnerID)
	assert.Equal(t, 1, session.Counts.OverdueTasks)
	assert.False(t, session.Live)
}

func TestSignIn_RequiresOwner(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodPost, "/api/session", SignInRequest{}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSignIn_EmptyBodyUsesHeaderOwner(t *testing.T) {
	// GIVEN: A sign-in request with no body, only the owner header
	ts := newTestServer(t)

	// WHEN: Signing in
	rec := ts.do(t, http.MethodPost, "/api/session", nil, owner)

	// THEN: The header owner gets a session
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, owner, decode[SessionDTO](t, rec).OwnerID)
}

func TestSignIn_MalformedBodyRejected(t *testing.T) {
	ts := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/session", strings.NewReader("{not json"))
	req.Header.Set(OwnerHeader, owner)
	rec := httptest.NewRecorder()

	ts.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNotifications_RequireSession(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/notifications/counts", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/notifications/counts", nil, owner)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSignOut(t *testing.T) {
	ts := newTestServer(t)
	ts.signIn(t)

	rec := ts.do(t, http.MethodDelete, "/api/session", nil, owner)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(t, http.MethodDelete, "/api/session", nil, owner)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// RECORDS
// =============================================================================

func TestCreate_CannotOverwriteAnotherOwnersRecord(t *testing.T) {
	// GIVEN: A task, customer and bill created by owner-1
	ts := newTestServer(t)
	require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/api/tasks", CreateTaskRequest{ID: "t1", Title: "Call"}, owner).Code)
	require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/api/customers", CreateCustomerRequest{ID: "c1", Name: "Ana"}, owner).Code)
	rec := ts.do(t, http.MethodPost, "/api/bills", CreateBillRequest{
		ID: "b1", Description: "Rent", Amount: decimal.NewFromInt(100), DueDate: "2024-03-20", Type: "expense",
	}, owner)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// WHEN: Another owner creates records with the same ids
	taskRec := ts.do(t, http.MethodPost, "/api/tasks", CreateTaskRequest{ID: "t1", Title: "mine now"}, "other-owner")
	custRec := ts.do(t, http.MethodPost, "/api/customers", CreateCustomerRequest{ID: "c1", Name: "mine now"}, "other-owner")
	billRec := ts.do(t, http.MethodPost, "/api/bills", CreateBillRequest{
		ID: "b1", Description: "mine now", Amount: decimal.NewFromInt(1), DueDate: "2024-03-20", Type: "expense",
	}, "other-owner")

	// THEN: Each is a 404 and owner-1 still sees the original task
	assert.Equal(t, http.StatusNotFound, taskRec.Code)
	assert.Equal(t, http.StatusNotFound, custRec.Code)
	assert.Equal(t, http.StatusNotFound, billRec.Code)

	tasks := decode[[]TaskDTO](t, ts.do(t, http.MethodGet, "/api/tasks", nil, owner))
	require.Len(t, tasks, 1)
	assert.Equal(t, "Call", tasks[0].Title)
}

func TestCreateTask_DefaultsAndValidation(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/tasks", CreateTaskRequest{Title: "Call"}, owner)
	require.Equal(t, http.StatusCreated, rec.Code)
	task := decode[TaskDTO](t, rec)
	assert.NotEmpty(t, task.ID)
	assert.Equal(t, "pending", task.Status)

	rec = ts.do(t, http.MethodPost, "/api/tasks", CreateTaskRequest{Title: "", DueDate: "tomorrow"}, owner)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	errResp := decode[ErrorResponse](t, rec)
	assert.Equal(t, "validation", errResp.Code)

	rec = ts.do(t, http.MethodPost, "/api/tasks", CreateTaskRequest{Title: "x"}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCompleteAndDeleteTask(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodPost, "/api/tasks", CreateTaskRequest{ID: "t1", Title: "Call", DueDate: "2024-03-01"}, owner)

	rec := ts.do(t, http.MethodPost, "/api/tasks/t1/complete", nil, owner)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "completed", decode[TaskDTO](t, rec).Status)

	rec = ts.do(t, http.MethodGet, "/api/tasks?status=pending", nil, owner)
	assert.Empty(t, decode[[]TaskDTO](t, rec))

	rec = ts.do(t, http.MethodPost, "/api/tasks/t1/complete", nil, "other-owner")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodDelete, "/api/tasks/t1", nil, owner)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = ts.do(t, http.MethodDelete, "/api/tasks/t1", nil, owner)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateBill_AndPay(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/bills", map[string]any{
		"id": "b1", "description": "Rent", "amount": "2500.00", "due_date": "2024-03-01",
	}, owner)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	bill := decode[BillDTO](t, rec)
	assert.Equal(t, "pending", bill.Status)
	assert.Equal(t, "expense", bill.Type)
	assert.Equal(t, "2500", bill.Amount.String())

	rec = ts.do(t, http.MethodPost, "/api/bills/b1/pay", nil, owner)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "paid", decode[BillDTO](t, rec).Status)

	rec = ts.do(t, http.MethodGet, "/api/bills?status=pending,overdue", nil, owner)
	assert.Empty(t, decode[[]BillDTO](t, rec))

	rec = ts.do(t, http.MethodPost, "/api/bills", map[string]any{"description": "No date", "amount": "1"}, owner)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMessageLink(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodPost, "/api/customers", CreateCustomerRequest{ID: "c1", Name: "Ana", Phone: "+55 11 9999-0000"}, owner)
	ts.do(t, http.MethodPost, "/api/customers", CreateCustomerRequest{ID: "c2", Name: "Bruno"}, owner)

	rec := ts.do(t, http.MethodGet, "/api/customers/c1/message-link", nil, owner)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://wa.me/551199990000?text=Happy+birthday%2C+Ana%21", decode[MessageLinkDTO](t, rec).Link)

	rec = ts.do(t, http.MethodGet, "/api/customers/c1/message-link?text=Oi", nil, owner)
	assert.Equal(t, "https://wa.me/551199990000?text=Oi", decode[MessageLinkDTO](t, rec).Link)

	rec = ts.do(t, http.MethodGet, "/api/customers/c2/message-link", nil, owner)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// NOTIFICATIONS
// =============================================================================

func TestNotifications_AcknowledgeBirthdays(t *testing.T) {
	// GIVEN: Three customers born today
	ts := newTestServer(t)
	for _, id := range []string{"c1", "c2", "c3"} {
		ts.do(t, http.MethodPost, "/api/customers", CreateCustomerRequest{ID: id, Name: id, Birthday: "1990-03-15"}, owner)
	}
	ts.signIn(t)

	// WHEN: Dismissing one
	rec := ts.do(t, http.MethodPost, "/api/notifications/birthdays/c1/ack", nil, owner)
	require.Equal(t, http.StatusOK, rec.Code)

	// THEN: The page shows two, the badge still counts three
	view := decode[NotificationsDTO](t, ts.do(t, http.MethodGet, "/api/notifications", nil, owner))
	assert.Equal(t, 3, view.Counts.BirthdaysToday)
	assert.Len(t, view.Birthdays, 2)
	assert.Equal(t, 1, view.AcknowledgedBirthdays)

	// WHEN: Dismissing all
	rec = ts.do(t, http.MethodPost, "/api/notifications/birthdays/ack-all", nil, owner)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.ElementsMatch(t, []string{"c1", "c2", "c3"}, decode[AcknowledgeAllResponse](t, rec).Acknowledged)

	view = decode[NotificationsDTO](t, ts.do(t, http.MethodGet, "/api/notifications", nil, owner))
	assert.Empty(t, view.Birthdays)
}

func TestRefresh_PicksUpNewRecords(t *testing.T) {
	ts := newTestServer(t)
	ts.signIn(t)
	ts.do(t, http.MethodPost, "/api/bills", map[string]any{
		"id": "b1", "description": "Rent", "amount": "10", "due_date": "2024-03-14",
	}, owner)

	counts := decode[notify.Counts](t, ts.do(t, http.MethodGet, "/api/notifications/counts", nil, owner))
	assert.Equal(t, 0, counts.OverdueBills, "no live refresh configured")

	view := decode[NotificationsDTO](t, ts.do(t, http.MethodPost, "/api/notifications/refresh", nil, owner))
	assert.Equal(t, 1, view.Counts.OverdueBills)
	require.Len(t, view.OverdueBills, 1)
	assert.Equal(t, "overdue", view.OverdueBills[0].Status)
}

func TestNotices_DrainedOnce(t *testing.T) {
	ts := newTestServer(t)
	ts.signIn(t)

	rec := ts.do(t, http.MethodGet, "/api/notices", nil, owner)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string][]notify.Notice](t, rec)
	assert.Empty(t, body["notices"])
}

// =============================================================================
// PREFERENCES
// =============================================================================

func TestPreferences(t *testing.T) {
	ts := newTestServer(t)
	ts.signIn(t)

	prefs := decode[PreferencesDTO](t, ts.do(t, http.MethodGet, "/api/preferences", nil, owner))
	assert.Equal(t, "system", prefs.Theme)

	rec := ts.do(t, http.MethodPut, "/api/preferences", map[string]any{"theme": "dark", "daily_sales_goal": "500"}, owner)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	prefs = decode[PreferencesDTO](t, rec)
	assert.Equal(t, "dark", prefs.Theme)
	assert.Equal(t, "500", prefs.DailySalesGoal.String())

	rec = ts.do(t, http.MethodPut, "/api/preferences", map[string]any{"theme": "neon"}, owner)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWriteStoreError_Mapping(t *testing.T) {
	rec := httptest.NewRecorder()
	writeStoreError(rec, "x", crm.ErrNotFound)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	writeStoreError(rec, "x", crm.ErrMissingPhone)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	writeStoreError(rec, "x", assert.AnError)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
