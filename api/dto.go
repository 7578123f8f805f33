/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the crm records from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Session:        SignInRequest, SessionDTO
  Notifications:  NotificationsDTO, BirthdayCardDTO, notify.Counts
  Records:        TaskDTO, CustomerDTO, BillDTO and their Create*Request
  Preferences:    PreferencesDTO
  Scenarios:      ScenarioDTO, LoadScenarioRequest

VALIDATION:
  Validation is done by crm.Validate* in handlers, not in DTOs.

MONEY:
  Amounts are decimal.Decimal, encoded as JSON strings ("120.50").
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/crm-engine/crm"
	"github.com/warp/crm-engine/notify"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

type SignInRequest struct {
	OwnerID string `json:"owner_id"`
}

type SessionDTO struct {
	OwnerID   string        `json:"owner_id"`
	StartedAt string        `json:"started_at"`
	Counts    notify.Counts `json:"counts"`
	Live      bool          `json:"live"`
}

type TaskDTO struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Status    string `json:"status"`
	DueDate   string `json:"due_date,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

type CreateTaskRequest struct {
	ID      string `json:"id,omitempty"`
	Title   string `json:"title"`
	Status  string `json:"status,omitempty"`
	DueDate string `json:"due_date,omitempty"`
}

type CustomerDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Phone     string `json:"phone,omitempty"`
	Email     string `json:"email,omitempty"`
	Birthday  string `json:"birthday,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

type CreateCustomerRequest struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name"`
	Phone    string `json:"phone,omitempty"`
	Email    string `json:"email,omitempty"`
	Birthday string `json:"birthday,omitempty"`
}

type BillDTO struct {
	ID          string          `json:"id"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	DueDate     string          `json:"due_date"`
	Status      string          `json:"status"`
	Important   bool            `json:"important"`
	Category    string          `json:"category,omitempty"`
	Type        string          `json:"type"`
	CreatedAt   string          `json:"created_at,omitempty"`
}

type CreateBillRequest struct {
	ID          string          `json:"id,omitempty"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	DueDate     string          `json:"due_date"`
	Status      string          `json:"status,omitempty"`
	Important   bool            `json:"important"`
	Category    string          `json:"category,omitempty"`
	Type        string          `json:"type,omitempty"`
}

type BirthdayCardDTO struct {
	Customer    CustomerDTO `json:"customer"`
	MessageLink string      `json:"message_link,omitempty"`
}

type NotificationsDTO struct {
	Counts                notify.Counts     `json:"counts"`
	OverdueTasks          []TaskDTO         `json:"overdue_tasks"`
	OverdueBills          []BillDTO         `json:"overdue_bills"`
	Birthdays             []BirthdayCardDTO `json:"birthdays"`
	AcknowledgedBirthdays int               `json:"acknowledged_birthdays"`
	RefreshedAt           string            `json:"refreshed_at,omitempty"`
	Stale                 []string          `json:"stale,omitempty"`
}

type AcknowledgeAllResponse struct {
	Acknowledged []string `json:"acknowledged"`
}

type MessageLinkDTO struct {
	CustomerID string `json:"customer_id"`
	Link       string `json:"link"`
}

type PreferencesDTO struct {
	Theme          string          `json:"theme"`
	DailySalesGoal decimal.Decimal `json:"daily_sales_goal"`
}

type UpdatePreferencesRequest struct {
	Theme          *string          `json:"theme,omitempty"`
	DailySalesGoal *decimal.Decimal `json:"daily_sales_goal,omitempty"`
}

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
	OwnerID    string `json:"owner_id,omitempty"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func formatCreated(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

func toTaskDTO(t crm.Task) TaskDTO {
	return TaskDTO{
		ID:        string(t.ID),
		Title:     t.Title,
		Status:    string(t.Status),
		DueDate:   t.DueDate,
		CreatedAt: formatCreated(t.CreatedAt),
	}
}

func toTaskDTOs(tasks []crm.Task) []TaskDTO {
	dtos := make([]TaskDTO, len(tasks))
	for i, t := range tasks {
		dtos[i] = toTaskDTO(t)
	}
	return dtos
}

func toCustomerDTO(c crm.Customer) CustomerDTO {
	return CustomerDTO{
		ID:        string(c.ID),
		Name:      c.Name,
		Phone:     c.Phone,
		Email:     c.Email,
		Birthday:  c.Birthday,
		CreatedAt: formatCreated(c.CreatedAt),
	}
}

func toCustomerDTOs(customers []crm.Customer) []CustomerDTO {
	dtos := make([]CustomerDTO, len(customers))
	for i, c := range customers {
		dtos[i] = toCustomerDTO(c)
	}
	return dtos
}

func toBillDTO(b crm.Bill) BillDTO {
	return BillDTO{
		ID:          string(b.ID),
		Description: b.Description,
		Amount:      b.Amount,
		DueDate:     b.DueDate,
		Status:      string(b.Status),
		Important:   b.Important,
		Category:    b.Category,
		Type:        string(b.Type),
		CreatedAt:   formatCreated(b.CreatedAt),
	}
}

func toBillDTOs(bills []crm.Bill) []BillDTO {
	dtos := make([]BillDTO, len(bills))
	for i, b := range bills {
		dtos[i] = toBillDTO(b)
	}
	return dtos
}

func toNotificationsDTO(v notify.NotificationsView) NotificationsDTO {
	dto := NotificationsDTO{
		Counts:                v.Counts,
		OverdueTasks:          toTaskDTOs(v.OverdueTasks),
		OverdueBills:          toBillDTOs(v.OverdueBills),
		Birthdays:             make([]BirthdayCardDTO, len(v.Birthdays)),
		AcknowledgedBirthdays: v.AcknowledgedBirthdays,
	}
	for i, card := range v.Birthdays {
		dto.Birthdays[i] = BirthdayCardDTO{
			Customer:    toCustomerDTO(card.Customer),
			MessageLink: card.MessageLink,
		}
	}
	if !v.RefreshedAt.IsZero() {
		dto.RefreshedAt = v.RefreshedAt.Format(time.RFC3339)
	}
	for _, coll := range v.Stale {
		dto.Stale = append(dto.Stale, string(coll))
	}
	return dto
}
