package dto

import (
	"strings"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

// CreateEntryRequest represents a request to record a transaction.
type CreateEntryRequest struct {
	Type        core.EntryType  `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	Date        core.Date       `json:"date"`
	IsRecurring bool            `json:"isRecurring,omitempty"`
	RecurringID string          `json:"recurringId,omitempty"`
}

// ToTransaction converts to a domain transaction. Validation happens in
// the service layer.
func (r *CreateEntryRequest) ToTransaction() core.Transaction {
	return core.Transaction{
		Type:        r.Type,
		Amount:      r.Amount,
		Category:    strings.TrimSpace(r.Category),
		Description: strings.TrimSpace(r.Description),
		Date:        r.Date,
		IsRecurring: r.IsRecurring,
		RecurringID: r.RecurringID,
	}
}

// CreateTemplateRequest represents a request to create a recurring template.
type CreateTemplateRequest struct {
	Type        core.EntryType  `json:"type"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Category    string          `json:"category"`
	Frequency   core.Frequency  `json:"frequency"`
	StartDate   core.Date       `json:"startDate"`
	EndDate     *core.Date      `json:"endDate,omitempty"`
	IsActive    *bool           `json:"isActive,omitempty"`
}

// ToTemplate converts to a domain template. IsActive defaults to true.
func (r *CreateTemplateRequest) ToTemplate() core.RecurringTemplate {
	active := true
	if r.IsActive != nil {
		active = *r.IsActive
	}
	var end *core.Date
	if r.EndDate != nil && !r.EndDate.IsZero() {
		end = r.EndDate.Ptr()
	}
	return core.RecurringTemplate{
		Type:        r.Type,
		Description: strings.TrimSpace(r.Description),
		Amount:      r.Amount,
		Category:    strings.TrimSpace(r.Category),
		Frequency:   r.Frequency,
		StartDate:   r.StartDate,
		EndDate:     end,
		IsActive:    active,
	}
}

// SetActiveRequest pauses or resumes a template. An empty body toggles.
type SetActiveRequest struct {
	IsActive *bool `json:"isActive,omitempty"`
}
