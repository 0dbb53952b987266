package core

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

const (
	Income  EntryType = "income"
	Expense EntryType = "expense"
)

const (
	Weekly    Frequency = "weekly"
	Monthly   Frequency = "monthly"
	Quarterly Frequency = "quarterly"
	Yearly    Frequency = "yearly"
)

const MaxDescriptionLen = 200

type (
	EntryType string

	Frequency string

	// Transaction is one recorded income or expense event. Amount is never
	// negative; the effect on the balance comes from Type.
	Transaction struct {
		ID          string          `json:"id"`
		Type        EntryType       `json:"type"`
		Amount      decimal.Decimal `json:"amount"`
		Category    string          `json:"category"`
		Description string          `json:"description"`
		Date        Date            `json:"date"`
		IsRecurring bool            `json:"isRecurring"`
		RecurringID string          `json:"recurringId,omitempty"`
		CreatedAt   time.Time       `json:"createdAt"`
	}

	// EntryPatch carries the fields of an edit. Nil fields are left alone.
	EntryPatch struct {
		Type        *EntryType       `json:"type,omitempty"`
		Amount      *decimal.Decimal `json:"amount,omitempty"`
		Category    *string          `json:"category,omitempty"`
		Description *string          `json:"description,omitempty"`
		Date        *Date            `json:"date,omitempty"`
	}

	// RecurringTemplate is a user-defined rule that periodically generates
	// transactions. NextDue and LastProcessed are owned by the scheduler.
	RecurringTemplate struct {
		ID            string          `json:"id"`
		Type          EntryType       `json:"type"`
		Description   string          `json:"description"`
		Amount        decimal.Decimal `json:"amount"`
		Category      string          `json:"category"`
		Frequency     Frequency       `json:"frequency"`
		StartDate     Date            `json:"startDate"`
		EndDate       *Date           `json:"endDate,omitempty"`
		IsActive      bool            `json:"isActive"`
		LastProcessed *Date           `json:"lastProcessed,omitempty"`
		NextDue       *Date           `json:"nextDue,omitempty"`
		CreatedAt     time.Time       `json:"createdAt"`
	}

	// TemplatePatch carries user edits to a template. It has no way to touch
	// LastProcessed or NextDue.
	TemplatePatch struct {
		Type        *EntryType       `json:"type,omitempty"`
		Description *string          `json:"description,omitempty"`
		Amount      *decimal.Decimal `json:"amount,omitempty"`
		Category    *string          `json:"category,omitempty"`
		Frequency   *Frequency       `json:"frequency,omitempty"`
		StartDate   *Date            `json:"startDate,omitempty"`
		EndDate     *Date            `json:"endDate,omitempty"`
		ClearEnd    bool             `json:"clearEndDate,omitempty"`
		IsActive    *bool            `json:"isActive,omitempty"`
	}
)

var (
	ErrInvalidAmount      = &ValidationError{Field: "amount", Message: "amount must be greater than zero"}
	ErrEmptyDescription   = &ValidationError{Field: "description", Message: "description cannot be empty"}
	ErrDescriptionTooLong = &ValidationError{Field: "description", Message: "description too long (max 200 characters)"}
	ErrEmptyCategory      = &ValidationError{Field: "category", Message: "category cannot be empty"}
	ErrInvalidType        = &ValidationError{Field: "type", Message: "type must be income or expense"}
	ErrInvalidFrequency   = &ValidationError{Field: "frequency", Message: "frequency must be weekly, monthly, quarterly or yearly"}
	ErrEndBeforeStart     = &ValidationError{Field: "endDate", Message: "end date must not be before start date"}
)

func (t EntryType) Valid() bool {
	return t == Income || t == Expense
}

func (f Frequency) Valid() bool {
	switch f {
	case Weekly, Monthly, Quarterly, Yearly:
		return true
	default:
		return false
	}
}

// SignedAmount returns the amount with the sign it has on the balance.
func (t Transaction) SignedAmount() decimal.Decimal {
	if t.Type == Expense {
		return t.Amount.Neg()
	}
	return t.Amount
}

func (t Transaction) Validate() error {
	if !t.Type.Valid() {
		return ErrInvalidType
	}
	if !t.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if err := validateText(t.Description, t.Category); err != nil {
		return err
	}
	if err := t.Date.Validate(); err != nil {
		return &ValidationError{Field: "date", Message: err.Error()}
	}
	return nil
}

// Apply returns a copy of t with the patch applied.
func (p EntryPatch) Apply(t Transaction) Transaction {
	if p.Type != nil {
		t.Type = *p.Type
	}
	if p.Amount != nil {
		t.Amount = *p.Amount
	}
	if p.Category != nil {
		t.Category = strings.TrimSpace(*p.Category)
	}
	if p.Description != nil {
		t.Description = strings.TrimSpace(*p.Description)
	}
	if p.Date != nil {
		t.Date = *p.Date
	}
	return t
}

// DueDate is the date at or after which the template should emit next.
func (rt RecurringTemplate) DueDate() Date {
	if rt.NextDue != nil {
		return *rt.NextDue
	}
	return rt.StartDate
}

// EndedBy reports whether due falls after the template's end date.
func (rt RecurringTemplate) EndedBy(due Date) bool {
	return rt.EndDate != nil && due.After(*rt.EndDate)
}

func (rt RecurringTemplate) Validate() error {
	if err := rt.StartDate.Validate(); err != nil {
		return &ValidationError{Field: "startDate", Message: err.Error()}
	}
	if rt.EndDate != nil {
		if err := rt.EndDate.Validate(); err != nil {
			return &ValidationError{Field: "endDate", Message: err.Error()}
		}
		if rt.EndDate.Before(rt.StartDate) {
			return ErrEndBeforeStart
		}
	}
	if !rt.Frequency.Valid() {
		return ErrInvalidFrequency
	}
	if !rt.Type.Valid() {
		return ErrInvalidType
	}
	if !rt.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	return validateText(rt.Description, rt.Category)
}

// Apply returns a copy of rt with the user edit applied. A start date moved
// past the scheduled due date clears NextDue so it is recomputed from the
// new start.
func (p TemplatePatch) Apply(rt RecurringTemplate) RecurringTemplate {
	if p.Type != nil {
		rt.Type = *p.Type
	}
	if p.Description != nil {
		rt.Description = strings.TrimSpace(*p.Description)
	}
	if p.Amount != nil {
		rt.Amount = *p.Amount
	}
	if p.Category != nil {
		rt.Category = strings.TrimSpace(*p.Category)
	}
	if p.Frequency != nil {
		rt.Frequency = *p.Frequency
	}
	if p.StartDate != nil {
		rt.StartDate = *p.StartDate
	}
	if p.ClearEnd {
		rt.EndDate = nil
	} else if p.EndDate != nil {
		end := *p.EndDate
		rt.EndDate = &end
	}
	if p.IsActive != nil {
		rt.IsActive = *p.IsActive
	}
	if rt.NextDue != nil && rt.NextDue.Before(rt.StartDate) {
		rt.NextDue = nil
	}
	return rt
}

// TruncateText shortens s to at most n characters without splitting a
// multi-byte character.
func TruncateText(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

func validateText(description, category string) error {
	if len(strings.TrimSpace(description)) == 0 {
		return ErrEmptyDescription
	}
	if utf8.RuneCountInString(description) > MaxDescriptionLen {
		return ErrDescriptionTooLong
	}
	if strings.TrimSpace(category) == "" {
		return ErrEmptyCategory
	}
	return nil
}
