package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

// Error codes carried in ErrorResponse.Error.
const (
	CodeValidation  = "validation_error"
	CodeNotFound    = "not_found"
	CodePersistence = "persistence_error"
	CodeBadRequest  = "bad_request"
	CodeInternal    = "internal_error"
	CodeRateLimited = "rate_limited"
)

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Field   string `json:"field,omitempty"`
}

type EntryListResponse struct {
	Entries []core.Transaction `json:"entries"`
	Count   int                `json:"count"`
}

func EntryList(entries []core.Transaction) EntryListResponse {
	if entries == nil {
		entries = []core.Transaction{}
	}
	return EntryListResponse{Entries: entries, Count: len(entries)}
}

type TemplateListResponse struct {
	Templates []core.RecurringTemplate `json:"templates"`
	Count     int                      `json:"count"`
}

func TemplateList(templates []core.RecurringTemplate) TemplateListResponse {
	if templates == nil {
		templates = []core.RecurringTemplate{}
	}
	return TemplateListResponse{Templates: templates, Count: len(templates)}
}

// TotalsResponse is the summary card payload.
type TotalsResponse struct {
	core.Totals
	Currency  string            `json:"currency"`
	Formatted map[string]string `json:"formatted"`
}

func Totals(t core.Totals, currency string) TotalsResponse {
	return TotalsResponse{
		Totals:   t,
		Currency: currency,
		Formatted: map[string]string{
			"income":  core.FormatAmount(t.Income, currency),
			"expense": core.FormatAmount(t.Expense, currency),
			"balance": core.FormatAmount(t.Balance, currency),
		},
	}
}

type BreakdownResponse struct {
	Type       core.EntryType        `json:"type"`
	Total      decimal.Decimal       `json:"total"`
	Categories []core.CategoryAmount `json:"categories"`
}

type SeriesResponse struct {
	Period  string             `json:"period"`
	Buckets []core.BucketTotal `json:"buckets"`
}

// ProcessFailure names a template that could not be emitted in a pass.
type ProcessFailure struct {
	TemplateID string `json:"templateId"`
	Error      string `json:"error"`
}

type ProcessResponse struct {
	Emitted  int                `json:"emitted"`
	Entries  []core.Transaction `json:"entries"`
	Failures []ProcessFailure   `json:"failures,omitempty"`
}

type StatusResponse struct {
	NetworkAvailable bool       `json:"networkAvailable"`
	LastCheck        *time.Time `json:"lastCheck,omitempty"`
	Message          string     `json:"message,omitempty"`
}

type CategoriesResponse struct {
	Income  []string `json:"income"`
	Expense []string `json:"expense"`
}
