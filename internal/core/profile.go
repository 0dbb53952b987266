package core

import (
	"net/mail"
	"strings"
)

// Profile is the current user's profile record.
type Profile struct {
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	Currency  string `json:"currency"`
	Theme     string `json:"theme"`
	WeekStart string `json:"weekStart,omitempty"`
}

// DefaultProfile is used until the user saves one.
func DefaultProfile() Profile {
	return Profile{Name: "", Currency: "EUR", Theme: "light"}
}

func (p Profile) Validate() error {
	if p.Email != "" {
		if _, err := mail.ParseAddress(p.Email); err != nil {
			return NewValidationError("email", "invalid email address")
		}
	}
	if c := strings.TrimSpace(p.Currency); len(c) != 3 {
		return NewValidationError("currency", "currency must be a 3-letter code")
	}
	switch p.Theme {
	case "light", "dark", "system":
	default:
		return NewValidationError("theme", "theme must be light, dark or system")
	}
	if p.WeekStart != "" {
		if _, ok := ParseWeekday(p.WeekStart); !ok {
			return NewValidationError("weekStart", "unknown weekday")
		}
	}
	return nil
}

// Categories is the configurable category set keyed by entry type.
type Categories map[EntryType][]string

// DefaultCategories seeds the catalog when nothing is configured.
func DefaultCategories() Categories {
	return Categories{
		Income:  {"Salary", "Freelance", "Investments", "Gifts", "Other"},
		Expense: {"Housing", "Food", "Transport", "Utilities", "Health", "Entertainment", "Shopping", "Other"},
	}
}

// For returns a copy of the categories configured for t.
func (c Categories) For(t EntryType) []string {
	return append([]string(nil), c[t]...)
}
