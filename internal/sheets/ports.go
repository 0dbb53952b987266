package sheets

import (
	"context"

	"fintrack/internal/core"
)

// Ports for outbound adapters.
type (
	// Mirror keeps a spreadsheet copy of the entry list, one row per entry.
	Mirror interface {
		// Upsert writes t to its row, appending one when t is new.
		Upsert(ctx context.Context, t core.Transaction) error
		// Delete clears the row for id. Unknown ids are not an error.
		Delete(ctx context.Context, id string) error
	}

	// Lister reads back the ids currently mirrored, used by reconciliation.
	Lister interface {
		ListIDs(ctx context.Context) ([]string, error)
	}
)

// Header is the first row of the mirror sheet.
var Header = []string{"ID", "Date", "Type", "Category", "Description", "Amount", "Recurring", "RecurringID"}

// Row renders t in Header column order.
func Row(t core.Transaction) []any {
	return []any{
		t.ID,
		t.Date.String(),
		string(t.Type),
		t.Category,
		t.Description,
		t.Amount.StringFixed(2),
		t.IsRecurring,
		t.RecurringID,
	}
}
