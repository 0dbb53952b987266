package core

import "github.com/shopspring/decimal"

// Totals is the income/expense/balance triple shown on the summary cards.
type Totals struct {
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	Balance decimal.Decimal `json:"balance"`
}

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name    string          `json:"name"`
	Amount  decimal.Decimal `json:"amount"`
	Percent decimal.Decimal `json:"percent"`
}

// BucketTotal is the totals for one interval of a trend series.
type BucketTotal struct {
	Interval
	Totals
	Count int `json:"count"`
}
