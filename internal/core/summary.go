package core

// Summary aggregates income and expense totals. It is computed, never stored.
type Summary struct {
	TotalIncome  Money `json:"totalIncome"`
	TotalExpense Money `json:"totalExpense"`
	Balance      Money `json:"balance"`
}

// NewSummary derives the balance as income minus expense.
func NewSummary(income, expense Money) Summary {
	return Summary{
		TotalIncome:  income,
		TotalExpense: expense,
		Balance:      income.Sub(expense),
	}
}
