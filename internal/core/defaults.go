package core

// DefaultCategories is the fixed set seeded by category initialization.
// UserID and timestamps are filled in by the caller.
func DefaultCategories() []Category {
	return []Category{
		{Name: "Food & Dining", Type: Expense, Color: "#EF4444", Icon: "utensils", IsDefault: true},
		{Name: "Transportation", Type: Expense, Color: "#F97316", Icon: "car", IsDefault: true},
		{Name: "Shopping", Type: Expense, Color: "#EAB308", Icon: "shopping-bag", IsDefault: true},
		{Name: "Entertainment", Type: Expense, Color: "#A855F7", Icon: "film", IsDefault: true},
		{Name: "Bills & Utilities", Type: Expense, Color: "#3B82F6", Icon: "file-text", IsDefault: true},
		{Name: "Healthcare", Type: Expense, Color: "#EC4899", Icon: "heart", IsDefault: true},
		{Name: "Education", Type: Expense, Color: "#14B8A6", Icon: "book", IsDefault: true},
		{Name: "Housing", Type: Expense, Color: "#6366F1", Icon: "home", IsDefault: true},
		{Name: "Other Expense", Type: Expense, Color: "#6B7280", Icon: "more-horizontal", IsDefault: true},
		{Name: "Salary", Type: Income, Color: "#22C55E", Icon: "briefcase", IsDefault: true},
		{Name: "Freelance", Type: Income, Color: "#10B981", Icon: "laptop", IsDefault: true},
		{Name: "Investments", Type: Income, Color: "#06B6D4", Icon: "trending-up", IsDefault: true},
		{Name: "Gifts", Type: Income, Color: "#F43F5E", Icon: "gift", IsDefault: true},
		{Name: "Other Income", Type: Income, Color: "#84CC16", Icon: "plus-circle", IsDefault: true},
	}
}
