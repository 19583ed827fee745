package main

const timestampLayout = "2006-01-02T15:04:05Z"

// ExpenseResource is the wire shape of an expense. The stored minor-unit
// value becomes a decimal major amount, dates drop their time component and
// timestamps are rendered in UTC with an explicit Z marker. Only the owner's
// id is exposed, never the full user record.
type ExpenseResource struct {
	ID          int64   `json:"id"`
	Description string  `json:"description"`
	Date        string  `json:"date"`
	Value       float64 `json:"value"`
	UserID      int64   `json:"user_id"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

func PresentExpense(e Expense) ExpenseResource {
	return ExpenseResource{
		ID:          e.ID,
		Description: e.Description,
		Date:        e.Date.Format(dateLayout),
		Value:       float64(e.Value) / 100.0,
		UserID:      e.UserID,
		CreatedAt:   e.CreatedAt.UTC().Format(timestampLayout),
		UpdatedAt:   e.UpdatedAt.UTC().Format(timestampLayout),
	}
}

// UserResource is the wire shape of a user. The password hash never leaves
// the server.
type UserResource struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func PresentUser(u User) UserResource {
	return UserResource{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		CreatedAt: u.CreatedAt.UTC().Format(timestampLayout),
		UpdatedAt: u.UpdatedAt.UTC().Format(timestampLayout),
	}
}

type PageMeta struct {
	CurrentPage int `json:"current_page"`
	PerPage     int `json:"per_page"`
	Total       int `json:"total"`
}

type ExpensePage struct {
	Data []ExpenseResource `json:"data"`
	Meta PageMeta          `json:"meta"`
}

func PresentExpensePage(expenses []Expense, page, perPage, total int) ExpensePage {
	data := make([]ExpenseResource, 0, len(expenses))
	for _, e := range expenses {
		data = append(data, PresentExpense(e))
	}
	return ExpensePage{
		Data: data,
		Meta: PageMeta{CurrentPage: page, PerPage: perPage, Total: total},
	}
}
