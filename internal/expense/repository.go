package expense

import "context"

// Store persists expense documents. Update must serialize read-modify-write
// per expense so concurrent claims never drop each other; serialization is
// scoped to a single expense and never blocks operations on other expenses.
// If the mutate callback returns an error the stored state is left untouched.
type Store interface {
	Create(ctx context.Context, e *Expense) error
	GetBySlug(ctx context.Context, slug string) (*Expense, error)
	Update(ctx context.Context, slug string, mutate func(e *Expense) error) (*Expense, error)
}
