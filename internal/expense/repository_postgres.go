package expense

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// PostgresStore persists expenses in Postgres. Read-modify-write runs inside
// a transaction with the expense row locked (SELECT ... FOR UPDATE), so
// concurrent mutations against one expense serialize without blocking others.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a Postgres-backed store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Create inserts a new expense with its items and people.
func (s *PostgresStore) Create(ctx context.Context, e *Expense) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO expenses (id, slug, restaurant_name, payer_name, subtotal, tax, service_charge, discount, total_amount, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, e.ID, e.Slug, e.RestaurantName, e.PayerName,
		e.Subtotal.String(), e.Tax.String(), e.ServiceCharge.String(), e.Discount.String(), e.TotalAmount.String(),
		e.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("failed to insert expense: %w", err)
	}

	if err := insertItemsAndPeople(ctx, tx, e); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetBySlug loads the full expense document.
func (s *PostgresStore) GetBySlug(ctx context.Context, slug string) (*Expense, error) {
	return loadExpense(ctx, s.db, slug, false)
}

// Update locks the expense row, applies mutate to the loaded document and
// rewrites it. A failed mutate rolls back, leaving the stored state unchanged.
func (s *PostgresStore) Update(ctx context.Context, slug string, mutate func(e *Expense) error) (*Expense, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	e, err := loadExpense(ctx, tx, slug, true)
	if err != nil {
		return nil, err
	}

	if err := mutate(e); err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE expenses
		SET restaurant_name = $2, payer_name = $3, subtotal = $4, tax = $5, service_charge = $6, discount = $7, total_amount = $8
		WHERE slug = $1
	`, e.Slug, e.RestaurantName, e.PayerName,
		e.Subtotal.String(), e.Tax.String(), e.ServiceCharge.String(), e.Discount.String(), e.TotalAmount.String())
	if err != nil {
		return nil, fmt.Errorf("failed to update expense: %w", err)
	}

	// Items, people and claims are rewritten wholesale; the per-row diff is
	// not worth the churn at receipt sizes.
	if _, err := tx.ExecContext(ctx, "DELETE FROM expense_items WHERE expense_id = $1", e.ID); err != nil {
		return nil, fmt.Errorf("failed to clear items: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM expense_people WHERE expense_id = $1", e.ID); err != nil {
		return nil, fmt.Errorf("failed to clear people: %w", err)
	}
	if err := insertItemsAndPeople(ctx, tx, e); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		if isSerializationFailure(err) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return e, nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func loadExpense(ctx context.Context, q queryer, slug string, forUpdate bool) (*Expense, error) {
	query := `
		SELECT id, slug, restaurant_name, payer_name, subtotal, tax, service_charge, discount, total_amount, created_at
		FROM expenses
		WHERE slug = $1
	`
	if forUpdate {
		query += " FOR UPDATE"
	}

	e := &Expense{}
	var subtotal, tax, serviceCharge, discount, totalAmount string
	err := q.QueryRowContext(ctx, query, slug).Scan(
		&e.ID, &e.Slug, &e.RestaurantName, &e.PayerName,
		&subtotal, &tax, &serviceCharge, &discount, &totalAmount,
		&e.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrExpenseNotFound
		}
		return nil, fmt.Errorf("failed to load expense: %w", err)
	}
	if e.Subtotal, err = decimal.NewFromString(subtotal); err != nil {
		return nil, fmt.Errorf("invalid subtotal: %w", err)
	}
	if e.Tax, err = decimal.NewFromString(tax); err != nil {
		return nil, fmt.Errorf("invalid tax: %w", err)
	}
	if e.ServiceCharge, err = decimal.NewFromString(serviceCharge); err != nil {
		return nil, fmt.Errorf("invalid service charge: %w", err)
	}
	if e.Discount, err = decimal.NewFromString(discount); err != nil {
		return nil, fmt.Errorf("invalid discount: %w", err)
	}
	if e.TotalAmount, err = decimal.NewFromString(totalAmount); err != nil {
		return nil, fmt.Errorf("invalid total amount: %w", err)
	}

	if err := loadItems(ctx, q, e); err != nil {
		return nil, err
	}
	if err := loadPeople(ctx, q, e); err != nil {
		return nil, err
	}
	return e, nil
}

func loadItems(ctx context.Context, q queryer, e *Expense) error {
	rows, err := q.QueryContext(ctx, `
		SELECT id, name, price, quantity_index, total_quantity
		FROM expense_items
		WHERE expense_id = $1
		ORDER BY position ASC
	`, e.ID)
	if err != nil {
		return fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]*Item)
	for rows.Next() {
		item := &Item{}
		var price string
		if err := rows.Scan(&item.ID, &item.Name, &price, &item.Quantity, &item.TotalQuantity); err != nil {
			return fmt.Errorf("failed to scan item: %w", err)
		}
		if item.Price, err = decimal.NewFromString(price); err != nil {
			return fmt.Errorf("invalid item price: %w", err)
		}
		e.Items = append(e.Items, item)
		byID[item.ID] = item
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating items: %w", err)
	}

	claimRows, err := q.QueryContext(ctx, `
		SELECT c.item_id, c.person_id
		FROM item_claims c
		JOIN expense_items i ON i.id = c.item_id
		WHERE i.expense_id = $1
		ORDER BY c.item_id, c.position ASC
	`, e.ID)
	if err != nil {
		return fmt.Errorf("failed to query claims: %w", err)
	}
	defer claimRows.Close()

	for claimRows.Next() {
		var itemID, personID string
		if err := claimRows.Scan(&itemID, &personID); err != nil {
			return fmt.Errorf("failed to scan claim: %w", err)
		}
		if item, ok := byID[itemID]; ok {
			item.ClaimedBy = append(item.ClaimedBy, personID)
		}
	}
	return claimRows.Err()
}

func loadPeople(ctx context.Context, q queryer, e *Expense) error {
	rows, err := q.QueryContext(ctx, `
		SELECT id, name, is_finished, items_subtotal, tax_share, service_charge_share, discount_share, total_owed
		FROM expense_people
		WHERE expense_id = $1
		ORDER BY position ASC
	`, e.ID)
	if err != nil {
		return fmt.Errorf("failed to query people: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p := &Person{}
		var itemsSubtotal, taxShare, serviceChargeShare, discountShare, totalOwed string
		if err := rows.Scan(&p.ID, &p.Name, &p.IsFinished,
			&itemsSubtotal, &taxShare, &serviceChargeShare, &discountShare, &totalOwed); err != nil {
			return fmt.Errorf("failed to scan person: %w", err)
		}
		if p.ItemsSubtotal, err = decimal.NewFromString(itemsSubtotal); err != nil {
			return fmt.Errorf("invalid items subtotal: %w", err)
		}
		if p.TaxShare, err = decimal.NewFromString(taxShare); err != nil {
			return fmt.Errorf("invalid tax share: %w", err)
		}
		if p.ServiceChargeShare, err = decimal.NewFromString(serviceChargeShare); err != nil {
			return fmt.Errorf("invalid service charge share: %w", err)
		}
		if p.DiscountShare, err = decimal.NewFromString(discountShare); err != nil {
			return fmt.Errorf("invalid discount share: %w", err)
		}
		if p.TotalOwed, err = decimal.NewFromString(totalOwed); err != nil {
			return fmt.Errorf("invalid total owed: %w", err)
		}
		e.People = append(e.People, p)
	}
	return rows.Err()
}

func insertItemsAndPeople(ctx context.Context, tx *sql.Tx, e *Expense) error {
	for pos, p := range e.People {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO expense_people (id, expense_id, name, is_finished, items_subtotal, tax_share, service_charge_share, discount_share, total_owed, position)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`, p.ID, e.ID, p.Name, p.IsFinished,
			p.ItemsSubtotal.String(), p.TaxShare.String(), p.ServiceChargeShare.String(), p.DiscountShare.String(), p.TotalOwed.String(),
			pos)
		if err != nil {
			return fmt.Errorf("failed to insert person: %w", err)
		}
	}

	for pos, item := range e.Items {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO expense_items (id, expense_id, name, price, quantity_index, total_quantity, position)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, item.ID, e.ID, item.Name, item.Price.String(), item.Quantity, item.TotalQuantity, pos)
		if err != nil {
			return fmt.Errorf("failed to insert item: %w", err)
		}
		for cpos, personID := range item.ClaimedBy {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO item_claims (item_id, person_id, position)
				VALUES ($1, $2, $3)
			`, item.ID, personID, cpos)
			if err != nil {
				return fmt.Errorf("failed to insert claim: %w", err)
			}
		}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func isSerializationFailure(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "40001"
}
