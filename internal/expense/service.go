package expense

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"

	"github.com/forkthebill/backend/internal/receipt"
	"github.com/forkthebill/backend/pkg/money"
)

// Common errors
var (
	ErrExpenseNotFound = errors.New("expense not found")
	ErrItemNotFound    = errors.New("item not found")
	ErrPersonNotFound  = errors.New("person not found")
	ErrInvalidQuantity = errors.New("quantity must be positive")
	ErrEmptyName       = errors.New("name is required")
	ErrConflict        = errors.New("conflicting write on expense")
)

// PersonIdentity identifies a person by ID or, before one exists, by display
// name. Name-based operations create the person on first use.
type PersonIdentity struct {
	ID   string
	Name string
}

// Service applies mutation operations to expense documents. Every operation
// validates first, mutates a copy of the latest state under the store's
// per-expense serialization, recomputes splits, and persists atomically.
type Service struct {
	store  Store
	parser receipt.Parser
}

// NewService creates a new expense service with dependencies injected.
func NewService(store Store, parser receipt.Parser) *Service {
	return &Service{store: store, parser: parser}
}

// GetExpense fetches an expense by slug.
func (s *Service) GetExpense(ctx context.Context, slug string) (*Expense, error) {
	return s.store.GetBySlug(ctx, slug)
}

// CreateExpense builds a new expense from the request: items are expanded
// into per-unit claimable lines, the payer becomes the first person, and any
// listed people are materialized with their claims before the first split
// computation.
func (s *Service) CreateExpense(ctx context.Context, req *CreateExpenseRequest) (*Expense, error) {
	if strings.TrimSpace(req.PayerName) == "" {
		return nil, ErrEmptyName
	}
	adj, err := toAdjustments(req.Tax, req.ServiceCharge, req.Discount)
	if err != nil {
		return nil, err
	}

	e := &Expense{
		ID:             ulid.Make().String(),
		RestaurantName: req.RestaurantName,
		PayerName:      req.PayerName,
		CreatedAt:      time.Now().UTC(),
		Tax:            adj[0],
		ServiceCharge:  adj[1],
		Discount:       adj[2],
	}
	e.Slug = newSlug(req.RestaurantName)

	if err := buildItems(e, req.Items); err != nil {
		return nil, err
	}
	if err := buildPeople(e, req.PayerName, req.People); err != nil {
		return nil, err
	}
	if err := e.Recompute(); err != nil {
		return nil, err
	}

	if err := s.store.Create(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// CreateFromReceipt runs the uploaded image through the extraction service
// and creates an expense from the result. Extraction failure is tolerated:
// the expense is still created, with no items, so the payer can enter them
// by hand.
func (s *Service) CreateFromReceipt(ctx context.Context, image []byte, contentType, payerName string) (*Expense, error) {
	if strings.TrimSpace(payerName) == "" {
		return nil, ErrEmptyName
	}

	req := &CreateExpenseRequest{PayerName: payerName}
	if s.parser == nil {
		slog.Warn("no receipt parser configured, creating empty expense")
		return s.CreateExpense(ctx, req)
	}
	parsed, err := s.parser.Parse(ctx, image, contentType)
	if err != nil {
		slog.Warn("receipt extraction failed, creating empty expense", "error", err)
	} else {
		req.RestaurantName = parsed.RestaurantName
		req.Tax = parsed.Tax
		req.ServiceCharge = parsed.ServiceCharge
		req.Discount = parsed.Discount
		for _, item := range parsed.Items {
			// extraction output is best-effort; a missing quantity means one unit
			qty := item.Quantity
			if qty < 1 {
				qty = 1
			}
			req.Items = append(req.Items, ItemRequest{
				Name:     item.Name,
				Price:    item.TotalPrice,
				Quantity: &qty,
			})
		}
	}
	return s.CreateExpense(ctx, req)
}

// ReplaceExpense replaces the items, people and adjustments of an existing
// expense with the full payload, keeping IDs where names or item IDs match.
func (s *Service) ReplaceExpense(ctx context.Context, slug string, req *CreateExpenseRequest) (*Expense, error) {
	adj, err := toAdjustments(req.Tax, req.ServiceCharge, req.Discount)
	if err != nil {
		return nil, err
	}

	return s.store.Update(ctx, slug, func(e *Expense) error {
		if req.PayerName != "" {
			e.PayerName = req.PayerName
		}
		if req.RestaurantName != "" {
			e.RestaurantName = req.RestaurantName
		}
		e.Tax, e.ServiceCharge, e.Discount = adj[0], adj[1], adj[2]

		existingPeople := e.People
		e.Items = nil
		e.People = nil
		if err := buildItems(e, req.Items); err != nil {
			return err
		}
		// keep person IDs stable across a replace: names are the identity key
		keep := func(name string) string {
			for _, p := range existingPeople {
				if p.Name == name {
					return p.ID
				}
			}
			return ""
		}
		if err := buildPeople(e, e.PayerName, req.People); err != nil {
			return err
		}
		for _, p := range e.People {
			if id := keep(p.Name); id != "" {
				remapClaims(e, p.ID, id)
				p.ID = id
			}
		}
		return e.Recompute()
	})
}

// ClaimItem adds the person to the item's claimant set. A name identity that
// does not match an existing person creates one first, with no claims and
// not finished; claiming an item already claimed by the same person is a
// no-op. Splits are recomputed either way.
func (s *Service) ClaimItem(ctx context.Context, slug, itemID string, who PersonIdentity) (*Expense, error) {
	return s.store.Update(ctx, slug, func(e *Expense) error {
		item := e.FindItem(itemID)
		if item == nil {
			return ErrItemNotFound
		}
		p, err := resolvePerson(e, who, true)
		if err != nil {
			return err
		}
		item.AddClaimant(p.ID)
		return e.Recompute()
	})
}

// UnclaimItem removes the person's claim on the item. Unclaiming an item the
// person never claimed is an idempotent no-op, matching the retry contract
// of ClaimItem; only a missing expense or item is an error.
func (s *Service) UnclaimItem(ctx context.Context, slug, itemID, personID string) (*Expense, error) {
	return s.store.Update(ctx, slug, func(e *Expense) error {
		item := e.FindItem(itemID)
		if item == nil {
			return ErrItemNotFound
		}
		item.RemoveClaimant(personID)
		return e.Recompute()
	})
}

// AddItem appends quantity equal-priced unclaimed units whose prices sum
// exactly to price. Not idempotent: every call appends new items.
func (s *Service) AddItem(ctx context.Context, slug string, req *AddItemRequest) (*Expense, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, ErrEmptyName
	}
	qty, err := itemQuantity(req.Quantity)
	if err != nil {
		return nil, err
	}
	price := money.FromFloat(req.Price)
	if price.IsNegative() {
		return nil, money.ErrInvalidAmount
	}

	return s.store.Update(ctx, slug, func(e *Expense) error {
		if err := appendItemUnits(e, req.Name, price, qty); err != nil {
			return err
		}
		return e.Recompute()
	})
}

// AddPerson adds a named person with no claims. Names are the identity key,
// so adding an existing name returns the current state unchanged; the same
// merge rule applies to claims and payloads that repeat a name, keeping every
// name-based operation retry-safe.
func (s *Service) AddPerson(ctx context.Context, slug, name string, isFinished bool) (*Expense, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrEmptyName
	}
	return s.store.Update(ctx, slug, func(e *Expense) error {
		if e.FindPersonByName(name) != nil {
			return nil
		}
		e.People = append(e.People, &Person{
			ID:         uuid.NewString(),
			Name:       name,
			IsFinished: isFinished,
		})
		return e.Recompute()
	})
}

// SetFinished sets the person's advisory completion flag. An unknown name
// identity creates the person first; the flag never affects monetary shares,
// so no recomputation is needed.
func (s *Service) SetFinished(ctx context.Context, slug string, who PersonIdentity, finished bool) (*Expense, error) {
	return s.store.Update(ctx, slug, func(e *Expense) error {
		p, err := resolvePerson(e, who, true)
		if err != nil {
			return err
		}
		p.IsFinished = finished
		return nil
	})
}

// UpdateAdjustments replaces tax, service charge and discount; nil fields
// keep their previous values. All shares are recomputed.
func (s *Service) UpdateAdjustments(ctx context.Context, slug string, req *UpdateAdjustmentsRequest) (*Expense, error) {
	for _, v := range []*float64{req.Tax, req.ServiceCharge, req.Discount} {
		if v != nil && *v < 0 {
			return nil, money.ErrInvalidAmount
		}
	}
	return s.store.Update(ctx, slug, func(e *Expense) error {
		if req.Tax != nil {
			e.Tax = money.Round(money.FromFloat(*req.Tax))
		}
		if req.ServiceCharge != nil {
			e.ServiceCharge = money.Round(money.FromFloat(*req.ServiceCharge))
		}
		if req.Discount != nil {
			e.Discount = money.Round(money.FromFloat(*req.Discount))
		}
		return e.Recompute()
	})
}

// resolvePerson finds the person by ID or name. With create set, an unknown
// name materializes a new person; an unknown ID is always ErrPersonNotFound.
func resolvePerson(e *Expense, who PersonIdentity, create bool) (*Person, error) {
	if who.ID != "" {
		if p := e.FindPerson(who.ID); p != nil {
			return p, nil
		}
		return nil, ErrPersonNotFound
	}
	if strings.TrimSpace(who.Name) == "" {
		return nil, ErrEmptyName
	}
	if p := e.FindPersonByName(who.Name); p != nil {
		return p, nil
	}
	if !create {
		return nil, ErrPersonNotFound
	}
	p := &Person{ID: uuid.NewString(), Name: who.Name}
	e.People = append(e.People, p)
	return p, nil
}

func buildItems(e *Expense, items []ItemRequest) error {
	for _, item := range items {
		if strings.TrimSpace(item.Name) == "" {
			return ErrEmptyName
		}
		price := money.FromFloat(item.Price)
		if price.IsNegative() {
			return money.ErrInvalidAmount
		}
		qty, err := itemQuantity(item.Quantity)
		if err != nil {
			return err
		}
		if qty == 1 && item.ID != "" {
			e.Items = append(e.Items, &Item{
				ID:            item.ID,
				Name:          item.Name,
				Price:         money.Round(price),
				Quantity:      1,
				TotalQuantity: 1,
			})
			continue
		}
		if err := appendItemUnits(e, item.Name, price, qty); err != nil {
			return err
		}
	}
	return nil
}

// itemQuantity resolves an optional wire quantity. An omitted value means a
// single unit; a provided value must be positive.
func itemQuantity(q *int) (int, error) {
	if q == nil {
		return 1, nil
	}
	if *q <= 0 {
		return 0, ErrInvalidQuantity
	}
	return *q, nil
}

// appendItemUnits splits price into qty units that partition it exactly and
// appends them as sibling items.
func appendItemUnits(e *Expense, name string, price decimal.Decimal, qty int) error {
	unitPrices, err := money.DivideEvenly(price, qty)
	if err != nil {
		return err
	}
	for i, unitPrice := range unitPrices {
		e.Items = append(e.Items, &Item{
			ID:            uuid.NewString(),
			Name:          name,
			Price:         unitPrice,
			Quantity:      i + 1,
			TotalQuantity: qty,
		})
	}
	return nil
}

// buildPeople materializes the payer plus any requested people, resolving
// itemsClaimed references against the already-built item list. Entries that
// repeat a name merge into one person, matching the claim-by-name rule.
func buildPeople(e *Expense, payerName string, people []PersonRequest) error {
	addPerson := func(name string, finished bool) *Person {
		p := &Person{ID: uuid.NewString(), Name: name, IsFinished: finished}
		e.People = append(e.People, p)
		return p
	}

	addPerson(payerName, false)
	for _, pr := range people {
		if strings.TrimSpace(pr.Name) == "" {
			return ErrEmptyName
		}
		p := e.FindPersonByName(pr.Name)
		if p == nil {
			p = addPerson(pr.Name, pr.IsFinished)
		} else {
			// the payer or an earlier entry may appear again with claims
			p.IsFinished = pr.IsFinished
		}
		for _, itemID := range pr.ItemsClaimed {
			item := e.FindItem(itemID)
			if item == nil {
				return ErrItemNotFound
			}
			item.AddClaimant(p.ID)
		}
	}
	return nil
}

func remapClaims(e *Expense, from, to string) {
	for _, item := range e.Items {
		for i, id := range item.ClaimedBy {
			if id == from {
				item.ClaimedBy[i] = to
			}
		}
	}
}

func toAdjustments(tax, serviceCharge, discount float64) ([3]decimal.Decimal, error) {
	var out [3]decimal.Decimal
	for i, v := range []float64{tax, serviceCharge, discount} {
		if v < 0 {
			return out, money.ErrInvalidAmount
		}
		out[i] = money.Round(money.FromFloat(v))
	}
	return out, nil
}

// newSlug derives a shareable identifier from the restaurant name plus a
// random suffix so two uploads from the same place never collide.
func newSlug(restaurantName string) string {
	base := strings.ToLower(strings.TrimSpace(restaurantName))
	var b strings.Builder
	lastDash := true
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	slug := strings.Trim(b.String(), "-")
	suffix := strings.ToLower(ulid.Make().String())
	suffix = suffix[len(suffix)-8:]
	if slug == "" {
		return suffix
	}
	return slug + "-" + suffix
}
