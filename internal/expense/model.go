package expense

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/forkthebill/backend/internal/expense/split"
)

// Item is one claimable unit on the bill. A multi-quantity order of N units
// is stored as N sibling items, each carrying its per-unit price; Quantity
// and TotalQuantity only group them for display.
type Item struct {
	ID            string
	Name          string
	Price         decimal.Decimal
	Quantity      int
	TotalQuantity int
	ClaimedBy     []string // person IDs in claim order, no duplicates
}

// AddClaimant records a claim. Adding a person who already claimed the item
// is a no-op; returns whether the claimant set changed.
func (i *Item) AddClaimant(personID string) bool {
	for _, id := range i.ClaimedBy {
		if id == personID {
			return false
		}
	}
	i.ClaimedBy = append(i.ClaimedBy, personID)
	return true
}

// RemoveClaimant removes a claim. Removing an absent claimant is a no-op;
// returns whether the claimant set changed.
func (i *Item) RemoveClaimant(personID string) bool {
	for idx, id := range i.ClaimedBy {
		if id == personID {
			i.ClaimedBy = append(i.ClaimedBy[:idx], i.ClaimedBy[idx+1:]...)
			return true
		}
	}
	return false
}

// Person is a named party on the expense. The monetary fields are derived by
// the split engine and never mutated directly.
type Person struct {
	ID         string
	Name       string
	IsFinished bool

	ItemsSubtotal      decimal.Decimal
	TaxShare           decimal.Decimal
	ServiceChargeShare decimal.Decimal
	DiscountShare      decimal.Decimal
	TotalOwed          decimal.Decimal
}

// Expense is the shared bill document. Subtotal and TotalAmount are derived;
// Tax, ServiceCharge and Discount are absolute amounts entered by a user.
type Expense struct {
	ID             string
	Slug           string
	RestaurantName string
	PayerName      string
	CreatedAt      time.Time

	Items  []*Item
	People []*Person

	Subtotal      decimal.Decimal
	Tax           decimal.Decimal
	ServiceCharge decimal.Decimal
	Discount      decimal.Decimal
	TotalAmount   decimal.Decimal
}

// FindItem returns the item with the given ID, or nil.
func (e *Expense) FindItem(itemID string) *Item {
	for _, item := range e.Items {
		if item.ID == itemID {
			return item
		}
	}
	return nil
}

// FindPerson returns the person with the given ID, or nil.
func (e *Expense) FindPerson(personID string) *Person {
	for _, p := range e.People {
		if p.ID == personID {
			return p
		}
	}
	return nil
}

// FindPersonByName returns the person with the given display name, or nil.
// Name matching is exact and case-sensitive; the name is the identity key
// the UI uses before a person ID exists.
func (e *Expense) FindPersonByName(name string) *Person {
	for _, p := range e.People {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// ItemsClaimedBy returns the IDs of all items the person has claimed.
func (e *Expense) ItemsClaimedBy(personID string) []string {
	claimed := make([]string, 0)
	for _, item := range e.Items {
		for _, id := range item.ClaimedBy {
			if id == personID {
				claimed = append(claimed, item.ID)
				break
			}
		}
	}
	return claimed
}

// Recompute re-derives every person's breakdown and the expense totals from
// the current items and adjustments. Runs after every mutation; shares are
// never patched incrementally.
func (e *Expense) Recompute() error {
	items := make([]split.Item, len(e.Items))
	for i, item := range e.Items {
		items[i] = split.Item{
			ID:        item.ID,
			Price:     item.Price,
			ClaimedBy: item.ClaimedBy,
		}
	}
	personIDs := make([]string, len(e.People))
	for i, p := range e.People {
		personIDs[i] = p.ID
	}

	res, err := split.Compute(items, personIDs, split.Adjustments{
		Tax:           e.Tax,
		ServiceCharge: e.ServiceCharge,
		Discount:      e.Discount,
	})
	if err != nil {
		return err
	}

	e.Subtotal = res.Subtotal
	e.TotalAmount = res.TotalAmount
	for _, p := range e.People {
		s := res.Shares[p.ID]
		p.ItemsSubtotal = s.ItemsSubtotal
		p.TaxShare = s.TaxShare
		p.ServiceChargeShare = s.ServiceChargeShare
		p.DiscountShare = s.DiscountShare
		p.TotalOwed = s.TotalOwed
	}
	return nil
}

// Clone returns a deep copy of the expense.
func (e *Expense) Clone() *Expense {
	c := *e
	c.Items = make([]*Item, len(e.Items))
	for i, item := range e.Items {
		ic := *item
		ic.ClaimedBy = append([]string(nil), item.ClaimedBy...)
		c.Items[i] = &ic
	}
	c.People = make([]*Person, len(e.People))
	for i, p := range e.People {
		pc := *p
		c.People[i] = &pc
	}
	return &c
}
