package split

import (
	"errors"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/forkthebill/backend/pkg/money"
)

var (
	ErrNegativeAdjustment = errors.New("adjustments cannot be negative")
	ErrNegativePrice      = errors.New("item price cannot be negative")
)

// Item is a claimable line as seen by the engine.
type Item struct {
	ID        string
	Price     decimal.Decimal
	ClaimedBy []string // person IDs, claim order
}

// Adjustments are the expense-level amounts allocated proportionally to each
// person's claimed subtotal.
type Adjustments struct {
	Tax           decimal.Decimal
	ServiceCharge decimal.Decimal
	Discount      decimal.Decimal
}

// Share is the computed monetary breakdown for one person.
type Share struct {
	ItemsSubtotal      decimal.Decimal
	TaxShare           decimal.Decimal
	ServiceChargeShare decimal.Decimal
	DiscountShare      decimal.Decimal
	TotalOwed          decimal.Decimal
}

// Result holds the computed breakdown for every person plus expense totals.
type Result struct {
	Subtotal    decimal.Decimal
	TotalAmount decimal.Decimal
	Shares      map[string]*Share
}

// Compute derives every person's share from the items they claimed.
//
// Each item's price is divided exactly among its claimants. Tax, service
// charge and discount are allocated proportionally to each person's claimed
// subtotal relative to the full expense subtotal, so the cost of unclaimed
// items stays unattributed: the sum of everyone's TotalOwed can be less than
// TotalAmount until every item is claimed.
func Compute(items []Item, personIDs []string, adj Adjustments) (*Result, error) {
	if adj.Tax.IsNegative() || adj.ServiceCharge.IsNegative() || adj.Discount.IsNegative() {
		return nil, ErrNegativeAdjustment
	}

	shares := make(map[string]*Share, len(personIDs))
	for _, id := range personIDs {
		shares[id] = &Share{
			ItemsSubtotal:      decimal.Zero,
			TaxShare:           decimal.Zero,
			ServiceChargeShare: decimal.Zero,
			DiscountShare:      decimal.Zero,
			TotalOwed:          decimal.Zero,
		}
	}

	subtotal := decimal.Zero
	for _, item := range items {
		if item.Price.IsNegative() {
			return nil, ErrNegativePrice
		}
		subtotal = subtotal.Add(item.Price)

		if len(item.ClaimedBy) == 0 {
			continue
		}
		parts, err := money.DivideEvenly(item.Price, len(item.ClaimedBy))
		if err != nil {
			return nil, err
		}
		for i, personID := range item.ClaimedBy {
			if s, ok := shares[personID]; ok {
				s.ItemsSubtotal = s.ItemsSubtotal.Add(parts[i])
			}
		}
	}

	weights := make([]decimal.Decimal, len(personIDs))
	for i, id := range personIDs {
		weights[i] = shares[id].ItemsSubtotal
	}

	taxShares := allocate(adj.Tax, weights, subtotal)
	serviceShares := allocate(adj.ServiceCharge, weights, subtotal)
	discountShares := allocate(adj.Discount, weights, subtotal)

	for i, id := range personIDs {
		s := shares[id]
		s.TaxShare = taxShares[i]
		s.ServiceChargeShare = serviceShares[i]
		s.DiscountShare = discountShares[i]
		s.TotalOwed = s.ItemsSubtotal.Add(s.TaxShare).Add(s.ServiceChargeShare).Sub(s.DiscountShare)
	}

	return &Result{
		Subtotal:    subtotal,
		TotalAmount: subtotal.Add(adj.Tax).Add(adj.ServiceCharge).Sub(adj.Discount),
		Shares:      shares,
	}, nil
}

// allocate distributes total across weights proportionally to weight/base,
// in whole cents. The same largest-remainder rule is applied to all three
// adjustment categories so the allocated cents sum exactly to the rounded
// claimed portion of total; when every item is claimed that portion is the
// whole total. A zero base means no items, so everyone's allocation is zero.
func allocate(total decimal.Decimal, weights []decimal.Decimal, base decimal.Decimal) []decimal.Decimal {
	out := make([]decimal.Decimal, len(weights))
	for i := range out {
		out[i] = decimal.Zero
	}
	if base.IsZero() || total.IsZero() {
		return out
	}

	claimed := decimal.Zero
	for _, w := range weights {
		claimed = claimed.Add(w)
	}

	floors := make([]int64, len(weights))
	fracs := make([]decimal.Decimal, len(weights))
	var floorSum int64
	for i, w := range weights {
		scaled := money.MulRatio(total, w, base).Shift(money.MinorPlaces)
		floor := scaled.Floor()
		floors[i] = floor.IntPart()
		fracs[i] = scaled.Sub(floor)
		floorSum += floors[i]
	}

	targetCents := money.MulRatio(total, claimed, base).Shift(money.MinorPlaces).Round(0).IntPart()

	order := make([]int, len(weights))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return fracs[order[a]].GreaterThan(fracs[order[b]])
	})

	extra := targetCents - floorSum
	for _, idx := range order {
		if extra <= 0 {
			break
		}
		floors[idx]++
		extra--
	}

	for i := range out {
		out[i] = decimal.New(floors[i], -money.MinorPlaces)
	}
	return out
}
