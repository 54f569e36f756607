package expense

import (
	"time"

	"github.com/forkthebill/backend/pkg/money"
)

// ItemRequest is one line in a create/replace payload. An omitted quantity
// means one unit; a provided quantity must be positive and splits Price
// evenly into that many sibling items.
type ItemRequest struct {
	ID       string  `json:"id,omitempty"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity *int    `json:"quantity,omitempty"`
}

// PersonRequest is one person in a create/replace payload. The wire format
// uses "isFinished" on requests but "finished" on responses; both are
// translated to the internal IsFinished field at this boundary.
type PersonRequest struct {
	Name         string   `json:"name"`
	ItemsClaimed []string `json:"itemsClaimed,omitempty"`
	IsFinished   bool     `json:"isFinished"`
}

// CreateExpenseRequest creates a new expense. The payer always becomes the
// first person, with zero claims unless listed in People.
type CreateExpenseRequest struct {
	RestaurantName string          `json:"restaurantName"`
	PayerName      string          `json:"payerName"`
	Tax            float64         `json:"tax"`
	ServiceCharge  float64         `json:"serviceCharge"`
	Discount       float64         `json:"discount"`
	Items          []ItemRequest   `json:"items"`
	People         []PersonRequest `json:"people,omitempty"`
}

// ClaimItemRequest identifies the claimant. Exactly one of PersonID or Name
// is expected; claiming by an unknown name creates the person first.
type ClaimItemRequest struct {
	PersonID string `json:"personId,omitempty"`
	Name     string `json:"name,omitempty"`
}

// AddPersonRequest adds a person to an expense.
type AddPersonRequest struct {
	Name       string `json:"name"`
	IsFinished bool   `json:"isFinished"`
}

// AddItemRequest appends an item. An omitted quantity means one unit; a
// provided quantity must be positive and splits Price into that many
// equal-priced unclaimed units.
type AddItemRequest struct {
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity *int    `json:"quantity,omitempty"`
}

// UpdateAdjustmentsRequest replaces the expense-level adjustments. Omitted
// fields keep their previous values.
type UpdateAdjustmentsRequest struct {
	Tax           *float64 `json:"tax,omitempty"`
	ServiceCharge *float64 `json:"serviceCharge,omitempty"`
	Discount      *float64 `json:"discount,omitempty"`
}

// ItemResponse mirrors the UI's item schema: claimedBy carries person IDs.
type ItemResponse struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Price         float64  `json:"price"`
	Quantity      int      `json:"quantity"`
	TotalQuantity int      `json:"totalQuantity"`
	ClaimedBy     []string `json:"claimedBy"`
}

// PersonResponse mirrors the UI's person schema. The completion flag is named
// "finished" on the wire while the model uses IsFinished; amountOwed is kept
// as a legacy alias of subtotal for older UI revisions.
type PersonResponse struct {
	ID                 string   `json:"id"`
	Name               string   `json:"name"`
	ItemsClaimed       []string `json:"itemsClaimed"`
	AmountOwed         float64  `json:"amountOwed"`
	Subtotal           float64  `json:"subtotal"`
	TaxShare           float64  `json:"taxShare"`
	ServiceChargeShare float64  `json:"serviceChargeShare"`
	DiscountShare      float64  `json:"discountShare"`
	TotalOwed          float64  `json:"totalOwed"`
	Finished           bool     `json:"finished"`
}

// ExpenseResponse is the full expense document returned by every endpoint.
type ExpenseResponse struct {
	ID             string           `json:"id"`
	Slug           string           `json:"slug"`
	RestaurantName string           `json:"restaurantName"`
	PayerName      string           `json:"payerName"`
	CreatedAt      string           `json:"createdAt"`
	Subtotal       float64          `json:"subtotal"`
	Tax            float64          `json:"tax"`
	ServiceCharge  float64          `json:"serviceCharge"`
	Discount       float64          `json:"discount"`
	TotalAmount    float64          `json:"totalAmount"`
	Items          []ItemResponse   `json:"items"`
	People         []PersonResponse `json:"people"`
}

// ToResponse converts the expense document to its wire representation. All
// amounts are rounded decimals; the float conversion here is exact for
// minor-unit values in the currency range this service handles.
func (e *Expense) ToResponse() *ExpenseResponse {
	items := make([]ItemResponse, len(e.Items))
	for i, item := range e.Items {
		claimedBy := item.ClaimedBy
		if claimedBy == nil {
			claimedBy = []string{}
		}
		items[i] = ItemResponse{
			ID:            item.ID,
			Name:          item.Name,
			Price:         money.Float(item.Price),
			Quantity:      item.Quantity,
			TotalQuantity: item.TotalQuantity,
			ClaimedBy:     claimedBy,
		}
	}

	people := make([]PersonResponse, len(e.People))
	for i, p := range e.People {
		people[i] = PersonResponse{
			ID:                 p.ID,
			Name:               p.Name,
			ItemsClaimed:       e.ItemsClaimedBy(p.ID),
			AmountOwed:         money.Float(p.ItemsSubtotal),
			Subtotal:           money.Float(p.ItemsSubtotal),
			TaxShare:           money.Float(p.TaxShare),
			ServiceChargeShare: money.Float(p.ServiceChargeShare),
			DiscountShare:      money.Float(p.DiscountShare),
			TotalOwed:          money.Float(p.TotalOwed),
			Finished:           p.IsFinished,
		}
	}

	return &ExpenseResponse{
		ID:             e.ID,
		Slug:           e.Slug,
		RestaurantName: e.RestaurantName,
		PayerName:      e.PayerName,
		CreatedAt:      e.CreatedAt.UTC().Format(time.RFC3339),
		Subtotal:       money.Float(e.Subtotal),
		Tax:            money.Float(e.Tax),
		ServiceCharge:  money.Float(e.ServiceCharge),
		Discount:       money.Float(e.Discount),
		TotalAmount:    money.Float(e.TotalAmount),
		Items:          items,
		People:         people,
	}
}
