package models

import (
	"github.com/shopspring/decimal"
)

type ActionType string

const (
	ActionCreate  ActionType = "Create"
	ActionReserve ActionType = "Reserve"
	ActionShip    ActionType = "Ship"
	ActionReturn  ActionType = "Return"
	ActionRelease ActionType = "Release"
)

type ItemType string

const (
	ItemProduct  ItemType = "Product"
	ItemShipping ItemType = "Shipping"
	ItemFee      ItemType = "Fee"
	ItemDiscount ItemType = "Discount"
)

type OrderStatus string

const (
	OrderNew                OrderStatus = "New"
	OrderCompleted          OrderStatus = "Completed"
	OrderPartiallyCompleted OrderStatus = "PartiallyCompleted"
	OrderCancelled          OrderStatus = "Cancelled"
	OrderPartiallyRefunded  OrderStatus = "PartiallyRefunded"
	OrderRefunded           OrderStatus = "Refunded"
)

// LineIdentity correlates actions that belong to the same order line. The
// unit price is always the price per item including VAT, which is what the
// gateway matches requests against.
type LineIdentity struct {
	MerchantReference string          `json:"merchant_reference"`
	UnitPrice         decimal.Decimal `json:"unit_price"`
}

func NewLineIdentity(reference string, unitPriceIncVat decimal.Decimal) LineIdentity {
	return LineIdentity{MerchantReference: reference, UnitPrice: unitPriceIncVat}
}

// Key is a comparable form of the identity. decimal.String drops trailing
// zeros, so 10.5 and 10.50 collapse to the same key.
func (l LineIdentity) Key() string {
	return l.MerchantReference + "_" + l.UnitPrice.String()
}

func (l LineIdentity) String() string {
	return "'" + l.MerchantReference + "' @ " + l.UnitPrice.String()
}

// LineItemAction is one entry of the gateway's item log, owned by exactly
// one payment transaction.
type LineItemAction struct {
	ID                   int64            `json:"Id"`
	ActionType           ActionType       `json:"ActionType"`
	MerchantReference    string           `json:"MerchantReference"`
	Description          string           `json:"Description,omitempty"`
	Type                 ItemType         `json:"Type,omitempty"`
	Quantity             *int             `json:"Quantity"`
	PricePerItemExVat    *decimal.Decimal `json:"PricePerItemExVat"`
	PricePerItemIncVat   *decimal.Decimal `json:"PricePerItemIncVat"`
	VatRate              *decimal.Decimal `json:"VatRate,omitempty"`
	PaymentTransactionID int64            `json:"PaymentTransactionId"`
}

// Complete reports whether the action carries the fields needed to place it
// on an order line.
func (a LineItemAction) Complete() bool {
	return a.MerchantReference != "" && a.PricePerItemIncVat != nil && a.Quantity != nil
}

func (a LineItemAction) Identity() LineIdentity {
	price := decimal.Zero
	if a.PricePerItemIncVat != nil {
		price = *a.PricePerItemIncVat
	}
	return NewLineIdentity(a.MerchantReference, price)
}

func (a LineItemAction) Qty() int {
	if a.Quantity == nil {
		return 0
	}
	return *a.Quantity
}

// Item converts the action into a line item carrying quantity qty.
func (a LineItemAction) Item(qty int) LineItem {
	item := LineItem{
		MerchantReference:    a.MerchantReference,
		Description:          a.Description,
		Type:                 a.Type,
		Quantity:             qty,
		PaymentTransactionID: a.PaymentTransactionID,
	}
	if item.Type == "" {
		item.Type = ItemProduct
	}
	if a.PricePerItemIncVat != nil {
		item.PricePerItemIncVat = *a.PricePerItemIncVat
	}
	if a.PricePerItemExVat != nil {
		item.PricePerItemExVat = *a.PricePerItemExVat
	}
	if a.VatRate != nil {
		rate := *a.VatRate
		item.VatRate = &rate
	}
	return item
}

// LineItem is an order line as the gateway expects it in requests.
type LineItem struct {
	MerchantReference    string           `json:"MerchantReference"`
	Description          string           `json:"Description,omitempty"`
	Type                 ItemType         `json:"Type"`
	Quantity             int              `json:"Quantity"`
	PricePerItemIncVat   decimal.Decimal  `json:"PricePerItemIncVat"`
	PricePerItemExVat    decimal.Decimal  `json:"PricePerItemExVat"`
	VatRate              *decimal.Decimal `json:"VatRate,omitempty"`
	PaymentTransactionID int64            `json:"-"`
}

func (i LineItem) Identity() LineIdentity {
	return NewLineIdentity(i.MerchantReference, i.PricePerItemIncVat)
}

// WithQuantity returns a copy of the item carrying qty.
func (i LineItem) WithQuantity(qty int) LineItem {
	i.Quantity = qty
	return i
}

// LineProjection accumulates the item log for one line identity.
type LineProjection struct {
	Identity LineIdentity
	Reserved int
	Shipped  int
	Released int
	Returned int
	Source   *LineItemAction
}

// Remaining is the stock still reserved and neither shipped nor released.
func (p LineProjection) Remaining() int {
	return p.Reserved - p.Shipped - p.Released
}

// OrderSnapshot is a read-only copy of the gateway's ledger for one order.
// A nil Transactions or Actions slice means the gateway returned no list at
// all, which is not the same as an empty one.
type OrderSnapshot struct {
	OrderID           int64                `json:"OrderId"`
	MerchantReference string               `json:"MerchantReference"`
	Currency          string               `json:"Currency"`
	Country           string               `json:"Country,omitempty"`
	Transactions      []PaymentTransaction `json:"PaymentTransactions"`
	Actions           []LineItemAction     `json:"OrderItemActions"`
}
