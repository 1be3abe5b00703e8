// Package testutil builds order snapshots for tests.
package testutil

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/akylbek/payment-system/order-reconciler/internal/models"
)

// Base is the reference instant fixtures are placed around.
var Base = time.Date(2025, 1, 2, 10, 0, 0, 0, time.UTC)

func Price(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// At returns Base shifted by the given number of minutes.
func At(minutes int) time.Time {
	return Base.Add(time.Duration(minutes) * time.Minute)
}

func Tx(id int64, typ models.TransactionType, status models.TransactionStatus, amount string, minute int) models.PaymentTransaction {
	return models.PaymentTransaction{
		ID:        id,
		Type:      typ,
		Status:    status,
		Amount:    Price(amount),
		Currency:  "SEK",
		Timestamp: At(minute),
	}
}

// Action builds a complete item action. VAT is fixed at 25%.
func Action(actionType models.ActionType, reference, priceIncVat string, qty int, txID int64) models.LineItemAction {
	inc := Price(priceIncVat)
	ex := inc.Div(Price("1.25")).Round(2)
	rate := Price("25")
	quantity := qty
	return models.LineItemAction{
		ActionType:           actionType,
		MerchantReference:    reference,
		Description:          "Item " + reference,
		Type:                 models.ItemProduct,
		Quantity:             &quantity,
		PricePerItemIncVat:   &inc,
		PricePerItemExVat:    &ex,
		VatRate:              &rate,
		PaymentTransactionID: txID,
	}
}

func Identity(reference, priceIncVat string) models.LineIdentity {
	return models.NewLineIdentity(reference, Price(priceIncVat))
}

func Snapshot(transactions []models.PaymentTransaction, actions []models.LineItemAction) *models.OrderSnapshot {
	return &models.OrderSnapshot{
		OrderID:           1001,
		MerchantReference: "order-1",
		Currency:          "SEK",
		Country:           "SE",
		Transactions:      transactions,
		Actions:           actions,
	}
}
