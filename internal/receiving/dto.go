package receiving

import (
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-receiving/internal/catalog"
)

type receiptRequest struct {
	DeliveryRef string               `json:"delivery_ref" validate:"max=128"`
	Notes       string               `json:"notes" validate:"max=1000"`
	Lines       []receiptLineRequest `json:"lines" validate:"required,min=1,dive"`
}

type receiptLineRequest struct {
	ItemCode string          `json:"item_code" validate:"required,max=64"`
	Quantity decimal.Decimal `json:"quantity"`
}

func (r receiptRequest) input(orderID, idempotencyKey string) ReceiveOrderInput {
	in := ReceiveOrderInput{
		OrderID:        orderID,
		DeliveryRef:    r.DeliveryRef,
		Notes:          r.Notes,
		IdempotencyKey: idempotencyKey,
	}
	for _, line := range r.Lines {
		in.Lines = append(in.Lines, OrderLineInput{ItemCode: line.ItemCode, Quantity: line.Quantity})
	}
	return in
}

type intakeRequest struct {
	Counterparty string              `json:"counterparty" validate:"max=200"`
	ExternalRef  string              `json:"external_ref" validate:"max=128"`
	Notes        string              `json:"notes" validate:"max=1000"`
	Lines        []intakeLineRequest `json:"lines" validate:"required,min=1,dive"`
}

type intakeLineRequest struct {
	ItemCode         string              `json:"item_code" validate:"required,max=64"`
	Kind             string              `json:"kind" validate:"required,oneof=tracked untracked"`
	QuantityDelta    decimal.Decimal     `json:"quantity_delta"`
	UnitCost         decimal.NullDecimal `json:"unit_cost"`
	UnitSellingPrice decimal.NullDecimal `json:"unit_selling_price"`
	Adjustment       bool                `json:"adjustment"`
	Description      string              `json:"description" validate:"max=500"`
	Unit             string              `json:"unit" validate:"max=32"`
	Group            string              `json:"group" validate:"max=64"`
}

func (r intakeRequest) input(idempotencyKey string) IntakeInput {
	in := IntakeInput{
		Counterparty:   r.Counterparty,
		ExternalRef:    r.ExternalRef,
		Notes:          r.Notes,
		IdempotencyKey: idempotencyKey,
	}
	for _, line := range r.Lines {
		in.Lines = append(in.Lines, IntakeLine{
			ItemCode:         line.ItemCode,
			Kind:             catalog.Kind(line.Kind),
			QuantityDelta:    line.QuantityDelta,
			UnitCost:         line.UnitCost,
			UnitSellingPrice: line.UnitSellingPrice,
			Adjustment:       line.Adjustment,
			Description:      line.Description,
			Unit:             line.Unit,
			Group:            line.Group,
		})
	}
	return in
}

type priceView struct {
	Current decimal.NullDecimal   `json:"current"`
	History []decimal.NullDecimal `json:"history"`
}

type itemView struct {
	Code          string          `json:"code"`
	Kind          catalog.Kind    `json:"kind"`
	Description   string          `json:"description"`
	Unit          string          `json:"unit"`
	Group         string          `json:"group"`
	StockQuantity decimal.Decimal `json:"stock_quantity"`
	Cost          priceView       `json:"cost_price"`
	Selling       priceView       `json:"selling_price"`
	Version       int64           `json:"version"`
}

func newItemView(item catalog.Item) itemView {
	return itemView{
		Code:          item.Code,
		Kind:          item.Kind,
		Description:   item.Description,
		Unit:          item.Unit,
		Group:         item.Group,
		StockQuantity: item.StockQuantity,
		Cost:          priceView{Current: item.Cost.Current, History: item.Cost.History[:]},
		Selling:       priceView{Current: item.Selling.Current, History: item.Selling.History[:]},
		Version:       item.Version,
	}
}
