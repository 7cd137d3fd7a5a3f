// Package pdf renders printable receipts for settled orders.
package pdf

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"go.uber.org/fx"
)

type ReceiptData struct {
	VenueName   string
	TableCode   string
	OrderNumber string
	SettledAt   string
	Currency    string

	Items []ReceiptItem

	Subtotal string
	Tax      string
	Discount string
	Total    string

	Shares   []ReceiptShare
	Payments []ReceiptPayment
}

type ReceiptItem struct {
	Name    string
	Options string
	Qty     int64
	Amount  string
}

type ReceiptShare struct {
	Participant int
	Amount      string
}

type ReceiptPayment struct {
	Method string
	Amount string
	Tip    string
}

type Renderer struct{}

func New() *Renderer {
	return &Renderer{}
}

var Module = fx.Module("providers.pdf",
	fx.Provide(New),
)

func (r *Renderer) RenderReceipt(_ context.Context, data ReceiptData) (io.Reader, error) {
	cfg := config.NewBuilder().Build()
	m := maroto.New(cfg)

	m.AddRow(14,
		text.NewCol(12, data.VenueName, props.Text{
			Size:  16,
			Style: fontstyle.Bold,
			Align: align.Center,
		}),
	)
	m.AddRow(16,
		col.New(6).Add(
			text.New("Order: "+data.OrderNumber, props.Text{Top: 0, Size: 9}),
			text.New("Table: "+data.TableCode, props.Text{Top: 4, Size: 9}),
			text.New("Settled: "+data.SettledAt, props.Text{Top: 8, Size: 9}),
		),
		col.New(6),
	)

	m.AddRow(8,
		text.NewCol(7, "Item", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, "Qty", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(3, "Amount", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)
	for _, item := range data.Items {
		name := item.Name
		if item.Options != "" {
			name += " (" + item.Options + ")"
		}
		m.AddRow(8,
			text.NewCol(7, name, props.Text{Size: 9}),
			text.NewCol(2, fmt.Sprintf("%d", item.Qty), props.Text{Size: 9, Align: align.Right}),
			text.NewCol(3, item.Amount, props.Text{Size: 9, Align: align.Right}),
		)
	}

	m.AddRow(8,
		col.New(7),
		text.NewCol(2, "Subtotal", props.Text{Size: 9}),
		text.NewCol(3, data.Subtotal, props.Text{Size: 9, Align: align.Right}),
	)
	m.AddRow(8,
		col.New(7),
		text.NewCol(2, "Tax", props.Text{Size: 9}),
		text.NewCol(3, data.Tax, props.Text{Size: 9, Align: align.Right}),
	)
	if data.Discount != "" {
		m.AddRow(8,
			col.New(7),
			text.NewCol(2, "Discount", props.Text{Size: 9}),
			text.NewCol(3, "-"+data.Discount, props.Text{Size: 9, Align: align.Right}),
		)
	}
	m.AddRow(10,
		col.New(7),
		text.NewCol(2, "Total", props.Text{Style: fontstyle.Bold, Size: 10}),
		text.NewCol(3, data.Total+" "+data.Currency, props.Text{Style: fontstyle.Bold, Size: 10, Align: align.Right}),
	)

	if len(data.Shares) > 0 {
		m.AddRow(9,
			text.NewCol(12, "Split", props.Text{Style: fontstyle.Bold, Size: 9, Top: 2}),
		)
		for _, share := range data.Shares {
			m.AddRow(7,
				text.NewCol(9, fmt.Sprintf("Guest %d", share.Participant), props.Text{Size: 9}),
				text.NewCol(3, share.Amount, props.Text{Size: 9, Align: align.Right}),
			)
		}
	}

	if len(data.Payments) > 0 {
		m.AddRow(9,
			text.NewCol(12, "Paid with", props.Text{Style: fontstyle.Bold, Size: 9, Top: 2}),
		)
		for _, payment := range data.Payments {
			label := payment.Amount
			if payment.Tip != "" {
				label += " + " + payment.Tip + " tip"
			}
			m.AddRow(7,
				text.NewCol(9, payment.Method, props.Text{Size: 9}),
				text.NewCol(3, label, props.Text{Size: 9, Align: align.Right}),
			)
		}
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(doc.GetBytes()), nil
}
