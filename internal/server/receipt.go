package server

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	splitdomain "github.com/mesaops/comanda/internal/billsplit/domain"
	orderdomain "github.com/mesaops/comanda/internal/order/domain"
	paymentdomain "github.com/mesaops/comanda/internal/payment/domain"
	"github.com/mesaops/comanda/internal/providers/pdf"
)

// GetOrderReceipt renders the PDF receipt for a settled order.
func (s *Server) GetOrderReceipt(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()

	order, err := s.orderSvc.Get(ctx, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if order.Status != orderdomain.StatusCompleted {
		AbortWithError(c, orderdomain.ErrInvalidState)
		return
	}

	data := pdf.ReceiptData{
		VenueName:   s.cfg.AppName,
		OrderNumber: order.ID.String(),
		Currency:    s.pricing.Get().Currency,
		Subtotal:    order.Subtotal.String(),
		Tax:         order.TaxAmount.String(),
		Total:       order.Total.String(),
	}
	if !order.DiscountAmount.IsZero() {
		data.Discount = order.DiscountAmount.String()
	}
	if raw, ok := order.StatusTimestamps[string(orderdomain.StatusCompleted)].(string); ok {
		if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			data.SettledAt = ts.Format("2006-01-02 15:04")
		}
	}
	if table, err := s.tableSvc.Get(ctx, order.TableID); err == nil {
		data.TableCode = table.Code
	}

	for _, item := range order.LineItems {
		var optionNames []string
		for _, option := range item.SelectedOptions {
			optionNames = append(optionNames, option.OptionName)
		}
		data.Items = append(data.Items, pdf.ReceiptItem{
			Name:    item.ProductName,
			Options: strings.Join(optionNames, ", "),
			Qty:     item.Quantity,
			Amount:  item.Subtotal.String(),
		})
	}

	if split, err := s.splitSvc.Active(ctx, order.ID); err == nil {
		for _, share := range split.Shares {
			data.Shares = append(data.Shares, pdf.ReceiptShare{
				Participant: share.ParticipantNumber,
				Amount:      share.ShareTotal.String(),
			})
		}
	} else if !errors.Is(err, splitdomain.ErrNotFound) {
		AbortWithError(c, err)
		return
	}

	payments, err := s.paymentSvc.ListByOrder(ctx, order.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	for _, payment := range payments {
		if payment.Status != paymentdomain.StatusCompleted {
			continue
		}
		entry := pdf.ReceiptPayment{
			Method: string(payment.Method),
			Amount: payment.Amount.String(),
		}
		if !payment.Tip.IsZero() {
			entry.Tip = payment.Tip.String()
		}
		data.Payments = append(data.Payments, entry)
	}

	doc, err := s.receipts.RenderReceipt(ctx, data)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Type", "application/pdf")
	c.Header("Content-Disposition", `inline; filename="receipt-`+order.ID.String()+`.pdf"`)
	c.Status(http.StatusOK)
	_, _ = io.Copy(c.Writer, doc)
}
