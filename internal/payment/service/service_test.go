package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	sqlite "github.com/glebarez/sqlite"
	auditdomain "github.com/mesaops/comanda/internal/audit/domain"
	auditservice "github.com/mesaops/comanda/internal/audit/service"
	splitdomain "github.com/mesaops/comanda/internal/billsplit/domain"
	splitrepo "github.com/mesaops/comanda/internal/billsplit/repository"
	splitservice "github.com/mesaops/comanda/internal/billsplit/service"
	catalogdomain "github.com/mesaops/comanda/internal/catalog/domain"
	"github.com/mesaops/comanda/internal/clock"
	"github.com/mesaops/comanda/internal/config"
	orderdomain "github.com/mesaops/comanda/internal/order/domain"
	orderrepo "github.com/mesaops/comanda/internal/order/repository"
	orderservice "github.com/mesaops/comanda/internal/order/service"
	paymentdomain "github.com/mesaops/comanda/internal/payment/domain"
	tabledomain "github.com/mesaops/comanda/internal/table/domain"
	tableservice "github.com/mesaops/comanda/internal/table/service"
	"github.com/mesaops/comanda/pkg/money"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type stubLookup struct {
	products map[snowflake.ID]catalogdomain.ProductSnapshot
}

func (l *stubLookup) ProductSnapshot(_ context.Context, productID snowflake.ID) (catalogdomain.ProductSnapshot, error) {
	p, ok := l.products[productID]
	if !ok {
		return catalogdomain.ProductSnapshot{}, catalogdomain.ErrNotFound
	}
	return p, nil
}

func (l *stubLookup) OptionSnapshots(_ context.Context, _ snowflake.ID, optionIDs []snowflake.ID) ([]catalogdomain.OptionSnapshot, []catalogdomain.SelectionBounds, error) {
	if len(optionIDs) > 0 {
		return nil, nil, catalogdomain.ErrOptionNotApplicable
	}
	return nil, nil, nil
}

type harness struct {
	db      *gorm.DB
	svc     *Service
	orders  orderdomain.Service
	splits  splitdomain.Service
	clock   *clock.FakeClock
	lookup  *stubLookup
	tables  tabledomain.Service
	tableID snowflake.ID
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, gdb.AutoMigrate(
		&orderdomain.Order{},
		&orderdomain.LineItem{},
		&orderdomain.LineOption{},
		&splitdomain.BillSplit{},
		&splitdomain.BillSplitDetail{},
		&splitdomain.BillSplitShare{},
		&paymentdomain.Payment{},
		&tabledomain.Table{},
		&auditdomain.Entry{},
	))

	node, err := snowflake.NewNode(3)
	require.NoError(t, err)
	fc := clock.NewFakeClock(time.Date(2026, 3, 14, 22, 0, 0, 0, time.UTC))
	log := zap.NewNop()

	holder, err := config.NewStaticPricingConfigHolder(config.PricingConfig{
		Currency:   "EUR",
		TaxRateBps: 1000,
		MaxTipBps:  5000,
	})
	require.NoError(t, err)

	tables := tableservice.NewService(tableservice.Params{DB: gdb, Log: log, GenID: node, Clock: fc})
	audit := auditservice.NewService(auditservice.Params{DB: gdb, Log: log, GenID: node, Clock: fc})
	lookup := &stubLookup{products: map[snowflake.ID]catalogdomain.ProductSnapshot{}}

	orders := orderservice.NewService(orderservice.Params{
		DB:      gdb,
		Log:     log,
		GenID:   node,
		Clock:   fc,
		Repo:    orderrepo.Provide(),
		Catalog: lookup,
		Tables:  tables,
		Pricing: holder,
		Audit:   audit,
	})
	splits := splitservice.NewService(splitservice.Params{
		DB:     gdb,
		Log:    log,
		GenID:  node,
		Clock:  fc,
		Repo:   splitrepo.Provide(),
		Orders: orderrepo.Provide(),
		Audit:  audit,
	})

	svc := NewService(Params{
		DB:        gdb,
		Log:       log,
		GenID:     node,
		Clock:     fc,
		Orders:    orders,
		OrderRepo: orderrepo.Provide(),
		Splits:    splitrepo.Provide(),
		Pricing:   holder,
		Audit:     audit,
	})

	table, err := tables.Create(context.Background(), tabledomain.CreateTableRequest{Code: "T7", Capacity: 6})
	require.NoError(t, err)

	return &harness{db: gdb, svc: svc, orders: orders, splits: splits, clock: fc, lookup: lookup, tables: tables, tableID: table.ID}
}

// deliveredOrder walks a fresh order with one line item through to DELIVERED.
// With the 10% test tax rate a 65.00 item yields a 71.50 total.
func (h *harness) deliveredOrder(t *testing.T, price money.Money) orderdomain.Order {
	t.Helper()
	ctx := context.Background()

	productID := snowflake.ID(int64(len(h.lookup.products) + 500))
	h.lookup.products[productID] = catalogdomain.ProductSnapshot{ProductID: productID, Name: "Set menu", UnitPrice: price}

	order, err := h.orders.Create(ctx, orderdomain.CreateOrderRequest{TableID: h.tableID, CreatedBy: "ana"})
	require.NoError(t, err)
	order, err = h.orders.AddLineItem(ctx, order.ID, orderdomain.AddLineItemRequest{ProductID: productID, Quantity: 1, ActorID: "ana"})
	require.NoError(t, err)

	for _, next := range []orderdomain.Status{
		orderdomain.StatusConfirmed,
		orderdomain.StatusInPreparation,
		orderdomain.StatusReady,
		orderdomain.StatusDelivered,
	} {
		order, err = h.orders.Transition(ctx, order.ID, next, "kitchen")
		require.NoError(t, err)
	}
	return order
}

func (h *harness) complete(t *testing.T, paymentID snowflake.ID) paymentdomain.Payment {
	t.Helper()
	ctx := context.Background()

	_, err := h.svc.Transition(ctx, paymentID, paymentdomain.StatusProcessing, "pos")
	require.NoError(t, err)
	payment, err := h.svc.Transition(ctx, paymentID, paymentdomain.StatusCompleted, "pos")
	require.NoError(t, err)
	return payment
}

func TestRecordPaymentValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	order := h.deliveredOrder(t, money.FromUnits(65, 0))

	_, err := h.svc.RecordPayment(ctx, order.ID, paymentdomain.RecordPaymentRequest{Method: "IOU", Amount: 100})
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidMethod)

	_, err = h.svc.RecordPayment(ctx, order.ID, paymentdomain.RecordPaymentRequest{Method: paymentdomain.MethodCash, Amount: 0})
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidAmount)

	_, err = h.svc.RecordPayment(ctx, order.ID, paymentdomain.RecordPaymentRequest{Method: paymentdomain.MethodCash, Amount: 100, Tip: -1})
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidAmount)

	_, err = h.svc.RecordPayment(ctx, 424242, paymentdomain.RecordPaymentRequest{Method: paymentdomain.MethodCash, Amount: 100})
	assert.ErrorIs(t, err, orderdomain.ErrNotFound)
}

func TestPaymentOnlyAgainstDeliveredOrder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	order, err := h.orders.Create(ctx, orderdomain.CreateOrderRequest{TableID: h.tableID, CreatedBy: "ana"})
	require.NoError(t, err)

	_, err = h.svc.RecordPayment(ctx, order.ID, paymentdomain.RecordPaymentRequest{Method: paymentdomain.MethodCash, Amount: 100})
	assert.ErrorIs(t, err, paymentdomain.ErrOrderNotPayable)
}

func TestSettlementClosesOrder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	order := h.deliveredOrder(t, money.FromUnits(65, 0)) // total 71.50

	first, err := h.svc.RecordPayment(ctx, order.ID, paymentdomain.RecordPaymentRequest{
		Method: paymentdomain.MethodCard, Amount: money.FromUnits(40, 0), ActorID: "ana",
	})
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.StatusPending, first.Status)

	h.complete(t, first.ID)
	got, err := h.orders.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, orderdomain.StatusDelivered, got.Status, "partial payment must not close the order")

	second, err := h.svc.RecordPayment(ctx, order.ID, paymentdomain.RecordPaymentRequest{
		Method: paymentdomain.MethodCash, Amount: money.FromUnits(31, 50), Tip: money.FromUnits(3, 0), ActorID: "ana",
	})
	require.NoError(t, err)
	h.complete(t, second.ID)

	got, err = h.orders.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, orderdomain.StatusCompleted, got.Status)

	summary, err := h.orders.Summary(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, summary.Settled)
	assert.True(t, summary.Outstanding.IsZero())
	// The tip rode along on the payment but never counted toward settlement.
	assert.Equal(t, money.FromUnits(71, 50), summary.PaidAmount)

	// A settled order takes no further payments.
	_, err = h.svc.RecordPayment(ctx, order.ID, paymentdomain.RecordPaymentRequest{
		Method: paymentdomain.MethodCash, Amount: 100,
	})
	assert.ErrorIs(t, err, paymentdomain.ErrOrderNotPayable)
}

func TestOverpaymentRejectedAtRecordTime(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	order := h.deliveredOrder(t, money.FromUnits(65, 0)) // total 71.50

	_, err := h.svc.RecordPayment(ctx, order.ID, paymentdomain.RecordPaymentRequest{
		Method: paymentdomain.MethodCash, Amount: money.FromUnits(80, 0),
	})
	assert.ErrorIs(t, err, paymentdomain.ErrOverpayment)

	// The excess is fine as an explicit tip.
	payment, err := h.svc.RecordPayment(ctx, order.ID, paymentdomain.RecordPaymentRequest{
		Method: paymentdomain.MethodCash, Amount: money.FromUnits(71, 50), Tip: money.FromUnits(8, 50),
	})
	require.NoError(t, err)
	assert.Equal(t, money.FromUnits(80, 0), payment.Total)

	// Two in-flight payments cannot jointly overshoot either.
	_, err = h.svc.RecordPayment(ctx, order.ID, paymentdomain.RecordPaymentRequest{
		Method: paymentdomain.MethodCard, Amount: money.FromUnits(0, 1),
	})
	assert.ErrorIs(t, err, paymentdomain.ErrOverpayment)
}

func TestTipCap(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	order := h.deliveredOrder(t, money.FromUnits(65, 0)) // total 71.50, cap 35.75

	_, err := h.svc.RecordPayment(ctx, order.ID, paymentdomain.RecordPaymentRequest{
		Method: paymentdomain.MethodCash, Amount: money.FromUnits(10, 0), Tip: money.FromUnits(35, 76),
	})
	assert.ErrorIs(t, err, paymentdomain.ErrTipTooLarge)

	_, err = h.svc.RecordPayment(ctx, order.ID, paymentdomain.RecordPaymentRequest{
		Method: paymentdomain.MethodCash, Amount: money.FromUnits(10, 0), Tip: money.FromUnits(35, 75),
	})
	require.NoError(t, err)
}

func TestIdempotencyKeyReplay(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	order := h.deliveredOrder(t, money.FromUnits(65, 0))

	key := "pos-7-attempt-1"
	first, err := h.svc.RecordPayment(ctx, order.ID, paymentdomain.RecordPaymentRequest{
		Method: paymentdomain.MethodCard, Amount: money.FromUnits(20, 0), IdempotencyKey: &key,
	})
	require.NoError(t, err)

	replay, err := h.svc.RecordPayment(ctx, order.ID, paymentdomain.RecordPaymentRequest{
		Method: paymentdomain.MethodCard, Amount: money.FromUnits(20, 0), IdempotencyKey: &key,
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, replay.ID)

	var count int64
	require.NoError(t, h.db.Model(&paymentdomain.Payment{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestPaymentStatusMachine(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	order := h.deliveredOrder(t, money.FromUnits(65, 0))

	payment, err := h.svc.RecordPayment(ctx, order.ID, paymentdomain.RecordPaymentRequest{
		Method: paymentdomain.MethodCard, Amount: money.FromUnits(20, 0),
	})
	require.NoError(t, err)

	// PENDING cannot jump straight to COMPLETED or FAILED.
	_, err = h.svc.Transition(ctx, payment.ID, paymentdomain.StatusCompleted, "pos")
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidTransition)
	_, err = h.svc.Transition(ctx, payment.ID, paymentdomain.StatusFailed, "pos")
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidTransition)

	payment, err = h.svc.Transition(ctx, payment.ID, paymentdomain.StatusProcessing, "pos")
	require.NoError(t, err)
	payment, err = h.svc.Transition(ctx, payment.ID, paymentdomain.StatusFailed, "pos")
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.StatusFailed, payment.Status)

	// Terminal states refuse everything but an idempotent replay.
	_, err = h.svc.Transition(ctx, payment.ID, paymentdomain.StatusCancelled, "pos")
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidTransition)
	again, err := h.svc.Transition(ctx, payment.ID, paymentdomain.StatusFailed, "pos")
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.StatusFailed, again.Status)

	// A failed payment frees the amount for another attempt.
	retry, err := h.svc.RecordPayment(ctx, order.ID, paymentdomain.RecordPaymentRequest{
		Method: paymentdomain.MethodCash, Amount: money.FromUnits(71, 50),
	})
	require.NoError(t, err)
	h.complete(t, retry.ID)

	got, err := h.orders.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, orderdomain.StatusCompleted, got.Status)
}

func TestParticipantPaymentsAgainstSplit(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	order := h.deliveredOrder(t, money.FromUnits(65, 0)) // total 71.50

	one, two := 1, 2

	// No split yet.
	_, err := h.svc.RecordPayment(ctx, order.ID, paymentdomain.RecordPaymentRequest{
		Method: paymentdomain.MethodCard, Amount: money.FromUnits(10, 0), ParticipantNumber: &one,
	})
	assert.ErrorIs(t, err, paymentdomain.ErrNoActiveSplit)

	split, err := h.splits.Finalize(ctx, order.ID, splitdomain.FinalizeRequest{
		Strategy: splitdomain.StrategyEqual, ParticipantCount: 2, ActorID: "ana",
	})
	require.NoError(t, err)
	// 71.50 / 2 = 35.75 each.
	require.Equal(t, money.FromUnits(35, 75), split.Shares[0].ShareTotal)

	out := 3
	_, err = h.svc.RecordPayment(ctx, order.ID, paymentdomain.RecordPaymentRequest{
		Method: paymentdomain.MethodCard, Amount: money.FromUnits(10, 0), ParticipantNumber: &out,
	})
	assert.ErrorIs(t, err, splitdomain.ErrInvalidParticipants)

	_, err = h.svc.RecordPayment(ctx, order.ID, paymentdomain.RecordPaymentRequest{
		Method: paymentdomain.MethodCard, Amount: money.FromUnits(35, 76), ParticipantNumber: &one,
	})
	assert.ErrorIs(t, err, paymentdomain.ErrShareExceeded)

	p1, err := h.svc.RecordPayment(ctx, order.ID, paymentdomain.RecordPaymentRequest{
		Method: paymentdomain.MethodCard, Amount: money.FromUnits(35, 75), ParticipantNumber: &one,
	})
	require.NoError(t, err)
	p2, err := h.svc.RecordPayment(ctx, order.ID, paymentdomain.RecordPaymentRequest{
		Method: paymentdomain.MethodCash, Amount: money.FromUnits(35, 75), ParticipantNumber: &two,
	})
	require.NoError(t, err)

	h.complete(t, p1.ID)
	h.complete(t, p2.ID)

	got, err := h.orders.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, orderdomain.StatusCompleted, got.Status)
}
