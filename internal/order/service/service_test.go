package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	sqlite "github.com/glebarez/sqlite"
	auditdomain "github.com/mesaops/comanda/internal/audit/domain"
	auditservice "github.com/mesaops/comanda/internal/audit/service"
	catalogdomain "github.com/mesaops/comanda/internal/catalog/domain"
	"github.com/mesaops/comanda/internal/clock"
	"github.com/mesaops/comanda/internal/config"
	orderdomain "github.com/mesaops/comanda/internal/order/domain"
	orderrepo "github.com/mesaops/comanda/internal/order/repository"
	paymentdomain "github.com/mesaops/comanda/internal/payment/domain"
	tabledomain "github.com/mesaops/comanda/internal/table/domain"
	tableservice "github.com/mesaops/comanda/internal/table/service"
	"github.com/mesaops/comanda/pkg/money"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// stubLookup serves catalog snapshots from fixed maps.
type stubLookup struct {
	products map[snowflake.ID]catalogdomain.ProductSnapshot
	options  map[snowflake.ID]catalogdomain.OptionSnapshot
	bounds   map[snowflake.ID][]catalogdomain.SelectionBounds
}

func (l *stubLookup) ProductSnapshot(_ context.Context, productID snowflake.ID) (catalogdomain.ProductSnapshot, error) {
	p, ok := l.products[productID]
	if !ok {
		return catalogdomain.ProductSnapshot{}, catalogdomain.ErrNotFound
	}
	return p, nil
}

func (l *stubLookup) OptionSnapshots(_ context.Context, productID snowflake.ID, optionIDs []snowflake.ID) ([]catalogdomain.OptionSnapshot, []catalogdomain.SelectionBounds, error) {
	var selected []catalogdomain.OptionSnapshot
	for _, id := range optionIDs {
		o, ok := l.options[id]
		if !ok {
			return nil, nil, catalogdomain.ErrOptionNotApplicable
		}
		selected = append(selected, o)
	}
	return selected, l.bounds[productID], nil
}

type harness struct {
	db      *gorm.DB
	svc     *Service
	tables  tabledomain.Service
	clock   *clock.FakeClock
	lookup  *stubLookup
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
		&paymentdomain.Payment{},
		&tabledomain.Table{},
		&auditdomain.Entry{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fc := clock.NewFakeClock(time.Date(2026, 3, 14, 19, 30, 0, 0, time.UTC))
	log := zap.NewNop()

	tables := tableservice.NewService(tableservice.Params{DB: gdb, Log: log, GenID: node, Clock: fc})
	audit := auditservice.NewService(auditservice.Params{DB: gdb, Log: log, GenID: node, Clock: fc})

	holder, err := config.NewStaticPricingConfigHolder(config.PricingConfig{
		Currency:   "EUR",
		TaxRateBps: 1000,
		MaxTipBps:  5000,
	})
	require.NoError(t, err)

	lookup := &stubLookup{
		products: map[snowflake.ID]catalogdomain.ProductSnapshot{},
		options:  map[snowflake.ID]catalogdomain.OptionSnapshot{},
		bounds:   map[snowflake.ID][]catalogdomain.SelectionBounds{},
	}

	svc := NewService(Params{
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

	table, err := tables.Create(context.Background(), tabledomain.CreateTableRequest{Code: "T1", Capacity: 4})
	require.NoError(t, err)

	return &harness{db: gdb, svc: svc, tables: tables, clock: fc, lookup: lookup, tableID: table.ID}
}

func (h *harness) addProduct(name string, price money.Money) snowflake.ID {
	id := snowflake.ID(int64(len(h.lookup.products) + 1000))
	h.lookup.products[id] = catalogdomain.ProductSnapshot{ProductID: id, Name: name, UnitPrice: price}
	return id
}

func TestCreateOrder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	order, err := h.svc.Create(ctx, orderdomain.CreateOrderRequest{TableID: h.tableID, CreatedBy: "ana"})
	require.NoError(t, err)
	assert.Equal(t, orderdomain.StatusPending, order.Status)
	assert.Equal(t, int64(1), order.Version)
	assert.True(t, order.Total.IsZero())
	assert.Contains(t, order.StatusTimestamps, string(orderdomain.StatusPending))

	table, err := h.tables.Get(ctx, h.tableID)
	require.NoError(t, err)
	assert.True(t, table.Occupied)
}

func TestCreateOrderRequiresTable(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.Create(context.Background(), orderdomain.CreateOrderRequest{CreatedBy: "ana"})
	assert.ErrorIs(t, err, orderdomain.ErrMissingTable)

	_, err = h.svc.Create(context.Background(), orderdomain.CreateOrderRequest{TableID: 99, CreatedBy: "ana"})
	assert.ErrorIs(t, err, tabledomain.ErrNotFound)
}

func TestAddLineItemFreezesPricesAndRepricesOrder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	ribeye := h.addProduct("Ribeye", money.FromUnits(35, 0))
	paella := h.addProduct("Paella", money.FromUnits(15, 0))

	order, err := h.svc.Create(ctx, orderdomain.CreateOrderRequest{TableID: h.tableID, CreatedBy: "ana"})
	require.NoError(t, err)

	order, err = h.svc.AddLineItem(ctx, order.ID, orderdomain.AddLineItemRequest{ProductID: ribeye, Quantity: 1, ActorID: "ana"})
	require.NoError(t, err)
	order, err = h.svc.AddLineItem(ctx, order.ID, orderdomain.AddLineItemRequest{ProductID: paella, Quantity: 2, ActorID: "ana"})
	require.NoError(t, err)

	assert.Equal(t, money.FromUnits(65, 0), order.Subtotal)
	assert.Equal(t, money.FromUnits(6, 50), order.TaxAmount) // 10% of 65.00
	assert.Equal(t, money.FromUnits(71, 50), order.Total)
	require.Len(t, order.LineItems, 2)
	assert.Equal(t, "Ribeye", order.LineItems[0].ProductName)
	assert.Equal(t, money.FromUnits(35, 0), order.LineItems[0].UnitPriceSnapshot)
	assert.Equal(t, int64(3), order.Version)

	// Catalog changes after the add never reach the frozen line.
	h.lookup.products[ribeye] = catalogdomain.ProductSnapshot{ProductID: ribeye, Name: "Ribeye", UnitPrice: money.FromUnits(99, 0)}
	got, err := h.svc.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, money.FromUnits(35, 0), got.LineItems[0].UnitPriceSnapshot)
	assert.Equal(t, money.FromUnits(71, 50), got.Total)
}

func TestAddLineItemWithOptions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	burger := h.addProduct("Burger", money.FromUnits(12, 0))
	doneness := snowflake.ID(2000)
	extras := snowflake.ID(2001)
	rare := snowflake.ID(3000)
	bacon := snowflake.ID(3001)
	one := 1
	h.lookup.options[rare] = catalogdomain.OptionSnapshot{OptionID: rare, OptionTypeID: doneness, Name: "Rare", PriceDelta: 0}
	h.lookup.options[bacon] = catalogdomain.OptionSnapshot{OptionID: bacon, OptionTypeID: extras, Name: "Bacon", PriceDelta: money.FromUnits(1, 50)}
	h.lookup.bounds[burger] = []catalogdomain.SelectionBounds{
		{OptionTypeID: doneness, Name: "Doneness", Minimum: 1, Maximum: &one},
		{OptionTypeID: extras, Name: "Extras", Minimum: 0, Maximum: nil},
	}

	order, err := h.svc.Create(ctx, orderdomain.CreateOrderRequest{TableID: h.tableID, CreatedBy: "ana"})
	require.NoError(t, err)

	// Missing the mandatory doneness selection.
	_, err = h.svc.AddLineItem(ctx, order.ID, orderdomain.AddLineItemRequest{
		ProductID: burger, Quantity: 1, OptionIDs: []snowflake.ID{bacon}, ActorID: "ana",
	})
	assert.ErrorIs(t, err, orderdomain.ErrOptionSelection)

	order, err = h.svc.AddLineItem(ctx, order.ID, orderdomain.AddLineItemRequest{
		ProductID: burger, Quantity: 2, OptionIDs: []snowflake.ID{rare, bacon}, ActorID: "ana",
	})
	require.NoError(t, err)
	require.Len(t, order.LineItems, 1)
	item := order.LineItems[0]
	assert.Equal(t, money.FromUnits(1, 50), item.OptionsPriceSnapshot)
	assert.Equal(t, money.FromUnits(27, 0), item.Subtotal) // (12.00 + 1.50) * 2
	assert.Len(t, item.SelectedOptions, 2)
}

func TestAddLineItemRejectsBadQuantity(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	p := h.addProduct("Flan", money.FromUnits(4, 50))
	order, err := h.svc.Create(ctx, orderdomain.CreateOrderRequest{TableID: h.tableID, CreatedBy: "ana"})
	require.NoError(t, err)

	_, err = h.svc.AddLineItem(ctx, order.ID, orderdomain.AddLineItemRequest{ProductID: p, Quantity: 0, ActorID: "ana"})
	assert.ErrorIs(t, err, orderdomain.ErrInvalidQuantity)
	_, err = h.svc.AddLineItem(ctx, order.ID, orderdomain.AddLineItemRequest{ProductID: p, Quantity: -2, ActorID: "ana"})
	assert.ErrorIs(t, err, orderdomain.ErrInvalidQuantity)
}

func TestMutationsOnlyWhilePending(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	p := h.addProduct("Flan", money.FromUnits(4, 50))
	order, err := h.svc.Create(ctx, orderdomain.CreateOrderRequest{TableID: h.tableID, CreatedBy: "ana"})
	require.NoError(t, err)
	order, err = h.svc.AddLineItem(ctx, order.ID, orderdomain.AddLineItemRequest{ProductID: p, Quantity: 1, ActorID: "ana"})
	require.NoError(t, err)

	_, err = h.svc.Transition(ctx, order.ID, orderdomain.StatusConfirmed, "ana")
	require.NoError(t, err)

	_, err = h.svc.AddLineItem(ctx, order.ID, orderdomain.AddLineItemRequest{ProductID: p, Quantity: 1, ActorID: "ana"})
	assert.ErrorIs(t, err, orderdomain.ErrInvalidState)
	_, err = h.svc.RemoveLineItem(ctx, order.ID, order.LineItems[0].ID, "ana")
	assert.ErrorIs(t, err, orderdomain.ErrInvalidState)
	_, err = h.svc.UpdateQuantity(ctx, order.ID, order.LineItems[0].ID, 3, "ana")
	assert.ErrorIs(t, err, orderdomain.ErrInvalidState)
}

func TestRemoveAndRequantifyReprice(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	a := h.addProduct("Gazpacho", money.FromUnits(6, 0))
	b := h.addProduct("Tortilla", money.FromUnits(8, 0))

	order, err := h.svc.Create(ctx, orderdomain.CreateOrderRequest{TableID: h.tableID, CreatedBy: "ana"})
	require.NoError(t, err)
	order, err = h.svc.AddLineItem(ctx, order.ID, orderdomain.AddLineItemRequest{ProductID: a, Quantity: 1, ActorID: "ana"})
	require.NoError(t, err)
	order, err = h.svc.AddLineItem(ctx, order.ID, orderdomain.AddLineItemRequest{ProductID: b, Quantity: 1, ActorID: "ana"})
	require.NoError(t, err)

	order, err = h.svc.UpdateQuantity(ctx, order.ID, order.LineItems[1].ID, 3, "ana")
	require.NoError(t, err)
	assert.Equal(t, money.FromUnits(30, 0), order.Subtotal) // 6 + 8*3

	order, err = h.svc.RemoveLineItem(ctx, order.ID, order.LineItems[0].ID, "ana")
	require.NoError(t, err)
	assert.Equal(t, money.FromUnits(24, 0), order.Subtotal)
	assert.Equal(t, money.FromUnits(26, 40), order.Total)

	_, err = h.svc.RemoveLineItem(ctx, order.ID, snowflake.ID(424242), "ana")
	assert.ErrorIs(t, err, orderdomain.ErrLineItemNotFound)
}

func TestApplyDiscount(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	p := h.addProduct("Menu del dia", money.FromUnits(65, 0))
	order, err := h.svc.Create(ctx, orderdomain.CreateOrderRequest{TableID: h.tableID, CreatedBy: "ana"})
	require.NoError(t, err)
	order, err = h.svc.AddLineItem(ctx, order.ID, orderdomain.AddLineItemRequest{ProductID: p, Quantity: 1, ActorID: "ana"})
	require.NoError(t, err)

	order, err = h.svc.ApplyDiscount(ctx, order.ID, money.FromUnits(2, 0), "ana")
	require.NoError(t, err)
	assert.Equal(t, money.FromUnits(65, 0), order.Subtotal)
	assert.Equal(t, money.FromUnits(6, 50), order.TaxAmount)
	assert.Equal(t, money.FromUnits(2, 0), order.DiscountAmount)
	assert.Equal(t, money.FromUnits(69, 50), order.Total)

	// A discount that would push the total negative is refused.
	_, err = h.svc.ApplyDiscount(ctx, order.ID, money.FromUnits(100, 0), "ana")
	assert.ErrorIs(t, err, orderdomain.ErrPricingInvariant)

	_, err = h.svc.ApplyDiscount(ctx, order.ID, money.FromMinor(-1), "ana")
	assert.ErrorIs(t, err, orderdomain.ErrPricingInvariant)
}

func TestTransitionWalksForwardOneStepAtATime(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	order, err := h.svc.Create(ctx, orderdomain.CreateOrderRequest{TableID: h.tableID, CreatedBy: "ana"})
	require.NoError(t, err)

	// Skipping a state is refused.
	_, err = h.svc.Transition(ctx, order.ID, orderdomain.StatusReady, "kitchen")
	assert.ErrorIs(t, err, orderdomain.ErrInvalidTransition)

	// Backwards is refused too.
	order, err = h.svc.Transition(ctx, order.ID, orderdomain.StatusConfirmed, "kitchen")
	require.NoError(t, err)
	_, err = h.svc.Transition(ctx, order.ID, orderdomain.StatusPending, "kitchen")
	assert.ErrorIs(t, err, orderdomain.ErrInvalidTransition)

	// Replaying the current status is an idempotent no-op.
	again, err := h.svc.Transition(ctx, order.ID, orderdomain.StatusConfirmed, "kitchen")
	require.NoError(t, err)
	assert.Equal(t, order.Version, again.Version)

	for _, next := range []orderdomain.Status{
		orderdomain.StatusInPreparation,
		orderdomain.StatusReady,
		orderdomain.StatusDelivered,
	} {
		h.clock.Advance(5 * time.Minute)
		order, err = h.svc.Transition(ctx, order.ID, next, "kitchen")
		require.NoError(t, err)
		assert.Equal(t, next, order.Status)
		assert.Contains(t, order.StatusTimestamps, string(next))
	}

	// COMPLETED is not reachable through the public transition.
	_, err = h.svc.Transition(ctx, order.ID, orderdomain.StatusCompleted, "kitchen")
	assert.ErrorIs(t, err, orderdomain.ErrInvalidTransition)
}

func TestCancelCascadesToInFlightPayments(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	order, err := h.svc.Create(ctx, orderdomain.CreateOrderRequest{TableID: h.tableID, CreatedBy: "ana"})
	require.NoError(t, err)

	now := h.clock.Now()
	seed := []paymentdomain.Payment{
		{ID: 1, OrderID: order.ID, Method: paymentdomain.MethodCard, Amount: 1000, Total: 1000, Status: paymentdomain.StatusPending, RequestedAt: now, CreatedAt: now, UpdatedAt: now},
		{ID: 2, OrderID: order.ID, Method: paymentdomain.MethodCard, Amount: 1000, Total: 1000, Status: paymentdomain.StatusProcessing, RequestedAt: now, CreatedAt: now, UpdatedAt: now},
		{ID: 3, OrderID: order.ID, Method: paymentdomain.MethodCash, Amount: 500, Total: 500, Status: paymentdomain.StatusCompleted, RequestedAt: now, CreatedAt: now, UpdatedAt: now},
	}
	require.NoError(t, h.db.Create(&seed).Error)

	order, err = h.svc.Cancel(ctx, order.ID, "ana")
	require.NoError(t, err)
	assert.Equal(t, orderdomain.StatusCancelled, order.Status)

	var payments []paymentdomain.Payment
	require.NoError(t, h.db.Order("id").Find(&payments).Error)
	assert.Equal(t, paymentdomain.StatusCancelled, payments[0].Status)
	assert.Equal(t, paymentdomain.StatusCancelled, payments[1].Status)
	assert.Equal(t, paymentdomain.StatusCompleted, payments[2].Status)

	// The table frees up again.
	table, err := h.tables.Get(ctx, h.tableID)
	require.NoError(t, err)
	assert.False(t, table.Occupied)

	// Cancelling again is a no-op; cancelling a completed order is refused
	// elsewhere (settlement path).
	_, err = h.svc.Cancel(ctx, order.ID, "ana")
	require.NoError(t, err)
	_, err = h.svc.Transition(ctx, order.ID, orderdomain.StatusConfirmed, "ana")
	assert.ErrorIs(t, err, orderdomain.ErrInvalidTransition)
}

func TestOptimisticVersionConflict(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	order, err := h.svc.Create(ctx, orderdomain.CreateOrderRequest{TableID: h.tableID, CreatedBy: "ana"})
	require.NoError(t, err)

	// Simulate a concurrent writer bumping the version after our read.
	repo := orderrepo.Provide()
	stale, err := repo.FindByID(ctx, h.db, order.ID)
	require.NoError(t, err)
	require.NoError(t, h.db.Model(&orderdomain.Order{}).Where("id = ?", order.ID).Update("version", gorm.Expr("version + 1")).Error)

	err = repo.Update(ctx, h.db, stale, stale.Version)
	assert.ErrorIs(t, err, orderdomain.ErrConcurrentModification)
}

func TestCloseSettledRequiresDelivered(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	order, err := h.svc.Create(ctx, orderdomain.CreateOrderRequest{TableID: h.tableID, CreatedBy: "ana"})
	require.NoError(t, err)

	_, err = h.svc.CloseSettled(ctx, order.ID)
	assert.ErrorIs(t, err, orderdomain.ErrInvalidTransition)

	for _, next := range []orderdomain.Status{
		orderdomain.StatusConfirmed,
		orderdomain.StatusInPreparation,
		orderdomain.StatusReady,
		orderdomain.StatusDelivered,
	} {
		order, err = h.svc.Transition(ctx, order.ID, next, "kitchen")
		require.NoError(t, err)
	}

	order, err = h.svc.CloseSettled(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, orderdomain.StatusCompleted, order.Status)

	// Idempotent on replay.
	again, err := h.svc.CloseSettled(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, orderdomain.StatusCompleted, again.Status)
}

func TestSummaryReportsOutstanding(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	p := h.addProduct("Paella", money.FromUnits(30, 0))
	order, err := h.svc.Create(ctx, orderdomain.CreateOrderRequest{TableID: h.tableID, CreatedBy: "ana"})
	require.NoError(t, err)
	order, err = h.svc.AddLineItem(ctx, order.ID, orderdomain.AddLineItemRequest{ProductID: p, Quantity: 1, ActorID: "ana"})
	require.NoError(t, err)

	now := h.clock.Now()
	require.NoError(t, h.db.Create(&paymentdomain.Payment{
		ID: 1, OrderID: order.ID, Method: paymentdomain.MethodCash,
		Amount: 1000, Total: 1000, Status: paymentdomain.StatusCompleted,
		RequestedAt: now, CreatedAt: now, UpdatedAt: now,
	}).Error)

	summary, err := h.svc.Summary(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, money.FromUnits(33, 0), summary.Order.Total)
	assert.Equal(t, money.FromUnits(10, 0), summary.PaidAmount)
	assert.Equal(t, money.FromUnits(23, 0), summary.Outstanding)
	assert.False(t, summary.Settled)
}
