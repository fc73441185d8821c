package application

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"orderflow/internal/catalog/domain"
	"orderflow/pkg/events"
	"orderflow/pkg/outbox"
)

// fakeStore implements Store with commit/rollback semantics: changes made
// through a transaction become visible only when the callback returns nil.
type fakeStore struct {
	products  map[string]domain.Product
	stock     map[string]int
	processed map[string]bool
	outbox    []outbox.Draft
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		products:  make(map[string]domain.Product),
		stock:     make(map[string]int),
		processed: make(map[string]bool),
	}
}

func (f *fakeStore) addProduct(id string, priceCents int64, available int) {
	f.products[id] = domain.NewProduct(id, "Product "+id, priceCents, "USD")
	f.stock[id] = available
}

func (f *fakeStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	tx := &fakeTx{store: f, stock: make(map[string]*domain.StockItem)}
	if err := fn(tx); err != nil {
		return err
	}
	for id, item := range tx.stock {
		if tx.saved[id] {
			f.stock[id] = item.Available
		}
	}
	for id := range tx.claimed {
		f.processed[id] = true
	}
	f.outbox = append(f.outbox, tx.drafts...)
	return nil
}

func (f *fakeStore) FindProduct(ctx context.Context, id string) (domain.Product, *domain.StockItem, error) {
	p, ok := f.products[id]
	if !ok {
		return domain.Product{}, nil, domain.ErrProductNotFound
	}
	item, _ := domain.NewStockItem(id, f.stock[id])
	return p, item, nil
}

type fakeTx struct {
	store   *fakeStore
	stock   map[string]*domain.StockItem
	saved   map[string]bool
	claimed map[string]bool
	drafts  []outbox.Draft
}

func (t *fakeTx) MarkReservationProcessed(ctx context.Context, orderID string) (bool, error) {
	if t.store.processed[orderID] || t.claimed[orderID] {
		return false, nil
	}
	if t.claimed == nil {
		t.claimed = make(map[string]bool)
	}
	t.claimed[orderID] = true
	return true, nil
}

func (t *fakeTx) Stock(ctx context.Context, productID string) (*domain.StockItem, error) {
	if item, ok := t.stock[productID]; ok {
		return item, nil
	}
	if _, ok := t.store.products[productID]; !ok {
		return nil, domain.ErrProductNotFound
	}
	item, err := domain.NewStockItem(productID, t.store.stock[productID])
	if err != nil {
		return nil, err
	}
	t.stock[productID] = item
	return item, nil
}

func (t *fakeTx) SaveStock(ctx context.Context, item *domain.StockItem) error {
	if t.saved == nil {
		t.saved = make(map[string]bool)
	}
	t.stock[item.ProductID] = item
	t.saved[item.ProductID] = true
	return nil
}

func (t *fakeTx) InsertStock(ctx context.Context, item *domain.StockItem) error {
	return t.SaveStock(ctx, item)
}

func (t *fakeTx) Product(ctx context.Context, id string) (domain.Product, error) {
	p, ok := t.store.products[id]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return p, nil
}

func (t *fakeTx) SaveProduct(ctx context.Context, p domain.Product) error {
	t.store.products[p.ID] = p
	return nil
}

func (t *fakeTx) DeleteProduct(ctx context.Context, id string) error {
	delete(t.store.products, id)
	delete(t.store.stock, id)
	return nil
}

func (t *fakeTx) AppendOutbox(ctx context.Context, d outbox.Draft) error {
	t.drafts = append(t.drafts, d)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func request(orderID string, items ...domain.RequestedItem) domain.ReservationRequest {
	return domain.ReservationRequest{OrderID: orderID, CorrelationID: "corr-" + orderID, Items: items}
}

func TestReserveStockSuccess(t *testing.T) {
	store := newFakeStore()
	store.addProduct("p1", 1000, 10)
	store.addProduct("p2", 2000, 5)
	svc := NewService(discardLogger(), store)

	err := svc.ReserveStock(context.Background(), request("o1",
		domain.RequestedItem{ProductID: "p1", Quantity: 2},
		domain.RequestedItem{ProductID: "p2", Quantity: 1},
	))
	if err != nil {
		t.Fatalf("ReserveStock: %v", err)
	}

	if store.stock["p1"] != 8 || store.stock["p2"] != 4 {
		t.Errorf("expected stock 8/4, got %d/%d", store.stock["p1"], store.stock["p2"])
	}
	if len(store.outbox) != 1 {
		t.Fatalf("expected exactly one outcome event, got %d", len(store.outbox))
	}
	if store.outbox[0].Type != events.TypeStockReserved {
		t.Errorf("expected StockReserved, got %s", store.outbox[0].Type)
	}

	var ev events.StockReserved
	if err := json.Unmarshal(store.outbox[0].Payload, &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ev.OrderID != "o1" || ev.CorrelationID != "corr-o1" {
		t.Errorf("unexpected event %+v", ev)
	}
	if len(ev.Products) != 2 || ev.Products[0].QuantityReserved != 2 {
		t.Errorf("unexpected reserved products %+v", ev.Products)
	}
}

func TestReserveStockCompensatesPartialReservation(t *testing.T) {
	store := newFakeStore()
	store.addProduct("a", 1000, 10)
	store.addProduct("b", 1000, 3)
	svc := NewService(discardLogger(), store)

	err := svc.ReserveStock(context.Background(), request("o1",
		domain.RequestedItem{ProductID: "a", Quantity: 5},
		domain.RequestedItem{ProductID: "b", Quantity: 5},
	))
	if err != nil {
		t.Fatalf("ReserveStock: %v", err)
	}

	if store.stock["a"] != 10 {
		t.Errorf("compensation failed: product a at %d, want 10", store.stock["a"])
	}
	if store.stock["b"] != 3 {
		t.Errorf("product b must be untouched, got %d", store.stock["b"])
	}

	if len(store.outbox) != 1 {
		t.Fatalf("expected exactly one outcome event, got %d", len(store.outbox))
	}
	var ev events.StockReservationFailed
	if err := json.Unmarshal(store.outbox[0].Payload, &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ev.Reason != "insufficient stock for product b" {
		t.Errorf("unexpected reason %q", ev.Reason)
	}
}

func TestReserveStockProductNotFound(t *testing.T) {
	store := newFakeStore()
	store.addProduct("p1", 1000, 10)
	svc := NewService(discardLogger(), store)

	err := svc.ReserveStock(context.Background(), request("o1",
		domain.RequestedItem{ProductID: "p1", Quantity: 1},
		domain.RequestedItem{ProductID: "ghost", Quantity: 1},
	))
	if err != nil {
		t.Fatalf("ReserveStock: %v", err)
	}

	if store.stock["p1"] != 10 {
		t.Errorf("expected p1 untouched at 10, got %d", store.stock["p1"])
	}
	var ev events.StockReservationFailed
	if err := json.Unmarshal(store.outbox[0].Payload, &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ev.Reason != "product not found: ghost" {
		t.Errorf("unexpected reason %q", ev.Reason)
	}
}

func TestReserveStockFirstFailureWins(t *testing.T) {
	store := newFakeStore()
	store.addProduct("p1", 1000, 0)
	svc := NewService(discardLogger(), store)

	err := svc.ReserveStock(context.Background(), request("o1",
		domain.RequestedItem{ProductID: "p1", Quantity: 1},
		domain.RequestedItem{ProductID: "ghost", Quantity: 1},
	))
	if err != nil {
		t.Fatalf("ReserveStock: %v", err)
	}

	var ev events.StockReservationFailed
	if err := json.Unmarshal(store.outbox[0].Payload, &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ev.Reason != "insufficient stock for product p1" {
		t.Errorf("expected the first failing item's reason, got %q", ev.Reason)
	}
}

func TestReserveStockDeduplicatesRedelivery(t *testing.T) {
	store := newFakeStore()
	store.addProduct("p1", 1000, 10)
	svc := NewService(discardLogger(), store)

	req := request("o1", domain.RequestedItem{ProductID: "p1", Quantity: 4})
	if err := svc.ReserveStock(context.Background(), req); err != nil {
		t.Fatalf("first ReserveStock: %v", err)
	}
	if err := svc.ReserveStock(context.Background(), req); err != nil {
		t.Fatalf("redelivered ReserveStock: %v", err)
	}

	if store.stock["p1"] != 6 {
		t.Errorf("redelivery double-reserved: stock %d, want 6", store.stock["p1"])
	}
	if len(store.outbox) != 1 {
		t.Errorf("redelivery produced %d outcome events, want 1", len(store.outbox))
	}
}

func TestReserveStockFailureIsDeduplicatedToo(t *testing.T) {
	store := newFakeStore()
	store.addProduct("p1", 1000, 1)
	svc := NewService(discardLogger(), store)

	req := request("o1", domain.RequestedItem{ProductID: "p1", Quantity: 5})
	if err := svc.ReserveStock(context.Background(), req); err != nil {
		t.Fatalf("first ReserveStock: %v", err)
	}
	if err := svc.ReserveStock(context.Background(), req); err != nil {
		t.Fatalf("redelivered ReserveStock: %v", err)
	}

	if len(store.outbox) != 1 {
		t.Errorf("expected a single failure outcome, got %d", len(store.outbox))
	}
}

func TestReleaseStock(t *testing.T) {
	store := newFakeStore()
	store.addProduct("p1", 1000, 5)
	store.addProduct("p2", 2000, 0)
	svc := NewService(discardLogger(), store)

	err := svc.ReleaseStock(context.Background(), "o1", "corr-o1", []domain.RequestedItem{
		{ProductID: "p1", Quantity: 2},
		{ProductID: "p2", Quantity: 1},
	})
	if err != nil {
		t.Fatalf("ReleaseStock: %v", err)
	}
	if store.stock["p1"] != 7 || store.stock["p2"] != 1 {
		t.Errorf("expected 7/1 after release, got %d/%d", store.stock["p1"], store.stock["p2"])
	}
}

func TestReleaseStockSkipsDeletedProduct(t *testing.T) {
	store := newFakeStore()
	store.addProduct("p1", 1000, 5)
	svc := NewService(discardLogger(), store)

	err := svc.ReleaseStock(context.Background(), "o1", "corr-o1", []domain.RequestedItem{
		{ProductID: "gone", Quantity: 3},
		{ProductID: "p1", Quantity: 1},
	})
	if err != nil {
		t.Fatalf("ReleaseStock: %v", err)
	}
	if store.stock["p1"] != 6 {
		t.Errorf("expected 6 after release, got %d", store.stock["p1"])
	}
}

func TestSetStockEmitsProductUpdated(t *testing.T) {
	store := newFakeStore()
	store.addProduct("p1", 1000, 2)
	svc := NewService(discardLogger(), store)

	if err := svc.SetStock(context.Background(), "p1", 50, "corr-1"); err != nil {
		t.Fatalf("SetStock: %v", err)
	}
	if store.stock["p1"] != 50 {
		t.Errorf("expected 50, got %d", store.stock["p1"])
	}
	if len(store.outbox) != 1 || store.outbox[0].Type != events.TypeProductUpdated {
		t.Fatalf("expected one ProductUpdated event, got %+v", store.outbox)
	}

	var ev events.ProductChanged
	if err := json.Unmarshal(store.outbox[0].Payload, &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ev.StockQuantity != 50 || !ev.IsAvailable {
		t.Errorf("unexpected snapshot %+v", ev)
	}
}

func TestCreateProductEmitsProductCreated(t *testing.T) {
	store := newFakeStore()
	svc := NewService(discardLogger(), store)

	p := domain.NewProduct("p9", "Widget", 1500, "USD")
	if err := svc.CreateProduct(context.Background(), p, 12, "corr-1"); err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}
	if len(store.outbox) != 1 || store.outbox[0].Type != events.TypeProductCreated {
		t.Fatalf("expected one ProductCreated event, got %+v", store.outbox)
	}
}
