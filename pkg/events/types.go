// Package events defines the integration events exchanged between the order
// and catalog services, and the router that maps inbound messages to handlers.
package events

// Event type names carried in the event_type Kafka header.
const (
	TypeOrderCreated           = "OrderCreated"
	TypeOrderConfirmed         = "OrderConfirmed"
	TypeOrderCancelled         = "OrderCancelled"
	TypeStockReserved          = "StockReserved"
	TypeStockReservationFailed = "StockReservationFailed"
	TypeProductCreated         = "ProductCreated"
	TypeProductUpdated         = "ProductUpdated"
	TypeProductDeleted         = "ProductDeleted"
)

// OrderCreated triggers stock reservation in the catalog service.
type OrderCreated struct {
	OrderID       string             `json:"orderId"`
	CorrelationID string             `json:"correlationId"`
	CustomerID    string             `json:"customerId"`
	TotalCents    int64              `json:"totalCents"`
	Currency      string             `json:"currency"`
	Items         []OrderCreatedItem `json:"items"`
}

type OrderCreatedItem struct {
	ProductID      string `json:"productId"`
	ProductName    string `json:"productName"`
	UnitPriceCents int64  `json:"unitPriceCents"`
	Currency       string `json:"currency"`
	Quantity       int    `json:"quantity"`
}

// StockReserved reports full reservation success back to the order service.
type StockReserved struct {
	OrderID       string            `json:"orderId"`
	CorrelationID string            `json:"correlationId"`
	Products      []ReservedProduct `json:"products"`
}

type ReservedProduct struct {
	ProductID        string `json:"productId"`
	QuantityReserved int    `json:"quantityReserved"`
}

// StockReservationFailed reports the first failing item's reason.
type StockReservationFailed struct {
	OrderID       string `json:"orderId"`
	CorrelationID string `json:"correlationId"`
	Reason        string `json:"reason"`
}

// OrderCancelled asks the catalog service to release committed stock.
type OrderCancelled struct {
	OrderID       string          `json:"orderId"`
	CorrelationID string          `json:"correlationId"`
	CustomerID    string          `json:"customerId"`
	Reason        string          `json:"reason"`
	Items         []CancelledItem `json:"items"`
}

type CancelledItem struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// OrderConfirmed is informational, for downstream consumers such as shipping.
type OrderConfirmed struct {
	OrderID       string `json:"orderId"`
	CorrelationID string `json:"correlationId"`
	CustomerID    string `json:"customerId"`
	TotalCents    int64  `json:"totalCents"`
	Currency      string `json:"currency"`
}

// ProductChanged feeds the order service's read-model snapshot. It is the
// payload of both ProductCreated and ProductUpdated.
type ProductChanged struct {
	ProductID     string `json:"productId"`
	CorrelationID string `json:"correlationId"`
	Name          string `json:"name"`
	PriceCents    int64  `json:"priceCents"`
	Currency      string `json:"currency"`
	StockQuantity int    `json:"stockQuantity"`
	IsAvailable   bool   `json:"isAvailable"`
}

type ProductDeleted struct {
	ProductID     string `json:"productId"`
	CorrelationID string `json:"correlationId"`
}
