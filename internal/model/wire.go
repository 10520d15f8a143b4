package model

// Envelope is the response wrapper of every menu-session endpoint.
type Envelope[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data"`
	Message string `json:"message,omitempty"`
}

// InitRequest is the body of POST /menu-session/{shortCode}/init.
type InitRequest struct {
	SessionToken *string `json:"session_token"`
	DeviceID     string  `json:"device_id"`
}

// InitData is the payload of a successful init.
type InitData struct {
	SessionToken string         `json:"session_token"`
	ActiveOrders []OrderSummary `json:"active_orders"`
	RecentOrders []OrderSummary `json:"recent_orders"`
}

// StatusData is the payload of GET /menu-session/{token}/status.
type StatusData struct {
	ActiveOrders []OrderSummary `json:"active_orders"`
	DoneOrders   []OrderSummary `json:"done_orders"`
}

// PlaceOrderRequest is the body of POST /menu-session/{token}/orders.
type PlaceOrderRequest struct {
	Items    []OrderLineItem `json:"items"`
	Currency string          `json:"currency"`
	Notes    string          `json:"notes"`
}

// UpdateStatusRequest is the body of the kitchen status endpoint.
type UpdateStatusRequest struct {
	Status OrderStatus `json:"status"`
}
