package models

import (
	"bytes"
	"encoding/json"
)

// Order statuses understood by the orders API.
const (
	StatusPlaced    = "PLACED"
	StatusCreated   = "CREATED"
	StatusPaid      = "PAID"
	StatusShipped   = "SHIPPED"
	StatusDelivered = "DELIVERED"
	StatusCancelled = "CANCELLED"
)

var validStatuses = map[Text]bool{
	StatusPlaced:    true,
	StatusCreated:   true,
	StatusPaid:      true,
	StatusShipped:   true,
	StatusDelivered: true,
	StatusCancelled: true,
}

func IsValidStatus(status Text) bool {
	return validStatuses[status]
}

// Text is an opaque form value. It decodes from any JSON value: strings
// are unquoted, null becomes empty, anything else keeps its literal text.
// It always encodes as a JSON string.
type Text string

func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*t = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Text(s)
	default:
		*t = Text(data)
	}
	return nil
}

func (t Text) String() string {
	return string(t)
}

type Order struct {
	ID          Text        `json:"id"`
	CustomerID  Text        `json:"customer_id"`
	TrackingID  Text        `json:"tracking_id"`
	Status      Text        `json:"status"`
	CreatedTime Text        `json:"created_time"`
	Items       []OrderItem `json:"order_items"`
}

type OrderItem struct {
	ID        Text `json:"id"`
	OrderID   Text `json:"order_id"`
	ProductID Text `json:"product_id"`
	Quantity  Text `json:"quantity"`
	Price     Text `json:"price"`
}

// ErrorResponse is the body the API sends with every failed request.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
