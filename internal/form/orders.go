package form

import (
	"net/http"
	"net/url"

	"github.com/jogardn/order-console/pkg/models"
)

const (
	OrderIDField     = "order_id"
	CustomerIDField  = "customer_id"
	TrackingIDField  = "tracking_id"
	StatusField      = "status"
	CreatedTimeField = "created_time"
	OrderFlashField  = "flash_message"
)

const (
	MessageOrderDeleted   = "Order has been Deleted!"
	MessageOrderCancelled = "Order has been CANCELLED!"
)

const ordersPath = "/api/orders"

func orderPath(m Model) string {
	return ordersPath + "/" + url.PathEscape(m.Get(OrderIDField))
}

// OrderResource is the order form: create, update, retrieve, delete and
// cancel against /api/orders.
func OrderResource() *Resource {
	editable := []BodyField{
		{Key: "customer_id", Field: CustomerIDField},
		{Key: "tracking_id", Field: TrackingIDField},
		{Key: "status", Field: StatusField},
	}
	repaint := SuccessPolicy{Repaint: true, Message: MessageSuccess}

	return &Resource{
		Name:     "order",
		KeyField: OrderIDField,
		Fields: []Field{
			{Name: CustomerIDField},
			{Name: TrackingIDField},
			{Name: StatusField, Default: models.StatusPlaced},
			{Name: CreatedTimeField},
		},
		FlashField: OrderFlashField,
		ResponseFields: []BodyField{
			{Key: "id", Field: OrderIDField},
			{Key: "customer_id", Field: CustomerIDField},
			{Key: "tracking_id", Field: TrackingIDField},
			{Key: "status", Field: StatusField},
			{Key: "created_time", Field: CreatedTimeField},
		},
		Endpoints: map[Action]Endpoint{
			ActionCreate: {
				Method:    http.MethodPost,
				Path:      func(Model) string { return ordersPath },
				Body:      editable,
				OnSuccess: repaint,
			},
			ActionUpdate: {
				Method:    http.MethodPut,
				Path:      orderPath,
				Body:      append([]BodyField{{Key: "id", Field: OrderIDField}}, editable...),
				OnSuccess: repaint,
			},
			ActionRetrieve: {
				Method:    http.MethodGet,
				Path:      orderPath,
				OnSuccess: repaint,
				OnFailure: FailurePolicy{ClearFields: true},
			},
			ActionDelete: {
				Method:    http.MethodDelete,
				Path:      orderPath,
				OnSuccess: SuccessPolicy{ClearFields: true, Message: MessageOrderDeleted},
				OnFailure: FailurePolicy{Message: MessageServerError},
			},
			ActionCancel: {
				Method:    http.MethodPut,
				Path:      func(m Model) string { return orderPath(m) + "/cancel" },
				OnSuccess: SuccessPolicy{ClearFields: true, Message: MessageOrderCancelled},
			},
		},
	}
}
