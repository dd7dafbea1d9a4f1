package form

import (
	"net/http"
	"net/url"
)

const (
	ItemIDField      = "item_id"
	ItemOrderIDField = "item_order_id"
	ProductIDField   = "product_id"
	QuantityField    = "quantity"
	PriceField       = "price"
	ItemFlashField   = "flash_message_item"
)

const MessageItemDeleted = "Item has been Deleted!"

func itemsPath(m Model) string {
	return ordersPath + "/" + url.PathEscape(m.Get(ItemOrderIDField)) + "/items"
}

func itemPath(m Model) string {
	return itemsPath(m) + "/" + url.PathEscape(m.Get(ItemIDField))
}

// ItemResource is the order item form. Items have no cancel.
func ItemResource() *Resource {
	editable := []BodyField{
		{Key: "order_id", Field: ItemOrderIDField},
		{Key: "product_id", Field: ProductIDField},
		{Key: "quantity", Field: QuantityField},
		{Key: "price", Field: PriceField},
	}
	repaint := SuccessPolicy{Repaint: true, Message: MessageSuccess}

	return &Resource{
		Name:     "item",
		KeyField: ItemIDField,
		Fields: []Field{
			{Name: ItemOrderIDField},
			{Name: ProductIDField},
			{Name: QuantityField},
			{Name: PriceField},
		},
		FlashField: ItemFlashField,
		ResponseFields: []BodyField{
			{Key: "id", Field: ItemIDField},
			{Key: "order_id", Field: ItemOrderIDField},
			{Key: "product_id", Field: ProductIDField},
			{Key: "quantity", Field: QuantityField},
			{Key: "price", Field: PriceField},
		},
		Endpoints: map[Action]Endpoint{
			ActionCreate: {
				Method:    http.MethodPost,
				Path:      itemsPath,
				Body:      editable,
				OnSuccess: repaint,
			},
			ActionUpdate: {
				Method:    http.MethodPut,
				Path:      itemPath,
				Body:      append([]BodyField{{Key: "id", Field: ItemIDField}}, editable...),
				OnSuccess: repaint,
			},
			ActionRetrieve: {
				Method:    http.MethodGet,
				Path:      itemPath,
				OnSuccess: repaint,
				OnFailure: FailurePolicy{ClearFields: true},
			},
			ActionDelete: {
				Method:    http.MethodDelete,
				Path:      itemPath,
				OnSuccess: SuccessPolicy{ClearFields: true, Message: MessageItemDeleted},
				OnFailure: FailurePolicy{Message: MessageServerError},
			},
		},
	}
}
