package mockapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/jogardn/order-console/pkg/models"
	"github.com/sirupsen/logrus"
)

type orderPayload struct {
	CustomerID *models.Text  `json:"customer_id"`
	TrackingID *models.Text  `json:"tracking_id"`
	Status     *models.Text  `json:"status"`
	Items      []itemPayload `json:"order_items"`
}

type itemPayload struct {
	ProductID *models.Text `json:"product_id"`
	Quantity  *models.Text `json:"quantity"`
	Price     *models.Text `json:"price"`
}

func (p orderPayload) toOrder() (models.Order, error) {
	switch {
	case p.CustomerID == nil:
		return models.Order{}, errors.New("Invalid Order: missing customer_id")
	case p.TrackingID == nil:
		return models.Order{}, errors.New("Invalid Order: missing tracking_id")
	case p.Status == nil:
		return models.Order{}, errors.New("Invalid Order: missing status")
	case !models.IsValidStatus(*p.Status):
		return models.Order{}, fmt.Errorf("Invalid Order: unknown status '%s'", *p.Status)
	}

	order := models.Order{
		CustomerID: *p.CustomerID,
		TrackingID: *p.TrackingID,
		Status:     *p.Status,
	}
	for _, ip := range p.Items {
		item, err := ip.toItem()
		if err != nil {
			return models.Order{}, err
		}
		order.Items = append(order.Items, item)
	}
	return order, nil
}

func (p itemPayload) toItem() (models.OrderItem, error) {
	switch {
	case p.ProductID == nil:
		return models.OrderItem{}, errors.New("Invalid Item: missing product_id")
	case p.Quantity == nil:
		return models.OrderItem{}, errors.New("Invalid Item: missing quantity")
	case p.Price == nil:
		return models.OrderItem{}, errors.New("Invalid Item: missing price")
	}
	return models.OrderItem{
		ProductID: *p.ProductID,
		Quantity:  *p.Quantity,
		Price:     *p.Price,
	}, nil
}

type Handler struct {
	store  *Store
	logger *logrus.Logger
}

func NewHandler(store *Store, logger *logrus.Logger) *Handler {
	return &Handler{
		store:  store,
		logger: logger,
	}
}

// Router mounts the orders API under /api.
func (h *Handler) Router() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/orders", h.ListOrders).Methods(http.MethodGet)
	api.HandleFunc("/orders", h.CreateOrder).Methods(http.MethodPost)
	api.HandleFunc("/orders/{id:[0-9]+}", h.GetOrder).Methods(http.MethodGet)
	api.HandleFunc("/orders/{id:[0-9]+}", h.UpdateOrder).Methods(http.MethodPut)
	api.HandleFunc("/orders/{id:[0-9]+}", h.DeleteOrder).Methods(http.MethodDelete)
	api.HandleFunc("/orders/{id:[0-9]+}/cancel", h.CancelOrder).Methods(http.MethodPut)
	api.HandleFunc("/orders/{id:[0-9]+}/items", h.ListItems).Methods(http.MethodGet)
	api.HandleFunc("/orders/{id:[0-9]+}/items", h.CreateItem).Methods(http.MethodPost)
	api.HandleFunc("/orders/{id:[0-9]+}/items/{item_id:[0-9]+}", h.GetItem).Methods(http.MethodGet)
	api.HandleFunc("/orders/{id:[0-9]+}/items/{item_id:[0-9]+}", h.UpdateItem).Methods(http.MethodPut)
	api.HandleFunc("/orders/{id:[0-9]+}/items/{item_id:[0-9]+}", h.DeleteItem).Methods(http.MethodDelete)

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondWithError(w, http.StatusNotFound, "Not Found")
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondWithError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})
	return router
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "mock-api",
	})
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders := h.store.ListOrders(r.URL.Query().Get("customer_id"))
	h.logger.WithField("count", len(orders)).Info("Listed orders")
	respondWithJSON(w, http.StatusOK, orders)
}

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var payload orderPayload
	if !h.decode(w, r, &payload) {
		return
	}
	order, err := payload.toOrder()
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	created := h.store.CreateOrder(order)
	h.logger.WithFields(logrus.Fields{
		"order_id":    created.ID,
		"customer_id": created.CustomerID,
	}).Info("Order created")

	w.Header().Set("Location", "/api/orders/"+string(created.ID))
	respondWithJSON(w, http.StatusCreated, created)
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id := pathInt(r, "id")
	order, err := h.store.GetOrder(id)
	if err != nil {
		respondWithError(w, http.StatusNotFound, fmt.Sprintf("Order with id '%s' could not be found.", mux.Vars(r)["id"]))
		return
	}
	respondWithJSON(w, http.StatusOK, order)
}

func (h *Handler) UpdateOrder(w http.ResponseWriter, r *http.Request) {
	id := pathInt(r, "id")
	var payload orderPayload
	if !h.decode(w, r, &payload) {
		return
	}
	update, err := payload.toOrder()
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	order, err := h.store.UpdateOrder(id, update)
	if err != nil {
		respondWithError(w, http.StatusNotFound, fmt.Sprintf("Order with id '%s' was not found.", mux.Vars(r)["id"]))
		return
	}
	h.logger.WithField("order_id", id).Info("Order updated")
	respondWithJSON(w, http.StatusOK, order)
}

func (h *Handler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	id := pathInt(r, "id")
	h.store.DeleteOrder(id)
	h.logger.WithField("order_id", id).Info("Order deleted")
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	id := pathInt(r, "id")
	order, err := h.store.CancelOrder(id)
	switch {
	case errors.Is(err, ErrOrderNotFound):
		respondWithError(w, http.StatusNotFound, fmt.Sprintf("Order with id '%s' could not be found.", mux.Vars(r)["id"]))
		return
	case errors.Is(err, ErrAlreadyDelivered):
		respondWithError(w, http.StatusConflict, fmt.Sprintf("Order with id '%s' has already been delivered and cannot be cancelled.", mux.Vars(r)["id"]))
		return
	}
	h.logger.WithField("order_id", id).Info("Order cancelled")
	respondWithJSON(w, http.StatusOK, order)
}

func (h *Handler) ListItems(w http.ResponseWriter, r *http.Request) {
	orderID := pathInt(r, "id")
	items, err := h.store.ListItems(orderID)
	if err != nil {
		respondWithError(w, http.StatusNotFound, fmt.Sprintf("Order with id '%s' could not be found.", mux.Vars(r)["id"]))
		return
	}
	respondWithJSON(w, http.StatusOK, items)
}

func (h *Handler) CreateItem(w http.ResponseWriter, r *http.Request) {
	orderID := pathInt(r, "id")
	var payload itemPayload
	if !h.decode(w, r, &payload) {
		return
	}
	item, err := payload.toItem()
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := h.store.CreateItem(orderID, item)
	if err != nil {
		respondWithError(w, http.StatusNotFound, fmt.Sprintf("Order with id '%s' could not be found.", mux.Vars(r)["id"]))
		return
	}
	h.logger.WithFields(logrus.Fields{
		"order_id": orderID,
		"item_id":  created.ID,
	}).Info("Item created")
	respondWithJSON(w, http.StatusCreated, created)
}

func (h *Handler) GetItem(w http.ResponseWriter, r *http.Request) {
	orderID, itemID := pathInt(r, "id"), pathInt(r, "item_id")
	item, err := h.store.GetItem(orderID, itemID)
	if err != nil {
		respondWithError(w, http.StatusNotFound, fmt.Sprintf("Item with id '%s' could not be found.", mux.Vars(r)["item_id"]))
		return
	}
	respondWithJSON(w, http.StatusOK, item)
}

func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	orderID, itemID := pathInt(r, "id"), pathInt(r, "item_id")
	var payload itemPayload
	if !h.decode(w, r, &payload) {
		return
	}
	update, err := payload.toItem()
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	item, err := h.store.UpdateItem(orderID, itemID, update)
	if err != nil {
		respondWithError(w, http.StatusNotFound, fmt.Sprintf("Item with id '%s' could not be found.", mux.Vars(r)["item_id"]))
		return
	}
	h.logger.WithFields(logrus.Fields{
		"order_id": orderID,
		"item_id":  itemID,
	}).Info("Item updated")
	respondWithJSON(w, http.StatusOK, item)
}

func (h *Handler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	orderID, itemID := pathInt(r, "id"), pathInt(r, "item_id")
	h.store.DeleteItem(orderID, itemID)
	h.logger.WithFields(logrus.Fields{
		"order_id": orderID,
		"item_id":  itemID,
	}).Info("Item deleted")
	w.WriteHeader(http.StatusNoContent)
}

// decode enforces a JSON content type and decodes the body into v. It
// answers the request itself and returns false on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		h.logger.WithField("content_type", r.Header.Get("Content-Type")).Warn("Invalid Content-Type")
		respondWithError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.logger.WithError(err).Warn("Failed to decode request body")
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// pathInt reads a route variable already constrained to digits. A value
// too large for an int yields -1, which matches no stored record.
func pathInt(r *http.Request, name string) int {
	n, err := strconv.Atoi(mux.Vars(r)[name])
	if err != nil {
		return -1
	}
	return n
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, models.ErrorResponse{
		Success: false,
		Message: message,
	})
}
