package mockapi

import (
	"errors"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/jogardn/order-console/pkg/models"
)

var (
	ErrOrderNotFound    = errors.New("order not found")
	ErrItemNotFound     = errors.New("item not found")
	ErrAlreadyDelivered = errors.New("order already delivered")
)

// Store keeps orders and their items in memory. Items are deleted with
// their order.
type Store struct {
	mu          sync.RWMutex
	orders      map[int]models.Order
	items       map[int]models.OrderItem
	nextOrderID int
	nextItemID  int
	now         func() time.Time
}

func NewStore() *Store {
	return &Store{
		orders: make(map[int]models.Order),
		items:  make(map[int]models.OrderItem),
		now:    time.Now,
	}
}

func (s *Store) ListOrders(customerID string) []models.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]int, 0, len(s.orders))
	for id, order := range s.orders {
		if customerID != "" && string(order.CustomerID) != customerID {
			continue
		}
		ids = append(ids, id)
	}
	sort.Ints(ids)

	orders := make([]models.Order, 0, len(ids))
	for _, id := range ids {
		orders = append(orders, s.withItems(id))
	}
	return orders
}

func (s *Store) CreateOrder(order models.Order) models.Order {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextOrderID++
	id := s.nextOrderID
	order.ID = itoa(id)
	order.CreatedTime = models.Text(s.now().UTC().Format(time.RFC3339))
	items := order.Items
	order.Items = nil
	s.orders[id] = order

	for _, item := range items {
		s.addItem(id, item)
	}
	return s.withItems(id)
}

func (s *Store) GetOrder(id int) (models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.orders[id]; !ok {
		return models.Order{}, ErrOrderNotFound
	}
	return s.withItems(id), nil
}

// UpdateOrder replaces the editable fields. Identity and creation time
// stay with the stored record.
func (s *Store) UpdateOrder(id int, update models.Order) (models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[id]
	if !ok {
		return models.Order{}, ErrOrderNotFound
	}
	order.CustomerID = update.CustomerID
	order.TrackingID = update.TrackingID
	order.Status = update.Status
	s.orders[id] = order
	return s.withItems(id), nil
}

func (s *Store) DeleteOrder(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.orders, id)
	for itemID, item := range s.items {
		if item.OrderID == itoa(id) {
			delete(s.items, itemID)
		}
	}
}

func (s *Store) CancelOrder(id int) (models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[id]
	if !ok {
		return models.Order{}, ErrOrderNotFound
	}
	if order.Status == models.StatusDelivered {
		return models.Order{}, ErrAlreadyDelivered
	}
	order.Status = models.StatusCancelled
	s.orders[id] = order
	return s.withItems(id), nil
}

func (s *Store) ListItems(orderID int) ([]models.OrderItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.orders[orderID]; !ok {
		return nil, ErrOrderNotFound
	}
	return s.itemsOf(orderID), nil
}

func (s *Store) CreateItem(orderID int, item models.OrderItem) (models.OrderItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orders[orderID]; !ok {
		return models.OrderItem{}, ErrOrderNotFound
	}
	return s.addItem(orderID, item), nil
}

func (s *Store) GetItem(orderID, itemID int) (models.OrderItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[itemID]
	if !ok || item.OrderID != itoa(orderID) {
		return models.OrderItem{}, ErrItemNotFound
	}
	return item, nil
}

func (s *Store) UpdateItem(orderID, itemID int, update models.OrderItem) (models.OrderItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[itemID]
	if !ok || item.OrderID != itoa(orderID) {
		return models.OrderItem{}, ErrItemNotFound
	}
	item.ProductID = update.ProductID
	item.Quantity = update.Quantity
	item.Price = update.Price
	s.items[itemID] = item
	return item, nil
}

func (s *Store) DeleteItem(orderID, itemID int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if item, ok := s.items[itemID]; ok && item.OrderID == itoa(orderID) {
		delete(s.items, itemID)
	}
}

func (s *Store) addItem(orderID int, item models.OrderItem) models.OrderItem {
	s.nextItemID++
	item.ID = itoa(s.nextItemID)
	item.OrderID = itoa(orderID)
	s.items[s.nextItemID] = item
	return item
}

func (s *Store) withItems(id int) models.Order {
	order := s.orders[id]
	order.Items = s.itemsOf(id)
	return order
}

func (s *Store) itemsOf(orderID int) []models.OrderItem {
	key := itoa(orderID)
	var ids []int
	for id, item := range s.items {
		if item.OrderID == key {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)

	items := make([]models.OrderItem, 0, len(ids))
	for _, id := range ids {
		items = append(items, s.items[id])
	}
	return items
}

func itoa(n int) models.Text {
	return models.Text(strconv.Itoa(n))
}
