// Package memstore is an in-process port.Repository used for local development
// and tests. A single mutex serialises every unit of work, which gives the same
// all-or-nothing and no-partial-visibility guarantees the Postgres store gets
// from transactions and row locks.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"storefront/internal/models"
	"storefront/internal/port"
)

// Store keeps every table in maps guarded by mu
type Store struct {
	mu sync.Mutex
	st *state
	*querier
}

var _ port.Repository = (*Store)(nil)

type cartItem struct {
	ID        int64
	CartID    int64
	ProductID int64
	Quantity  int
}

type state struct {
	seq           map[string]int64
	accounts      map[int64]models.Account
	products      map[int64]models.Product
	carts         map[int64]models.Cart
	cartItems     map[int64]cartItem
	orders        map[int64]models.Order
	orderLines    map[int64]models.OrderLine
	cancellations []models.Cancellation
}

// New creates an empty store
func New() *Store {
	s := &Store{st: newState()}
	s.querier = &querier{s: s}
	return s
}

func newState() *state {
	return &state{
		seq:        map[string]int64{},
		accounts:   map[int64]models.Account{},
		products:   map[int64]models.Product{},
		carts:      map[int64]models.Cart{},
		cartItems:  map[int64]cartItem{},
		orders:     map[int64]models.Order{},
		orderLines: map[int64]models.OrderLine{},
	}
}

// clone copies every table. Pointer fields inside rows are never mutated in
// place, so sharing them between snapshots is safe.
func (st *state) clone() *state {
	c := newState()
	for k, v := range st.seq {
		c.seq[k] = v
	}
	for k, v := range st.accounts {
		c.accounts[k] = v
	}
	for k, v := range st.products {
		c.products[k] = v
	}
	for k, v := range st.carts {
		c.carts[k] = v
	}
	for k, v := range st.cartItems {
		c.cartItems[k] = v
	}
	for k, v := range st.orders {
		c.orders[k] = v
	}
	for k, v := range st.orderLines {
		c.orderLines[k] = v
	}
	c.cancellations = append([]models.Cancellation(nil), st.cancellations...)
	return c
}

func (st *state) next(table string) int64 {
	st.seq[table]++
	return st.seq[table]
}

// Ping always succeeds
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

// InTx runs fn with exclusive access to the store. The state is restored from a
// snapshot when fn fails, panics, or ctx is done before commit.
func (s *Store) InTx(ctx context.Context, fn func(q port.Querier) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	defer func() {
		if p := recover(); p != nil {
			s.st = snapshot
			panic(p)
		}
		if err != nil {
			s.st = snapshot
		}
	}()

	if err := fn(&querier{s: s, inTx: true}); err != nil {
		return err
	}
	return ctx.Err()
}

// querier implements port.Querier. Outside a transaction every call takes the
// store lock itself; inside one the lock is already held.
type querier struct {
	s    *Store
	inTx bool
}

func (q *querier) begin(ctx context.Context) (*state, func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	if q.inTx {
		return q.s.st, func() {}, nil
	}
	q.s.mu.Lock()
	return q.s.st, q.s.mu.Unlock, nil
}

func (q *querier) CreateAccount(ctx context.Context, account *models.Account) error {
	st, done, err := q.begin(ctx)
	if err != nil {
		return err
	}
	defer done()

	account.ID = st.next("accounts")
	account.CreatedAt = time.Now()
	st.accounts[account.ID] = *account
	return nil
}

func (q *querier) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	st, done, err := q.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer done()

	p, ok := st.products[id]
	if !ok {
		return nil, models.ErrProductNotFound
	}
	return &p, nil
}

func (q *querier) ListProducts(ctx context.Context) ([]models.Product, error) {
	st, done, err := q.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer done()

	products := make([]models.Product, 0, len(st.products))
	for _, p := range st.products {
		products = append(products, p)
	}
	sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })
	return products, nil
}

func (q *querier) CreateProduct(ctx context.Context, product *models.Product) error {
	st, done, err := q.begin(ctx)
	if err != nil {
		return err
	}
	defer done()

	if product.Stock < 0 {
		return models.ErrInvalidProduct
	}
	product.ID = st.next("products")
	product.CreatedAt = time.Now()
	st.products[product.ID] = *product
	return nil
}

func (q *querier) UpdateProduct(ctx context.Context, product *models.Product) error {
	st, done, err := q.begin(ctx)
	if err != nil {
		return err
	}
	defer done()

	existing, ok := st.products[product.ID]
	if !ok {
		return models.ErrProductNotFound
	}
	existing.Name = product.Name
	existing.Description = product.Description
	existing.Price = product.Price
	existing.Category = product.Category
	existing.Featured = product.Featured
	st.products[product.ID] = existing
	return nil
}

func (q *querier) DeleteProduct(ctx context.Context, id int64) (bool, error) {
	st, done, err := q.begin(ctx)
	if err != nil {
		return false, err
	}
	defer done()

	if _, ok := st.products[id]; !ok {
		return false, nil
	}
	delete(st.products, id)
	for itemID, item := range st.cartItems {
		if item.ProductID == id {
			delete(st.cartItems, itemID)
		}
	}
	for lineID, line := range st.orderLines {
		if line.ProductID != nil && *line.ProductID == id {
			line.ProductID = nil
			st.orderLines[lineID] = line
		}
	}
	return true, nil
}

func (q *querier) LockProducts(ctx context.Context, ids []int64) (map[int64]*models.Product, error) {
	st, done, err := q.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer done()

	locked := make(map[int64]*models.Product, len(ids))
	for _, id := range ids {
		if p, ok := st.products[id]; ok {
			locked[id] = &p
		}
	}
	return locked, nil
}

func (q *querier) DecrementStock(ctx context.Context, productID int64, qty int) (bool, error) {
	st, done, err := q.begin(ctx)
	if err != nil {
		return false, err
	}
	defer done()

	p, ok := st.products[productID]
	if !ok {
		return false, models.ErrProductNotFound
	}
	if p.Stock < qty {
		return false, nil
	}
	p.Stock -= qty
	st.products[productID] = p
	return true, nil
}

func (q *querier) IncrementStock(ctx context.Context, productID int64, qty int) error {
	st, done, err := q.begin(ctx)
	if err != nil {
		return err
	}
	defer done()

	p, ok := st.products[productID]
	if !ok {
		return models.ErrProductNotFound
	}
	p.Stock += qty
	st.products[productID] = p
	return nil
}

func (q *querier) GetCart(ctx context.Context, id int64) (*models.Cart, error) {
	st, done, err := q.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer done()

	c, ok := st.carts[id]
	if !ok {
		return nil, models.ErrCartNotFound
	}
	return &c, nil
}

func (q *querier) LockCart(ctx context.Context, id int64) (*models.Cart, error) {
	return q.GetCart(ctx, id)
}

func (q *querier) FindCart(ctx context.Context, owner models.Owner) (*models.Cart, error) {
	st, done, err := q.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer done()

	if c, ok := st.findCart(owner); ok {
		return &c, nil
	}
	return nil, models.ErrCartNotFound
}

func (st *state) findCart(owner models.Owner) (models.Cart, bool) {
	for _, c := range st.carts {
		if c.Owner().Equal(owner) {
			return c, true
		}
	}
	return models.Cart{}, false
}

func (q *querier) CreateCart(ctx context.Context, owner models.Owner) (*models.Cart, error) {
	st, done, err := q.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer done()

	if c, ok := st.findCart(owner); ok {
		return &c, nil
	}

	c := models.Cart{ID: st.next("carts"), CreatedAt: time.Now()}
	if owner.AccountID != nil {
		id := *owner.AccountID
		c.AccountID = &id
	} else {
		token := owner.SessionToken
		c.SessionToken = &token
	}
	st.carts[c.ID] = c
	return &c, nil
}

func (q *querier) ReassignCart(ctx context.Context, cartID, accountID int64) error {
	st, done, err := q.begin(ctx)
	if err != nil {
		return err
	}
	defer done()

	c, ok := st.carts[cartID]
	if !ok {
		return models.ErrCartNotFound
	}
	c.AccountID = &accountID
	c.SessionToken = nil
	st.carts[cartID] = c
	return nil
}

func (q *querier) DeleteCart(ctx context.Context, cartID int64) error {
	st, done, err := q.begin(ctx)
	if err != nil {
		return err
	}
	defer done()

	delete(st.carts, cartID)
	st.clearCart(cartID)
	return nil
}

func (st *state) cartLine(item cartItem) models.CartLine {
	p := st.products[item.ProductID]
	return models.CartLine{
		ID:          item.ID,
		CartID:      item.CartID,
		ProductID:   item.ProductID,
		Quantity:    item.Quantity,
		ProductName: p.Name,
		Price:       p.Price,
		Stock:       p.Stock,
	}
}

func (q *querier) GetCartLines(ctx context.Context, cartID int64) ([]models.CartLine, error) {
	st, done, err := q.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer done()

	lines := []models.CartLine{}
	for _, item := range st.cartItems {
		if item.CartID == cartID {
			lines = append(lines, st.cartLine(item))
		}
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].ID < lines[j].ID })
	return lines, nil
}

func (q *querier) GetCartLine(ctx context.Context, lineID int64) (*models.CartLine, error) {
	st, done, err := q.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer done()

	item, ok := st.cartItems[lineID]
	if !ok {
		return nil, models.ErrCartLineNotFound
	}
	line := st.cartLine(item)
	return &line, nil
}

func (q *querier) FindCartLine(ctx context.Context, cartID, productID int64) (*models.CartLine, error) {
	st, done, err := q.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer done()

	for _, item := range st.cartItems {
		if item.CartID == cartID && item.ProductID == productID {
			line := st.cartLine(item)
			return &line, nil
		}
	}
	return nil, models.ErrCartLineNotFound
}

func (q *querier) InsertCartLine(ctx context.Context, cartID, productID int64, qty int) (int64, error) {
	st, done, err := q.begin(ctx)
	if err != nil {
		return 0, err
	}
	defer done()

	if _, ok := st.carts[cartID]; !ok {
		return 0, models.ErrCartNotFound
	}
	if _, ok := st.products[productID]; !ok {
		return 0, models.ErrProductNotFound
	}
	item := cartItem{ID: st.next("cart_items"), CartID: cartID, ProductID: productID, Quantity: qty}
	st.cartItems[item.ID] = item
	return item.ID, nil
}

func (q *querier) SetCartLineQuantity(ctx context.Context, lineID int64, qty int) error {
	st, done, err := q.begin(ctx)
	if err != nil {
		return err
	}
	defer done()

	item, ok := st.cartItems[lineID]
	if !ok {
		return models.ErrCartLineNotFound
	}
	item.Quantity = qty
	st.cartItems[lineID] = item
	return nil
}

func (q *querier) DeleteCartLine(ctx context.Context, cartID, lineID int64) (bool, error) {
	st, done, err := q.begin(ctx)
	if err != nil {
		return false, err
	}
	defer done()

	item, ok := st.cartItems[lineID]
	if !ok || item.CartID != cartID {
		return false, nil
	}
	delete(st.cartItems, lineID)
	return true, nil
}

func (q *querier) ClearCart(ctx context.Context, cartID int64) (int64, error) {
	st, done, err := q.begin(ctx)
	if err != nil {
		return 0, err
	}
	defer done()

	return st.clearCart(cartID), nil
}

func (st *state) clearCart(cartID int64) int64 {
	var removed int64
	for id, item := range st.cartItems {
		if item.CartID == cartID {
			delete(st.cartItems, id)
			removed++
		}
	}
	return removed
}

func (q *querier) CountCartLines(ctx context.Context, cartID int64) (int, error) {
	st, done, err := q.begin(ctx)
	if err != nil {
		return 0, err
	}
	defer done()

	count := 0
	for _, item := range st.cartItems {
		if item.CartID == cartID {
			count++
		}
	}
	return count, nil
}

func (q *querier) CreateOrder(ctx context.Context, order *models.Order) error {
	st, done, err := q.begin(ctx)
	if err != nil {
		return err
	}
	defer done()

	now := time.Now()
	order.ID = st.next("orders")
	order.CreatedAt = now
	order.UpdatedAt = now
	st.orders[order.ID] = *order
	return nil
}

func (q *querier) CreateOrderLine(ctx context.Context, line *models.OrderLine) error {
	st, done, err := q.begin(ctx)
	if err != nil {
		return err
	}
	defer done()

	if _, ok := st.orders[line.OrderID]; !ok {
		return models.ErrOrderNotFound
	}
	line.ID = st.next("order_items")
	st.orderLines[line.ID] = *line
	return nil
}

func (q *querier) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	st, done, err := q.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer done()

	o, ok := st.orders[id]
	if !ok {
		return nil, models.ErrOrderNotFound
	}
	return &o, nil
}

func (q *querier) LockOrder(ctx context.Context, id int64) (*models.Order, error) {
	return q.GetOrder(ctx, id)
}

func (q *querier) GetOrderLines(ctx context.Context, orderID int64) ([]models.OrderLine, error) {
	st, done, err := q.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer done()

	return st.linesOf(orderID), nil
}

func (st *state) linesOf(orderID int64) []models.OrderLine {
	lines := []models.OrderLine{}
	for _, line := range st.orderLines {
		if line.OrderID == orderID {
			lines = append(lines, line)
		}
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].ID < lines[j].ID })
	return lines
}

func (q *querier) UpdateOrderStatus(ctx context.Context, orderID int64, status models.OrderStatus, stockApplied bool) error {
	st, done, err := q.begin(ctx)
	if err != nil {
		return err
	}
	defer done()

	o, ok := st.orders[orderID]
	if !ok {
		return models.ErrOrderNotFound
	}
	o.Status = status
	o.StockApplied = stockApplied
	o.UpdatedAt = time.Now()
	st.orders[orderID] = o
	return nil
}

func (q *querier) CreateCancellation(ctx context.Context, c *models.Cancellation) error {
	st, done, err := q.begin(ctx)
	if err != nil {
		return err
	}
	defer done()

	c.ID = st.next("canceled_orders")
	c.CanceledAt = time.Now()
	st.cancellations = append(st.cancellations, *c)
	return nil
}

func (st *state) summary(o models.Order) models.OrderSummary {
	s := models.OrderSummary{
		OrderID:   o.ID,
		AccountID: o.AccountID,
		Date:      o.CreatedAt,
		Status:    o.Status,
		Total:     o.Total,
		ItemCount: len(st.linesOf(o.ID)),
	}
	if o.AccountID != nil {
		if a, ok := st.accounts[*o.AccountID]; ok {
			name := a.Name
			s.CustomerName = &name
		}
	}
	return s
}

func sortSummaries(orders []models.OrderSummary) {
	sort.Slice(orders, func(i, j int) bool {
		if !orders[i].Date.Equal(orders[j].Date) {
			return orders[i].Date.After(orders[j].Date)
		}
		return orders[i].OrderID > orders[j].OrderID
	})
}

func (q *querier) GetOrderHistory(ctx context.Context, accountID int64) ([]models.OrderSummary, error) {
	st, done, err := q.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer done()

	orders := []models.OrderSummary{}
	for _, o := range st.orders {
		if o.AccountID != nil && *o.AccountID == accountID {
			orders = append(orders, st.summary(o))
		}
	}
	sortSummaries(orders)
	return orders, nil
}

func (q *querier) ListOrders(ctx context.Context, status *models.OrderStatus) ([]models.OrderSummary, error) {
	st, done, err := q.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer done()

	orders := []models.OrderSummary{}
	for _, o := range st.orders {
		if status == nil || o.Status == *status {
			orders = append(orders, st.summary(o))
		}
	}
	sortSummaries(orders)
	return orders, nil
}

func (q *querier) ListCancellations(ctx context.Context) ([]models.Cancellation, error) {
	st, done, err := q.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer done()

	out := make([]models.Cancellation, 0, len(st.cancellations))
	for i := len(st.cancellations) - 1; i >= 0; i-- {
		c := st.cancellations[i]
		if c.OrderID != nil {
			if o, ok := st.orders[*c.OrderID]; ok {
				total, date := o.Total, o.CreatedAt
				c.OrderTotal = &total
				c.OrderDate = &date
				c.CustomerName = st.summary(o).CustomerName
			}
		}
		out = append(out, c)
	}
	return out, nil
}
