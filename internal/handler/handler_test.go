package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/xenking/storefront-orders/internal/domain/auth"
	"github.com/xenking/storefront-orders/internal/domain/customer"
	"github.com/xenking/storefront-orders/internal/domain/loyalty"
	"github.com/xenking/storefront-orders/internal/domain/order"
	"github.com/xenking/storefront-orders/internal/domain/product"
)

var createdAt = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

type customerRepo struct {
	mu        sync.Mutex
	customers []customer.Customer
}

func (r *customerRepo) Create(_ context.Context, c *customer.Customer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.customers {
		if existing.Email == c.Email {
			return customer.ErrEmailTaken
		}
	}
	c.ID = int64(len(r.customers) + 1)
	c.CreatedAt = createdAt
	r.customers = append(r.customers, *c)
	return nil
}

func (r *customerRepo) List(context.Context) ([]customer.Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]customer.Customer(nil), r.customers...), nil
}

func (r *customerRepo) GetByID(_ context.Context, id int64) (*customer.Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.customers {
		if r.customers[i].ID == id {
			c := r.customers[i]
			return &c, nil
		}
	}
	return nil, customer.ErrNotFound
}

type productRepo struct {
	products []product.Product
}

func (r *productRepo) Create(_ context.Context, p *product.Product) error {
	p.ID = int64(len(r.products) + 1)
	p.CreatedAt = createdAt
	r.products = append(r.products, *p)
	return nil
}

func (r *productRepo) List(_ context.Context, f product.Filter) ([]product.Product, error) {
	var out []product.Product
	for _, p := range r.products {
		if f.Name != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(f.Name)) {
			continue
		}
		if f.Category != "" && p.Category != f.Category {
			continue
		}
		if f.MaxPrice.Valid && p.Price.GreaterThan(f.MaxPrice.Decimal) {
			continue
		}
		if f.Description != "" && !strings.Contains(strings.ToLower(p.Description), strings.ToLower(f.Description)) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (r *productRepo) GetByID(_ context.Context, id int64) (*product.Product, error) {
	for i := range r.products {
		if r.products[i].ID == id {
			p := r.products[i]
			return &p, nil
		}
	}
	return nil, product.ErrNotFound
}

// orderStore applies a transaction's writes only when fn succeeds.
type orderStore struct {
	mu        sync.Mutex
	standings map[int64]order.Standing
	prices    map[int64]decimal.Decimal
	orders    map[int64]*order.Order
	nextID    int64
	err       error
}

func newOrderStore() *orderStore {
	return &orderStore{
		standings: map[int64]order.Standing{},
		prices:    map[int64]decimal.Decimal{},
		orders:    map[int64]*order.Order{},
	}
}

func (s *orderStore) InTx(ctx context.Context, fn func(ctx context.Context, tx order.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	tx := &orderTx{s: s, standings: map[int64]order.Standing{}, orders: map[int64]*order.Order{}}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	for id, st := range tx.standings {
		s.standings[id] = st
	}
	for id, o := range tx.orders {
		s.orders[id] = o
	}
	return nil
}

func (s *orderStore) GetByID(_ context.Context, id int64) (*order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	return o, nil
}

type orderTx struct {
	s         *orderStore
	standings map[int64]order.Standing
	orders    map[int64]*order.Order
}

func (t *orderTx) LockCustomer(_ context.Context, id int64) (order.Standing, error) {
	st, ok := t.s.standings[id]
	if !ok {
		return order.Standing{}, customer.ErrNotFound
	}
	return st, nil
}

func (t *orderTx) ProductPrice(_ context.Context, id int64) (decimal.Decimal, error) {
	p, ok := t.s.prices[id]
	if !ok {
		return decimal.Zero, product.ErrNotFound
	}
	return p, nil
}

func (t *orderTx) CreateOrder(_ context.Context, customerID int64) (int64, time.Time, error) {
	t.s.nextID++
	t.orders[t.s.nextID] = &order.Order{ID: t.s.nextID, CustomerID: customerID, CreatedAt: createdAt}
	return t.s.nextID, createdAt, nil
}

func (t *orderTx) AddItem(_ context.Context, orderID int64, item order.Item) (int64, error) {
	o := t.orders[orderID]
	item.ID = int64(len(o.Items) + 1)
	o.Items = append(o.Items, item)
	return item.ID, nil
}

func (t *orderTx) SetTotals(_ context.Context, orderID int64, total, discount decimal.Decimal) error {
	t.orders[orderID].Total = total
	t.orders[orderID].Discount = discount
	return nil
}

func (t *orderTx) UpdateStanding(_ context.Context, customerID int64, st order.Standing) error {
	t.standings[customerID] = st
	return nil
}

type keyRepo map[string]*auth.APIKeyInfo

func (r keyRepo) FindByHash(_ context.Context, hash string) (*auth.APIKeyInfo, error) {
	info, ok := r[hash]
	if !ok {
		return nil, errors.New("not found")
	}
	return info, nil
}

type testEnv struct {
	customers *customerRepo
	products  *productRepo
	orders    *orderStore
	mux       *http.ServeMux
}

func newTestEnv(t *testing.T, cfg HandlerConfig) *testEnv {
	t.Helper()
	env := &testEnv{
		customers: &customerRepo{},
		products:  &productRepo{},
		orders:    newOrderStore(),
		mux:       http.NewServeMux(),
	}
	orders, err := order.NewService(env.orders, loyalty.Default())
	require.NoError(t, err)

	NewHandler(cfg,
		customer.NewService(env.customers, customer.WithHashCost(bcrypt.MinCost)),
		product.NewService(env.products),
		orders,
	).Register(env.mux)
	return env
}

func (env *testEnv) do(method, target, body string, headers ...string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	env.mux.ServeHTTP(w, req)
	return w
}

func TestCreateCustomer(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
		want   string
	}{
		{
			name:   "created",
			body:   `{"name":"Ana","email":"Ana@Example.com","password":"s3cret"}`,
			status: http.StatusCreated,
			want:   `{"id":1,"name":"Ana","email":"ana@example.com"}`,
		},
		{
			name:   "missing fields",
			body:   `{"name":"Ana"}`,
			status: http.StatusBadRequest,
			want:   `{"error":"invalid request","details":{"email":"required","password":"required"}}`,
		},
		{
			name:   "unknown field",
			body:   `{"name":"Ana","email":"a@b.co","password":"x","senha":"x"}`,
			status: http.StatusBadRequest,
			want:   `{"error":"invalid request","details":{"senha":"unknown_field"}}`,
		},
		{
			name:   "wrong type",
			body:   `{"name":7,"email":"a@b.co","password":"x"}`,
			status: http.StatusBadRequest,
			want:   `{"error":"invalid request","details":{"name":"must_be_string"}}`,
		},
		{
			name:   "invalid email",
			body:   `{"name":"Ana","email":"not-an-email","password":"x"}`,
			status: http.StatusBadRequest,
			want:   `{"error":"invalid request","details":{"email":"invalid_format"}}`,
		},
		{
			name:   "role not accepted",
			body:   `{"name":"Eve","email":"eve@x.co","password":"x","role":"admin"}`,
			status: http.StatusBadRequest,
			want:   `{"error":"invalid request","details":{"role":"unknown_field"}}`,
		},
		{
			name:   "malformed json",
			body:   `{"name":`,
			status: http.StatusBadRequest,
			want:   `{"error":"invalid request","details":{"body":"invalid_json"}}`,
		},
		{
			name:   "not an object",
			body:   `[1,2]`,
			status: http.StatusBadRequest,
			want:   `{"error":"invalid request","details":{"body":"must_be_object"}}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, HandlerConfig{})
			w := env.do(http.MethodPost, "/customers", tt.body)

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			assert.JSONEq(t, tt.want, w.Body.String())
		})
	}
}

func TestCreateCustomer_DuplicateEmail(t *testing.T) {
	env := newTestEnv(t, HandlerConfig{})
	body := `{"name":"Ana","email":"ana@example.com","password":"x"}`

	require.Equal(t, http.StatusCreated, env.do(http.MethodPost, "/customers", body).Code)

	w := env.do(http.MethodPost, "/customers", body)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.JSONEq(t, `{"error":"email already registered","details":{"email":"taken"}}`, w.Body.String())
}

func TestListCustomers_OmitsPassword(t *testing.T) {
	env := newTestEnv(t, HandlerConfig{})
	require.Equal(t, http.StatusCreated, env.do(http.MethodPost, "/customers",
		`{"name":"Ana","email":"ana@example.com","password":"hunter2"}`).Code)

	w := env.do(http.MethodGet, "/customers", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[{
		"id": 1, "name": "Ana", "email": "ana@example.com", "role": "regular",
		"created_at": "2026-03-01T10:00:00Z", "total_spent": 0.00, "loyal": false
	}]`, w.Body.String())
	assert.NotContains(t, w.Body.String(), "password")
	assert.NotContains(t, w.Body.String(), "$2a$")
}

func TestCreateCustomer_CannotChooseRole(t *testing.T) {
	env := newTestEnv(t, HandlerConfig{})

	w := env.do(http.MethodPost, "/customers", `{"name":"Eve","email":"eve@x.co","password":"x","role":"admin"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/customers/1", "").Code)

	require.Equal(t, http.StatusCreated, env.do(http.MethodPost, "/customers",
		`{"name":"Eve","email":"eve@x.co","password":"x"}`).Code)
	w = env.do(http.MethodGet, "/customers/1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"role":"regular"`)
}

func TestGetCustomer(t *testing.T) {
	env := newTestEnv(t, HandlerConfig{})
	require.Equal(t, http.StatusCreated, env.do(http.MethodPost, "/customers",
		`{"name":"Ana","email":"ana@example.com","password":"x"}`).Code)

	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/customers/1", "").Code)

	w := env.do(http.MethodGet, "/customers/2", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"customer not found"}`, w.Body.String())

	w = env.do(http.MethodGet, "/customers/abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"invalid request","details":{"id":"must_be_integer"}}`, w.Body.String())
}

func TestListCustomers_APIKey(t *testing.T) {
	pepper := []byte("pepper")
	keys := keyRepo{
		auth.HashKey(pepper, "reader"): {ID: "1", KeyHash: auth.HashKey(pepper, "reader"), Name: "reader", Scopes: []string{auth.ScopeReadCustomers}},
		auth.HashKey(pepper, "other"):  {ID: "2", KeyHash: auth.HashKey(pepper, "other"), Name: "other"},
	}
	env := newTestEnv(t, HandlerConfig{Authenticator: auth.NewAuthenticator(keys, pepper)})

	tests := []struct {
		name   string
		key    string
		status int
	}{
		{name: "missing key", key: "", status: http.StatusUnauthorized},
		{name: "unknown key", key: "nope", status: http.StatusUnauthorized},
		{name: "missing scope", key: "other", status: http.StatusForbidden},
		{name: "authorized", key: "reader", status: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(http.MethodGet, "/customers", "", apiKeyHeader, tt.key)
			assert.Equal(t, tt.status, w.Code)
		})
	}

	// Registration stays open.
	assert.Equal(t, http.StatusCreated, env.do(http.MethodPost, "/customers",
		`{"name":"Ana","email":"ana@example.com","password":"x"}`).Code)
}

func TestCreateProduct(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
		want   string
	}{
		{
			name:   "created",
			body:   `{"name":"Shirt","description":"Cotton","price":49.9,"stock":3,"image":"s.png","category":"roupas"}`,
			status: http.StatusCreated,
			want:   `{"id":1,"name":"Shirt","price":49.90}`,
		},
		{
			name:   "price as string",
			body:   `{"name":"Shirt","price":"12.50"}`,
			status: http.StatusCreated,
			want:   `{"id":1,"name":"Shirt","price":12.50}`,
		},
		{
			name:   "missing price",
			body:   `{"name":"Shirt"}`,
			status: http.StatusBadRequest,
			want:   `{"error":"invalid request","details":{"price":"required"}}`,
		},
		{
			name:   "negative price",
			body:   `{"name":"Shirt","price":-1}`,
			status: http.StatusBadRequest,
			want:   `{"error":"invalid request","details":{"price":"must_not_be_negative"}}`,
		},
		{
			name:   "fractional stock",
			body:   `{"name":"Shirt","price":1,"stock":1.5}`,
			status: http.StatusBadRequest,
			want:   `{"error":"invalid request","details":{"stock":"must_be_integer"}}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, HandlerConfig{})
			w := env.do(http.MethodPost, "/products", tt.body)

			assert.Equal(t, tt.status, w.Code)
			assert.JSONEq(t, tt.want, w.Body.String())
		})
	}
}

func TestCreateProduct_DefaultCategory(t *testing.T) {
	env := newTestEnv(t, HandlerConfig{})
	require.Equal(t, http.StatusCreated, env.do(http.MethodPost, "/products", `{"name":"Pen","price":2}`).Code)

	require.Len(t, env.products.products, 1)
	assert.Equal(t, product.DefaultCategory, env.products.products[0].Category)
}

func TestListProducts_Filters(t *testing.T) {
	env := newTestEnv(t, HandlerConfig{})
	for _, body := range []string{
		`{"name":"Blue Shirt","price":40,"category":"roupas","description":"cotton"}`,
		`{"name":"Red Shirt","price":60,"category":"roupas"}`,
		`{"name":"Mug","price":15,"category":"casa","description":"ceramic"}`,
	} {
		require.Equal(t, http.StatusCreated, env.do(http.MethodPost, "/products", body).Code)
	}

	tests := []struct {
		query string
		ids   []int64
	}{
		{query: "", ids: []int64{1, 2, 3}},
		{query: "?nome=shirt&preco=50", ids: []int64{1}},
		{query: "?name=SHIRT", ids: []int64{1, 2}},
		{query: "?categoria=casa", ids: []int64{3}},
		{query: "?category=roupas&price=60", ids: []int64{1, 2}},
		{query: "?descricao=ceram", ids: []int64{3}},
		{query: "?description=wool", ids: nil},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			w := env.do(http.MethodGet, "/products"+tt.query, "")
			require.Equal(t, http.StatusOK, w.Code)

			assert.Equal(t, tt.ids, responseIDs(t, w.Body.String()))
		})
	}

	w := env.do(http.MethodGet, "/products?preco=cheap", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"invalid request","details":{"price":"must_be_number"}}`, w.Body.String())
}

// responseIDs collects the "id" of every object in a JSON array.
func responseIDs(t *testing.T, body string) []int64 {
	t.Helper()
	var ids []int64
	err := jx.DecodeStr(body).Arr(func(d *jx.Decoder) error {
		return d.Obj(func(d *jx.Decoder, key string) error {
			if key != "id" {
				return d.Skip()
			}
			id, err := d.Int64()
			ids = append(ids, id)
			return err
		})
	})
	require.NoError(t, err)
	return ids
}

func TestGetProduct(t *testing.T) {
	env := newTestEnv(t, HandlerConfig{})
	require.Equal(t, http.StatusCreated, env.do(http.MethodPost, "/products", `{"name":"Pen","price":2.5,"stock":4}`).Code)

	w := env.do(http.MethodGet, "/products/1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{
		"id": 1, "name": "Pen", "description": "", "image": "", "category": "geral",
		"price": 2.50, "stock": 4, "created_at": "2026-03-01T10:00:00Z"
	}`, w.Body.String())

	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/products/9", "").Code)
}

func TestPlaceOrder(t *testing.T) {
	tests := []struct {
		name   string
		spent  string
		body   string
		status int
		want   string
	}{
		{
			name:   "regular customer",
			spent:  "0",
			body:   `{"customer_id":1,"items":[{"product_id":1,"quantity":2}]}`,
			status: http.StatusCreated,
			want:   `{"order_id":1,"subtotal":20.00,"discount":0.00,"total":20.00,"loyal":false}`,
		},
		{
			name:   "loyal customer",
			spent:  "1200",
			body:   `{"customer_id":1,"items":[{"product_id":1,"quantity":10}]}`,
			status: http.StatusCreated,
			want:   `{"order_id":1,"subtotal":100.00,"discount":10.00,"total":90.00,"loyal":true}`,
		},
		{
			name:   "crosses threshold",
			spent:  "990",
			body:   `{"customer_id":1,"items":[{"product_id":1,"quantity":1}]}`,
			status: http.StatusCreated,
			want:   `{"order_id":1,"subtotal":10.00,"discount":0.00,"total":10.00,"loyal":true}`,
		},
		{
			name:   "empty items",
			spent:  "0",
			body:   `{"customer_id":1,"items":[]}`,
			status: http.StatusBadRequest,
			want:   `{"error":"items required","details":{"items":"required"}}`,
		},
		{
			name:   "zero quantity",
			spent:  "0",
			body:   `{"customer_id":1,"items":[{"product_id":1,"quantity":0}]}`,
			status: http.StatusBadRequest,
			want:   `{"error":"quantity must be greater than 0 for product 1","details":{"quantity":"must_be_positive"}}`,
		},
		{
			name:   "item schema errors",
			spent:  "0",
			body:   `{"customer_id":1,"items":[{"product_id":"x"},5]}`,
			status: http.StatusBadRequest,
			want: `{"error":"invalid request","details":{
				"items[0].product_id":"must_be_integer",
				"items[0].quantity":"required",
				"items[1]":"must_be_object"}}`,
		},
		{
			name:   "missing product",
			spent:  "0",
			body:   `{"customer_id":1,"items":[{"product_id":1,"quantity":1},{"product_id":999,"quantity":1}]}`,
			status: http.StatusNotFound,
			want:   `{"error":"product 999 not found"}`,
		},
		{
			name:   "missing customer",
			spent:  "0",
			body:   `{"customer_id":7,"items":[{"product_id":1,"quantity":1}]}`,
			status: http.StatusNotFound,
			want:   `{"error":"customer 7 not found"}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, HandlerConfig{})
			env.orders.standings[1] = order.Standing{
				TotalSpent: decimal.RequireFromString(tt.spent),
				Loyal:      loyalty.Default().Qualifies(decimal.RequireFromString(tt.spent)),
			}
			env.orders.prices[1] = decimal.RequireFromString("10.00")

			w := env.do(http.MethodPost, "/orders", tt.body)

			assert.Equal(t, tt.status, w.Code)
			assert.JSONEq(t, tt.want, w.Body.String())
		})
	}
}

func TestPlaceOrder_MissingProductLeavesNoOrder(t *testing.T) {
	env := newTestEnv(t, HandlerConfig{})
	env.orders.standings[1] = order.Standing{TotalSpent: decimal.Zero}
	env.orders.prices[1] = decimal.RequireFromString("10.00")

	w := env.do(http.MethodPost, "/orders", `{"customer_id":1,"items":[{"product_id":1,"quantity":1},{"product_id":2,"quantity":1}]}`)

	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Empty(t, env.orders.orders)
	assert.True(t, env.orders.standings[1].TotalSpent.IsZero())
}

func TestPlaceOrder_TotalOutOfRange(t *testing.T) {
	env := newTestEnv(t, HandlerConfig{})
	env.orders.standings[1] = order.Standing{TotalSpent: decimal.Zero}
	env.orders.prices[1] = decimal.RequireFromString("99999999.99")

	w := env.do(http.MethodPost, "/orders", `{"customer_id":1,"items":[{"product_id":1,"quantity":101}]}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"invalid request","details":{"items":"total_out_of_range"}}`, w.Body.String())
	assert.Empty(t, env.orders.orders)
}

func TestPlaceOrder_StorageFailure(t *testing.T) {
	env := newTestEnv(t, HandlerConfig{})
	env.orders.err = errors.New("connection reset")

	w := env.do(http.MethodPost, "/orders", `{"customer_id":1,"items":[{"product_id":1,"quantity":1}]}`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, w.Body.String())
}

func TestGetOrder(t *testing.T) {
	env := newTestEnv(t, HandlerConfig{})
	env.orders.standings[1] = order.Standing{TotalSpent: decimal.RequireFromString("2000"), Loyal: true}
	env.orders.prices[1] = decimal.RequireFromString("19.99")
	env.orders.prices[2] = decimal.RequireFromString("5.01")
	require.Equal(t, http.StatusCreated, env.do(http.MethodPost, "/orders",
		`{"customer_id":1,"items":[{"product_id":1,"quantity":1},{"product_id":2,"quantity":3}]}`).Code)

	w := env.do(http.MethodGet, "/orders/1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{
		"id": 1, "customer_id": 1, "created_at": "2026-03-01T10:00:00Z",
		"total": 31.52, "discount": 3.50,
		"items": [
			{"id": 1, "product_id": 1, "quantity": 1, "unit_price": 19.99},
			{"id": 2, "product_id": 2, "quantity": 3, "unit_price": 5.01}
		]
	}`, w.Body.String())

	w = env.do(http.MethodGet, "/orders/2", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"order not found"}`, w.Body.String())
}
