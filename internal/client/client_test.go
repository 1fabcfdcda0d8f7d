package client

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"fsanano/storefront/internal/model"

	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransport_SetsHeaders(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "42", r.Header.Get("X-User-ID"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Equal(t, "br", r.Header.Get("Accept-Encoding"))
		assert.Equal(t, "p-1:inventory", r.Header.Get("Idempotency-Key"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true,"inventory":2}`))
	}))
	defer ts.Close()

	c := NewClient(Config{BaseURL: ts.URL, UserID: 42})
	ctx := WithIdempotencyKey(context.Background(), "p-1:inventory")

	inv, err := c.ChangeInventory(ctx, 7, -3)
	require.NoError(t, err)
	assert.Equal(t, 2, inv)
}

func TestDo_DecodesBrotli(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		bw := brotli.NewWriter(&buf)
		bw.Write([]byte(`{"success":true,"deposit":70.53}`))
		bw.Close()

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Encoding", "br")
		w.Write(buf.Bytes())
	}))
	defer ts.Close()

	c := NewClient(Config{BaseURL: ts.URL, UserID: 1})
	deposit, err := c.Deposit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "70.53", deposit.String())
}

func TestListProducts_Cache(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/products" {
			calls.Add(1)
		}
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/products":
			w.Write([]byte(`{"success":true,"products":[{"id":1,"name":"Lamp","price":9.99,"inventory":5}]}`))
		default:
			w.Write([]byte(`{"success":true}`))
		}
	}))
	defer ts.Close()

	now := time.Now()
	c := NewClient(Config{BaseURL: ts.URL, CacheTTL: time.Minute})
	c.now = func() time.Time { return now }
	ctx := context.Background()

	products, err := c.ListProducts(ctx)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "9.99", products[0].Price.String())

	_, err = c.ListProducts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())

	now = now.Add(2 * time.Minute)
	_, err = c.ListProducts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())

	require.NoError(t, c.UpdatePrice(ctx, 1, model.MustMoney("5")))
	_, err = c.ListProducts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestDo_ServiceErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		message string
	}{
		{"failure envelope", http.StatusConflict, `{"success":false,"message":"insufficient deposit"}`, "insufficient deposit"},
		{"success false on 200", http.StatusOK, `{"success":false,"message":"nope"}`, "nope"},
		{"plain text error", http.StatusBadGateway, "upstream down", "upstream down"},
		{"empty error body", http.StatusInternalServerError, "", "Internal Server Error"},
		{"malformed json", http.StatusOK, "{", "malformed response body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer ts.Close()

			c := NewClient(Config{BaseURL: ts.URL, UserID: 1})
			_, err := c.MinusDeposit(context.Background(), model.MustMoney("29.97"))

			var svcErr *ServiceError
			require.ErrorAs(t, err, &svcErr)
			assert.Equal(t, tt.status, svcErr.StatusCode)
			assert.Equal(t, tt.message, svcErr.Message)
		})
	}
}

func TestDo_NetworkError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := ts.URL
	ts.Close()

	c := NewClient(Config{BaseURL: url, UserID: 1})
	_, err := c.Username(context.Background())

	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, http.MethodGet, netErr.Method)
	assert.Equal(t, "/user/username", netErr.Path)
}

func TestDo_ContextCanceled(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true}`))
	}))
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewClient(Config{BaseURL: ts.URL, UserID: 1})
	_, err := c.Deposit(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestValidation_SendsNothing(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer ts.Close()

	c := NewClient(Config{BaseURL: ts.URL, UserID: 1})
	ctx := context.Background()

	_, err := c.ChangeInventory(ctx, 1, 0)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = c.MinusDeposit(ctx, model.MustMoney("0"))
	assert.ErrorIs(t, err, ErrValidation)
	_, err = c.PlaceOrder(ctx, 1, 0)
	assert.ErrorIs(t, err, ErrValidation)
	assert.ErrorIs(t, c.UpdatePrice(ctx, 1, model.MustMoney("-1")), ErrValidation)
	assert.ErrorIs(t, c.UpdateRole(ctx, 1, "root"), ErrValidation)
	_, err = c.AddProduct(ctx, model.Product{Name: " "})
	assert.ErrorIs(t, err, ErrValidation)

	assert.Zero(t, calls.Load())
}

func TestAdminAccess(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusForbidden)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		code := int(status.Load())
		w.WriteHeader(code)
		if code == http.StatusOK {
			w.Write([]byte(`{"success":true}`))
			return
		}
		w.Write([]byte(`{"success":false,"message":"admin access required"}`))
	}))
	defer ts.Close()

	c := NewClient(Config{BaseURL: ts.URL, UserID: 1})

	ok, err := c.AdminAccess(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	status.Store(http.StatusOK)
	ok, err = c.AdminAccess(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
}
