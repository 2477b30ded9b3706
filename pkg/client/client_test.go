package client

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/mockmesh/internal/id"
	"github.com/getmockd/mockmesh/pkg/policy"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		addr    string
		wantErr bool
	}{
		{"http://orders:8080", false},
		{"https://orders.example.com/api/", false},
		{"orders:8080", true},
		{"ftp://orders", true},
		{"http://", true},
		{"", true},
	}
	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			err := (&Config{BaseAddress: tt.addr}).Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidAddress)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestResolve(t *testing.T) {
	c, err := New("orders", &Config{BaseAddress: "http://orders:8080/api"}, nil)
	require.NoError(t, err)

	u, err := c.Resolve("/api/checkout/cart")
	require.NoError(t, err)
	assert.Equal(t, "http://orders:8080/api/api/checkout/cart", u.String())

	u, err = c.Resolve("health?caller=a")
	require.NoError(t, err)
	assert.Equal(t, "http://orders:8080/api/health?caller=a", u.String())

	assert.Equal(t, "/api/", c.BaseURL().Path)
	assert.Equal(t, "orders", c.Name())
}

func TestSend_HeadersBodyAndPolicies(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		assert.Equal(t, "mesh", r.Header.Get("X-Caller"))
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "abc", string(body))
		if n == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	retry, err := (&policy.RetryDefinition{Retries: 1}).Compile(policy.Env{Name: "retry"})
	require.NoError(t, err)

	c, err := New("peer", &Config{
		BaseAddress: srv.URL,
		Headers:     map[string]string{"X-Caller": "mesh"},
	}, []policy.Policy{retry})
	require.NoError(t, err)

	resp, err := c.Send(context.Background(), http.MethodPost, "/api/node/a", []byte("abc"))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(2), calls.Load())
}

func TestNew_RejectsBadConfig(t *testing.T) {
	_, err := New("x", nil, nil)
	assert.Error(t, err)

	_, err = New("x", &Config{BaseAddress: "nope"}, nil)
	assert.ErrorIs(t, err, ErrInvalidAddress)
}

func TestSend_ForwardsRequestID(t *testing.T) {
	got := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got <- r.Header.Get(id.HeaderRequestID)
	}))
	defer srv.Close()

	c, err := New("peer", &Config{BaseAddress: srv.URL}, nil)
	require.NoError(t, err)

	resp, err := c.Send(id.NewContext(context.Background(), "req-7"), http.MethodGet, "/", nil)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "req-7", <-got)
}
