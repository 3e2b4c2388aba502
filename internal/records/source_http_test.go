package records

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPSource_Fetch(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "200", r.URL.Query().Get("limit"))
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/products":
			_, _ = w.Write([]byte(`{"products":[{"id":1,"title":"Red Shirt","category":"tops","price":19.9,"description":"cotton","images":["a.png"]},{"id":2,"title":"Mouse"}],"total":2}`))
		case "/users":
			_, _ = w.Write([]byte(`{"users":[{"id":1,"firstName":"Ann","lastName":"Lee","age":30}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer ts.Close()

	snap, err := NewHTTPSource(ts.URL+"/", 0).Fetch(context.Background())
	require.NoError(t, err)

	require.Len(t, snap.Products, 2)
	assert.Equal(t, "Red Shirt", snap.Products[0].Title)
	assert.Equal(t, []string{"a.png"}, snap.Products[0].Images)
	assert.NotNil(t, snap.Products[1].Images)
	assert.Equal(t, []User{{ID: 1, FirstName: "Ann", LastName: "Lee"}}, snap.Users)
}

func TestHTTPSource_BadStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/users" {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"products":[]}`))
	}))
	defer ts.Close()

	_, err := NewHTTPSource(ts.URL, 10).Fetch(context.Background())
	assert.ErrorIs(t, err, ErrUpstreamBadStatus)
}

func TestHTTPSource_Unreachable(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	_, err := NewHTTPSource(url, 10).Fetch(context.Background())
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
}
