package records

import (
	"context"
	"errors"
)

type Product struct {
	ID          int      `json:"id"`
	Title       string   `json:"title"`
	Category    string   `json:"category"`
	Price       float64  `json:"price"`
	Description string   `json:"description"`
	Images      []string `json:"images"`
}

type User struct {
	ID        int    `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// Snapshot is one consistent delivery of both collections. Callers must not
// mutate the slices after handing a Snapshot to the Store.
type Snapshot struct {
	Products []Product `json:"products"`
	Users    []User    `json:"users"`
}

type Source interface {
	Fetch(ctx context.Context) (Snapshot, error)
}

var (
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrUpstreamBadStatus   = errors.New("upstream bad status")
	ErrNotLoaded           = errors.New("records not loaded")
)
