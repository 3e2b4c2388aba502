package records

import (
	"context"
	"slices"
)

type MemSource struct {
	snap Snapshot
}

// NewMemSource serves snap with images normalized like the other sources.
// The caller's slices are not modified.
func NewMemSource(snap Snapshot) *MemSource {
	snap.Products = normalizeProducts(slices.Clone(snap.Products))
	return &MemSource{snap: snap}
}

func (s *MemSource) Fetch(ctx context.Context) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}
	return s.snap, nil
}

// DemoSnapshot is served when no upstream is configured.
func DemoSnapshot() Snapshot {
	return Snapshot{
		Products: []Product{
			{ID: 1, Title: "Red Shirt", Category: "tops", Price: 19.9, Description: "Cotton shirt in bright red"},
			{ID: 2, Title: "Keyboard", Category: "electronics", Price: 49.9, Description: "Mechanical keyboard"},
			{ID: 3, Title: "Mouse", Category: "electronics", Price: 19.9, Description: "Wireless mouse"},
			{ID: 4, Title: "Blue Jeans", Category: "bottoms", Price: 59.0, Description: "Slim fit denim"},
		},
		Users: []User{
			{ID: 1, FirstName: "Ann", LastName: "Lee"},
			{ID: 2, FirstName: "Bob", LastName: "Stone"},
			{ID: 3, FirstName: "Cara", LastName: "Diaz"},
		},
	}
}
