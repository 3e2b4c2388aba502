package browse

import (
	"fmt"
	"strings"

	"CatalogLens/internal/records"
)

// JoinKey picks the user id a product is joined on. The second result is
// false when the product has no join key.
type JoinKey func(p records.Product) (int, bool)

const (
	JoinByProductID = "product-id"
	JoinNone        = "none"
)

func ParseJoinKey(name string) (JoinKey, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", JoinByProductID:
		return ByProductID, nil
	case JoinNone:
		return NoJoin, nil
	default:
		return nil, fmt.Errorf("unknown join key %q", name)
	}
}

// ByProductID joins a product to the user sharing its numeric id.
func ByProductID(p records.Product) (int, bool) { return p.ID, true }

func NoJoin(records.Product) (int, bool) { return 0, false }

type JoinIndex struct {
	byID map[int]records.User
}

func BuildJoinIndex(users []records.User) JoinIndex {
	m := make(map[int]records.User, len(users))
	for _, u := range users {
		m[u.ID] = u
	}
	return JoinIndex{byID: m}
}

func (ix JoinIndex) Lookup(id int) (records.User, bool) {
	u, ok := ix.byID[id]
	return u, ok
}

func (ix JoinIndex) Len() int { return len(ix.byID) }

// JoinedRecord is a product with its optional user. The lowercase search
// fields are filled at join time so filtering never re-lowercases.
type JoinedRecord struct {
	Product records.Product `json:"product"`
	User    *records.User   `json:"user,omitempty"`

	title, desc, first, last string
}

func Join(products []records.Product, ix JoinIndex, key JoinKey) []JoinedRecord {
	out := make([]JoinedRecord, len(products))
	for i, p := range products {
		jr := JoinedRecord{
			Product: p,
			title:   strings.ToLower(p.Title),
			desc:    strings.ToLower(p.Description),
		}
		if id, ok := key(p); ok {
			if u, found := ix.Lookup(id); found {
				u := u
				jr.User = &u
				jr.first = strings.ToLower(u.FirstName)
				jr.last = strings.ToLower(u.LastName)
			}
		}
		out[i] = jr
	}
	return out
}
