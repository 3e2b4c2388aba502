package records

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

const defaultFetchLimit = 200

// HTTPSource reads both collections from a dummyjson-style API.
type HTTPSource struct {
	BaseURL string
	Limit   int
	Client  *http.Client
}

func NewHTTPSource(baseURL string, limit int) *HTTPSource {
	if u, err := url.Parse(baseURL); err == nil && u.Scheme != "" && u.Host != "" {
		baseURL = strings.TrimRight(baseURL, "/")
	}
	if limit <= 0 {
		limit = defaultFetchLimit
	}
	return &HTTPSource{
		BaseURL: baseURL,
		Limit:   limit,
		Client:  &http.Client{Timeout: 5 * time.Second},
	}
}

type productsPage struct {
	Products []Product `json:"products"`
}

type usersPage struct {
	Users []User `json:"users"`
}

func (s *HTTPSource) Fetch(ctx context.Context) (Snapshot, error) {
	var (
		pp productsPage
		up usersPage
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.getJSON(gctx, "/products", &pp)
	})
	g.Go(func() error {
		return s.getJSON(gctx, "/users", &up)
	})
	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}

	return Snapshot{
		Products: normalizeProducts(pp.Products),
		Users:    up.Users,
	}, nil
}

func (s *HTTPSource) getJSON(ctx context.Context, path string, out any) error {
	u := fmt.Sprintf("%s%s?limit=%d", s.BaseURL, path, s.Limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}

	resp, err := s.Client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return ctx.Err()
		}
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return fmt.Errorf("%w: %s timed out", ErrUpstreamUnavailable, path)
		}
		return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%w: %s status=%d", ErrUpstreamBadStatus, path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func normalizeProducts(ps []Product) []Product {
	for i := range ps {
		if ps[i].Images == nil {
			ps[i].Images = []string{}
		}
	}
	return ps
}
