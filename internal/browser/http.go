package browser

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"CatalogLens/internal/browse"
	"CatalogLens/internal/records"
	"CatalogLens/pkg/kit"
)

const (
	maxBodyBytes   = 64 << 10
	maxQueryLen    = 512
	readyTimeout   = 1 * time.Second
	refreshTimeout = 15 * time.Second
	maxWait        = 5 * time.Second
)

type Server struct {
	Store    *records.Store
	Sessions *browse.Manager
	Tokens   *TokenMaker
	Log      *zap.Logger

	// Invalidate, when set, runs before an operator refresh so cached
	// snapshots are bypassed.
	Invalidate func(ctx context.Context) error
}

type createSessionResp struct {
	SessionID string `json:"session_id"`
	Token     string `json:"token"`
}

type queryReq struct {
	Text string `json:"text"`
}

type viewportReq struct {
	Height    *int `json:"height,omitempty"`
	ScrollTop *int `json:"scroll_top,omitempty"`
}

type likeResp struct {
	ID    int  `json:"id"`
	Liked bool `json:"liked"`
}

type windowResp struct {
	State browse.State `json:"state"`
	Frame browse.Frame `json:"frame"`
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	if err := s.Store.Ping(ctx); err != nil {
		s.Log.Warn("readyz failed", zap.Error(err))
		status, lastErr := s.Store.Status()
		details := map[string]any{"records": status}
		if lastErr != nil {
			details["cause"] = lastErr.Error()
		}
		kit.WriteError(w, r, http.StatusServiceUnavailable, "not ready", details)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess := s.Sessions.Create()

	tok, err := s.Tokens.New(sess.ID)
	if err != nil {
		s.Sessions.Remove(sess.ID)
		s.Log.Error("token issue", zap.Error(err))
		kit.WriteError(w, r, http.StatusInternalServerError, "server error", nil)
		return
	}

	s.Log.Info("session created", zap.String("session_id", sess.ID))
	kit.WriteJSON(w, http.StatusCreated, createSessionResp{SessionID: sess.ID, Token: tok})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), refreshTimeout)
	defer cancel()

	if s.Invalidate != nil {
		if err := s.Invalidate(ctx); err != nil {
			s.Log.Warn("cache invalidate failed", zap.Error(err))
		}
	}

	p, err := s.Store.Refresh(ctx)
	if err != nil {
		s.writeRefreshError(w, r, err)
		return
	}

	kit.WriteJSON(w, http.StatusOK, map[string]any{
		"version":  p.Version,
		"products": len(p.Snapshot.Products),
		"users":    len(p.Snapshot.Users),
	})
}

func (s *Server) writeRefreshError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, records.ErrUpstreamUnavailable), errors.Is(err, context.DeadlineExceeded):
		kit.WriteError(w, r, http.StatusServiceUnavailable, "upstream unavailable", nil)
	case errors.Is(err, records.ErrUpstreamBadStatus):
		kit.WriteError(w, r, http.StatusBadGateway, "upstream error", nil)
	default:
		s.Log.Error("refresh failed", zap.Error(err))
		kit.WriteError(w, r, http.StatusInternalServerError, "server error", nil)
	}
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	sess := mustSession(r)
	kit.WriteJSON(w, http.StatusOK, sess.State())
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	sess := mustSession(r)
	s.Sessions.Remove(sess.ID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryReq
	if err := kit.DecodeJSON(w, r, &req, maxBodyBytes); err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad json", map[string]any{"cause": err.Error()})
		return
	}
	if len(req.Text) > maxQueryLen {
		kit.WriteError(w, r, http.StatusBadRequest, "query too long", map[string]any{"max_len": maxQueryLen})
		return
	}

	sess := mustSession(r)
	sess.Input(req.Text)
	kit.WriteJSON(w, http.StatusAccepted, sess.State())
}

func (s *Server) handleToggleLike(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad product id", nil)
		return
	}

	liked, err := mustSession(r).Toggle(id)
	if errors.Is(err, browse.ErrUnknownProduct) {
		kit.WriteError(w, r, http.StatusNotFound, "not found", map[string]any{"id": id})
		return
	}
	if err != nil {
		kit.WriteError(w, r, http.StatusInternalServerError, "server error", nil)
		return
	}

	kit.WriteJSON(w, http.StatusOK, likeResp{ID: id, Liked: liked})
}

func (s *Server) handleViewport(w http.ResponseWriter, r *http.Request) {
	var req viewportReq
	if err := kit.DecodeJSON(w, r, &req, maxBodyBytes); err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad json", map[string]any{"cause": err.Error()})
		return
	}

	sess := mustSession(r)
	applyViewport(sess, req)
	kit.WriteJSON(w, http.StatusOK, windowResp{State: sess.State(), Frame: sess.Frame()})
}

func applyViewport(sess *browse.Session, req viewportReq) {
	if req.Height != nil {
		sess.Resize(*req.Height)
	}
	if req.ScrollTop != nil {
		sess.Scroll(*req.ScrollTop)
	}
}

// handleWindow returns the current frame. With wait=1 it first waits for the
// pending recompute to land.
func (s *Server) handleWindow(w http.ResponseWriter, r *http.Request) {
	sess := mustSession(r)

	if v := r.URL.Query().Get("scroll_top"); v != "" {
		top, err := strconv.Atoi(v)
		if err != nil {
			kit.WriteError(w, r, http.StatusBadRequest, "bad scroll_top", nil)
			return
		}
		sess.Scroll(top)
	}

	if wait, _ := strconv.ParseBool(r.URL.Query().Get("wait")); wait {
		ctx, cancel := context.WithTimeout(r.Context(), maxWait)
		defer cancel()
		if err := sess.Wait(ctx); err != nil {
			kit.WriteError(w, r, http.StatusGatewayTimeout, "timeout", nil)
			return
		}
	}

	kit.WriteJSON(w, http.StatusOK, windowResp{State: sess.State(), Frame: sess.Frame()})
}

func mustSession(r *http.Request) *browse.Session {
	sess, ok := SessionFromContext(r.Context())
	if !ok {
		panic("browser: session route without SessionAuth")
	}
	return sess
}
