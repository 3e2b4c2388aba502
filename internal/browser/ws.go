package browser

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"CatalogLens/internal/browse"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 30 * time.Second
	wsMaxMessage = 4 << 10
	wsOutBuffer  = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// clientMsg is what the page sends: keystrokes, like toggles and viewport
// changes.
type clientMsg struct {
	Type      string `json:"type"`
	Text      string `json:"text,omitempty"`
	ID        int    `json:"id,omitempty"`
	Height    *int   `json:"height,omitempty"`
	ScrollTop *int   `json:"scroll_top,omitempty"`
}

type serverMsg struct {
	Type    string        `json:"type"`
	State   *browse.State `json:"state,omitempty"`
	Frame   *browse.Frame `json:"frame,omitempty"`
	ID      int           `json:"id,omitempty"`
	Liked   *bool         `json:"liked,omitempty"`
	Code    string        `json:"code,omitempty"`
	Message string        `json:"message,omitempty"`
}

func updateMsg(sess *browse.Session) serverMsg {
	st := sess.State()
	f := sess.Frame()
	return serverMsg{Type: "update", State: &st, Frame: &f}
}

func errorMsg(code, msg string) serverMsg {
	return serverMsg{Type: "error", Code: code, Message: msg}
}

// handleWS streams the session over a websocket. Every state or frame change
// is pushed as an update; bursts of changes collapse into one update.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	sess := mustSession(r)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	log := s.Log.With(zap.String("session_id", sess.ID))
	log.Info("websocket connected")

	ticks, unsubscribe := sess.Subscribe()
	defer unsubscribe()

	out := make(chan serverMsg, wsOutBuffer)
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		s.wsReadLoop(conn, sess, out, log)
	}()

	s.wsWriteLoop(conn, sess, ticks, out, readDone, log)
	log.Info("websocket disconnected")
}

func (s *Server) wsWriteLoop(conn *websocket.Conn, sess *browse.Session, ticks <-chan struct{}, out <-chan serverMsg, readDone <-chan struct{}, log *zap.Logger) {
	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	write := func(m serverMsg) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := conn.WriteJSON(m); err != nil {
			log.Debug("websocket write failed", zap.Error(err))
			return false
		}
		return true
	}

	if !write(updateMsg(sess)) {
		return
	}

	for {
		select {
		case <-readDone:
			return
		case _, ok := <-ticks:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"),
					time.Now().Add(wsWriteWait))
				return
			}
			if !write(updateMsg(sess)) {
				return
			}
		case m := <-out:
			if !write(m) {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		}
	}
}

func (s *Server) wsReadLoop(conn *websocket.Conn, sess *browse.Session, out chan<- serverMsg, log *zap.Logger) {
	conn.SetReadLimit(wsMaxMessage)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("websocket read failed", zap.Error(err))
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))

		var msg clientMsg
		if err := json.Unmarshal(raw, &msg); err != nil {
			send(out, errorMsg("invalid_json", "failed to parse message"))
			continue
		}

		if reply, ok := handleClientMsg(sess, msg); ok {
			send(out, reply)
		}
	}
}

// handleClientMsg applies one client message. State changes surface through
// the session subscription; only direct answers are returned here.
func handleClientMsg(sess *browse.Session, msg clientMsg) (serverMsg, bool) {
	switch msg.Type {
	case "input":
		if len(msg.Text) > maxQueryLen {
			return errorMsg("query_too_long", "query too long"), true
		}
		sess.Input(msg.Text)
	case "toggle":
		liked, err := sess.Toggle(msg.ID)
		if errors.Is(err, browse.ErrUnknownProduct) {
			return errorMsg("not_found", "unknown product"), true
		}
		return serverMsg{Type: "liked", ID: msg.ID, Liked: &liked}, true
	case "viewport":
		applyViewport(sess, viewportReq{Height: msg.Height, ScrollTop: msg.ScrollTop})
	case "scroll":
		if msg.ScrollTop != nil {
			sess.Scroll(*msg.ScrollTop)
		}
	case "ping":
		return serverMsg{Type: "pong"}, true
	default:
		return errorMsg("unknown_type", "unknown message type: "+msg.Type), true
	}
	return serverMsg{}, false
}

// send drops the reply when the writer is backed up; the next update carries
// the state anyway.
func send(out chan<- serverMsg, m serverMsg) {
	select {
	case out <- m:
	default:
	}
}
