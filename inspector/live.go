// CLAUDE:SUMMARY Live websocket session: load a page, pick elements, type debounced queries and receive highlighted results as {type, payload} frames.
package inspector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/hazyhaar/superx/dom"
	"github.com/hazyhaar/superx/fetcher"
	"github.com/hazyhaar/superx/highlight"
	"github.com/hazyhaar/superx/idgen"
	"github.com/hazyhaar/superx/kit"
	"github.com/hazyhaar/superx/locate"
	"github.com/hazyhaar/superx/xpathgen"
)

// Frame is the envelope of every live message in both directions.
type Frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Client frame types.
const (
	FrameLoad     = "load"     // PageRef
	FrameQuery    = "query"    // liveQuery, debounced
	FramePick     = "pick"     // locate.Locator
	FrameClear    = "clear"    // no payload
	FrameSnapshot = "snapshot" // no payload
	FrameClose    = "close"    // no payload
)

// Server frame types.
const (
	FrameReady   = "ready"
	FrameLoaded  = "loaded"
	FrameResult  = "result"
	FramePaths   = "paths"
	FrameCleared = "cleared"
	FrameHTML    = "html"
	FrameError   = "error"
)

const liveReadLimit = 16 << 20

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// liveError is the payload of an error frame. Invalid marks a bad XPath,
// which the session reports without ending.
type liveError struct {
	For     string `json:"for"`
	Error   string `json:"error"`
	Invalid bool   `json:"invalid,omitempty"`
}

type loadedPayload struct {
	URL      string `json:"url"`
	Render   string `json:"render"`
	Hash     string `json:"hash"`
	Elements int    `json:"elements"`
}

type clearedPayload struct {
	Removed int `json:"removed"`
}

// liveSession owns one page and its highlight state. Only run touches it.
type liveSession struct {
	id       string
	svc      *Service
	conn     *websocket.Conn
	logger   *slog.Logger
	page     *fetcher.Page
	matches  *highlight.Marks
	hover    *highlight.Marks
	debounce *debouncer
}

func (s *Service) handleLive(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("inspector: live upgrade failed", "error", err)
		return
	}
	conn.SetReadLimit(liveReadLimit)

	ls := &liveSession{
		id:       idgen.Session(),
		svc:      s,
		conn:     conn,
		debounce: newDebouncer(s.cfg.Live.Debounce),
	}
	ls.logger = s.logger.With("session", ls.id)

	ctx := withRemote(kit.WithSessionID(kit.WithTransport(r.Context(), "ws"), ls.id))
	ls.run(ctx)
}

func (ls *liveSession) run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer ls.conn.Close()
	defer ls.debounce.stop()

	ls.logger.Info("inspector: live session opened")
	defer ls.logger.Info("inspector: live session closed")

	if err := ls.send(FrameReady, map[string]string{"session_id": ls.id}); err != nil {
		return
	}

	in := make(chan Frame)
	readErr := make(chan error, 1)
	go func() {
		for {
			var f Frame
			if err := ls.conn.ReadJSON(&f); err != nil {
				readErr <- err
				return
			}
			select {
			case in <- f:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case err := <-readErr:
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				ls.logger.Debug("inspector: live read ended", "error", err)
			}
			return

		case <-ls.debounce.timerC():
			if q, ok := ls.debounce.take(); ok {
				if err := ls.query(q); err != nil {
					return
				}
			}

		case f := <-in:
			if f.Type == FrameClose {
				ls.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := ls.dispatch(ctx, f); err != nil {
				return
			}
		}
	}
}

// dispatch handles one client frame. A returned error means the socket is
// no longer writable.
func (ls *liveSession) dispatch(ctx context.Context, f Frame) error {
	switch f.Type {
	case FrameLoad:
		var ref PageRef
		if err := decodePayload(f, &ref); err != nil {
			return ls.fail(f.Type, err, false)
		}
		return ls.load(ctx, ref)

	case FrameQuery:
		var q liveQuery
		if err := decodePayload(f, &q); err != nil {
			return ls.fail(f.Type, err, false)
		}
		ls.debounce.add(q)
		return nil

	case FramePick:
		var loc locate.Locator
		if err := decodePayload(f, &loc); err != nil {
			return ls.fail(f.Type, err, false)
		}
		return ls.pick(loc)

	case FrameClear:
		ls.debounce.stop()
		return ls.send(FrameCleared, clearedPayload{Removed: ls.clear()})

	case FrameSnapshot:
		if ls.page == nil {
			return ls.fail(f.Type, errNoPage, false)
		}
		// The stylesheet only lives in the rendered copy so later picks and
		// queries see the page as loaded.
		added := highlight.EnsureStyles(ls.page.Doc)
		out := dom.OuterHTML(ls.page.Doc)
		if added {
			highlight.RemoveStyles(ls.page.Doc)
		}
		return ls.send(FrameHTML, map[string]string{"html": out})
	}
	return ls.fail(f.Type, fmt.Errorf("unknown frame type %q", f.Type), false)
}

var errNoPage = errors.New("inspector: no page loaded")

func (ls *liveSession) load(ctx context.Context, ref PageRef) error {
	ls.debounce.stop()
	page, err := ls.svc.Load(ctx, ref)
	if err != nil {
		return ls.fail(FrameLoad, err, false)
	}
	ls.page, ls.matches, ls.hover = page, nil, nil
	return ls.send(FrameLoaded, loadedPayload{
		URL:      page.URL,
		Render:   string(page.Render),
		Hash:     page.Hash,
		Elements: len(dom.Elements(page.Doc)),
	})
}

// query evaluates q, replacing the previous match highlights. An empty
// expression only clears them.
func (ls *liveSession) query(q liveQuery) error {
	if ls.page == nil {
		return ls.fail(FrameQuery, errNoPage, false)
	}
	if strings.TrimSpace(q.Expr) == "" {
		return ls.send(FrameCleared, clearedPayload{Removed: ls.clearMatches()})
	}

	ls.clearMatches()
	resp, ms, err := ls.svc.query(ls.page, q.Expr, q.Limit, q.Preview)
	if err != nil {
		return ls.fail(FrameQuery, err, true)
	}
	ls.matches = highlight.Mark(ms, len(resp.Matches))
	return ls.send(FrameResult, resp)
}

// pick marks the first element selected by loc as hovered and returns its paths.
func (ls *liveSession) pick(loc locate.Locator) error {
	if ls.page == nil {
		return ls.fail(FramePick, errNoPage, false)
	}
	if loc.Kind == "" {
		loc.Kind = locate.KindCSS
	}
	n, err := locate.First(ls.page.Doc, loc)
	if err != nil {
		return ls.fail(FramePick, err, errors.Is(err, xpathgen.ErrInvalidExpression))
	}
	if ls.hover != nil {
		ls.hover.Clear()
	}
	ls.hover = highlight.Hover(n)
	return ls.send(FramePaths, ls.svc.paths(n))
}

func (ls *liveSession) clearMatches() int {
	if ls.matches == nil {
		return 0
	}
	n := ls.matches.Len()
	ls.matches.Clear()
	ls.matches = nil
	return n
}

func (ls *liveSession) clear() int {
	n := ls.clearMatches()
	if ls.hover != nil {
		n += ls.hover.Len()
		ls.hover.Clear()
		ls.hover = nil
	}
	return n
}

func (ls *liveSession) fail(forType string, err error, invalid bool) error {
	ls.logger.Debug("inspector: live error", "for", forType, "error", err)
	return ls.send(FrameError, liveError{For: forType, Error: err.Error(), Invalid: invalid})
}

func (ls *liveSession) send(typ string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("inspector: live marshal %s: %w", typ, err)
	}
	if err := ls.conn.WriteJSON(Frame{Type: typ, Payload: data}); err != nil {
		ls.logger.Debug("inspector: live write failed", "type", typ, "error", err)
		return err
	}
	return nil
}

func decodePayload(f Frame, v any) error {
	if len(f.Payload) == 0 {
		return fmt.Errorf("%s: missing payload", f.Type)
	}
	if err := json.Unmarshal(f.Payload, v); err != nil {
		return fmt.Errorf("%s: %w", f.Type, err)
	}
	return nil
}
