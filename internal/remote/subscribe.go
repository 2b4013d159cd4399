package remote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Subscribe implements Authority over a websocket change stream.
//
// The returned subscription connects in the background and reconnects after
// resubscribeDelay whenever the stream drops. Every successful reconnect
// delivers a synthetic ChangeResync event before live events resume.
func (c *Client) Subscribe(ctx context.Context, scope Scope, handler func(ChangeEvent)) (Subscription, error) {
	if scope != ScopeProducts && scope != ScopeSales {
		return nil, fmt.Errorf("subscribe: unknown scope %q", scope)
	}
	if handler == nil {
		return nil, errors.New("subscribe: nil handler")
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &wsSubscription{
		client:  c,
		scope:   scope,
		handler: handler,
		cancel:  cancel,
		done:    make(chan struct{}),
		logger:  c.logger.With("scope", string(scope)),
	}
	go s.run(ctx)
	return s, nil
}

type wsSubscription struct {
	client  *Client
	scope   Scope
	handler func(ChangeEvent)
	cancel  context.CancelFunc
	done    chan struct{}
	logger  *slog.Logger

	mu   sync.Mutex
	conn *websocket.Conn
	once sync.Once
}

// Cancel stops the stream and waits for the reader goroutine. It must not be
// called from the handler.
func (s *wsSubscription) Cancel() {
	s.once.Do(func() {
		s.cancel()
		s.mu.Lock()
		if s.conn != nil {
			s.conn.Close()
		}
		s.mu.Unlock()
	})
	<-s.done
}

func (s *wsSubscription) run(ctx context.Context) {
	defer close(s.done)

	connected := false
	for {
		conn, err := s.dial(ctx)
		if err == nil {
			if connected {
				s.handler(ChangeEvent{Scope: s.scope, Kind: ChangeResync})
			}
			connected = true
			err = s.read(ctx, conn)
		}
		if ctx.Err() != nil {
			return
		}
		s.logger.Warn("change stream dropped", "error", err, "retry_in", s.client.resubscribeDelay)

		t := time.NewTimer(s.client.resubscribeDelay)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}

func (s *wsSubscription) dial(ctx context.Context) (*websocket.Conn, error) {
	u := *s.client.base
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path += PathChanges
	u.RawQuery = url.Values{"scope": {string(s.scope)}}.Encode()

	conn, resp, err := s.client.dialer.DialContext(ctx, u.String(), nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if ctx.Err() != nil {
		conn.Close()
		return nil, ctx.Err()
	}
	s.conn = conn
	return conn, nil
}

func (s *wsSubscription) read(ctx context.Context, conn *websocket.Conn) error {
	defer func() {
		s.mu.Lock()
		s.conn = nil
		s.mu.Unlock()
		conn.Close()
	}()

	for {
		var ev ChangeEvent
		if err := conn.ReadJSON(&ev); err != nil {
			if isClosed(err) {
				return errors.New("closed by server")
			}
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if ev.Scope == "" {
			ev.Scope = s.scope
		}
		s.handler(ev)
	}
}

// isClosed reports whether err just means the connection went away.
func isClosed(err error) bool {
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) ||
		errors.Is(err, net.ErrClosed)
}
