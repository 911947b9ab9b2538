// Package wsbridge turns websocket connections from development pages into
// reloadable windows. Each connection registers as a window whose reload is
// delivered as a JSON message; dropping the socket counts as closing the
// window.
package wsbridge

import (
	"net/http"
	"sync"
	"time"

	"livereload/internal/event"
	"livereload/internal/logging"
	"livereload/internal/window"

	"github.com/gorilla/websocket"
)

const writeTimeout = 10 * time.Second

type Bridge struct {
	upgrader websocket.Upgrader
	bus      *event.Bus[window.Window]
	logger   *logging.Logger
}

// NewBridge creates a bridge. An empty origin list allows every origin;
// this is a development tool serving localhost pages.
func NewBridge(logger *logging.Logger, allowedOrigins []string) *Bridge {
	if logger != nil {
		logger = logger.With(map[string]string{"livereload.category": "wsbridge"})
	}
	return &Bridge{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return isOriginAllowed(r, allowedOrigins)
			},
		},
		bus:    event.NewBus[window.Window](event.BusOptions{Name: "ws_windows"}),
		logger: logger,
	}
}

// Windows subscribes to the stream of windows created by new connections.
// The cancel func releases the subscription.
func (bridge *Bridge) Windows() (<-chan window.Window, func()) {
	return bridge.bus.Subscribe()
}

// Close stops announcing new windows. Existing connections stay open.
func (bridge *Bridge) Close() {
	if bridge == nil || bridge.bus == nil {
		return
	}
	bridge.bus.Close()
}

func (bridge *Bridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := bridge.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	sock := &socketWindow{
		conn:   conn,
		closed: make(chan struct{}),
	}
	bridge.bus.Publish(sock)
	if bridge.logger != nil {
		bridge.logger.Debug("window connected", map[string]string{
			"remote": conn.RemoteAddr().String(),
		})
	}

	// Clients never send anything meaningful; the read loop only detects
	// disconnect.
	defer sock.markClosed()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

type reloadMessage struct {
	Type  string `json:"type"`
	Force bool   `json:"force"`
}

type socketWindow struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	closed  chan struct{}
	once    sync.Once
}

func (sock *socketWindow) Reload(ignoreCache bool) error {
	sock.writeMu.Lock()
	defer sock.writeMu.Unlock()
	if err := sock.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return sock.conn.WriteJSON(reloadMessage{Type: "reload", Force: ignoreCache})
}

func (sock *socketWindow) Closed() <-chan struct{} {
	return sock.closed
}

func (sock *socketWindow) markClosed() {
	sock.once.Do(func() {
		close(sock.closed)
		_ = sock.conn.Close()
	})
}

func isOriginAllowed(r *http.Request, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	for _, candidate := range allowed {
		if candidate == origin {
			return true
		}
	}
	return false
}
