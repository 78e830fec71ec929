// SPDX-License-Identifier: MIT
package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"specverb/internal/log"
)

// ParamMessage is the only message clients send: a request to change one
// parameter.
type ParamMessage struct {
	Type  string  `json:"type"` // "param"
	ID    string  `json:"id"`
	Value float64 `json:"value"`
}

const (
	paramMessageType = "param"
	writeTimeout     = time.Second
	broadcastQueue   = 16
)

// WebSocketTransport serves JSON frames to every client connected on /ws
// and forwards their parameter messages to a ParamSink.
type WebSocketTransport struct {
	upgrader  websocket.Upgrader
	clients   map[*websocket.Conn]bool
	clientsMu sync.Mutex
	broadcast chan []byte
	sink      ParamSink
	server    *http.Server
	listener  net.Listener
	logger    *log.Logger
	closeOnce sync.Once
	done      chan struct{}
}

// NewWebSocketTransport listens on addr and starts serving. sink may be nil,
// in which case parameter messages are ignored.
func NewWebSocketTransport(addr string, sink ParamSink) (*WebSocketTransport, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	wst := &WebSocketTransport{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Display clients are local tools
			},
		},
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan []byte, broadcastQueue),
		sink:      sink,
		listener:  ln,
		logger:    log.Named("websocket"),
		done:      make(chan struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wst.handleWebSocket)
	wst.server = &http.Server{Handler: mux}

	go func() {
		wst.logger.Infof("serving on ws://%s/ws", ln.Addr())
		if err := wst.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			wst.logger.Errorf("server error: %v", err)
		}
	}()
	go wst.handleBroadcasts()

	return wst, nil
}

// Addr returns the address the server is listening on.
func (wst *WebSocketTransport) Addr() net.Addr { return wst.listener.Addr() }

// Clients returns the number of connected clients.
func (wst *WebSocketTransport) Clients() int {
	wst.clientsMu.Lock()
	defer wst.clientsMu.Unlock()
	return len(wst.clients)
}

// handleWebSocket upgrades HTTP connections to WebSocket and reads the
// client's messages until it disconnects.
func (wst *WebSocketTransport) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := wst.upgrader.Upgrade(w, r, nil)
	if err != nil {
		wst.logger.Warnf("upgrade error: %v", err)
		return
	}

	wst.clientsMu.Lock()
	wst.clients[conn] = true
	total := len(wst.clients)
	wst.clientsMu.Unlock()
	wst.logger.Infof("client connected, total: %d", total)

	go wst.readLoop(conn)
}

func (wst *WebSocketTransport) readLoop(conn *websocket.Conn) {
	defer wst.drop(conn)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		wst.handleMessage(data)
	}
}

func (wst *WebSocketTransport) handleMessage(data []byte) {
	var msg ParamMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		wst.logger.Warnf("ignoring malformed message: %v", err)
		return
	}
	if msg.Type != paramMessageType || wst.sink == nil {
		return
	}
	if err := wst.sink.Set(msg.ID, msg.Value); err != nil {
		wst.logger.Warnf("rejected parameter change: %v", err)
		return
	}
	wst.logger.Debugf("set %s = %g", msg.ID, msg.Value)
}

func (wst *WebSocketTransport) drop(conn *websocket.Conn) {
	wst.clientsMu.Lock()
	_, ok := wst.clients[conn]
	delete(wst.clients, conn)
	total := len(wst.clients)
	wst.clientsMu.Unlock()
	conn.Close()
	if ok {
		wst.logger.Infof("client disconnected, total: %d", total)
	}
}

// handleBroadcasts sends queued messages to all connected clients.
func (wst *WebSocketTransport) handleBroadcasts() {
	for {
		select {
		case msg := <-wst.broadcast:
			wst.clientsMu.Lock()
			for client := range wst.clients {
				client.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := client.WriteMessage(websocket.TextMessage, msg); err != nil {
					wst.logger.Warnf("error sending to client: %v", err)
					client.Close()
					delete(wst.clients, client)
				}
			}
			wst.clientsMu.Unlock()
		case <-wst.done:
			return
		}
	}
}

// Send encodes frame and queues it for broadcast. When the queue is full
// the frame is dropped; the display only cares about the latest snapshot.
func (wst *WebSocketTransport) Send(frame *Frame) error {
	if wst.Clients() == 0 {
		return nil
	}
	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("failed to encode frame: %w", err)
	}
	select {
	case wst.broadcast <- data:
	default:
	}
	return nil
}

// Close shuts down the server and disconnects every client.
func (wst *WebSocketTransport) Close() error {
	var err error
	wst.closeOnce.Do(func() {
		wst.logger.Infof("closing server")
		close(wst.done)
		err = wst.server.Close()

		wst.clientsMu.Lock()
		for client := range wst.clients {
			client.Close()
		}
		wst.clients = make(map[*websocket.Conn]bool)
		wst.clientsMu.Unlock()
	})
	return err
}

// Ensure WebSocketTransport satisfies the interface
var _ Transport = (*WebSocketTransport)(nil)
