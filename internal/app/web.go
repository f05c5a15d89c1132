// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/relabs-tech/motion_stream/internal/ingest"
	"github.com/relabs-tech/motion_stream/internal/scene"
)

const (
	wsWriteTimeout = 2 * time.Second
	wsSendBuffer   = 4
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Web serves the latest scene over HTTP and pushes every frame to WebSocket
// clients. It is a SceneSink.
type Web struct {
	registry *ingest.Registry

	mu        sync.RWMutex
	lastFrame scene.Frame
	haveFrame bool

	clientsMu sync.Mutex
	clients   map[*websocket.Conn]chan []byte
}

// NewWeb returns a Web serving reg.
func NewWeb(reg *ingest.Registry) *Web {
	return &Web{registry: reg, clients: make(map[*websocket.Conn]chan []byte)}
}

// PublishScene stores f as the latest frame and queues it for every WebSocket
// client. A client that has fallen behind misses frames rather than stalling
// the render loop.
func (w *Web) PublishScene(f scene.Frame) error {
	payload, err := json.Marshal(f)
	if err != nil {
		return err
	}

	w.mu.Lock()
	w.lastFrame = f
	w.haveFrame = true
	w.mu.Unlock()

	w.clientsMu.Lock()
	defer w.clientsMu.Unlock()
	for _, send := range w.clients {
		select {
		case send <- payload:
		default:
		}
	}
	return nil
}

// Handler returns the HTTP routes.
func (w *Web) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/scene", w.handleScene)
	mux.HandleFunc("GET /api/clients", w.handleClients)
	mux.HandleFunc("/ws", w.handleWS)
	mux.Handle("/", http.FileServer(http.Dir("web")))
	return mux
}

// ListenAndServe serves Handler on addr until ctx is cancelled.
func (w *Web) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:        addr,
		Handler:     w.Handler(),
		BaseContext: func(net.Listener) context.Context { return ctx },
	}
	stop := context.AfterFunc(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
		w.closeClients()
	})
	defer stop()

	log.Printf("web: server listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (w *Web) handleScene(rw http.ResponseWriter, r *http.Request) {
	w.mu.RLock()
	f, ok := w.lastFrame, w.haveFrame
	w.mu.RUnlock()

	if !ok {
		http.Error(rw, "no scene yet", http.StatusServiceUnavailable)
		return
	}
	writeJSON(rw, f)
}

func (w *Web) handleClients(rw http.ResponseWriter, r *http.Request) {
	writeJSON(rw, w.registry.Snapshot())
}

func (w *Web) handleWS(rw http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(rw, r, nil)
	if err != nil {
		log.Printf("web: websocket upgrade error: %v", err)
		return
	}

	send := make(chan []byte, wsSendBuffer)
	w.clientsMu.Lock()
	w.clients[conn] = send
	n := len(w.clients)
	w.clientsMu.Unlock()
	log.Printf("web: websocket client %s connected (%d total)", conn.RemoteAddr(), n)

	go w.writeLoop(conn, send)

	// Reads only detect the close; clients send nothing.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("web: websocket error: %v", err)
			}
			break
		}
	}
	w.removeClient(conn)
}

func (w *Web) writeLoop(conn *websocket.Conn, send <-chan []byte) {
	for payload := range send {
		conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			log.Printf("web: websocket write to %s failed: %v", conn.RemoteAddr(), err)
			w.removeClient(conn)
			return
		}
	}
}

func (w *Web) removeClient(conn *websocket.Conn) {
	w.clientsMu.Lock()
	send, ok := w.clients[conn]
	delete(w.clients, conn)
	w.clientsMu.Unlock()

	if ok {
		close(send)
		conn.Close()
	}
}

func (w *Web) closeClients() {
	w.clientsMu.Lock()
	conns := make([]*websocket.Conn, 0, len(w.clients))
	for c := range w.clients {
		conns = append(conns, c)
	}
	w.clientsMu.Unlock()

	for _, c := range conns {
		w.removeClient(c)
	}
}

func writeJSON(rw http.ResponseWriter, v any) {
	rw.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(rw).Encode(v); err != nil {
		log.Printf("web: json encode error: %v", err)
	}
}
