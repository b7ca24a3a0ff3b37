// Package server exposes the game service over websockets. One connection
// per client; table updates are pushed as redacted per-viewer views.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/cardroom/holdemd/internal/service"
)

// Server accepts websocket clients and fans table updates out to them.
type Server struct {
	addr     string
	upgrader websocket.Upgrader
	logger   *log.Logger
	svc      *service.Service

	register   chan *Connection
	unregister chan *Connection

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.RWMutex
	connections map[*Connection]bool
	subscribers map[string]map[*Connection]bool

	dirtyMu sync.Mutex
	dirty   map[string]struct{}
	kick    chan struct{}

	httpServer *http.Server
}

// NewServer wires the websocket layer to the game service.
func NewServer(addr string, svc *service.Service, logger *log.Logger) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr: addr,
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger:      logger.WithPrefix("server"),
		svc:         svc,
		register:    make(chan *Connection),
		unregister:  make(chan *Connection),
		ctx:         ctx,
		cancel:      cancel,
		connections: make(map[*Connection]bool),
		subscribers: make(map[string]map[*Connection]bool),
		dirty:       make(map[string]struct{}),
		kick:        make(chan struct{}, 1),
	}
}

// Start serves until the listener fails or Stop is called.
func (s *Server) Start() error {
	go s.run()
	go s.broadcastLoop()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)

	s.httpServer = &http.Server{Addr: s.addr, Handler: mux}
	s.logger.Info("listening", "addr", s.addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop shuts the listener and every connection down.
func (s *Server) Stop() error {
	s.cancel()
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.httpServer.Shutdown(ctx)
	}

	s.mu.Lock()
	for conn := range s.connections {
		_ = conn.Close()
	}
	s.mu.Unlock()
	return nil
}

// TableChanged marks a table dirty so the broadcast loop re-sends views.
// It never blocks: it is called from the table runner goroutines.
func (s *Server) TableChanged(tableID string) {
	s.dirtyMu.Lock()
	s.dirty[tableID] = struct{}{}
	s.dirtyMu.Unlock()
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

func (s *Server) run() {
	for {
		select {
		case conn := <-s.register:
			s.mu.Lock()
			s.connections[conn] = true
			s.mu.Unlock()
			s.logger.Debug("connection registered", "addr", conn.remoteAddr)

		case conn := <-s.unregister:
			s.dropConnection(conn)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Server) dropConnection(conn *Connection) {
	s.mu.Lock()
	delete(s.connections, conn)
	for tableID, subs := range s.subscribers {
		delete(subs, conn)
		if len(subs) == 0 {
			delete(s.subscribers, tableID)
		}
	}
	s.mu.Unlock()

	// A vanished client sits out until they return or time out.
	if playerID, tableID := conn.PlayerID(), conn.TableID(); playerID != "" && tableID != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.svc.SetConnected(ctx, tableID, playerID, false); err != nil {
			s.logger.Debug("disconnect mark failed", "player", playerID, "error", err)
		}
	}
	s.logger.Debug("connection dropped", "addr", conn.remoteAddr)
}

// broadcastLoop drains the dirty set and pushes fresh views to every
// subscriber of each changed table.
func (s *Server) broadcastLoop() {
	for {
		select {
		case <-s.kick:
		case <-s.ctx.Done():
			return
		}

		s.dirtyMu.Lock()
		tables := make([]string, 0, len(s.dirty))
		for id := range s.dirty {
			tables = append(tables, id)
		}
		s.dirty = make(map[string]struct{})
		s.dirtyMu.Unlock()

		for _, tableID := range tables {
			s.broadcastTable(tableID)
		}
	}
}

func (s *Server) broadcastTable(tableID string) {
	s.mu.RLock()
	subs := make([]*Connection, 0, len(s.subscribers[tableID]))
	for conn := range s.subscribers[tableID] {
		subs = append(subs, conn)
	}
	s.mu.RUnlock()

	for _, conn := range subs {
		s.pushState(tableID, conn)
	}
}

func (s *Server) pushState(tableID string, conn *Connection) {
	ctx, cancel := context.WithTimeout(s.ctx, 2*time.Second)
	defer cancel()
	view, err := s.svc.View(ctx, tableID, conn.PlayerID())
	if err != nil {
		s.logger.Debug("view fetch failed", "table", tableID, "error", err)
		return
	}
	conn.sendJSON(MessageTypeTableState, TableStateData{Table: view})
}

func (s *Server) subscribe(tableID string, conn *Connection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subscribers[tableID] == nil {
		s.subscribers[tableID] = make(map[*Connection]bool)
	}
	s.subscribers[tableID][conn] = true
}

func (s *Server) unsubscribe(tableID string, conn *Connection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if subs := s.subscribers[tableID]; subs != nil {
		delete(subs, conn)
		if len(subs) == 0 {
			delete(s.subscribers, tableID)
		}
	}
}

func (s *Server) listTables() []TableInfo {
	ids := s.svc.Tables()
	infos := make([]TableInfo, 0, len(ids))
	for _, id := range ids {
		ctx, cancel := context.WithTimeout(s.ctx, 2*time.Second)
		view, err := s.svc.View(ctx, id, "")
		cancel()
		if err != nil {
			continue
		}
		infos = append(infos, TableInfo{
			ID:          id,
			Name:        view.Name,
			PlayerCount: len(view.Seats),
			MaxPlayers:  view.MaxPlayers,
			Stakes:      fmt.Sprintf("%d/%d", view.SmallBlind, view.BigBlind),
			Status:      view.State,
		})
	}
	return infos
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	wsConn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("upgrade failed", "error", err)
		return
	}
	conn := newConnection(wsConn, s, s.logger)
	s.register <- conn
	conn.start()
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
