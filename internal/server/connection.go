package server

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/cardroom/holdemd/internal/engine"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 8192
)

var ErrConnectionClosed = websocket.ErrCloseSent

// Connection wraps one websocket client. The read pump dispatches requests
// into the game service; the write pump drains the send buffer.
type Connection struct {
	conn       *websocket.Conn
	send       chan *Message
	remoteAddr string
	logger     *log.Logger
	server     *Server

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once

	mu       sync.RWMutex
	playerID string
	name     string
	tableID  string
}

func newConnection(conn *websocket.Conn, server *Server, logger *log.Logger) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	return &Connection{
		conn:       conn,
		send:       make(chan *Message, 256),
		remoteAddr: conn.RemoteAddr().String(),
		logger:     logger.WithPrefix("conn"),
		server:     server,
		ctx:        ctx,
		cancel:     cancel,
	}
}

func (c *Connection) start() {
	go c.writePump()
	go c.readPump()
}

// Close tears the connection down once; further sends are dropped.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		close(c.send)
		err = c.conn.Close()
	})
	return err
}

// SendMessage queues a frame for the client, closing the connection if the
// client cannot keep up.
func (c *Connection) SendMessage(msg *Message) error {
	defer func() {
		if r := recover(); r != nil {
			// Send channel closed during shutdown.
			c.logger.Debug("send on closed connection", "error", r)
		}
	}()

	select {
	case c.send <- msg:
		return nil
	case <-c.ctx.Done():
		return c.ctx.Err()
	default:
		c.logger.Warn("send buffer full, closing connection", "player", c.PlayerID())
		_ = c.Close()
		return ErrConnectionClosed
	}
}

// PlayerID returns the authenticated player ID, empty before auth.
func (c *Connection) PlayerID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.playerID
}

// TableID returns the table this connection is seated at.
func (c *Connection) TableID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tableID
}

func (c *Connection) setPlayer(playerID, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.playerID = playerID
	c.name = name
}

func (c *Connection) setTable(tableID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tableID = tableID
}

func (c *Connection) readPump() {
	defer func() {
		c.server.unregister <- c
		_ = c.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("websocket error", "error", err)
			}
			return
		}
		c.handleMessage(&msg)
	}
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(message); err != nil {
				c.logger.Error("write failed", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Connection) handleMessage(msg *Message) {
	c.logger.Debug("message received", "type", msg.Type, "player", c.PlayerID())

	switch msg.Type {
	case MessageTypeAuth:
		var data AuthData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "failed to parse auth data")
			return
		}
		c.handleAuth(data)

	case MessageTypeListTables:
		c.handleListTables()

	case MessageTypeJoinTable:
		var data JoinTableData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "failed to parse join table data")
			return
		}
		c.handleJoinTable(data)

	case MessageTypeLeaveTable:
		var data LeaveTableData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "failed to parse leave table data")
			return
		}
		c.handleLeaveTable(data)

	case MessageTypeAction:
		var data ActionData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "failed to parse action data")
			return
		}
		c.handleAction(data)

	case MessageTypeRebuy:
		var data RebuyData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "failed to parse rebuy data")
			return
		}
		c.handleRebuy(data)

	case MessageTypeTimeBank:
		var data TimeBankData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "failed to parse time bank data")
			return
		}
		c.handleTimeBank(data)

	default:
		c.sendError("unknown_message", fmt.Sprintf("unknown message type %q", msg.Type))
	}
}

func (c *Connection) handleAuth(data AuthData) {
	if data.PlayerName == "" {
		c.sendJSON(MessageTypeAuthResponse, AuthResponseData{Success: false, Error: "player name required"})
		return
	}
	playerID := uuid.NewString()
	c.setPlayer(playerID, data.PlayerName)
	c.logger.Info("player authenticated", "player", data.PlayerName, "id", playerID)
	c.sendJSON(MessageTypeAuthResponse, AuthResponseData{Success: true, PlayerID: playerID})
}

func (c *Connection) handleListTables() {
	c.sendJSON(MessageTypeTableList, TableListData{Tables: c.server.listTables()})
}

func (c *Connection) handleJoinTable(data JoinTableData) {
	playerID := c.PlayerID()
	if playerID == "" {
		c.sendError("not_authenticated", "authenticate before joining a table")
		return
	}
	c.mu.RLock()
	name := c.name
	c.mu.RUnlock()

	err := c.server.svc.JoinTable(c.ctx, data.TableID, playerID, name, c.remoteAddr, data.BuyIn)
	if err != nil {
		c.sendError("join_failed", err.Error())
		return
	}
	c.setTable(data.TableID)
	c.server.subscribe(data.TableID, c)
	c.sendJSON(MessageTypeAck, AckData{Op: "join_table"})
	c.server.pushState(data.TableID, c)
}

func (c *Connection) handleLeaveTable(data LeaveTableData) {
	playerID := c.PlayerID()
	if playerID == "" {
		c.sendError("not_authenticated", "authenticate first")
		return
	}
	if err := c.server.svc.Leave(c.ctx, data.TableID, playerID); err != nil {
		c.sendError("leave_failed", err.Error())
		return
	}
	c.server.unsubscribe(data.TableID, c)
	c.setTable("")
	c.sendJSON(MessageTypeAck, AckData{Op: "leave_table"})
}

func (c *Connection) handleAction(data ActionData) {
	playerID := c.PlayerID()
	if playerID == "" {
		c.sendError("not_authenticated", "authenticate first")
		return
	}
	kind, err := engine.ParseActionKind(data.Action)
	if err != nil {
		c.sendError("invalid_action", err.Error())
		return
	}
	if err := c.server.svc.SubmitAction(c.ctx, data.TableID, playerID, kind, data.Amount); err != nil {
		c.sendError("action_rejected", err.Error())
		return
	}
	c.sendJSON(MessageTypeAck, AckData{Op: "action"})
}

func (c *Connection) handleRebuy(data RebuyData) {
	playerID := c.PlayerID()
	if playerID == "" {
		c.sendError("not_authenticated", "authenticate first")
		return
	}
	if err := c.server.svc.Rebuy(c.ctx, data.TableID, playerID, data.Amount); err != nil {
		c.sendError("rebuy_failed", err.Error())
		return
	}
	c.sendJSON(MessageTypeAck, AckData{Op: "rebuy"})
}

func (c *Connection) handleTimeBank(data TimeBankData) {
	playerID := c.PlayerID()
	if playerID == "" {
		c.sendError("not_authenticated", "authenticate first")
		return
	}
	if err := c.server.svc.UseTimeBank(c.ctx, data.TableID, playerID); err != nil {
		c.sendError("time_bank_rejected", err.Error())
		return
	}
	c.sendJSON(MessageTypeAck, AckData{Op: "time_bank"})
}

func (c *Connection) sendJSON(messageType MessageType, data interface{}) {
	msg, err := NewMessage(messageType, data)
	if err != nil {
		c.logger.Error("message marshal failed", "type", messageType, "error", err)
		return
	}
	_ = c.SendMessage(msg)
}

func (c *Connection) sendError(code, message string) {
	c.sendJSON(MessageTypeError, ErrorData{Code: code, Message: message})
}
