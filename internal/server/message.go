package server

import (
	"encoding/json"
	"time"

	"github.com/cardroom/holdemd/internal/engine"
)

// MessageType identifies a websocket frame.
type MessageType string

const (
	// Client to server.
	MessageTypeAuth       MessageType = "auth"
	MessageTypeListTables MessageType = "list_tables"
	MessageTypeJoinTable  MessageType = "join_table"
	MessageTypeLeaveTable MessageType = "leave_table"
	MessageTypeAction     MessageType = "action"
	MessageTypeRebuy      MessageType = "rebuy"
	MessageTypeTimeBank   MessageType = "time_bank"

	// Server to client.
	MessageTypeAuthResponse MessageType = "auth_response"
	MessageTypeTableList    MessageType = "table_list"
	MessageTypeTableState   MessageType = "table_state"
	MessageTypeAck          MessageType = "ack"
	MessageTypeError        MessageType = "error"
)

// Message is the envelope every frame travels in.
type Message struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	RequestID string          `json:"requestId,omitempty"`
}

// NewMessage wraps data in an envelope stamped with the current time.
func NewMessage(messageType MessageType, data interface{}) (*Message, error) {
	var dataBytes json.RawMessage
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		dataBytes = b
	}
	return &Message{
		Type:      messageType,
		Data:      dataBytes,
		Timestamp: time.Now(),
	}, nil
}

// Client to server payloads.

type AuthData struct {
	PlayerName string `json:"playerName"`
}

type JoinTableData struct {
	TableID string `json:"tableId"`
	BuyIn   int64  `json:"buyIn"`
}

type LeaveTableData struct {
	TableID string `json:"tableId"`
}

type ActionData struct {
	TableID string `json:"tableId"`
	Action  string `json:"action"`
	Amount  int64  `json:"amount,omitempty"`
}

type RebuyData struct {
	TableID string `json:"tableId"`
	Amount  int64  `json:"amount"`
}

type TimeBankData struct {
	TableID string `json:"tableId"`
}

// Server to client payloads.

type AuthResponseData struct {
	Success  bool   `json:"success"`
	PlayerID string `json:"playerId,omitempty"`
	Error    string `json:"error,omitempty"`
}

type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type AckData struct {
	Op string `json:"op"`
}

type TableInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	PlayerCount int    `json:"playerCount"`
	MaxPlayers  int    `json:"maxPlayers"`
	Stakes      string `json:"stakes"`
	Status      string `json:"status"`
}

type TableListData struct {
	Tables []TableInfo `json:"tables"`
}

type TableStateData struct {
	Table engine.TableView `json:"table"`
}
