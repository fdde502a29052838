package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/schoolgate/backend/internal/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // allow all origins in dev; restrict in production
	},
}

// WSMessage is the WebSocket message envelope.
type WSMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Client represents a single WebSocket connection in a chat room.
type Client struct {
	ID       string
	Room     RoomID
	Sender   models.SenderType
	SenderID int64

	hub    *Hub
	repo   *Repository
	conn   *websocket.Conn
	send   chan WSMessage
	logger *zap.Logger
}

// inboundMessage is the client's chat_message payload.
type inboundMessage struct {
	MessageType string `json:"message_type"`
	Content     string `json:"content"`
	FileURL     string `json:"file_url"`
	FileName    string `json:"file_name"`
}

func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(65536)
	_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
		return nil
	})

	for {
		var msg WSMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			break
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))

		switch msg.Event {
		case "chat_message":
			c.handleChatMessage(msg.Data)
		case "read":
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := c.repo.MarkRead(ctx, c.Room.SchoolID, c.Room.StudentID, c.Sender); err != nil {
				c.logger.Warn("mark read", zap.String("room", c.Room.String()), zap.Error(err))
			}
			cancel()
		default:
			// ignore
		}
	}
}

// handleChatMessage persists the message, then publishes it so every
// instance broadcasts it exactly once.
func (c *Client) handleChatMessage(data json.RawMessage) {
	var in inboundMessage
	if err := json.Unmarshal(data, &in); err != nil {
		return
	}
	if in.MessageType == "" {
		in.MessageType = "text"
	}
	if in.Content == "" && in.FileURL == "" {
		return
	}

	m := &models.ChatMessage{
		StudentID:   c.Room.StudentID,
		SenderType:  c.Sender,
		SenderID:    c.SenderID,
		MessageType: in.MessageType,
		Content:     in.Content,
		FileURL:     in.FileURL,
		FileName:    in.FileName,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.repo.Insert(ctx, c.Room.SchoolID, m); err != nil {
		c.logger.Error("persist chat message", zap.String("room", c.Room.String()), zap.Error(err))
		return
	}
	c.hub.Publish(c.Room, "chat_message", m)
}

func (c *Client) writePump() {
	ticker := time.NewTicker(PingInterval * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
