package chat

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/schoolgate/backend/internal/auth"
	"github.com/schoolgate/backend/internal/middleware"
	"github.com/schoolgate/backend/internal/models"
	"github.com/schoolgate/backend/pkg/response"
	"github.com/schoolgate/backend/pkg/storage"
)

const historyLimit = 200

// Handler serves chat history, file attachments, and the WebSocket
// endpoint.
type Handler struct {
	repo   *Repository
	hub    *Hub
	s3     *storage.S3
	logger *zap.Logger
}

func NewHandler(repo *Repository, hub *Hub, s3 *storage.S3, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, hub: hub, s3: s3, logger: logger}
}

// room resolves the requested thread and enforces access: schools only
// reach their own tenant, guardians only students linked to them.
func (h *Handler) room(c *gin.Context) (RoomID, models.SenderType, int64, bool) {
	schoolID, err := strconv.ParseInt(c.Param("schoolId"), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid school id")
		return RoomID{}, "", 0, false
	}
	studentID, err := strconv.ParseInt(c.Param("studentId"), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid student id")
		return RoomID{}, "", 0, false
	}
	room := RoomID{SchoolID: schoolID, StudentID: studentID}

	roleVal, _ := c.Get(middleware.ContextUserRole)
	switch roleVal {
	case auth.RoleSchool:
		if middleware.SchoolID(c) != schoolID {
			response.Forbidden(c, "wrong school")
			return RoomID{}, "", 0, false
		}
		return room, models.SenderSchool, middleware.SchoolID(c), true
	case auth.RoleGuardian:
		guardianID := middleware.GuardianID(c)
		linked, err := h.repo.LinkedToGuardian(c.Request.Context(), schoolID, studentID, guardianID)
		if err != nil {
			h.logger.Error("chat access check", zap.String("room", room.String()), zap.Error(err))
			response.Internal(c, "failed to open chat")
			return RoomID{}, "", 0, false
		}
		if !linked {
			response.Forbidden(c, "student is not linked to this guardian")
			return RoomID{}, "", 0, false
		}
		return room, models.SenderGuardian, guardianID, true
	default:
		response.Forbidden(c, "insufficient permissions")
		return RoomID{}, "", 0, false
	}
}

// History returns the thread's recent messages, oldest first.
func (h *Handler) History(c *gin.Context) {
	room, _, _, ok := h.room(c)
	if !ok {
		return
	}
	list, err := h.repo.Messages(c.Request.Context(), room.SchoolID, room.StudentID, historyLimit)
	if err != nil {
		h.logger.Error("chat history", zap.String("room", room.String()), zap.Error(err))
		response.Internal(c, "failed to load messages")
		return
	}
	if list == nil {
		list = []models.ChatMessage{}
	}
	response.OK(c, list)
}

// MarkRead flags the other side's messages in the thread as read.
func (h *Handler) MarkRead(c *gin.Context) {
	room, sender, _, ok := h.room(c)
	if !ok {
		return
	}
	if err := h.repo.MarkRead(c.Request.Context(), room.SchoolID, room.StudentID, sender); err != nil {
		h.logger.Error("chat mark read", zap.String("room", room.String()), zap.Error(err))
		response.Internal(c, "failed to mark messages read")
		return
	}
	response.OK(c, gin.H{"read": true})
}

type postRequest struct {
	MessageType string `json:"message_type"`
	Content     string `json:"content"`
	FileURL     string `json:"file_url"`
	FileName    string `json:"file_name"`
}

// Post sends one message over REST, for clients without a live WebSocket.
// The message is persisted and pushed to any connected peers.
func (h *Handler) Post(c *gin.Context) {
	room, sender, senderID, ok := h.room(c)
	if !ok {
		return
	}

	var in postRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	if in.MessageType == "" {
		in.MessageType = "text"
	}
	if in.Content == "" && in.FileURL == "" {
		response.BadRequest(c, "empty message")
		return
	}

	m := &models.ChatMessage{
		StudentID:   room.StudentID,
		SenderType:  sender,
		SenderID:    senderID,
		MessageType: in.MessageType,
		Content:     in.Content,
		FileURL:     in.FileURL,
		FileName:    in.FileName,
	}
	if err := h.repo.Insert(c.Request.Context(), room.SchoolID, m); err != nil {
		h.logger.Error("post chat message", zap.String("room", room.String()), zap.Error(err))
		response.Internal(c, "failed to send message")
		return
	}
	h.hub.Publish(room, "chat_message", m)
	response.Created(c, m)
}

type broadcastRequest struct {
	Content   string `json:"content" binding:"required"`
	ClassName string `json:"class_name"`
}

// Broadcast sends one announcement message into every student thread of the
// school, or one cohort's threads when class_name is set.
func (h *Handler) Broadcast(c *gin.Context) {
	schoolID := middleware.SchoolID(c)

	var in broadcastRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	ctx := c.Request.Context()
	ids, err := h.repo.StudentIDs(ctx, schoolID, in.ClassName)
	if err != nil {
		h.logger.Error("chat broadcast", zap.Int64("school_id", schoolID), zap.Error(err))
		response.Internal(c, "failed to broadcast")
		return
	}

	sent := 0
	for _, studentID := range ids {
		m := &models.ChatMessage{
			StudentID:   studentID,
			SenderType:  models.SenderSchool,
			SenderID:    schoolID,
			MessageType: "text",
			Content:     in.Content,
		}
		if err := h.repo.Insert(ctx, schoolID, m); err != nil {
			h.logger.Warn("broadcast message", zap.Int64("student_id", studentID), zap.Error(err))
			continue
		}
		h.hub.Publish(RoomID{SchoolID: schoolID, StudentID: studentID}, "chat_message", m)
		sent++
	}
	response.OK(c, gin.H{"sent": sent})
}

// UploadAttachment stores a chat file and returns its URL. The caller sends
// the URL in a chat_message afterwards.
func (h *Handler) UploadAttachment(c *gin.Context) {
	room, _, _, ok := h.room(c)
	if !ok {
		return
	}
	if h.s3 == nil {
		response.ServiceUnavailable(c, "file storage is not configured")
		return
	}
	file, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "missing file")
		return
	}
	if file.Size > storage.MaxUploadSize {
		response.BadRequest(c, "file exceeds the upload size limit")
		return
	}
	contentType := file.Header.Get("Content-Type")
	if contentType == "" {
		contentType = storage.ContentTypeForFilename(file.Filename)
	}
	if !storage.ValidateUploadType(contentType, file.Filename) {
		response.BadRequest(c, "unsupported file type")
		return
	}
	src, err := file.Open()
	if err != nil {
		response.BadRequest(c, "failed to read file")
		return
	}
	defer src.Close()

	url, err := h.s3.Upload(c.Request.Context(), h.s3.AttachmentsBucket(),
		storage.AttachmentKey(room.SchoolID, room.StudentID, file.Filename), contentType, src, file.Size)
	if err != nil {
		h.logger.Error("upload chat attachment", zap.String("room", room.String()), zap.Error(err))
		response.Internal(c, "failed to store file")
		return
	}
	response.OK(c, gin.H{"file_url": url, "file_name": file.Filename})
}

// ServeWs upgrades the connection and runs the client loop until the peer
// disconnects.
func (h *Handler) ServeWs(c *gin.Context) {
	room, sender, senderID, ok := h.room(c)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		ID:       uuid.New().String(),
		Room:     room,
		Sender:   sender,
		SenderID: senderID,
		hub:      h.hub,
		repo:     h.repo,
		conn:     conn,
		send:     make(chan WSMessage, 256),
		logger:   h.logger,
	}
	h.hub.Register(client)
	go client.writePump()
	client.readPump()
}
