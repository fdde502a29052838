package support

import (
	"context"
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/schoolgate/backend/internal/auth"
	"github.com/schoolgate/backend/internal/middleware"
	"github.com/schoolgate/backend/internal/models"
	"github.com/schoolgate/backend/pkg/response"
)

// TicketStore is the ticket persistence the handler works against.
// Satisfied by Repository.
type TicketStore interface {
	TicketsFor(ctx context.Context, userType string, userID int64, status string) ([]models.SupportTicket, error)
	AllTickets(ctx context.Context, status string) ([]models.SupportTicket, error)
	Ticket(ctx context.Context, id int64) (*models.SupportTicket, error)
	CreateTicket(ctx context.Context, t *models.SupportTicket, openingMessage string) error
	Messages(ctx context.Context, ticketID int64, includeInternal bool) ([]models.SupportMessage, error)
	AddMessage(ctx context.Context, m *models.SupportMessage) error
	UpdateStatus(ctx context.Context, ticketID int64, status string) error
	DeleteTicket(ctx context.Context, ticketID int64) error
}

// Handler serves the ticket surface for owners and the admin queue.
type Handler struct {
	store  TicketStore
	logger *zap.Logger
}

func NewHandler(store TicketStore, logger *zap.Logger) *Handler {
	return &Handler{store: store, logger: logger}
}

type createTicketRequest struct {
	Title    string `json:"title" binding:"required"`
	Message  string `json:"message"`
	Priority string `json:"priority"`
	Category string `json:"category"`
}

// Create opens a ticket for the authenticated guardian or school.
func (h *Handler) Create(c *gin.Context) {
	userID, role := middleware.Identity(c)

	var in createTicketRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	if in.Priority == "" {
		in.Priority = models.TicketPriorityNormal
	}
	if in.Category == "" {
		in.Category = "general"
	}

	t := &models.SupportTicket{
		Title:    in.Title,
		UserType: role,
		UserID:   userID,
		Priority: in.Priority,
		Category: in.Category,
	}
	if err := h.store.CreateTicket(c.Request.Context(), t, in.Message); err != nil {
		h.logger.Error("create ticket", zap.String("user_type", role), zap.Int64("user_id", userID), zap.Error(err))
		response.Internal(c, "failed to open ticket")
		return
	}
	response.Created(c, t)
}

// Mine lists the caller's own tickets, optionally filtered by ?status=.
func (h *Handler) Mine(c *gin.Context) {
	userID, role := middleware.Identity(c)
	list, err := h.store.TicketsFor(c.Request.Context(), role, userID, c.Query("status"))
	if err != nil {
		h.logger.Error("list tickets", zap.String("user_type", role), zap.Int64("user_id", userID), zap.Error(err))
		response.Internal(c, "failed to list tickets")
		return
	}
	if list == nil {
		list = []models.SupportTicket{}
	}
	response.OK(c, list)
}

// All lists every ticket for the admin queue, optionally filtered by
// ?status=.
func (h *Handler) All(c *gin.Context) {
	list, err := h.store.AllTickets(c.Request.Context(), c.Query("status"))
	if err != nil {
		h.logger.Error("list all tickets", zap.Error(err))
		response.Internal(c, "failed to list tickets")
		return
	}
	if list == nil {
		list = []models.SupportTicket{}
	}
	response.OK(c, list)
}

// loadOwned resolves the ticket and enforces access: the owner or an admin.
// Writes the error response itself when access is denied.
func (h *Handler) loadOwned(c *gin.Context) (*models.SupportTicket, bool) {
	ticketID, err := strconv.ParseInt(c.Param("ticketId"), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid ticket id")
		return nil, false
	}
	t, err := h.store.Ticket(c.Request.Context(), ticketID)
	if err != nil {
		h.logger.Error("load ticket", zap.Int64("ticket_id", ticketID), zap.Error(err))
		response.Internal(c, "failed to load ticket")
		return nil, false
	}
	if t == nil {
		response.NotFound(c, "ticket not found")
		return nil, false
	}
	userID, role := middleware.Identity(c)
	if role != auth.RoleAdmin && (t.UserType != role || t.UserID != userID) {
		response.Forbidden(c, "not your ticket")
		return nil, false
	}
	return t, true
}

// Messages returns the ticket thread. Owners never see internal admin
// notes.
func (h *Handler) Messages(c *gin.Context) {
	t, ok := h.loadOwned(c)
	if !ok {
		return
	}
	_, role := middleware.Identity(c)
	list, err := h.store.Messages(c.Request.Context(), t.ID, role == auth.RoleAdmin)
	if err != nil {
		h.logger.Error("ticket messages", zap.Int64("ticket_id", t.ID), zap.Error(err))
		response.Internal(c, "failed to load messages")
		return
	}
	if list == nil {
		list = []models.SupportMessage{}
	}
	response.OK(c, gin.H{"messages": list})
}

type postMessageRequest struct {
	Message    string `json:"message" binding:"required"`
	IsInternal bool   `json:"is_internal"`
}

// PostMessage appends to the ticket thread. Only admins may mark a message
// internal.
func (h *Handler) PostMessage(c *gin.Context) {
	t, ok := h.loadOwned(c)
	if !ok {
		return
	}

	var in postMessageRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	userID, role := middleware.Identity(c)
	if in.IsInternal && role != auth.RoleAdmin {
		response.Forbidden(c, "only admins can post internal notes")
		return
	}

	m := &models.SupportMessage{
		TicketID:   t.ID,
		UserType:   role,
		UserID:     userID,
		Message:    in.Message,
		IsInternal: in.IsInternal,
	}
	if err := h.store.AddMessage(c.Request.Context(), m); err != nil {
		h.logger.Error("post ticket message", zap.Int64("ticket_id", t.ID), zap.Error(err))
		response.Internal(c, "failed to post message")
		return
	}
	response.Created(c, m)
}

type updateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// UpdateStatus moves a ticket through its lifecycle. Admin only.
func (h *Handler) UpdateStatus(c *gin.Context) {
	ticketID, err := strconv.ParseInt(c.Param("ticketId"), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid ticket id")
		return
	}

	var in updateStatusRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	switch in.Status {
	case models.TicketOpen, models.TicketPending, models.TicketResolved, models.TicketClosed:
	default:
		response.BadRequest(c, "unknown status")
		return
	}

	if err := h.store.UpdateStatus(c.Request.Context(), ticketID, in.Status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			response.NotFound(c, "ticket not found")
			return
		}
		h.logger.Error("update ticket status", zap.Int64("ticket_id", ticketID), zap.Error(err))
		response.Internal(c, "failed to update ticket")
		return
	}
	response.OK(c, gin.H{"status": in.Status})
}

// Delete removes a ticket and its thread. Admin only.
func (h *Handler) Delete(c *gin.Context) {
	ticketID, err := strconv.ParseInt(c.Param("ticketId"), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid ticket id")
		return
	}
	if err := h.store.DeleteTicket(c.Request.Context(), ticketID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			response.NotFound(c, "ticket not found")
			return
		}
		h.logger.Error("delete ticket", zap.Int64("ticket_id", ticketID), zap.Error(err))
		response.Internal(c, "failed to delete ticket")
		return
	}
	response.OK(c, gin.H{"deleted": true})
}
