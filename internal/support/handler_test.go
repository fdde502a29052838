package support

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/schoolgate/backend/internal/auth"
	"github.com/schoolgate/backend/internal/middleware"
	"github.com/schoolgate/backend/internal/models"
)

type fakeTicketStore struct {
	tickets      map[int64]*models.SupportTicket
	messages     []models.SupportMessage
	lastInternal bool
	statuses     map[int64]string
}

func newFakeTicketStore() *fakeTicketStore {
	return &fakeTicketStore{
		tickets:  map[int64]*models.SupportTicket{},
		statuses: map[int64]string{},
	}
}

func (f *fakeTicketStore) TicketsFor(ctx context.Context, userType string, userID int64, status string) ([]models.SupportTicket, error) {
	var out []models.SupportTicket
	for _, t := range f.tickets {
		if t.UserType == userType && t.UserID == userID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *fakeTicketStore) AllTickets(ctx context.Context, status string) ([]models.SupportTicket, error) {
	var out []models.SupportTicket
	for _, t := range f.tickets {
		out = append(out, *t)
	}
	return out, nil
}

func (f *fakeTicketStore) Ticket(ctx context.Context, id int64) (*models.SupportTicket, error) {
	return f.tickets[id], nil
}

func (f *fakeTicketStore) CreateTicket(ctx context.Context, t *models.SupportTicket, openingMessage string) error {
	t.ID = int64(len(f.tickets) + 1)
	t.Status = models.TicketOpen
	f.tickets[t.ID] = t
	if openingMessage != "" {
		f.messages = append(f.messages, models.SupportMessage{
			TicketID: t.ID, UserType: t.UserType, UserID: t.UserID, Message: openingMessage,
		})
	}
	return nil
}

func (f *fakeTicketStore) Messages(ctx context.Context, ticketID int64, includeInternal bool) ([]models.SupportMessage, error) {
	f.lastInternal = includeInternal
	var out []models.SupportMessage
	for _, m := range f.messages {
		if m.TicketID != ticketID {
			continue
		}
		if m.IsInternal && !includeInternal {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (f *fakeTicketStore) AddMessage(ctx context.Context, m *models.SupportMessage) error {
	m.ID = int64(len(f.messages) + 1)
	f.messages = append(f.messages, *m)
	return nil
}

func (f *fakeTicketStore) UpdateStatus(ctx context.Context, ticketID int64, status string) error {
	f.statuses[ticketID] = status
	return nil
}

func (f *fakeTicketStore) DeleteTicket(ctx context.Context, ticketID int64) error {
	delete(f.tickets, ticketID)
	return nil
}

func authedContext(t *testing.T, userID int64, role, method, target, body string) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, target, strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Set(middleware.ContextUserID, userID)
	c.Set(middleware.ContextUserRole, role)
	return c, w
}

func TestCreateDefaultsPriorityAndCategory(t *testing.T) {
	store := newFakeTicketStore()
	h := NewHandler(store, zap.NewNop())

	c, w := authedContext(t, 12, auth.RoleGuardian, http.MethodPost, "/support/tickets",
		`{"title":"app keeps logging me out","message":"since yesterday"}`)
	h.Create(c)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d (body %s)", w.Code, http.StatusCreated, w.Body.String())
	}
	tk := store.tickets[1]
	if tk == nil {
		t.Fatal("ticket not stored")
	}
	if tk.Priority != models.TicketPriorityNormal || tk.Category != "general" {
		t.Fatalf("priority/category = %q/%q, want normal/general", tk.Priority, tk.Category)
	}
	if tk.UserType != auth.RoleGuardian || tk.UserID != 12 {
		t.Fatalf("owner = %s/%d, want guardian/12", tk.UserType, tk.UserID)
	}
	if len(store.messages) != 1 || store.messages[0].Message != "since yesterday" {
		t.Fatalf("opening message not stored: %+v", store.messages)
	}
}

func TestMessagesHideInternalNotesFromOwner(t *testing.T) {
	store := newFakeTicketStore()
	store.tickets[1] = &models.SupportTicket{ID: 1, UserType: auth.RoleGuardian, UserID: 12}
	store.messages = []models.SupportMessage{
		{ID: 1, TicketID: 1, UserType: auth.RoleGuardian, UserID: 12, Message: "hello"},
		{ID: 2, TicketID: 1, UserType: auth.RoleAdmin, UserID: 1, Message: "note to self", IsInternal: true},
	}
	h := NewHandler(store, zap.NewNop())

	c, w := authedContext(t, 12, auth.RoleGuardian, http.MethodGet, "/support/tickets/1/messages", "")
	c.Params = gin.Params{{Key: "ticketId", Value: "1"}}
	h.Messages(c)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if store.lastInternal {
		t.Fatal("owner request asked the store for internal notes")
	}
	var out struct {
		Data struct {
			Messages []models.SupportMessage `json:"messages"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(out.Data.Messages) != 1 || out.Data.Messages[0].Message != "hello" {
		t.Fatalf("messages = %+v, want only the owner-visible one", out.Data.Messages)
	}

	c, _ = authedContext(t, 1, auth.RoleAdmin, http.MethodGet, "/support/tickets/1/messages", "")
	c.Params = gin.Params{{Key: "ticketId", Value: "1"}}
	h.Messages(c)
	if !store.lastInternal {
		t.Fatal("admin request did not ask the store for internal notes")
	}
}

func TestTicketOfAnotherUserIsForbidden(t *testing.T) {
	store := newFakeTicketStore()
	store.tickets[1] = &models.SupportTicket{ID: 1, UserType: auth.RoleGuardian, UserID: 12}
	h := NewHandler(store, zap.NewNop())

	// Different guardian.
	c, w := authedContext(t, 13, auth.RoleGuardian, http.MethodGet, "/support/tickets/1/messages", "")
	c.Params = gin.Params{{Key: "ticketId", Value: "1"}}
	h.Messages(c)
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusForbidden)
	}

	// Same id, different role.
	c, w = authedContext(t, 12, auth.RoleSchool, http.MethodGet, "/support/tickets/1/messages", "")
	c.Params = gin.Params{{Key: "ticketId", Value: "1"}}
	h.Messages(c)
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusForbidden)
	}
}

func TestInternalNoteRequiresAdmin(t *testing.T) {
	store := newFakeTicketStore()
	store.tickets[1] = &models.SupportTicket{ID: 1, UserType: auth.RoleGuardian, UserID: 12}
	h := NewHandler(store, zap.NewNop())

	c, w := authedContext(t, 12, auth.RoleGuardian, http.MethodPost, "/support/tickets/1/messages",
		`{"message":"sneaky","is_internal":true}`)
	c.Params = gin.Params{{Key: "ticketId", Value: "1"}}
	h.PostMessage(c)

	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusForbidden)
	}
	if len(store.messages) != 0 {
		t.Fatal("internal note from a non-admin was stored")
	}
}

func TestUpdateStatusRejectsUnknownValue(t *testing.T) {
	store := newFakeTicketStore()
	h := NewHandler(store, zap.NewNop())

	c, w := authedContext(t, 1, auth.RoleAdmin, http.MethodPatch, "/support/tickets/1/status",
		`{"status":"archived"}`)
	c.Params = gin.Params{{Key: "ticketId", Value: "1"}}
	h.UpdateStatus(c)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if len(store.statuses) != 0 {
		t.Fatal("unknown status was written")
	}
}
