package teachers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/schoolgate/backend/internal/middleware"
	"github.com/schoolgate/backend/internal/models"
	"github.com/schoolgate/backend/pkg/utils"
)

type fakeRoster struct {
	byEmail  map[string]*models.Teacher
	created  *models.Teacher
	linked   map[int64]int64
	unlinked map[int64]int64
}

func newFakeRoster() *fakeRoster {
	return &fakeRoster{
		byEmail:  map[string]*models.Teacher{},
		linked:   map[int64]int64{},
		unlinked: map[int64]int64{},
	}
}

func (f *fakeRoster) ForSchool(ctx context.Context, schoolID int64) ([]models.Teacher, error) {
	var out []models.Teacher
	for _, t := range f.byEmail {
		if t.SchoolID != nil && *t.SchoolID == schoolID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *fakeRoster) ByEmail(ctx context.Context, email string) (*models.Teacher, error) {
	return f.byEmail[email], nil
}

func (f *fakeRoster) Create(ctx context.Context, name, email, passwordHash, subject string, schoolID int64) (*models.Teacher, error) {
	t := &models.Teacher{
		ID:           int64(len(f.byEmail) + 1),
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		Subject:      subject,
		SchoolID:     &schoolID,
		Status:       models.TeacherActive,
	}
	f.byEmail[email] = t
	f.created = t
	return t, nil
}

func (f *fakeRoster) Link(ctx context.Context, teacherID, schoolID int64) error {
	for _, t := range f.byEmail {
		if t.ID == teacherID {
			f.linked[teacherID] = schoolID
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (f *fakeRoster) Unlink(ctx context.Context, teacherID, schoolID int64) error {
	for _, t := range f.byEmail {
		if t.ID == teacherID && t.SchoolID != nil && *t.SchoolID == schoolID {
			f.unlinked[teacherID] = schoolID
			return nil
		}
	}
	return pgx.ErrNoRows
}

func schoolContext(t *testing.T, schoolID int64, method, target, body string) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, target, strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Set(middleware.ContextUserID, schoolID)
	c.Set(middleware.ContextUserRole, "school")
	c.Set(middleware.ContextSchoolID, schoolID)
	return c, w
}

func TestCreateReturnsNumericOneTimePassword(t *testing.T) {
	roster := newFakeRoster()
	h := NewHandler(roster, zap.NewNop())

	c, w := schoolContext(t, 7, http.MethodPost, "/school/teachers",
		`{"name":"Aiko Tanaka","email":"aiko@example.com","subject":"math"}`)
	h.Create(c)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d (body %s)", w.Code, http.StatusCreated, w.Body.String())
	}
	var out struct {
		Data struct {
			Teacher  models.Teacher `json:"teacher"`
			Password string         `json:"password"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(out.Data.Password) != initialPasswordDigits {
		t.Fatalf("password %q, want %d digits", out.Data.Password, initialPasswordDigits)
	}
	for _, r := range out.Data.Password {
		if r < '0' || r > '9' {
			t.Fatalf("password %q contains non-digit %q", out.Data.Password, r)
		}
	}
	if roster.created == nil {
		t.Fatal("no teacher stored")
	}
	if roster.created.SchoolID == nil || *roster.created.SchoolID != 7 {
		t.Fatalf("stored school id = %v, want 7", roster.created.SchoolID)
	}
	// Only the bcrypt hash is stored; the plaintext appears once in the reply.
	if !utils.CheckPassword(out.Data.Password, roster.created.PasswordHash) {
		t.Fatal("stored hash does not match the returned password")
	}
	if strings.Contains(w.Body.String(), roster.created.PasswordHash) {
		t.Fatal("password hash leaked in response")
	}
}

func TestCreateConflictsOnKnownEmail(t *testing.T) {
	roster := newFakeRoster()
	roster.byEmail["taken@example.com"] = &models.Teacher{ID: 3, Email: "taken@example.com"}
	h := NewHandler(roster, zap.NewNop())

	c, w := schoolContext(t, 7, http.MethodPost, "/school/teachers",
		`{"name":"Someone","email":"taken@example.com"}`)
	h.Create(c)

	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusConflict)
	}
	if roster.created != nil {
		t.Fatal("conflicting create still stored a teacher")
	}
}

func TestLinkUnknownTeacherIsNotFound(t *testing.T) {
	h := NewHandler(newFakeRoster(), zap.NewNop())

	c, w := schoolContext(t, 7, http.MethodPost, "/school/teachers/link", `{"teacher_id":99}`)
	h.Link(c)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestUnlinkOnlyDetachesOwnTeacher(t *testing.T) {
	roster := newFakeRoster()
	other := int64(2)
	roster.byEmail["t@example.com"] = &models.Teacher{ID: 5, Email: "t@example.com", SchoolID: &other}
	h := NewHandler(roster, zap.NewNop())

	c, w := schoolContext(t, 7, http.MethodPost, "/school/teachers/5/unlink", "")
	c.Params = gin.Params{{Key: "teacherId", Value: "5"}}
	h.Unlink(c)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
	if len(roster.unlinked) != 0 {
		t.Fatal("teacher of another school was detached")
	}
}
