package students

import (
	"context"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/schoolgate/backend/internal/aggregate"
	"github.com/schoolgate/backend/internal/middleware"
	"github.com/schoolgate/backend/internal/models"
	"github.com/schoolgate/backend/pkg/response"
	"github.com/schoolgate/backend/pkg/utils"
)

// GuardianDirectory is the system-database surface the handler needs for
// guardian auto-provisioning and cross-tenant fan-out.
type GuardianDirectory interface {
	aggregate.GuardianFinder
	GuardianByEmail(ctx context.Context, email string) (*models.Guardian, error)
	CreateGuardian(ctx context.Context, name, email, passwordHash, phone string) (*models.Guardian, error)
}

// Handler serves student management for schools and the linked-student view
// for guardians.
type Handler struct {
	repo      *Repository
	guardians GuardianDirectory
	schools   aggregate.SchoolLister
	logger    *zap.Logger
}

func NewHandler(repo *Repository, guardians GuardianDirectory, schools aggregate.SchoolLister, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, guardians: guardians, schools: schools, logger: logger}
}

type enrollRequest struct {
	Name        string `json:"name" binding:"required"`
	ParentEmail string `json:"parent_email"`
	ParentName  string `json:"parent_name"`
	Phone       string `json:"phone"`
	PhotoURL    string `json:"photo_url"`
	ClassName   string `json:"class_name"`
	Age         *int   `json:"age"`
}

// Enroll creates a student in the authenticated school. When a parent email
// is supplied the matching guardian account is linked, and created first if
// none exists yet, so the student is reachable from the guardian side
// immediately.
func (h *Handler) Enroll(c *gin.Context) {
	schoolID := middleware.SchoolID(c)

	var in enrollRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	student := &models.Student{
		Name:        in.Name,
		ParentEmail: strings.ToLower(strings.TrimSpace(in.ParentEmail)),
		Phone:       in.Phone,
		PhotoURL:    in.PhotoURL,
		ClassName:   in.ClassName,
		Age:         in.Age,
	}
	if err := h.repo.Create(c.Request.Context(), schoolID, student); err != nil {
		h.logger.Error("enroll student", zap.Int64("school_id", schoolID), zap.Error(err))
		response.Internal(c, "failed to enroll student")
		return
	}

	if student.ParentEmail != "" {
		if err := h.linkParent(c.Request.Context(), schoolID, student, in.ParentName); err != nil {
			// The student exists; the issue is surfaced, not rolled back.
			h.logger.Error("link parent",
				zap.Int64("school_id", schoolID),
				zap.Int64("student_id", student.ID),
				zap.Error(err))
		}
	}
	response.Created(c, student)
}

func (h *Handler) linkParent(ctx context.Context, schoolID int64, student *models.Student, parentName string) error {
	g, err := h.guardians.GuardianByEmail(ctx, student.ParentEmail)
	if err != nil {
		return err
	}
	if g == nil {
		hash, err := utils.HashPassword(utils.RandomPassword(12))
		if err != nil {
			return err
		}
		name := parentName
		if name == "" {
			name = student.ParentEmail
		}
		g, err = h.guardians.CreateGuardian(ctx, name, student.ParentEmail, hash, student.Phone)
		if err != nil {
			return err
		}
		h.logger.Info("guardian auto-provisioned",
			zap.Int64("guardian_id", g.ID),
			zap.String("email", g.Email))
	}
	_, err = h.repo.LinkGuardian(ctx, schoolID, student.ID, g.ID)
	return err
}

type linkRequest struct {
	SchoolID  int64 `json:"school_id" binding:"required"`
	StudentID int64 `json:"student_id" binding:"required"`
}

// Link lets a guardian claim a student whose enrollment carries the
// guardian's own email. A pair already linked yields 409.
func (h *Handler) Link(c *gin.Context) {
	guardianID := middleware.GuardianID(c)

	var in linkRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	ctx := c.Request.Context()
	student, err := h.repo.Student(ctx, in.SchoolID, in.StudentID)
	if err != nil {
		h.logger.Error("link student", zap.Int64("school_id", in.SchoolID), zap.Error(err))
		response.Internal(c, "failed to link student")
		return
	}
	if student == nil {
		response.NotFound(c, "student not found")
		return
	}

	g, err := h.guardians.GuardianByID(ctx, guardianID)
	if err != nil || g == nil {
		response.Unauthorized(c, "guardian not found")
		return
	}
	if !strings.EqualFold(student.ParentEmail, g.Email) {
		response.Forbidden(c, "student is not enrolled under this email")
		return
	}

	created, err := h.repo.LinkGuardian(ctx, in.SchoolID, in.StudentID, guardianID)
	if err != nil {
		h.logger.Error("link student", zap.Int64("school_id", in.SchoolID), zap.Error(err))
		response.Internal(c, "failed to link student")
		return
	}
	if !created {
		response.Conflict(c, "student already linked")
		return
	}
	response.Created(c, gin.H{"linked": true})
}

// List returns every student of the authenticated school.
func (h *Handler) List(c *gin.Context) {
	schoolID := middleware.SchoolID(c)
	list, err := h.repo.Students(c.Request.Context(), schoolID)
	if err != nil {
		h.logger.Error("list students", zap.Int64("school_id", schoolID), zap.Error(err))
		response.Internal(c, "failed to list students")
		return
	}
	if list == nil {
		list = []models.Student{}
	}
	response.OK(c, list)
}

// Get returns one student of the authenticated school.
func (h *Handler) Get(c *gin.Context) {
	schoolID := middleware.SchoolID(c)
	studentID, err := strconv.ParseInt(c.Param("studentId"), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid student id")
		return
	}
	s, err := h.repo.Student(c.Request.Context(), schoolID, studentID)
	if err != nil {
		h.logger.Error("get student", zap.Int64("school_id", schoolID), zap.Error(err))
		response.Internal(c, "failed to load student")
		return
	}
	if s == nil {
		response.NotFound(c, "student not found")
		return
	}
	response.OK(c, s)
}

// Search filters the school's students by name substring.
func (h *Handler) Search(c *gin.Context) {
	schoolID := middleware.SchoolID(c)
	q := c.Query("q")
	if q == "" {
		response.BadRequest(c, "missing query parameter q")
		return
	}
	list, err := h.repo.Search(c.Request.Context(), schoolID, q)
	if err != nil {
		h.logger.Error("search students", zap.Int64("school_id", schoolID), zap.Error(err))
		response.Internal(c, "failed to search students")
		return
	}
	if list == nil {
		list = []models.Student{}
	}
	response.OK(c, list)
}

// Update overwrites a student's profile fields.
func (h *Handler) Update(c *gin.Context) {
	schoolID := middleware.SchoolID(c)
	studentID, err := strconv.ParseInt(c.Param("studentId"), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid student id")
		return
	}

	var in enrollRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	s := &models.Student{
		ID:          studentID,
		Name:        in.Name,
		ParentEmail: strings.ToLower(strings.TrimSpace(in.ParentEmail)),
		Phone:       in.Phone,
		PhotoURL:    in.PhotoURL,
		ClassName:   in.ClassName,
		Age:         in.Age,
	}
	if err := h.repo.Update(c.Request.Context(), schoolID, s); err != nil {
		h.logger.Error("update student", zap.Int64("school_id", schoolID), zap.Error(err))
		response.Internal(c, "failed to update student")
		return
	}
	response.OK(c, s)
}

// Delete removes a student and everything hanging off it.
func (h *Handler) Delete(c *gin.Context) {
	schoolID := middleware.SchoolID(c)
	studentID, err := strconv.ParseInt(c.Param("studentId"), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid student id")
		return
	}
	if err := h.repo.Delete(c.Request.Context(), schoolID, studentID); err != nil {
		h.logger.Error("delete student", zap.Int64("school_id", schoolID), zap.Error(err))
		response.Internal(c, "failed to delete student")
		return
	}
	response.OK(c, gin.H{"deleted": true})
}

// UpdateFace replaces the student's stored recognition descriptor. The blob
// comes from the external recognition process and is opaque here.
func (h *Handler) UpdateFace(c *gin.Context) {
	schoolID := middleware.SchoolID(c)
	studentID, err := strconv.ParseInt(c.Param("studentId"), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid student id")
		return
	}

	var in struct {
		Descriptor []byte `json:"descriptor" binding:"required"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	if err := h.repo.UpdateFaceDescriptor(c.Request.Context(), schoolID, studentID, in.Descriptor); err != nil {
		h.logger.Error("update face descriptor", zap.Int64("school_id", schoolID), zap.Error(err))
		response.Internal(c, "failed to update face descriptor")
		return
	}
	response.OK(c, gin.H{"updated": true})
}

// Linked returns every student linked to the authenticated guardian across
// all schools, tagged with each school's identity and location.
func (h *Handler) Linked(c *gin.Context) {
	guardianID := middleware.GuardianID(c)

	list, err := aggregate.AcrossTenants(c.Request.Context(), h.guardians, h.schools, guardianID,
		func(ctx context.Context, school models.School) ([]models.Student, error) {
			linked, err := h.repo.LinkedStudents(ctx, school.ID, guardianID)
			if err != nil {
				return nil, err
			}
			for i := range linked {
				linked[i].SchoolID = school.ID
				linked[i].SchoolName = school.Name
				linked[i].Latitude = school.Latitude
				linked[i].Longitude = school.Longitude
			}
			return linked, nil
		}, h.logger)
	if err != nil {
		h.logger.Error("linked students", zap.Int64("guardian_id", guardianID), zap.Error(err))
		response.Internal(c, "failed to load students")
		return
	}
	if list == nil {
		list = []models.Student{}
	}
	response.OK(c, list)
}

// Guardians lists the guardian accounts linked to one student, resolved
// against the system directory.
func (h *Handler) Guardians(c *gin.Context) {
	schoolID := middleware.SchoolID(c)
	studentID, err := strconv.ParseInt(c.Param("studentId"), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid student id")
		return
	}

	ctx := c.Request.Context()
	ids, err := h.repo.Guardians(ctx, schoolID, studentID)
	if err != nil {
		h.logger.Error("student guardians", zap.Int64("school_id", schoolID), zap.Error(err))
		response.Internal(c, "failed to load guardians")
		return
	}
	list := make([]models.Guardian, 0, len(ids))
	for _, id := range ids {
		g, err := h.guardians.GuardianByID(ctx, id)
		if err != nil {
			h.logger.Error("resolve guardian", zap.Int64("guardian_id", id), zap.Error(err))
			continue
		}
		if g != nil {
			list = append(list, *g)
		}
	}
	response.OK(c, list)
}

// SearchInSchool filters one school's students by name, for the guardian
// linking flow. Face descriptors and contact details stay hidden behind the
// model's json tags.
func (h *Handler) SearchInSchool(c *gin.Context) {
	schoolID, err := strconv.ParseInt(c.Param("schoolId"), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid school id")
		return
	}
	q := c.Query("q")
	if q == "" {
		response.BadRequest(c, "missing query parameter q")
		return
	}
	list, err := h.repo.Search(c.Request.Context(), schoolID, q)
	if err != nil {
		h.logger.Error("search students", zap.Int64("school_id", schoolID), zap.Error(err))
		response.Internal(c, "failed to search students")
		return
	}
	if list == nil {
		list = []models.Student{}
	}
	response.OK(c, list)
}

// ClassesInSchool lists one school's cohorts for the guardian linking flow.
func (h *Handler) ClassesInSchool(c *gin.Context) {
	schoolID, err := strconv.ParseInt(c.Param("schoolId"), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid school id")
		return
	}
	list, err := h.repo.Classes(c.Request.Context(), schoolID)
	if err != nil {
		h.logger.Error("list classes", zap.Int64("school_id", schoolID), zap.Error(err))
		response.Internal(c, "failed to list classes")
		return
	}
	if list == nil {
		list = []models.Class{}
	}
	response.OK(c, list)
}

// ClassStudents returns the roster of one cohort of the authenticated
// school.
func (h *Handler) ClassStudents(c *gin.Context) {
	schoolID := middleware.SchoolID(c)
	classID, err := strconv.ParseInt(c.Param("classId"), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid class id")
		return
	}
	list, err := h.repo.StudentsByClass(c.Request.Context(), schoolID, classID)
	if err != nil {
		h.logger.Error("class roster", zap.Int64("school_id", schoolID), zap.Error(err))
		response.Internal(c, "failed to load class roster")
		return
	}
	if list == nil {
		list = []models.Student{}
	}
	response.OK(c, list)
}

// Classes lists the authenticated school's cohorts.
func (h *Handler) Classes(c *gin.Context) {
	schoolID := middleware.SchoolID(c)
	list, err := h.repo.Classes(c.Request.Context(), schoolID)
	if err != nil {
		h.logger.Error("list classes", zap.Int64("school_id", schoolID), zap.Error(err))
		response.Internal(c, "failed to list classes")
		return
	}
	if list == nil {
		list = []models.Class{}
	}
	response.OK(c, list)
}

// CreateClass adds a cohort to the authenticated school.
func (h *Handler) CreateClass(c *gin.Context) {
	schoolID := middleware.SchoolID(c)

	var in struct {
		Name        string `json:"name" binding:"required"`
		Description string `json:"description"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	cl := &models.Class{Name: in.Name, Description: in.Description}
	if err := h.repo.CreateClass(c.Request.Context(), schoolID, cl); err != nil {
		h.logger.Error("create class", zap.Int64("school_id", schoolID), zap.Error(err))
		response.Internal(c, "failed to create class")
		return
	}
	response.Created(c, cl)
}
