package lms

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	learnstream "github.com/learnstream/learnstream"
)

const (
	defaultPerPage = 20
	maxPerPage     = 100
)

// Server exposes the LMS HTTP API.
type Server struct {
	bus    *learnstream.CommandBus
	models *ReadModels
	logger learnstream.Logger
}

// NewServer creates the API server. A nil logger disables logging.
func NewServer(bus *learnstream.CommandBus, models *ReadModels, logger learnstream.Logger) *Server {
	if logger == nil {
		logger = learnstream.NopLogger()
	}
	return &Server{bus: bus, models: models, logger: logger}
}

// Routes builds the router. Callers may mount additional handlers, such
// as a metrics endpoint, on the returned mux.
func (s *Server) Routes() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Route("/courses", func(r chi.Router) {
			r.Get("/", s.handleListCourses)
			r.Post("/", s.handleCreateCourse)
			r.Get("/{id}", s.handleGetCourse)
			r.Put("/{id}", s.handleUpdateCourse)
			r.Delete("/{id}", s.handleDeleteCourse)
		})
		r.Route("/lessons", func(r chi.Router) {
			r.Get("/", s.handleListLessons)
			r.Post("/", s.handleCreateLesson)
			r.Get("/{id}", s.handleGetLesson)
			r.Put("/{id}", s.handleUpdateLesson)
			r.Delete("/{id}", s.handleDeleteLesson)
			r.Post("/{id}/complete", s.handleCompleteLesson)
		})
		r.Get("/users/{id}/stats", s.handleUserStats)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respond(w, http.StatusOK, map[string]string{"status": "ok"})
}

type pagination struct {
	Page       int   `json:"page"`
	PerPage    int   `json:"per_page"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

type listEnvelope struct {
	Data       interface{} `json:"data"`
	Pagination pagination  `json:"pagination"`
}

func (s *Server) handleListCourses(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	if perPage < 1 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}

	sortBy := q.Get("sort")
	switch sortBy {
	case "title", "created_at", "instructor_id":
	default:
		sortBy = "created_at"
	}
	sortDesc := q.Get("order") != "asc"

	courses, total, err := s.models.ListCourses(r.Context(), CourseFilter{
		Title:        q.Get("title"),
		InstructorID: q.Get("instructor_id"),
		SortBy:       sortBy,
		SortDesc:     sortDesc,
		Page:         page,
		PerPage:      perPage,
	})
	if err != nil {
		s.respondError(w, err)
		return
	}

	s.respond(w, http.StatusOK, listEnvelope{
		Data: courses,
		Pagination: pagination{
			Page:       page,
			PerPage:    perPage,
			Total:      total,
			TotalPages: int(math.Ceil(float64(total) / float64(perPage))),
		},
	})
}

type createCourseRequest struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	InstructorID string `json:"instructor_id"`
}

func (s *Server) handleCreateCourse(w http.ResponseWriter, r *http.Request) {
	var req createCourseRequest
	if !s.decode(w, r, &req) {
		return
	}

	cmd := CreateCourse{
		CourseID:     uuid.NewString(),
		Title:        req.Title,
		Description:  req.Description,
		InstructorID: req.InstructorID,
	}
	if _, err := s.bus.Dispatch(r.Context(), cmd); err != nil {
		s.respondError(w, err)
		return
	}

	course, err := s.models.Courses.Get(r.Context(), cmd.CourseID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusCreated, course)
}

// courseDetail extends the course row with the requesting user's
// completion percentage. The percentage is null when no user is given.
type courseDetail struct {
	*CourseRecord
	CompletionPercentage *float64 `json:"completion_percentage"`
}

func (s *Server) handleGetCourse(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	course, err := s.models.Courses.Get(r.Context(), id)
	if err != nil {
		s.respondError(w, err)
		return
	}

	detail := courseDetail{CourseRecord: course}
	if userID := r.URL.Query().Get("user_id"); userID != "" {
		pct, err := s.models.CompletionPercentage(r.Context(), id, userID)
		if err != nil {
			s.respondError(w, err)
			return
		}
		detail.CompletionPercentage = &pct
	}
	s.respond(w, http.StatusOK, detail)
}

type updateCourseRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

func (s *Server) handleUpdateCourse(w http.ResponseWriter, r *http.Request) {
	var req updateCourseRequest
	if !s.decode(w, r, &req) {
		return
	}

	cmd := UpdateCourse{
		CourseID:    chi.URLParam(r, "id"),
		Title:       req.Title,
		Description: req.Description,
	}
	if _, err := s.bus.Dispatch(r.Context(), cmd); err != nil {
		s.respondError(w, err)
		return
	}

	course, err := s.models.Courses.Get(r.Context(), cmd.CourseID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, course)
}

func (s *Server) handleDeleteCourse(w http.ResponseWriter, r *http.Request) {
	cmd := DeleteCourse{CourseID: chi.URLParam(r, "id")}
	if _, err := s.bus.Dispatch(r.Context(), cmd); err != nil {
		s.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListLessons(w http.ResponseWriter, r *http.Request) {
	lessons, err := s.models.ListLessons(r.Context(), r.URL.Query().Get("course_id"))
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, map[string]interface{}{"data": lessons})
}

type createLessonRequest struct {
	CourseID string `json:"course_id"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	Order    int    `json:"order"`
}

func (s *Server) handleCreateLesson(w http.ResponseWriter, r *http.Request) {
	var req createLessonRequest
	if !s.decode(w, r, &req) {
		return
	}

	cmd := CreateLesson{
		LessonID: uuid.NewString(),
		CourseID: req.CourseID,
		Title:    req.Title,
		Content:  req.Content,
		Order:    req.Order,
	}
	if _, err := s.bus.Dispatch(r.Context(), cmd); err != nil {
		s.respondError(w, err)
		return
	}

	lesson, err := s.models.Lessons.Get(r.Context(), cmd.LessonID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusCreated, lesson)
}

func (s *Server) handleGetLesson(w http.ResponseWriter, r *http.Request) {
	lesson, err := s.models.Lessons.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, lesson)
}

type updateLessonRequest struct {
	Title   *string `json:"title"`
	Content *string `json:"content"`
	Order   *int    `json:"order"`
}

func (s *Server) handleUpdateLesson(w http.ResponseWriter, r *http.Request) {
	var req updateLessonRequest
	if !s.decode(w, r, &req) {
		return
	}

	cmd := UpdateLesson{
		LessonID: chi.URLParam(r, "id"),
		Title:    req.Title,
		Content:  req.Content,
		Order:    req.Order,
	}
	if _, err := s.bus.Dispatch(r.Context(), cmd); err != nil {
		s.respondError(w, err)
		return
	}

	lesson, err := s.models.Lessons.Get(r.Context(), cmd.LessonID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, lesson)
}

func (s *Server) handleDeleteLesson(w http.ResponseWriter, r *http.Request) {
	cmd := DeleteLesson{LessonID: chi.URLParam(r, "id")}
	if _, err := s.bus.Dispatch(r.Context(), cmd); err != nil {
		s.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type completeLessonRequest struct {
	UserID string `json:"user_id"`
}

func (s *Server) handleCompleteLesson(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		userID = r.Header.Get("X-User-Id")
	}
	if userID == "" && r.Body != nil && r.ContentLength != 0 {
		var req completeLessonRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
			userID = req.UserID
		}
	}
	if userID == "" {
		s.respond(w, http.StatusBadRequest, map[string]string{"error": "user_id is required"})
		return
	}

	cmd := CompleteLesson{
		LessonID: chi.URLParam(r, "id"),
		UserID:   userID,
	}
	if _, err := s.bus.Dispatch(r.Context(), cmd); err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, map[string]string{"message": "Lesson completed successfully"})
}

func (s *Server) handleUserStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.models.StatsForUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, stats)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.respond(w, http.StatusUnprocessableEntity, map[string]string{"error": "invalid request body"})
		return false
	}
	return true
}

func (s *Server) respond(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) respondError(w http.ResponseWriter, err error) {
	var (
		validationErr *learnstream.ValidationError
		notFoundErr   *learnstream.AggregateNotFoundError
	)
	switch {
	case errors.As(err, &validationErr):
		s.respond(w, http.StatusUnprocessableEntity, map[string]string{"error": validationErr.Message})
	case errors.As(err, &notFoundErr), errors.Is(err, learnstream.ErrNotFound),
		errors.Is(err, learnstream.ErrStreamNotFound):
		s.respond(w, http.StatusNotFound, map[string]string{"error": "not found"})
	case errors.Is(err, learnstream.ErrConcurrencyConflict):
		s.respond(w, http.StatusConflict, map[string]string{"error": "conflict, please retry"})
	default:
		s.logger.Error("request failed", "error", err)
		s.respond(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}
