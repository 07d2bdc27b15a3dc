package reco

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	json "github.com/goccy/go-json"

	learnstream "github.com/learnstream/learnstream"
)

// Server exposes the recommendation HTTP API.
type Server struct {
	ingestor *Ingestor
	engine   *Engine
	logger   learnstream.Logger
}

// NewServer creates the API server. A nil logger disables logging.
func NewServer(ingestor *Ingestor, engine *Engine, logger learnstream.Logger) *Server {
	if logger == nil {
		logger = learnstream.NopLogger()
	}
	return &Server{ingestor: ingestor, engine: engine, logger: logger}
}

// Routes builds the router. Callers may mount additional handlers, such
// as a metrics endpoint, on the returned mux.
func (s *Server) Routes() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Post("/api/events/lesson_completed", s.handleLessonCompleted)
	r.Get("/api/users/{id}/next_course", s.handleNextCourse)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respond(w, http.StatusOK, map[string]string{"status": "ok"})
}

// lessonCompletedRequest is the relay envelope sent by the LMS.
type lessonCompletedRequest struct {
	Event struct {
		UserID      string `json:"user_id"`
		LessonID    string `json:"lesson_id"`
		CourseID    string `json:"course_id"`
		CompletedAt string `json:"completed_at"`
	} `json:"event"`
}

func (s *Server) handleLessonCompleted(w http.ResponseWriter, r *http.Request) {
	var req lessonCompletedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respond(w, http.StatusUnprocessableEntity, map[string]string{"error": "invalid request body"})
		return
	}

	ev := req.Event
	switch {
	case ev.UserID == "":
		s.respond(w, http.StatusUnprocessableEntity, map[string]string{"error": "user_id is required"})
		return
	case ev.LessonID == "":
		s.respond(w, http.StatusUnprocessableEntity, map[string]string{"error": "lesson_id is required"})
		return
	case ev.CourseID == "":
		s.respond(w, http.StatusUnprocessableEntity, map[string]string{"error": "course_id is required"})
		return
	}

	completedAt := time.Now().UTC()
	if ev.CompletedAt != "" {
		parsed, err := time.Parse(time.RFC3339, ev.CompletedAt)
		if err != nil {
			s.respond(w, http.StatusUnprocessableEntity, map[string]string{"error": "completed_at is not a valid timestamp"})
			return
		}
		completedAt = parsed
	}

	stored, err := s.ingestor.Ingest(r.Context(), LessonCompleted{
		UserID:      ev.UserID,
		LessonID:    ev.LessonID,
		CourseID:    ev.CourseID,
		CompletedAt: completedAt,
	})
	if err != nil {
		s.logger.Error("failed to ingest completion event", "error", err)
		s.respond(w, http.StatusUnprocessableEntity, map[string]string{"error": "failed to process event"})
		return
	}

	s.respond(w, http.StatusCreated, map[string]string{
		"message":   "Event received and processed",
		"event_id":  stored.ID,
		"user_id":   ev.UserID,
		"lesson_id": ev.LessonID,
		"course_id": ev.CourseID,
	})
}

func (s *Server) handleNextCourse(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	rec, err := s.engine.Recommend(r.Context(), userID)
	if err != nil {
		s.logger.Error("failed to build recommendation", "error", err, "userId", userID)
		s.respond(w, http.StatusUnprocessableEntity, map[string]string{"error": "failed to build recommendation"})
		return
	}
	if rec == nil {
		s.respond(w, http.StatusNotFound, map[string]string{
			"user_id": userID,
			"message": "No recommendations available at this time",
		})
		return
	}

	s.respond(w, http.StatusOK, map[string]interface{}{
		"user_id":            userID,
		"recommended_course": rec,
	})
}

func (s *Server) respond(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}
