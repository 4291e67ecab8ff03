package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/kladdkaka/internal/app"
	"github.com/shrimpsizemoose/kladdkaka/internal/metrics"
	"github.com/shrimpsizemoose/kladdkaka/internal/rules"
)

// EventHandler covers the endpoints that turn platform actions into
// ledger writes: engagement, attendance sheets, homework grading.
type EventHandler struct {
	service *app.Service
}

func NewEventHandler(service *app.Service) *EventHandler {
	return &EventHandler{
		service: service,
	}
}

// HandleEngagement records the self-issued credit for a post, comment or
// shared material. The acting user comes from a header and must match the
// bearer token, so engagement credit can only be claimed for oneself.
func (h *EventHandler) HandleEngagement(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "200"
	defer func() {
		duration := time.Since(start).Seconds()
		metrics.APIRequestDuration.WithLabelValues(
			r.URL.Path,
			r.Method,
			status,
		).Observe(duration)
	}()

	if r.Method != http.MethodPost {
		status = "405"
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if !h.service.ValidateHeaders(r.Header) {
		status = "403"
		http.Error(w, "these are not the droids you are looking for", http.StatusForbidden)
		return
	}

	course := r.PathValue("course")
	if course == "" {
		logger.Error.Printf("Failed to extract course from path: %s", r.URL.Path)
		status = "400"
		http.Error(w, "Invalid course", http.StatusBadRequest)
		return
	}

	user := r.Header.Get(h.service.Config.API.UserIDHeader)
	if user == "" {
		status = "401"
		http.Error(w, "Invalid user id specified", http.StatusUnauthorized)
		return
	}

	if err := h.service.ValidateAuthAndUser(r, course, user); err != nil {
		logger.Error.Printf("Auth failed: %v", err)
		status = "401"
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		Kind     string `json:"kind"`
		EntityID string `json:"entity_id"`
		Context  string `json:"context"`
		Title    string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		status = "400"
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	granted, err := h.service.RecordEngagement(r.Context(), rules.Event{
		Kind:     rules.Kind(req.Kind),
		UserID:   user,
		IssuerID: user,
		EntityID: req.EntityID,
		Context:  req.Context,
		Title:    req.Title,
	})
	if err != nil {
		logger.Error.Printf("Engagement credit for %s failed: %v", user, err)
		status = "400"
		http.Error(w, "Failed to record engagement", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"granted": granted,
	})
}

// HandleAttendance saves an organizer's sheet for one lecture. The sheet
// is reconciled per student, so re-submitting the same sheet never grants
// twice and flipping a student to absent takes the credit back.
func (h *EventHandler) HandleAttendance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if !h.service.ValidateHeaders(r.Header) {
		http.Error(w, "these are not the droids you are looking for", http.StatusForbidden)
		return
	}

	lecture := r.PathValue("lecture")
	if lecture == "" {
		logger.Error.Printf("Failed to extract lecture from path: %s", r.URL.Path)
		http.Error(w, "Invalid lecture", http.StatusBadRequest)
		return
	}

	var req struct {
		LectureTitle string               `json:"lecture_title"`
		OrganizerID  string               `json:"organizer_id"`
		Marks        []app.AttendanceMark `json:"marks"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.OrganizerID == "" || len(req.Marks) == 0 {
		http.Error(w, "organizer_id and marks are required", http.StatusBadRequest)
		return
	}

	if err := h.service.SaveAttendance(r.Context(), lecture, req.LectureTitle, req.OrganizerID, req.Marks); err != nil {
		logger.Error.Printf("Failed to save attendance for %s: %v", lecture, err)
		http.Error(w, "Failed to save attendance", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// HandleSubmission upserts the acting student's answer to an assignment.
// Like engagement, the student comes from the user header and must match
// the bearer token. Grading is a separate organizer call.
func (h *EventHandler) HandleSubmission(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if !h.service.ValidateHeaders(r.Header) {
		http.Error(w, "these are not the droids you are looking for", http.StatusForbidden)
		return
	}

	course := r.PathValue("course")
	if course == "" {
		logger.Error.Printf("Failed to extract course from path: %s", r.URL.Path)
		http.Error(w, "Invalid course", http.StatusBadRequest)
		return
	}

	assignment := r.PathValue("assignment")
	if assignment == "" {
		logger.Error.Printf("Failed to extract assignment from path: %s", r.URL.Path)
		http.Error(w, "Invalid assignment", http.StatusBadRequest)
		return
	}

	user := r.Header.Get(h.service.Config.API.UserIDHeader)
	if user == "" {
		http.Error(w, "Invalid user id specified", http.StatusUnauthorized)
		return
	}

	if err := h.service.ValidateAuthAndUser(r, course, user); err != nil {
		logger.Error.Printf("Auth failed: %v", err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		Content string `json:"content"`
		FileURL string `json:"file_url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.service.SubmitHomework(r.Context(), assignment, user, req.Content, req.FileURL); err != nil {
		logger.Error.Printf("Failed to save submission %s for %s: %v", assignment, user, err)
		http.Error(w, "Failed to save submission", http.StatusBadRequest)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *EventHandler) HandleGrade(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if !h.service.ValidateHeaders(r.Header) {
		http.Error(w, "these are not the droids you are looking for", http.StatusForbidden)
		return
	}

	assignment := r.PathValue("assignment")
	if assignment == "" {
		logger.Error.Printf("Failed to extract assignment from path: %s", r.URL.Path)
		http.Error(w, "Invalid assignment", http.StatusBadRequest)
		return
	}

	var req struct {
		AssignmentTitle string `json:"assignment_title"`
		StudentID       string `json:"student_id"`
		IssuerID        string `json:"issuer_id"`
		Grade           int    `json:"grade"`
		Feedback        string `json:"feedback"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	err := h.service.GradeSubmission(
		r.Context(),
		assignment,
		req.AssignmentTitle,
		req.StudentID,
		req.IssuerID,
		req.Grade,
		req.Feedback,
	)
	if err != nil {
		logger.Error.Printf("Failed to grade %s for %s: %v", assignment, req.StudentID, err)
		http.Error(w, "Failed to grade submission", http.StatusBadRequest)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// HandleAttendanceList returns the saved sheet for a lecture.
func (h *EventHandler) HandleAttendanceList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if !h.service.ValidateHeaders(r.Header) {
		http.Error(w, "these are not the droids you are looking for", http.StatusNotFound)
		return
	}

	lecture := r.PathValue("lecture")
	if lecture == "" {
		http.Error(w, "Invalid lecture", http.StatusBadRequest)
		return
	}

	recs, err := h.service.Store.ListLectureAttendance(lecture)
	if err != nil {
		logger.Error.Printf("Failed to list attendance for %s: %v", lecture, err)
		http.Error(w, "Failed to fetch attendance", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"rows": recs,
	}); err != nil {
		logger.Error.Printf("Failed to encode attendance: %v", err)
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}
