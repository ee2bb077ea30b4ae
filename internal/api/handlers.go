package api

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/dolva2000/yekolaap/internal/database"
	"github.com/dolva2000/yekolaap/internal/practice"
)

// Answer uploads are capped; a spoken answer is a few seconds of audio.
const maxAnswerUploadBytes = 10 << 20

// ApiHandler wires the HTTP surface to the store and the practice core.
type ApiHandler struct {
	Store     *database.Store
	Selector  *practice.Selector
	Evaluator *practice.Evaluator
	JWTKey    []byte
}

func NewApiHandler(store *database.Store, selector *practice.Selector, evaluator *practice.Evaluator, jwtKey []byte) *ApiHandler {
	return &ApiHandler{Store: store, Selector: selector, Evaluator: evaluator, JWTKey: jwtKey}
}

// RegisterRequest is the registration payload.
type RegisterRequest struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

// Credentials is the login payload.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *ApiHandler) RegisterUser(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		respondWithError(w, http.StatusBadRequest, "A valid email is required")
		return
	}
	if len(req.Password) < 6 {
		respondWithError(w, http.StatusBadRequest, "Password must be at least 6 characters")
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to hash password")
		return
	}

	userID, err := h.Store.CreateUser(r.Context(), req.Email, string(hashedPassword), req.FullName, req.Phone)
	if err != nil {
		if errors.Is(err, database.ErrEmailTaken) {
			respondWithError(w, http.StatusConflict, "Email already exists")
			return
		}
		log.Printf("Failed to register %s: %v", req.Email, err)
		respondWithError(w, http.StatusInternalServerError, "Failed to register user")
		return
	}

	respondWithJSON(w, http.StatusCreated, map[string]any{"id": userID, "email": req.Email})
}

func (h *ApiHandler) LoginUser(w http.ResponseWriter, r *http.Request) {
	var creds Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	user, err := h.Store.GetUserByEmail(r.Context(), strings.ToLower(strings.TrimSpace(creds.Email)))
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Database error")
		return
	}
	if user == nil {
		respondWithError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(creds.Password)) != nil {
		respondWithError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	claims := &Claims{
		UserID: user.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(72 * time.Hour)),
		},
	}
	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(h.JWTKey)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to create token")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"token": tokenString})
}

func (h *ApiHandler) GetCourses(w http.ResponseWriter, r *http.Request) {
	courses, err := h.Store.ListCourses(r.Context())
	if err != nil {
		log.Printf("Failed to query courses: %v", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to query courses")
		return
	}
	respondWithJSON(w, http.StatusOK, courses)
}

func (h *ApiHandler) GetLevels(w http.ResponseWriter, r *http.Request) {
	courseSlug := r.URL.Query().Get("course")
	if courseSlug == "" {
		respondWithError(w, http.StatusBadRequest, "Query parameter required: course=slug")
		return
	}
	levels, err := h.Store.ListLevels(r.Context(), courseSlug)
	if err != nil {
		log.Printf("Failed to query levels for %s: %v", courseSlug, err)
		respondWithError(w, http.StatusInternalServerError, "Failed to query levels")
		return
	}
	respondWithJSON(w, http.StatusOK, levels)
}

// courseLevelParams reads the course slug and level number shared by every
// practice endpoint.
func courseLevelParams(r *http.Request) (string, int, bool) {
	course := r.URL.Query().Get("course")
	levelRaw := r.URL.Query().Get("level")
	if course == "" && r.Method != http.MethodGet {
		course = r.FormValue("course")
		levelRaw = r.FormValue("level")
	}
	level, err := strconv.Atoi(levelRaw)
	if course == "" || levelRaw == "" || err != nil {
		return "", 0, false
	}
	return course, level, true
}

func (h *ApiHandler) StartPractice(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(ContextUserIDKey).(int)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Invalid token (no user ID)")
		return
	}
	course, levelNumber, ok := courseLevelParams(r)
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Params required: course=slug & level=number")
		return
	}

	level, err := h.Store.GetLevel(r.Context(), course, levelNumber)
	if err != nil {
		log.Printf("Failed to load level %s/%d: %v", course, levelNumber, err)
		respondWithError(w, http.StatusInternalServerError, "Failed to load level")
		return
	}
	if level == nil {
		respondWithError(w, http.StatusNotFound, "Level not found")
		return
	}

	if err := h.Store.EnsureEnrollment(r.Context(), userID, level.CourseID); err != nil {
		log.Printf("Failed to enroll user %d in course %d: %v", userID, level.CourseID, err)
		respondWithError(w, http.StatusInternalServerError, "Failed to start practice")
		return
	}
	total, err := h.Store.CountActiveItems(r.Context(), level.ID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to start practice")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]any{
		"course":      level.CourseSlug,
		"level":       level.Number,
		"total_items": total,
	})
}

func (h *ApiHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(ContextUserIDKey).(int)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Invalid token (no user ID)")
		return
	}
	course, levelNumber, ok := courseLevelParams(r)
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Params required: course=slug & level=number")
		return
	}

	level, err := h.Store.GetLevel(r.Context(), course, levelNumber)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to load level")
		return
	}
	if level == nil {
		respondWithError(w, http.StatusNotFound, "Level not found")
		return
	}

	summary, err := h.Store.ProgressSummary(r.Context(), userID, level.ID, time.Now())
	if err != nil {
		log.Printf("Failed to load progress for user %d level %d: %v", userID, level.ID, err)
		respondWithError(w, http.StatusInternalServerError, "Failed to load progress")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]any{
		"course":   level.CourseSlug,
		"level":    level.Number,
		"total":    summary.Total,
		"learned":  summary.Learned,
		"due":      summary.Due,
		"mastered": summary.Mastered,
	})
}

func (h *ApiHandler) NextExercise(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(ContextUserIDKey).(int)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Invalid token (no user ID)")
		return
	}
	course, levelNumber, ok := courseLevelParams(r)
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Params required: course=slug & level=number")
		return
	}

	mode := practice.ParseMode(r.URL.Query().Get("mode"))
	res, err := h.Selector.Next(r.Context(), userID, course, levelNumber, mode)
	if err != nil {
		h.respondPracticeError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, res)
}

// SubmitAnswer accepts JSON or multipart form data; multipart carries an
// optional recorded answer in the "file" field.
func (h *ApiHandler) SubmitAnswer(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(ContextUserIDKey).(int)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Invalid token (no user ID)")
		return
	}

	req, ok := h.parseAnswerRequest(w, r)
	if !ok {
		return
	}

	res, err := h.Evaluator.Submit(r.Context(), userID, req)
	if err != nil {
		h.respondPracticeError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, res)
}

func (h *ApiHandler) parseAnswerRequest(w http.ResponseWriter, r *http.Request) (practice.AnswerRequest, bool) {
	var req practice.AnswerRequest

	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseMultipartForm(maxAnswerUploadBytes); err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid multipart payload")
			return req, false
		}
		req.ExerciseID, _ = strconv.Atoi(r.FormValue("exercise_id"))
		req.Mode = practice.ParseMode(r.FormValue("mode"))
		req.Answer = firstNonEmpty(r.FormValue("answer"), r.FormValue("answer_text"), r.FormValue("choice"))
		if ms, err := strconv.Atoi(r.FormValue("time_ms")); err == nil {
			req.TimeMS = &ms
		}
		if file, _, err := r.FormFile("file"); err == nil {
			defer file.Close()
			audio, err := io.ReadAll(io.LimitReader(file, maxAnswerUploadBytes))
			if err != nil {
				respondWithError(w, http.StatusBadRequest, "Failed to read uploaded audio")
				return req, false
			}
			req.Audio = audio
		}
		return req, true
	}

	var body struct {
		ExerciseID int    `json:"exercise_id"`
		Mode       string `json:"mode"`
		Answer     string `json:"answer"`
		AnswerText string `json:"answer_text"`
		Choice     string `json:"choice"`
		TimeMS     *int   `json:"time_ms"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return req, false
	}
	req.ExerciseID = body.ExerciseID
	req.Mode = practice.ParseMode(body.Mode)
	req.Answer = firstNonEmpty(body.Answer, body.AnswerText, body.Choice)
	req.TimeMS = body.TimeMS
	return req, true
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// respondPracticeError maps the practice error taxonomy onto HTTP statuses.
func (h *ApiHandler) respondPracticeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, practice.ErrValidation):
		respondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, practice.ErrLevelNotFound):
		respondWithError(w, http.StatusNotFound, "Level not found")
	case errors.Is(err, practice.ErrExerciseNotFound):
		respondWithError(w, http.StatusNotFound, "Exercise not found")
	case errors.Is(err, practice.ErrConflict):
		respondWithError(w, http.StatusConflict, "Progress was updated concurrently, please retry")
	default:
		log.Printf("Practice request failed: %v", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}
