/*
handlers.go - HTTP API handlers for the gym credit engine

ENDPOINTS:
  Users:
    GET    /api/users                  List users
    POST   /api/users                  Create user
    GET    /api/users/{id}             User detail (balance, reservation history)
    GET    /api/users/{id}/balance     Balance and remaining lots
    GET    /api/users/{id}/ledger      Ledger entries, oldest first

  Policies:
    GET    /api/policies               List price policies
    POST   /api/policies               Create price policy
    GET    /api/policies/{id}          Get price policy
    POST   /api/policies/{id}/purchase Buy a membership (acting user)

  Lessons:
    GET    /api/lessons                List lessons
    POST   /api/lessons                Create lesson
    GET    /api/lessons/{id}           Lesson detail with reservations
    POST   /api/lessons/{id}/reserve   Reserve (acting user)

  Reservations:
    POST   /api/reservations/{id}/cancel  Cancel (acting user)

  Scenarios (DEMO_SCENARIOS=true):
    GET    /api/scenarios              List demo scenarios
    POST   /api/scenarios/load         Load one into the database

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Business-rule violations, invalid input
  - 401: Missing X-User-ID on an acting-user route
  - 403: Acting on another user's reservation
  - 404: Resource not found
  - 500: Internal errors (details are logged, not returned)

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - scenarios.go: Demo scenario handlers
*/
package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/warp/gym-credit/booking"
	"github.com/warp/gym-credit/gym"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service *booking.Service
	Logger  *slog.Logger
}

func NewHandler(svc *booking.Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{Service: svc, Logger: logger}
}

// =============================================================================
// ACTING USER
// =============================================================================

const UserHeader = "X-User-ID"

type actorKey struct{}

// RequireUser rejects requests without an X-User-ID header and stores the
// acting user on the request context.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(UserHeader))
		if id == "" {
			writeError(w, http.StatusUnauthorized, "missing "+UserHeader+" header", nil)
			return
		}
		ctx := context.WithValue(r.Context(), actorKey{}, gym.UserID(id))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func actor(r *http.Request) gym.UserID {
	id, _ := r.Context().Value(actorKey{}).(gym.UserID)
	return id
}

// =============================================================================
// USER ENDPOINTS
// =============================================================================

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.Service.ListUsers(r.Context())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	result := make([]UserDTO, 0, len(users))
	for _, u := range users {
		result = append(result, toUserDTO(u))
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if !decode(w, r, &req) {
		return
	}
	u, err := h.Service.CreateUser(r.Context(), booking.NewUser{
		Username:    req.Username,
		PhoneNumber: req.PhoneNumber,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserDTO(u))
}

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	detail, err := h.Service.UserDetail(r.Context(), gym.UserID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserDetailDTO(detail))
}

func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := gym.UserID(chi.URLParam(r, "id"))

	if _, err := h.Service.GetUser(ctx, userID); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	balance, err := h.Service.CreditBalance(ctx, userID)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	lots, err := h.Service.RemainingLots(ctx, userID)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceDTO{
		UserID:        string(userID),
		CreditBalance: balance,
		Lots:          toLotDTOs(lots),
	})
}

func (h *Handler) GetLedger(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Service.Entries(r.Context(), gym.UserID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryDTOs(entries))
}

// =============================================================================
// POLICY ENDPOINTS
// =============================================================================

func (h *Handler) ListPolicies(w http.ResponseWriter, r *http.Request) {
	policies, err := h.Service.ListPolicies(r.Context())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	result := make([]PolicyDTO, 0, len(policies))
	for _, p := range policies {
		result = append(result, toPolicyDTO(p))
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) CreatePolicy(w http.ResponseWriter, r *http.Request) {
	var req CreatePolicyRequest
	if !decode(w, r, &req) {
		return
	}
	p, err := h.Service.CreatePolicy(r.Context(), booking.NewPolicy{
		Name:        req.Name,
		Price:       req.Price,
		CreditCount: req.CreditCount,
		Period:      req.Period,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPolicyDTO(p))
}

func (h *Handler) GetPolicy(w http.ResponseWriter, r *http.Request) {
	p, err := h.Service.GetPolicy(r.Context(), gym.PolicyID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPolicyDTO(*p))
}

func (h *Handler) BuyCredit(w http.ResponseWriter, r *http.Request) {
	var req PurchaseRequest
	// The body is optional.
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.EndDate != nil {
		h.writeDomainError(w, r, gym.ErrEndDateDerived)
		return
	}

	var start gym.Date
	if req.StartDate != nil {
		start = *req.StartDate
	}
	lot, err := h.Service.BuyCredit(r.Context(), actor(r), gym.PolicyID(chi.URLParam(r, "id")), start)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toEntryDTO(lot))
}

// =============================================================================
// LESSON ENDPOINTS
// =============================================================================

func (h *Handler) ListLessons(w http.ResponseWriter, r *http.Request) {
	lessons, err := h.Service.ListLessons(r.Context())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	result := make([]LessonDTO, 0, len(lessons))
	for _, l := range lessons {
		result = append(result, toLessonDTO(l))
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) CreateLesson(w http.ResponseWriter, r *http.Request) {
	var req CreateLessonRequest
	if !decode(w, r, &req) {
		return
	}
	l, err := h.Service.CreateLesson(r.Context(), booking.NewLesson{
		Gym:         req.Gym,
		Type:        req.Type,
		CreditCount: req.CreditCount,
		MaxCapacity: req.MaxCapacity,
		StartDate:   req.StartDate,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toLessonDTO(l))
}

func (h *Handler) GetLesson(w http.ResponseWriter, r *http.Request) {
	detail, err := h.Service.GetLesson(r.Context(), gym.LessonID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	dto := LessonDetailDTO{
		LessonDTO:    toLessonDTO(detail.Lesson),
		Holding:      detail.Holding,
		Reservations: make([]ReservationDTO, 0, len(detail.Reservations)),
	}
	for _, res := range detail.Reservations {
		dto.Reservations = append(dto.Reservations, toReservationDTO(res))
	}
	writeJSON(w, http.StatusOK, dto)
}

func (h *Handler) Reserve(w http.ResponseWriter, r *http.Request) {
	res, err := h.Service.Reserve(r.Context(), actor(r), gym.LessonID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toReservationDTO(res))
}

// =============================================================================
// RESERVATION ENDPOINTS
// =============================================================================

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	res, err := h.Service.Cancel(r.Context(), gym.ReservationID(chi.URLParam(r, "id")), actor(r))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toReservationDTO(res))
}

// =============================================================================
// HELPERS
// =============================================================================

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps engine errors to HTTP statuses.
func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	code := errorCode(err)
	switch {
	case gym.IsNotFound(err):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: code})
	case gym.IsForbidden(err):
		writeJSON(w, http.StatusForbidden, ErrorResponse{Error: err.Error(), Code: code})
	case gym.IsClientError(err):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: code})
	default:
		h.Logger.Error("request failed",
			"request_id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}

var errorCodes = []struct {
	err  error
	code string
}{
	{gym.ErrExceedMaxCapacity, "exceed_max_capacity"},
	{gym.ErrExceedLessonTime, "exceed_lesson_time"},
	{gym.ErrAlreadyRegistered, "already_registered"},
	{gym.ErrNotEnoughCredit, "not_enough_credit"},
	{gym.ErrInvalidReservationType, "invalid_reservation_type"},
	{gym.ErrNotYourReservation, "not_your_reservation"},
	{gym.ErrAlreadyCanceled, "already_canceled"},
	{gym.ErrInvalidCancelDate, "invalid_cancel_date"},
	{gym.ErrEndDateDerived, "end_date_derived"},
	{gym.ErrInvalidEndTime, "invalid_end_time"},
	{gym.ErrInvalidLesson, "invalid_lesson"},
	{gym.ErrInvalidPolicy, "invalid_policy"},
	{gym.ErrInvalidUser, "invalid_user"},
	{gym.ErrUsernameTaken, "username_taken"},
	{gym.ErrUserNotFound, "user_not_found"},
	{gym.ErrPolicyNotFound, "policy_not_found"},
	{gym.ErrLessonNotFound, "lesson_not_found"},
	{gym.ErrReservationNotFound, "reservation_not_found"},
}

func errorCode(err error) string {
	for _, c := range errorCodes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return ""
}
