/*
dto.go - Data Transfer Objects for API requests and responses

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

DATES AND TIMES:
  Calendar days are "YYYY-MM-DD", lesson times "HH:MM", prices are decimal
  strings. gym.Date and gym.ClockTime marshal themselves.

VALIDATION:
  DTOs are pure data carriers. Domain validation happens in the booking
  service; handlers only reject bodies that fail to decode.
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/gym-credit/booking"
	"github.com/warp/gym-credit/gym"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

type CreateUserRequest struct {
	Username    string `json:"username"`
	PhoneNumber string `json:"phone_number"`
}

type CreatePolicyRequest struct {
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	CreditCount int64           `json:"credit_count"`
	Period      int             `json:"period"`
}

type CreateLessonRequest struct {
	Gym         gym.Location   `json:"gym"`
	Type        gym.LessonType `json:"lesson_type"`
	CreditCount int64          `json:"credit_count"`
	MaxCapacity int            `json:"max_capacity"`
	StartDate   gym.Date       `json:"start_date"`
	StartTime   gym.ClockTime  `json:"start_time"`
	EndTime     gym.ClockTime  `json:"end_time"`
}

// PurchaseRequest buys the policy for the acting user. StartDate defaults
// to today. EndDate is always derived; sending one is rejected.
type PurchaseRequest struct {
	StartDate *gym.Date `json:"start_date,omitempty"`
	EndDate   *gym.Date `json:"end_date,omitempty"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

type UserDTO struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	PhoneNumber string    `json:"phone_number"`
	IsAdmin     bool      `json:"is_admin"`
	CreatedAt   time.Time `json:"created_at"`
}

type UserDetailDTO struct {
	UserDTO
	CreditBalance int64            `json:"credit_balance"`
	Reservations  []ReservationDTO `json:"reservations"`
}

type PolicyDTO struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	CreditCount int64           `json:"credit_count"`
	Period      int             `json:"period"`
	CreatedAt   time.Time       `json:"created_at"`
}

type LessonDTO struct {
	ID          string         `json:"id"`
	Gym         gym.Location   `json:"gym"`
	Type        gym.LessonType `json:"lesson_type"`
	CreditCount int64          `json:"credit_count"`
	MaxCapacity int            `json:"max_capacity"`
	StartDate   gym.Date       `json:"start_date"`
	StartTime   gym.ClockTime  `json:"start_time"`
	EndTime     gym.ClockTime  `json:"end_time"`
	CreatedAt   time.Time      `json:"created_at"`
}

type LessonDetailDTO struct {
	LessonDTO
	Holding      int              `json:"holding"`
	Reservations []ReservationDTO `json:"reservations"`
}

type ReservationDTO struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	LessonID  string     `json:"lesson_id"`
	Kind      string     `json:"kind"`
	CancelID  string     `json:"cancel_id,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	Entries   []EntryDTO `json:"entries,omitempty"`
}

type EntryDTO struct {
	ID            string    `json:"id"`
	Amount        int64     `json:"amount"`
	Kind          string    `json:"kind"`
	StartDate     gym.Date  `json:"start_date"`
	EndDate       *gym.Date `json:"end_date,omitempty"`
	PolicyID      string    `json:"policy_id,omitempty"`
	ReservationID string    `json:"reservation_id,omitempty"`
	IsExpired     bool      `json:"is_expired,omitempty"`
	ExpiredLotID  string    `json:"expired_lot_id,omitempty"`
	SourceLotID   string    `json:"source_lot_id,omitempty"`
	Message       string    `json:"message"`
	CreatedAt     time.Time `json:"created_at"`
}

type LotDTO struct {
	ID        string    `json:"id"`
	Amount    int64     `json:"amount"`
	Remaining int64     `json:"remaining"`
	StartDate gym.Date  `json:"start_date"`
	EndDate   *gym.Date `json:"end_date"`
	Message   string    `json:"message"`
}

type BalanceDTO struct {
	UserID        string   `json:"user_id"`
	CreditBalance int64    `json:"credit_balance"`
	Lots          []LotDTO `json:"lots"`
}

// ScenarioDTO describes a loadable demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

type LoadScenarioResponse struct {
	ScenarioID string    `json:"scenario_id"`
	Users      []UserDTO `json:"users"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toUserDTO(u gym.User) UserDTO {
	return UserDTO{
		ID:          string(u.ID),
		Username:    u.Username,
		PhoneNumber: u.PhoneNumber,
		IsAdmin:     u.IsAdmin,
		CreatedAt:   u.CreatedAt,
	}
}

func toUserDetailDTO(d booking.UserDetail) UserDetailDTO {
	dto := UserDetailDTO{
		UserDTO:       toUserDTO(d.User),
		CreditBalance: d.CreditBalance,
		Reservations:  make([]ReservationDTO, 0, len(d.Reservations)),
	}
	for _, h := range d.Reservations {
		r := toReservationDTO(h.Reservation)
		r.Entries = toEntryDTOs(h.Entries)
		dto.Reservations = append(dto.Reservations, r)
	}
	return dto
}

func toPolicyDTO(p gym.PricePolicy) PolicyDTO {
	return PolicyDTO{
		ID:          string(p.ID),
		Name:        p.Name,
		Price:       p.Price,
		CreditCount: p.CreditCount,
		Period:      p.Period,
		CreatedAt:   p.CreatedAt,
	}
}

func toLessonDTO(l gym.Lesson) LessonDTO {
	return LessonDTO{
		ID:          string(l.ID),
		Gym:         l.Gym,
		Type:        l.Type,
		CreditCount: l.CreditCount,
		MaxCapacity: l.MaxCapacity,
		StartDate:   l.StartDate,
		StartTime:   l.StartTime,
		EndTime:     l.EndTime,
		CreatedAt:   l.CreatedAt,
	}
}

func toReservationDTO(r gym.Reservation) ReservationDTO {
	return ReservationDTO{
		ID:        string(r.ID),
		UserID:    string(r.UserID),
		LessonID:  string(r.LessonID),
		Kind:      string(r.Kind),
		CancelID:  string(r.CancelID),
		CreatedAt: r.CreatedAt,
	}
}

func toEntryDTO(e gym.LedgerEntry) EntryDTO {
	return EntryDTO{
		ID:            string(e.ID),
		Amount:        e.Amount,
		Kind:          string(e.Kind),
		StartDate:     e.StartDate,
		EndDate:       e.EndDate,
		PolicyID:      string(e.PolicyID),
		ReservationID: string(e.ReservationID),
		IsExpired:     e.IsExpired,
		ExpiredLotID:  string(e.ExpiredLotID),
		SourceLotID:   string(e.SourceLotID),
		Message:       e.Message,
		CreatedAt:     e.CreatedAt,
	}
}

func toEntryDTOs(entries []gym.LedgerEntry) []EntryDTO {
	result := make([]EntryDTO, 0, len(entries))
	for _, e := range entries {
		result = append(result, toEntryDTO(e))
	}
	return result
}

func toLotDTOs(lots []gym.Lot) []LotDTO {
	result := make([]LotDTO, 0, len(lots))
	for _, l := range lots {
		result = append(result, LotDTO{
			ID:        string(l.Entry.ID),
			Amount:    l.Entry.Amount,
			Remaining: l.Remaining,
			StartDate: l.Entry.StartDate,
			EndDate:   l.Entry.EndDate,
			Message:   l.Entry.Message,
		})
	}
	return result
}
