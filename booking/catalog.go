package booking

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/gym-credit/credit"
	"github.com/warp/gym-credit/gym"
	"github.com/warp/gym-credit/lesson"
)

// =============================================================================
// PRICE POLICIES
// =============================================================================

type NewPolicy struct {
	Name        string
	Price       decimal.Decimal
	CreditCount int64
	Period      int
}

func (s *Service) CreatePolicy(ctx context.Context, in NewPolicy) (gym.PricePolicy, error) {
	p := gym.PricePolicy{
		ID:          gym.PolicyID(uuid.NewString()),
		Name:        in.Name,
		Price:       in.Price,
		CreditCount: in.CreditCount,
		Period:      in.Period,
		CreatedAt:   s.Clock.Now(),
	}
	if err := credit.ValidatePolicy(p); err != nil {
		return gym.PricePolicy{}, err
	}
	if err := s.Store.CreatePolicy(ctx, p); err != nil {
		return gym.PricePolicy{}, err
	}
	s.Logger.Info("price policy created", "policy_id", p.ID, "name", p.Name)
	return p, nil
}

func (s *Service) GetPolicy(ctx context.Context, id gym.PolicyID) (*gym.PricePolicy, error) {
	return s.Store.GetPolicy(ctx, id)
}

func (s *Service) ListPolicies(ctx context.Context) ([]gym.PricePolicy, error) {
	return s.Store.ListPolicies(ctx)
}

// =============================================================================
// LESSONS
// =============================================================================

type NewLesson struct {
	Gym         gym.Location
	Type        gym.LessonType
	CreditCount int64
	MaxCapacity int
	StartDate   gym.Date
	StartTime   gym.ClockTime
	EndTime     gym.ClockTime
}

func (s *Service) CreateLesson(ctx context.Context, in NewLesson) (gym.Lesson, error) {
	l := gym.Lesson{
		ID:          gym.LessonID(uuid.NewString()),
		Gym:         in.Gym,
		Type:        in.Type,
		CreditCount: in.CreditCount,
		MaxCapacity: in.MaxCapacity,
		StartDate:   in.StartDate,
		StartTime:   in.StartTime,
		EndTime:     in.EndTime,
		CreatedAt:   s.Clock.Now(),
	}
	if err := lesson.Validate(l); err != nil {
		return gym.Lesson{}, err
	}
	if err := s.Store.CreateLesson(ctx, l); err != nil {
		return gym.Lesson{}, err
	}
	s.Logger.Info("lesson created", "lesson_id", l.ID, "gym", l.Gym, "type", l.Type, "start_date", l.StartDate)
	return l, nil
}

func (s *Service) ListLessons(ctx context.Context) ([]gym.Lesson, error) {
	return s.Store.ListLessons(ctx)
}

// LessonDetail is a lesson with every reservation record made against it,
// cancellations included.
type LessonDetail struct {
	Lesson       gym.Lesson
	Holding      int
	Reservations []gym.Reservation
}

func (s *Service) GetLesson(ctx context.Context, id gym.LessonID) (LessonDetail, error) {
	var detail LessonDetail
	err := s.Store.WithTx(ctx, func(tx gym.Store) error {
		l, err := tx.GetLesson(ctx, id)
		if err != nil {
			return err
		}
		reservations, err := tx.ReservationsByLesson(ctx, id)
		if err != nil {
			return err
		}
		detail = LessonDetail{Lesson: *l, Reservations: reservations}
		for _, r := range reservations {
			if r.IsHolding() {
				detail.Holding++
			}
		}
		return nil
	})
	return detail, err
}
