package booking

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/warp/gym-credit/credit"
	"github.com/warp/gym-credit/gym"
)

// =============================================================================
// USERS
// =============================================================================

type NewUser struct {
	Username    string
	PhoneNumber string
	IsAdmin     bool
}

func (s *Service) CreateUser(ctx context.Context, in NewUser) (gym.User, error) {
	u := gym.User{
		ID:          gym.UserID(uuid.NewString()),
		Username:    strings.TrimSpace(in.Username),
		PhoneNumber: in.PhoneNumber,
		IsAdmin:     in.IsAdmin,
		CreatedAt:   s.Clock.Now(),
	}
	if u.Username == "" {
		return gym.User{}, errors.Mark(errors.New("username is required"), gym.ErrInvalidUser)
	}
	if err := s.Store.CreateUser(ctx, u); err != nil {
		return gym.User{}, err
	}
	s.Logger.Info("user created", "user_id", u.ID, "username", u.Username)
	return u, nil
}

// EnsureAdmin creates an admin user named username unless one exists.
// created reports whether a new user was written.
func (s *Service) EnsureAdmin(ctx context.Context, username string) (user gym.User, created bool, err error) {
	existing, err := s.Store.GetUserByUsername(ctx, username)
	if err == nil {
		return *existing, false, nil
	}
	if !errors.Is(err, gym.ErrUserNotFound) {
		return gym.User{}, false, err
	}
	user, err = s.CreateUser(ctx, NewUser{Username: username, IsAdmin: true})
	if err != nil {
		return gym.User{}, false, err
	}
	return user, true, nil
}

func (s *Service) GetUser(ctx context.Context, id gym.UserID) (*gym.User, error) {
	return s.Store.GetUser(ctx, id)
}

func (s *Service) ListUsers(ctx context.Context) ([]gym.User, error) {
	return s.Store.ListUsers(ctx)
}

// ReservationHistory is one reservation record with the ledger entries it
// caused (Use entries for an Active reservation, the Refund for a
// Cancellation).
type ReservationHistory struct {
	Reservation gym.Reservation
	Entries     []gym.LedgerEntry
}

type UserDetail struct {
	User          gym.User
	CreditBalance int64
	Reservations  []ReservationHistory
}

// UserDetail returns the user with a fresh balance and reservation history.
func (s *Service) UserDetail(ctx context.Context, id gym.UserID) (UserDetail, error) {
	var detail UserDetail
	err := s.inTx(ctx, func(tx gym.Store, acc *credit.Account) error {
		u, err := tx.GetUser(ctx, id)
		if err != nil {
			return err
		}
		balance, err := acc.CreditBalance(ctx, id)
		if err != nil {
			return err
		}
		reservations, err := tx.ReservationsByUser(ctx, id)
		if err != nil {
			return err
		}

		detail = UserDetail{User: *u, CreditBalance: balance}
		for _, r := range reservations {
			kind := gym.EntryUse
			if r.Kind == gym.ReservationCancellation {
				kind = gym.EntryRefund
			}
			entries, err := tx.EntriesByReservation(ctx, r.ID, kind)
			if err != nil {
				return err
			}
			detail.Reservations = append(detail.Reservations, ReservationHistory{Reservation: r, Entries: entries})
		}
		return nil
	})
	return detail, err
}
