/*
scenarios.go - Demo scenario loaders for development and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	data. Each scenario creates price policies, lessons, users and purchases
	through the booking service, so everything it writes goes through the
	same validation and ledger rules as real traffic.

AVAILABLE SCENARIOS:

	starter:     Two policies, a week of lessons, two members with credit
	expiring:    A member with one lapsed lot and one about to lapse
	full-class:  A one-seat lesson already taken, a second member waiting

HOW SCENARIOS WORK:
 1. Create price policies
 2. Create lessons relative to today
 3. Create users (usernames are prefixed with "demo-")
 4. Buy credit, optionally with past start dates
 5. Optionally reserve lessons

USAGE VIA API (only when DEMO_SCENARIOS=true):

	GET  /api/scenarios
	POST /api/scenarios/load
	{"scenario_id": "starter"}

NOTE:

	Scenarios do not reset the database. Loading the same scenario twice
	fails with username_taken on the first user.
*/
package api

import (
	"context"
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/shopspring/decimal"

	"github.com/warp/gym-credit/booking"
	"github.com/warp/gym-credit/gym"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "starter",
		Name:        "Starter Gym",
		Description: "Monthly and trial memberships, a week of lessons in Seoul and Busan",
	},
	{
		ID:          "expiring",
		Name:        "Expiring Credit",
		Description: "One lapsed lot, one lot ending in five days, a booked lesson",
	},
	{
		ID:          "full-class",
		Name:        "Full Class",
		Description: "A one-seat lesson already reserved and a second member with credit",
	},
}

var errUnknownScenario = errors.New("unknown scenario")

type scenarioLoader func(ctx context.Context, svc *booking.Service) ([]gym.User, error)

var scenarioLoaders = map[string]scenarioLoader{
	"starter":    loadStarterScenario,
	"expiring":   loadExpiringScenario,
	"full-class": loadFullClassScenario,
}

// =============================================================================
// HANDLERS
// =============================================================================

func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !decode(w, r, &req) {
		return
	}
	load, ok := scenarioLoaders[req.ScenarioID]
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown scenario", errors.Wrapf(errUnknownScenario, "%q", req.ScenarioID))
		return
	}

	users, err := load(r.Context(), h.Service)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	resp := LoadScenarioResponse{ScenarioID: req.ScenarioID, Users: make([]UserDTO, 0, len(users))}
	for _, u := range users {
		resp.Users = append(resp.Users, toUserDTO(u))
	}
	h.Logger.Info("scenario loaded", "scenario_id", req.ScenarioID, "users", len(users))
	writeJSON(w, http.StatusCreated, resp)
}

// =============================================================================
// LOADERS
// =============================================================================

func monthlyPolicy() booking.NewPolicy {
	return booking.NewPolicy{Name: "Monthly", Price: decimal.NewFromInt(300000), CreditCount: 800, Period: 30}
}

func lessonAt(svc *booking.Service, daysAhead int, loc gym.Location, typ gym.LessonType, capacity int, hour int) booking.NewLesson {
	return booking.NewLesson{
		Gym:         loc,
		Type:        typ,
		CreditCount: 100,
		MaxCapacity: capacity,
		StartDate:   svc.Today().AddDays(daysAhead),
		StartTime:   gym.NewClockTime(hour, 0),
		EndTime:     gym.NewClockTime(hour+1, 0),
	}
}

func loadStarterScenario(ctx context.Context, svc *booking.Service) ([]gym.User, error) {
	monthly, err := svc.CreatePolicy(ctx, monthlyPolicy())
	if err != nil {
		return nil, err
	}
	trial, err := svc.CreatePolicy(ctx, booking.NewPolicy{Name: "Trial", Price: decimal.Zero, CreditCount: 200, Period: 7})
	if err != nil {
		return nil, err
	}

	for day := 1; day <= 7; day++ {
		for _, l := range []booking.NewLesson{
			lessonAt(svc, day, gym.GymSeoul, gym.LessonCrossFit, 12, 7),
			lessonAt(svc, day, gym.GymSeoul, gym.LessonYoga, 8, 19),
			lessonAt(svc, day, gym.GymBusan, gym.LessonSwim, 6, 10),
		} {
			if _, err := svc.CreateLesson(ctx, l); err != nil {
				return nil, err
			}
		}
	}

	kim, err := svc.CreateUser(ctx, booking.NewUser{Username: "demo-kim", PhoneNumber: "010-0000-0001"})
	if err != nil {
		return nil, err
	}
	lee, err := svc.CreateUser(ctx, booking.NewUser{Username: "demo-lee", PhoneNumber: "010-0000-0002"})
	if err != nil {
		return nil, err
	}
	if _, err := svc.BuyCredit(ctx, kim.ID, monthly.ID, gym.Date{}); err != nil {
		return nil, err
	}
	if _, err := svc.BuyCredit(ctx, lee.ID, trial.ID, gym.Date{}); err != nil {
		return nil, err
	}
	return []gym.User{kim, lee}, nil
}

func loadExpiringScenario(ctx context.Context, svc *booking.Service) ([]gym.User, error) {
	monthly, err := svc.CreatePolicy(ctx, monthlyPolicy())
	if err != nil {
		return nil, err
	}
	park, err := svc.CreateUser(ctx, booking.NewUser{Username: "demo-park"})
	if err != nil {
		return nil, err
	}

	today := svc.Today()
	if _, err := svc.BuyCredit(ctx, park.ID, monthly.ID, today.AddDays(-45)); err != nil {
		return nil, err
	}
	if _, err := svc.BuyCredit(ctx, park.ID, monthly.ID, today.AddDays(-25)); err != nil {
		return nil, err
	}

	l, err := svc.CreateLesson(ctx, lessonAt(svc, 2, gym.GymSeoul, gym.LessonWeight, 10, 18))
	if err != nil {
		return nil, err
	}
	if _, err := svc.Reserve(ctx, park.ID, l.ID); err != nil {
		return nil, err
	}
	return []gym.User{park}, nil
}

func loadFullClassScenario(ctx context.Context, svc *booking.Service) ([]gym.User, error) {
	monthly, err := svc.CreatePolicy(ctx, monthlyPolicy())
	if err != nil {
		return nil, err
	}
	l, err := svc.CreateLesson(ctx, lessonAt(svc, 3, gym.GymBusan, gym.LessonYoga, 1, 9))
	if err != nil {
		return nil, err
	}

	var users []gym.User
	for _, name := range []string{"demo-choi", "demo-jung"} {
		u, err := svc.CreateUser(ctx, booking.NewUser{Username: name})
		if err != nil {
			return nil, err
		}
		if _, err := svc.BuyCredit(ctx, u.ID, monthly.ID, gym.Date{}); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if _, err := svc.Reserve(ctx, users[0].ID, l.ID); err != nil {
		return nil, err
	}
	return users, nil
}
