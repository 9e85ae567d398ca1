// Package matching implements swiping: candidate selection, like/pass
// decisions under a daily quota, and mutual matches.
package matching

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"anomidate/internal/db"
	"anomidate/internal/models"
)

var (
	ErrQuotaExceeded = errors.New("daily swipe limit reached")
	ErrSelfDecision  = errors.New("cannot swipe on yourself")
	ErrInvalidAction = errors.New("action must be like or pass")
)

const DefaultDailyLimit = 50

// MatchNotifier is told when a like completes a mutual match.
type MatchNotifier interface {
	MatchCreated(a, b *models.User)
}

type Options struct {
	DailyLimit int
	// Location defines the calendar day the quota resets on.
	Location *time.Location
	// ExcludeDecided hides candidates the actor already liked or passed.
	ExcludeDecided bool
	Notifier       MatchNotifier
	Rand           *rand.Rand
	Now            func() time.Time
}

type Engine struct {
	users          *db.UserRepository
	swipes         *db.SwipeRepository
	quotas         *db.QuotaRepository
	notifier       MatchNotifier
	limit          int
	loc            *time.Location
	excludeDecided bool
	now            func() time.Time

	rngMu sync.Mutex
	rng   *rand.Rand
}

// Result describes a recorded decision.
type Result struct {
	Count     int
	Remaining int
	Mutual    bool
	// NewMatch is set when this decision turned the pair into a match.
	NewMatch  bool
	Target    *models.User
}

func NewEngine(users *db.UserRepository, swipes *db.SwipeRepository, quotas *db.QuotaRepository, opts Options) *Engine {
	e := &Engine{
		users:          users,
		swipes:         swipes,
		quotas:         quotas,
		notifier:       opts.Notifier,
		limit:          opts.DailyLimit,
		loc:            opts.Location,
		excludeDecided: opts.ExcludeDecided,
		now:            opts.Now,
		rng:            opts.Rand,
	}
	if e.limit <= 0 {
		e.limit = DefaultDailyLimit
	}
	if e.loc == nil {
		e.loc = time.UTC
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.rng == nil {
		e.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return e
}

func (e *Engine) DailyLimit() int {
	return e.limit
}

func (e *Engine) today() string {
	return e.now().In(e.loc).Format(db.DayLayout)
}

// GetDailyCount returns how many decisions the user made today.
func (e *Engine) GetDailyCount(ctx context.Context, userID int64) (int, error) {
	return e.quotas.Count(ctx, userID, e.today())
}

// RecordDecision stores actor's like or pass on target and charges it against
// today's quota. Once the quota is used up ErrQuotaExceeded is returned and
// nothing is written.
func (e *Engine) RecordDecision(ctx context.Context, actorID, targetID int64, action models.Action) (*Result, error) {
	if actorID == targetID {
		return nil, ErrSelfDecision
	}
	if !action.Valid() {
		return nil, ErrInvalidAction
	}

	target, err := e.users.FindByID(ctx, targetID)
	if err != nil {
		return nil, fmt.Errorf("finding target: %w", err)
	}

	wasLike := false
	prev, err := e.swipes.FindDecision(ctx, actorID, targetID)
	if err == nil {
		wasLike = prev.Action == models.ActionLike
	} else if !errors.Is(err, db.ErrNotFound) {
		return nil, err
	}

	count, err := e.swipes.Record(ctx, actorID, targetID, action, e.today(), e.limit)
	if errors.Is(err, db.ErrQuotaExceeded) {
		return nil, ErrQuotaExceeded
	}
	if err != nil {
		return nil, fmt.Errorf("recording decision: %w", err)
	}

	result := &Result{Count: count, Remaining: max(e.limit-count, 0), Target: target}

	if action == models.ActionLike {
		liked, err := e.swipes.HasLiked(ctx, targetID, actorID)
		if err != nil {
			return nil, err
		}
		result.Mutual = liked
		result.NewMatch = liked && !wasLike
	}

	if result.NewMatch && e.notifier != nil {
		actor, err := e.users.FindByID(ctx, actorID)
		if err != nil {
			slog.Warn("match notification skipped", "component", "matching", "user_id", actorID, "error", err)
		} else {
			e.notifier.MatchCreated(actor, target)
		}
	}

	return result, nil
}

// SelectCandidate picks a random user other than the actor that passes the
// filters. It returns nil with no error when nobody qualifies or the actor has
// used up today's quota.
func (e *Engine) SelectCandidate(ctx context.Context, userID int64, filters models.CandidateFilters) (*models.User, error) {
	count, err := e.GetDailyCount(ctx, userID)
	if err != nil {
		return nil, err
	}
	if count >= e.limit {
		return nil, nil
	}

	users, err := e.users.ListExcept(ctx, userID)
	if err != nil {
		return nil, err
	}

	var decided map[int64]struct{}
	if e.excludeDecided {
		decided, err = e.swipes.DecidedTargets(ctx, userID)
		if err != nil {
			return nil, err
		}
	}

	pool := make([]*models.User, 0, len(users))
	for _, u := range users {
		if _, seen := decided[u.ID]; seen {
			continue
		}
		if MatchesFilters(u, filters) {
			pool = append(pool, u)
		}
	}
	if len(pool) == 0 {
		return nil, nil
	}

	e.rngMu.Lock()
	i := e.rng.IntN(len(pool))
	e.rngMu.Unlock()

	return pool[i], nil
}

// ListMutualMatches returns users who like userID back, by username ignoring case.
func (e *Engine) ListMutualMatches(ctx context.Context, userID int64) ([]*models.User, error) {
	return e.swipes.MutualMatches(ctx, userID)
}

func (e *Engine) IsMutual(ctx context.Context, a, b int64) (bool, error) {
	return e.swipes.IsMutual(ctx, a, b)
}

func (e *Engine) CountMatches(ctx context.Context, userID int64) (int, error) {
	return e.swipes.CountMatchesFor(ctx, userID)
}

// MatchesFilters applies the candidate filters. Bounds are inclusive, a
// missing age counts as 0 and text filters ignore case.
func MatchesFilters(u *models.User, f models.CandidateFilters) bool {
	age := u.AgeOrZero()
	if f.AgeMin != nil && age < *f.AgeMin {
		return false
	}
	if f.AgeMax != nil && age > *f.AgeMax {
		return false
	}
	if f.Gender != "" && !strings.EqualFold(u.Gender, f.Gender) {
		return false
	}
	if f.Playstyle != "" && !strings.EqualFold(u.Playstyle, f.Playstyle) {
		return false
	}
	return true
}
