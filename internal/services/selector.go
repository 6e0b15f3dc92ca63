// Package services – TaskSelector
//
// This file implements TaskSelector, which picks the bounded, deterministic
// subset of catalog tasks a user sees on a given day. The selection is a pure
// function of (user, day, catalog, rules, completion history): no "today's
// picks" table is written, the list is recomputed on every call.
//
// Observability: TodayTasks is OpenTelemetry-instrumented.
package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/tbourn/go-garden-backend/internal/catalog"
	"github.com/tbourn/go-garden-backend/internal/domain"
	"github.com/tbourn/go-garden-backend/internal/repo"

	// OpenTelemetry
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// CatalogSource supplies the active catalog snapshot. *catalog.Store
// satisfies it.
type CatalogSource interface {
	Current() (*catalog.Snapshot, error)
}

// TodayItem is one selected task with its completion state for the day.
type TodayItem struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	RewardAmount int64  `json:"reward_amount"`
	Done         bool   `json:"done"`
}

// TodayList is the result of TodayTasks.
type TodayList struct {
	Date  string      `json:"date"`
	Items []TodayItem `json:"tasks"`
	// AllDone is true only for a non-empty list whose items are all done.
	AllDone bool `json:"all_done"`

	EarnedToday     int64 `json:"earned_today"`
	MaxDailyEarning int64 `json:"max_daily_earning"`
	BonusAmount     int64 `json:"bonus_amount"`
	BonusClaimed    bool  `json:"bonus_claimed"`
}

// Has reports whether taskID is on the list.
func (l *TodayList) Has(taskID string) bool { return containsTask(l.Items, taskID) }

func containsTask(items []TodayItem, taskID string) bool {
	for _, it := range items {
		if it.ID == taskID {
			return true
		}
	}
	return false
}

// TaskSelector computes each user's daily task list.
type TaskSelector struct {
	DB      *gorm.DB
	Catalog CatalogSource

	// Location defines calendar days. Nil means UTC.
	Location *time.Location
}

// Day normalizes t to its calendar day in the selector's location.
func (s *TaskSelector) Day(t time.Time) time.Time {
	loc := s.Location
	if loc == nil {
		loc = time.UTC
	}
	t = t.In(loc)
	// Noon keeps AddDate arithmetic clear of DST edges.
	return time.Date(t.Year(), t.Month(), t.Day(), 12, 0, 0, 0, loc)
}

// TodayTasks returns userID's task list for the calendar day containing day.
//
// Semantics:
//   - Tasks completed within [day-N, day), N = no_repeat_within_days, are
//     skipped unless that would leave no candidates, in which case the full
//     catalog is used.
//   - Candidates are ordered by xxhash64("user|YYYY-MM-DD|task id"), ties by
//     id, and the first daily_slots are taken.
//   - An unavailable catalog yields an empty list (logged at warn), never an
//     error. Persistence errors are returned.
//
// TodayTasks has no side effects and is safe to call concurrently.
func (s *TaskSelector) TodayTasks(ctx context.Context, userID string, day time.Time) (*TodayList, error) {
	tr := otel.Tracer("services/TaskSelector")
	ctx, span := tr.Start(ctx, "TodayTasks",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrMissingUser
	}

	d := s.Day(day)
	dayKey := domain.DayKey(d)
	span.SetAttributes(attribute.String("day", dayKey))

	snap := s.snapshot(ctx)
	list := &TodayList{Date: dayKey, Items: []TodayItem{}}
	if snap == nil {
		return list, nil
	}
	rules := snap.Rules()
	list.MaxDailyEarning = rules.MaxDailyEarning
	list.BonusAmount = rules.BonusAmount

	db := s.DB.WithContext(ctx)
	items, err := s.pick(ctx, db, userID, snap, d)
	if err != nil {
		return nil, err
	}
	list.Items = items
	list.AllDone = allDone(items)

	if list.EarnedToday, err = repo.SumAwardedForDay(ctx, db, userID, dayKey); err != nil {
		return nil, err
	}
	switch _, err := repo.GetBonusClaim(ctx, db, userID, dayKey); {
	case err == nil:
		list.BonusClaimed = true
	case !errors.Is(err, repo.ErrNotFound):
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("tasks.count", len(items)),
		attribute.Bool("tasks.all_done", list.AllDone),
	)
	return list, nil
}

// snapshot returns the active catalog or nil when it cannot be loaded.
func (s *TaskSelector) snapshot(ctx context.Context) *catalog.Snapshot {
	if s.Catalog == nil {
		zerolog.Ctx(ctx).Warn().Msg("task catalog not configured; serving no tasks")
		return nil
	}
	snap, err := s.Catalog.Current()
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("task catalog unavailable; serving no tasks")
		return nil
	}
	return snap
}

// pick runs the selection against db, which may be a transaction.
// d must already be normalized by Day.
func (s *TaskSelector) pick(ctx context.Context, db *gorm.DB, userID string, snap *catalog.Snapshot, d time.Time) ([]TodayItem, error) {
	tasks := snap.Tasks()
	rules := snap.Rules()
	dayKey := domain.DayKey(d)

	if len(tasks) == 0 || rules.DailySlots == 0 {
		return []TodayItem{}, nil
	}

	pool := tasks
	if n := rules.NoRepeatWithinDays; n > 0 {
		from := domain.DayKey(d.AddDate(0, 0, -n))
		recent, err := repo.CompletedTaskIDsBetween(ctx, db, userID, from, dayKey)
		if err != nil {
			return nil, err
		}
		if len(recent) > 0 {
			avoid := make(map[string]struct{}, len(recent))
			for _, id := range recent {
				avoid[id] = struct{}{}
			}
			fresh := make([]catalog.Task, 0, len(tasks))
			for _, t := range tasks {
				if _, skip := avoid[t.ID]; !skip {
					fresh = append(fresh, t)
				}
			}
			if len(fresh) > 0 {
				pool = fresh
			}
		}
	}

	ordered := orderTasks(userID, dayKey, pool)
	if len(ordered) > rules.DailySlots {
		ordered = ordered[:rules.DailySlots]
	}

	done, err := repo.ListCompletionsForDay(ctx, db, userID, dayKey)
	if err != nil {
		return nil, err
	}
	doneIDs := make(map[string]struct{}, len(done))
	for _, c := range done {
		doneIDs[c.TaskID] = struct{}{}
	}

	items := make([]TodayItem, 0, len(ordered))
	for _, t := range ordered {
		_, isDone := doneIDs[t.ID]
		items = append(items, TodayItem{
			ID:           t.ID,
			Title:        t.Title,
			RewardAmount: t.RewardAmount,
			Done:         isDone,
		})
	}
	return items, nil
}

// orderTasks sorts a copy of tasks by their selection hash for (userID, dayKey).
func orderTasks(userID, dayKey string, tasks []catalog.Task) []catalog.Task {
	type keyed struct {
		task catalog.Task
		h    uint64
	}
	ks := make([]keyed, len(tasks))
	for i, t := range tasks {
		ks[i] = keyed{task: t, h: selectionHash(userID, dayKey, t.ID)}
	}
	sort.Slice(ks, func(i, j int) bool {
		if ks[i].h != ks[j].h {
			return ks[i].h < ks[j].h
		}
		return ks[i].task.ID < ks[j].task.ID
	})
	out := make([]catalog.Task, len(ks))
	for i, k := range ks {
		out[i] = k.task
	}
	return out
}

// selectionHash is stable across processes and releases. Changing it
// reshuffles every user's list for the day.
func selectionHash(userID, dayKey, taskID string) uint64 {
	d := xxhash.New()
	_, _ = d.WriteString(userID)
	_, _ = d.WriteString("|")
	_, _ = d.WriteString(dayKey)
	_, _ = d.WriteString("|")
	_, _ = d.WriteString(taskID)
	return d.Sum64()
}

func allDone(items []TodayItem) bool {
	if len(items) == 0 {
		return false
	}
	for _, it := range items {
		if !it.Done {
			return false
		}
	}
	return true
}
