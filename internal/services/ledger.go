// Package services – LedgerService
//
// This file implements LedgerService, which records task completions and
// all-done bonus claims and credits the user's wallet. Every mutating call is
// one GORM transaction that:
//
//  1. locks the user's wallet row (per-user serialization),
//  2. re-reads everything the decision needs (today's list, prior records,
//     today's earnings),
//  3. inserts the record under its unique constraint, then
//  4. credits the wallet additively.
//
// A failure anywhere rolls back the whole unit, so a balance never moves
// without its record and vice versa. Duplicates are not errors: they return
// the previously awarded amount (completions) or zero (bonus claims).
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-garden-backend/internal/domain"
	"github.com/tbourn/go-garden-backend/internal/repo"

	// OpenTelemetry
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Completion is the result of CompleteTask.
type Completion struct {
	TaskID string `json:"task_id"`
	// Awarded is the amount credited by this call, or the amount credited by
	// the original call when AlreadyCompleted is set.
	Awarded          int64         `json:"awarded_amount"`
	AlreadyCompleted bool          `json:"already_completed"`
	Wallet           domain.Wallet `json:"wallet"`
}

// BonusClaim is the result of ClaimAllDoneBonus.
type BonusClaim struct {
	Awarded        int64         `json:"awarded_bonus"`
	AlreadyClaimed bool          `json:"already_claimed"`
	Wallet         domain.Wallet `json:"wallet"`
}

// LedgerService owns completions, bonus claims and wallet credits.
type LedgerService struct {
	DB       *gorm.DB
	Selector *TaskSelector
}

// CompleteTask marks taskID done for userID on day and credits
// min(reward, max(0, max_daily_earning - earned_today)).
//
// Errors:
//   - ErrMissingUser for an empty userID.
//   - ErrUnknownTask when taskID is not on the user's list for day.
//   - The underlying DB error for persistence failures (nothing is applied).
func (s *LedgerService) CompleteTask(ctx context.Context, userID, taskID string, day time.Time) (*Completion, error) {
	tr := otel.Tracer("services/LedgerService")
	ctx, span := tr.Start(ctx, "CompleteTask",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("task.id", taskID),
		),
	)
	defer span.End()

	userID = strings.TrimSpace(userID)
	taskID = strings.TrimSpace(taskID)
	if userID == "" {
		return nil, ErrMissingUser
	}

	snap := s.Selector.snapshot(ctx)
	if snap == nil {
		return nil, ErrUnknownTask
	}
	task, ok := snap.Task(taskID)
	if !ok {
		return nil, ErrUnknownTask
	}
	rules := snap.Rules()

	d := s.Selector.Day(day)
	dayKey := domain.DayKey(d)
	span.SetAttributes(attribute.String("day", dayKey))

	out := &Completion{TaskID: taskID}
	capped := false
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := repo.LockWallet(ctx, tx, userID); err != nil {
			return err
		}

		items, err := s.Selector.pick(ctx, tx, userID, snap, d)
		if err != nil {
			return err
		}
		if !containsTask(items, taskID) {
			return ErrUnknownTask
		}

		prev, err := repo.GetCompletion(ctx, tx, userID, taskID, dayKey)
		switch {
		case err == nil:
			out.Awarded, out.AlreadyCompleted = prev.Awarded, true
		case !errors.Is(err, repo.ErrNotFound):
			return err
		default:
			earned, err := repo.SumAwardedForDay(ctx, tx, userID, dayKey)
			if err != nil {
				return err
			}
			award := capAward(task.RewardAmount, rules.MaxDailyEarning, earned)
			capped = award < task.RewardAmount

			// Savepoint so a unique violation leaves the outer transaction usable.
			err = tx.Transaction(func(sp *gorm.DB) error {
				_, err := repo.CreateCompletion(ctx, sp, userID, taskID, dayKey, award)
				return err
			})
			switch {
			case errors.Is(err, repo.ErrDuplicate):
				prev, err := repo.GetCompletion(ctx, tx, userID, taskID, dayKey)
				if err != nil {
					return err
				}
				out.Awarded, out.AlreadyCompleted = prev.Awarded, true
			case err != nil:
				return err
			default:
				out.Awarded = award
				if award > 0 {
					if err := repo.CreditWallet(ctx, tx, userID, award, 0); err != nil {
						return err
					}
				}
			}
		}

		w, err := repo.GetWallet(ctx, tx, userID)
		if err != nil {
			return err
		}
		out.Wallet = *w
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	switch {
	case out.AlreadyCompleted:
		taskCompletions.WithLabelValues(outcomeDuplicate).Inc()
	case capped:
		taskCompletions.WithLabelValues(outcomeCapped).Inc()
	default:
		taskCompletions.WithLabelValues(outcomeAwarded).Inc()
	}
	if !out.AlreadyCompleted && out.Awarded > 0 {
		currencyAwarded.WithLabelValues(kindPrimary).Add(float64(out.Awarded))
	}
	span.SetAttributes(
		attribute.Int64("awarded", out.Awarded),
		attribute.Bool("already_completed", out.AlreadyCompleted),
	)
	return out, nil
}

// ClaimAllDoneBonus credits bonus_amount to userID's bonus balance once per
// day, provided every task on the day's list is done.
//
// Errors:
//   - ErrMissingUser for an empty userID.
//   - ErrNotAllDone when the list is empty or has open tasks.
//   - The underlying DB error for persistence failures (nothing is applied).
func (s *LedgerService) ClaimAllDoneBonus(ctx context.Context, userID string, day time.Time) (*BonusClaim, error) {
	tr := otel.Tracer("services/LedgerService")
	ctx, span := tr.Start(ctx, "ClaimAllDoneBonus",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrMissingUser
	}

	snap := s.Selector.snapshot(ctx)
	if snap == nil {
		return nil, ErrNotAllDone
	}
	bonus := snap.Rules().BonusAmount

	d := s.Selector.Day(day)
	dayKey := domain.DayKey(d)
	span.SetAttributes(attribute.String("day", dayKey))

	out := &BonusClaim{}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := repo.LockWallet(ctx, tx, userID); err != nil {
			return err
		}

		items, err := s.Selector.pick(ctx, tx, userID, snap, d)
		if err != nil {
			return err
		}
		if !allDone(items) {
			return ErrNotAllDone
		}

		err = tx.Transaction(func(sp *gorm.DB) error {
			_, err := repo.CreateBonusClaim(ctx, sp, userID, dayKey, bonus)
			return err
		})
		switch {
		case errors.Is(err, repo.ErrDuplicate):
			out.AlreadyClaimed = true
		case err != nil:
			return err
		default:
			out.Awarded = bonus
			if bonus > 0 {
				if err := repo.CreditWallet(ctx, tx, userID, 0, bonus); err != nil {
					return err
				}
			}
		}

		w, err := repo.GetWallet(ctx, tx, userID)
		if err != nil {
			return err
		}
		out.Wallet = *w
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if out.AlreadyClaimed {
		bonusClaims.WithLabelValues(outcomeDuplicate).Inc()
	} else {
		bonusClaims.WithLabelValues(outcomeClaimed).Inc()
		if out.Awarded > 0 {
			currencyAwarded.WithLabelValues(kindBonus).Add(float64(out.Awarded))
		}
	}
	span.SetAttributes(
		attribute.Int64("awarded", out.Awarded),
		attribute.Bool("already_claimed", out.AlreadyClaimed),
	)
	return out, nil
}

// GetWallet returns userID's balances; zeros when no wallet exists yet.
func (s *LedgerService) GetWallet(ctx context.Context, userID string) (*domain.Wallet, error) {
	tr := otel.Tracer("services/LedgerService")
	ctx, span := tr.Start(ctx, "GetWallet",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrMissingUser
	}
	return repo.GetWallet(ctx, s.DB, userID)
}

// History returns a page of userID's completion records, newest first, and
// the total count.
func (s *LedgerService) History(ctx context.Context, userID string, page, pageSize int) ([]domain.TaskCompletion, int64, error) {
	tr := otel.Tracer("services/LedgerService")
	ctx, span := tr.Start(ctx, "History",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, 0, ErrMissingUser
	}
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	total, err := repo.CountCompletions(ctx, s.DB, userID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.TaskCompletion{}, 0, nil
	}
	items, err := repo.ListCompletionsPage(ctx, s.DB, userID, offset, pageSize)
	return items, total, err
}

// capAward applies the running daily cap.
func capAward(reward, maxDaily, earnedToday int64) int64 {
	room := maxDaily - earnedToday
	if room < 0 {
		room = 0
	}
	if reward < room {
		return reward
	}
	return room
}
