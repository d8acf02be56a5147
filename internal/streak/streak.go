// Package streak implements the streak engine (C6): per-user consecutive
// activity tracking with timezone-aware break detection.
package streak

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// State is one user's streak row.
type State struct {
	UserID          uuid.UUID
	CurrentStreak   int
	LongestStreak   int
	LastActiveDate  *time.Time
	Timezone        string
}

type Engine struct {
	pool *pgxpool.Pool
}

func NewEngine(pool *pgxpool.Pool) *Engine {
	return &Engine{pool: pool}
}

// transition implements the §4.6 streak transition function
// f(current, longest, last, new).
func transition(current, longest int, last *time.Time, newDate time.Time) (int, int) {
	if last == nil {
		if longest < 1 {
			longest = 1
		}
		return 1, longest
	}

	lastDay := dateOnly(*last)
	newDay := dateOnly(newDate)

	if newDay.Equal(lastDay) {
		return current, longest
	}

	delta := int(newDay.Sub(lastDay).Hours() / 24)
	switch {
	case delta == 1:
		c := current + 1
		if c > longest {
			longest = c
		}
		return c, longest
	case delta > 1:
		return 1, longest
	default:
		// delta < 0: activity reported in the past, leave state unchanged.
		return current, longest
	}
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// resolveLocation loads tz, degrading silently to UTC on an invalid name.
func resolveLocation(tz string) *time.Location {
	if tz == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.UTC
	}
	return loc
}

// UpdateStreak loads or creates the user's streak row, applies the
// transition function for activityDate, and persists the result.
func (e *Engine) UpdateStreak(ctx context.Context, userID uuid.UUID, activityDate time.Time, tz string) (State, error) {
	tx, err := e.pool.Begin(ctx)
	if err != nil {
		return State{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var (
		current        int
		longest        int
		lastActiveDate *time.Time
		storedTZ       string
	)
	err = tx.QueryRow(ctx,
		`SELECT current_streak, longest_streak, last_active_date, timezone FROM streaks WHERE user_id = $1 FOR UPDATE`,
		userID,
	).Scan(&current, &longest, &lastActiveDate, &storedTZ)

	exists := err == nil
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return State{}, fmt.Errorf("loading streak: %w", err)
	}

	if !exists {
		current, longest, lastActiveDate, storedTZ = 0, 0, nil, tz
	} else if storedTZ != tz {
		storedTZ = tz
	}

	newCurrent, newLongest := transition(current, longest, lastActiveDate, activityDate)
	newLast := dateOnly(activityDate)

	if exists {
		_, err = tx.Exec(ctx,
			`UPDATE streaks SET current_streak = $1, longest_streak = $2, last_active_date = $3, timezone = $4, updated_at = now()
			 WHERE user_id = $5`,
			newCurrent, newLongest, newLast, storedTZ, userID,
		)
	} else {
		_, err = tx.Exec(ctx,
			`INSERT INTO streaks (user_id, current_streak, longest_streak, last_active_date, timezone, updated_at)
			 VALUES ($1, $2, $3, $4, $5, now())`,
			userID, newCurrent, newLongest, newLast, storedTZ,
		)
	}
	if err != nil {
		return State{}, fmt.Errorf("persisting streak: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return State{}, fmt.Errorf("committing streak update: %w", err)
	}

	return State{
		UserID:         userID,
		CurrentStreak:  newCurrent,
		LongestStreak:  newLongest,
		LastActiveDate: &newLast,
		Timezone:       storedTZ,
	}, nil
}

// CheckBreak returns true iff the user has a live streak whose last
// activity is more than one day behind today in the user's timezone.
func (e *Engine) CheckBreak(ctx context.Context, userID uuid.UUID) (bool, error) {
	var (
		current        int
		lastActiveDate *time.Time
		tz             string
	)
	err := e.pool.QueryRow(ctx,
		`SELECT current_streak, last_active_date, timezone FROM streaks WHERE user_id = $1`,
		userID,
	).Scan(&current, &lastActiveDate, &tz)
	if err != nil {
		return false, fmt.Errorf("loading streak: %w", err)
	}
	if current == 0 || lastActiveDate == nil {
		return false, nil
	}

	today := dateOnly(time.Now().In(resolveLocation(tz)))
	days := int(today.Sub(dateOnly(*lastActiveDate)).Hours() / 24)
	return days > 1, nil
}

// Snapshot reads back a user's current streak state without mutating it,
// returning a zero-value State for a user with no activity yet.
func (e *Engine) Snapshot(ctx context.Context, userID uuid.UUID) (State, error) {
	var (
		current        int
		longest        int
		lastActiveDate *time.Time
		tz             string
	)
	err := e.pool.QueryRow(ctx,
		`SELECT current_streak, longest_streak, last_active_date, timezone FROM streaks WHERE user_id = $1`,
		userID,
	).Scan(&current, &longest, &lastActiveDate, &tz)
	if errors.Is(err, pgx.ErrNoRows) {
		return State{UserID: userID, Timezone: "UTC"}, nil
	}
	if err != nil {
		return State{}, fmt.Errorf("loading streak snapshot: %w", err)
	}
	return State{UserID: userID, CurrentStreak: current, LongestStreak: longest, LastActiveDate: lastActiveDate, Timezone: tz}, nil
}

// AtRisk is a streak row flagged by GetAtRisk.
type AtRisk struct {
	UserID        uuid.UUID
	CurrentStreak int
	LocalHour     int
}

// GetAtRisk returns users with a live streak who haven't synced today and
// whose local hour has reached hourThreshold, meaning their streak will
// break if they don't act soon. hourThreshold is used as given; no
// default is substituted for a zero or negative value.
func (e *Engine) GetAtRisk(ctx context.Context, hourThreshold int) ([]AtRisk, error) {
	rows, err := e.pool.Query(ctx,
		`SELECT user_id, current_streak, last_active_date, timezone FROM streaks WHERE current_streak > 0`,
	)
	if err != nil {
		return nil, fmt.Errorf("querying streaks: %w", err)
	}
	defer rows.Close()

	var atRisk []AtRisk
	for rows.Next() {
		var (
			userID         uuid.UUID
			current        int
			lastActiveDate *time.Time
			tz             string
		)
		if err := rows.Scan(&userID, &current, &lastActiveDate, &tz); err != nil {
			return nil, fmt.Errorf("scanning streak: %w", err)
		}

		loc := resolveLocation(tz)
		now := time.Now().In(loc)
		today := dateOnly(now)

		if lastActiveDate != nil && !dateOnly(*lastActiveDate).Before(today) {
			continue
		}
		if now.Hour() < hourThreshold {
			continue
		}
		atRisk = append(atRisk, AtRisk{UserID: userID, CurrentStreak: current, LocalHour: now.Hour()})
	}
	return atRisk, rows.Err()
}
