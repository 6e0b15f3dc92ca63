// Package catalog loads the daily task catalog and selection rules from a
// TOML file and serves them as an immutable snapshot.
//
//   - No logging in the library (callers decide how/what to log)
//   - Snapshots are read-only after construction (safe for concurrent use)
//   - Store swaps snapshots atomically; request handling never mutates them
//
// File format:
//
//	daily_slots = 3             # alias: daily_count
//	no_repeat_within_days = 3
//	max_daily_earning = 15
//	bonus_amount = 1
//
//	[[tasks]]
//	id = "water_plants"
//	title = "Water your plants"
//	reward_amount = 5
package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Defaults applied when a key is absent from the file.
const (
	DefaultDailySlots         = 3
	DefaultNoRepeatWithinDays = 3
	DefaultMaxDailyEarning    = 15
	DefaultBonusAmount        = 1
)

// ErrInvalid wraps every validation failure so callers can tell a bad file
// apart from an I/O error.
var ErrInvalid = errors.New("invalid task catalog")

// Task is a single completable daily action.
type Task struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	RewardAmount int64  `json:"reward_amount"`
}

// Rules governs how many tasks are shown, the cooldown, the earning cap and
// the all-done bonus.
type Rules struct {
	DailySlots         int   `json:"daily_slots"`
	NoRepeatWithinDays int   `json:"no_repeat_within_days"`
	MaxDailyEarning    int64 `json:"max_daily_earning"`
	BonusAmount        int64 `json:"bonus_amount"`
}

// Snapshot is an immutable view of the catalog.
type Snapshot struct {
	rules Rules
	tasks []Task
	byID  map[string]Task
}

// Rules returns the selection rules.
func (s *Snapshot) Rules() Rules { return s.rules }

// Tasks returns a copy of the catalog in file order.
func (s *Snapshot) Tasks() []Task {
	out := make([]Task, len(s.tasks))
	copy(out, s.tasks)
	return out
}

// Task looks up a catalog entry by id.
func (s *Snapshot) Task(id string) (Task, bool) {
	t, ok := s.byID[id]
	return t, ok
}

// Len reports the number of catalog entries.
func (s *Snapshot) Len() int { return len(s.tasks) }

// fileFormat mirrors the TOML layout. Pointers distinguish "absent" from zero.
type fileFormat struct {
	DailySlots         *int   `toml:"daily_slots"`
	DailyCount         *int   `toml:"daily_count"`
	NoRepeatWithinDays *int   `toml:"no_repeat_within_days"`
	MaxDailyEarning    *int64 `toml:"max_daily_earning"`
	BonusAmount        *int64 `toml:"bonus_amount"`
	Tasks              []struct {
		ID           string `toml:"id"`
		Title        string `toml:"title"`
		RewardAmount int64  `toml:"reward_amount"`
	} `toml:"tasks"`
}

// Load reads and validates the catalog file at path.
func Load(path string) (*Snapshot, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(bytes.NewReader(b))
}

// Parse decodes a catalog from r and validates it.
func Parse(r io.Reader) (*Snapshot, error) {
	var f fileFormat
	if err := toml.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	rules := Rules{
		DailySlots:         DefaultDailySlots,
		NoRepeatWithinDays: DefaultNoRepeatWithinDays,
		MaxDailyEarning:    DefaultMaxDailyEarning,
		BonusAmount:        DefaultBonusAmount,
	}
	switch {
	case f.DailySlots != nil:
		rules.DailySlots = *f.DailySlots
	case f.DailyCount != nil:
		rules.DailySlots = *f.DailyCount
	}
	if f.NoRepeatWithinDays != nil {
		rules.NoRepeatWithinDays = *f.NoRepeatWithinDays
	}
	if f.MaxDailyEarning != nil {
		rules.MaxDailyEarning = *f.MaxDailyEarning
	}
	if f.BonusAmount != nil {
		rules.BonusAmount = *f.BonusAmount
	}

	tasks := make([]Task, 0, len(f.Tasks))
	for _, t := range f.Tasks {
		tasks = append(tasks, Task{ID: t.ID, Title: t.Title, RewardAmount: t.RewardAmount})
	}
	return New(rules, tasks)
}

// New validates rules and tasks and builds a Snapshot. Titles left empty are
// derived from the id ("water_plants" -> "Water Plants").
func New(rules Rules, tasks []Task) (*Snapshot, error) {
	if rules.DailySlots < 0 {
		return nil, fmt.Errorf("%w: daily_slots must be >= 0", ErrInvalid)
	}
	if rules.NoRepeatWithinDays < 0 {
		return nil, fmt.Errorf("%w: no_repeat_within_days must be >= 0", ErrInvalid)
	}
	if rules.MaxDailyEarning < 0 {
		return nil, fmt.Errorf("%w: max_daily_earning must be >= 0", ErrInvalid)
	}
	if rules.BonusAmount < 0 {
		return nil, fmt.Errorf("%w: bonus_amount must be >= 0", ErrInvalid)
	}

	s := &Snapshot{
		rules: rules,
		tasks: make([]Task, 0, len(tasks)),
		byID:  make(map[string]Task, len(tasks)),
	}
	for i, t := range tasks {
		t.ID = strings.TrimSpace(t.ID)
		if t.ID == "" {
			return nil, fmt.Errorf("%w: task #%d has an empty id", ErrInvalid, i+1)
		}
		if len(t.ID) > 64 {
			return nil, fmt.Errorf("%w: task id %q longer than 64 bytes", ErrInvalid, t.ID)
		}
		if _, dup := s.byID[t.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate task id %q", ErrInvalid, t.ID)
		}
		if t.RewardAmount < 0 {
			return nil, fmt.Errorf("%w: task %q has a negative reward_amount", ErrInvalid, t.ID)
		}
		t.Title = strings.TrimSpace(t.Title)
		if t.Title == "" {
			t.Title = titleFromID(t.ID)
		}
		s.tasks = append(s.tasks, t)
		s.byID[t.ID] = t
	}
	return s, nil
}

// titleFromID turns "water_plants" or "check-soil" into "Water Plants" /
// "Check Soil".
func titleFromID(id string) string {
	words := strings.FieldsFunc(id, func(r rune) bool { return r == '_' || r == '-' || r == '.' })
	return cases.Title(language.English).String(strings.Join(words, " "))
}
