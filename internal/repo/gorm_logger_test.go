package repo

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-garden-backend/internal/config"
)

// openLogged opens a migrated SQLite file with the global logger writing to buf.
func openLogged(t *testing.T, buf *bytes.Buffer, level string) *gorm.DB {
	t.Helper()
	prev := log.Logger
	t.Cleanup(func() { log.Logger = prev })
	log.Logger = zerolog.New(buf)

	db, err := Open(config.Config{DBDriver: "sqlite", DBPath: filepath.Join(t.TempDir(), "garden.db"), LogLevel: level})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	buf.Reset()
	return db
}

func TestGormLogger_ExpectedOutcomesAreQuiet(t *testing.T) {
	var buf bytes.Buffer
	db := openLogged(t, &buf, "error")
	ctx := context.Background()

	if _, err := GetCompletion(ctx, db, "u1", "water", "2025-06-01"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetCompletion = %v", err)
	}
	if _, err := GetBonusClaim(ctx, db, "u1", "2025-06-01"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetBonusClaim = %v", err)
	}
	if _, err := CreateCompletion(ctx, db, "u1", "water", "2025-06-01", 3); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if _, err := CreateCompletion(ctx, db, "u1", "water", "2025-06-01", 3); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("second insert = %v", err)
	}

	if buf.Len() != 0 {
		t.Fatalf("expected no log output, got: %s", buf.String())
	}
}

func TestGormLogger_FailuresUseRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	db := openLogged(t, &buf, "error")

	var scoped bytes.Buffer
	l := zerolog.New(&scoped).With().Str("request_id", "rid-db").Logger()
	ctx := l.WithContext(context.Background())

	if err := db.WithContext(ctx).Exec("SELECT * FROM no_such_table").Error; err == nil {
		t.Fatalf("expected an error")
	}
	out := scoped.String()
	if !strings.Contains(out, `"level":"error"`) || !strings.Contains(out, `"request_id":"rid-db"`) ||
		!strings.Contains(out, "no_such_table") {
		t.Fatalf("scoped log = %s", out)
	}
	if buf.Len() != 0 {
		t.Fatalf("global logger used for a scoped query: %s", buf.String())
	}
}

func TestGormLogger_TraceLevels(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	t.Cleanup(func() { log.Logger = prev })
	log.Logger = zerolog.New(&buf)
	ctx := context.Background()
	sql := func() (string, int64) { return "SELECT 1 WHERE user_id = 'gardener-42'", 1 }

	cases := []struct {
		name    string
		level   logger.LogLevel
		elapsed time.Duration
		want    string
		withSQL bool
	}{
		{"fast at warn", logger.Warn, 0, "", false},
		{"slow at warn", logger.Warn, time.Second, `"level":"warn"`, false},
		{"fast at info", logger.Info, 0, `"level":"debug"`, true},
		{"silent", logger.Silent, time.Second, "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			buf.Reset()
			newGormLogger(logger.Warn).LogMode(tc.level).Trace(ctx, time.Now().Add(-tc.elapsed), sql, nil)
			out := buf.String()
			if tc.want == "" {
				if out != "" {
					t.Fatalf("unexpected log: %s", out)
				}
				return
			}
			if !strings.Contains(out, tc.want) {
				t.Fatalf("log = %s; want %s", out, tc.want)
			}
			if got := strings.Contains(out, "gardener-42"); got != tc.withSQL {
				t.Fatalf("sql logged=%v; want %v: %s", got, tc.withSQL, out)
			}
		})
	}
}

func Test_gormLogLevel(t *testing.T) {
	for in, want := range map[string]logger.LogLevel{
		"debug": logger.Info,
		"info":  logger.Warn,
		"warn":  logger.Warn,
		"error": logger.Error,
		"":      logger.Warn,
	} {
		if got := gormLogLevel(in); got != want {
			t.Errorf("gormLogLevel(%q) = %v; want %v", in, got, want)
		}
	}
}
