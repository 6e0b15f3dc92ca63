package config

import (
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestLoad_DefaultsAreValid(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8080" || cfg.GinMode != "release" || cfg.LogLevel != "info" {
		t.Fatalf("server/logging defaults: %+v", cfg)
	}
	if cfg.APIBasePath != "/api/v1" || cfg.SwaggerEnabled {
		t.Fatalf("docs defaults: base=%q swagger=%v", cfg.APIBasePath, cfg.SwaggerEnabled)
	}
	if cfg.DBDriver != "sqlite" || cfg.DBPath != "garden.db" || cfg.TasksPath != "data/tasks.toml" {
		t.Fatalf("storage defaults: %+v", cfg)
	}
	if cfg.Location != time.UTC {
		t.Fatalf("default location = %v; want UTC", cfg.Location)
	}
	if cfg.Auth.JWTSecret != "" || cfg.Auth.AllowHeader {
		t.Fatalf("auth should default to off: %+v", cfg.Auth)
	}
	if cfg.IdempotencyTTL != 24*time.Hour || cfg.IdempotencyPurgeInterval != time.Hour {
		t.Fatalf("idempotency defaults: ttl=%v purge=%v", cfg.IdempotencyTTL, cfg.IdempotencyPurgeInterval)
	}
	if cfg.RateRPS != 5 || cfg.RateBurst != 10 {
		t.Fatalf("rate defaults: %v/%d", cfg.RateRPS, cfg.RateBurst)
	}
}

func TestLoad_Overrides(t *testing.T) {
	env := map[string]string{
		"PORT":                        "8088",
		"READ_TIMEOUT":                "2s",
		"READ_HEADER_TIMEOUT":         "1s",
		"WRITE_TIMEOUT":               "3s",
		"IDLE_TIMEOUT":                "4s",
		"MAX_HEADER_BYTES":            "8192",
		"GIN_MODE":                    "weird",
		"LOG_LEVEL":                   "warning",
		"LOG_PRETTY":                  "yes",
		"SWAGGER_ENABLED":             "on",
		"API_BASE_PATH":               "api/v2/",
		"DB_DRIVER":                   "Postgres",
		"DATABASE_URL":                "postgres://garden@db/garden",
		"TASKS_PATH":                  "conf/tasks.toml",
		"APP_TIMEZONE":                "Asia/Yangon",
		"AUTH_JWT_SECRET":             "s3cret",
		"AUTH_ALLOW_HEADER":           "off",
		"RATE_RPS":                    "x",
		"RATE_BURST":                  "nope",
		"CORS_ALLOWED_ORIGINS":        " https://a.com , , http://b ",
		"ENABLE_HSTS":                 "TRUE",
		"HSTS_MAX_AGE":                "24h",
		"IDEMPOTENCY_TTL":             "48h",
		"IDEMPOTENCY_PURGE_INTERVAL":  "15m",
		"OTEL_ENABLED":                "1",
		"OTEL_EXPORTER_OTLP_ENDPOINT": "otel:4317",
		"OTEL_EXPORTER_OTLP_INSECURE": "0",
		"OTEL_SERVICE_NAME":           "svc",
		"OTEL_TRACES_SAMPLER_ARG":     "0.75",
	}
	for k, v := range env {
		t.Setenv(k, v)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Port != "8088" || cfg.ReadTimeout != 2*time.Second || cfg.ReadHeaderTimeout != time.Second ||
		cfg.WriteTimeout != 3*time.Second || cfg.IdleTimeout != 4*time.Second || cfg.MaxHeaderBytes != 8192 {
		t.Fatalf("server fields: %+v", cfg)
	}
	// Unknown gin modes fall back to release; "warning" is an alias.
	if cfg.GinMode != "release" || cfg.LogLevel != "warn" || !cfg.LogPretty || !cfg.SwaggerEnabled {
		t.Fatalf("mode/logging: %+v", cfg)
	}
	if cfg.APIBasePath != "/api/v2" {
		t.Fatalf("base path = %q", cfg.APIBasePath)
	}
	if cfg.DBDriver != "postgres" || cfg.DatabaseURL != "postgres://garden@db/garden" || cfg.TasksPath != "conf/tasks.toml" {
		t.Fatalf("storage: %+v", cfg)
	}
	if cfg.Location == nil || cfg.Location.String() != "Asia/Yangon" {
		t.Fatalf("location = %v", cfg.Location)
	}
	if cfg.Auth.JWTSecret != "s3cret" || cfg.Auth.AllowHeader {
		t.Fatalf("auth: %+v", cfg.Auth)
	}
	// Unparseable numbers keep their defaults.
	if cfg.RateRPS != 5 || cfg.RateBurst != 10 {
		t.Fatalf("rate: %v/%d", cfg.RateRPS, cfg.RateBurst)
	}
	if !reflect.DeepEqual(cfg.CORS.AllowedOrigins, []string{"https://a.com", "http://b"}) {
		t.Fatalf("cors: %#v", cfg.CORS.AllowedOrigins)
	}
	if !cfg.Security.EnableHSTS || cfg.Security.HSTSMaxAge != 24*time.Hour {
		t.Fatalf("security: %+v", cfg.Security)
	}
	if cfg.IdempotencyTTL != 48*time.Hour || cfg.IdempotencyPurgeInterval != 15*time.Minute {
		t.Fatalf("idempotency: %v %v", cfg.IdempotencyTTL, cfg.IdempotencyPurgeInterval)
	}
	if !cfg.OTEL.Enabled || cfg.OTEL.Endpoint != "otel:4317" || cfg.OTEL.Insecure ||
		cfg.OTEL.ServiceName != "svc" || cfg.OTEL.SampleRatio != 0.75 {
		t.Fatalf("otel: %+v", cfg.OTEL)
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"log level", map[string]string{"LOG_LEVEL": "verbose"}, "LOG_LEVEL"},
		{"blank port", map[string]string{"PORT": "   "}, "PORT must not be empty"},
		{"zero timeout", map[string]string{"READ_TIMEOUT": "0s"}, "timeouts must be positive"},
		{"header bytes", map[string]string{"MAX_HEADER_BYTES": "0"}, "MAX_HEADER_BYTES"},
		{"blank sqlite path", map[string]string{"DB_PATH": "   "}, "DB_PATH must not be empty"},
		{"unknown driver", map[string]string{"DB_DRIVER": "mongo"}, "DB_DRIVER"},
		{"postgres without url", map[string]string{"DB_DRIVER": "postgres"}, "DATABASE_URL"},
		{"blank catalog path", map[string]string{"TASKS_PATH": "  "}, "TASKS_PATH must not be empty"},
		{"unknown zone", map[string]string{"APP_TIMEZONE": "Mars/Olympus_Mons"}, "APP_TIMEZONE"},
		{"negative rps", map[string]string{"RATE_RPS": "-1"}, "RATE_RPS"},
		{"zero burst", map[string]string{"RATE_BURST": "0"}, "RATE_BURST"},
		{"negative hsts", map[string]string{"HSTS_MAX_AGE": "-1s"}, "HSTS_MAX_AGE"},
		{"zero idempotency ttl", map[string]string{"IDEMPOTENCY_TTL": "0s"}, "IDEMPOTENCY_TTL"},
		{"zero purge interval", map[string]string{"IDEMPOTENCY_PURGE_INTERVAL": "0s"}, "IDEMPOTENCY_PURGE_INTERVAL"},
		{"sample ratio", map[string]string{"OTEL_TRACES_SAMPLER_ARG": "1.5"}, "OTEL_TRACES_SAMPLER_ARG"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err = %v; want it to mention %q", err, tc.want)
			}
		})
	}
}

func TestMustLoad(t *testing.T) {
	if cfg := MustLoad(); cfg.APIBasePath == "" {
		t.Fatalf("empty config from MustLoad")
	}

	t.Setenv("LOG_LEVEL", "verbose")
	defer func() {
		if recover() == nil {
			t.Fatalf("MustLoad should panic on invalid config")
		}
	}()
	_ = MustLoad()
}

func TestHelpers_typedGetters(t *testing.T) {
	t.Setenv("X_EMPTY", "")
	t.Setenv("X_SET", "val")
	if getenv("X_EMPTY", "d") != "d" || getenv("X_SET", "d") != "val" {
		t.Fatalf("getenv")
	}

	t.Setenv("F_OK", "3.14")
	t.Setenv("F_BAD", "nope")
	if getfloat("F_OK", 0) != 3.14 || getfloat("F_BAD", 1.5) != 1.5 {
		t.Fatalf("getfloat")
	}

	t.Setenv("I_OK", "42")
	t.Setenv("I_BAD", "x")
	if getint("I_OK", 0) != 42 || getint("I_BAD", 7) != 7 {
		t.Fatalf("getint")
	}

	t.Setenv("D_OK", "150ms")
	t.Setenv("D_BAD", "zzz")
	if getdur("D_OK", time.Second) != 150*time.Millisecond || getdur("D_BAD", 2*time.Second) != 2*time.Second {
		t.Fatalf("getdur")
	}
}

func TestHelpers_getbool(t *testing.T) {
	for i, v := range []string{"1", "true", "TRUE", " yes ", "Y", "on"} {
		k := fmt.Sprintf("B_T_%d", i)
		t.Setenv(k, v)
		if !getbool(k, false) {
			t.Fatalf("getbool(%q) = false", v)
		}
	}
	for i, v := range []string{"0", "false", " no ", "N", "off"} {
		k := fmt.Sprintf("B_F_%d", i)
		t.Setenv(k, v)
		if getbool(k, true) {
			t.Fatalf("getbool(%q) = true", v)
		}
	}
	// Neither truthy nor falsy keeps the default.
	t.Setenv("B_ODD", "maybe")
	if !getbool("B_ODD", true) || getbool("B_ODD", false) {
		t.Fatalf("getbool should keep the default for %q", "maybe")
	}
}

func TestHelpers_splitCSV_normalizeBasePath(t *testing.T) {
	if splitCSV("") != nil {
		t.Fatalf("splitCSV(\"\") should be nil")
	}
	if got := splitCSV(" a, ,b ,  c  ,"); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Fatalf("splitCSV = %#v", got)
	}
	for in, want := range map[string]string{"": "/", " / ": "/", "v1": "/v1", "/v1/": "/v1", "/api/v1": "/api/v1"} {
		if got := normalizeBasePath(in); got != want {
			t.Fatalf("normalizeBasePath(%q) = %q; want %q", in, got, want)
		}
	}
}
