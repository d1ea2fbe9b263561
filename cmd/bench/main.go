// README: Smoke runner for a live concierge API; executes HTTP/DB/Redis checks and prints results.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"concierge/internal/config"
)

const (
	statusPass    = "PASS"
	statusFail    = "FAIL"
	statusPending = "PENDING"
	statusSkip    = "SKIP"
)

// Config holds the bench knobs. Connection targets default to the same
// settings the API server reads, so one environment drives both.
type Config struct {
	BaseURL        string
	DSN            string
	RedisAddr      string
	MigrationDir   string
	ApplyMigration bool
	Strict         bool
	Timeout        time.Duration
	Concurrency    int
	Duration       time.Duration
	RateLimit      int
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

func run(args []string, out io.Writer) int {
	app, err := config.Load()
	if err != nil {
		log.Error().Err(err).Msg("bench: load config")
		return 2
	}
	cfg, err := parseFlags(args, app)
	if err != nil {
		return 2
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	t := tally(NewRunner(cfg).RunAll(ctx))
	fmt.Fprintf(out, "\n== Summary ==\n%s\n", t)
	return t.exitCode(cfg.Strict)
}

func parseFlags(args []string, app config.Config) (Config, error) {
	cfg := Config{
		BaseURL:     "http://localhost" + app.HTTP.Addr,
		DSN:         app.DB.DSN,
		RedisAddr:   app.Redis.Addr,
		RateLimit:   app.RateLimit.MaxRequests,
		Timeout:     2 * time.Minute,
		Concurrency: 20,
		Duration:    10 * time.Second,
	}
	if !strings.HasPrefix(app.HTTP.Addr, ":") {
		cfg.BaseURL = "http://" + app.HTTP.Addr
	}

	fs := flag.NewFlagSet("bench", flag.ContinueOnError)
	fs.StringVar(&cfg.BaseURL, "base-url", cfg.BaseURL, "API base URL")
	fs.StringVar(&cfg.DSN, "dsn", cfg.DSN, "Postgres DSN")
	fs.StringVar(&cfg.RedisAddr, "redis", cfg.RedisAddr, "Redis address")
	fs.StringVar(&cfg.MigrationDir, "migrations", "migrations", "migration SQL directory")
	fs.BoolVar(&cfg.ApplyMigration, "apply-migration", false, "apply migration SQL before the checks")
	fs.BoolVar(&cfg.Strict, "strict", false, "treat pending checks as failures")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "overall deadline")
	fs.IntVar(&cfg.Concurrency, "concurrency", cfg.Concurrency, "workers for the throughput check")
	fs.DurationVar(&cfg.Duration, "duration", cfg.Duration, "length of the throughput check")
	fs.IntVar(&cfg.RateLimit, "rate-limit", cfg.RateLimit, "server per-key request limit")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return cfg, nil
}

type summary map[string]int

func tally(results []Result) summary {
	s := summary{}
	for _, r := range results {
		s[r.Status]++
	}
	return s
}

func (s summary) String() string {
	return fmt.Sprintf("PASS=%d FAIL=%d PENDING=%d SKIP=%d", s[statusPass], s[statusFail], s[statusPending], s[statusSkip])
}

func (s summary) exitCode(strict bool) int {
	if s[statusFail] > 0 || (strict && s[statusPending] > 0) {
		return 1
	}
	return 0
}
