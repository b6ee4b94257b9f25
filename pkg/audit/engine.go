package audit

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ranas-mukminov/cloud-iam-optimizer/internal/models"
)

// Defaults for Config fields left at zero
const (
	DefaultAgeThresholdDays = 90
	DefaultWorkers          = 10
	DefaultRetryAttempts    = 3
)

// Config controls one audit run
type Config struct {
	AgeThresholdDays int // Active keys strictly older than this are flagged
	Workers          int // Width of the worker pool
	RetryAttempts    int // Attempt budget for throttled calls
}

func (c Config) withDefaults() Config {
	if c.AgeThresholdDays <= 0 {
		c.AgeThresholdDays = DefaultAgeThresholdDays
	}
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.RetryAttempts <= 0 {
		c.RetryAttempts = DefaultRetryAttempts
	}
	return c
}

// Engine audits every IAM user in an account. It holds no state between
// runs.
type Engine struct {
	gw  Gateway
	cfg Config

	// nowFn is replaceable in tests for reproducible key ages
	nowFn func() time.Time
}

// New creates an Engine. Zero Config fields take the package defaults.
func New(gw Gateway, cfg Config) *Engine {
	return &Engine{gw: gw, cfg: cfg.withDefaults(), nowFn: time.Now}
}

// Run enumerates all IAM users and audits each one through a bounded
// worker pool. Enumeration failure is fatal; every other failure is
// contained in the per-user records. Results are sorted by user name.
// Cancelling ctx stops dispatching new users; records for users already
// in flight are still returned, along with ctx's error.
func (e *Engine) Run(ctx context.Context) ([]models.UserAudit, error) {
	exec := NewExecutor(e.cfg.RetryAttempts)

	var users []models.User
	err := exec.Do(ctx, "ListUsers", func(ctx context.Context) error {
		u, err := e.gw.ListUsers(ctx)
		if err != nil {
			return err
		}
		users = u
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing IAM users: %w", err)
	}

	if len(users) == 0 {
		return []models.UserAudit{}, nil
	}

	r := &runner{
		gw:        e.gw,
		exec:      exec,
		now:       e.nowFn().UTC(),
		threshold: e.cfg.AgeThresholdDays,
	}

	workers := e.cfg.Workers
	if workers > len(users) {
		workers = len(users)
	}

	jobs := make(chan models.User)
	results := make(chan models.UserAudit, len(users))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for user := range jobs {
				results <- r.auditUser(ctx, user)
			}
		}()
	}

feed:
	for _, user := range users {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- user:
		}
	}
	close(jobs)

	wg.Wait()
	close(results)

	audits := make([]models.UserAudit, 0, len(users))
	for record := range results {
		audits = append(audits, record)
	}

	// Completion order is nondeterministic; re-sort for stable reports
	sort.Slice(audits, func(i, j int) bool {
		return audits[i].User.UserName < audits[j].User.UserName
	})

	if err := ctx.Err(); err != nil {
		return audits, err
	}
	return audits, nil
}
