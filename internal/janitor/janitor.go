// Package janitor schedules the periodic result pool sweep: a proactive
// eviction of expired task entries so a caller that never calls _get still
// lets the pool free memory (the pool itself only evicts lazily, on Get and
// on Submit: expired entries first, then the oldest entry if over capacity).
package janitor

import (
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/nodeforge/agentplatform/internal/resultpool"
)

// DefaultSchedule runs the sweep once a minute.
const DefaultSchedule = "@every 1m"

// Sweeper is the narrow interface janitor depends on; *resultpool.Pool
// satisfies it.
type Sweeper interface {
	SweepExpired() int
}

// Janitor wraps a cron.Cron running a single sweep job.
type Janitor struct {
	cron   *cron.Cron
	pool   Sweeper
	logger *zap.Logger
}

// New builds a Janitor that sweeps pool on schedule (a standard 5-field cron
// expression, or one of cron's "@every"/"@hourly" style descriptors).
func New(pool Sweeper, schedule string, logger *zap.Logger) (*Janitor, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if schedule == "" {
		schedule = DefaultSchedule
	}

	j := &Janitor{
		cron:   cron.New(),
		pool:   pool,
		logger: logger.Named("janitor"),
	}
	if _, err := j.cron.AddFunc(schedule, j.sweep); err != nil {
		return nil, fmt.Errorf("janitor: invalid schedule %q: %w", schedule, err)
	}
	return j, nil
}

// Start begins running the scheduled sweep in the background.
func (j *Janitor) Start() {
	j.cron.Start()
}

// Stop halts the scheduler and waits for any in-flight sweep to finish.
func (j *Janitor) Stop() {
	<-j.cron.Stop().Done()
}

func (j *Janitor) sweep() {
	n := j.pool.SweepExpired()
	if n > 0 {
		j.logger.Debug("swept expired result pool entries", zap.Int("count", n))
	}
}
