package dedup

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	logx "hiprelay/pkg/logx"
)

const DefaultPruneSchedule = "@every 10m"

var scheduleParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseSchedule validates a prune schedule ("@every 10m", "*/5 * * * *").
// Empty means DefaultPruneSchedule.
func ParseSchedule(spec string) (cron.Schedule, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		spec = DefaultPruneSchedule
	}
	s, err := scheduleParser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("dedup.prune_schedule: invalid %q: %w", spec, err)
	}
	return s, nil
}

// RunPruner prunes p on schedule until ctx is canceled.
// Caches that are not Pruners return immediately.
func RunPruner(ctx context.Context, c Cache, spec string, log logx.Logger) error {
	p, ok := c.(Pruner)
	if !ok {
		return nil
	}
	sched, err := ParseSchedule(spec)
	if err != nil {
		return err
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	cr := cron.New(cron.WithParser(scheduleParser), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	cr.Schedule(sched, cron.FuncJob(func() {
		pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		n, err := p.Prune(pctx)
		if err != nil {
			log.Warn("dedup prune failed", logx.Err(err))
			return
		}
		if n > 0 {
			log.Debug("dedup pruned", logx.Int("removed", n))
		}
	}))
	cr.Start()
	<-ctx.Done()
	<-cr.Stop().Done()
	return nil
}
