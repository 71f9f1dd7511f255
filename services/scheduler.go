// services/scheduler.go
package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// StartSyncScheduler runs job on the cron schedule until ctx is done. Runs
// never overlap.
func StartSyncScheduler(ctx context.Context, cronExpr string, job func(ctx context.Context) error) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	_, err = sched.NewJob(
		gocron.CronJob(cronExpr, false),
		gocron.NewTask(func() {
			started := time.Now()
			if err := job(ctx); err != nil {
				log.Printf("[Scheduler] ❌ Round sync failed after %s: %v", time.Since(started).Round(time.Millisecond), err)
				return
			}
			log.Printf("[Scheduler] ✅ Round sync finished in %s", time.Since(started).Round(time.Millisecond))
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, fmt.Errorf("invalid sync schedule %q: %w", cronExpr, err)
	}

	sched.Start()
	go func() {
		<-ctx.Done()
		if err := sched.Shutdown(); err != nil {
			log.Printf("[Scheduler] ⚠️ Shutdown error: %v", err)
		}
	}()
	return sched, nil
}
