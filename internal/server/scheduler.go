package server

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// StartHealthScoreScheduler runs the daily score batch at the configured
// UTC hour. The caller owns the returned cron and stops it on shutdown.
func (a *App) StartHealthScoreScheduler() *cron.Cron {
	scheduler := cron.New(cron.WithLocation(time.UTC))
	spec := fmt.Sprintf("0 %d * * *", a.cfg.HealthScoreHourUTC)
	if _, err := scheduler.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()
		a.runHealthScoreBatch(ctx)
	}); err != nil {
		log.Printf("health score schedule registration failed spec=%q err=%v", spec, err)
		return scheduler
	}
	scheduler.Start()
	log.Printf("health score batch scheduled spec=%q", spec)
	return scheduler
}

// runHealthScoreBatch scores every pet sequentially. One slow or failing
// pet only costs its own entry, never the rest of the run.
func (a *App) runHealthScoreBatch(ctx context.Context) {
	started := time.Now()
	petIDs, err := a.listPetIDs(ctx)
	if err != nil {
		log.Printf("health score batch aborted err=%v", err)
		return
	}

	scored := 0
	for _, petID := range petIDs {
		if ctx.Err() != nil {
			log.Printf("health score batch interrupted err=%v", ctx.Err())
			return
		}
		score, err := a.computeHealthScore(ctx, petID)
		if err != nil {
			log.Printf("health score batch skipped pet_id=%s err=%v", petID, err)
			continue
		}
		if err := a.savePetHealthScore(ctx, petID, score); err != nil {
			log.Printf("health score batch save failed pet_id=%s err=%v", petID, err)
			continue
		}
		scored++
	}
	log.Printf("health score batch finished pets=%d scored=%d elapsed=%s", len(petIDs), scored, time.Since(started).Round(time.Millisecond))
}
