package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"CoinScreener/internal/export"
	"CoinScreener/internal/model"
	"CoinScreener/internal/pipeline"
)

// Scheduler manages the periodic screening run and cache maintenance tasks.
type Scheduler struct {
	Cron     *cron.Cron
	Pipeline *pipeline.Pipeline
	Exporter *export.Exporter
	Request  pipeline.Request
	Ctx      context.Context
}

// New creates a Scheduler. The request template is reused each tick with a
// fresh evaluation date.
func New(ctx context.Context, p *pipeline.Pipeline, ex *export.Exporter, req pipeline.Request) *Scheduler {
	return &Scheduler{
		Cron:     cron.New(cron.WithSeconds()),
		Pipeline: p,
		Exporter: ex,
		Request:  req,
		Ctx:      ctx,
	}
}

// RegisterAll registers the screening and cache-sweep tasks.
func (s *Scheduler) RegisterAll(screeningCron, sweepCron string) error {
	if _, err := s.Cron.AddFunc(screeningCron, s.screeningTask); err != nil {
		return fmt.Errorf("register screening task: %w", err)
	}
	if _, err := s.Cron.AddFunc(sweepCron, s.sweepTask); err != nil {
		return fmt.Errorf("register cache sweep: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Println("[INFO] scheduler started")
}

// Stop stops the cron scheduler gracefully.
func (s *Scheduler) Stop() {
	s.Cron.Stop()
	log.Println("[INFO] scheduler stopped")
}

// RunNow executes the screening task immediately (manual trigger / RUN_ON_START).
func (s *Scheduler) RunNow() {
	s.screeningTask()
}

func (s *Scheduler) screeningTask() {
	log.Println("[INFO] running scheduled screening")
	req := s.Request
	req.EvaluationDate = time.Now().Truncate(24 * time.Hour)

	run, err := s.Pipeline.Run(s.Ctx, req)
	if err != nil {
		log.Printf("[ERROR] scheduled screening: %v", err)
		return
	}
	s.report(run)

	if s.Exporter != nil {
		if err := s.Exporter.WriteRun(run); err != nil {
			log.Printf("[ERROR] export run %s: %v", run.ID, err)
		}
	}
}

// sweepTask drops cache entries older than the series TTL so the in-memory
// map does not accumulate keys for coins no longer screened.
func (s *Scheduler) sweepTask() {
	cutoff := time.Now().Add(-s.Pipeline.SeriesTTL)
	dropped := s.Pipeline.Cache.InvalidateOlderThan(cutoff)
	if dropped > 0 {
		log.Printf("[INFO] cache sweep dropped %d stale entries", dropped)
	}
}

func (s *Scheduler) report(run *model.ScreeningRun) {
	top := len(run.Cards)
	if top > 5 {
		top = 5
	}
	for i := 0; i < top; i++ {
		c := run.Cards[i]
		log.Printf("[INFO] #%d %s score=%.1f", i+1, c.CoinID, c.Aggregate)
	}
	if len(run.Failures) > 0 {
		log.Printf("[WARN] run %s excluded %d coins", run.ID, len(run.Failures))
	}
}
