package monitoring

import (
	"context"
	"fmt"
	"time"

	"github.com/isdelr/calcapi/internal/models"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// StatsSource counts stored records.
type StatsSource interface {
	CountUsers(ctx context.Context) (int64, error)
	CountCalculations(ctx context.Context) (map[models.CalculationType]int64, error)
}

// StatUpdater periodically publishes record counts as gauges.
type StatUpdater struct {
	source  StatsSource
	cron    *cron.Cron
	enabled bool
	timeout time.Duration
}

// NewStatUpdater schedules the count job. An empty schedule disables it.
func NewStatUpdater(source StatsSource, schedule string) (*StatUpdater, error) {
	su := &StatUpdater{
		source:  source,
		cron:    cron.New(),
		timeout: 10 * time.Second,
	}
	if schedule == "" {
		return su, nil
	}
	if _, err := su.cron.AddFunc(schedule, su.update); err != nil {
		return nil, fmt.Errorf("invalid stats schedule %q: %w", schedule, err)
	}
	su.enabled = true
	return su, nil
}

// Run publishes the counts once and starts the schedule.
func (su *StatUpdater) Run() {
	if !su.enabled {
		log.Info().Msg("Stat updater disabled")
		return
	}
	log.Info().Msg("Starting background stat updater...")
	su.update()
	su.cron.Start()
}

// Stop halts the schedule and waits for a running update to finish.
func (su *StatUpdater) Stop() {
	if !su.enabled {
		return
	}
	<-su.cron.Stop().Done()
	log.Info().Msg("Stopped background stat updater.")
}

func (su *StatUpdater) update() {
	ctx, cancel := context.WithTimeout(context.Background(), su.timeout)
	defer cancel()

	users, err := su.source.CountUsers(ctx)
	if err != nil {
		log.Error().Err(err).Msg("StatUpdater: Failed to count users")
		return
	}
	byType, err := su.source.CountCalculations(ctx)
	if err != nil {
		log.Error().Err(err).Msg("StatUpdater: Failed to count calculations")
		return
	}

	usersGauge.Set(float64(users))
	for t, n := range byType {
		calculationsGauge.WithLabelValues(string(t)).Set(float64(n))
	}
	log.Debug().Int64("users", users).Msg("StatUpdater: Published record counts")
}
