// Package scheduler runs the periodic subscription housekeeping jobs.
package scheduler

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/parishkeep/parishkeep/internal/clock"
	"github.com/parishkeep/parishkeep/internal/config"
	subscriptiondomain "github.com/parishkeep/parishkeep/internal/subscription/domain"
)

// Config holds the sweep cadence. Zero values pick the defaults.
type Config struct {
	Interval time.Duration
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = time.Hour
	}
	return c
}

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Subs    subscriptiondomain.Repository
	Pricing *config.PricingConfigHolder
	Clock   clock.Clock
	Config  Config `optional:"true"`
}

// Scheduler sweeps lapsed subscription records and surfaces upcoming
// renewals in the logs. Tenant access is derived at request time, so
// the sweep only keeps the purchase ledger honest.
type Scheduler struct {
	db      *gorm.DB
	log     *zap.Logger
	cfg     Config
	subs    subscriptiondomain.Repository
	pricing *config.PricingConfigHolder
	clock   clock.Clock

	stop chan struct{}
	done chan struct{}
}

func New(p Params) *Scheduler {
	return &Scheduler{
		db:      p.DB,
		log:     p.Log,
		cfg:     p.Config.withDefaults(),
		subs:    p.Subs,
		pricing: p.Pricing,
		clock:   p.Clock,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

func (s *Scheduler) Start() {
	go s.loop()
}

func (s *Scheduler) Stop() {
	close(s.stop)
	<-s.done
}

func (s *Scheduler) loop() {
	defer close(s.done)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.RunOnce(context.Background())
		}
	}
}

// RunOnce executes one sweep. Exported so tests and operators can drive
// it without the ticker.
func (s *Scheduler) RunOnce(ctx context.Context) {
	if err := s.markLapsedSubscriptions(ctx); err != nil {
		s.log.Error("lapsed subscription sweep failed", zap.Error(err))
	}
	if err := s.logUpcomingRenewals(ctx); err != nil {
		s.log.Error("renewal lookahead failed", zap.Error(err))
	}
}

// markLapsedSubscriptions flips active ledger records to expired once
// their window plus the grace period is fully behind us.
func (s *Scheduler) markLapsedSubscriptions(ctx context.Context) error {
	graceDays := s.pricing.Get().GraceDays
	cutoff := clock.AddDays(s.clock.Now(), -graceDays)

	res := s.db.WithContext(ctx).
		Model(&subscriptiondomain.Subscription{}).
		Where("status = ? AND end_date < ?", subscriptiondomain.StatusActive, cutoff).
		Update("status", subscriptiondomain.StatusExpired)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		s.log.Info("marked lapsed subscriptions", zap.Int64("count", res.RowsAffected))
	}
	return nil
}

func (s *Scheduler) logUpcomingRenewals(ctx context.Context) error {
	days := s.pricing.Get().RenewalWindowDays
	now := s.clock.Now()
	subs, err := s.subs.UpcomingRenewals(ctx, now, clock.AddDays(now, days))
	if err != nil {
		return err
	}

	for _, sub := range subs {
		s.log.Info("subscription renewal upcoming",
			zap.String("subscription_id", sub.ID.String()),
			zap.String("organization_id", sub.OrganizationID.String()),
			zap.Time("end_date", sub.EndDate),
		)
	}
	return nil
}
