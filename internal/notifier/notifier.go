// Package notifier runs the daily expiration scan: it buckets subscriptions
// by time left and pushes one digest per bucket to the administrator.
package notifier

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/simroster/simroster/internal/clock"
	"github.com/simroster/simroster/internal/config"
	obsmetrics "github.com/simroster/simroster/internal/observability/metrics"
	rosterdomain "github.com/simroster/simroster/internal/roster/domain"
	"github.com/simroster/simroster/internal/settings"
	"github.com/simroster/simroster/internal/transport"
	workflowdomain "github.com/simroster/simroster/internal/workflow/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Bucket is one urgency band of the daily scan. Bands are disjoint: a
// subscription lands in at most one bucket per scan.
type Bucket string

const (
	BucketSevenDays Bucket = "seven_days"
	BucketThreeDays Bucket = "three_days"
	BucketOneDay    Bucket = "one_day"
	BucketExpired   Bucket = "expired"
	BucketOverdue   Bucket = "overdue"
)

// bucketOrder fixes digest ordering, most urgent last so it stays visible.
var bucketOrder = []Bucket{BucketSevenDays, BucketThreeDays, BucketOneDay, BucketExpired, BucketOverdue}

var bucketHeaders = map[Bucket]string{
	BucketSevenDays: "📅 Через 7 дней заканчивается оплата:",
	BucketThreeDays: "⏳ Через 3 дня заканчивается оплата:",
	BucketOneDay:    "⚠️ Завтра заканчивается оплата:",
	BucketExpired:   "❗️ Сегодня закончилась оплата:",
	BucketOverdue:   "🚨 Оплата давно просрочена:",
}

// Classify maps time-to-expiry to an urgency band. The day bands are
// half-open intervals aligned to whole 24h days, so each subscription is
// announced once per band as it counts down; everything more than a day
// past expiry lands in the overdue band every scan.
func Classify(now, expiresAt time.Time) (Bucket, bool) {
	left := expiresAt.Sub(now)
	switch {
	case left > 7*24*time.Hour:
		return "", false
	case left > 6*24*time.Hour:
		return BucketSevenDays, true
	case left > 3*24*time.Hour:
		return "", false
	case left > 2*24*time.Hour:
		return BucketThreeDays, true
	case left > 24*time.Hour:
		return "", false
	case left > 0:
		return BucketOneDay, true
	case left > -24*time.Hour:
		return BucketExpired, true
	default:
		return BucketOverdue, true
	}
}

type Params struct {
	fx.In

	Log         *zap.Logger
	Cfg         config.Config
	Holder      *config.NotifyConfigHolder
	Clock       clock.Clock
	RosterSvc   rosterdomain.Service
	SettingsSvc settings.Service
	Sender      transport.Sender
}

type Notifier struct {
	log         *zap.Logger
	cfg         config.Config
	holder      *config.NotifyConfigHolder
	clock       clock.Clock
	rosterSvc   rosterdomain.Service
	settingsSvc settings.Service
	sender      transport.Sender
}

func New(p Params) *Notifier {
	return &Notifier{
		log:         p.Log.Named("notifier"),
		cfg:         p.Cfg,
		holder:      p.Holder,
		clock:       p.Clock,
		rosterSvc:   p.RosterSvc,
		settingsSvc: p.SettingsSvc,
		sender:      p.Sender,
	}
}

// recipients resolves who receives the digests: the static administrator set
// when configured, otherwise the claimed administrator.
func (n *Notifier) recipients(ctx context.Context) ([]int64, error) {
	if len(n.cfg.AdminIDs) > 0 {
		return n.cfg.AdminIDs, nil
	}
	adminID, ok, err := n.settingsSvc.AdminID(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return []int64{adminID}, nil
}

// Scan buckets every subscription as of now and sends one digest per
// non-empty bucket to every recipient. A failed send is logged and counted
// but never blocks the remaining buckets or recipients.
func (n *Notifier) Scan(ctx context.Context) error {
	obsmetrics.Notifier().IncScan()

	recipients, err := n.recipients(ctx)
	if err != nil {
		return err
	}
	if len(recipients) == 0 {
		n.log.Warn("no administrator claimed yet, skipping digest")
		return nil
	}

	subs, err := n.rosterSvc.List(ctx)
	if err != nil {
		return err
	}

	now := n.clock.Now()
	grouped := make(map[Bucket][]rosterdomain.Subscription)
	for _, sub := range subs {
		if bucket, ok := Classify(now, sub.ExpiresAt); ok {
			grouped[bucket] = append(grouped[bucket], sub)
		}
	}
	if len(grouped) == 0 {
		return nil
	}

	loc := n.holder.Get().Location()
	for _, bucket := range bucketOrder {
		members := grouped[bucket]
		if len(members) == 0 {
			continue
		}
		text := digest(bucket, members, loc)
		for _, recipientID := range recipients {
			if err := n.sender.Send(ctx, recipientID, text); err != nil {
				obsmetrics.Notifier().IncFailure(string(bucket))
				n.log.Error("digest send failed",
					zap.String("bucket", string(bucket)),
					zap.Int64("recipient_id", recipientID),
					zap.Error(err))
				continue
			}
			obsmetrics.Notifier().IncSent(string(bucket))
		}
	}
	return nil
}

func digest(bucket Bucket, members []rosterdomain.Subscription, loc *time.Location) string {
	var b strings.Builder
	b.WriteString(bucketHeaders[bucket])
	for _, sub := range members {
		fmt.Fprintf(&b, "\n• %s (%s) — до %s",
			sub.Name, sub.Phone, sub.ExpiresAt.In(loc).Format(workflowdomain.DateFormat))
	}
	return b.String()
}

// NextRun returns the next scheduled scan instant strictly after now: today
// at the configured wall-clock time in the operating zone, or the same time
// tomorrow if that has already passed.
func NextRun(now time.Time, nc config.NotifyConfig) time.Time {
	loc := nc.Location()
	local := now.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), nc.Hour, nc.Minute, 0, 0, loc)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// RunForever sleeps until each scheduled scan and fires it. A wake-up later
// than the misfire grace (process suspended across the slot) skips that scan
// instead of sending a stale digest.
func (n *Notifier) RunForever(ctx context.Context) {
	for {
		nc := n.holder.Get()
		scheduled := NextRun(n.clock.Now(), nc)
		n.log.Info("next expiration scan scheduled", zap.Time("at", scheduled))

		timer := time.NewTimer(time.Until(scheduled))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		nc = n.holder.Get()
		if late := n.clock.Now().Sub(scheduled); late > nc.MisfireGrace {
			obsmetrics.Notifier().IncScanSkipped()
			n.log.Warn("scan slot missed beyond grace, skipping", zap.Duration("late", late))
			continue
		}
		n.runScan(ctx)
	}
}

// runScan shields the loop: one bad scan never kills the daily schedule.
func (n *Notifier) runScan(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			n.log.Error("expiration scan panicked", zap.Any("panic", r))
		}
	}()
	if err := n.Scan(ctx); err != nil {
		n.log.Error("expiration scan failed", zap.Error(err))
	}
}

var Module = fx.Module("notifier",
	fx.Provide(New),
	fx.Invoke(registerHooks),
)

func registerHooks(lc fx.Lifecycle, n *Notifier) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				n.RunForever(ctx)
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
				return nil
			case <-stopCtx.Done():
				return stopCtx.Err()
			}
		},
	})
}
