package trace

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/tradewind/tradewind/internal/models"
	"github.com/tradewind/tradewind/internal/notify"
	"gorm.io/gorm"
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// nextCronDuration parses a 5-field cron expression and returns the duration
// until the next fire time. Returns 0 on parse error.
func nextCronDuration(expr string) time.Duration {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return 0
	}
	next := sched.Next(time.Now())
	d := time.Until(next)
	if d < 0 {
		return 0
	}
	return d
}

// RunSweeper marks idle conversations abandoned on the configured cron
// schedule, and emits the activity digest when a digest schedule is set.
// Blocks until ctx is done; run it in a goroutine.
func (t *Tracer) RunSweeper(ctx context.Context, db *gorm.DB) {
	sweepWait := nextCronDuration(t.cfg.SweepCron)
	if sweepWait == 0 {
		log.Printf("trace: invalid sweep cron %q, sweeper disabled", t.cfg.SweepCron)
		return
	}
	sweep := time.NewTimer(sweepWait)
	defer sweep.Stop()

	var digest *time.Timer
	var digestC <-chan time.Time
	if t.cfg.DigestCron != "" {
		if d := nextCronDuration(t.cfg.DigestCron); d > 0 {
			digest = time.NewTimer(d)
			digestC = digest.C
			defer digest.Stop()
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-sweep.C:
			t.SweepAbandoned(db)
			sweep.Reset(nextCronDuration(t.cfg.SweepCron))
		case <-digestC:
			t.emitDigest(ctx)
			digest.Reset(nextCronDuration(t.cfg.DigestCron))
		}
	}
}

// emitDigest writes the activity rollup to the narration writer and, when a
// notifier is wired, posts it as an event.
func (t *Tracer) emitDigest(ctx context.Context) {
	d := t.BuildDigest()
	line := fmt.Sprintf("%d conversation(s), %d message(s), %d completed, %d guidance, %d abandoned, %d in flight",
		d.Conversations, d.Messages, d.Completed, d.Guidance, d.Abandoned, d.InFlight)
	fmt.Fprintf(t.out, "trace: digest: %s\n", line)
	if t.notifier == nil {
		return
	}
	err := t.notifier.Post(ctx, notify.Event{
		Title: "Procurement activity digest",
		Body:  line,
		Level: notify.LevelInfo,
		Fields: []notify.Field{
			{Name: "Completed", Value: fmt.Sprintf("%d", d.Completed), Short: true},
			{Name: "Guidance", Value: fmt.Sprintf("%d", d.Guidance), Short: true},
			{Name: "Abandoned", Value: fmt.Sprintf("%d", d.Abandoned), Short: true},
			{Name: "In flight", Value: fmt.Sprintf("%d", d.InFlight), Short: true},
		},
	})
	if err != nil {
		log.Printf("trace: post digest: %v", err)
	}
}

// SweepAbandoned marks every idle in-flight conversation abandoned: the bus
// drops its future messages and the procurement record closes. Returns the
// conversation ids swept.
func (t *Tracer) SweepAbandoned(db *gorm.DB) []string {
	var swept []string
	for _, c := range t.Conversations() {
		if !c.Abandoned {
			continue
		}
		t.bus.Cancel(c.ConversationID)
		swept = append(swept, c.ConversationID)
		fmt.Fprintf(t.out, "trace: conversation %s abandoned after %dm idle\n", c.ConversationID, t.cfg.AbandonAfterMin)
		if db != nil {
			err := db.Model(&models.ProcurementRecord{}).
				Where("conversation_id = ? AND status = ?", c.ConversationID, models.ProcurementActive).
				Updates(map[string]any{"status": models.ProcurementAbandoned}).Error
			if err != nil {
				log.Printf("trace: mark abandoned %s: %v", c.ConversationID, err)
			}
		}
	}
	return swept
}
