package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fd1az/arbitrage-engine/business/arbitrage/app"
	"github.com/fd1az/arbitrage-engine/business/arbitrage/domain"
	"github.com/fd1az/arbitrage-engine/internal/logger"
)

// Event is the envelope published for every engine event.
type Event struct {
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

const (
	EventOpportunity = "opportunity"
	EventCycle       = "cycle"
	EventExecution   = "execution"
)

type cyclePayload struct {
	Started   time.Time               `json:"started"`
	Duration  string                  `json:"duration"`
	Skipped   bool                    `json:"skipped"`
	Reason    string                  `json:"reason,omitempty"`
	Found     map[domain.Strategy]int `json:"found"`
	Stored    int                     `json:"stored"`
	Rejected  int                     `json:"rejected"`
	Expired   int                     `json:"expired"`
	Venues    int                     `json:"venues"`
	Unhealthy []string                `json:"unhealthy,omitempty"`
	Stats     domain.Stats            `json:"stats"`
}

// Publisher fans engine events out on a pub/sub channel. Publishing is best
// effort: failures are logged and never reach the engine.
type Publisher struct {
	rdb     *redis.Client
	channel string
	log     logger.LoggerInterface
	now     func() time.Time
}

// NewPublisher creates a Publisher on channel.
func NewPublisher(rdb *redis.Client, channel string, log logger.LoggerInterface) *Publisher {
	if channel == "" {
		channel = "arbitrage:events"
	}
	return &Publisher{rdb: rdb, channel: channel, log: log, now: time.Now}
}

func (p *Publisher) Start(context.Context) error { return nil }

func (p *Publisher) Stop() error { return nil }

func (p *Publisher) ReportOpportunity(ctx context.Context, opp *domain.Opportunity) {
	p.publish(ctx, EventOpportunity, opp)
}

func (p *Publisher) ReportCycle(ctx context.Context, r app.CycleReport) {
	p.publish(ctx, EventCycle, cyclePayload{
		Started:   r.Started,
		Duration:  r.Duration.String(),
		Skipped:   r.Skipped,
		Reason:    r.Reason,
		Found:     r.Found,
		Stored:    r.Stored,
		Rejected:  r.Rejected,
		Expired:   r.Expired,
		Venues:    r.Venues,
		Unhealthy: r.Unhealthy,
		Stats:     r.Stats,
	})
}

func (p *Publisher) ReportExecution(ctx context.Context, r *domain.ExecutionResult) {
	p.publish(ctx, EventExecution, r)
}

func (p *Publisher) publish(ctx context.Context, kind string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		p.log.Error(ctx, "encode event", "type", kind, "error", err)
		return
	}
	msg, err := json.Marshal(Event{Type: kind, Timestamp: p.now(), Data: data})
	if err != nil {
		p.log.Error(ctx, "encode envelope", "type", kind, "error", err)
		return
	}
	if err := p.rdb.Publish(ctx, p.channel, msg).Err(); err != nil {
		p.log.Warn(ctx, "publish event failed", "channel", p.channel, "type", kind, "error", err)
	}
}
