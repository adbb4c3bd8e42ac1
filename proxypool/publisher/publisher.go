package publisher

import (
	"context"
	"time"

	"liuproxy_checker/internal/shared/logger"
	"liuproxy_checker/proxypool/model"
	"liuproxy_checker/proxypool/sink"
)

// Mode 决定发布器如何消费结果队列。
type Mode string

const (
	// ModePoll drains the sink on a fixed period.
	ModePoll Mode = "poll"
	// ModeNotify drains as soon as the sink signals new results.
	ModeNotify Mode = "notify"
)

// Observer is called for every published result, after the display update.
type Observer func(r model.ValidationResult)

// Publisher 将结果队列中的结果转发给 Display。
type Publisher struct {
	sink      *sink.Sink
	display   model.Display
	interval  time.Duration
	mode      Mode
	observers []Observer
}

func New(s *sink.Sink, display model.Display, interval time.Duration, mode Mode) *Publisher {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	if mode != ModeNotify {
		mode = ModePoll
	}
	return &Publisher{
		sink:     s,
		display:  display,
		interval: interval,
		mode:     mode,
	}
}

// Observe registers an observer. It must be called before Run.
func (p *Publisher) Observe(o Observer) {
	p.observers = append(p.observers, o)
}

// Run publishes until ctx is done, then flushes whatever is still queued.
func (p *Publisher) Run(ctx context.Context) {
	l := logger.WithComponent("ProxyPool/Publisher")
	l.Info().Str("mode", string(p.mode)).Dur("interval", p.interval).Msg("Publisher started.")

	if p.mode == ModeNotify {
		p.runNotify(ctx)
	} else {
		p.runPoll(ctx)
	}

	p.Flush()
	l.Info().Msg("Publisher stopped.")
}

func (p *Publisher) runPoll(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.Flush()
		case <-ctx.Done():
			return
		}
	}
}

func (p *Publisher) runNotify(ctx context.Context) {
	for {
		select {
		case <-p.sink.Ready():
			p.Flush()
		case <-ctx.Done():
			return
		}
	}
}

// Flush drains the sink once and applies every result. It never waits for
// new results and returns how many were published.
func (p *Publisher) Flush() int {
	results := p.sink.Drain()
	for _, r := range results {
		p.display.UpdateRow(r.RowID, r)
		for _, o := range p.observers {
			o(r)
		}
	}
	if len(results) > 0 {
		l := logger.WithComponent("ProxyPool/Publisher")
		l.Debug().Int("count", len(results)).Msg("Published results.")
	}
	return len(results)
}
