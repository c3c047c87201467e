package worker

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/meetscribe/minuted/internal/metrics"
	"github.com/meetscribe/minuted/internal/queue"
)

// Processor is one pipeline stage. Process returns nil on success,
// ErrSkipMessage for messages to drop, and any other error to leave the
// message for redelivery after the visibility timeout.
type Processor interface {
	Stage() string
	Process(ctx context.Context, msg queue.Message) error
}

// ControllerOptions tune the polling loop.
type ControllerOptions struct {
	QueueURL    string
	MaxMessages int
	PollWait    time.Duration
	IdleSleep   time.Duration
}

// Controller runs the long-poll loop for one stage. A failure in one message
// never aborts the batch or the loop; shutdown is cooperative and finishes
// the message in flight.
type Controller struct {
	queue Queue
	proc  Processor
	opts  ControllerOptions
	log   zerolog.Logger
}

func NewController(q Queue, proc Processor, opts ControllerOptions, log zerolog.Logger) *Controller {
	if opts.MaxMessages <= 0 {
		opts.MaxMessages = 1
	}
	if opts.PollWait <= 0 {
		opts.PollWait = 20 * time.Second
	}
	if opts.IdleSleep <= 0 {
		opts.IdleSleep = 5 * time.Second
	}
	return &Controller{
		queue: q,
		proc:  proc,
		opts:  opts,
		log:   log.With().Str("component", "controller").Str("stage", proc.Stage()).Logger(),
	}
}

// Run polls until ctx is cancelled.
func (c *Controller) Run(ctx context.Context) {
	c.log.Info().Str("queue", c.opts.QueueURL).Msg("stage controller started")

	for {
		if ctx.Err() != nil {
			c.log.Info().Msg("stage controller stopped")
			return
		}

		msgs, err := c.queue.Receive(ctx, c.opts.QueueURL, c.opts.MaxMessages, c.opts.PollWait)
		if err != nil {
			if ctx.Err() != nil {
				c.log.Info().Msg("stage controller stopped")
				return
			}
			c.log.Error().Err(err).Msg("queue receive failed")
			c.sleep(ctx)
			continue
		}

		if len(msgs) == 0 {
			c.sleep(ctx)
			continue
		}

		for _, m := range msgs {
			if ctx.Err() != nil {
				return
			}
			c.handle(ctx, m)
		}
	}
}

func (c *Controller) handle(ctx context.Context, m queue.Message) {
	stage := c.proc.Stage()
	log := c.log.With().Str("message_id", m.MessageID).Logger()
	start := time.Now()

	// Shutdown must finish the message in flight, not abort it mid-stage;
	// the loop in Run is the only cancellation point.
	ctx = context.WithoutCancel(ctx)

	err := c.proc.Process(ctx, m)
	metrics.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		metrics.MessagesProcessedTotal.WithLabelValues(stage).Inc()
		c.delete(ctx, m, log)
	case errors.Is(err, ErrSkipMessage):
		metrics.MessagesSkippedTotal.WithLabelValues(stage).Inc()
		log.Info().Err(err).Msg("message skipped")
		c.delete(ctx, m, log)
	default:
		// Leave the message; the visibility timeout redelivers it.
		metrics.MessagesFailedTotal.WithLabelValues(stage).Inc()
		log.Error().Err(err).Dur("elapsed", time.Since(start)).Msg("message processing failed")
	}
}

func (c *Controller) delete(ctx context.Context, m queue.Message, log zerolog.Logger) {
	if err := c.queue.Delete(ctx, c.opts.QueueURL, m.ReceiptHandle); err != nil {
		log.Warn().Err(err).Msg("queue delete failed, message will redeliver")
	}
}

func (c *Controller) sleep(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(c.opts.IdleSleep):
	}
}
