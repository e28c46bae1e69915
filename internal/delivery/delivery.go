// Package delivery runs the broadcast pipeline: it polls the database
// for due messages and pushes them out through a transport.
package delivery

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/hexfoundry/herald/internal/message"
	"github.com/hexfoundry/herald/internal/models"
	"github.com/hexfoundry/herald/internal/transport"
)

// DefaultPollInterval is how often the engine checks for due messages.
const DefaultPollInterval = 60 * time.Second

// Report summarizes one poll cycle.
type Report struct {
	Attempted int
	Sent      int
	Failed    int
}

// Engine drains due messages to a transport. Messages go to the
// configured broadcast chat when one is set, otherwise back to the
// author's own chat.
type Engine struct {
	db        *gorm.DB
	transport transport.Transport
	now       func() time.Time
	interval  time.Duration
	batch     int
	log       zerolog.Logger

	// broadcastChat is swapped atomically on config reload.
	broadcastChat atomic.Int64

	// inflight guards against overlapping poll cycles when a cycle
	// outlasts the interval.
	inflight atomic.Bool
}

// EngineOpts holds parameters for creating an Engine.
type EngineOpts struct {
	DB            *gorm.DB
	Transport     transport.Transport
	BroadcastChat int64          // 0 means deliver to each author's chat
	PollInterval  time.Duration  // defaults to DefaultPollInterval
	BatchLimit    int            // defaults to message.DefaultBatchLimit
	Now           func() time.Time
	Logger        zerolog.Logger
}

// NewEngine creates an Engine.
func NewEngine(opts EngineOpts) (*Engine, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("delivery: db is required")
	}
	if opts.Transport == nil {
		return nil, fmt.Errorf("delivery: transport is required")
	}
	interval := opts.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	e := &Engine{
		db:        opts.DB,
		transport: opts.Transport,
		now:       now,
		interval:  interval,
		batch:     opts.BatchLimit,
		log:       opts.Logger,
	}
	e.broadcastChat.Store(opts.BroadcastChat)
	return e, nil
}

// SetBroadcastChat changes the broadcast destination. Safe to call
// while Run is polling.
func (e *Engine) SetBroadcastChat(chatID int64) {
	e.broadcastChat.Store(chatID)
}

// PollOnce runs one delivery cycle: every due message is attempted
// exactly once. A failed send marks that message failed and moves on;
// one bad destination never blocks the rest of the batch.
func (e *Engine) PollOnce(ctx context.Context) (Report, error) {
	var rep Report
	due, err := message.Due(e.db, e.now(), e.batch)
	if err != nil {
		return rep, err
	}
	for i := range due {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		msg := &due[i]
		rep.Attempted++
		if err := e.deliver(ctx, msg); err != nil {
			rep.Failed++
			e.log.Warn().Uint("message_id", msg.ID).Err(err).
				Str("kind", transport.Classify(err).String()).
				Msg("delivery failed")
			if mErr := message.MarkFailed(e.db, msg.ID, transport.Describe(err)); mErr != nil {
				e.log.Error().Uint("message_id", msg.ID).Err(mErr).Msg("record failure")
			}
			continue
		}
		rep.Sent++
		if mErr := message.MarkSent(e.db, msg.ID); mErr != nil {
			e.log.Error().Uint("message_id", msg.ID).Err(mErr).Msg("record delivery")
		}
	}
	return rep, nil
}

func (e *Engine) deliver(ctx context.Context, msg *models.BroadcastMessage) error {
	chatID, err := e.destination(msg)
	if err != nil {
		return err
	}
	return e.transport.Send(ctx, chatID, renderBody(msg))
}

// destination picks the chat for a message: the broadcast chat when
// configured, otherwise the author's linked chat.
func (e *Engine) destination(msg *models.BroadcastMessage) (int64, error) {
	if chat := e.broadcastChat.Load(); chat != 0 {
		return chat, nil
	}
	sender, err := e.senderOf(msg)
	if err != nil {
		return 0, err
	}
	raw := sender.Channel()
	if raw == "" {
		return 0, fmt.Errorf("invalid destination: sender %d has no linked chat", msg.SenderID)
	}
	chatID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid destination: chat id %q: %w", raw, err)
	}
	return chatID, nil
}

func (e *Engine) senderOf(msg *models.BroadcastMessage) (*models.Account, error) {
	if msg.Sender != nil {
		return msg.Sender, nil
	}
	var acct models.Account
	res := e.db.Where("id = ?", msg.SenderID).Limit(1).Find(&acct)
	if res.Error != nil {
		return nil, fmt.Errorf("invalid destination: load sender: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("invalid destination: sender %d not found", msg.SenderID)
	}
	return &acct, nil
}

func renderBody(msg *models.BroadcastMessage) string {
	if msg.Title != "" {
		return msg.Title + "\n\n" + msg.Body
	}
	return msg.Body
}

// RetryAll retries every failed message and returns how many were reset.
func (e *Engine) RetryAll() (int, error) {
	return message.RetryAll(e.db, e.now())
}

// Run polls on the configured interval until the context is cancelled.
// The first cycle fires immediately so startup does not wait a full
// interval for backlogged messages.
func (e *Engine) Run(ctx context.Context) {
	e.safePoll(ctx)
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.safePoll(ctx)
		}
	}
}

// safePoll runs one cycle unless the previous one is still in flight.
func (e *Engine) safePoll(ctx context.Context) {
	if !e.inflight.CompareAndSwap(false, true) {
		e.log.Warn().Msg("poll cycle still running, skipping tick")
		return
	}
	defer e.inflight.Store(false)

	rep, err := e.PollOnce(ctx)
	if err != nil {
		if ctx.Err() == nil {
			e.log.Error().Err(err).Msg("poll cycle")
		}
		return
	}
	if rep.Attempted > 0 {
		e.log.Info().Int("attempted", rep.Attempted).Int("sent", rep.Sent).
			Int("failed", rep.Failed).Msg("poll cycle complete")
	}
}
