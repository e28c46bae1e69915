// Package telegram implements transport.Transport on the Telegram Bot
// API via telebot.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	"github.com/hexfoundry/herald/internal/transport"
)

// Telegram allows roughly 30 messages per second bot-wide; we pace a
// little under that so command replies still get through while a
// broadcast batch is draining.
const (
	defaultSendRate  = 25
	defaultSendBurst = 5
)

// Options configures the adapter.
type Options struct {
	// Token is the bot token from BotFather.
	Token string
	// PollTimeout is the long-poll timeout; zero means 10s.
	PollTimeout time.Duration
	// SendTimeout bounds each individual Send; zero means no bound
	// beyond the caller's context.
	SendTimeout time.Duration
	// Offline skips the getMe verification call, for tests.
	Offline bool
}

// Adapter sends messages through a telebot bot and classifies Telegram
// API failures for the delivery engine.
type Adapter struct {
	bot         *tele.Bot
	limiter     *rate.Limiter
	sendTimeout time.Duration
}

// New connects to the Telegram Bot API and returns an Adapter.
func New(opts Options) (*Adapter, error) {
	if opts.Token == "" {
		return nil, fmt.Errorf("telegram: token is required")
	}
	pollTimeout := opts.PollTimeout
	if pollTimeout <= 0 {
		pollTimeout = 10 * time.Second
	}
	bot, err := tele.NewBot(tele.Settings{
		Token:   opts.Token,
		Poller:  &tele.LongPoller{Timeout: pollTimeout},
		Offline: opts.Offline,
	})
	if err != nil {
		return nil, fmt.Errorf("telegram: connect: %w", err)
	}
	return Wrap(bot, opts.SendTimeout), nil
}

// Wrap builds an Adapter around an existing bot, sharing its session.
// The bot command surface and the delivery engine use the same bot this
// way, so pacing applies to both.
func Wrap(bot *tele.Bot, sendTimeout time.Duration) *Adapter {
	return &Adapter{
		bot:         bot,
		limiter:     rate.NewLimiter(rate.Limit(defaultSendRate), defaultSendBurst),
		sendTimeout: sendTimeout,
	}
}

// Bot exposes the underlying telebot bot for handler registration.
func (a *Adapter) Bot() *tele.Bot { return a.bot }

// Send implements transport.Transport.
func (a *Adapter) Send(ctx context.Context, chatID int64, text string) error {
	if a.sendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.sendTimeout)
		defer cancel()
	}
	if err := a.limiter.Wait(ctx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := a.bot.Send(&tele.Chat{ID: chatID}, text); err != nil {
		return classify(err)
	}
	return nil
}

// Close stops the bot's poller.
func (a *Adapter) Close() error {
	a.bot.Stop()
	return nil
}

func classify(err error) error {
	var flood tele.FloodError
	if errors.As(err, &flood) {
		return transport.Failf(transport.FailureRateLimited,
			fmt.Errorf("flood limit, retry after %ds: %w", flood.RetryAfter, err))
	}
	var api *tele.Error
	if errors.As(err, &api) && api.Code == http.StatusTooManyRequests {
		return transport.Failf(transport.FailureRateLimited, err)
	}
	switch {
	case errors.Is(err, tele.ErrChatNotFound),
		errors.Is(err, tele.ErrUserIsDeactivated):
		return transport.Failf(transport.FailureNotFound, err)
	case errors.Is(err, tele.ErrBlockedByUser),
		errors.Is(err, tele.ErrNotStartedByUser),
		errors.Is(err, tele.ErrKickedFromGroup),
		errors.Is(err, tele.ErrNoRightsToSend):
		return transport.Failf(transport.FailureForbidden, err)
	}
	return transport.Failf(transport.FailureUnknown, err)
}
