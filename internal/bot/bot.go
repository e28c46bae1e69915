// Package bot is the Telegram command surface: onboarding, admin
// account management, and delivery controls, all replying in plain
// text. Handlers are small methods on Router so they can be tested
// without a live Telegram session; Attach wires them to telebot.
package bot

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/hexfoundry/herald/internal/account"
	"github.com/hexfoundry/herald/internal/delivery"
	"github.com/hexfoundry/herald/internal/fault"
	"github.com/hexfoundry/herald/internal/message"
	"github.com/hexfoundry/herald/internal/timezone"
)

const redeemFailedReply = "That code is invalid or has already been used."

const notAdminReply = "Sorry, that command is for admins."

// Router holds everything the command handlers need.
type Router struct {
	db      *gorm.DB
	engine  *delivery.Engine
	limiter *Limiter
	zones   *timezone.ZoneCache
	tzName  string
	now     func() time.Time
	log     zerolog.Logger
}

// RouterOpts holds parameters for creating a Router.
type RouterOpts struct {
	DB       *gorm.DB
	Engine   *delivery.Engine
	Limiter  *Limiter // defaults to NewLimiter(0, 0, 0)
	Zones    *timezone.ZoneCache
	Timezone string // display timezone name, "" means local
	Now      func() time.Time
	Logger   zerolog.Logger
}

// NewRouter creates a Router.
func NewRouter(opts RouterOpts) (*Router, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("bot: db is required")
	}
	if opts.Engine == nil {
		return nil, fmt.Errorf("bot: delivery engine is required")
	}
	lim := opts.Limiter
	if lim == nil {
		lim = NewLimiter(0, 0, 0)
	}
	zones := opts.Zones
	if zones == nil {
		zones = timezone.NewZoneCache(0)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Router{
		db:      opts.DB,
		engine:  opts.Engine,
		limiter: lim,
		zones:   zones,
		tzName:  opts.Timezone,
		now:     now,
		log:     opts.Logger,
	}, nil
}

// Allow applies the per-identity rate limit. Over-limit traffic is
// dropped without a reply so a flood cannot make the bot amplify it.
func (r *Router) Allow(channelID string) bool {
	if r.limiter.Allow(channelID) {
		return true
	}
	r.log.Debug().Str("channel", channelID).Msg("rate limited")
	return false
}

// Start handles /start: self-registration, idempotent.
func (r *Router) Start(channelID string, p account.Profile) string {
	acct, err := account.RegisterSelf(r.db, channelID, p)
	if err != nil {
		r.log.Error().Str("channel", channelID).Err(err).Msg("register")
		return fault.UserMessage(err)
	}
	reply := fmt.Sprintf("Hello, %s! You're registered for broadcasts.", acct.DisplayName())
	if acct.IsAdmin {
		reply += "\nAdmin commands: /adduser /pending /promote /demote /retryall /stats /time"
	}
	return reply
}

// Text handles free-form text. Only passcode-shaped input does
// anything; everything else is ignored so group chatter never draws a
// reply.
func (r *Router) Text(channelID string, p account.Profile, text string) string {
	code := strings.TrimSpace(text)
	if !looksLikePasscode(code) {
		return ""
	}
	acct, err := account.Redeem(r.db, channelID, code, p)
	if err != nil {
		if fault.IsConflict(err) {
			return fault.UserMessage(err)
		}
		// Unknown, used, and never-existed codes all read the same.
		return redeemFailedReply
	}
	return fmt.Sprintf("Code accepted. Welcome, %s!", acct.DisplayName())
}

// AddUser handles /adduser <phone> <first> [last...]: creates a pending
// account and hands the passcode back for out-of-band delivery.
func (r *Router) AddUser(channelID, args string) string {
	if reply := r.requireAdmin(channelID); reply != "" {
		return reply
	}
	fields := strings.Fields(args)
	if len(fields) < 2 {
		return "Usage: /adduser <phone> <first name> [last name]"
	}
	opts := account.CreatePendingOpts{
		Phone:     fields[0],
		FirstName: fields[1],
	}
	if len(fields) > 2 {
		opts.LastName = strings.Join(fields[2:], " ")
	}
	acct, code, err := account.CreatePending(r.db, opts)
	if err != nil {
		return fault.UserMessage(err)
	}
	return fmt.Sprintf("Pending account for %s created.\nPasscode: %s\nHand it over privately; it works once.",
		acct.DisplayName(), code)
}

// Pending handles /pending: lists accounts waiting on their code.
func (r *Router) Pending(channelID string) string {
	if reply := r.requireAdmin(channelID); reply != "" {
		return reply
	}
	accts, err := account.ListPending(r.db)
	if err != nil {
		return fault.UserMessage(err)
	}
	if len(accts) == 0 {
		return "No pending accounts."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d pending account(s):\n", len(accts))
	for _, a := range accts {
		fmt.Fprintf(&b, "- #%d %s (%s)\n", a.ID, a.DisplayName(), a.PhoneNumber())
	}
	return strings.TrimRight(b.String(), "\n")
}

// Promote handles /promote <chat id>.
func (r *Router) Promote(channelID, target string) string {
	return r.setAdmin(channelID, target, true)
}

// Demote handles /demote <chat id>.
func (r *Router) Demote(channelID, target string) string {
	return r.setAdmin(channelID, target, false)
}

func (r *Router) setAdmin(channelID, target string, isAdmin bool) string {
	if reply := r.requireAdmin(channelID); reply != "" {
		return reply
	}
	target = strings.TrimSpace(target)
	if target == "" {
		if isAdmin {
			return "Usage: /promote <chat id>"
		}
		return "Usage: /demote <chat id>"
	}
	var err error
	if isAdmin {
		err = account.Promote(r.db, target)
	} else {
		err = account.Demote(r.db, target)
	}
	if err != nil {
		return fault.UserMessage(err)
	}
	if isAdmin {
		return fmt.Sprintf("Chat %s is now an admin.", target)
	}
	return fmt.Sprintf("Chat %s is no longer an admin.", target)
}

// RetryAll handles /retryall: queues every failed broadcast again.
func (r *Router) RetryAll(channelID string) string {
	if reply := r.requireAdmin(channelID); reply != "" {
		return reply
	}
	n, err := r.engine.RetryAll()
	if err != nil {
		return fault.UserMessage(err)
	}
	if n == 0 {
		return "No failed messages to retry."
	}
	return fmt.Sprintf("Queued %d message(s) for retry; they go out on the next cycle.", n)
}

// Stats handles /stats.
func (r *Router) Stats(channelID string) string {
	if reply := r.requireAdmin(channelID); reply != "" {
		return reply
	}
	loc, err := r.zones.Get(r.tzName)
	if err != nil {
		loc = time.Local
	}
	s, err := message.ComputeStats(r.db, r.now(), loc)
	if err != nil {
		return fault.UserMessage(err)
	}
	return s.Summary()
}

// Time handles /time: shows the server's display timezone and clock.
func (r *Router) Time(channelID string) string {
	loc, err := r.zones.Get(r.tzName)
	if err != nil {
		return fmt.Sprintf("Timezone %q is not loadable on this server.", r.tzName)
	}
	info := timezone.NowInfo(loc, r.now())
	return fmt.Sprintf("Server time: %s (%s, %s)\nUTC: %s", info.Local, info.Zone, info.Offset, info.UTC)
}

// requireAdmin returns a non-empty denial reply unless channelID maps
// to an active admin account. Unknown chats get the same denial as
// registered non-admins.
func (r *Router) requireAdmin(channelID string) string {
	acct, err := account.ByChannel(r.db, channelID)
	if err != nil {
		if fault.IsNotFound(err) {
			return notAdminReply
		}
		return fault.UserMessage(err)
	}
	if !acct.IsAdmin || !acct.IsActive {
		return notAdminReply
	}
	return ""
}

// looksLikePasscode reports whether s has the exact shape of a
// generated code. Uppercasing first keeps redemption case-insensitive.
func looksLikePasscode(s string) bool {
	if len(s) != account.PasscodeLength {
		return false
	}
	s = strings.ToUpper(s)
	for _, c := range s {
		if !strings.ContainsRune(account.PasscodeAlphabet, c) {
			return false
		}
	}
	return true
}
