package bot

import (
	"strconv"

	tele "gopkg.in/telebot.v4"

	"github.com/hexfoundry/herald/internal/account"
)

// Attach registers the Router's handlers on a telebot bot. Replies go
// back through the same session the update arrived on.
func (r *Router) Attach(b *tele.Bot) {
	reply := func(c tele.Context, text string) error {
		if text == "" {
			return nil
		}
		return c.Send(text)
	}
	guard := func(h func(c tele.Context) string) tele.HandlerFunc {
		return func(c tele.Context) error {
			if c.Chat() == nil {
				return nil
			}
			if !r.Allow(chatKey(c)) {
				return nil
			}
			return reply(c, h(c))
		}
	}

	b.Handle("/start", guard(func(c tele.Context) string {
		return r.Start(chatKey(c), senderProfile(c))
	}))
	b.Handle(tele.OnText, guard(func(c tele.Context) string {
		return r.Text(chatKey(c), senderProfile(c), c.Text())
	}))
	b.Handle("/adduser", guard(func(c tele.Context) string {
		return r.AddUser(chatKey(c), c.Message().Payload)
	}))
	b.Handle("/pending", guard(func(c tele.Context) string {
		return r.Pending(chatKey(c))
	}))
	b.Handle("/promote", guard(func(c tele.Context) string {
		return r.Promote(chatKey(c), c.Message().Payload)
	}))
	b.Handle("/demote", guard(func(c tele.Context) string {
		return r.Demote(chatKey(c), c.Message().Payload)
	}))
	b.Handle("/retryall", guard(func(c tele.Context) string {
		return r.RetryAll(chatKey(c))
	}))
	b.Handle("/stats", guard(func(c tele.Context) string {
		return r.Stats(chatKey(c))
	}))
	b.Handle("/time", guard(func(c tele.Context) string {
		return r.Time(chatKey(c))
	}))
}

func chatKey(c tele.Context) string {
	return strconv.FormatInt(c.Chat().ID, 10)
}

func senderProfile(c tele.Context) account.Profile {
	s := c.Sender()
	if s == nil {
		return account.Profile{}
	}
	return account.Profile{
		FirstName: s.FirstName,
		LastName:  s.LastName,
		Username:  s.Username,
	}
}
