package telegram

import (
	"errors"
	"fmt"
	"testing"

	tele "gopkg.in/telebot.v4"

	"github.com/hexfoundry/herald/internal/transport"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want transport.FailureKind
	}{
		{"chat not found", tele.ErrChatNotFound, transport.FailureNotFound},
		{"deactivated user", tele.ErrUserIsDeactivated, transport.FailureNotFound},
		{"blocked", tele.ErrBlockedByUser, transport.FailureForbidden},
		{"never started", tele.ErrNotStartedByUser, transport.FailureForbidden},
		{"kicked", tele.ErrKickedFromGroup, transport.FailureForbidden},
		{"no send rights", tele.ErrNoRightsToSend, transport.FailureForbidden},
		{"too many requests", tele.NewError(429, "Too Many Requests"), transport.FailureRateLimited},
		{"wrapped too many requests", fmt.Errorf("send: %w", tele.NewError(429, "Too Many Requests: retry after 30")), transport.FailureRateLimited},
		{"anything else", errors.New("connection reset"), transport.FailureUnknown},
	}
	for _, c := range cases {
		got := transport.Classify(classify(c.err))
		if got != c.want {
			t.Errorf("%s: classified as %v, want %v", c.name, got, c.want)
		}
	}
}

func TestClassify_KeepsPlatformError(t *testing.T) {
	err := classify(tele.ErrBlockedByUser)
	if !errors.Is(err, tele.ErrBlockedByUser) {
		t.Error("classified error should still unwrap to the telebot error")
	}
}

func TestNew_RequiresToken(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Fatal("expected error for missing token")
	}
}

func TestWrap_SharesBot(t *testing.T) {
	bot, err := tele.NewBot(tele.Settings{Token: "test-token", Offline: true})
	if err != nil {
		t.Fatalf("offline bot: %v", err)
	}
	a := Wrap(bot, 0)
	if a.Bot() != bot {
		t.Error("Wrap should expose the same bot it was given")
	}
}
