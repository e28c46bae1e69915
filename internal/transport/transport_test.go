package transport

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want FailureKind
	}{
		{"nil-ish plain error", errors.New("boom"), FailureUnknown},
		{"not found", Failf(FailureNotFound, errors.New("chat not found")), FailureNotFound},
		{"forbidden", Failf(FailureForbidden, errors.New("blocked")), FailureForbidden},
		{"rate limited", Failf(FailureRateLimited, errors.New("retry after 30")), FailureRateLimited},
		{"wrapped", fmt.Errorf("send: %w", Failf(FailureForbidden, errors.New("blocked"))), FailureForbidden},
	}
	for _, c := range cases {
		if got := Classify(c.err); got != c.want {
			t.Errorf("%s: Classify = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestDescribe(t *testing.T) {
	if got := Describe(nil); got != "" {
		t.Errorf("Describe(nil) = %q, want empty", got)
	}
	got := Describe(Failf(FailureNotFound, errors.New("chat not found")))
	if !strings.Contains(got, "not_found") || !strings.Contains(got, "chat not found") {
		t.Errorf("Describe = %q, want kind and detail", got)
	}
	if got := Describe(errors.New("boom")); got != "boom" {
		t.Errorf("Describe(plain) = %q, want %q", got, "boom")
	}
}

func TestFailureUnwrap(t *testing.T) {
	inner := errors.New("blocked")
	f := Failf(FailureForbidden, inner)
	if !errors.Is(f, inner) {
		t.Error("Failure should unwrap to the platform error")
	}
}

func TestMock_RecordAndFail(t *testing.T) {
	m := NewMock()
	ctx := context.Background()

	if err := m.Send(ctx, 100, "hello"); err != nil {
		t.Fatalf("send: %v", err)
	}
	m.FailChat(200, Failf(FailureForbidden, errors.New("blocked")))
	if err := m.Send(ctx, 200, "nope"); Classify(err) != FailureForbidden {
		t.Errorf("scripted failure: got %v", err)
	}

	sent := m.Sent()
	if len(sent) != 1 || sent[0].ChatID != 100 || sent[0].Text != "hello" {
		t.Errorf("sent = %v, want single delivery to 100", sent)
	}
	if got := m.SentTo(200); len(got) != 0 {
		t.Errorf("failed chat should record nothing, got %v", got)
	}

	m.HealChat(200)
	if err := m.Send(ctx, 200, "ok now"); err != nil {
		t.Errorf("send after heal: %v", err)
	}
}

func TestMock_ContextCancelled(t *testing.T) {
	m := NewMock()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := m.Send(ctx, 1, "x"); err == nil {
		t.Error("send with cancelled context should fail")
	}
	if len(m.Sent()) != 0 {
		t.Error("cancelled send must not be recorded")
	}
}
