package signalhandler

import (
	"os"
	"syscall"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestGraceReleaseRoundTrip(t *testing.T) {
	h := New(zap.NewNop())
	tok := h.Grace()
	if tok.IsInterrupted() {
		t.Errorf("fresh token reports interrupted")
	}
	tok.Release()
}

func TestSecondGraceTokenPanics(t *testing.T) {
	h := New(zap.NewNop())
	tok := h.Grace()
	defer tok.Release()

	defer func() {
		if r := recover(); r == nil {
			t.Errorf("acquiring a second grace token did not panic")
		}
	}()
	h.Grace()
}

func TestGraceReusableAfterRelease(t *testing.T) {
	h := New(zap.NewNop())
	h.Grace().Release()
	// Should not panic: the first token was released before this one.
	h.Grace().Release()
}

func TestSignalDuringGraceSetsInterrupt(t *testing.T) {
	if os.Getenv("CI_NO_SIGNALS") != "" {
		t.Skip("signal delivery disabled in this environment")
	}

	h := New(zap.NewNop())
	tok := h.Grace()
	defer tok.Release()

	if err := syscall.Kill(os.Getpid(), syscall.SIGINT); err != nil {
		t.Fatalf("Kill: %v", err)
	}

	deadline := time.After(time.Second)
	for {
		if tok.IsInterrupted() {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("interrupt flag not set within 1s of SIGINT")
		case <-time.After(5 * time.Millisecond):
		}
	}
}
