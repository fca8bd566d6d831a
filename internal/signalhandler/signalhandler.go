// Package signalhandler implements the graceful-vs-hard interrupt pattern
// described in §4.I: a single outstanding grace token lets the crawl loop
// finish its current iteration on ctrl-c instead of being killed mid-fetch.
package signalhandler

import (
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"go.uber.org/zap"
)

// Handler owns the two shared flags from §4.I: graceful and interrupt.
type Handler struct {
	graceful  atomic.Bool
	interrupt atomic.Bool
	graceHeld atomic.Bool
	logger    *zap.Logger
}

// New constructs a Handler and wires SIGINT/SIGTERM.
func New(logger *zap.Logger) *Handler {
	h := &Handler{logger: logger}
	h.register()
	return h
}

// register wires an OS interrupt to the callback described in §4.I: if a
// grace token is held, set interrupt and return; otherwise terminate the
// process with status 1.
func (h *Handler) register() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)

	go func() {
		for range ch {
			if h.graceful.Load() {
				h.logger.Info("interrupt received, finishing current iteration")
				h.interrupt.Store(true)
				continue
			}
			h.logger.Error("interrupt received outside a grace window, terminating")
			os.Exit(1)
		}
	}()
}

// Token is a scoped grace handle. Only one may exist at a time; acquiring a
// second before the first is released panics.
type Token struct {
	h *Handler
}

// Grace sets graceful and hands back a scoped token. The caller must call
// Release (typically via defer) when the protected section ends.
func (h *Handler) Grace() *Token {
	if !h.graceHeld.CompareAndSwap(false, true) {
		panic("signalhandler: a grace token is already held")
	}
	h.graceful.Store(true)
	return &Token{h: h}
}

// IsInterrupted reports whether an interrupt arrived while this token was
// held.
func (t *Token) IsInterrupted() bool {
	return t.h.interrupt.Load()
}

// Release clears graceful, freeing the token for reacquisition.
func (t *Token) Release() {
	t.h.graceful.Store(false)
	t.h.graceHeld.Store(false)
}
