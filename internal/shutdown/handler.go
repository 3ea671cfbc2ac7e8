package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// ExitInterrupted is the status used when a second signal forces the exit.
const ExitInterrupted = 130

// Handler manages graceful shutdown
type Handler struct {
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	cleanupFns []func()
	mu         sync.Mutex
	once       sync.Once

	// exit is os.Exit outside tests
	exit func(code int)
}

// New creates a new shutdown handler
func New() *Handler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Handler{
		ctx:    ctx,
		cancel: cancel,
		exit:   os.Exit,
	}
}

// Context returns the shutdown context
func (h *Handler) Context() context.Context {
	return h.ctx
}

// AddCleanup registers a cleanup function to be called on shutdown.
// Cleanups run in reverse registration order.
func (h *Handler) AddCleanup(fn func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cleanupFns = append(h.cleanupFns, fn)
}

// Listen starts listening for shutdown signals. The first signal starts a
// graceful shutdown (captures in flight are still finalized); the second one
// exits immediately.
func (h *Handler) Listen() {
	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	h.watch(sigChan)
}

func (h *Handler) watch(sigChan <-chan os.Signal) {
	go func() {
		<-sigChan
		go h.Shutdown()
		<-sigChan
		h.exit(ExitInterrupted)
	}()
}

// Shutdown cancels the context and runs the cleanup functions once.
func (h *Handler) Shutdown() {
	h.once.Do(func() {
		h.cancel()

		h.mu.Lock()
		fns := make([]func(), len(h.cleanupFns))
		copy(fns, h.cleanupFns)
		h.mu.Unlock()

		for i := len(fns) - 1; i >= 0; i-- {
			fns[i]()
		}
	})
}

// Go runs fn in a goroutine tracked by Wait.
func (h *Handler) Go(fn func(ctx context.Context)) {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		fn(h.ctx)
	}()
}

// Wait waits for all work started with Go to complete
func (h *Handler) Wait() {
	h.wg.Wait()
}
