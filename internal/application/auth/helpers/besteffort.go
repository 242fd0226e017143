package helpers

import (
	"context"
	"sync"

	"github.com/pmaschool/authcore/internal/shared/goroutine"
	"github.com/pmaschool/authcore/internal/shared/logger"
)

// Hook is one optional side effect of a successful flow.
type Hook struct {
	Name string
	Run  func(ctx context.Context) error
}

// RunBestEffort runs hooks concurrently and waits for all of them. A failing
// or panicking hook is logged and never affects the others.
func RunBestEffort(ctx context.Context, log logger.Interface, hooks ...Hook) {
	var wg sync.WaitGroup
	for _, h := range hooks {
		if h.Run == nil {
			continue
		}
		h := h
		wg.Add(1)
		goroutine.SafeGo(log, h.Name, func() {
			defer wg.Done()
			if err := h.Run(ctx); err != nil {
				log.Warnw("best-effort step failed", "step", h.Name, "error", err)
			}
		})
	}
	wg.Wait()
}
