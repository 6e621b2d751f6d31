package delivery

import (
	"errors"
	"log/slog"
	"os"
	"sync"
	"time"
)

// Cleaner removes delivery artifacts after a delay, leaving viewers time to read them.
type Cleaner struct {
	delay  time.Duration
	logger *slog.Logger

	mu     sync.Mutex
	timers map[string]*time.Timer
}

func NewCleaner(delay time.Duration, logger *slog.Logger) *Cleaner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cleaner{delay: delay, logger: logger, timers: map[string]*time.Timer{}}
}

func (c *Cleaner) Schedule(paths ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range paths {
		if _, ok := c.timers[p]; ok {
			continue
		}
		c.timers[p] = time.AfterFunc(c.delay, func() { c.remove(p) })
	}
}

// Pending reports how many files are waiting for removal.
func (c *Cleaner) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

// Flush removes every scheduled file now.
func (c *Cleaner) Flush() {
	c.mu.Lock()
	paths := make([]string, 0, len(c.timers))
	for p, t := range c.timers {
		t.Stop()
		paths = append(paths, p)
	}
	c.mu.Unlock()
	for _, p := range paths {
		c.remove(p)
	}
}

func (c *Cleaner) remove(p string) {
	c.mu.Lock()
	delete(c.timers, p)
	c.mu.Unlock()
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		c.logger.Warn("failed to delete tmp file", "path", p, "err", err)
	}
}
