package device

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// Session owns the current handle for one configured printer. It is the only
// holder of the handle; the dispatcher goes through it for every send.
type Session struct {
	ch         *Channel
	target     DeviceID
	autoDetect bool
	logger     *slog.Logger

	mu     sync.Mutex
	handle *Handle
}

func NewSession(ch *Channel, vendorID, productID uint16, autoDetect bool, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		ch:         ch,
		target:     DeviceID{Vendor: vendorID, Product: productID},
		autoDetect: autoDetect,
		logger:     logger,
	}
}

// Open connects using the configured target and auto-detect flag.
func (s *Session) Open() error {
	h, err := s.ch.Connect(s.target.Vendor, s.target.Product, s.autoDetect)
	if err != nil {
		return err
	}
	s.swap(h)
	return nil
}

// Send writes to the current handle. With no handle it returns ErrHandleInvalid.
func (s *Session) Send(ctx context.Context, data []byte) error {
	s.mu.Lock()
	h := s.handle
	s.mu.Unlock()
	return s.ch.Send(ctx, h, data)
}

// Reconnect drops the current handle and opens a new one, falling back to
// auto-detection when the configured target is unreachable.
func (s *Session) Reconnect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.swap(nil)

	h, err := s.ch.Connect(s.target.Vendor, s.target.Product, s.autoDetect)
	if err != nil && errors.Is(err, ErrNotFound) && !s.autoDetect {
		s.logger.Warn("configured printer unreachable, trying auto-detect", "target", s.target)
		h, err = s.ch.Connect(0, 0, true)
	}
	if err != nil {
		return err
	}
	s.swap(h)
	return nil
}

// Alive reports whether the session holds a valid handle.
func (s *Session) Alive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ch.IsAlive(s.handle)
}

// Describe names the connected printer, or "" when disconnected.
func (s *Session) Describe() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ch.IsAlive(s.handle) {
		return ""
	}
	return s.handle.String()
}

func (s *Session) Close() {
	s.swap(nil)
}

func (s *Session) swap(h *Handle) {
	s.mu.Lock()
	old := s.handle
	s.handle = h
	s.mu.Unlock()
	if old != nil && old != h {
		s.ch.Disconnect(old)
	}
}
