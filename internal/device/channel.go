package device

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Link is an open bulk-out pipe to a printer.
type Link interface {
	Write(ctx context.Context, p []byte) (int, error)
	Close() error
}

// Bus enumerates attached devices and opens links to them.
type Bus interface {
	Devices() ([]DeviceID, error)
	Open(id DeviceID) (Link, error)
}

// Handle is an open connection to one printer. It becomes permanently invalid
// after Disconnect or after the device disappears during a send.
type Handle struct {
	ID    DeviceID
	Model string

	mu      sync.Mutex
	link    Link
	invalid atomic.Bool
}

func (h *Handle) String() string {
	if h.Model != "" {
		return fmt.Sprintf("%s (%s)", h.Model, h.ID)
	}
	return h.ID.String()
}

// Channel connects to thermal printers on a Bus and writes command streams to them.
type Channel struct {
	bus    Bus
	logger *slog.Logger
}

func NewChannel(bus Bus, logger *slog.Logger) *Channel {
	if logger == nil {
		logger = slog.Default()
	}
	return &Channel{bus: bus, logger: logger}
}

// Connect opens the printer identified by vendor/product. With autoDetect the
// known-printer table is scanned when the target is zero or not attached.
func (c *Channel) Connect(vendorID, productID uint16, autoDetect bool) (*Handle, error) {
	target := DeviceID{Vendor: vendorID, Product: productID}

	if !target.IsZero() {
		h, err := c.open(target)
		if err == nil || !autoDetect || !errors.Is(err, ErrNotFound) {
			return h, err
		}
		c.logger.Warn("configured printer not attached, auto-detecting", "target", target)
	}
	if !autoDetect {
		return nil, fmt.Errorf("%w: no target configured", ErrNotFound)
	}

	attached, err := c.bus.Devices()
	if err != nil {
		return nil, fmt.Errorf("%w: enumerate: %v", ErrNotFound, err)
	}
	present := make(map[DeviceID]bool, len(attached))
	for _, id := range attached {
		present[id] = true
	}
	for _, known := range KnownPrinters {
		if present[known.ID] {
			return c.open(known.ID)
		}
	}
	return nil, fmt.Errorf("%w: no known printer attached", ErrNotFound)
}

func (c *Channel) open(id DeviceID) (*Handle, error) {
	link, err := c.bus.Open(id)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound), errors.Is(err, ErrPermissionDenied):
			return nil, err
		default:
			return nil, fmt.Errorf("%w: open %s: %v", ErrNotFound, id, err)
		}
	}
	h := &Handle{ID: id, link: link}
	if known, ok := Lookup(id); ok {
		h.Model = known.Family + " " + known.Model
	}
	c.logger.Info("printer connected", "device", h.String())
	return h, nil
}

// Send writes data synchronously. A rejected or short write surfaces as
// *LinkError; a disconnect during the write also invalidates the handle.
func (c *Channel) Send(ctx context.Context, h *Handle, data []byte) error {
	if h == nil || h.invalid.Load() {
		return ErrHandleInvalid
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.invalid.Load() {
		return ErrHandleInvalid
	}

	n, err := h.link.Write(ctx, data)
	if err != nil {
		if errors.Is(err, ErrDisconnected) {
			h.invalidate()
			c.logger.Warn("printer disconnected during send", "device", h.String(), "err", err)
		}
		return &LinkError{Op: "write", Err: err}
	}
	if n != len(data) {
		return &LinkError{Op: "write", Err: fmt.Errorf("short write %d of %d bytes", n, len(data))}
	}
	return nil
}

func (c *Channel) Disconnect(h *Handle) {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.invalidate()
}

func (c *Channel) IsAlive(h *Handle) bool {
	return h != nil && !h.invalid.Load()
}

// invalidate must be called with h.mu held.
func (h *Handle) invalidate() {
	if h.invalid.Swap(true) {
		return
	}
	_ = h.link.Close()
}
