package device

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/gousb"
)

// USBBus talks to printers through libusb.
type USBBus struct {
	ctx          *gousb.Context
	writeTimeout time.Duration
}

func NewUSBBus(writeTimeout time.Duration) *USBBus {
	return &USBBus{ctx: gousb.NewContext(), writeTimeout: writeTimeout}
}

func (b *USBBus) Close() error {
	return b.ctx.Close()
}

// Devices lists attached vendor/product ids without opening anything.
func (b *USBBus) Devices() ([]DeviceID, error) {
	var ids []DeviceID
	_, err := b.ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		ids = append(ids, DeviceID{Vendor: uint16(desc.Vendor), Product: uint16(desc.Product)})
		return false
	})
	if err != nil {
		return ids, classifyUSB(err)
	}
	return ids, nil
}

func (b *USBBus) Open(id DeviceID) (Link, error) {
	dev, err := b.ctx.OpenDeviceWithVIDPID(gousb.ID(id.Vendor), gousb.ID(id.Product))
	if err != nil {
		if dev != nil {
			dev.Close()
		}
		return nil, classifyUSB(err)
	}
	if dev == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	// The kernel usblp driver usually owns the interface.
	if err := dev.SetAutoDetach(true); err != nil {
		dev.Close()
		return nil, classifyUSB(err)
	}

	intf, done, err := dev.DefaultInterface()
	if err != nil {
		dev.Close()
		return nil, classifyUSB(err)
	}

	epNum := -1
	for _, ep := range intf.Setting.Endpoints {
		if ep.Direction == gousb.EndpointDirectionOut && ep.TransferType == gousb.TransferTypeBulk {
			epNum = ep.Number
			break
		}
	}
	if epNum < 0 {
		done()
		dev.Close()
		return nil, fmt.Errorf("%w: %s has no bulk OUT endpoint", ErrNotFound, id)
	}
	out, err := intf.OutEndpoint(epNum)
	if err != nil {
		done()
		dev.Close()
		return nil, classifyUSB(err)
	}

	return &usbLink{dev: dev, done: done, out: out, timeout: b.writeTimeout}, nil
}

type usbLink struct {
	dev     *gousb.Device
	done    func()
	out     *gousb.OutEndpoint
	timeout time.Duration

	closeOnce sync.Once
}

func (l *usbLink) Write(ctx context.Context, p []byte) (int, error) {
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}
	n, err := l.out.WriteContext(ctx, p)
	if err != nil {
		return n, classifyUSB(err)
	}
	return n, nil
}

func (l *usbLink) Close() error {
	var err error
	l.closeOnce.Do(func() {
		l.done()
		err = l.dev.Close()
	})
	return err
}

// classifyUSB maps libusb failures onto the package sentinels.
func classifyUSB(err error) error {
	var usbErr gousb.Error
	if errors.As(err, &usbErr) {
		switch usbErr {
		case gousb.ErrorAccess:
			return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
		case gousb.ErrorNotFound:
			return fmt.Errorf("%w: %v", ErrNotFound, err)
		case gousb.ErrorNoDevice, gousb.ErrorIO, gousb.ErrorPipe:
			return fmt.Errorf("%w: %v", ErrDisconnected, err)
		}
		return err
	}
	var status gousb.TransferStatus
	if errors.As(err, &status) {
		switch status {
		case gousb.TransferNoDevice, gousb.TransferError, gousb.TransferStall:
			return fmt.Errorf("%w: %v", ErrDisconnected, err)
		}
	}
	return err
}
