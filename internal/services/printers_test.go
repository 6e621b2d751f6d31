package services

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Riboost-Studio/label-print-agent/internal/device"
	"github.com/Riboost-Studio/label-print-agent/internal/model"
)

type stubBus struct {
	ids []device.DeviceID
	err error
}

func (b stubBus) Devices() ([]device.DeviceID, error) { return b.ids, b.err }

func (b stubBus) Open(device.DeviceID) (device.Link, error) { return nil, device.ErrNotFound }

func TestBuildRegistration(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 30, 5, 0, time.UTC)

	reg := BuildRegistration(testPrinter, "sess-1", true, now)
	assert.Equal(t, "PRN-1", reg.PrinterID)
	assert.Equal(t, "thermal", reg.PrinterType)
	assert.Equal(t, "Dock 3", reg.Location)
	assert.Equal(t, "usb", reg.ConnectionType)
	assert.Equal(t, []string{"zpl", "thermal", "label"}, reg.Capabilities)
	assert.Equal(t, model.StatusOnline, reg.Status)
	assert.Equal(t, "2026-03-14 09:30:05", reg.Timestamp)

	p := testPrinter
	p.Capabilities = []string{"zpl"}
	reg = BuildRegistration(p, "", false, now)
	assert.Equal(t, []string{"zpl"}, reg.Capabilities)
	assert.Equal(t, model.StatusOffline, reg.Status)
}

func TestDiscoverPrinters(t *testing.T) {
	bus := stubBus{ids: []device.DeviceID{
		{Vendor: 0x1234, Product: 0x5678},
		{Vendor: 0x04F9, Product: 0x2028},
		{Vendor: 0x0A5F, Product: 0x0164},
	}}

	found, err := DiscoverPrinters(bus, false)
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "ZD410/ZD420", found[0].Model)
	assert.Equal(t, "Zebra", found[0].Family)
	assert.Equal(t, "QL-700", found[1].Model)

	found, err = DiscoverPrinters(bus, true)
	require.NoError(t, err)
	require.Len(t, found, 3)
	assert.False(t, found[2].Known)
	assert.Equal(t, "1234:5678", found[2].ID.String())
}

func TestDiscoverPrintersBusError(t *testing.T) {
	_, err := DiscoverPrinters(stubBus{err: errors.New("libusb unavailable")}, true)
	assert.Error(t, err)
}
