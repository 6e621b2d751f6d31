package services

import (
	"time"

	"github.com/Riboost-Studio/label-print-agent/internal/device"
	"github.com/Riboost-Studio/label-print-agent/internal/model"
)

// --- Registration ---

// BuildRegistration snapshots the printer identity for a register_printer event.
func BuildRegistration(p model.PrinterConfig, sessionID string, deviceAlive bool, now time.Time) model.PrinterRegistration {
	status := model.StatusOffline
	if deviceAlive {
		status = model.StatusOnline
	}
	caps := p.Capabilities
	if len(caps) == 0 {
		caps = []string{"zpl", "thermal", "label"}
	}
	return model.PrinterRegistration{
		PrinterID:      p.ID,
		PrinterName:    p.Name,
		PrinterType:    p.Type,
		Location:       p.Location,
		ConnectionType: "usb",
		Capabilities:   append([]string(nil), caps...),
		Status:         status,
		Timestamp:      now.Format(model.TimestampLayout),
		SessionID:      sessionID,
	}
}

// --- Discovery Logic ---

// DiscoveredPrinter is an attached USB device, matched against the known-printer table when possible.
type DiscoveredPrinter struct {
	ID     device.DeviceID
	Known  bool
	Family string
	Model  string
}

// DiscoverPrinters lists attached USB devices, known printers first in table order.
func DiscoverPrinters(bus device.Bus, includeUnknown bool) ([]DiscoveredPrinter, error) {
	attached, err := bus.Devices()
	if err != nil {
		return nil, err
	}
	present := make(map[device.DeviceID]bool, len(attached))
	for _, id := range attached {
		present[id] = true
	}

	var found []DiscoveredPrinter
	for _, k := range device.KnownPrinters {
		if present[k.ID] {
			found = append(found, DiscoveredPrinter{ID: k.ID, Known: true, Family: k.Family, Model: k.Model})
			delete(present, k.ID)
		}
	}
	if includeUnknown {
		for _, id := range attached {
			if present[id] {
				found = append(found, DiscoveredPrinter{ID: id})
				delete(present, id)
			}
		}
	}
	return found, nil
}
