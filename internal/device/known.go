package device

import "fmt"

// DeviceID is a USB vendor/product pair.
type DeviceID struct {
	Vendor  uint16
	Product uint16
}

func (id DeviceID) String() string {
	return fmt.Sprintf("%04x:%04x", id.Vendor, id.Product)
}

func (id DeviceID) IsZero() bool {
	return id.Vendor == 0 && id.Product == 0
}

type KnownPrinter struct {
	ID     DeviceID
	Family string
	Model  string
}

// KnownPrinters is scanned in order during auto-detection; the first attached entry wins.
var KnownPrinters = []KnownPrinter{
	{DeviceID{0x0A5F, 0x0164}, "Zebra", "ZD410/ZD420"},
	{DeviceID{0x0A5F, 0x0181}, "Zebra", "ZD510"},
	{DeviceID{0x0A5F, 0x0049}, "Zebra", "GC420t"},
	{DeviceID{0x0A5F, 0x0061}, "Zebra", "GK420t"},
	{DeviceID{0x0A5F, 0x0078}, "Zebra", "GK420d"},
	{DeviceID{0x0A5F, 0x008A}, "Zebra", "ZT410"},
	{DeviceID{0x0A5F, 0x0166}, "Zebra", "ZT411"},
	{DeviceID{0x04F9, 0x2028}, "Brother", "QL-700"},
	{DeviceID{0x04F9, 0x202A}, "Brother", "QL-710W"},
	{DeviceID{0x04F9, 0x202B}, "Brother", "QL-720NW"},
	{DeviceID{0x04F9, 0x209D}, "Brother", "QL-820NWB"},
	{DeviceID{0x04F9, 0x2100}, "Brother", "QL-800"},
	{DeviceID{0x04B8, 0x0202}, "Epson", "TM-T20"},
	{DeviceID{0x04B8, 0x0203}, "Epson", "TM-T88"},
	{DeviceID{0x04B8, 0x0204}, "Epson", "TM-T88V"},
}

// Lookup returns the table entry for id.
func Lookup(id DeviceID) (KnownPrinter, bool) {
	for _, p := range KnownPrinters {
		if p.ID == id {
			return p, true
		}
	}
	return KnownPrinter{}, false
}
