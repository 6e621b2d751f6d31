package utils

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseUSBID accepts "0x0A5F", bare four-digit hex as printed by lsusb ("0a5f"), or a decimal id.
func ParseUSBID(s string) (uint16, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty usb id")
	}
	base := 10
	switch {
	case strings.HasPrefix(strings.ToLower(s), "0x"):
		s = s[2:]
		base = 16
	case strings.ContainsAny(s, "abcdefABCDEF"), len(s) == 4:
		base = 16
	}
	v, err := strconv.ParseUint(s, base, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid usb id %q: %w", s, err)
	}
	return uint16(v), nil
}

// FormatUSBID renders an id the way lsusb does.
func FormatUSBID(id uint16) string {
	return fmt.Sprintf("0x%04X", id)
}
