package delivery

import (
	"bytes"
	"strings"
)

// Platform returns the mechanism chain and viewer for goos, in trial order.
func Platform(goos string, runner Runner) ([]Mechanism, Viewer) {
	switch goos {
	case "windows":
		return windowsChain(runner)
	default:
		return unixChain(goos, runner)
	}
}

func unixChain(goos string, runner Runner) ([]Mechanism, Viewer) {
	lpstat := &Probe{
		Argv: []string{"lpstat", "-d"},
		Check: func(out []byte) bool {
			return bytes.Contains(out, []byte("system default destination:"))
		},
	}
	mechanisms := []Mechanism{
		&CommandMechanism{
			Label:  "lp",
			Format: FormatPDF,
			Probe:  lpstat,
			Argv:   func(p string) []string { return []string{"lp", p} },
			Runner: runner,
		},
		&CommandMechanism{
			Label:  "lpr",
			Format: FormatPDF,
			Argv:   func(p string) []string { return []string{"lpr", p} },
			Runner: runner,
		},
		&CommandMechanism{
			Label:  "lp-text",
			Format: FormatText,
			Argv:   func(p string) []string { return []string{"lp", "-o", "cpi=12", p} },
			Runner: runner,
		},
	}

	opener := "xdg-open"
	if goos == "darwin" {
		opener = "open"
	}
	viewer := &CommandViewer{
		Label:  opener,
		Argv:   func(p string) []string { return []string{opener, p} },
		Runner: runner,
	}
	return mechanisms, viewer
}

func windowsChain(runner Runner) ([]Mechanism, Viewer) {
	defaultPrinter := &Probe{
		Argv: []string{"powershell", "-NoProfile", "-Command",
			"(Get-CimInstance -ClassName Win32_Printer | Where-Object { $_.Default }).Name"},
		Check: func(out []byte) bool {
			return len(bytes.TrimSpace(out)) > 0
		},
	}
	mechanisms := []Mechanism{
		&CommandMechanism{
			Label:  "powershell-print",
			Format: FormatPDF,
			Probe:  defaultPrinter,
			Argv: func(p string) []string {
				return []string{"powershell", "-NoProfile", "-Command",
					"Start-Process -FilePath " + psQuote(p) + " -Verb Print -WindowStyle Hidden"}
			},
			Runner: runner,
		},
		&CommandMechanism{
			Label:  "notepad",
			Format: FormatText,
			Argv:   func(p string) []string { return []string{"notepad", "/p", p} },
			Runner: runner,
		},
	}
	viewer := &CommandViewer{
		Label:  "rundll32",
		Argv:   func(p string) []string { return []string{"rundll32", "url.dll,FileProtocolHandler", p} },
		Runner: runner,
	}
	return mechanisms, viewer
}

func psQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
