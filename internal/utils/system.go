package utils

import (
	"context"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"
)

// SystemInfo holds what the agent needs to know about the host.
type SystemInfo struct {
	OS            string
	Architecture  string
	ChromePresent bool
	ChromePath    string
	ChromeVersion string
	// PrintCommands maps each print-related binary to its resolved path, empty when missing.
	PrintCommands map[string]string
}

// DetectSystem probes the host for Chrome and the print commands used by document delivery.
func DetectSystem(ctx context.Context) SystemInfo {
	info := SystemInfo{
		OS:            runtime.GOOS,
		Architecture:  runtime.GOARCH,
		PrintCommands: map[string]string{},
	}
	info.ChromePresent, info.ChromePath = CheckChrome()
	if info.ChromePresent {
		info.ChromeVersion = getChromeVersion(ctx, info.ChromePath)
	}
	for _, bin := range printCommandsFor(runtime.GOOS) {
		path, _ := exec.LookPath(bin)
		info.PrintCommands[bin] = path
	}
	return info
}

// --------------------------------------
// CHROME CHECK
// --------------------------------------

// CheckChrome checks if google-chrome or chromium is installed
func CheckChrome() (bool, string) {
	binaries := []string{
		"google-chrome",
		"google-chrome-stable",
		"chromium",
		"chromium-browser",
	}

	for _, bin := range binaries {
		path, err := exec.LookPath(bin)
		if err == nil {
			return true, path
		}
	}

	for _, path := range getCommonChromePaths() {
		if _, err := os.Stat(path); err == nil {
			return true, path
		}
	}

	return false, ""
}

// getCommonChromePaths returns common Chrome/Chromium installation paths
func getCommonChromePaths() []string {
	switch runtime.GOOS {
	case "darwin":
		return []string{
			"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
			"/Applications/Chromium.app/Contents/MacOS/Chromium",
		}
	case "linux":
		return []string{
			"/usr/bin/google-chrome",
			"/usr/bin/google-chrome-stable",
			"/usr/bin/chromium",
			"/usr/bin/chromium-browser",
			"/snap/bin/chromium",
		}
	case "windows":
		return []string{
			`C:\Program Files\Google\Chrome\Application\chrome.exe`,
			`C:\Program Files (x86)\Google\Chrome\Application\chrome.exe`,
			`C:\Program Files\Chromium\Application\chromium.exe`,
		}
	default:
		return nil
	}
}

func getChromeVersion(ctx context.Context, path string) string {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	out, err := exec.CommandContext(ctx, path, "--version").Output()
	if err != nil {
		return "unknown"
	}
	return strings.TrimSpace(string(out))
}

func printCommandsFor(goos string) []string {
	switch goos {
	case "windows":
		return []string{"powershell", "notepad", "rundll32"}
	case "darwin":
		return []string{"lp", "lpr", "lpstat", "open"}
	default:
		return []string{"lp", "lpr", "lpstat", "xdg-open"}
	}
}

// --------------------------------------
// INSTALLATION INSTRUCTIONS
// --------------------------------------

// ChromeInstallHint returns install instructions for the given OS.
func ChromeInstallHint(osType string) string {
	switch osType {
	case "linux":
		return "Ubuntu / Debian: sudo apt install chromium-browser\n" +
			"Fedora: sudo dnf install chromium\n" +
			"Arch: sudo pacman -S chromium"
	case "darwin":
		return "brew install --cask google-chrome (or: brew install chromium)"
	case "windows":
		return "Download Google Chrome: https://www.google.com/chrome/"
	default:
		return "Install Chrome or Chromium for your OS."
	}
}
