package secrets

import (
	"os"
	"runtime"
	"strings"
)

// IsWSL returns true if running under Windows Subsystem for Linux.
func IsWSL() bool {
	if runtime.GOOS != "linux" {
		return false
	}

	data, err := os.ReadFile("/proc/version")
	if err != nil {
		return false
	}

	version := strings.ToLower(string(data))
	return strings.Contains(version, "microsoft") || strings.Contains(version, "wsl")
}

// IsHeadless returns true if running without a display server or inside an
// SSH session. Only meaningful on Unix desktops; macOS and Windows are
// assumed to have a login session that unlocks the native store.
func IsHeadless() bool {
	switch runtime.GOOS {
	case "darwin", "windows":
		return false
	}

	if os.Getenv("SSH_TTY") != "" && os.Getenv("DBUS_SESSION_BUS_ADDRESS") == "" {
		return true
	}

	// Check for X11 or Wayland display
	return os.Getenv("DISPLAY") == "" && os.Getenv("WAYLAND_DISPLAY") == ""
}

// UnixDesktop reports whether GOOS is a Unix flavour that ships a
// freedesktop Secret Service implementation.
func UnixDesktop(goos string) bool {
	switch goos {
	case "linux", "freebsd", "openbsd", "netbsd", "dragonfly":
		return true
	}
	return false
}
