package capture

import (
	"fmt"
	"net/url"
	"os"
	"runtime"
)

// Preflight checks the environment before any device acquisition is
// attempted. It returns soft warnings (log-worthy, non-fatal) and a hard
// error when the capture stack cannot work at all, so sessions fail fast
// instead of timing out on a doomed open.
func Preflight(deviceID int, classifierURL string) (warnings []string, err error) {
	if deviceID < 0 {
		return nil, fmt.Errorf("capture unsupported: invalid camera device id %d", deviceID)
	}

	// Device nodes are only enumerable on Linux; elsewhere the open itself
	// is the first reliable probe.
	if runtime.GOOS == "linux" {
		path := fmt.Sprintf("/dev/video%d", deviceID)
		if _, statErr := os.Stat(path); statErr != nil {
			return nil, fmt.Errorf("no camera found at %s: %w", path, statErr)
		}
	}

	if classifierURL != "" {
		u, parseErr := url.Parse(classifierURL)
		if parseErr != nil || u.Scheme == "" || u.Host == "" {
			return warnings, fmt.Errorf("unsupported classifier endpoint %q", classifierURL)
		}
		if u.Scheme != "https" && !isLoopback(u.Hostname()) {
			warnings = append(warnings,
				fmt.Sprintf("classifier endpoint %s is not HTTPS; features will travel in the clear", classifierURL))
		}
	}

	return warnings, nil
}

func isLoopback(host string) bool {
	return host == "localhost" || host == "127.0.0.1" || host == "::1"
}
