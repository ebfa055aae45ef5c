// Package browser opens pages of the running server in the operator's browser.
package browser

import (
	"fmt"
	"net/url"
	"os/exec"
	"runtime"
)

// Commander starts an external program (swapped out in tests)
type Commander interface {
	Start(name string, args ...string) error
}

// RealCommander starts real processes
type RealCommander struct{}

// Start launches the command without waiting for it
func (RealCommander) Start(name string, args ...string) error {
	return exec.Command(name, args...).Start()
}

var defaultCommander Commander = RealCommander{}

// Open opens pageURL in the default browser
func Open(pageURL string) error {
	return OpenWithCommander(pageURL, defaultCommander, runtime.GOOS)
}

// OpenWithCommander opens pageURL using commander as if running on goos
func OpenWithCommander(pageURL string, commander Commander, goos string) error {
	name, args, err := Command(pageURL, goos)
	if err != nil {
		return err
	}
	return commander.Start(name, args...)
}

// Command returns the program and arguments that open pageURL on goos.
// Only absolute http and https URLs are accepted.
func Command(pageURL, goos string) (string, []string, error) {
	u, err := url.Parse(pageURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", nil, fmt.Errorf("refusing to open %q: not an http(s) URL", pageURL)
	}

	switch goos {
	case "linux", "freebsd", "openbsd":
		return "xdg-open", []string{pageURL}, nil
	case "darwin":
		return "open", []string{pageURL}, nil
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", pageURL}, nil
	default:
		return "", nil, fmt.Errorf("unsupported platform: %s", goos)
	}
}
