package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/abrezinsky/pageantvote/internal/logger"
)

// ANSI escape codes
const (
	reset  = "\033[0m"
	yellow = "\033[33m"
	red    = "\033[31m"
	green  = "\033[32m"
	cyan   = "\033[36m"
	bold   = "\033[1m"
)

// console maps single keystrokes to operator actions
type console struct {
	out     io.Writer
	log     *logger.SlogLogger
	siteURL string
	open    func(url string) error
	quit    func()
}

// handle performs the action bound to key and reports whether to keep reading
func (c *console) handle(key byte) bool {
	switch strings.ToLower(string(key)) {
	case "o":
		fmt.Fprintf(c.out, "%sOpening %s in browser...%s\n", cyan, c.siteURL, reset)
		if err := c.open(c.siteURL); err != nil {
			fmt.Fprintf(c.out, "%sError opening browser: %v%s\n", red, err, reset)
		}
	case "h":
		if c.log.IsHTTPLoggingEnabled() {
			c.log.DisableHTTPLogging()
			fmt.Fprintf(c.out, "%sHTTP logging disabled%s\n", yellow, reset)
		} else {
			c.log.EnableHTTPLogging()
			fmt.Fprintf(c.out, "%sHTTP logging enabled%s\n", green, reset)
		}
	case "l":
		next := nextLogLevel(c.log.GetLevel().String())
		c.log.SetLevel(logger.ParseLevel(next))
		fmt.Fprintf(c.out, "%sLog level: %s%s%s\n", green, yellow, next, reset)
	case "?":
		c.printHelp()
	case "q", "\x03": // Ctrl+C arrives as a byte in raw mode
		fmt.Fprintf(c.out, "%sShutting down server...%s\n", yellow, reset)
		c.quit()
		return false
	}
	return true
}

// run feeds keystrokes from in to handle until quit or end of input
func (c *console) run(in io.Reader) {
	buf := make([]byte, 1)
	for {
		n, err := in.Read(buf)
		if err != nil {
			return
		}
		if n == 1 && !c.handle(buf[0]) {
			return
		}
	}
}

func (c *console) printHelp() {
	fmt.Fprintf(c.out, "\n%s%s  Keyboard shortcuts:%s\n", bold, green, reset)
	fmt.Fprintf(c.out, "    %so%s      - Open the site in a browser\n", cyan, reset)
	fmt.Fprintf(c.out, "    %sh%s      - Toggle HTTP request logging\n", cyan, reset)
	fmt.Fprintf(c.out, "    %sl%s      - Cycle log level (debug → info → warn → error)\n", cyan, reset)
	fmt.Fprintf(c.out, "    %sq%s      - Quit server\n", cyan, reset)
	fmt.Fprintf(c.out, "    %s?%s      - Show this help\n\n", cyan, reset)
}

// nextLogLevel cycles debug -> info -> warn -> error -> debug
func nextLogLevel(current string) string {
	switch current {
	case "DEBUG":
		return "info"
	case "INFO":
		return "warn"
	case "WARN":
		return "error"
	case "ERROR":
		return "debug"
	default:
		return "info"
	}
}

// rawWriter restores carriage returns that raw terminal mode stops adding
type rawWriter struct {
	w io.Writer
}

func (r rawWriter) Write(p []byte) (int, error) {
	if _, err := r.w.Write(bytes.ReplaceAll(p, []byte("\n"), []byte("\r\n"))); err != nil {
		return 0, err
	}
	return len(p), nil
}

// stdinIsTerminal reports whether keystrokes can be read from stdin
func stdinIsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// rawTerminal switches stdin to raw mode and returns the function restoring it
func rawTerminal() (func(), error) {
	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return nil, err
	}
	return func() { term.Restore(fd, oldState) }, nil
}
