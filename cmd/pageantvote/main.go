package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/abrezinsky/pageantvote/internal/app"
	"github.com/abrezinsky/pageantvote/internal/browser"
	"github.com/abrezinsky/pageantvote/internal/config"
	"github.com/abrezinsky/pageantvote/internal/logger"
)

var (
	version = "dev"
)

func showLogo(w io.Writer) {
	logo := []string{
		"  ____                              _ __     __    _       ",
		" |  _ \\ __ _  __ _  ___  __ _ _ __ | |\\ \\   / /__ | |_ ___ ",
		" | |_) / _` |/ _` |/ _ \\/ _` | '_ \\| __\\ \\ / / _ \\| __/ _ \\",
		" |  __/ (_| | (_| |  __/ (_| | | | | |_ \\ V / (_) | ||  __/",
		" |_|   \\__,_|\\__, |\\___|\\__,_|_| |_|\\__| \\_/ \\___/ \\__\\___|",
		"             |___/                                         ",
	}
	fmt.Fprintln(w)
	for _, line := range logo {
		fmt.Fprintf(w, "  %s%s%s\n", yellow, line, reset)
	}
	fmt.Fprintln(w)
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, err := config.Load(args)
	if errors.Is(err, flag.ErrHelp) {
		config.Usage(os.Stderr)
		return 0
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "pageantvote: %v\n\n", err)
		config.Usage(os.Stderr)
		return 2
	}
	if cfg.ShowVersion {
		fmt.Printf("pageantvote %s\n", version)
		return 0
	}

	var out io.Writer = os.Stdout
	keyboard := !cfg.NoKeyboard && stdinIsTerminal()
	if keyboard {
		restore, err := rawTerminal()
		if err != nil {
			keyboard = false
		} else {
			defer restore()
			out = rawWriter{w: os.Stdout}
		}
	}

	showLogo(out)

	appLog := logger.NewWithOptions(logger.Options{
		Level:       logger.ParseLevel(cfg.LogLevel),
		Format:      logger.ParseFormat(cfg.LogFormat),
		Output:      out,
		HTTPLogging: cfg.HTTPLogging,
	})

	a, err := app.New(appLog, cfg, nil)
	if err != nil {
		appLog.Error("Failed to initialize application", "error", err)
		return 1
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- a.Run(cfg.Addr())
	}()

	if keyboard {
		c := &console{
			out:     out,
			log:     appLog,
			siteURL: fmt.Sprintf("http://localhost:%d/", cfg.Port),
			open:    browser.Open,
			quit:    stop,
		}
		c.printHelp()
		go c.run(os.Stdin)
	}

	select {
	case err := <-serverErr:
		if err != nil {
			appLog.Error("Server stopped", "error", err)
			return 1
		}
	case <-ctx.Done():
		appLog.Info("Shutting down")
	}
	return 0
}
