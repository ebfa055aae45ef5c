// Package config resolves process configuration from flags, the environment and an optional .env file.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/abrezinsky/pageantvote/pkg/pesepay"
)

// Config holds everything needed to start the server
type Config struct {
	Port            int
	DBPath          string
	LogLevel        string
	LogFormat       string
	HTTPLogging     bool
	StaticDir       string
	UploadsDir      string
	SeedSamples     bool
	ResultsInterval time.Duration
	SuccessPage     string
	NoKeyboard      bool
	TrustProxy      bool
	ShowVersion     bool

	Pesepay  PesepayConfig
	Currency string
	// MockGateway swaps the live gateway for an in-process fake, for demos and local testing
	MockGateway bool
}

// PesepayConfig holds the gateway credentials and callback URLs.
// Empty callback URLs are derived from the server address at startup.
type PesepayConfig struct {
	IntegrationKey string
	EncryptionKey  string
	BaseURL        string
	ResultURL      string
	ReturnURL      string
}

// flag name -> environment variable
var envNames = map[string]string{
	"port":             "PORT",
	"db":               "DB_PATH",
	"loglevel":         "LOG_LEVEL",
	"logformat":        "LOG_FORMAT",
	"httplog":          "LOG_HTTP",
	"static":           "STATIC_DIR",
	"uploads":          "UPLOADS_DIR",
	"seed":             "SEED_SAMPLES",
	"results-interval": "RESULTS_INTERVAL",
	"success-page":     "PAYMENT_SUCCESS_PAGE",
	"currency":         "PESEPAY_CURRENCY",
	"mockpay":          "PESEPAY_MOCK",
	"trustproxy":       "TRUST_PROXY",
}

// Load parses args (without the program name). Precedence is flag, then
// environment, then .env file, then default. A missing .env file is ignored
// and the file never modifies the process environment.
func Load(args []string) (Config, error) {
	var cfg Config
	var envFile string

	flags := newFlagSet(&cfg, &envFile)

	if err := flags.Parse(args); err != nil {
		return Config{}, err
	}
	if cfg.ShowVersion {
		return cfg, nil
	}

	dotenv, err := godotenv.Read(envFile)
	if err != nil && !isNotExist(err) {
		return Config{}, fmt.Errorf("failed to load %s: %w", envFile, err)
	}
	lookup := func(key string) string {
		if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
		return strings.TrimSpace(dotenv[key])
	}

	explicit := make(map[string]bool)
	flags.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

	for name, env := range envNames {
		if explicit[name] {
			continue
		}
		value := lookup(env)
		if value == "" {
			continue
		}
		if err := flags.Set(name, value); err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", env, err)
		}
	}

	cfg.Pesepay = PesepayConfig{
		IntegrationKey: lookup("PESEPAY_INTEGRATION_KEY"),
		EncryptionKey:  lookup("PESEPAY_ENCRYPTION_KEY"),
		BaseURL:        lookup("PESEPAY_BASE_URL"),
		ResultURL:      lookup("PESEPAY_RESULT_URL"),
		ReturnURL:      lookup("PESEPAY_RETURN_URL"),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func newFlagSet(cfg *Config, envFile *string) *flag.FlagSet {
	set := flag.NewFlagSet("pageantvote", flag.ContinueOnError)
	set.SetOutput(io.Discard)
	set.StringVar(envFile, "env", ".env", "Path to a .env file")
	set.IntVar(&cfg.Port, "port", 3000, "HTTP server port")
	set.StringVar(&cfg.DBPath, "db", "pageant.db", "SQLite database path")
	set.StringVar(&cfg.LogLevel, "loglevel", "info", "Log level (debug, info, warn, error)")
	set.StringVar(&cfg.LogFormat, "logformat", "text", "Log format (text, json)")
	set.BoolVar(&cfg.HTTPLogging, "httplog", false, "Log every HTTP request")
	set.StringVar(&cfg.StaticDir, "static", "", "Directory of front-end files to serve")
	set.StringVar(&cfg.UploadsDir, "uploads", "uploads", "Directory holding uploaded contestant photos")
	set.BoolVar(&cfg.SeedSamples, "seed", true, "Insert sample contestants into an empty database")
	set.DurationVar(&cfg.ResultsInterval, "results-interval", 30*time.Second, "Live results refresh interval (0 disables)")
	set.StringVar(&cfg.SuccessPage, "success-page", "/ticket-success.html", "Page buyers return to after paying")
	set.StringVar(&cfg.Currency, "currency", "USD", "Ticket currency code")
	set.BoolVar(&cfg.MockGateway, "mockpay", false, "Use an in-process fake payment gateway")
	set.BoolVar(&cfg.TrustProxy, "trustproxy", false, "Take client IPs from X-Forwarded-For/X-Real-IP (only behind a proxy)")
	set.BoolVar(&cfg.NoKeyboard, "nokeyboard", false, "Disable keyboard shortcuts")
	set.BoolVar(&cfg.ShowVersion, "version", false, "Show version and exit")
	return set
}

// Usage writes the flag reference, with the environment variable behind each flag
func Usage(w io.Writer) {
	var cfg Config
	var envFile string
	set := newFlagSet(&cfg, &envFile)
	fmt.Fprintf(w, "Usage: pageantvote [options]\n\nOptions:\n")
	set.VisitAll(func(f *flag.Flag) {
		env := envNames[f.Name]
		if env != "" {
			env = " (env " + env + ")"
		}
		fmt.Fprintf(w, "  -%-17s %s%s [default %q]\n", f.Name, f.Usage, env, f.DefValue)
	})
	fmt.Fprintf(w, "\nGateway credentials come from PESEPAY_INTEGRATION_KEY and PESEPAY_ENCRYPTION_KEY.\n")
}

// Validate reports the first configuration problem found
func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.DBPath == "" {
		return errors.New("database path is required (use -db or DB_PATH)")
	}
	if c.ResultsInterval < 0 {
		return errors.New("results interval cannot be negative")
	}
	if c.MockGateway {
		return nil
	}
	if c.Pesepay.IntegrationKey == "" {
		return errors.New("PESEPAY_INTEGRATION_KEY is required (or run with -mockpay)")
	}
	if len(c.Pesepay.EncryptionKey) != pesepay.KeySize {
		return fmt.Errorf("PESEPAY_ENCRYPTION_KEY must be %d bytes, got %d", pesepay.KeySize, len(c.Pesepay.EncryptionKey))
	}
	return nil
}

// Addr returns the listen address for the configured port
func (c Config) Addr() string {
	return ":" + strconv.Itoa(c.Port)
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
