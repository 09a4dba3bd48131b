package main

import (
	"flag"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/BTreeMap/CaseFlow/internal/api"
	"github.com/BTreeMap/CaseFlow/internal/config"
	"github.com/BTreeMap/CaseFlow/internal/genai"
	"github.com/BTreeMap/CaseFlow/internal/notify"
	"github.com/BTreeMap/CaseFlow/internal/store"
	"github.com/BTreeMap/CaseFlow/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for CaseFlow state data
	DefaultStateDir = "/var/lib/caseflow"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "caseflow.db"
)

func main() {
	// Initialize structured logger
	initializeLogger()

	// Load environment configuration
	cfg := loadEnvironmentConfig()

	// Parse command line flags
	flags := parseCommandLineFlags(cfg)

	// Load intake rule tables (embedded defaults, overridable per directory)
	tables, err := config.Load(*flags.configDir)
	if err != nil {
		slog.Error("Failed to load rule tables", "error", err, "configDir", *flags.configDir)
		os.Exit(1)
	}
	engine := tables.Engine()

	// Select and open the persistence backend
	st, err := buildStore(flags)
	if err != nil {
		slog.Error("Failed to initialize store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	// Reply generation is optional; without a key the formatter's template
	// fallback supplies response text.
	var gen genai.ClientInterface
	if *flags.openaiKey != "" {
		client, err := genai.NewClient(genai.WithAPIKey(*flags.openaiKey))
		if err != nil {
			slog.Error("Failed to initialize GenAI client", "error", err)
			os.Exit(1)
		}
		gen = client
	} else {
		slog.Warn("No OpenAI API key configured, responses fall back to step templates")
	}

	// Escalation alerts are optional; without Twilio config they are logged only.
	var notifier notify.Notifier = notify.NoopNotifier{}
	if notificationsEnabled() {
		tw, err := notify.NewTwilioNotifier()
		if err != nil {
			slog.Error("Failed to initialize Twilio notifier", "error", err)
			os.Exit(1)
		}
		notifier = tw
	}

	apiOpts := buildAPIOptions(flags)
	server := api.NewServer(st, engine, gen, notifier, apiOpts...)

	slog.Info("Bootstrapping CaseFlow", "flows", len(engine.Flows().Types()), "tiers", len(engine.Policy().Tiers()))
	if err := server.Run(); err != nil {
		slog.Error("CaseFlow failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("CaseFlow exited successfully")
}

// Config holds environment configuration
type Config struct {
	DatabaseURL string
	StateDir    string
	ConfigDir   string
	StaticDir   string
	OpenAIKey   string
	APIAddr     string
}

// Flags holds command line flag values
type Flags struct {
	stateDir  *string
	dbDSN     *string
	configDir *string
	staticDir *string
	openaiKey *string
	apiAddr   *string
}

// initializeLogger sets up structured logging, honoring CASEFLOW_DEBUG.
func initializeLogger() {
	level := slog.LevelInfo
	if util.ParseBoolEnv("CASEFLOW_DEBUG", false) {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	cfg := Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		StateDir:    os.Getenv("CASEFLOW_STATE_DIR"),
		ConfigDir:   os.Getenv("CASEFLOW_CONFIG_DIR"),
		StaticDir:   os.Getenv("CASEFLOW_STATIC_DIR"),
		OpenAIKey:   os.Getenv("OPENAI_API_KEY"),
		APIAddr:     os.Getenv("API_ADDR"),
	}

	// Set default state directory if not specified
	if cfg.StateDir == "" {
		cfg.StateDir = DefaultStateDir
		slog.Debug("No CASEFLOW_STATE_DIR set, using default", "default_state_dir", cfg.StateDir)
	}

	// If no database URL is provided, default to SQLite in the state directory
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = filepath.Join(cfg.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", cfg.DatabaseURL)
	}

	slog.Debug("environment variables loaded",
		"DATABASE_URL_SET", cfg.DatabaseURL != "",
		"CASEFLOW_STATE_DIR", cfg.StateDir,
		"CASEFLOW_CONFIG_DIR", cfg.ConfigDir,
		"CASEFLOW_STATIC_DIR", cfg.StaticDir,
		"OPENAI_API_KEY_SET", cfg.OpenAIKey != "",
		"API_ADDR", cfg.APIAddr)

	return cfg
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(cfg Config) Flags {
	flags := Flags{
		stateDir:  flag.String("state-dir", cfg.StateDir, "state directory for CaseFlow data (overrides $CASEFLOW_STATE_DIR)"),
		dbDSN:     flag.String("db-dsn", cfg.DatabaseURL, "database DSN for the conversation store (overrides $DATABASE_URL)"),
		configDir: flag.String("config-dir", cfg.ConfigDir, "directory with rule table overrides (overrides $CASEFLOW_CONFIG_DIR)"),
		staticDir: flag.String("static-dir", cfg.StaticDir, "directory of static assets served at / (overrides $CASEFLOW_STATIC_DIR)"),
		openaiKey: flag.String("openai-api-key", cfg.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		apiAddr:   flag.String("api-addr", cfg.APIAddr, "API server address (overrides $API_ADDR)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"configDir", *flags.configDir,
		"staticDir", *flags.staticDir,
		"openaiKeySet", *flags.openaiKey != "",
		"apiAddr", *flags.apiAddr)

	// Update database DSN if not explicitly set but state directory is provided
	if *flags.dbDSN == cfg.DatabaseURL && cfg.DatabaseURL == filepath.Join(cfg.StateDir, DefaultDBFileName) && *flags.stateDir != cfg.StateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("Updated dbDSN based on state directory", "new_state_dir", *flags.stateDir)
	}

	return flags
}

// isPostgresDSN reports whether the DSN targets PostgreSQL rather than a SQLite file.
func isPostgresDSN(dsn string) bool {
	return strings.Contains(dsn, "postgres://") || strings.Contains(dsn, "host=")
}

// buildStore opens the persistence backend selected by the DSN.
func buildStore(flags Flags) (store.Store, error) {
	if isPostgresDSN(*flags.dbDSN) {
		slog.Info("Using PostgreSQL store")
		return store.NewPostgresStore(store.WithDSN(*flags.dbDSN))
	}
	slog.Info("Using SQLite store", "path", *flags.dbDSN)
	return store.NewSQLiteStore(store.WithDSN(*flags.dbDSN))
}

// notificationsEnabled reports whether enough Twilio configuration is present
// to send escalation alerts.
func notificationsEnabled() bool {
	return os.Getenv("TWILIO_ACCOUNT_SID") != "" && os.Getenv("TWILIO_AUTH_TOKEN") != "" &&
		os.Getenv("TWILIO_FROM_NUMBER") != "" && os.Getenv("TWILIO_ONCALL_NUMBER") != ""
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(flags Flags) []api.Option {
	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	if *flags.staticDir != "" {
		apiOpts = append(apiOpts, api.WithStaticDir(*flags.staticDir))
	}
	return apiOpts
}
