package config

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/linesmerrill/lcm-policing/logging"
)

// Storage drivers for the device decision store
const (
	StorageSQLite = "sqlite"
	StorageMongo  = "mongo"
)

// Config holds the project config values
type Config struct {
	BackendURL        string        `yaml:"backend_url"`
	AnonKey           string        `yaml:"anon_key"`
	JWTSecret         string        `yaml:"jwt_secret"`
	Port              string        `yaml:"port"`
	BaseURL           string        `yaml:"base_url"`
	Env               string        `yaml:"env"`
	StorageDriver     string        `yaml:"storage_driver"`
	SQLitePath        string        `yaml:"sqlite_path"`
	URL               string        `yaml:"db_uri"`
	DatabaseName      string        `yaml:"db_name"`
	QueueLimit        int           `yaml:"queue_limit"`
	BellInterval      time.Duration `yaml:"bell_interval"`
	BellKind          string        `yaml:"bell_kind"`
	ResolutionTimeout time.Duration `yaml:"resolution_timeout"`
	RequestTimeout    time.Duration `yaml:"request_timeout"`
}

// Defaults returns the configuration used when nothing overrides it.
func Defaults() Config {
	return Config{
		Port:              "8080",
		Env:               "production",
		StorageDriver:     StorageSQLite,
		SQLitePath:        "lcm.db",
		DatabaseName:      "lcm",
		QueueLimit:        20,
		BellInterval:      30 * time.Second,
		BellKind:          "BONUS",
		ResolutionTimeout: 12 * time.Second,
		RequestTimeout:    30 * time.Second,
	}
}

// New sets up all config related services from the environment and an optional .env file
func New() *Config {
	conf, err := Load("")
	if err != nil {
		zap.S().Errorw("failed to load config, using defaults", "error", err)
		d := Defaults()
		return &d
	}
	return conf
}

// Load builds the config from defaults, then the YAML file at path (if any), then the
// environment, and installs the global logger for the resulting environment.
func Load(path string) (*Config, error) {
	// a missing .env file is fine, the environment may be set up some other way
	_ = godotenv.Load()

	conf := Defaults()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(b, &conf); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}
	if err := applyEnv(&conf); err != nil {
		return nil, err
	}

	logger, err := logging.Install(conf.Env)
	if err != nil {
		return nil, err
	}
	defer logger.Sync()

	return &conf, nil
}

func applyEnv(conf *Config) error {
	setString(&conf.BackendURL, "BACKEND_URL", "SUPABASE_URL")
	setString(&conf.AnonKey, "BACKEND_ANON_KEY", "SUPABASE_ANON_KEY")
	setString(&conf.JWTSecret, "JWT_SECRET")
	setString(&conf.Port, "PORT")
	setString(&conf.BaseURL, "BASE_URL")
	setString(&conf.Env, "APP_ENV")
	setString(&conf.StorageDriver, "STORAGE_DRIVER")
	setString(&conf.SQLitePath, "SQLITE_PATH")
	setString(&conf.URL, "DB_URI")
	setString(&conf.DatabaseName, "DB_NAME")
	setString(&conf.BellKind, "BELL_KIND")

	if v := os.Getenv("QUEUE_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid QUEUE_LIMIT %q", v)
		}
		conf.QueueLimit = n
	}
	for env, d := range map[string]*time.Duration{
		"BELL_INTERVAL":      &conf.BellInterval,
		"RESOLUTION_TIMEOUT": &conf.ResolutionTimeout,
		"REQUEST_TIMEOUT":    &conf.RequestTimeout,
	} {
		v := os.Getenv(env)
		if v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil || parsed <= 0 {
			return fmt.Errorf("invalid %s %q", env, v)
		}
		*d = parsed
	}

	switch conf.StorageDriver {
	case StorageSQLite, StorageMongo:
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", conf.StorageDriver)
	}
	return nil
}

func setString(dst *string, names ...string) {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			*dst = v
			return
		}
	}
}

// ErrorStatus is a useful function that will log, write http headers and body for a
// give message, status code and err
func ErrorStatus(message string, httpStatusCode int, w http.ResponseWriter, err error) {
	zap.S().Errorw(message, "error", err, "status", httpStatusCode)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatusCode)
	body := map[string]string{"response": message}
	if err != nil {
		body["response"] = fmt.Sprintf("%s, %v", message, err)
	}
	_ = json.NewEncoder(w).Encode(body)
}
