package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

const (
	defaultHealthCheckInterval = 60
	defaultCallTimeout         = 10
	defaultHost                = "0.0.0.0"
	defaultPort                = 8000
	defaultLogLevel            = "info"
)

// Config is the configuration struct for the service.
type Config struct {
	// TerminalsConfig is the filepath to the terminal list.
	TerminalsConfig string
	// BridgeURL is the base url of the terminal bridge.
	BridgeURL string
	// HealthCheckInterval is the time between terminal health checks in seconds.
	HealthCheckInterval int
	// CallTimeout is the deadline for a single terminal call in seconds.
	CallTimeout int
	// Host is the http listening host.
	Host string
	// Port is the http listening port.
	Port int
	// AdminAPIKey guards the admin routes.
	AdminAPIKey string
	// LogLevel is the minimum logged level.
	LogLevel string
	// Backtest is the backtesting flag.
	Backtest bool
	// BacktestDataFilepath is the filepath to the backtest data.
	BacktestDataFilepath string

	registeredFlags map[string]bool
}

// Validate asserts the config sane inputs.
func (cfg *Config) Validate() error {
	var errs error

	if cfg.TerminalsConfig == "" {
		errs = errors.Join(errs, fmt.Errorf("terminals config filepath cannot be an empty string"))
	}

	switch cfg.Backtest {
	case true:
		if cfg.BacktestDataFilepath == "" {
			errs = errors.Join(errs, fmt.Errorf("backtest data filepath cannot be an empty string"))
		}
	case false:
		if cfg.BridgeURL == "" {
			errs = errors.Join(errs, fmt.Errorf("bridge url cannot be an empty string"))
		}
	}

	if cfg.HealthCheckInterval < 0 {
		errs = errors.Join(errs, fmt.Errorf("health check interval cannot be negative"))
	}
	if cfg.CallTimeout < 0 {
		errs = errors.Join(errs, fmt.Errorf("call timeout cannot be negative"))
	}
	if cfg.Port < 0 || cfg.Port > 65535 {
		errs = errors.Join(errs, fmt.Errorf("port %d is out of range", cfg.Port))
	}
	if cfg.LogLevel != "" {
		if _, err := zerolog.ParseLevel(cfg.LogLevel); err != nil {
			errs = errors.Join(errs, fmt.Errorf("invalid log level: %w", err))
		}
	}

	return errs
}

// applyDefaults sets defaults for unset inputs.
func (cfg *Config) applyDefaults() {
	if cfg.HealthCheckInterval == 0 {
		cfg.HealthCheckInterval = defaultHealthCheckInterval
	}
	if cfg.CallTimeout == 0 {
		cfg.CallTimeout = defaultCallTimeout
	}
	if cfg.Host == "" {
		cfg.Host = defaultHost
	}
	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaultLogLevel
	}
}

// registerFlag registers command line arguments of any type and tracks them to avoid reregistration.
func (cfg *Config) registerFlag(name string, value interface{}, usage string) error {
	if cfg.registeredFlags == nil {
		cfg.registeredFlags = make(map[string]bool)
	}

	if cfg.registeredFlags[name] {
		return nil
	}

	cfg.registeredFlags[name] = true

	defValue := os.Getenv(name)
	val := reflect.ValueOf(value)
	if val.Kind() != reflect.Ptr || val.IsNil() {
		return fmt.Errorf("%s: value must be a non-nil pointer", name)
	}

	switch val.Elem().Kind() {
	case reflect.String:
		flag.StringVar(value.(*string), name, defValue, usage)
	case reflect.Bool:
		var def bool
		if defValue != "" {
			def, _ = strconv.ParseBool(defValue)
		}
		flag.BoolVar(value.(*bool), name, def, usage)
	case reflect.Int:
		var def int
		if defValue != "" {
			def, _ = strconv.Atoi(defValue)
		}
		flag.IntVar(value.(*int), name, def, usage)
	case reflect.Slice:
		// Only handle []string
		if val.Elem().Type().Elem().Kind() == reflect.String {
			var def []string
			if defValue != "" {
				def = strings.Split(defValue, ",")
			}
			flag.Func(name, usage, func(s string) error {
				*value.(*[]string) = strings.Split(s, ",")
				return nil
			})
			// Set default if not provided via flag
			if len(def) > 0 {
				*value.(*[]string) = def
			}
		} else {
			return fmt.Errorf("%s: unsupported slice type", name)
		}
	default:
		return fmt.Errorf("%s: unsupported type", name)
	}

	return nil
}

// loadConfig loads the configuration from environment variables and command line flags.
func loadConfig(cfg *Config, path string) error {
	if path == "" {
		path = ".env"
	}

	// Check if the expected .env file exists before loading it.
	_, err := os.Stat(path)
	if err == nil {
		err := godotenv.Load(path)
		if err != nil {
			return fmt.Errorf("loading .env file: %w", err)
		}
	}

	// Register command line arguments using loaded environment variables as defaults.
	err = cfg.registerFlag("terminalsconfig", &cfg.TerminalsConfig, "the terminal list filepath")
	if err != nil {
		return err
	}
	err = cfg.registerFlag("bridgeurl", &cfg.BridgeURL, "the terminal bridge base url")
	if err != nil {
		return err
	}
	err = cfg.registerFlag("healthcheckinterval", &cfg.HealthCheckInterval, "the terminal health check interval in seconds")
	if err != nil {
		return err
	}
	err = cfg.registerFlag("calltimeout", &cfg.CallTimeout, "the terminal call timeout in seconds")
	if err != nil {
		return err
	}
	err = cfg.registerFlag("host", &cfg.Host, "the http listening host")
	if err != nil {
		return err
	}
	err = cfg.registerFlag("port", &cfg.Port, "the http listening port")
	if err != nil {
		return err
	}
	err = cfg.registerFlag("adminapikey", &cfg.AdminAPIKey, "the admin api key")
	if err != nil {
		return err
	}
	err = cfg.registerFlag("loglevel", &cfg.LogLevel, "the minimum log level")
	if err != nil {
		return err
	}
	err = cfg.registerFlag("backtest", &cfg.Backtest, "the backtest flag")
	if err != nil {
		return err
	}
	err = cfg.registerFlag("backtestdatafilepath", &cfg.BacktestDataFilepath, "the backtest data filepath")
	if err != nil {
		return err
	}

	// Parse command-line flags.
	flag.Parse()

	cfg.applyDefaults()

	return cfg.Validate()
}
