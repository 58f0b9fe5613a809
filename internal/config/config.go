package config

import (
	"os"

	"codeberg.org/mutker/vamon/internal/errors"
	"codeberg.org/mutker/vamon/internal/scale"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultLogLevel = "info"

	defaultInterval   = 1
	defaultUnit       = "s"
	defaultUpdate     = 500
	defaultBaudRate   = 115200
	defaultHorizon    = 60
	defaultNoLoad     = 60
	defaultDBPath     = "/var/lib/vamon/sessions.db"
	defaultMinVoltage = 0.2
	defaultMinCurrent = 0.5
)

// Acquisition holds the user-adjustable measurement settings. It is mutated
// only by the configuration editor and read-only while a session runs.
type Acquisition struct {
	Interval   int    `mapstructure:"interval"`   // magnitude, in Unit
	Unit       string `mapstructure:"unit"`       // one of ms, s, m, h, d
	Duration   int    `mapstructure:"duration"`   // 0 = unbounded, in the next larger unit
	Oversample int    `mapstructure:"oversample"` // raw reads averaged per sample, <=1 disables
	Update     int    `mapstructure:"update"`     // display refresh period in ms, 0 disables
	Plots      bool   `mapstructure:"plots"`
}

// Synth configures the synthetic waveform provider.
type Synth struct {
	Channels int `mapstructure:"channels"` // 2 or 3
	Horizon  int `mapstructure:"horizon"`  // unbounded-session cap in seconds
}

// Serial configures the MCU bridge provider.
type Serial struct {
	Port          string  `mapstructure:"port"`
	BaudRate      int     `mapstructure:"baudrate"`
	WithPower     bool    `mapstructure:"with_power"`
	MinVoltage    float64 `mapstructure:"min_voltage"` // V, below = no load
	MinCurrent    float64 `mapstructure:"min_current"` // mA, below = no load
	NoLoadTimeout int     `mapstructure:"no_load_timeout"`
}

// Source selects and configures the sample provider.
type Source struct {
	Driver string `mapstructure:"driver"` // "synth" or "serial"
	Synth  Synth  `mapstructure:"synth"`
	Serial Serial `mapstructure:"serial"`
}

// Sink selects the measurement log transports.
type Sink struct {
	Console bool   `mapstructure:"console"`
	UDP     string `mapstructure:"udp"` // "host:port", empty disables
}

// Archive configures the sqlite session store.
type Archive struct {
	Enabled bool   `mapstructure:"enabled"`
	DBPath  string `mapstructure:"database"`
}

type Config struct {
	Acquisition Acquisition `mapstructure:"acquisition"`
	Source      Source      `mapstructure:"source"`
	Sink        Sink        `mapstructure:"sink"`
	Archive     Archive     `mapstructure:"archive"`
	LogLevel    string      `mapstructure:"log_level"`
}

// Load reads configuration from file, environment, and flags. Flags override
// file values; the VAMON_CONFIG environment variable overrides the search
// path. All validation happens here so that invalid settings never reach the
// acquisition loop.
func Load() (*Config, error) {
	return load(os.Args[1:])
}

func load(args []string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	fs := pflag.NewFlagSet("vamon", pflag.ContinueOnError)
	fs.Int("interval", defaultInterval, "Sample interval magnitude")
	fs.String("unit", defaultUnit, "Sample interval unit (ms, s, m, h, d)")
	fs.Int("duration", 0, "Acquisition duration in the next larger unit (0 = unbounded)")
	fs.Int("oversample", 0, "Raw reads averaged per sample")
	fs.Int("update", defaultUpdate, "Display refresh period in ms (0 = off)")
	fs.Bool("plots", true, "Enable trend plots")
	fs.String("source", "synth", "Sample source driver (synth, serial)")
	fs.String("port", "", "Serial port of the MCU bridge")
	fs.String("udp", "", "UDP log destination (host:port)")
	fs.Bool("archive", false, "Record sessions to the sqlite archive")
	fs.String("log-level", DefaultLogLevel, "Log level (debug, info, warn, error)")

	if err := fs.Parse(args); err != nil {
		return nil, errors.Wrap(errors.ErrBindFlags, err)
	}

	v.SetConfigName("vamon")
	v.SetConfigType("toml")
	if path := os.Getenv("VAMON_CONFIG"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath("/etc")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errors.Wrap(errors.ErrReadConfig, err).
				WithMessage("Failed to read config file")
		}
	}

	// Explicitly set flags win over file values
	overrides := map[string]string{
		"interval":   "acquisition.interval",
		"unit":       "acquisition.unit",
		"duration":   "acquisition.duration",
		"oversample": "acquisition.oversample",
		"update":     "acquisition.update",
		"plots":      "acquisition.plots",
		"source":     "source.driver",
		"port":       "source.serial.port",
		"udp":        "sink.udp",
		"archive":    "archive.enabled",
		"log-level":  "log_level",
	}
	fs.Visit(func(f *pflag.Flag) {
		if key, ok := overrides[f.Name]; ok {
			v.Set(key, f.Value.String())
		}
	})

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(errors.ErrInvalidConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("acquisition.interval", defaultInterval)
	v.SetDefault("acquisition.unit", defaultUnit)
	v.SetDefault("acquisition.duration", 0)
	v.SetDefault("acquisition.oversample", 0)
	v.SetDefault("acquisition.update", defaultUpdate)
	v.SetDefault("acquisition.plots", true)
	v.SetDefault("source.driver", "synth")
	v.SetDefault("source.synth.channels", 2)
	v.SetDefault("source.synth.horizon", defaultHorizon)
	v.SetDefault("source.serial.baudrate", defaultBaudRate)
	v.SetDefault("source.serial.min_voltage", defaultMinVoltage)
	v.SetDefault("source.serial.min_current", defaultMinCurrent)
	v.SetDefault("source.serial.no_load_timeout", defaultNoLoad)
	v.SetDefault("sink.console", true)
	v.SetDefault("sink.udp", "")
	v.SetDefault("archive.enabled", false)
	v.SetDefault("archive.database", defaultDBPath)
	v.SetDefault("log_level", DefaultLogLevel)
}

// Validate checks every setting against its allowed range.
func (c *Config) Validate() error {
	if err := c.Acquisition.Validate(); err != nil {
		return err
	}

	switch c.Source.Driver {
	case "synth":
		if c.Source.Synth.Channels != 2 && c.Source.Synth.Channels != 3 {
			return errors.WithData(errors.ErrInvalidConfig, "synth channels must be 2 or 3")
		}
	case "serial":
		if c.Source.Serial.Port == "" {
			return errors.WithMessage(errors.ErrMissingConfig, "serial source requires a port")
		}
	default:
		return errors.WithData(errors.ErrInvalidConfig, "unknown source driver: "+c.Source.Driver)
	}

	if c.Archive.Enabled && c.Archive.DBPath == "" {
		return errors.WithMessage(errors.ErrMissingConfig, "archive requires a database path")
	}

	switch c.LogLevel {
	case "trace", "debug", "info", "warn", "error":
	default:
		return errors.WithData(errors.ErrInvalidLogLevel, c.LogLevel)
	}

	return nil
}

// Validate checks the acquisition settings. The editor reuses this before
// committing an edit, so invalid settings never reach a running session.
func (a Acquisition) Validate() error {
	if !scale.Valid(a.Unit) {
		return errors.WithData(errors.ErrInvalidUnit, a.Unit)
	}
	if a.Interval < 1 {
		return errors.WithData(errors.ErrInvalidInterval, a.Interval)
	}
	if a.Duration < 0 || a.Oversample < 0 || a.Update < 0 {
		return errors.WithMessage(errors.ErrInvalidConfig, "settings must not be negative")
	}

	return nil
}
