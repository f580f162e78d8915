// Package config handles the parsing and validation of application configuration
// from command-line arguments and environment variables.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/gartsh/serverboard/internal/logger"
	"github.com/gartsh/serverboard/internal/vars"
	"github.com/jessevdk/go-flags"
)

// Config represents the complete application flags configuration.
type Config struct {
	// betteralign:ignore

	Listing  Listing       `group:"Listing Options" namespace:"listing" env-namespace:"SERVERBOARD_LISTING"`
	Schedule Schedule      `group:"Scheduler Options" namespace:"tick" env-namespace:"SERVERBOARD_TICK"`
	Storage  Storage       `group:"Storage Options" namespace:"db" env-namespace:"SERVERBOARD_DB"`
	Discord  Discord       `group:"Discord Options" namespace:"discord" env-namespace:"SERVERBOARD_DISCORD"`
	Render   Render        `group:"Render Options" namespace:"render" env-namespace:"SERVERBOARD_RENDER"`
	Probe    Probe         `group:"Probe Options" namespace:"probe" env-namespace:"SERVERBOARD_PROBE"`
	GeoIP    GeoIP         `group:"GeoIP Options" namespace:"geoip" env-namespace:"SERVERBOARD_GEOIP"`
	Logger   logger.Config `group:"Logger Options" namespace:"log" env-namespace:"SERVERBOARD_LOG"`

	Version bool `short:"v" long:"version" description:"Print version and build info"`
}

// Listing holds remote server-listing endpoint configuration.
type Listing struct {
	URL     string        `short:"u" long:"url" env:"URL" description:"Server listing endpoint" default:"https://jpxs.international/api/servers"`
	Timeout time.Duration `long:"timeout" env:"TIMEOUT" description:"HTTP request timeout" default:"10s"`
}

// Schedule holds refresh timing configuration.
type Schedule struct {
	Interval time.Duration `long:"interval" env:"INTERVAL" description:"Refresh period" default:"1m"`
	Timeout  time.Duration `long:"timeout" env:"TIMEOUT" description:"Per-cycle deadline" default:"45s"`
}

// Storage holds database configuration.
type Storage struct {
	// betteralign:ignore

	Path          string `short:"d" long:"path" env:"PATH" description:"Path to SQLite database" default:"serverboard.db"`
	Namespace     string `long:"namespace" env:"NAMESPACE" description:"Key-value namespace for this deployment" default:"serverlist"`
	GenerateCount int    `long:"gen-fake-history" hidden:"true"`
}

// Discord holds bot transport configuration.
type Discord struct {
	Token      string `short:"t" long:"token" env:"TOKEN" description:"Bot token"`
	SetChannel string `long:"set-channel" description:"Persist the dashboard channel ID and exit"`
}

// Render holds layout configuration.
type Render struct {
	// betteralign:ignore

	Mode    string `long:"mode" env:"MODE" description:"Layout mode" choice:"grid" choice:"entity" default:"grid"`
	Title   string `long:"title" env:"TITLE" description:"Grid banner title" default:"Sub Rosa Server List"`
	FontDir string `long:"font-dir" env:"FONT_DIR" description:"Directory holding the Lato TTF files" default:"assets/fonts"`
	Tracked string `long:"tracked" env:"TRACKED" description:"Tracked entities YAML file (required for entity mode)"`
}

// Probe holds Source Query protocol configuration for direct server probes.
type Probe struct {
	Timeout    time.Duration `long:"timeout" env:"TIMEOUT" description:"Query timeout" default:"3s"`
	BufferSize uint16        `long:"buffer-size" env:"BUFFER_SIZE" description:"Response body buffer size" default:"1400"`
}

// GeoIP holds MaxMind GeoIP configuration.
type GeoIP struct {
	// betteralign:ignore

	Path     string        `short:"g" long:"path" env:"PATH" description:"Path to MMDB file (empty disables country tags)"`
	URL      string        `long:"url" env:"URL" description:"URL to download MMDB" default:"https://git.io/GeoLite2-Country.mmdb"`
	Interval time.Duration `long:"interval" env:"INTERVAL" description:"Update interval check" default:"24h"`
}

// Parse reads the configuration from flags and environment variables.
// It terminates the application if the configuration is invalid or if the help flag is invoked.
func Parse() *Config {
	var cfg Config
	parser := flags.NewParser(&cfg, flags.Default)
	parser.NamespaceDelimiter = "-"

	_, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
		}
		os.Exit(1)
	}

	if cfg.Version {
		vars.Print()
		os.Exit(0)
	}

	// Maintenance one-shots never touch the Discord API, so the token is
	// only required for the long-running service.
	maintenanceRun := cfg.Discord.SetChannel != "" || cfg.Storage.GenerateCount > 0

	if cfg.Discord.Token == "" && !maintenanceRun {
		fmt.Fprintln(os.Stderr,
			"Required flag `-t, --discord-token' or environment variable `SERVERBOARD_DISCORD_TOKEN` was not specified!")
		os.Exit(1)
	}

	if cfg.Render.Mode == "entity" && cfg.Render.Tracked == "" {
		fmt.Fprintln(os.Stderr,
			"Entity layout mode requires `--render-tracked' pointing at a tracked entities file!")
		os.Exit(1)
	}

	return &cfg
}
