// Package config loads holohud settings from defaults, an optional
// holohud.yaml, a .env file and HOLOHUD_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. HOLOHUD_SERVER_ADDR.
const EnvPrefix = "HOLOHUD"

// Config is the full application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Camera   CameraConfig   `mapstructure:"camera"`
	Screen   ScreenConfig   `mapstructure:"screen"`
	Vision   VisionConfig   `mapstructure:"vision"`
	Detector DetectorConfig `mapstructure:"detector"`
	Render   RenderConfig   `mapstructure:"render"`
	Store    StoreConfig    `mapstructure:"store"`
	Log      LogConfig      `mapstructure:"log"`
	Tray     TrayConfig     `mapstructure:"tray"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
	// StaticDir is served at /. Empty means search the usual web/ locations.
	StaticDir string `mapstructure:"static_dir"`
}

type CameraConfig struct {
	Device int `mapstructure:"device"`
	Width  int `mapstructure:"width"`
	Height int `mapstructure:"height"`
}

// ScreenConfig is the virtual HUD surface that panel positions map onto.
type ScreenConfig struct {
	Width  float64 `mapstructure:"width"`
	Height float64 `mapstructure:"height"`
}

type VisionConfig struct {
	IdleFPS         int           `mapstructure:"idle_fps"`
	ActiveFPS       int           `mapstructure:"active_fps"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	MotionThreshold float64       `mapstructure:"motion_threshold"`
}

type DetectorConfig struct {
	MaxHands        int           `mapstructure:"max_hands"`
	MinConfidence   float64       `mapstructure:"min_confidence"`
	MinTrackingConf float64       `mapstructure:"min_tracking_confidence"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
}

type RenderConfig struct {
	FPS int `mapstructure:"fps"`
}

type StoreConfig struct {
	Path   string `mapstructure:"path"`
	Record bool   `mapstructure:"record"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

type TrayConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// DataDir returns ~/.holohud, or .holohud when the home directory is unknown.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".holohud"
	}
	return filepath.Join(home, ".holohud")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.static_dir", "")

	v.SetDefault("camera.device", 0)
	v.SetDefault("camera.width", 640)
	v.SetDefault("camera.height", 480)

	v.SetDefault("screen.width", 1920.0)
	v.SetDefault("screen.height", 1080.0)

	v.SetDefault("vision.idle_fps", 5)
	v.SetDefault("vision.active_fps", 15)
	v.SetDefault("vision.idle_timeout", 2*time.Second)
	v.SetDefault("vision.motion_threshold", 1.0)

	v.SetDefault("detector.max_hands", 2)
	v.SetDefault("detector.min_confidence", 0.7)
	v.SetDefault("detector.min_tracking_confidence", 0.7)
	v.SetDefault("detector.idle_timeout", 30*time.Second)

	v.SetDefault("render.fps", 60)

	v.SetDefault("store.path", filepath.Join(DataDir(), "holohud.db"))
	v.SetDefault("store.record", true)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")

	v.SetDefault("tray.enabled", false)
}

// flagKeys maps command-line flags onto config keys.
var flagKeys = map[string]string{
	"addr":      "server.addr",
	"static":    "server.static_dir",
	"camera":    "camera.device",
	"db":        "store.path",
	"log-level": "log.level",
	"tray":      "tray.enabled",
}

// Flags returns the command-line flags Load understands.
func Flags() *pflag.FlagSet {
	set := pflag.NewFlagSet("holohud", pflag.ContinueOnError)
	set.StringP("config", "c", "", "config file (default holohud.yaml in . or "+DataDir()+")")
	set.String("addr", ":8080", "HTTP listen address")
	set.String("static", "", "directory of HUD front-end files")
	set.Int("camera", 0, "camera device index")
	set.String("db", "", "session database path")
	set.String("log-level", "info", "log level")
	set.Bool("tray", false, "show the system tray menu")
	return set
}

// Load reads configuration. Precedence, highest first: flags that were set,
// HOLOHUD_* environment (a .env in the working directory is applied first),
// the config file, defaults. A --config file must exist; otherwise
// holohud.yaml is looked up in . and DataDir() and is optional. flags may be
// nil.
func Load(flags *pflag.FlagSet) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	file := ""
	if flags != nil {
		file, _ = flags.GetString("config")
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	} else {
		v.SetConfigName("holohud")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(DataDir())
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the loop cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Screen.Width <= 0 || c.Screen.Height <= 0:
		return fmt.Errorf("invalid screen size %gx%g", c.Screen.Width, c.Screen.Height)
	case c.Vision.IdleFPS <= 0 || c.Vision.ActiveFPS <= 0:
		return fmt.Errorf("invalid vision cadence %d/%d fps", c.Vision.IdleFPS, c.Vision.ActiveFPS)
	case c.Render.FPS <= 0:
		return fmt.Errorf("invalid render fps %d", c.Render.FPS)
	case c.Detector.MaxHands <= 0:
		return fmt.Errorf("invalid max hands %d", c.Detector.MaxHands)
	}
	return nil
}
