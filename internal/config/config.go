package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const EnvPrefix = "PONG"

var ErrInvalidServer = errors.New("server must be an absolute http or https URL")
var ErrInvalidCookie = errors.New("session cookie must look like name=value")
var ErrInvalidInterval = errors.New("interval must be positive")

type Config struct {
	Server        string
	ProfilePath   string
	GamePath      string
	LoginPath     string
	Tournament    string
	SessionCookie string

	MaxReconnects int
	ReconnectBase time.Duration
	ReconnectCap  time.Duration
	Heartbeat     time.Duration
	ResumeGrace   time.Duration

	InputInterval time.Duration
	Frame         time.Duration
	KeyHold       time.Duration

	Lang       string
	StatusAddr string
	LogFile    string
	LogLevel   string
	Verbose    bool
	EnvFile    string
}

// Default returns the configuration used when no flag or env var is set.
func Default() Config {
	return Config{
		Server:        "http://localhost:8000",
		ProfilePath:   "/api/profile/",
		GamePath:      "/ws/game/",
		LoginPath:     "/login/",
		MaxReconnects: 10,
		ReconnectBase: time.Second,
		ReconnectCap:  30 * time.Second,
		Heartbeat:     30 * time.Second,
		ResumeGrace:   5 * time.Second,
		InputInterval: 50 * time.Millisecond,
		Frame:         16 * time.Millisecond,
		KeyHold:       120 * time.Millisecond,
		Lang:          "en",
		LogFile:       "pong.log",
		LogLevel:      "info",
		EnvFile:       ".env",
	}
}

// LoadDotenv reads KEY=value pairs from path into the environment. A missing
// file is not an error; variables already set are left alone.
func LoadDotenv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Bind registers cfg's flags on cmd and backs every flag with a PONG_*
// environment variable. Flags given on the command line win.
func Bind(cmd *cobra.Command, cfg *Config) {
	d := Default()
	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.Server, "server", "s", d.Server, "http(s) base URL of the game server (env: PONG_SERVER)")
	fs.StringVar(&cfg.ProfilePath, "profile-path", d.ProfilePath, "session profile endpoint (env: PONG_PROFILE_PATH)")
	fs.StringVar(&cfg.GamePath, "game-path", d.GamePath, "game channel endpoint (env: PONG_GAME_PATH)")
	fs.StringVar(&cfg.LoginPath, "login-path", d.LoginPath, "where to sign in when the session is invalid (env: PONG_LOGIN_PATH)")
	fs.StringVarP(&cfg.Tournament, "tournament", "t", "", "tournament id to follow (env: PONG_TOURNAMENT)")
	fs.StringVar(&cfg.SessionCookie, "session-cookie", "", "session cookie as name=value (env: PONG_SESSION_COOKIE)")
	fs.IntVar(&cfg.MaxReconnects, "max-reconnects", d.MaxReconnects, "reconnect attempts before giving up (env: PONG_MAX_RECONNECTS)")
	fs.DurationVar(&cfg.ReconnectBase, "reconnect-base", d.ReconnectBase, "delay before the first reconnect (env: PONG_RECONNECT_BASE)")
	fs.DurationVar(&cfg.ReconnectCap, "reconnect-cap", d.ReconnectCap, "upper bound on reconnect delay (env: PONG_RECONNECT_CAP)")
	fs.DurationVar(&cfg.Heartbeat, "heartbeat", d.Heartbeat, "keepalive interval (env: PONG_HEARTBEAT)")
	fs.DurationVar(&cfg.ResumeGrace, "resume-grace", d.ResumeGrace, "how long to wait for an interrupted match after reconnecting (env: PONG_RESUME_GRACE)")
	fs.DurationVar(&cfg.InputInterval, "input-interval", d.InputInterval, "minimum time between paddle moves (env: PONG_INPUT_INTERVAL)")
	fs.DurationVar(&cfg.Frame, "frame", d.Frame, "render frame interval (env: PONG_FRAME)")
	fs.DurationVar(&cfg.KeyHold, "key-hold", d.KeyHold, "how long a key counts as held after its last repeat (env: PONG_KEY_HOLD)")
	fs.StringVar(&cfg.Lang, "lang", d.Lang, "status text language: en, fr or es (env: PONG_LANG)")
	fs.StringVar(&cfg.StatusAddr, "status-addr", "", "serve session status on this address, empty to disable (env: PONG_STATUS_ADDR)")
	fs.StringVar(&cfg.LogFile, "log-file", d.LogFile, "log destination, - for stderr (env: PONG_LOG_FILE)")
	fs.StringVar(&cfg.LogLevel, "log-level", d.LogLevel, "debug, info, warn or error (env: PONG_LOG_LEVEL)")
	fs.BoolVarP(&cfg.Verbose, "verbose", "v", false, "development logging (env: PONG_VERBOSE)")
	fs.StringVar(&cfg.EnvFile, "env-file", d.EnvFile, "optional file of PONG_* variables to load first")

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	fs.VisitAll(func(f *pflag.Flag) {
		if f.Name == "env-file" {
			return
		}
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
	})

	// Env values are applied once the command line is parsed, so that an
	// explicit flag is never overwritten.
	prev := cmd.PreRunE
	cmd.PreRunE = func(c *cobra.Command, args []string) error {
		if err := LoadDotenv(cfg.EnvFile); err != nil {
			return err
		}
		var err error
		fs.VisitAll(func(f *pflag.Flag) {
			if err != nil || f.Changed || f.Name == "env-file" || !v.IsSet(f.Name) {
				return
			}
			if serr := fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name))); serr != nil {
				err = fmt.Errorf("env %s_%s: %w", EnvPrefix, strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_")), serr)
			}
		})
		if err != nil {
			return err
		}
		if prev != nil {
			return prev(c, args)
		}
		return nil
	}
}

func (c *Config) Validate() error {
	u, err := url.Parse(c.Server)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%w: %q", ErrInvalidServer, c.Server)
	}
	for name, d := range map[string]time.Duration{
		"reconnect-base": c.ReconnectBase,
		"reconnect-cap":  c.ReconnectCap,
		"heartbeat":      c.Heartbeat,
		"resume-grace":   c.ResumeGrace,
		"input-interval": c.InputInterval,
		"frame":          c.Frame,
		"key-hold":       c.KeyHold,
	} {
		if d <= 0 {
			return fmt.Errorf("%w: --%s=%v", ErrInvalidInterval, name, d)
		}
	}
	if c.ReconnectCap < c.ReconnectBase {
		return fmt.Errorf("--reconnect-cap (%v) must not be below --reconnect-base (%v)", c.ReconnectCap, c.ReconnectBase)
	}
	if c.MaxReconnects < 0 {
		return fmt.Errorf("--max-reconnects must not be negative: %d", c.MaxReconnects)
	}
	if c.SessionCookie != "" {
		if _, err := c.Cookie(); err != nil {
			return err
		}
	}
	return nil
}

// Cookie parses SessionCookie. It returns nil, nil when none is configured.
func (c *Config) Cookie() (*http.Cookie, error) {
	if c.SessionCookie == "" {
		return nil, nil
	}
	name, value, ok := strings.Cut(c.SessionCookie, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" || strings.ContainsAny(name, " ;,") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCookie, c.SessionCookie)
	}
	return &http.Cookie{Name: name, Value: strings.TrimSpace(value)}, nil
}

func (c *Config) ServerURL() (*url.URL, error) {
	u, err := url.Parse(c.Server)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (c *Config) ProfileURL() string { return c.httpURL(c.ProfilePath) }

func (c *Config) LoginURL() string { return c.httpURL(c.LoginPath) }

// GameURL is the game channel endpoint; wss when the server is https.
func (c *Config) GameURL() string { return c.wsURL(c.GamePath) }

func (c *Config) TournamentURL(id string) string {
	return c.wsURL(path.Join("/ws/tournament", id) + "/")
}

func (c *Config) httpURL(p string) string {
	u, err := c.ServerURL()
	if err != nil {
		return ""
	}
	u.Path = joinPath(u.Path, p)
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}

func (c *Config) wsURL(p string) string {
	u, err := c.ServerURL()
	if err != nil {
		return ""
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = joinPath(u.Path, p)
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}

// joinPath keeps a trailing slash on p, which the server's routes rely on.
func joinPath(base, p string) string {
	j := path.Join("/", base, p)
	if strings.HasSuffix(p, "/") && !strings.HasSuffix(j, "/") {
		j += "/"
	}
	return j
}
