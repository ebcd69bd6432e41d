package config

import (
	"errors"
	"fmt"
	"time"
	"unicode"

	"github.com/vovakirdan/wirebot/internal/core"
	"github.com/vovakirdan/wirebot/internal/moderation"
)

// Config holds bot configuration values.
type Config struct {
	LogLevel string        `mapstructure:"log_level" yaml:"log_level"`
	Server   ServerConfig  `mapstructure:"server" yaml:"server"`
	Account  AccountConfig `mapstructure:"account" yaml:"account"`

	// Rooms are joined after login; PrivateRooms are joined but never
	// announced in seen records.
	Rooms        []string `mapstructure:"rooms" yaml:"rooms"`
	PrivateRooms []string `mapstructure:"private_rooms" yaml:"private_rooms"`

	CommandCharacter      string   `mapstructure:"command_character" yaml:"command_character"`
	DefaultRank           string   `mapstructure:"default_rank" yaml:"default_rank"`
	Ranks                 []string `mapstructure:"ranks" yaml:"ranks"`
	Excepts               []string `mapstructure:"excepts" yaml:"excepts"`
	Whitelist             []string `mapstructure:"whitelist" yaml:"whitelist"`
	RegexAutobanWhitelist []string `mapstructure:"regex_autoban_whitelist" yaml:"regex_autoban_whitelist"`

	AllowMute  bool               `mapstructure:"allow_mute" yaml:"allow_mute"`
	Moderation moderation.Options `mapstructure:"moderation" yaml:"moderation"`
	Throttle   ThrottleConfig     `mapstructure:"throttle" yaml:"throttle"`
	Login      LoginConfig        `mapstructure:"login" yaml:"login"`

	SettingsPath string `mapstructure:"settings_path" yaml:"settings_path"`
	// DatabasePath enables the sqlite activity journal when set.
	DatabasePath string `mapstructure:"database_path" yaml:"database_path"`

	BotGuide string `mapstructure:"bot_guide" yaml:"bot_guide"`
	Fork     string `mapstructure:"fork" yaml:"fork"`

	Admin AdminConfig `mapstructure:"admin" yaml:"admin"`
}

// ServerConfig describes the chat server connection.
type ServerConfig struct {
	URL      string `mapstructure:"url" yaml:"url"`
	ServerID string `mapstructure:"server_id" yaml:"server_id"`
	// ActionURL is the account server endpoint used for login assertions.
	ActionURL    string   `mapstructure:"action_url" yaml:"action_url"`
	SockJS       bool     `mapstructure:"sockjs" yaml:"sockjs"`
	Subprotocols []string `mapstructure:"subprotocols" yaml:"subprotocols"`
	// ReconnectDelay is the wait after a disconnect. When ReconnectMaxDelay
	// is larger the wait grows exponentially up to it.
	ReconnectDelay    time.Duration `mapstructure:"reconnect_delay" yaml:"reconnect_delay"`
	ReconnectMaxDelay time.Duration `mapstructure:"reconnect_max_delay" yaml:"reconnect_max_delay"`
	ReadLimit         int64         `mapstructure:"read_limit" yaml:"read_limit"`
}

// AccountConfig holds the bot's credentials.
type AccountConfig struct {
	Nick string `mapstructure:"nick" yaml:"nick"`
	Pass string `mapstructure:"pass" yaml:"pass"`
}

// ThrottleConfig bounds the outbound send rate.
type ThrottleConfig struct {
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
	Slack    time.Duration `mapstructure:"slack" yaml:"slack"`
}

// LoginConfig tunes the account server exchange.
type LoginConfig struct {
	RetryDelay time.Duration `mapstructure:"retry_delay" yaml:"retry_delay"`
	Timeout    time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// AdminConfig configures the optional HTTP admin API. It is disabled while
// Addr is empty.
type AdminConfig struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	Username          string        `mapstructure:"username" yaml:"username"`
	PasswordHash      string        `mapstructure:"password_hash" yaml:"password_hash"`
	JWTSecret         string        `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer         string        `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience       string        `mapstructure:"jwt_audience" yaml:"jwt_audience"`
	TokenTTL          time.Duration `mapstructure:"token_ttl" yaml:"token_ttl"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		LogLevel: "info",
		Server: ServerConfig{
			URL:            "ws://localhost:8000/showdown/websocket",
			ServerID:       "showdown",
			ActionURL:      "https://play.pokemonshowdown.com/~~showdown/action.php",
			ReconnectDelay: 60 * time.Second,
			ReadLimit:      1 << 20,
		},
		Account: AccountConfig{
			Nick: "WireBot",
		},
		CommandCharacter: ".",
		DefaultRank:      "%",
		Ranks:            append([]string(nil), core.DefaultTiers...),
		AllowMute:        true,
		Moderation:       moderation.DefaultOptions(),
		Throttle: ThrottleConfig{
			Interval: 650 * time.Millisecond,
			Slack:    5 * time.Millisecond,
		},
		Login: LoginConfig{
			RetryDelay: 60 * time.Second,
			Timeout:    30 * time.Second,
		},
		SettingsPath: "settings.json",
		Admin: AdminConfig{
			Username:          "admin",
			JWTIssuer:         "wirebot",
			JWTAudience:       "wirebot-admin",
			TokenTTL:          24 * time.Hour,
			ReadHeaderTimeout: 5 * time.Second,
			ShutdownTimeout:   5 * time.Second,
		},
	}
}

var (
	ErrCommandCharacter = errors.New("command character must contain at least one non-alphanumeric character")
	ErrNick             = errors.New("account nick is required")
)

// Validate rejects configurations the bot cannot run with.
func (c Config) Validate() error {
	if !hasSymbol(c.CommandCharacter) {
		return fmt.Errorf("%w: %q", ErrCommandCharacter, c.CommandCharacter)
	}
	if c.Account.Nick == "" {
		return ErrNick
	}
	if c.Server.URL == "" {
		return errors.New("server url is required")
	}
	if _, ok := core.ParseRank(c.DefaultRank); !ok {
		return fmt.Errorf("invalid default rank %q", c.DefaultRank)
	}
	if c.Admin.Addr != "" && (c.Admin.JWTSecret == "" || c.Admin.PasswordHash == "") {
		return errors.New("admin api requires jwt_secret and password_hash")
	}
	return nil
}

func hasSymbol(s string) bool {
	for _, r := range s {
		switch {
		case r == ' ', r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			continue
		}
		return true
	}
	return false
}

// RankTable builds the rank comparison table.
func (c Config) RankTable() core.Ranks {
	if len(c.Ranks) == 0 {
		return core.NewRanks(core.DefaultTiers)
	}
	return core.NewRanks(c.Ranks)
}
