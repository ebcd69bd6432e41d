package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	envConfigDefaultPath = "WIREBOT_CONFIG_DEFAULT_PATH"
	defaultConfigName    = "config.yaml"
)

// Load builds configuration from defaults, optional config file, env vars, and returns the resolved path.
// Precedence: defaults < config file < env vars.
func Load(logger *zerolog.Logger, explicitPath string) (Config, string, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v, cfg)

	v.SetEnvPrefix("WIREBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	configPath := resolveConfigPath(explicitPath)
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
			if writeErr := writeDefaultConfig(configPath, cfg); writeErr != nil && logger != nil {
				logger.Warn().Err(writeErr).Str("path", configPath).Msg("failed to write default config")
			} else if logger != nil {
				logger.Info().Str("path", configPath).Msg("created default config")
			}
			// try reading again in case it was just written
			if readErr := v.ReadInConfig(); readErr != nil && logger != nil {
				logger.Warn().Err(readErr).Str("path", configPath).Msg("failed to read config after writing default")
			}
		} else {
			return cfg, configPath, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, configPath, fmt.Errorf("unmarshal config: %w", err)
	}

	return cfg, configPath, nil
}

// setDefaults registers every scalar key so env overrides resolve even when
// the file omits them.
func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("log_level", cfg.LogLevel)

	v.SetDefault("server.url", cfg.Server.URL)
	v.SetDefault("server.server_id", cfg.Server.ServerID)
	v.SetDefault("server.action_url", cfg.Server.ActionURL)
	v.SetDefault("server.sockjs", cfg.Server.SockJS)
	v.SetDefault("server.subprotocols", cfg.Server.Subprotocols)
	v.SetDefault("server.reconnect_delay", cfg.Server.ReconnectDelay)
	v.SetDefault("server.reconnect_max_delay", cfg.Server.ReconnectMaxDelay)
	v.SetDefault("server.read_limit", cfg.Server.ReadLimit)

	v.SetDefault("account.nick", cfg.Account.Nick)
	v.SetDefault("account.pass", cfg.Account.Pass)

	v.SetDefault("rooms", cfg.Rooms)
	v.SetDefault("private_rooms", cfg.PrivateRooms)
	v.SetDefault("command_character", cfg.CommandCharacter)
	v.SetDefault("default_rank", cfg.DefaultRank)
	v.SetDefault("ranks", cfg.Ranks)
	v.SetDefault("excepts", cfg.Excepts)
	v.SetDefault("whitelist", cfg.Whitelist)
	v.SetDefault("regex_autoban_whitelist", cfg.RegexAutobanWhitelist)
	v.SetDefault("allow_mute", cfg.AllowMute)

	v.SetDefault("moderation.flood_messages", cfg.Moderation.FloodMessages)
	v.SetDefault("moderation.flood_window", cfg.Moderation.FloodWindow)
	v.SetDefault("moderation.flood_per_message_min", cfg.Moderation.FloodPerMessageMin)
	v.SetDefault("moderation.caps_min_length", cfg.Moderation.CapsMinLength)
	v.SetDefault("moderation.caps_proportion", cfg.Moderation.CapsProportion)
	v.SetDefault("moderation.action_cooldown", cfg.Moderation.ActionCooldown)
	v.SetDefault("moderation.zero_tolerance_threshold", cfg.Moderation.ZeroToleranceThreshold)
	v.SetDefault("moderation.sweep_interval", cfg.Moderation.SweepInterval)
	v.SetDefault("moderation.retention_window", cfg.Moderation.RetentionWindow)
	v.SetDefault("moderation.punishments", cfg.Moderation.Punishments)

	v.SetDefault("throttle.interval", cfg.Throttle.Interval)
	v.SetDefault("throttle.slack", cfg.Throttle.Slack)
	v.SetDefault("login.retry_delay", cfg.Login.RetryDelay)
	v.SetDefault("login.timeout", cfg.Login.Timeout)

	v.SetDefault("settings_path", cfg.SettingsPath)
	v.SetDefault("database_path", cfg.DatabasePath)
	v.SetDefault("bot_guide", cfg.BotGuide)
	v.SetDefault("fork", cfg.Fork)

	v.SetDefault("admin.addr", cfg.Admin.Addr)
	v.SetDefault("admin.username", cfg.Admin.Username)
	v.SetDefault("admin.password_hash", cfg.Admin.PasswordHash)
	v.SetDefault("admin.jwt_secret", cfg.Admin.JWTSecret)
	v.SetDefault("admin.jwt_issuer", cfg.Admin.JWTIssuer)
	v.SetDefault("admin.jwt_audience", cfg.Admin.JWTAudience)
	v.SetDefault("admin.token_ttl", cfg.Admin.TokenTTL)
	v.SetDefault("admin.read_header_timeout", cfg.Admin.ReadHeaderTimeout)
	v.SetDefault("admin.shutdown_timeout", cfg.Admin.ShutdownTimeout)
}

func resolveConfigPath(explicitPath string) string {
	if explicitPath != "" {
		return explicitPath
	}

	if base := os.Getenv(envConfigDefaultPath); base != "" {
		if err := os.MkdirAll(base, 0o755); err == nil {
			return filepath.Join(base, defaultConfigName)
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		return defaultConfigName
	}
	return filepath.Join(cwd, defaultConfigName)
}

func writeDefaultConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
