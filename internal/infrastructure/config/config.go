package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	sharedConfig "github.com/pmaschool/authcore/internal/shared/config"
)

type Config struct {
	Logger       sharedConfig.LoggerConfig       `mapstructure:"logger"`
	Authority    sharedConfig.AuthorityConfig    `mapstructure:"authority"`
	Store        sharedConfig.StoreConfig        `mapstructure:"store"`
	Device       sharedConfig.DeviceConfig       `mapstructure:"device"`
	Biometric    sharedConfig.BiometricConfig    `mapstructure:"biometric"`
	Monitor      sharedConfig.MonitorConfig      `mapstructure:"monitor"`
	DevAuthority sharedConfig.DevAuthorityConfig `mapstructure:"devauthority"`
	UI           sharedConfig.UIConfig           `mapstructure:"ui"`
}

var (
	appConfig   *Config
	appConfigMu sync.RWMutex
)

// Load reads configuration from an optional yaml file and AUTHCORE_ environment
// variables. An explicit file that cannot be read is an error; a missing default
// file is not.
func Load(file string) (*Config, error) {
	v := viper.New()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath("../configs")
		v.AddConfigPath("$HOME/.authcore")
	}

	v.SetEnvPrefix("AUTHCORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(&config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	appConfigMu.Lock()
	appConfig = &config
	appConfigMu.Unlock()

	return &config, nil
}

// Get returns the loaded configuration
func Get() *Config {
	appConfigMu.RLock()
	defer appConfigMu.RUnlock()
	return appConfig
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.output_path", "stderr")

	v.SetDefault("authority.base_url", "http://127.0.0.1:8069")
	v.SetDefault("authority.database", "school")
	v.SetDefault("authority.timeout_seconds", 30)

	v.SetDefault("store.path", "authcore.db")
	// Development key; real installs must override store.master_key.
	v.SetDefault("store.master_key", strings.Repeat("00", 32))

	v.SetDefault("device.platform", "")

	v.SetDefault("biometric.prompt_message", "Confirm your identity to sign in")
	v.SetDefault("biometric.cancel_label", "Cancel")
	v.SetDefault("biometric.disable_device_fallback", true)
	v.SetDefault("biometric.kinds", []string{"fingerprint"})
	v.SetDefault("biometric.sensor_pin", "")
	v.SetDefault("biometric.max_attempts", 5)

	v.SetDefault("monitor.guard_debounce_ms", 300)

	v.SetDefault("devauthority.host", "127.0.0.1")
	v.SetDefault("devauthority.port", 8069)
	v.SetDefault("devauthority.jwt_secret", "change-me-in-production")
	v.SetDefault("devauthority.session_ttl_minutes", 240)
	v.SetDefault("devauthority.bcrypt_cost", 10)
	v.SetDefault("devauthority.database", "school")
	v.SetDefault("devauthority.admin_token", "")

	v.SetDefault("ui.language", "es")
}
