package config

import (
	"fmt"
	"time"
)

type LoggerConfig struct {
	Level      string `mapstructure:"level" validate:"omitempty,oneof=debug info warn warning error"`
	Format     string `mapstructure:"format" validate:"omitempty,oneof=console json"`
	OutputPath string `mapstructure:"output_path"`
}

// IsDebug reports whether source locations should be attached to every level.
func (l *LoggerConfig) IsDebug() bool {
	return l.Level == "debug"
}

type AuthorityConfig struct {
	BaseURL        string `mapstructure:"base_url" validate:"required,url"`
	Database       string `mapstructure:"database" validate:"required"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" validate:"gt=0"`
}

func (a *AuthorityConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutSeconds) * time.Second
}

type StoreConfig struct {
	Path string `mapstructure:"path" validate:"required"`
	// MasterKey is the hex encoded 32 byte install key.
	MasterKey string `mapstructure:"master_key" validate:"required,hexadecimal,len=64"`
}

type DeviceConfig struct {
	Platform string `mapstructure:"platform"`
}

type BiometricConfig struct {
	PromptMessage         string `mapstructure:"prompt_message"`
	CancelLabel           string `mapstructure:"cancel_label"`
	DisableDeviceFallback bool   `mapstructure:"disable_device_fallback"`
	// Kinds and SensorPIN drive the terminal sensor. An empty PIN reports
	// hardware without enrolled biometrics.
	Kinds       []string `mapstructure:"kinds" validate:"dive,oneof=fingerprint facial_recognition iris"`
	SensorPIN   string   `mapstructure:"sensor_pin"`
	MaxAttempts int      `mapstructure:"max_attempts" validate:"gte=1"`
}

type MonitorConfig struct {
	GuardDebounceMs int `mapstructure:"guard_debounce_ms" validate:"gte=0"`
}

func (m *MonitorConfig) GuardDebounce() time.Duration {
	return time.Duration(m.GuardDebounceMs) * time.Millisecond
}

type DevAuthorityConfig struct {
	Host              string `mapstructure:"host"`
	Port              int    `mapstructure:"port" validate:"gt=0,lte=65535"`
	JWTSecret         string `mapstructure:"jwt_secret" validate:"required,min=16"`
	SessionTTLMinutes int    `mapstructure:"session_ttl_minutes" validate:"gt=0"`
	BcryptCost        int    `mapstructure:"bcrypt_cost" validate:"gte=4,lte=31"`
	Database          string `mapstructure:"database" validate:"required"`
	// AdminToken guards /admin. Empty disables the admin routes.
	AdminToken string     `mapstructure:"admin_token"`
	SeedUsers  []SeedUser `mapstructure:"seed_users" validate:"dive"`
}

// SeedUser is an account created when the development authority starts.
type SeedUser struct {
	Username string `mapstructure:"username" validate:"required"`
	Password string `mapstructure:"password" validate:"required"`
	Name     string `mapstructure:"name"`
	Role     string `mapstructure:"role"`
}

func (d *DevAuthorityConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", d.Host, d.Port)
}

func (d *DevAuthorityConfig) SessionTTL() time.Duration {
	return time.Duration(d.SessionTTLMinutes) * time.Minute
}

type UIConfig struct {
	Language string `mapstructure:"language" validate:"omitempty,oneof=en es"`
}
