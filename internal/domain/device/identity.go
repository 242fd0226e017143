// Package device holds the per-install device identity and the remote
// trust record that governs biometric login on it.
package device

import (
	"fmt"
	"strings"

	"github.com/pmaschool/authcore/internal/shared/errors"
)

const (
	PlatformIOS     = "ios"
	PlatformAndroid = "android"
	PlatformWeb     = "web"
)

// Identity describes this installation. DeviceID is derived once per install.
type Identity struct {
	DeviceID    string `json:"device_id" yaml:"device_id"`
	DisplayName string `json:"display_name" yaml:"display_name"`
	Platform    string `json:"platform" yaml:"platform"`
	OSVersion   string `json:"os_version" yaml:"os_version"`
	Model       string `json:"model" yaml:"model"`
	Brand       string `json:"brand" yaml:"brand"`
	IsPhysical  bool   `json:"is_physical" yaml:"is_physical"`
}

// BuildDeviceID prefixes the install id with the platform, e.g. "android-<uuid>".
func BuildDeviceID(platform, installID string) string {
	platform = strings.ToLower(strings.TrimSpace(platform))
	if platform == "" {
		platform = "unknown"
	}
	return fmt.Sprintf("%s-%s", platform, installID)
}

func (i Identity) Validate() error {
	if strings.TrimSpace(i.DeviceID) == "" {
		return errors.NewValidationError("device id is required")
	}
	if strings.TrimSpace(i.Platform) == "" {
		return errors.NewValidationError("device platform is required", i.DeviceID)
	}
	return nil
}

// IsZero reports whether the identity was never resolved.
func (i Identity) IsZero() bool {
	return i.DeviceID == ""
}
