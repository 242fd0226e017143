// Package platform adapts the host the client runs on: its description for
// the device identity and a terminal stand-in for the biometric sensor.
package platform

import (
	"context"
	"os"
	"runtime"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/pmaschool/authcore/internal/application/identity"
)

// HostSource describes the machine through the Go runtime and the OS.
type HostSource struct {
	platform  string
	hostname  func() (string, error)
	osRelease string
}

// NewHostSource reports platform when set, the runtime OS otherwise.
func NewHostSource(platform string) *HostSource {
	return &HostSource{
		platform:  strings.ToLower(strings.TrimSpace(platform)),
		hostname:  os.Hostname,
		osRelease: "/etc/os-release",
	}
}

var _ identity.MetadataSource = (*HostSource)(nil)

func (h *HostSource) Describe(ctx context.Context) (identity.Metadata, error) {
	if err := ctx.Err(); err != nil {
		return identity.Metadata{}, err
	}

	name, err := h.hostname()
	if err != nil || name == "" {
		name = "unknown-host"
	}

	return identity.Metadata{
		DisplayName: name,
		Platform:    Resolve(h.platform),
		OSVersion:   h.osVersion(),
		Model:       runtime.GOARCH,
		Brand:       cases.Title(language.Und).String(runtime.GOOS),
		IsPhysical:  !inContainer(),
	}, nil
}

// Resolve returns the configured platform, or the runtime OS when unset.
func Resolve(platform string) string {
	platform = strings.ToLower(strings.TrimSpace(platform))
	if platform == "" {
		return runtime.GOOS
	}
	return platform
}

// osVersion reads PRETTY_NAME from os-release, falling back to GOOS/GOARCH.
func (h *HostSource) osVersion() string {
	raw, err := os.ReadFile(h.osRelease)
	if err == nil {
		for _, line := range strings.Split(string(raw), "\n") {
			if v, ok := strings.CutPrefix(line, "PRETTY_NAME="); ok {
				return strings.Trim(v, `"`)
			}
		}
	}
	return runtime.GOOS + "/" + runtime.GOARCH
}

func inContainer() bool {
	_, err := os.Stat("/.dockerenv")
	return err == nil
}
