// Package biometric models the platform biometric prompt: what the hardware
// supports, how a prompt is configured, and the closed set of outcomes.
package biometric

import (
	"github.com/pmaschool/authcore/internal/shared/errors"
)

// Kind is a biometric modality reported by the platform.
type Kind string

const (
	KindFingerprint Kind = "fingerprint"
	KindFace        Kind = "facial_recognition"
	KindIris        Kind = "iris"
	KindUnknown     Kind = "unknown"
)

// Reason explains an availability result.
type Reason string

const (
	ReasonOK          Reason = "ok"
	ReasonNoHardware  Reason = "no_hardware"
	ReasonNotEnrolled Reason = "not_enrolled"
)

type Availability struct {
	Available      bool   `json:"available" yaml:"available"`
	Reason         Reason `json:"reason" yaml:"reason"`
	SupportedKinds []Kind `json:"supported_kinds" yaml:"supported_kinds"`
}

// NewAvailability derives the reason from hardware and enrollment flags.
func NewAvailability(hasHardware, enrolled bool, kinds []Kind) Availability {
	switch {
	case !hasHardware:
		return Availability{Reason: ReasonNoHardware}
	case !enrolled:
		return Availability{Reason: ReasonNotEnrolled, SupportedKinds: kinds}
	default:
		return Availability{Available: true, Reason: ReasonOK, SupportedKinds: kinds}
	}
}

// PrimaryKind picks face over fingerprint over iris.
func (a Availability) PrimaryKind() Kind {
	for _, k := range []Kind{KindFace, KindFingerprint, KindIris} {
		for _, s := range a.SupportedKinds {
			if s == k {
				return k
			}
		}
	}
	return KindUnknown
}

// ErrorKind is the closed set of gate failures.
type ErrorKind string

const (
	ErrNotAvailable       ErrorKind = "not_available"
	ErrNotEnrolled        ErrorKind = "not_enrolled"
	ErrNotEnabled         ErrorKind = "not_enabled"
	ErrNoStoredCredential ErrorKind = "no_stored_credential"
	ErrUserCanceled       ErrorKind = "user_canceled"
	ErrSystemCanceled     ErrorKind = "system_canceled"
	ErrLockout            ErrorKind = "lockout"
	ErrFailed             ErrorKind = "failed"
)

// ErrorType maps the kind onto the shared error taxonomy.
func (k ErrorKind) ErrorType() errors.ErrorType {
	return errors.ErrorType("biometric_" + string(k))
}

// Err builds the taxonomy error for k.
func (k ErrorKind) Err() *errors.AuthError {
	return errors.NewBiometricError(k.ErrorType())
}

// PromptConfig customizes the platform prompt.
type PromptConfig struct {
	PromptMessage         string
	CancelLabel           string
	DisableDeviceFallback bool
	RequireConfirmation   bool
}

// Outcome is the discriminated result of a prompt. On success Username and
// Secret carry the unlocked credential (empty for a presence-only check).
type Outcome struct {
	Success   bool
	Username  string
	Secret    string
	ErrorKind ErrorKind
}

func Succeeded(username, secret string) Outcome {
	return Outcome{Success: true, Username: username, Secret: secret}
}

func Failed(kind ErrorKind) Outcome {
	return Outcome{ErrorKind: kind}
}

// Err returns nil on success and the taxonomy error otherwise.
func (o Outcome) Err() error {
	if o.Success {
		return nil
	}
	return o.ErrorKind.Err()
}
