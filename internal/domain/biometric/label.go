package biometric

import "strings"

const GenericLabel = "Biometrics"

// Label names the biometric for prompts and messages. Several supported kinds
// get the generic label since the prompt may accept any of them.
func Label(platform string, kinds []Kind) string {
	if len(kinds) != 1 {
		return GenericLabel
	}

	if strings.EqualFold(platform, "ios") {
		switch kinds[0] {
		case KindFace:
			return "Face ID"
		case KindFingerprint:
			return "Touch ID"
		}
	}

	switch kinds[0] {
	case KindFingerprint:
		return "Fingerprint"
	case KindFace:
		return "Facial Recognition"
	case KindIris:
		return "Iris Recognition"
	default:
		return GenericLabel
	}
}

// ClassifyPlatformError maps a raw platform failure string onto ErrorKind.
// An empty error means the prompt was dismissed without a reason.
func ClassifyPlatformError(raw string) ErrorKind {
	s := strings.ToLower(raw)
	switch {
	case s == "":
		return ErrUserCanceled
	case strings.Contains(s, "lockout"), strings.Contains(s, "bloqueado"):
		return ErrLockout
	case strings.Contains(s, "system"), strings.Contains(s, "sistema"), strings.Contains(s, "app_cancel"):
		return ErrSystemCanceled
	case strings.Contains(s, "cancel"):
		return ErrUserCanceled
	case strings.Contains(s, "not_enrolled"):
		return ErrNotEnrolled
	case strings.Contains(s, "not_available"), strings.Contains(s, "passcode_not_set"):
		return ErrNotAvailable
	default:
		return ErrFailed
	}
}
