package errors

import (
	stderrors "errors"
	"net/http"
)

// Closed set of failures a login, logout or biometrics flow can end with.
const (
	ErrorTypeServerUnavailable  ErrorType = "server_unavailable"
	ErrorTypeInvalidCredentials ErrorType = "invalid_credentials"
	ErrorTypeNoRoleAssigned     ErrorType = "no_role_assigned"
	ErrorTypeSessionEstablish   ErrorType = "session_establish_error"
	ErrorTypeDeviceDisabled     ErrorType = "device_disabled"
	ErrorTypeDeviceRevoked      ErrorType = "device_revoked"
	ErrorTypeSessionExpired     ErrorType = "session_expired"
	ErrorTypeUnexpected         ErrorType = "unexpected_error"

	ErrorTypeBiometricNotAvailable       ErrorType = "biometric_not_available"
	ErrorTypeBiometricNotEnrolled        ErrorType = "biometric_not_enrolled"
	ErrorTypeBiometricNotEnabled         ErrorType = "biometric_not_enabled"
	ErrorTypeBiometricNoStoredCredential ErrorType = "biometric_no_stored_credential"
	ErrorTypeBiometricUserCanceled       ErrorType = "biometric_user_canceled"
	ErrorTypeBiometricSystemCanceled     ErrorType = "biometric_system_canceled"
	ErrorTypeBiometricLockout            ErrorType = "biometric_lockout"
	ErrorTypeBiometricFailed             ErrorType = "biometric_failed"
)

// AuthError represents authentication-specific errors with security context
type AuthError struct {
	*AppError
	// ShouldLog is false for expected outcomes such as a wrong password.
	ShouldLog bool
	// SecurityEvent marks errors worth reporting as an auth event.
	SecurityEvent bool
}

// Error implements the error interface
func (e *AuthError) Error() string {
	return e.AppError.Error()
}

// Unwrap allows errors.Is and errors.As to work correctly
func (e *AuthError) Unwrap() error {
	return e.AppError
}

func newAuthError(t ErrorType, message string, code int, detail string, shouldLog, security bool) *AuthError {
	return &AuthError{
		AppError: &AppError{
			Type:    t,
			Message: message,
			Code:    code,
			Details: detail,
		},
		ShouldLog:     shouldLog,
		SecurityEvent: security,
	}
}

// NewServerUnavailableError is returned when the health check fails. No retry is attempted.
func NewServerUnavailableError(details ...string) *AuthError {
	return newAuthError(ErrorTypeServerUnavailable, "Server is unavailable",
		http.StatusServiceUnavailable, firstOr(details, ""), true, false)
}

// NewInvalidCredentialsError does not reveal which of username or password was wrong.
func NewInvalidCredentialsError(details ...string) *AuthError {
	return newAuthError(ErrorTypeInvalidCredentials, "Invalid username or password",
		http.StatusUnauthorized, firstOr(details, ""), false, true)
}

// DetailStaleCredentials marks an invalid-credentials error raised for a
// stored biometric secret rather than typed input.
const DetailStaleCredentials = "stored credentials are no longer valid, log in manually"

// NewNoRoleAssignedError is returned when the account authenticated but carries no role.
func NewNoRoleAssignedError() *AuthError {
	return newAuthError(ErrorTypeNoRoleAssigned, "No role assigned to this account",
		http.StatusForbidden, "Contact the school administrator", false, true)
}

// NewSessionEstablishError is returned when the password was accepted but the
// session could not be verified.
func NewSessionEstablishError(details ...string) *AuthError {
	return newAuthError(ErrorTypeSessionEstablish, "Could not establish session",
		http.StatusBadGateway, firstOr(details, ""), true, false)
}

func NewDeviceDisabledError() *AuthError {
	return newAuthError(ErrorTypeDeviceDisabled, "Device is disabled",
		http.StatusForbidden, "An administrator can re-enable this device", false, true)
}

func NewDeviceRevokedError() *AuthError {
	return newAuthError(ErrorTypeDeviceRevoked, "Device has been revoked",
		http.StatusForbidden, "Biometric login was removed from this device", true, true)
}

func NewSessionExpiredError() *AuthError {
	return newAuthError(ErrorTypeSessionExpired, "Session has expired",
		http.StatusUnauthorized, "Please login again", false, false)
}

// NewUnexpectedError wraps any failure outside the closed set.
func NewUnexpectedError(details ...string) *AuthError {
	return newAuthError(ErrorTypeUnexpected, "Unexpected error",
		http.StatusInternalServerError, firstOr(details, ""), true, false)
}

var biometricMessages = map[ErrorType]string{
	ErrorTypeBiometricNotAvailable:       "Biometric authentication is not available",
	ErrorTypeBiometricNotEnrolled:        "No biometrics enrolled on this device",
	ErrorTypeBiometricNotEnabled:         "Biometric login is not enabled",
	ErrorTypeBiometricNoStoredCredential: "No stored credential for biometric login",
	ErrorTypeBiometricUserCanceled:       "Authentication canceled",
	ErrorTypeBiometricSystemCanceled:     "Authentication canceled by the system",
	ErrorTypeBiometricLockout:            "Too many attempts, biometrics locked",
	ErrorTypeBiometricFailed:             "Biometric authentication failed",
}

// NewBiometricError builds the error for one of the ErrorTypeBiometric* kinds.
// Unknown kinds collapse to ErrorTypeBiometricFailed.
func NewBiometricError(t ErrorType, details ...string) *AuthError {
	msg, ok := biometricMessages[t]
	if !ok {
		t = ErrorTypeBiometricFailed
		msg = biometricMessages[t]
	}
	return newAuthError(t, msg, http.StatusUnauthorized, firstOr(details, ""),
		t != ErrorTypeBiometricUserCanceled, t == ErrorTypeBiometricLockout)
}

// IsBiometricErrorType reports whether t belongs to the biometric kinds.
func IsBiometricErrorType(t ErrorType) bool {
	_, ok := biometricMessages[t]
	return ok
}

// GetAuthError extracts AuthError from error chain (supports wrapped errors via errors.As)
func GetAuthError(err error) *AuthError {
	var authErr *AuthError
	if stderrors.As(err, &authErr) {
		return authErr
	}
	return nil
}

// KindOf returns the taxonomy kind of err. Errors outside the taxonomy report
// ErrorTypeUnexpected; nil reports "".
func KindOf(err error) ErrorType {
	if err == nil {
		return ""
	}
	if authErr := GetAuthError(err); authErr != nil {
		return authErr.Type
	}
	return ErrorTypeUnexpected
}

// IsSilent reports whether err must not be shown to the user.
func IsSilent(err error) bool {
	return KindOf(err) == ErrorTypeBiometricUserCanceled
}

// ShouldLogAuthError returns true if the authentication error should be logged
func ShouldLogAuthError(err error) bool {
	if authErr := GetAuthError(err); authErr != nil {
		return authErr.ShouldLog
	}
	return true
}

// IsSecurityEvent returns true if the error should be tracked as a security event
func IsSecurityEvent(err error) bool {
	if authErr := GetAuthError(err); authErr != nil {
		return authErr.SecurityEvent
	}
	return false
}
