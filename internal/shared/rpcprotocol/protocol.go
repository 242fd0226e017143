// Package rpcprotocol defines the JSON-RPC wire types of the school backend.
// These types are shared between the authority client (infrastructure) and
// the development authority server (interfaces).
package rpcprotocol

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Endpoint paths.
const (
	PathDatabaseList = "/web/database/list"
	PathAuthenticate = "/web/session/authenticate"
	PathSessionInfo  = "/web/session/get_session_info"
	PathDestroy      = "/web/session/destroy"
	PathCallKW       = "/web/dataset/call_kw"
)

const (
	HeaderSessionID = "X-Openerp-Session-Id"
	CookieSessionID = "session_id"
	Version         = "2.0"
	MethodCall      = "call"
)

// Models and their remote methods.
const (
	ModelDevice  = "biometric.device"
	ModelAuthLog = "biometric.auth.log"
	ModelUsers   = "res.users"

	MethodRegisterDevice = "register_device"
	MethodValidateDevice = "validate_device"
	MethodRevokeDevice   = "action_revoke"
	MethodActivateDevice = "action_activate"
	MethodDisableDevice  = "action_disable"
	MethodLogAuth        = "log_authentication"
	MethodLogTraditional = "log_traditional_login"
	MethodEndSession     = "end_session"
	MethodRead           = "read"
	FieldProfileImage    = "image_128"
)

// Error codes.
const (
	CodeSessionExpired = 100
	CodeServerError    = 200
)

type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

type Error struct {
	Code    int        `json:"code"`
	Message string     `json:"message"`
	Data    *ErrorData `json:"data,omitempty"`
}

type ErrorData struct {
	Name      string   `json:"name,omitempty"`
	Message   string   `json:"message,omitempty"`
	Arguments []string `json:"arguments,omitempty"`
	Debug     string   `json:"debug,omitempty"`
}

func (e *Error) Error() string {
	return e.UserMessage()
}

// UserMessage extracts the most specific human readable message.
func (e *Error) UserMessage() string {
	if e.Data != nil {
		if len(e.Data.Arguments) > 0 && e.Data.Arguments[0] != "" {
			return e.Data.Arguments[0]
		}
		if e.Data.Message != "" && e.Data.Message != e.Message {
			return e.Data.Message
		}
	}
	if e.Message != "" {
		return e.Message
	}
	return "unknown server error"
}

// IsSessionExpired reports whether the server rejected the session itself.
func (e *Error) IsSessionExpired() bool {
	if e == nil {
		return false
	}
	if e.Code == CodeSessionExpired {
		return true
	}
	if e.Data != nil && strings.Contains(e.Data.Name, "SessionExpired") {
		return true
	}
	text := strings.ToLower(e.text())
	for _, marker := range []string{"session expired", "session_expired", "sessionexpiredexception"} {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}

// IsAccessDenied reports an access denial, which on an authenticated call
// means the session is no longer valid.
func (e *Error) IsAccessDenied() bool {
	if e == nil {
		return false
	}
	text := strings.ToLower(e.text())
	for _, marker := range []string{"access denied", "access_denied", "accessdenied"} {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}

func (e *Error) text() string {
	parts := []string{e.Message}
	if e.Data != nil {
		parts = append(parts, e.Data.Name, e.Data.Message, e.Data.Debug)
		parts = append(parts, e.Data.Arguments...)
	}
	return strings.Join(parts, " ")
}

type AuthenticateParams struct {
	DB       string `json:"db"`
	Login    string `json:"login"`
	Password string `json:"password"`
}

// SessionInfo is the result of authenticate and get_session_info.
type SessionInfo struct {
	UID         FlexID         `json:"uid"`
	Username    string         `json:"username"`
	Name        string         `json:"name"`
	Email       string         `json:"email,omitempty"`
	Role        string         `json:"role,omitempty"`
	PartnerID   FlexID         `json:"partner_id,omitempty"`
	SessionID   string         `json:"session_id,omitempty"`
	ExpiresAt   string         `json:"expires_at,omitempty"`
	UserContext map[string]any `json:"user_context,omitempty"`
}

type CallKWParams struct {
	Model  string          `json:"model"`
	Method string          `json:"method"`
	Args   []any           `json:"args"`
	Kwargs json.RawMessage `json:"kwargs,omitempty"`
}

type DeviceIDKwargs struct {
	DeviceID string `json:"device_id"`
}

type ValidateDeviceResult struct {
	Valid         bool   `json:"valid"`
	DeviceOdooID  FlexID `json:"device_odoo_id"`
	Status        string `json:"status,omitempty"`
	CanReactivate bool   `json:"can_reactivate"`
	Message       string `json:"message"`
}

type RegisterDeviceKwargs struct {
	DeviceID             string `json:"device_id"`
	DeviceName           string `json:"device_name"`
	Platform             string `json:"platform"`
	OSVersion            string `json:"os_version"`
	ModelName            string `json:"model_name"`
	Brand                string `json:"brand"`
	BiometricType        string `json:"biometric_type"`
	BiometricTypeDisplay string `json:"biometric_type_display"`
	IsPhysicalDevice     bool   `json:"is_physical_device"`
	DeviceInfoJSON       string `json:"device_info_json,omitempty"`
}

type DeviceRecord struct {
	ID                   FlexID `json:"id"`
	DeviceID             string `json:"device_id"`
	DeviceName           string `json:"device_name"`
	Platform             string `json:"platform"`
	OSVersion            string `json:"os_version"`
	ModelName            string `json:"model_name"`
	Brand                string `json:"brand"`
	BiometricType        string `json:"biometric_type"`
	BiometricTypeDisplay string `json:"biometric_type_display"`
	IsPhysicalDevice     bool   `json:"is_physical_device"`
	State                string `json:"state"`
	EnrolledAt           string `json:"enrolled_at,omitempty"`
	LastUsedAt           string `json:"last_used_at,omitempty"`
}

type ErrorInfo struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

type LogAuthKwargs struct {
	DeviceID   string     `json:"device_id,omitempty"`
	DeviceUUID string     `json:"device_uuid,omitempty"`
	AuthMethod string     `json:"auth_method"`
	Success    bool       `json:"success"`
	ErrorInfo  *ErrorInfo `json:"error_info,omitempty"`
	SessionID  string     `json:"session_id,omitempty"`
	DurationMs int64      `json:"duration_ms,omitempty"`
}

type LogTraditionalKwargs struct {
	SessionID  string         `json:"session_id,omitempty"`
	DeviceInfo map[string]any `json:"device_info,omitempty"`
}

type EndSessionKwargs struct {
	SessionID  string `json:"session_id,omitempty"`
	DeviceUUID string `json:"device_uuid"`
}

// MethodResult is the envelope most model methods answer with.
type MethodResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// FlexID accepts the backend's integer ids, string ids and false for "none".
type FlexID string

func (f *FlexID) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	switch {
	case s == "null" || s == "false" || s == "":
		*f = ""
	case strings.HasPrefix(s, `"`):
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*f = FlexID(v)
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return err
		}
		*f = FlexID(n.String())
	}
	return nil
}

// MarshalJSON writes numeric ids as numbers and the empty id as false.
func (f FlexID) MarshalJSON() ([]byte, error) {
	if f == "" {
		return []byte("false"), nil
	}
	if _, err := strconv.ParseInt(string(f), 10, 64); err == nil {
		return []byte(f), nil
	}
	return json.Marshal(string(f))
}

func (f FlexID) String() string { return string(f) }

// Int64 returns the numeric value, or 0 for non-numeric ids.
func (f FlexID) Int64() int64 {
	n, err := strconv.ParseInt(string(f), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// NewRequest wraps params into a call envelope.
func NewRequest(id int64, params any) (*Request, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	return &Request{JSONRPC: Version, ID: id, Method: MethodCall, Params: raw}, nil
}
