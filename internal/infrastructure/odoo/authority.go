package odoo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/pmaschool/authcore/internal/application/authority"
	"github.com/pmaschool/authcore/internal/domain/device"
	"github.com/pmaschool/authcore/internal/domain/session"
	rpc "github.com/pmaschool/authcore/internal/shared/rpcprotocol"
)

func (c *Client) CheckHealth(ctx context.Context) error {
	if _, err := c.post(ctx, rpc.PathDatabaseList, struct{}{}, false, nil); err != nil {
		if errors.Is(err, authority.ErrUnreachable) {
			return err
		}
		return fmt.Errorf("%w: %v", authority.ErrUnreachable, err)
	}
	return nil
}

// PasswordLogin opens a remote session and keeps its id. The id comes from
// the session cookie, or from the result when no cookie is set.
func (c *Client) PasswordLogin(ctx context.Context, username, secret string) (*authority.LoginResult, error) {
	var info rpc.SessionInfo
	resp, err := c.post(ctx, rpc.PathAuthenticate, rpc.AuthenticateParams{
		DB:       c.database,
		Login:    username,
		Password: secret,
	}, false, &info)
	if err != nil {
		// Only an access denial rejects the credentials. Other server faults
		// say nothing about the secret.
		if rpcErr := asRPCError(err); rpcErr != nil && rpcErr.IsAccessDenied() {
			return nil, fmt.Errorf("%w: %v", authority.ErrInvalidCredentials, err)
		}
		return nil, err
	}
	if info.UID == "" {
		return nil, authority.ErrInvalidCredentials
	}

	sid := sessionCookie(resp)
	if sid == "" {
		sid = info.SessionID
	}
	if sid == "" {
		return nil, fmt.Errorf("authenticate returned no session id")
	}
	c.setSessionID(ctx, sid)

	if strings.TrimSpace(info.Role) == "" {
		c.logger.Warnw("account has no role", "username", username)
		return nil, authority.ErrNoRoleAssigned
	}

	return &authority.LoginResult{
		Token:      sid,
		User:       toUser(info),
		RemoteRole: info.Role,
	}, nil
}

func (c *Client) VerifySession(ctx context.Context) (*authority.SessionInfo, error) {
	var info rpc.SessionInfo
	if _, err := c.post(ctx, rpc.PathSessionInfo, struct{}{}, true, &info); err != nil {
		return nil, err
	}
	if info.UID == "" {
		return nil, fmt.Errorf("%w: session has no user", authority.ErrUnauthorized)
	}
	return &authority.SessionInfo{
		User:       toUser(info),
		RemoteRole: info.Role,
		ExpiresAt:  parseTime(info.ExpiresAt),
	}, nil
}

func (c *Client) ValidateDevice(ctx context.Context, deviceID string) (*authority.DeviceValidation, error) {
	var res rpc.ValidateDeviceResult
	err := c.callKW(ctx, rpc.ModelDevice, rpc.MethodValidateDevice, nil, rpc.DeviceIDKwargs{DeviceID: deviceID}, &res)
	if err != nil {
		return nil, err
	}

	state := device.TrustActive
	if !res.Valid {
		state = device.ParseTrustState(res.Status)
	}
	return &authority.DeviceValidation{
		Valid:         res.Valid,
		TrustRecordID: res.DeviceOdooID.String(),
		State:         state,
		CanReactivate: res.CanReactivate,
		Message:       res.Message,
	}, nil
}

func (c *Client) RegisterDevice(ctx context.Context, req authority.RegisterDeviceRequest) (*device.TrustRecord, error) {
	id := req.Identity
	var rec rpc.DeviceRecord
	err := c.callKW(ctx, rpc.ModelDevice, rpc.MethodRegisterDevice, nil, rpc.RegisterDeviceKwargs{
		DeviceID:             id.DeviceID,
		DeviceName:           id.DisplayName,
		Platform:             id.Platform,
		OSVersion:            id.OSVersion,
		ModelName:            id.Model,
		Brand:                id.Brand,
		BiometricType:        req.BiometricKind,
		BiometricTypeDisplay: req.BiometricLabel,
		IsPhysicalDevice:     id.IsPhysical,
		DeviceInfoJSON:       req.DeviceInfoJSON,
	}, &rec)
	if err != nil {
		return nil, err
	}
	return &device.TrustRecord{
		ID:             rec.ID.String(),
		DeviceID:       rec.DeviceID,
		State:          device.ParseTrustState(rec.State),
		Identity:       id,
		BiometricKind:  rec.BiometricType,
		BiometricLabel: rec.BiometricTypeDisplay,
		EnrolledAt:     parseTime(rec.EnrolledAt),
	}, nil
}

func (c *Client) RevokeDevice(ctx context.Context, trustRecordID string) error {
	return c.recordAction(ctx, rpc.MethodRevokeDevice, trustRecordID)
}

// ActivateDevice re-enables a disabled trust record.
func (c *Client) ActivateDevice(ctx context.Context, trustRecordID string) error {
	return c.recordAction(ctx, rpc.MethodActivateDevice, trustRecordID)
}

func (c *Client) recordAction(ctx context.Context, method, trustRecordID string) error {
	var res rpc.MethodResult
	if err := c.callKW(ctx, rpc.ModelDevice, method, []any{[]any{recordID(trustRecordID)}}, nil, &res); err != nil {
		return err
	}
	if !res.Success {
		return fmt.Errorf("%s.%s: %s", rpc.ModelDevice, method, firstNonEmpty(res.Error, res.Message, "rejected"))
	}
	return nil
}

func (c *Client) LogAuthEvent(ctx context.Context, event authority.AuthEvent) error {
	sid := event.SessionID
	if sid == "" {
		sid = c.SessionID(ctx)
	}

	if event.Method == authority.MethodTraditional {
		return c.callKW(ctx, rpc.ModelAuthLog, rpc.MethodLogTraditional, nil, rpc.LogTraditionalKwargs{
			SessionID: sid,
			DeviceInfo: map[string]any{
				"device_id":   event.DeviceID,
				"duration_ms": event.DurationMs(),
			},
		}, nil)
	}

	kwargs := rpc.LogAuthKwargs{
		DeviceID:   event.TrustRecordID,
		DeviceUUID: event.DeviceID,
		AuthMethod: string(event.Method),
		Success:    event.Success,
		SessionID:  sid,
		DurationMs: event.DurationMs(),
	}
	if event.ErrorCode != "" || event.ErrorMessage != "" {
		kwargs.ErrorInfo = &rpc.ErrorInfo{Code: event.ErrorCode, Message: event.ErrorMessage}
	}
	return c.callKW(ctx, rpc.ModelAuthLog, rpc.MethodLogAuth, nil, kwargs, nil)
}

// EndSession closes the remote session bound to deviceID only.
func (c *Client) EndSession(ctx context.Context, deviceID string) error {
	var res rpc.MethodResult
	err := c.callKW(ctx, rpc.ModelAuthLog, rpc.MethodEndSession, nil, rpc.EndSessionKwargs{
		SessionID:  c.SessionID(ctx),
		DeviceUUID: deviceID,
	}, &res)
	if err != nil {
		return err
	}
	if !res.Success && res.Error != "" {
		return fmt.Errorf("end session: %s", res.Error)
	}
	return nil
}

// FetchProfileImage returns the user's image as a data URI, or "" when unset.
func (c *Client) FetchProfileImage(ctx context.Context, userID int64) (string, error) {
	var rows []map[string]any
	err := c.callKW(ctx, rpc.ModelUsers, rpc.MethodRead,
		[]any{[]int64{userID}, []string{rpc.FieldProfileImage}}, nil, &rows)
	if err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return "", nil
	}
	img, ok := rows[0][rpc.FieldProfileImage].(string)
	if !ok || img == "" {
		return "", nil
	}
	return "data:image/png;base64," + img, nil
}

// Reset destroys the remote session and forgets its id. The id is dropped
// locally even when the server cannot be reached.
func (c *Client) Reset(ctx context.Context) error {
	if c.SessionID(ctx) == "" {
		return nil
	}
	_, err := c.post(ctx, rpc.PathDestroy, struct{}{}, true, nil)
	c.setSessionID(ctx, "")
	if err != nil && !errors.Is(err, authority.ErrUnauthorized) {
		return fmt.Errorf("destroy session: %w", err)
	}
	return nil
}

func toUser(info rpc.SessionInfo) session.User {
	display := info.Name
	if display == "" {
		display = info.Username
	}
	return session.User{
		ID:          info.UID.Int64(),
		Username:    info.Username,
		DisplayName: display,
		Email:       info.Email,
		RemoteRole:  info.Role,
	}
}

func sessionCookie(resp *http.Response) string {
	if resp == nil {
		return ""
	}
	for _, ck := range resp.Cookies() {
		if ck.Name == rpc.CookieSessionID && ck.Value != "" {
			return ck.Value
		}
	}
	return ""
}

// recordID keeps numeric ids numeric on the wire.
func recordID(id string) any {
	if n := rpc.FlexID(id).Int64(); n > 0 {
		return n
	}
	return id
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
