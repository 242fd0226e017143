// Package backend serves the school backend's JSON-RPC endpoints on top of
// the in-memory development authority.
package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pmaschool/authcore/internal/domain/device"
	"github.com/pmaschool/authcore/internal/infrastructure/devauthority"
	"github.com/pmaschool/authcore/internal/interfaces/http/middleware"
	apperrors "github.com/pmaschool/authcore/internal/shared/errors"
	"github.com/pmaschool/authcore/internal/shared/logger"
	rpc "github.com/pmaschool/authcore/internal/shared/rpcprotocol"
)

type Handler struct {
	authority *devauthority.Authority
	database  string
	logger    logger.Interface
	methods   map[string]methodFunc
}

type methodFunc func(token string, params rpc.CallKWParams) (any, error)

func NewHandler(authority *devauthority.Authority, database string, logger logger.Interface) *Handler {
	h := &Handler{
		authority: authority,
		database:  database,
		logger:    logger,
	}
	h.methods = map[string]methodFunc{
		rpc.ModelDevice + "." + rpc.MethodRegisterDevice:  h.registerDevice,
		rpc.ModelDevice + "." + rpc.MethodValidateDevice:  h.validateDevice,
		rpc.ModelDevice + "." + rpc.MethodActivateDevice:  h.deviceAction(device.TrustActive),
		rpc.ModelDevice + "." + rpc.MethodDisableDevice:   h.deviceAction(device.TrustDisabled),
		rpc.ModelDevice + "." + rpc.MethodRevokeDevice:    h.deviceAction(device.TrustRevoked),
		rpc.ModelAuthLog + "." + rpc.MethodLogAuth:        h.logAuthentication,
		rpc.ModelAuthLog + "." + rpc.MethodLogTraditional: h.logTraditionalLogin,
		rpc.ModelAuthLog + "." + rpc.MethodEndSession:     h.endSession,
		rpc.ModelUsers + "." + rpc.MethodRead:             h.readUsers,
	}
	return h
}

// DatabaseList doubles as the health check.
func (h *Handler) DatabaseList(c *gin.Context) {
	req, ok := h.bind(c)
	if !ok {
		return
	}
	h.result(c, req, []string{h.database})
}

func (h *Handler) Authenticate(c *gin.Context) {
	req, ok := h.bind(c)
	if !ok {
		return
	}

	var params rpc.AuthenticateParams
	if err := decode(req.Params, &params); err != nil {
		h.fail(c, req, invalidParams(err))
		return
	}
	if params.DB != h.database {
		h.fail(c, req, serverError(fmt.Sprintf("Database %q does not exist", params.DB)))
		return
	}

	token, acc, err := h.authority.Authenticate(params.Login, params.Password)
	if err != nil {
		h.fail(c, req, h.toRPCError(err))
		return
	}
	_, expiresAt, err := h.authority.SessionInfo(token)
	if err != nil {
		h.fail(c, req, h.toRPCError(err))
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(rpc.CookieSessionID, token, 0, "/", "", false, true)
	h.result(c, req, toSessionInfo(acc, token, expiresAt))
}

func (h *Handler) SessionInfo(c *gin.Context) {
	req, ok := h.bind(c)
	if !ok {
		return
	}
	token := sessionToken(c)
	acc, expiresAt, err := h.authority.SessionInfo(token)
	if err != nil {
		h.fail(c, req, h.toRPCError(err))
		return
	}
	h.result(c, req, toSessionInfo(acc, token, expiresAt))
}

// Destroy always succeeds.
func (h *Handler) Destroy(c *gin.Context) {
	req, ok := h.bind(c)
	if !ok {
		return
	}
	h.authority.Destroy(sessionToken(c))
	c.SetCookie(rpc.CookieSessionID, "", -1, "/", "", false, true)
	h.result(c, req, nil)
}

func (h *Handler) CallKW(c *gin.Context) {
	req, ok := h.bind(c)
	if !ok {
		return
	}

	var params rpc.CallKWParams
	if err := decode(req.Params, &params); err != nil {
		h.fail(c, req, invalidParams(err))
		return
	}
	name := params.Model + "." + params.Method
	c.Set(middleware.ContextKeyRPCMethod, name)

	method, exists := h.methods[name]
	if !exists {
		h.fail(c, req, serverError(fmt.Sprintf("The method %q does not exist", name)))
		return
	}

	out, err := method(sessionToken(c), params)
	if err != nil {
		h.fail(c, req, h.toRPCError(err))
		return
	}
	h.result(c, req, out)
}

func (h *Handler) registerDevice(token string, params rpc.CallKWParams) (any, error) {
	var kw rpc.RegisterDeviceKwargs
	if err := decode(params.Kwargs, &kw); err != nil {
		return nil, err
	}
	identity := device.Identity{
		DeviceID:    kw.DeviceID,
		DisplayName: kw.DeviceName,
		Platform:    kw.Platform,
		OSVersion:   kw.OSVersion,
		Model:       kw.ModelName,
		Brand:       kw.Brand,
		IsPhysical:  kw.IsPhysicalDevice,
	}
	rec, err := h.authority.RegisterDevice(token, identity, kw.BiometricType, kw.BiometricTypeDisplay)
	if err != nil {
		return nil, err
	}
	return toDeviceRecord(rec), nil
}

func (h *Handler) validateDevice(token string, params rpc.CallKWParams) (any, error) {
	var kw rpc.DeviceIDKwargs
	if err := decode(params.Kwargs, &kw); err != nil {
		return nil, err
	}
	v, err := h.authority.ValidateDevice(token, kw.DeviceID)
	if err != nil {
		return nil, err
	}

	res := rpc.ValidateDeviceResult{
		Valid:         v.Valid,
		CanReactivate: v.CanReactivate,
		Message:       v.Message,
	}
	if v.Record != nil {
		res.DeviceOdooID = rpc.FlexID(v.Record.ID)
		if !v.Valid {
			res.Status = statusLabel(v.Record.State)
		}
	}
	return res, nil
}

// deviceAction applies next to every record id in the first positional
// argument. Only the session user's records can be changed.
func (h *Handler) deviceAction(next device.TrustState) methodFunc {
	return func(token string, params rpc.CallKWParams) (any, error) {
		ids, err := recordIDs(params.Args)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			if _, err := h.authority.SetDeviceStateAsUser(token, id, next); err != nil {
				if errors.Is(err, devauthority.ErrSessionExpired) {
					return nil, err
				}
				return rpc.MethodResult{Success: false, Error: userMessage(err)}, nil
			}
		}
		return rpc.MethodResult{Success: true, Message: fmt.Sprintf("Device %s", next)}, nil
	}
}

func (h *Handler) logAuthentication(token string, params rpc.CallKWParams) (any, error) {
	var kw rpc.LogAuthKwargs
	if err := decode(params.Kwargs, &kw); err != nil {
		return nil, err
	}
	entry := devauthority.AuthLogEntry{
		DeviceUUID:    kw.DeviceUUID,
		TrustRecordID: kw.DeviceID,
		Method:        kw.AuthMethod,
		Success:       kw.Success,
		DurationMs:    kw.DurationMs,
	}
	if kw.ErrorInfo != nil {
		entry.ErrorCode = kw.ErrorInfo.Code
	}
	if err := h.authority.LogAuth(token, entry); err != nil {
		return nil, err
	}
	return rpc.MethodResult{Success: true}, nil
}

func (h *Handler) logTraditionalLogin(token string, params rpc.CallKWParams) (any, error) {
	var kw rpc.LogTraditionalKwargs
	if err := decode(params.Kwargs, &kw); err != nil {
		return nil, err
	}
	entry := devauthority.AuthLogEntry{Method: "traditional", Success: true}
	if id, ok := kw.DeviceInfo["device_id"].(string); ok {
		entry.DeviceUUID = id
	}
	if ms, ok := kw.DeviceInfo["duration_ms"].(float64); ok {
		entry.DurationMs = int64(ms)
	}
	if err := h.authority.LogAuth(token, entry); err != nil {
		return nil, err
	}
	return rpc.MethodResult{Success: true}, nil
}

func (h *Handler) endSession(token string, params rpc.CallKWParams) (any, error) {
	var kw rpc.EndSessionKwargs
	if err := decode(params.Kwargs, &kw); err != nil {
		return nil, err
	}
	ended, err := h.authority.EndSession(token, kw.DeviceUUID)
	if err != nil {
		if errors.Is(err, devauthority.ErrSessionExpired) {
			return nil, err
		}
		return rpc.MethodResult{Success: false, Error: err.Error()}, nil
	}
	return rpc.MethodResult{Success: true, Message: fmt.Sprintf("%d session(s) ended", ended)}, nil
}

// readUsers answers res.users.read for the profile image field only.
func (h *Handler) readUsers(token string, params rpc.CallKWParams) (any, error) {
	if _, _, err := h.authority.SessionInfo(token); err != nil {
		return nil, err
	}
	ids, err := recordIDs(params.Args)
	if err != nil {
		return nil, err
	}

	rows := make([]map[string]any, 0, len(ids))
	for _, raw := range ids {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			continue
		}
		img, found := h.authority.ProfileImage(id)
		if !found {
			continue
		}
		row := map[string]any{"id": id, rpc.FieldProfileImage: false}
		if img != "" {
			row[rpc.FieldProfileImage] = img
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (h *Handler) bind(c *gin.Context) (*rpc.Request, bool) {
	var req rpc.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, rpc.Response{
			JSONRPC: rpc.Version,
			Error:   invalidParams(err),
		})
		return nil, false
	}
	return &req, true
}

func (h *Handler) result(c *gin.Context, req *rpc.Request, out any) {
	raw, err := json.Marshal(out)
	if err != nil {
		h.logger.Errorw("failed to encode result", "path", c.Request.URL.Path, "error", err)
		h.fail(c, req, serverError("Internal server error"))
		return
	}
	c.JSON(http.StatusOK, rpc.Response{JSONRPC: rpc.Version, ID: req.ID, Result: raw})
}

// fail answers with HTTP 200, as the backend does for every RPC error.
func (h *Handler) fail(c *gin.Context, req *rpc.Request, rpcErr *rpc.Error) {
	c.JSON(http.StatusOK, rpc.Response{JSONRPC: rpc.Version, ID: req.ID, Error: rpcErr})
}

func (h *Handler) toRPCError(err error) *rpc.Error {
	switch {
	case errors.Is(err, devauthority.ErrSessionExpired):
		return sessionExpired()
	case errors.Is(err, devauthority.ErrAccessDenied):
		return accessDenied()
	case errors.Is(err, devauthority.ErrDeviceNotFound),
		errors.Is(err, devauthority.ErrDeviceRevoked),
		apperrors.IsValidationError(err):
		return validationError(userMessage(err))
	}
	var rpcErr *rpc.Error
	if errors.As(err, &rpcErr) {
		return rpcErr
	}
	h.logger.Errorw("rpc call failed", "error", err)
	return serverError("Internal server error")
}

func sessionToken(c *gin.Context) string {
	if token := c.GetHeader(rpc.HeaderSessionID); token != "" {
		return token
	}
	token, _ := c.Cookie(rpc.CookieSessionID)
	return token
}

func decode(raw json.RawMessage, out any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &rpc.Error{Code: rpc.CodeServerError, Message: "Invalid parameters", Data: &rpc.ErrorData{
			Name:      "builtins.TypeError",
			Arguments: []string{err.Error()},
		}}
	}
	return nil
}

// recordIDs reads the ids list the backend expects as the first positional
// argument. Both numeric and string ids are accepted.
func recordIDs(args []any) ([]string, error) {
	if len(args) == 0 {
		return nil, validationErr("record ids are required")
	}
	list, ok := args[0].([]any)
	if !ok {
		list = []any{args[0]}
	}
	ids := make([]string, 0, len(list))
	for _, v := range list {
		switch id := v.(type) {
		case string:
			ids = append(ids, id)
		case float64:
			ids = append(ids, strconv.FormatInt(int64(id), 10))
		default:
			return nil, validationErr(fmt.Sprintf("invalid record id %v", v))
		}
	}
	return ids, nil
}

func validationErr(msg string) error {
	return apperrors.NewValidationError(msg)
}

func userMessage(err error) string {
	if appErr := apperrors.GetAppError(err); appErr != nil {
		return appErr.Message
	}
	return err.Error()
}

func statusLabel(state device.TrustState) string {
	switch state {
	case device.TrustActive:
		return "activo"
	case device.TrustDisabled:
		return "deshabilitado"
	default:
		return "revocado"
	}
}

func toSessionInfo(acc *devauthority.Account, token string, expiresAt time.Time) rpc.SessionInfo {
	return rpc.SessionInfo{
		UID:       rpc.FlexID(strconv.FormatInt(acc.ID, 10)),
		Username:  acc.Username,
		Name:      acc.Name,
		Email:     acc.Email,
		Role:      acc.Role,
		SessionID: token,
		ExpiresAt: expiresAt.UTC().Format(time.RFC3339),
	}
}

func toDeviceRecord(rec *device.TrustRecord) rpc.DeviceRecord {
	out := rpc.DeviceRecord{
		ID:                   rpc.FlexID(rec.ID),
		DeviceID:             rec.DeviceID,
		DeviceName:           rec.Identity.DisplayName,
		Platform:             rec.Identity.Platform,
		OSVersion:            rec.Identity.OSVersion,
		ModelName:            rec.Identity.Model,
		Brand:                rec.Identity.Brand,
		BiometricType:        rec.BiometricKind,
		BiometricTypeDisplay: rec.BiometricLabel,
		IsPhysicalDevice:     rec.Identity.IsPhysical,
		State:                string(rec.State),
		EnrolledAt:           rec.EnrolledAt.UTC().Format(time.RFC3339),
	}
	if rec.LastUsedAt != nil {
		out.LastUsedAt = rec.LastUsedAt.UTC().Format(time.RFC3339)
	}
	return out
}
