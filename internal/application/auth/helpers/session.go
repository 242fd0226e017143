// Package helpers holds the steps shared by the login flows.
package helpers

import (
	"context"
	"errors"
	"time"

	"github.com/pmaschool/authcore/internal/application/authority"
	"github.com/pmaschool/authcore/internal/domain/session"
	"github.com/pmaschool/authcore/internal/shared/biztime"
	autherrors "github.com/pmaschool/authcore/internal/shared/errors"
	"github.com/pmaschool/authcore/internal/shared/logger"
)

// SessionStore is the in-memory session holder.
type SessionStore interface {
	Commit(s *session.Session, secret string)
	Clear()
	Current() *session.Session
}

// ExpiryResetter forgets an earlier session-expired episode.
type ExpiryResetter interface {
	Reset()
}

// SessionHelper owns the rules for entering and leaving the authenticated
// state: a session is committed only after verification, and any failure
// afterwards leaves nothing behind.
type SessionHelper struct {
	authority authority.RemoteAuthority
	sessions  SessionStore
	expiry    ExpiryResetter
	clock     biztime.Clock
	logger    logger.Interface
}

func NewSessionHelper(
	authority authority.RemoteAuthority,
	sessions SessionStore,
	expiry ExpiryResetter,
	clock biztime.Clock,
	logger logger.Interface,
) *SessionHelper {
	return &SessionHelper{
		authority: authority,
		sessions:  sessions,
		expiry:    expiry,
		clock:     clock,
		logger:    logger,
	}
}

// CheckHealth fails fast with ServerUnavailable. No retry.
func (h *SessionHelper) CheckHealth(ctx context.Context) error {
	if err := h.authority.CheckHealth(ctx); err != nil {
		h.logger.Warnw("authority health check failed", "error", err)
		return autherrors.NewServerUnavailableError(err.Error())
	}
	return nil
}

// PasswordLogin maps the authority's login failures onto the taxonomy. A
// missing role forces a logout since the backend already opened a session.
func (h *SessionHelper) PasswordLogin(ctx context.Context, username, secret string) (*authority.LoginResult, error) {
	result, err := h.authority.PasswordLogin(ctx, username, secret)
	switch {
	case err == nil:
	case errors.Is(err, authority.ErrNoRoleAssigned):
		h.ForceLogout(ctx, "no role assigned")
		return nil, autherrors.NewNoRoleAssignedError()
	case errors.Is(err, authority.ErrInvalidCredentials):
		return nil, autherrors.NewInvalidCredentialsError()
	case errors.Is(err, authority.ErrUnreachable):
		return nil, autherrors.NewServerUnavailableError(err.Error())
	default:
		h.logger.Errorw("password login failed", "username", username, "error", err)
		return nil, autherrors.NewUnexpectedError(err.Error())
	}

	if _, ok := session.MapRemoteRole(result.RemoteRole); !ok {
		h.ForceLogout(ctx, "no role assigned")
		return nil, autherrors.NewNoRoleAssignedError()
	}
	return result, nil
}

// Verify checks the fresh remote session and builds the local one. On any
// failure the remote session is dropped and nothing is committed.
func (h *SessionHelper) Verify(ctx context.Context, login *authority.LoginResult, deviceID string) (*session.Session, error) {
	info, err := h.authority.VerifySession(ctx)
	if err != nil {
		h.logger.Warnw("session verification failed", "username", login.User.Username, "error", err)
		h.ForceLogout(ctx, "session verification failed")
		return nil, autherrors.NewSessionEstablishError(err.Error())
	}

	user := login.User
	remoteRole := login.RemoteRole
	if info != nil {
		if info.User.Username != "" {
			user = info.User
		}
		if info.RemoteRole != "" {
			remoteRole = info.RemoteRole
		}
	}

	role, ok := session.MapRemoteRole(remoteRole)
	if !ok {
		h.ForceLogout(ctx, "no role assigned")
		return nil, autherrors.NewNoRoleAssignedError()
	}
	user.RemoteRole = remoteRole

	s, err := session.NewSession(login.Token, user, role, deviceID, h.clock.Now())
	if err != nil {
		h.ForceLogout(ctx, "invalid session")
		return nil, autherrors.NewSessionEstablishError(err.Error())
	}
	return s, nil
}

// Commit installs s and clears any earlier expiry episode.
func (h *SessionHelper) Commit(s *session.Session, secret string) {
	h.sessions.Commit(s, secret)
	h.expiry.Reset()
	h.logger.Infow("session established", "username", s.User.Username, "role", s.Role, "device_id", s.DeviceID)
}

// ForceLogout drops both the local and the remote session. It never touches
// the credential vault.
func (h *SessionHelper) ForceLogout(ctx context.Context, reason string) {
	h.logger.Infow("forcing logout", "reason", reason)
	h.sessions.Clear()
	if err := h.authority.Reset(ctx); err != nil {
		h.logger.Warnw("failed to reset remote session", "error", err)
	}
}

func (h *SessionHelper) Now() time.Time {
	return h.clock.Now()
}
