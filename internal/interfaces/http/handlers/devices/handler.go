// Package devices exposes the administration side of the development
// authority: device trust records, accounts and the authentication log.
package devices

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pmaschool/authcore/internal/domain/device"
	"github.com/pmaschool/authcore/internal/infrastructure/devauthority"
	apperrors "github.com/pmaschool/authcore/internal/shared/errors"
	"github.com/pmaschool/authcore/internal/shared/logger"
	"github.com/pmaschool/authcore/internal/shared/utils"
)

type Handler struct {
	authority *devauthority.Authority
	logger    logger.Interface
}

func NewHandler(authority *devauthority.Authority, logger logger.Interface) *Handler {
	return &Handler{authority: authority, logger: logger}
}

type CreateUserRequest struct {
	Username     string `json:"username" binding:"required,min=3"`
	Password     string `json:"password" binding:"required"`
	Name         string `json:"name"`
	Role         string `json:"role"`
	ProfileImage string `json:"profile_image" binding:"omitempty,base64"`
}

type UserResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Role     string `json:"role"`
}

func (h *Handler) ListDevices(c *gin.Context) {
	utils.SuccessResponse(c, http.StatusOK, "", h.authority.Devices())
}

func (h *Handler) ActivateDevice(c *gin.Context) {
	h.transition(c, device.TrustActive, "Device activated")
}

func (h *Handler) DisableDevice(c *gin.Context) {
	h.transition(c, device.TrustDisabled, "Device disabled")
}

func (h *Handler) RevokeDevice(c *gin.Context) {
	h.transition(c, device.TrustRevoked, "Device revoked")
}

func (h *Handler) transition(c *gin.Context, next device.TrustState, message string) {
	trustID := c.Param("id")
	rec, err := h.authority.SetDeviceState(trustID, next)
	if err != nil {
		if errors.Is(err, devauthority.ErrDeviceNotFound) {
			utils.ErrorResponseWithError(c, apperrors.NewNotFoundError("device not found", trustID))
			return
		}
		h.logger.Warnw("device transition rejected", "trust_id", trustID, "state", next, "error", err)
		utils.ErrorResponseWithError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, message, rec)
}

func (h *Handler) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponseWithError(c, apperrors.NewValidationError("invalid request body", err.Error()))
		return
	}

	acc, err := h.authority.AddUser(req.Username, req.Password, req.Name, req.Role)
	if err != nil {
		if errors.Is(err, devauthority.ErrUserExists) {
			utils.ErrorResponse(c, http.StatusConflict, "user already exists")
			return
		}
		utils.ErrorResponseWithError(c, apperrors.NewValidationError("invalid user", err.Error()))
		return
	}
	if req.ProfileImage != "" {
		h.authority.SetProfileImage(acc.ID, req.ProfileImage)
	}

	utils.SuccessResponse(c, http.StatusCreated, "User created", UserResponse{
		ID:       acc.ID,
		Username: acc.Username,
		Name:     acc.Name,
		Role:     acc.Role,
	})
}

func (h *Handler) ListAuthLogs(c *gin.Context) {
	utils.SuccessResponse(c, http.StatusOK, "", h.authority.AuthLogs())
}
