package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/safetrade/marketplace/backend/internal/middleware"
	"github.com/safetrade/marketplace/backend/internal/models"
	"github.com/safetrade/marketplace/backend/internal/phoneverify"
	"github.com/safetrade/marketplace/backend/internal/repositories"
	"gorm.io/gorm"
)

// VerificationHandler handles identity document submissions and phone ownership checks.
type VerificationHandler struct {
	verificationRepository repositories.VerificationRepository
	userRepository         repositories.UserRepository
	phone                  *phoneverify.Service
	sendLimiter            *middleware.KeyedRateLimiter
	notifier               *Notifier
}

func NewVerificationHandler(
	verificationRepo repositories.VerificationRepository,
	userRepo repositories.UserRepository,
	phone *phoneverify.Service,
	sendLimiter *middleware.KeyedRateLimiter,
	notifier *Notifier,
) *VerificationHandler {
	return &VerificationHandler{
		verificationRepository: verificationRepo,
		userRepository:         userRepo,
		phone:                  phone,
		sendLimiter:            sendLimiter,
		notifier:               notifier,
	}
}

func (h *VerificationHandler) RegisterVerificationRoutes(g *echo.Group) {
	g.GET("/verify-identity", h.GetIdentityStatus)
	g.POST("/verify-identity", h.SubmitIdentity)
	g.POST("/verify-phone", h.VerifyPhone)
}

// RegisterAdminVerificationRoutes expects g to already require an admin.
func (h *VerificationHandler) RegisterAdminVerificationRoutes(g *echo.Group) {
	g.POST("/verify-identity/:id/review", h.ReviewIdentity)
}

func (h *VerificationHandler) GetIdentityStatus(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	user, err := h.userRepository.GetUserByID(ctx, userID)
	if err != nil {
		return notFoundOr(err, "User profile")
	}
	latest, err := h.verificationRepository.LatestForUser(ctx, userID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return c.JSON(http.StatusOK, models.IdentityStatusResponse{
		IdentityVerified: user.IdentityVerified,
		Latest:           latest,
	})
}

func (h *VerificationHandler) SubmitIdentity(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	var req models.SubmitIdentityRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()

	user, err := h.userRepository.GetUserByID(ctx, userID)
	if err != nil {
		return notFoundOr(err, "User profile")
	}
	if user.IdentityVerified {
		return echo.NewHTTPError(http.StatusConflict, "Your identity is already verified")
	}
	pending, err := h.verificationRepository.HasPending(ctx, userID)
	if err != nil {
		return err
	}
	if pending {
		return echo.NewHTTPError(http.StatusConflict, "A verification is already pending review")
	}

	v := &models.IdentityVerification{
		UserID:           userID,
		DocumentType:     req.DocumentType,
		DocumentFrontURL: req.DocumentFrontURL,
		DocumentBackURL:  req.DocumentBackURL,
		SelfieURL:        req.SelfieURL,
	}
	if err := h.verificationRepository.CreateVerification(ctx, v); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, v)
}

func (h *VerificationHandler) ReviewIdentity(c echo.Context) error {
	reviewerID, err := requireUserID(c)
	if err != nil {
		return err
	}
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid verification ID")
	}
	var req models.ReviewIdentityRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()

	v, err := h.verificationRepository.Review(ctx, id, reviewerID, req.Decision, req.Reason)
	if err != nil {
		if errors.Is(err, repositories.ErrAlreadyReviewed) {
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return notFoundOr(err, "Verification")
	}

	msg := "Your identity verification was approved."
	if v.Status == models.VerificationRejected {
		msg = "Your identity verification was rejected."
		if v.Reason != "" {
			msg += " " + v.Reason
		}
	}
	h.notifier.Notify(ctx, &models.Notification{
		Type:        models.NotificationIdentityReviewed,
		ActorID:     reviewerID,
		RecipientID: v.UserID,
		TargetID:    v.ID,
		TargetType:  "verification",
		Message:     msg,
	})
	return c.JSON(http.StatusOK, v)
}

// VerifyPhone handles {"action":"send"} and {"action":"verify"} requests.
func (h *VerificationHandler) VerifyPhone(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	var req models.VerifyPhoneRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()

	switch req.Action {
	case models.PhoneActionSend:
		if !h.sendLimiter.Allow("phone:" + strconv.FormatUint(uint64(userID), 10)) {
			return echo.NewHTTPError(http.StatusTooManyRequests, "Too many codes requested, try again in a minute")
		}
		if err := h.phone.Send(ctx, userID, req.Phone); err != nil {
			return err
		}
		return c.JSON(http.StatusOK, echo.Map{
			"success":    true,
			"expires_in": int(h.phone.TTL().Seconds()),
		})

	case models.PhoneActionVerify:
		if req.Code == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "code is required")
		}
		err := h.phone.Verify(ctx, userID, req.Phone, req.Code)
		switch {
		case errors.Is(err, phoneverify.ErrCodeExpired):
			return echo.NewHTTPError(http.StatusBadRequest, "Verification code expired, request a new one")
		case errors.Is(err, phoneverify.ErrCodeMismatch):
			return echo.NewHTTPError(http.StatusBadRequest, "Verification code is incorrect")
		case errors.Is(err, phoneverify.ErrTooManyAttempts):
			return echo.NewHTTPError(http.StatusTooManyRequests, err.Error())
		case err != nil:
			return err
		}
		if err := h.userRepository.SetPhoneVerified(ctx, userID, req.Phone); err != nil {
			return notFoundOr(err, "User profile")
		}
		return c.JSON(http.StatusOK, echo.Map{"success": true, "phone_verified": true})
	}
	return echo.NewHTTPError(http.StatusBadRequest, "action must be send or verify")
}
