package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/safetrade/marketplace/backend/internal/models"
	"github.com/safetrade/marketplace/backend/internal/realtime"
	"github.com/safetrade/marketplace/backend/internal/repositories"
	"gorm.io/gorm"
)

// DealAgreementHandler records each party's agreement to a deal. The meeting location is
// revealed only after both have agreed.
type DealAgreementHandler struct {
	dealRepository         repositories.DealAgreementRepository
	conversationRepository repositories.ConversationRepository
	meetingRepository      repositories.MeetingRepository
	listingRepository      repositories.ListingRepository
	notifier               *Notifier
	now                    func() time.Time
}

func NewDealAgreementHandler(
	dealRepo repositories.DealAgreementRepository,
	convRepo repositories.ConversationRepository,
	meetingRepo repositories.MeetingRepository,
	listingRepo repositories.ListingRepository,
	notifier *Notifier,
) *DealAgreementHandler {
	return &DealAgreementHandler{
		dealRepository:         dealRepo,
		conversationRepository: convRepo,
		meetingRepository:      meetingRepo,
		listingRepository:      listingRepo,
		notifier:               notifier,
		now:                    time.Now,
	}
}

func (h *DealAgreementHandler) RegisterDealAgreementRoutes(g *echo.Group) {
	g.POST("/safe-zone/deal-agreement", h.SetAgreement)
	g.GET("/safe-zone/deal-agreement", h.GetAgreement)
}

func (h *DealAgreementHandler) conversationFor(ctx context.Context, conversationID, userID uint) (*models.Conversation, error) {
	conv, err := h.conversationRepository.GetConversationByID(ctx, conversationID)
	if err != nil {
		return nil, notFoundOr(err, "Conversation")
	}
	if !conv.IsParticipant(userID) {
		return nil, echo.NewHTTPError(http.StatusForbidden, "You are not a participant in this conversation")
	}
	return conv, nil
}

// SetAgreement sets or withdraws the caller's agreement.
func (h *DealAgreementHandler) SetAgreement(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	var req models.DealAgreementRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()

	conv, err := h.conversationFor(ctx, req.ConversationID, userID)
	if err != nil {
		return err
	}
	agree := true
	if req.Agree != nil {
		agree = *req.Agree
	}
	role := conv.RoleOf(userID)

	var completedNow bool
	deal, err := h.dealRepository.Apply(ctx, conv, func(d *models.DealAgreement) error {
		var err error
		completedNow, err = d.Set(role, agree, req.AgreedPriceCents, h.now().UTC())
		return err
	})
	if err != nil {
		if errors.Is(err, models.ErrAgreementLocked) {
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return err
	}

	h.notifier.conversationChanged(ctx, conv.ID, realtime.EventAgreementUpdated, deal.ID, userID)
	if completedNow {
		if err := h.onAgreed(ctx, conv, userID); err != nil {
			return err
		}
	}

	resp, err := h.respond(ctx, deal)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

// onAgreed holds the listing for the buyer and tells both parties.
func (h *DealAgreementHandler) onAgreed(ctx context.Context, conv *models.Conversation, actorID uint) error {
	listing, err := h.listingRepository.GetListingByID(ctx, conv.ListingID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	if listing != nil && listing.Status == models.ListingStatusActive {
		if err := h.listingRepository.SetListingStatus(ctx, listing.ID, models.ListingStatusPending); err != nil {
			return err
		}
	}

	target := strconv.FormatUint(uint64(conv.ID), 10)
	other := conv.OtherParty(actorID)
	for _, n := range []models.Notification{
		{RecipientID: other, ActorID: actorID},
		{RecipientID: actorID, ActorID: other},
	} {
		n.Type = models.NotificationDealAgreed
		n.TargetID = target
		n.TargetType = "deal"
		n.Message = "Both parties agreed to the deal. The meetup location is now visible."
		h.notifier.Notify(ctx, &n)
	}
	return nil
}

func (h *DealAgreementHandler) GetAgreement(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	convID, err := strconv.ParseUint(c.QueryParam("conversation_id"), 10, 32)
	if err != nil || convID == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "conversation_id is required")
	}
	ctx := c.Request().Context()

	conv, err := h.conversationFor(ctx, uint(convID), userID)
	if err != nil {
		return err
	}
	deal, err := h.dealRepository.GetByConversation(ctx, conv.ID)
	if err != nil {
		return notFoundOr(err, "Deal agreement")
	}
	resp, err := h.respond(ctx, deal)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *DealAgreementHandler) respond(ctx context.Context, deal *models.DealAgreement) (*models.DealAgreementResponse, error) {
	resp := &models.DealAgreementResponse{Agreement: deal, LocationRevealed: deal.Complete()}
	if !resp.LocationRevealed {
		return resp, nil
	}
	meeting, err := h.meetingRepository.LatestOpenForConversation(ctx, deal.ConversationID)
	switch {
	case err == nil:
		resp.Meeting = presentMeeting(meeting, true)
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, err
	}
	return resp, nil
}
