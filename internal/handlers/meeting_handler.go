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

// MeetingHandler coordinates safe zone meetups between the two parties of a conversation.
type MeetingHandler struct {
	meetingRepository      repositories.MeetingRepository
	conversationRepository repositories.ConversationRepository
	safeZoneRepository     repositories.SafeZoneRepository
	dealRepository         repositories.DealAgreementRepository
	listingRepository      repositories.ListingRepository
	notifier               *Notifier
	now                    func() time.Time
}

func NewMeetingHandler(
	meetingRepo repositories.MeetingRepository,
	convRepo repositories.ConversationRepository,
	zoneRepo repositories.SafeZoneRepository,
	dealRepo repositories.DealAgreementRepository,
	listingRepo repositories.ListingRepository,
	notifier *Notifier,
) *MeetingHandler {
	return &MeetingHandler{
		meetingRepository:      meetingRepo,
		conversationRepository: convRepo,
		safeZoneRepository:     zoneRepo,
		dealRepository:         dealRepo,
		listingRepository:      listingRepo,
		notifier:               notifier,
		now:                    time.Now,
	}
}

func (h *MeetingHandler) RegisterMeetingRoutes(g *echo.Group) {
	g.POST("/safe-zone/meetings", h.ProposeMeeting)
	g.GET("/safe-zone/meetings", h.ListMeetings)
	g.GET("/safe-zone/meetings/:id", h.GetMeeting)
	g.POST("/safe-zone/meetings/:id/confirm", h.ConfirmMeeting)
	g.POST("/safe-zone/meetings/:id/cancel", h.CancelMeeting)
	g.POST("/safe-zone/meetings/:id/complete", h.CompleteMeeting)
}

// ProposeMeeting suggests a safe zone and time. The proposer's side counts as confirmed.
func (h *MeetingHandler) ProposeMeeting(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	var req models.ProposeMeetingRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()

	conv, err := h.conversationRepository.GetConversationByID(ctx, req.ConversationID)
	if err != nil {
		return notFoundOr(err, "Conversation")
	}
	if !conv.IsParticipant(userID) {
		return echo.NewHTTPError(http.StatusForbidden, "You are not a participant in this conversation")
	}
	zone, err := h.safeZoneRepository.GetSafeZoneByID(ctx, req.SafeZoneID)
	if err != nil {
		return notFoundOr(err, "Safe zone")
	}
	if !zone.Active {
		return echo.NewHTTPError(http.StatusBadRequest, "This safe zone is no longer available")
	}
	if !req.ScheduledAt.After(h.now()) {
		return echo.NewHTTPError(http.StatusBadRequest, "scheduled_at must be in the future")
	}

	meeting := &models.SafeZoneMeeting{
		ConversationID:  conv.ID,
		ListingID:       conv.ListingID,
		BuyerID:         conv.BuyerID,
		SellerID:        conv.SellerID,
		SafeZoneID:      zone.ID,
		ProposedBy:      userID,
		ScheduledAt:     req.ScheduledAt.UTC(),
		Notes:           req.Notes,
		BuyerConfirmed:  userID == conv.BuyerID,
		SellerConfirmed: userID == conv.SellerID,
		Status:          models.MeetingStatusProposed,
	}
	if err := h.meetingRepository.CreateMeeting(ctx, meeting); err != nil {
		return err
	}
	meeting.SafeZone = zone

	h.announce(ctx, meeting, userID, models.NotificationMeetingProposed, "proposed a meetup in "+zone.City)

	presented, err := h.present(ctx, meeting)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, presented)
}

func (h *MeetingHandler) ListMeetings(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	meetings, err := h.meetingRepository.ListMeetingsForUser(ctx, userID)
	if err != nil {
		return err
	}
	revealed := make(map[uint]bool)
	out := make([]*models.SafeZoneMeeting, 0, len(meetings))
	for i := range meetings {
		m := &meetings[i]
		ok, seen := revealed[m.ConversationID]
		if !seen {
			if ok, err = h.locationRevealed(ctx, m.ConversationID); err != nil {
				return err
			}
			revealed[m.ConversationID] = ok
		}
		out = append(out, presentMeeting(m, ok))
	}
	return c.JSON(http.StatusOK, echo.Map{"meetings": out})
}

// loadMeeting fetches meeting :id for one of its participants.
func (h *MeetingHandler) loadMeeting(c echo.Context, userID uint) (*models.SafeZoneMeeting, error) {
	id, err := parseIDParam(c, "id", "meeting")
	if err != nil {
		return nil, err
	}
	m, err := h.meetingRepository.GetMeetingByID(c.Request().Context(), id)
	if err != nil {
		return nil, notFoundOr(err, "Meeting")
	}
	if !m.IsParticipant(userID) {
		return nil, echo.NewHTTPError(http.StatusForbidden, "You are not a participant in this meeting")
	}
	return m, nil
}

func (h *MeetingHandler) GetMeeting(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	m, err := h.loadMeeting(c, userID)
	if err != nil {
		return err
	}
	presented, err := h.present(c.Request().Context(), m)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, presented)
}

func (h *MeetingHandler) ConfirmMeeting(c echo.Context) error {
	return h.transition(c, func(m *models.SafeZoneMeeting, userID uint, now time.Time) error {
		return m.Confirm(userID, now)
	})
}

func (h *MeetingHandler) CancelMeeting(c echo.Context) error {
	return h.transition(c, func(m *models.SafeZoneMeeting, userID uint, _ time.Time) error {
		return m.Cancel(userID)
	})
}

func (h *MeetingHandler) CompleteMeeting(c echo.Context) error {
	return h.transition(c, func(m *models.SafeZoneMeeting, _ uint, now time.Time) error {
		return m.Complete(now)
	})
}

// transition applies step to the caller's meeting under a row lock and announces the
// resulting status change.
func (h *MeetingHandler) transition(c echo.Context, step func(m *models.SafeZoneMeeting, userID uint, now time.Time) error) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	current, err := h.loadMeeting(c, userID)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	before := current.Status

	updated, err := h.meetingRepository.UpdateMeeting(ctx, current.ID, func(m *models.SafeZoneMeeting) error {
		return step(m, userID, h.now().UTC())
	})
	if err != nil {
		switch {
		case errors.Is(err, models.ErrMeetingClosed), errors.Is(err, models.ErrMeetingNotConfirmed):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		case errors.Is(err, gorm.ErrRecordNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "Meeting not found")
		}
		return err
	}

	if updated.Status != before {
		switch updated.Status {
		case models.MeetingStatusConfirmed:
			h.announce(ctx, updated, userID, models.NotificationMeetingConfirmed, "confirmed the meetup")
		case models.MeetingStatusCancelled:
			h.announce(ctx, updated, userID, models.NotificationMeetingCancelled, "cancelled the meetup")
		case models.MeetingStatusCompleted:
			if err := h.markSold(ctx, updated); err != nil {
				return err
			}
			h.notifier.conversationChanged(ctx, updated.ConversationID, realtime.EventMeetingUpdated, meetingRef(updated), userID)
		}
	} else {
		h.notifier.conversationChanged(ctx, updated.ConversationID, realtime.EventMeetingUpdated, meetingRef(updated), userID)
	}

	presented, err := h.present(ctx, updated)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, presented)
}

// markSold closes the listing once a meetup under a completed deal took place.
func (h *MeetingHandler) markSold(ctx context.Context, m *models.SafeZoneMeeting) error {
	revealed, err := h.locationRevealed(ctx, m.ConversationID)
	if err != nil || !revealed {
		return err
	}
	return h.listingRepository.SetListingStatus(ctx, m.ListingID, models.ListingStatusSold)
}

func (h *MeetingHandler) announce(ctx context.Context, m *models.SafeZoneMeeting, actorID uint, notifType, text string) {
	other := m.BuyerID
	if actorID == m.BuyerID {
		other = m.SellerID
	}
	h.notifier.Notify(ctx, &models.Notification{
		Type:        notifType,
		ActorID:     actorID,
		RecipientID: other,
		TargetID:    meetingRef(m),
		TargetType:  "meeting",
		Message:     text,
	})
	h.notifier.conversationChanged(ctx, m.ConversationID, realtime.EventMeetingUpdated, meetingRef(m), actorID)
}

func (h *MeetingHandler) present(ctx context.Context, m *models.SafeZoneMeeting) (*models.SafeZoneMeeting, error) {
	revealed, err := h.locationRevealed(ctx, m.ConversationID)
	if err != nil {
		return nil, err
	}
	return presentMeeting(m, revealed), nil
}

func (h *MeetingHandler) locationRevealed(ctx context.Context, conversationID uint) (bool, error) {
	return dealComplete(ctx, h.dealRepository, conversationID)
}

func dealComplete(ctx context.Context, deals repositories.DealAgreementRepository, conversationID uint) (bool, error) {
	deal, err := deals.GetByConversation(ctx, conversationID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return deal.Complete(), nil
}

// presentMeeting returns a copy of m whose safe zone is hidden unless revealed.
func presentMeeting(m *models.SafeZoneMeeting, revealed bool) *models.SafeZoneMeeting {
	out := *m
	if revealed {
		return &out
	}
	out.SafeZoneID = 0
	if out.SafeZone != nil {
		z := out.SafeZone.Redacted()
		out.SafeZone = &z
	}
	return &out
}

func meetingRef(m *models.SafeZoneMeeting) string {
	return strconv.FormatUint(uint64(m.ID), 10)
}
