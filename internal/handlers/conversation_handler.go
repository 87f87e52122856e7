package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/safetrade/marketplace/backend/internal/models"
	"github.com/safetrade/marketplace/backend/internal/realtime"
	"github.com/safetrade/marketplace/backend/internal/repositories"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	defaultMessagePage = 50
	maxMessagePage     = 100
)

// ConversationHandler handles buyer/seller conversations and their messages.
type ConversationHandler struct {
	conversationRepository repositories.ConversationRepository
	messageRepository      repositories.MessageRepository
	listingRepository      repositories.ListingRepository
	userRepository         repositories.UserRepository
	notifier               *Notifier
	bus                    realtime.Bus
	heartbeat              time.Duration
	now                    func() time.Time
}

func NewConversationHandler(
	convRepo repositories.ConversationRepository,
	msgRepo repositories.MessageRepository,
	listingRepo repositories.ListingRepository,
	userRepo repositories.UserRepository,
	notifier *Notifier,
	bus realtime.Bus,
) *ConversationHandler {
	return &ConversationHandler{
		conversationRepository: convRepo,
		messageRepository:      msgRepo,
		listingRepository:      listingRepo,
		userRepository:         userRepo,
		notifier:               notifier,
		bus:                    bus,
		heartbeat:              25 * time.Second,
		now:                    time.Now,
	}
}

func (h *ConversationHandler) RegisterConversationRoutes(g *echo.Group) {
	g.POST("/conversations", h.StartConversation)
	g.GET("/conversations", h.ListConversations)
	g.GET("/conversations/:id", h.GetConversation)
	g.GET("/conversations/:id/messages", h.ListMessages)
	g.POST("/conversations/:id/messages", h.SendMessage)
	g.PUT("/conversations/:id/read", h.MarkRead)
	g.GET("/conversations/:id/events", h.StreamEvents)
	g.GET("/messages/unread-count", h.UnreadCount)
}

// StartConversation finds or opens the caller's conversation with a listing's seller.
func (h *ConversationHandler) StartConversation(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	var req models.StartConversationRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()

	listing, err := h.listingRepository.GetListingByID(ctx, req.ListingID)
	if err != nil {
		return notFoundOr(err, "Listing")
	}
	if listing.SellerID == userID {
		return echo.NewHTTPError(http.StatusBadRequest, "You cannot message yourself about your own listing")
	}
	if listing.Status == models.ListingStatusSold {
		return echo.NewHTTPError(http.StatusBadRequest, "This listing has been sold")
	}

	conv, created, err := h.conversationRepository.FindOrCreate(ctx, listing.ID, userID, listing.SellerID)
	if err != nil {
		return err
	}

	if body := strings.TrimSpace(req.Message); body != "" {
		if _, err := h.postMessage(c, conv, userID, body); err != nil {
			return err
		}
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	return c.JSON(status, echo.Map{"conversation": conv, "created": created})
}

// ListConversations returns the caller's inbox, most recent activity first.
func (h *ConversationHandler) ListConversations(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	convs, err := h.conversationRepository.ListForUser(ctx, userID)
	if err != nil {
		return err
	}
	if len(convs) == 0 {
		return c.JSON(http.StatusOK, echo.Map{"conversations": []models.ConversationSummary{}})
	}

	convIDs := make([]uint, len(convs))
	listingIDs := make([]uint, 0, len(convs))
	userIDs := make([]uint, 0, len(convs))
	for i, conv := range convs {
		convIDs[i] = conv.ID
		listingIDs = append(listingIDs, conv.ListingID)
		userIDs = append(userIDs, conv.OtherParty(userID))
	}

	listings, err := h.listingRepository.GetListingsByIDs(ctx, listingIDs)
	if err != nil {
		return err
	}
	users, err := h.userRepository.GetUsersByIDs(ctx, userIDs)
	if err != nil {
		return err
	}
	unread, err := h.messageRepository.CountUnread(ctx, convIDs, userID)
	if err != nil {
		return err
	}

	summaries := make([]models.ConversationSummary, len(convs))
	for i, conv := range convs {
		summaries[i] = models.ConversationSummary{
			Conversation: conv,
			ListingTitle: listings[conv.ListingID].Title,
			UnreadCount:  unread[conv.ID],
		}
		if u, ok := users[conv.OtherParty(userID)]; ok {
			summaries[i].Counterpart = u.ToCompact()
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"conversations": summaries})
}

// loadConversation fetches conversation :id and checks that userID takes part in it.
func (h *ConversationHandler) loadConversation(c echo.Context, userID uint) (*models.Conversation, error) {
	id, err := parseIDParam(c, "id", "conversation")
	if err != nil {
		return nil, err
	}
	conv, err := h.conversationRepository.GetConversationByID(c.Request().Context(), id)
	if err != nil {
		return nil, notFoundOr(err, "Conversation")
	}
	if !conv.IsParticipant(userID) {
		return nil, echo.NewHTTPError(http.StatusForbidden, "You are not a participant in this conversation")
	}
	return conv, nil
}

func (h *ConversationHandler) GetConversation(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	conv, err := h.loadConversation(c, userID)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	summary := models.ConversationSummary{Conversation: *conv}
	if listing, err := h.listingRepository.GetListingByID(ctx, conv.ListingID); err == nil {
		summary.ListingTitle = listing.Title
	}
	if other, err := h.userRepository.GetUserByID(ctx, conv.OtherParty(userID)); err == nil {
		summary.Counterpart = other.ToCompact()
	}
	unread, err := h.messageRepository.CountUnread(ctx, []uint{conv.ID}, userID)
	if err != nil {
		return err
	}
	summary.UnreadCount = unread[conv.ID]
	return c.JSON(http.StatusOK, summary)
}

// ListMessages returns a page of messages, oldest first. ?before=<message id> pages back.
func (h *ConversationHandler) ListMessages(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	conv, err := h.loadConversation(c, userID)
	if err != nil {
		return err
	}

	var before *primitive.ObjectID
	if raw := c.QueryParam("before"); raw != "" {
		oid, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid before cursor")
		}
		before = &oid
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit < 1 || limit > maxMessagePage {
		limit = defaultMessagePage
	}

	messages, err := h.messageRepository.ListMessages(c.Request().Context(), conv.ID, before, int64(limit))
	if err != nil {
		return err
	}
	if messages == nil {
		messages = []models.Message{}
	}
	return c.JSON(http.StatusOK, echo.Map{"messages": messages, "hasMore": len(messages) == limit})
}

func (h *ConversationHandler) SendMessage(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	conv, err := h.loadConversation(c, userID)
	if err != nil {
		return err
	}
	var req models.SendMessageRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	body := strings.TrimSpace(req.Body)
	if body == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "body is required")
	}

	msg, err := h.postMessage(c, conv, userID, body)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, msg)
}

// postMessage stores a message, bumps the conversation and tells the other party.
func (h *ConversationHandler) postMessage(c echo.Context, conv *models.Conversation, senderID uint, body string) (*models.Message, error) {
	ctx := c.Request().Context()
	now := h.now().UTC()

	msg := &models.Message{
		ConversationID: conv.ID,
		SenderID:       senderID,
		Body:           body,
		CreatedAt:      now,
	}
	if err := h.messageRepository.CreateMessage(ctx, msg); err != nil {
		return nil, err
	}
	if err := h.conversationRepository.TouchLastMessage(ctx, conv.ID, now); err != nil {
		return nil, err
	}
	conv.LastMessageAt = &now

	h.notifier.conversationChanged(ctx, conv.ID, realtime.EventMessageCreated, msg.ID.Hex(), senderID)
	h.notifier.Notify(ctx, &models.Notification{
		Type:        models.NotificationMessage,
		ActorID:     senderID,
		RecipientID: conv.OtherParty(senderID),
		TargetID:    strconv.FormatUint(uint64(conv.ID), 10),
		TargetType:  "conversation",
		Message:     preview(body, 80),
	})
	return msg, nil
}

func (h *ConversationHandler) MarkRead(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	conv, err := h.loadConversation(c, userID)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	marked, err := h.messageRepository.MarkRead(ctx, conv.ID, userID, h.now().UTC())
	if err != nil {
		return err
	}
	if marked > 0 {
		h.notifier.conversationChanged(ctx, conv.ID, realtime.EventMessagesRead, "", userID)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "marked": marked})
}

// UnreadCount sums unread messages across all of the caller's conversations.
func (h *ConversationHandler) UnreadCount(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	convs, err := h.conversationRepository.ListForUser(ctx, userID)
	if err != nil {
		return err
	}
	ids := make([]uint, len(convs))
	for i, conv := range convs {
		ids[i] = conv.ID
	}
	var total int64
	if len(ids) > 0 {
		counts, err := h.messageRepository.CountUnread(ctx, ids, userID)
		if err != nil {
			return err
		}
		for _, n := range counts {
			total += n
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"count": total})
}

// StreamEvents holds a Server-Sent Events stream of change notices for one conversation.
func (h *ConversationHandler) StreamEvents(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	conv, err := h.loadConversation(c, userID)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	events, cancel, err := h.bus.Subscribe(ctx, realtime.ConversationTopic(conv.ID))
	if err != nil {
		return err
	}
	defer cancel()

	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set(echo.HeaderCacheControl, "no-cache")
	w.Header().Set(echo.HeaderConnection, "keep-alive")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(": connected\n\n")); err != nil {
		return nil
	}
	w.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := w.Write([]byte(": ping\n\n")); err != nil {
				return nil
			}
			w.Flush()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := writeSSE(w, ev); err != nil {
				return nil
			}
			w.Flush()
		}
	}
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
