package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/safetrade/marketplace/backend/internal/middleware"
	"github.com/safetrade/marketplace/backend/internal/models"
	"github.com/safetrade/marketplace/backend/internal/phoneverify"
	"github.com/safetrade/marketplace/backend/internal/realtime"
	"github.com/safetrade/marketplace/backend/pkg/config"
	"github.com/safetrade/marketplace/backend/validators"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

type captureSender struct {
	mu    sync.Mutex
	codes map[string]string
}

func (s *captureSender) SendCode(_ context.Context, phone, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[phone] = code
	return nil
}

func (s *captureSender) last(phone string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.codes[phone]
}

// testApp is the HTTP surface wired to in-memory repositories.
type testApp struct {
	t *testing.T
	e *echo.Echo

	users         *fakeUsers
	listings      *fakeListings
	favorites     *fakeFavorites
	conversations *fakeConversations
	messages      *fakeMessages
	zones         *fakeSafeZones
	meetings      *fakeMeetings
	deals         *fakeDeals
	verifications *fakeVerifications
	vins          *fakeVins
	notifications *fakeNotifications

	bus    *realtime.MemoryBus
	sender *captureSender
	auth   *AuthHandler

	conversationHandler *ConversationHandler
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	a := &testApp{t: t}
	a.users = newFakeUsers()
	a.listings = newFakeListings()
	a.favorites = &fakeFavorites{listings: a.listings, set: map[[2]uint]bool{}}
	a.conversations = newFakeConversations()
	a.messages = &fakeMessages{}
	a.zones = newFakeSafeZones()
	a.meetings = &fakeMeetings{zones: a.zones, byID: map[uint]*models.SafeZoneMeeting{}}
	a.deals = &fakeDeals{byConv: map[uint]*models.DealAgreement{}}
	a.verifications = &fakeVerifications{users: a.users}
	a.vins = &fakeVins{reports: map[string]*models.StolenVehicleReport{}}
	a.notifications = &fakeNotifications{}
	a.bus = realtime.NewMemoryBus(log)
	a.sender = &captureSender{codes: map[string]string{}}

	e := echo.New()
	e.Validator = validators.NewValidator()
	e.HTTPErrorHandler = config.ErrorHandler(log)
	a.e = e

	notifier := NewNotifier(a.notifications, a.bus, log)
	phone := phoneverify.NewService(phoneverify.NewMemoryStore(), a.sender, phoneverify.Options{})
	phoneLimiter := middleware.NewKeyedRateLimiter(3, 3)
	signinLimiter := middleware.NewKeyedRateLimiter(100, 100)

	a.auth = NewAuthHandler(a.users, nil, testSecret, time.Hour)
	userHandler := NewUserHandler(a.users, a.listings)
	listingHandler := NewListingHandler(a.listings, a.favorites, a.vins)
	a.conversationHandler = NewConversationHandler(a.conversations, a.messages, a.listings, a.users, notifier, a.bus)
	zoneHandler := NewSafeZoneHandler(a.zones)
	meetingHandler := NewMeetingHandler(a.meetings, a.conversations, a.zones, a.deals, a.listings, notifier)
	dealHandler := NewDealAgreementHandler(a.deals, a.conversations, a.meetings, a.listings, notifier)
	verificationHandler := NewVerificationHandler(a.verifications, a.users, phone, phoneLimiter, notifier)
	vinHandler := NewVinHandler(a.vins)
	notificationHandler := NewNotificationHandler(a.notifications, a.users)

	jwtAuth := middleware.JWTAuthMiddleware(testSecret)

	a.auth.RegisterAuthRoutes(e.Group("/api/auth", signinLimiter.Middleware(middleware.ClientIPKey)))
	public := e.Group("/api")
	listingHandler.RegisterPublicListingRoutes(public)
	zoneHandler.RegisterPublicSafeZoneRoutes(public)
	userHandler.RegisterPublicUserRoutes(public)

	api := e.Group("/api", jwtAuth)
	userHandler.RegisterProfileRoutes(api)
	listingHandler.RegisterListingRoutes(api)
	a.conversationHandler.RegisterConversationRoutes(api)
	meetingHandler.RegisterMeetingRoutes(api)
	dealHandler.RegisterDealAgreementRoutes(api)
	verificationHandler.RegisterVerificationRoutes(api)
	vinHandler.RegisterVinRoutes(api)
	notificationHandler.RegisterNotificationRoutes(api)

	admin := e.Group("/api", jwtAuth, middleware.RequireAdmin())
	zoneHandler.RegisterAdminSafeZoneRoutes(admin)
	verificationHandler.RegisterAdminVerificationRoutes(admin)
	vinHandler.RegisterAdminVinRoutes(admin)

	return a
}

// newUser stores a user and returns it together with a session token.
func (a *testApp) newUser(name, role string) (*models.User, string) {
	a.t.Helper()
	u := &models.User{Name: name, Email: name + "@example.com", Role: role}
	require.NoError(a.t, a.users.CreateUser(context.Background(), u))
	token, err := a.auth.generateJWT(u)
	require.NoError(a.t, err)
	return u, token
}

func (a *testApp) do(method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	a.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

// seedListing stores an active listing owned by sellerID.
func (a *testApp) seedListing(sellerID uint) *models.Listing {
	a.t.Helper()
	l := &models.Listing{
		SellerID:   sellerID,
		Title:      "2019 Harley-Davidson Street Glide",
		Make:       "Harley-Davidson",
		Model:      "Street Glide",
		Year:       2019,
		Mileage:    12000,
		PriceCents: 1850000,
		Status:     models.ListingStatusActive,
	}
	require.NoError(a.t, a.listings.CreateListing(context.Background(), l))
	return l
}

func (a *testApp) seedZone(name string, lat, lng float64) *models.SafeZone {
	a.t.Helper()
	z := &models.SafeZone{
		Name: name, Kind: "police_station", Address: "1 Main St", City: "Portland",
		Latitude: lat, Longitude: lng, Active: true,
	}
	require.NoError(a.t, a.zones.CreateSafeZone(context.Background(), z))
	return z
}

func decodeJSON[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decodeJSON[map[string]string](t, rec)["error"]
}

func requireStatus(t *testing.T, rec *httptest.ResponseRecorder, status int) {
	t.Helper()
	require.Equal(t, status, rec.Code, rec.Body.String())
}
