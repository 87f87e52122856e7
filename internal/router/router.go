package router

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/safetrade/marketplace/backend/internal/handlers"
	"github.com/safetrade/marketplace/backend/internal/middleware"
	"github.com/safetrade/marketplace/backend/internal/models"
	"github.com/safetrade/marketplace/backend/internal/phoneverify"
	"github.com/safetrade/marketplace/backend/internal/realtime"
	"github.com/safetrade/marketplace/backend/internal/repositories"
	"github.com/safetrade/marketplace/backend/pkg/config"
	"github.com/safetrade/marketplace/backend/pkg/firebase"
	"gorm.io/gorm"
)

// Dependencies are the stores and services the HTTP layer is built from.
type Dependencies struct {
	Users         repositories.UserRepository
	Listings      repositories.ListingRepository
	Favorites     repositories.FavoriteRepository
	Conversations repositories.ConversationRepository
	Messages      repositories.MessageRepository
	SafeZones     repositories.SafeZoneRepository
	Meetings      repositories.MeetingRepository
	Deals         repositories.DealAgreementRepository
	Verifications repositories.VerificationRepository
	Vins          repositories.VinRepository
	Notifications repositories.NotificationRepository

	Bus    realtime.Bus
	Phone  *phoneverify.Service
	Pinger handlers.Pinger
}

// Options select authentication and rate limits.
type Options struct {
	AuthProvider       string
	JWTSecret          string
	TokenTTL           time.Duration
	Firebase           firebase.TokenVerifier // nil disables Firebase login and bearer mode
	PhoneSendPerMinute int
	SigninPerMinute    int
	Logger             *slog.Logger
}

// Migrate creates or updates the PostgreSQL schema.
func Migrate(pg *gorm.DB) error {
	return pg.AutoMigrate(
		&models.User{},
		&models.Listing{},
		&models.ListingImage{},
		&models.Favorite{},
		&models.Conversation{},
		&models.SafeZone{},
		&models.SafeZoneMeeting{},
		&models.DealAgreement{},
		&models.IdentityVerification{},
		&models.StolenVehicleReport{},
		&models.VinCheck{},
		&models.Notification{},
	)
}

// NewDependencies wires the production stores. Without REDIS_ADDR the phone code store
// and realtime bus run in-process, which only works with a single API instance.
// Background sweeps stop when ctx is done.
func NewDependencies(ctx context.Context, db *config.DB, cfg *config.Config, log *slog.Logger) *Dependencies {
	deps := &Dependencies{
		Users:         repositories.NewPostgresUserRepository(db.Postgres),
		Listings:      repositories.NewPostgresListingRepository(db.Postgres),
		Favorites:     repositories.NewPostgresFavoriteRepository(db.Postgres),
		Conversations: repositories.NewPostgresConversationRepository(db.Postgres),
		Messages:      repositories.NewMongoMessageRepository(db.Mongo.Database(cfg.MongoDatabase)),
		SafeZones:     repositories.NewPostgresSafeZoneRepository(db.Postgres),
		Meetings:      repositories.NewPostgresMeetingRepository(db.Postgres),
		Deals:         repositories.NewPostgresDealAgreementRepository(db.Postgres),
		Verifications: repositories.NewPostgresVerificationRepository(db.Postgres),
		Vins:          repositories.NewPostgresVinRepository(db.Postgres),
		Notifications: repositories.NewPostgresNotificationRepository(db.Postgres),
		Pinger:        db,
	}

	var store phoneverify.Store
	if db.Redis != nil {
		store = phoneverify.NewRedisStore(db.Redis)
		deps.Bus = realtime.NewRedisBus(db.Redis, log)
	} else {
		log.Warn("REDIS_ADDR not set, using in-process phone code store and realtime bus")
		mem := phoneverify.NewMemoryStore()
		go mem.RunSweeper(time.Minute, ctx.Done())
		store = mem
		deps.Bus = realtime.NewMemoryBus(log)
	}
	sender := phoneverify.LogSender{Logger: log, ExposeCode: cfg.IsDevelopment()}
	deps.Phone = phoneverify.NewService(store, sender, phoneverify.Options{
		TTL:         cfg.Phone.CodeTTL,
		MaxAttempts: cfg.Phone.MaxAttempts,
	})
	return deps
}

// SetupRoutes configures all application routes. Background work started here stops
// when ctx is done.
func SetupRoutes(ctx context.Context, e *echo.Echo, deps *Dependencies, opts Options) error {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	var auth echo.MiddlewareFunc
	switch opts.AuthProvider {
	case "", config.AuthProviderJWT:
		auth = middleware.JWTAuthMiddleware(opts.JWTSecret)
	case config.AuthProviderFirebase:
		if opts.Firebase == nil {
			return fmt.Errorf("auth provider %q requires a Firebase client", opts.AuthProvider)
		}
		auth = middleware.FirebaseAuthMiddleware(opts.Firebase, deps.Users)
	default:
		return fmt.Errorf("unknown auth provider %q", opts.AuthProvider)
	}

	phoneLimiter := middleware.NewKeyedRateLimiter(orDefault(opts.PhoneSendPerMinute, 3), orDefault(opts.PhoneSendPerMinute, 3))
	signinLimiter := middleware.NewKeyedRateLimiter(orDefault(opts.SigninPerMinute, 10), orDefault(opts.SigninPerMinute, 10))
	go phoneLimiter.RunSweeper(time.Minute, ctx.Done())
	go signinLimiter.RunSweeper(time.Minute, ctx.Done())

	notifier := handlers.NewNotifier(deps.Notifications, deps.Bus, log)

	authHandler := handlers.NewAuthHandler(deps.Users, opts.Firebase, opts.JWTSecret, opts.TokenTTL)
	userHandler := handlers.NewUserHandler(deps.Users, deps.Listings)
	listingHandler := handlers.NewListingHandler(deps.Listings, deps.Favorites, deps.Vins)
	conversationHandler := handlers.NewConversationHandler(deps.Conversations, deps.Messages, deps.Listings, deps.Users, notifier, deps.Bus)
	safeZoneHandler := handlers.NewSafeZoneHandler(deps.SafeZones)
	meetingHandler := handlers.NewMeetingHandler(deps.Meetings, deps.Conversations, deps.SafeZones, deps.Deals, deps.Listings, notifier)
	dealHandler := handlers.NewDealAgreementHandler(deps.Deals, deps.Conversations, deps.Meetings, deps.Listings, notifier)
	verificationHandler := handlers.NewVerificationHandler(deps.Verifications, deps.Users, deps.Phone, phoneLimiter, notifier)
	vinHandler := handlers.NewVinHandler(deps.Vins)
	notificationHandler := handlers.NewNotificationHandler(deps.Notifications, deps.Users)

	if deps.Pinger != nil {
		handlers.NewHealthHandler(deps.Pinger).RegisterHealthRoutes(e)
	}

	// --- Unprotected routes ---
	authHandler.RegisterAuthRoutes(e.Group("/api/auth", signinLimiter.Middleware(middleware.ClientIPKey)))

	public := e.Group("/api")
	listingHandler.RegisterPublicListingRoutes(public)
	safeZoneHandler.RegisterPublicSafeZoneRoutes(public)
	userHandler.RegisterPublicUserRoutes(public)

	// --- Protected routes ---
	api := e.Group("/api", auth)
	userHandler.RegisterProfileRoutes(api)
	listingHandler.RegisterListingRoutes(api)
	conversationHandler.RegisterConversationRoutes(api)
	meetingHandler.RegisterMeetingRoutes(api)
	dealHandler.RegisterDealAgreementRoutes(api)
	verificationHandler.RegisterVerificationRoutes(api)
	vinHandler.RegisterVinRoutes(api)
	notificationHandler.RegisterNotificationRoutes(api)

	admin := e.Group("/api", auth, middleware.RequireAdmin())
	safeZoneHandler.RegisterAdminSafeZoneRoutes(admin)
	verificationHandler.RegisterAdminVerificationRoutes(admin)
	vinHandler.RegisterAdminVinRoutes(admin)

	log.Info("routes configured", "auth_provider", orDefaultString(opts.AuthProvider, config.AuthProviderJWT),
		"routes", strconv.Itoa(len(e.Routes())))
	return nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func orDefaultString(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
