package handlers

import (
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/safetrade/marketplace/backend/internal/geo"
	"github.com/safetrade/marketplace/backend/internal/models"
	"github.com/safetrade/marketplace/backend/internal/repositories"
)

const (
	defaultNearbyRadiusKm = 25.0
	maxNearbyRadiusKm     = 200.0
)

type SafeZoneHandler struct {
	safeZoneRepository repositories.SafeZoneRepository
}

func NewSafeZoneHandler(zoneRepo repositories.SafeZoneRepository) *SafeZoneHandler {
	return &SafeZoneHandler{safeZoneRepository: zoneRepo}
}

func (h *SafeZoneHandler) RegisterPublicSafeZoneRoutes(g *echo.Group) {
	g.GET("/safe-zones", h.ListSafeZones)
	g.GET("/safe-zones/nearby", h.Nearby)
	g.GET("/safe-zones/:id", h.GetSafeZone)
}

// RegisterAdminSafeZoneRoutes expects g to already require an admin.
func (h *SafeZoneHandler) RegisterAdminSafeZoneRoutes(g *echo.Group) {
	g.POST("/safe-zones", h.CreateSafeZone)
}

func (h *SafeZoneHandler) ListSafeZones(c echo.Context) error {
	zones, err := h.safeZoneRepository.ListSafeZones(c.Request().Context(),
		strings.TrimSpace(c.QueryParam("city")), strings.TrimSpace(c.QueryParam("kind")))
	if err != nil {
		return err
	}
	if zones == nil {
		zones = []models.SafeZone{}
	}
	return c.JSON(http.StatusOK, echo.Map{"safe_zones": zones})
}

func (h *SafeZoneHandler) GetSafeZone(c echo.Context) error {
	id, err := parseIDParam(c, "id", "safe zone")
	if err != nil {
		return err
	}
	zone, err := h.safeZoneRepository.GetSafeZoneByID(c.Request().Context(), id)
	if err != nil {
		return notFoundOr(err, "Safe zone")
	}
	return c.JSON(http.StatusOK, zone)
}

// Nearby returns active zones within radius_km of lat/lng, closest first.
func (h *SafeZoneHandler) Nearby(c echo.Context) error {
	lat, errLat := strconv.ParseFloat(c.QueryParam("lat"), 64)
	lng, errLng := strconv.ParseFloat(c.QueryParam("lng"), 64)
	center := geo.Point{Lat: lat, Lng: lng}
	if errLat != nil || errLng != nil || !center.Valid() {
		return echo.NewHTTPError(http.StatusBadRequest, "lat and lng must be valid coordinates")
	}

	radius := defaultNearbyRadiusKm
	if raw := c.QueryParam("radius_km"); raw != "" {
		r, err := strconv.ParseFloat(raw, 64)
		if err != nil || r <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "radius_km must be a positive number")
		}
		radius = r
	}
	if radius > maxNearbyRadiusKm {
		radius = maxNearbyRadiusKm
	}

	lo, hi := geo.BoundingBox(center, radius)
	candidates, err := h.safeZoneRepository.WithinBox(c.Request().Context(), lo, hi)
	if err != nil {
		return err
	}

	results := make([]models.SafeZoneWithDistance, 0, len(candidates))
	for _, z := range candidates {
		d := geo.DistanceKm(center, geo.Point{Lat: z.Latitude, Lng: z.Longitude})
		if d <= radius {
			results = append(results, models.SafeZoneWithDistance{SafeZone: z, DistanceKm: d})
		}
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].DistanceKm < results[j].DistanceKm })

	return c.JSON(http.StatusOK, echo.Map{"safe_zones": results, "radius_km": radius})
}

func (h *SafeZoneHandler) CreateSafeZone(c echo.Context) error {
	var req models.CreateSafeZoneRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	zone := &models.SafeZone{
		Name:        strings.TrimSpace(req.Name),
		Kind:        req.Kind,
		Address:     strings.TrimSpace(req.Address),
		City:        strings.TrimSpace(req.City),
		State:       req.State,
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
		Hours:       req.Hours,
		HasCameras:  req.HasCameras,
		Description: req.Description,
		Active:      true,
	}
	if err := h.safeZoneRepository.CreateSafeZone(c.Request().Context(), zone); err != nil {
		return duplicateOr(err, "A safe zone with this name already exists in this city")
	}
	return c.JSON(http.StatusCreated, zone)
}
