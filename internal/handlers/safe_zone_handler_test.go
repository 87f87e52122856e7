package handlers

import (
	"net/http"
	"testing"

	"github.com/safetrade/marketplace/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nearbyResponse struct {
	SafeZones []models.SafeZoneWithDistance `json:"safe_zones"`
	RadiusKm  float64                       `json:"radius_km"`
}

func TestNearbySafeZones(t *testing.T) {
	app := newTestApp(t)
	north := app.seedZone("North Precinct", 45.60, -122.68)
	central := app.seedZone("Central Precinct", 45.5152, -122.6784)
	app.seedZone("Seattle Precinct", 47.6062, -122.3321)

	rec := app.do(http.MethodGet, "/api/safe-zones/nearby?lat=45.5152&lng=-122.6784", nil, "")
	requireStatus(t, rec, http.StatusOK)
	got := decodeJSON[nearbyResponse](t, rec)
	assert.Equal(t, 25.0, got.RadiusKm)
	require.Len(t, got.SafeZones, 2)
	assert.Equal(t, central.ID, got.SafeZones[0].ID)
	assert.InDelta(t, 0, got.SafeZones[0].DistanceKm, 0.01)
	assert.Equal(t, north.ID, got.SafeZones[1].ID)
	assert.InDelta(t, 9.4, got.SafeZones[1].DistanceKm, 0.3)

	rec = app.do(http.MethodGet, "/api/safe-zones/nearby?lat=45.5152&lng=-122.6784&radius_km=5", nil, "")
	requireStatus(t, rec, http.StatusOK)
	assert.Len(t, decodeJSON[nearbyResponse](t, rec).SafeZones, 1)

	rec = app.do(http.MethodGet, "/api/safe-zones/nearby?lat=45.5152&lng=-122.6784&radius_km=5000", nil, "")
	requireStatus(t, rec, http.StatusOK)
	capped := decodeJSON[nearbyResponse](t, rec)
	assert.Equal(t, 200.0, capped.RadiusKm)
	assert.Len(t, capped.SafeZones, 2)

	for _, q := range []string{"lat=95&lng=0", "lat=abc&lng=0", "lng=10", "lat=45&lng=-122&radius_km=-1"} {
		requireStatus(t, app.do(http.MethodGet, "/api/safe-zones/nearby?"+q, nil, ""), http.StatusBadRequest)
	}
}

func TestListAndCreateSafeZones(t *testing.T) {
	app := newTestApp(t)
	_, userToken := app.newUser("rider", "")
	_, adminToken := app.newUser("admin", models.RoleAdmin)
	app.seedZone("Central Precinct", 45.5152, -122.6784)

	body := map[string]interface{}{
		"name": "Eastside Bank", "kind": "bank", "address": "200 E Burnside St", "city": "Portland",
		"latitude": 45.523, "longitude": -122.66, "has_cameras": true,
	}
	requireStatus(t, app.do(http.MethodPost, "/api/safe-zones", body, ""), http.StatusUnauthorized)
	requireStatus(t, app.do(http.MethodPost, "/api/safe-zones", body, userToken), http.StatusForbidden)

	rec := app.do(http.MethodPost, "/api/safe-zones", body, adminToken)
	requireStatus(t, rec, http.StatusCreated)
	created := decodeJSON[models.SafeZone](t, rec)
	assert.True(t, created.Active)
	assert.True(t, created.HasCameras)

	requireStatus(t, app.do(http.MethodPost, "/api/safe-zones", body, adminToken), http.StatusConflict)
	body["name"], body["kind"] = "Somewhere", "parking_lot"
	requireStatus(t, app.do(http.MethodPost, "/api/safe-zones", body, adminToken), http.StatusBadRequest)

	rec = app.do(http.MethodGet, "/api/safe-zones?city=portland&kind=bank", nil, "")
	requireStatus(t, rec, http.StatusOK)
	zones := decodeJSON[map[string][]models.SafeZone](t, rec)["safe_zones"]
	require.Len(t, zones, 1)
	assert.Equal(t, "Eastside Bank", zones[0].Name)

	rec = app.do(http.MethodGet, "/api/safe-zones?city=Boise", nil, "")
	requireStatus(t, rec, http.StatusOK)
	assert.Empty(t, decodeJSON[map[string][]models.SafeZone](t, rec)["safe_zones"])

	requireStatus(t, app.do(http.MethodGet, "/api/safe-zones/1", nil, ""), http.StatusOK)
	requireStatus(t, app.do(http.MethodGet, "/api/safe-zones/99", nil, ""), http.StatusNotFound)
}
