package handlers

import (
	"net/http"
	"testing"

	"github.com/safetrade/marketplace/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckVin(t *testing.T) {
	app := newTestApp(t)
	user, token := app.newUser("buyer", "")
	_, adminToken := app.newUser("admin", models.RoleAdmin)

	rec := app.do(http.MethodPost, "/api/vin/check", map[string]string{"vin": "jh2pc40j37m200001"}, token)
	requireStatus(t, rec, http.StatusOK)
	clean := decodeJSON[models.VinCheckResponse](t, rec)
	assert.True(t, clean.Valid)
	assert.False(t, clean.Stolen)
	assert.Equal(t, "JH2PC40J37M200001", clean.VIN)
	assert.Equal(t, "JH2", clean.WMI)
	assert.Equal(t, "Asia", clean.Region)
	assert.Equal(t, 2007, clean.ModelYear)

	rec = app.do(http.MethodPost, "/api/vin/check", map[string]string{"vin": "JH2PC40J07M200001"}, token)
	requireStatus(t, rec, http.StatusOK)
	invalid := decodeJSON[models.VinCheckResponse](t, rec)
	assert.False(t, invalid.Valid)
	assert.Equal(t, "VIN check digit does not match", invalid.Reason)

	rec = app.do(http.MethodPost, "/api/stolen-reports", map[string]string{"vin": "1M8GDM9AXKP042788", "source": "Portland PD"}, token)
	requireStatus(t, rec, http.StatusForbidden)
	rec = app.do(http.MethodPost, "/api/stolen-reports", map[string]string{"vin": "1M8GDM9AXKP042788", "source": "Portland PD"}, adminToken)
	requireStatus(t, rec, http.StatusCreated)
	rec = app.do(http.MethodPost, "/api/stolen-reports", map[string]string{"vin": "1m8gdm9axkp042788", "source": "NICB"}, adminToken)
	requireStatus(t, rec, http.StatusConflict)
	requireStatus(t, app.do(http.MethodPost, "/api/stolen-reports", map[string]string{"vin": "123", "source": "NICB"}, adminToken), http.StatusBadRequest)

	rec = app.do(http.MethodPost, "/api/vin/check", map[string]string{"vin": "1M8GDM9AXKP042788"}, token)
	requireStatus(t, rec, http.StatusOK)
	stolen := decodeJSON[models.VinCheckResponse](t, rec)
	assert.True(t, stolen.Stolen)
	require.NotNil(t, stolen.Report)
	assert.Equal(t, "Portland PD", stolen.Report.Source)

	requireStatus(t, app.do(http.MethodPost, "/api/vin/check", map[string]string{}, token), http.StatusBadRequest)
	requireStatus(t, app.do(http.MethodPost, "/api/vin/check", map[string]string{"vin": "JH2PC40J37M200001"}, ""), http.StatusUnauthorized)

	require.Len(t, app.vins.checks, 3)
	assert.Equal(t, user.ID, app.vins.checks[0].UserID)
	assert.False(t, app.vins.checks[1].Valid)
	assert.True(t, app.vins.checks[2].Stolen)
}
