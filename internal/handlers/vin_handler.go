package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/safetrade/marketplace/backend/internal/models"
	"github.com/safetrade/marketplace/backend/internal/repositories"
	"github.com/safetrade/marketplace/backend/internal/vin"
)

type VinHandler struct {
	vinRepository repositories.VinRepository
	now           func() time.Time
}

func NewVinHandler(vinRepo repositories.VinRepository) *VinHandler {
	return &VinHandler{vinRepository: vinRepo, now: time.Now}
}

func (h *VinHandler) RegisterVinRoutes(g *echo.Group) {
	g.POST("/vin/check", h.CheckVin)
}

// RegisterAdminVinRoutes expects g to already require an admin.
func (h *VinHandler) RegisterAdminVinRoutes(g *echo.Group) {
	g.POST("/stolen-reports", h.CreateStolenReport)
}

// CheckVin validates a VIN, decodes what it can and looks it up in the stolen reports.
// An invalid VIN is a normal 200 result with valid=false.
func (h *VinHandler) CheckVin(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	var req models.VinCheckRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	now := h.now()

	resp := models.VinCheckResponse{VIN: vin.Normalize(req.VIN)}
	decoded, err := vin.Decode(resp.VIN, now)
	if err != nil {
		resp.Reason = err.Error()
	} else {
		resp.Valid = true
		resp.WMI = decoded.WMI
		resp.Region = decoded.Region
		resp.ModelYear = decoded.ModelYear

		report, err := h.vinRepository.FindStolenReport(ctx, resp.VIN)
		if err != nil {
			return err
		}
		resp.Stolen = report != nil
		resp.Report = report
	}

	if err := h.vinRepository.RecordCheck(ctx, &models.VinCheck{
		UserID:    userID,
		VIN:       resp.VIN,
		Valid:     resp.Valid,
		Stolen:    resp.Stolen,
		CheckedAt: now.UTC(),
	}); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *VinHandler) CreateStolenReport(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	var req models.CreateStolenReportRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	report := &models.StolenVehicleReport{
		VIN:        vin.Normalize(req.VIN),
		Source:     req.Source,
		ReportedAt: h.now().UTC(),
		CreatedBy:  userID,
	}
	if req.ReportedAt != nil {
		report.ReportedAt = req.ReportedAt.UTC()
	}
	if err := h.vinRepository.CreateStolenReport(c.Request().Context(), report); err != nil {
		return duplicateOr(err, "This VIN is already reported stolen")
	}
	return c.JSON(http.StatusCreated, report)
}
