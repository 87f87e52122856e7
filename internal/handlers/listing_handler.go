package handlers

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/safetrade/marketplace/backend/internal/models"
	"github.com/safetrade/marketplace/backend/internal/repositories"
	"github.com/safetrade/marketplace/backend/internal/vin"
)

// ListingHandler handles listing, listing image and favorite requests.
type ListingHandler struct {
	listingRepository  repositories.ListingRepository
	favoriteRepository repositories.FavoriteRepository
	vinRepository      repositories.VinRepository
	now                func() time.Time
}

func NewListingHandler(listingRepo repositories.ListingRepository, favoriteRepo repositories.FavoriteRepository, vinRepo repositories.VinRepository) *ListingHandler {
	return &ListingHandler{
		listingRepository:  listingRepo,
		favoriteRepository: favoriteRepo,
		vinRepository:      vinRepo,
		now:                time.Now,
	}
}

// RegisterPublicListingRoutes registers browse routes.
func (h *ListingHandler) RegisterPublicListingRoutes(g *echo.Group) {
	g.GET("/listings", h.ListListings)
	g.GET("/listings/:id", h.GetListing)
}

// RegisterListingRoutes registers routes that act on the caller's listings and favorites.
func (h *ListingHandler) RegisterListingRoutes(g *echo.Group) {
	g.GET("/my/listings", h.MyListings)
	g.POST("/listings", h.CreateListing)
	g.PUT("/listings/:id", h.UpdateListing)
	g.DELETE("/listings/:id", h.DeleteListing)
	g.POST("/listings/:id/images", h.AddImage)
	g.DELETE("/listings/:id/images/:imageId", h.DeleteImage)
	g.POST("/listings/:id/favorite", h.AddFavorite)
	g.DELETE("/listings/:id/favorite", h.RemoveFavorite)
	g.GET("/favorites", h.ListFavorites)
}

func (h *ListingHandler) ListListings(c echo.Context) error {
	filter, err := parseListingFilter(c)
	if err != nil {
		return err
	}
	if filter.Status == "" {
		filter.Status = models.ListingStatusActive
	}
	return h.respondWithPage(c, filter)
}

func (h *ListingHandler) MyListings(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	filter, err := parseListingFilter(c)
	if err != nil {
		return err
	}
	filter.SellerID = userID
	return h.respondWithPage(c, filter)
}

func (h *ListingHandler) respondWithPage(c echo.Context, filter models.ListingFilter) error {
	page, limit := pagination(c)
	listings, total, err := h.listingRepository.ListListings(c.Request().Context(), filter, page, limit)
	if err != nil {
		return err
	}
	totalPages := int(math.Ceil(float64(total) / float64(limit)))
	return c.JSON(http.StatusOK, echo.Map{
		"listings": listings,
		"meta": echo.Map{
			"currentPage":  page,
			"totalPages":   totalPages,
			"totalItems":   total,
			"itemsPerPage": limit,
			"hasNextPage":  page < totalPages,
		},
	})
}

func parseListingFilter(c echo.Context) (models.ListingFilter, error) {
	f := models.ListingFilter{
		Make:  strings.TrimSpace(c.QueryParam("make")),
		Model: strings.TrimSpace(c.QueryParam("model")),
	}
	var err error
	if f.MinPrice, err = queryInt64(c, "min_price"); err != nil {
		return f, err
	}
	if f.MaxPrice, err = queryInt64(c, "max_price"); err != nil {
		return f, err
	}
	minYear, err := queryInt64(c, "min_year")
	if err != nil {
		return f, err
	}
	maxYear, err := queryInt64(c, "max_year")
	if err != nil {
		return f, err
	}
	f.MinYear, f.MaxYear = int(minYear), int(maxYear)

	switch status := c.QueryParam("status"); status {
	case "", models.ListingStatusActive, models.ListingStatusPending, models.ListingStatusSold:
		f.Status = status
	default:
		return f, echo.NewHTTPError(http.StatusBadRequest, "status must be one of active, pending, sold")
	}
	return f, nil
}

func queryInt64(c echo.Context, name string) (int64, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, name+" must be a non-negative integer")
	}
	return v, nil
}

func (h *ListingHandler) GetListing(c echo.Context) error {
	id, err := parseIDParam(c, "id", "listing")
	if err != nil {
		return err
	}
	listing, err := h.listingRepository.GetListingByID(c.Request().Context(), id)
	if err != nil {
		return notFoundOr(err, "Listing")
	}
	return c.JSON(http.StatusOK, listing)
}

func (h *ListingHandler) CreateListing(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	var req models.CreateListingRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if maxYear := h.now().Year() + 1; req.Year > maxYear {
		return echo.NewHTTPError(http.StatusBadRequest, "year must be at most "+strconv.Itoa(maxYear))
	}
	ctx := c.Request().Context()

	listing := &models.Listing{
		SellerID:    userID,
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Make:        strings.TrimSpace(req.Make),
		Model:       strings.TrimSpace(req.Model),
		Year:        req.Year,
		Mileage:     req.Mileage,
		PriceCents:  req.PriceCents,
		City:        req.City,
		State:       req.State,
		Status:      models.ListingStatusActive,
	}
	if req.VIN != "" {
		normalized := vin.Normalize(req.VIN)
		if err := vin.Validate(normalized); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "vin: "+err.Error())
		}
		report, err := h.vinRepository.FindStolenReport(ctx, normalized)
		if err != nil {
			return err
		}
		if report != nil {
			return echo.NewHTTPError(http.StatusConflict, "This VIN has been reported stolen")
		}
		listing.VIN = &normalized
	}
	for i, url := range req.ImageURLs {
		listing.Images = append(listing.Images, models.ListingImage{URL: url, Position: i})
	}

	if err := h.listingRepository.CreateListing(ctx, listing); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, listing)
}

// loadOwned fetches listing :id and checks that userID is its seller.
func (h *ListingHandler) loadOwned(c echo.Context, userID uint) (*models.Listing, error) {
	id, err := parseIDParam(c, "id", "listing")
	if err != nil {
		return nil, err
	}
	listing, err := h.listingRepository.GetListingByID(c.Request().Context(), id)
	if err != nil {
		return nil, notFoundOr(err, "Listing")
	}
	if listing.SellerID != userID {
		return nil, echo.NewHTTPError(http.StatusForbidden, "You can only modify your own listings")
	}
	return listing, nil
}

func (h *ListingHandler) UpdateListing(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	listing, err := h.loadOwned(c, userID)
	if err != nil {
		return err
	}
	var req models.UpdateListingRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	if req.Title != nil {
		listing.Title = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		listing.Description = *req.Description
	}
	if req.Mileage != nil {
		listing.Mileage = *req.Mileage
	}
	if req.PriceCents != nil {
		listing.PriceCents = *req.PriceCents
	}
	if req.City != nil {
		listing.City = *req.City
	}
	if req.State != nil {
		listing.State = *req.State
	}
	if req.Status != nil {
		listing.Status = *req.Status
	}

	if err := h.listingRepository.UpdateListing(c.Request().Context(), listing); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, listing)
}

func (h *ListingHandler) DeleteListing(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	listing, err := h.loadOwned(c, userID)
	if err != nil {
		return err
	}
	if err := h.listingRepository.DeleteListing(c.Request().Context(), listing.ID); err != nil {
		return notFoundOr(err, "Listing")
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

func (h *ListingHandler) AddImage(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	listing, err := h.loadOwned(c, userID)
	if err != nil {
		return err
	}
	var req models.AddListingImageRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	image := &models.ListingImage{ListingID: listing.ID, URL: req.URL}
	err = h.listingRepository.AddImage(c.Request().Context(), image, models.MaxListingImages)
	if errors.Is(err, repositories.ErrImageLimit) {
		return echo.NewHTTPError(http.StatusBadRequest, "A listing can have at most "+strconv.Itoa(models.MaxListingImages)+" images")
	}
	if err != nil {
		return notFoundOr(err, "Listing")
	}
	return c.JSON(http.StatusCreated, image)
}

func (h *ListingHandler) DeleteImage(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	listing, err := h.loadOwned(c, userID)
	if err != nil {
		return err
	}
	imageID, err := parseIDParam(c, "imageId", "image")
	if err != nil {
		return err
	}
	if err := h.listingRepository.DeleteImage(c.Request().Context(), listing.ID, imageID); err != nil {
		return notFoundOr(err, "Image")
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *ListingHandler) AddFavorite(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	id, err := parseIDParam(c, "id", "listing")
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	if _, err := h.listingRepository.GetListingByID(ctx, id); err != nil {
		return notFoundOr(err, "Listing")
	}
	if err := h.favoriteRepository.AddFavorite(ctx, userID, id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "favorited": true})
}

func (h *ListingHandler) RemoveFavorite(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	id, err := parseIDParam(c, "id", "listing")
	if err != nil {
		return err
	}
	if err := h.favoriteRepository.RemoveFavorite(c.Request().Context(), userID, id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "favorited": false})
}

func (h *ListingHandler) ListFavorites(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}
	listings, err := h.favoriteRepository.ListFavoriteListings(c.Request().Context(), userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"listings": listings})
}
