package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/comanda/restaurant-console/internal/core/ports"
)

type RestaurantHandler struct {
	info ports.RestaurantInfoReader
}

func NewRestaurantHandler(info ports.RestaurantInfoReader) *RestaurantHandler {
	return &RestaurantHandler{info: info}
}

// Get returns the restaurant profile loaded after login.
//
// @Summary      Restaurant profile
// @Tags         restaurant
// @Produce      json
// @Success      200  {object}  domain.RestaurantInfo
// @Failure      401  {object}  map[string]string
// @Failure      403  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /restaurant [get]
func (h *RestaurantHandler) Get(c echo.Context) error {
	info, err := h.info.Info()
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "restaurant info unavailable")
	}
	if info == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "restaurant info not loaded yet")
	}
	return c.JSON(http.StatusOK, info)
}
