package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shinyyama/community-backend/internal/service"
)

type RevenueHandler struct {
	svc service.RevenueService
}

func NewRevenueHandler(svc service.RevenueService) *RevenueHandler {
	return &RevenueHandler{svc: svc}
}

func (h *RevenueHandler) Get(c echo.Context) error {
	uid, err := currentUID(c)
	if uid == "" {
		return err
	}
	rev, err := h.svc.Get(c.Request().Context(), uid)
	if err != nil {
		return writeError(c, err, "failed to fetch revenue")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"amount": rev.Amount,
		"orders": rev.Orders,
	})
}
