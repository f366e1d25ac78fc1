package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shinyyama/community-backend/internal/lifecycle"
	"github.com/shinyyama/community-backend/internal/service"
)

// AdminHandler serves the payment verification desk.
type AdminHandler struct {
	svc service.VerificationService
}

func NewAdminHandler(svc service.VerificationService) *AdminHandler {
	return &AdminHandler{svc: svc}
}

type HistoryResponse struct {
	ID             uint64          `json:"id"`
	ActorUID       string          `json:"actorUid"`
	Op             string          `json:"op"`
	PreviousStatus string          `json:"previousStatus,omitempty"`
	NewStatus      string          `json:"newStatus"`
	Note           string          `json:"note,omitempty"`
	Metadata       json.RawMessage `json:"metadata,omitempty"`
	CreatedAt      string          `json:"createdAt"`
}

func (h *AdminHandler) List(c echo.Context) error {
	uid, err := currentUID(c)
	if uid == "" {
		return err
	}
	limit, offset := pageParams(c)
	list, err := h.svc.ListForReview(c.Request().Context(), uid, service.ReviewQuery{
		Kind:          lifecycle.Kind(c.QueryParam("kind")),
		PaymentStatus: lifecycle.PaymentStatus(c.QueryParam("paymentStatus")),
		Status:        lifecycle.Status(c.QueryParam("status")),
		Text:          c.QueryParam("q"),
		Limit:         limit,
		Offset:        offset,
	})
	if err != nil {
		return writeError(c, err, "failed to list transactions")
	}
	return c.JSON(http.StatusOK, toTransactionList(list))
}

func (h *AdminHandler) Verify(c echo.Context) error {
	uid, err := currentUID(c)
	if uid == "" {
		return err
	}
	var body struct {
		Decision string `json:"decision"`
		Note     string `json:"note"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("invalid_input", "invalid body"))
	}
	t, err := h.svc.ApplyVerification(c.Request().Context(), c.Param("id"), uid, lifecycle.Decision(body.Decision), body.Note)
	if err != nil {
		return writeError(c, err, "failed to apply verification")
	}
	return c.JSON(http.StatusOK, toTransactionResponse(t))
}

func (h *AdminHandler) History(c echo.Context) error {
	uid, err := currentUID(c)
	if uid == "" {
		return err
	}
	list, err := h.svc.History(c.Request().Context(), c.Param("id"), uid)
	if err != nil {
		return writeError(c, err, "failed to fetch history")
	}
	resp := make([]HistoryResponse, 0, len(list))
	for _, e := range list {
		resp = append(resp, HistoryResponse{
			ID:             e.ID,
			ActorUID:       e.ActorUID,
			Op:             string(e.Op),
			PreviousStatus: string(e.PreviousStatus),
			NewStatus:      string(e.NewStatus),
			Note:           e.Note,
			Metadata:       json.RawMessage(e.Metadata),
			CreatedAt:      e.CreatedAt.Format(time.RFC3339),
		})
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *AdminHandler) ProofURL(c echo.Context) error {
	uid, err := currentUID(c)
	if uid == "" {
		return err
	}
	url, err := h.svc.ProofURL(c.Request().Context(), c.Param("id"), uid)
	if err != nil {
		return writeError(c, err, "failed to resolve proof")
	}
	return c.JSON(http.StatusOK, map[string]string{"url": url})
}
