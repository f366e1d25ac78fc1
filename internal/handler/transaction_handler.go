package handler

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shinyyama/community-backend/internal/lifecycle"
	"github.com/shinyyama/community-backend/internal/model"
	"github.com/shinyyama/community-backend/internal/service"
)

type TransactionHandler struct {
	svc           service.TransactionService
	fulfillment   service.FulfillmentService
	proofMaxBytes int64
}

func NewTransactionHandler(svc service.TransactionService, fulfillment service.FulfillmentService, proofMaxBytes int64) *TransactionHandler {
	return &TransactionHandler{svc: svc, fulfillment: fulfillment, proofMaxBytes: proofMaxBytes}
}

type TransactionResponse struct {
	ID              string  `json:"id"`
	Kind            string  `json:"kind"`
	BuyerUID        string  `json:"buyerUid"`
	SellerUID       *string `json:"sellerUid,omitempty"`
	SubjectID       uint64  `json:"subjectId"`
	Quantity        int64   `json:"quantity"`
	TotalAmount     int64   `json:"totalAmount"`
	Status          string  `json:"status"`
	PaymentStatus   string  `json:"paymentStatus"`
	PaymentProofRef *string `json:"paymentProofRef,omitempty"`
	TrackingRef     *string `json:"trackingRef,omitempty"`
	CreatedAt       string  `json:"createdAt"`
	UpdatedAt       string  `json:"updatedAt"`
}

func toTransactionResponse(t *model.Transaction) TransactionResponse {
	return TransactionResponse{
		ID:              t.ID,
		Kind:            string(t.Kind),
		BuyerUID:        t.BuyerUID,
		SellerUID:       t.CounterpartyUID,
		SubjectID:       t.SubjectID,
		Quantity:        t.Quantity,
		TotalAmount:     t.TotalAmount,
		Status:          string(t.Status),
		PaymentStatus:   string(t.PaymentStatus),
		PaymentProofRef: t.PaymentProofRef,
		TrackingRef:     t.TrackingRef,
		CreatedAt:       t.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       t.UpdatedAt.Format(time.RFC3339),
	}
}

func toTransactionList(list []model.Transaction) []TransactionResponse {
	resp := make([]TransactionResponse, 0, len(list))
	for i := range list {
		resp = append(resp, toTransactionResponse(&list[i]))
	}
	return resp
}

func (h *TransactionHandler) CreateOrder(c echo.Context) error {
	uid, err := currentUID(c)
	if uid == "" {
		return err
	}
	var body struct {
		ItemID   uint64 `json:"itemId"`
		Quantity int64  `json:"quantity"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("invalid_input", "invalid body"))
	}
	if body.Quantity == 0 {
		body.Quantity = 1
	}
	t, err := h.svc.Create(c.Request().Context(), lifecycle.KindOrder, uid, body.ItemID, body.Quantity)
	if err != nil {
		return writeError(c, err, "failed to create order")
	}
	return c.JSON(http.StatusCreated, toTransactionResponse(t))
}

func (h *TransactionHandler) CreateEnrollment(c echo.Context) error {
	uid, err := currentUID(c)
	if uid == "" {
		return err
	}
	var body struct {
		CourseID uint64 `json:"courseId"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("invalid_input", "invalid body"))
	}
	t, err := h.svc.Create(c.Request().Context(), lifecycle.KindEnrollment, uid, body.CourseID, 1)
	if err != nil {
		return writeError(c, err, "failed to create enrollment")
	}
	return c.JSON(http.StatusCreated, toTransactionResponse(t))
}

func (h *TransactionHandler) ListMine(c echo.Context) error {
	uid, err := currentUID(c)
	if uid == "" {
		return err
	}
	limit, offset := pageParams(c)
	list, err := h.svc.ListMine(c.Request().Context(), uid, lifecycle.Kind(c.QueryParam("kind")), limit, offset)
	if err != nil {
		return writeError(c, err, "failed to list transactions")
	}
	return c.JSON(http.StatusOK, toTransactionList(list))
}

func (h *TransactionHandler) ListSales(c echo.Context) error {
	uid, err := currentUID(c)
	if uid == "" {
		return err
	}
	limit, offset := pageParams(c)
	list, err := h.svc.ListSales(c.Request().Context(), uid, limit, offset)
	if err != nil {
		return writeError(c, err, "failed to list sales")
	}
	return c.JSON(http.StatusOK, toTransactionList(list))
}

func (h *TransactionHandler) Get(c echo.Context) error {
	uid, err := currentUID(c)
	if uid == "" {
		return err
	}
	t, err := h.svc.Get(c.Request().Context(), c.Param("id"), uid)
	if err != nil {
		return writeError(c, err, "failed to fetch transaction")
	}
	return c.JSON(http.StatusOK, toTransactionResponse(t))
}

// SubmitProof takes a multipart "file" upload, or a JSON proofRef that was
// stored elsewhere.
func (h *TransactionHandler) SubmitProof(c echo.Context) error {
	uid, err := currentUID(c)
	if uid == "" {
		return err
	}
	ctx := c.Request().Context()
	id := c.Param("id")

	fh, ferr := c.FormFile("file")
	if ferr != nil {
		var body struct {
			ProofRef string `json:"proofRef"`
		}
		if err := c.Bind(&body); err != nil || body.ProofRef == "" {
			return c.JSON(http.StatusBadRequest, NewErrorResponse("invalid_input", "file or proofRef is required"))
		}
		t, err := h.svc.SubmitPaymentProof(ctx, id, uid, body.ProofRef)
		if err != nil {
			return writeError(c, err, "failed to submit proof")
		}
		return c.JSON(http.StatusOK, toTransactionResponse(t))
	}

	f, err := fh.Open()
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("invalid_input", "unreadable file"))
	}
	defer f.Close()
	var src io.Reader = f
	if h.proofMaxBytes > 0 {
		src = io.LimitReader(f, h.proofMaxBytes+1)
	}
	data, err := io.ReadAll(src)
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("invalid_input", "unreadable file"))
	}
	contentType := fh.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	t, err := h.svc.UploadProof(ctx, id, uid, data, contentType)
	if err != nil {
		return writeError(c, err, "failed to upload proof")
	}
	return c.JSON(http.StatusOK, toTransactionResponse(t))
}

func (h *TransactionHandler) MarkShipped(c echo.Context) error {
	uid, err := currentUID(c)
	if uid == "" {
		return err
	}
	var body struct {
		TrackingRef string `json:"trackingRef"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("invalid_input", "invalid body"))
	}
	t, err := h.svc.MarkShipped(c.Request().Context(), c.Param("id"), uid, body.TrackingRef)
	if err != nil {
		return writeError(c, err, "failed to mark shipped")
	}
	return c.JSON(http.StatusOK, toTransactionResponse(t))
}

func (h *TransactionHandler) ConfirmDelivery(c echo.Context) error {
	uid, err := currentUID(c)
	if uid == "" {
		return err
	}
	t, err := h.svc.ConfirmDelivery(c.Request().Context(), c.Param("id"), uid)
	if err != nil {
		return writeError(c, err, "failed to confirm delivery")
	}
	return c.JSON(http.StatusOK, toTransactionResponse(t))
}

func (h *TransactionHandler) Complete(c echo.Context) error {
	uid, err := currentUID(c)
	if uid == "" {
		return err
	}
	t, err := h.svc.Complete(c.Request().Context(), c.Param("id"), uid)
	if err != nil {
		return writeError(c, err, "failed to complete transaction")
	}
	return c.JSON(http.StatusOK, toTransactionResponse(t))
}

type ReviewResponse struct {
	ID        uint64 `json:"id"`
	Rating    int    `json:"rating"`
	Comment   string `json:"comment"`
	CreatedAt string `json:"createdAt"`
}

func (h *TransactionHandler) SubmitReview(c echo.Context) error {
	uid, err := currentUID(c)
	if uid == "" {
		return err
	}
	var body struct {
		Rating  int    `json:"rating"`
		Comment string `json:"comment"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("invalid_input", "invalid body"))
	}
	t, rv, err := h.fulfillment.SubmitReview(c.Request().Context(), c.Param("id"), uid, body.Rating, body.Comment)
	if err != nil {
		return writeError(c, err, "failed to submit review")
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"transaction": toTransactionResponse(t),
		"review": ReviewResponse{
			ID:        rv.ID,
			Rating:    rv.Rating,
			Comment:   rv.Comment,
			CreatedAt: rv.CreatedAt.Format(time.RFC3339),
		},
	})
}

func pageParams(c echo.Context) (int, int) {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	return limit, offset
}
