package server

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/shinyyama/community-backend/internal/handler"
	appmw "github.com/shinyyama/community-backend/internal/middleware"
	"github.com/shinyyama/community-backend/internal/realtime"
	"github.com/shinyyama/community-backend/internal/service"
)

// Deps are the collaborators the HTTP surface is built from.
type Deps struct {
	Transactions  service.TransactionService
	Verification  service.VerificationService
	Fulfillment   service.FulfillmentService
	Notifications service.NotificationService
	Revenue       service.RevenueService
	Hub           *realtime.Hub
	Auth          *appmw.AuthMiddleware
	Metrics       http.Handler
	ProofMaxBytes int64
	SHA           string
	BuildTime     string
}

type Server struct {
	e *echo.Echo
}

func New(d Deps) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.Logger())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:     []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		AllowOriginFunc:  allowOrigin,
	}))
	if d.ProofMaxBytes > 0 {
		// multipart framing on top of the file itself
		e.Use(middleware.BodyLimit(strconv.FormatInt(d.ProofMaxBytes+1<<20, 10)))
	}

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"ok":         "true",
			"git_sha":    d.SHA,
			"build_time": d.BuildTime,
		})
	})
	if d.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(d.Metrics))
	}

	txnHandler := handler.NewTransactionHandler(d.Transactions, d.Fulfillment, d.ProofMaxBytes)
	adminHandler := handler.NewAdminHandler(d.Verification)
	notifHandler := handler.NewNotificationHandler(d.Notifications)
	revenueHandler := handler.NewRevenueHandler(d.Revenue)

	api := e.Group("/api", d.Auth.RequireAuth)
	api.POST("/orders", txnHandler.CreateOrder)
	api.POST("/enrollments", txnHandler.CreateEnrollment)
	api.GET("/me/transactions", txnHandler.ListMine)
	api.GET("/me/sales", txnHandler.ListSales)
	api.GET("/me/revenue", revenueHandler.Get)
	api.GET("/transactions/:id", txnHandler.Get)
	api.POST("/transactions/:id/proof", txnHandler.SubmitProof)
	api.POST("/transactions/:id/ship", txnHandler.MarkShipped)
	api.POST("/transactions/:id/deliver", txnHandler.ConfirmDelivery)
	api.POST("/transactions/:id/complete", txnHandler.Complete)
	api.POST("/transactions/:id/review", txnHandler.SubmitReview)

	admin := api.Group("/admin")
	admin.GET("/transactions", adminHandler.List)
	admin.POST("/transactions/:id/verify", adminHandler.Verify)
	admin.GET("/transactions/:id/history", adminHandler.History)
	admin.GET("/transactions/:id/proof", adminHandler.ProofURL)

	api.GET("/notifications", notifHandler.List)
	api.POST("/notifications/read", notifHandler.MarkAllRead)
	api.POST("/notifications/:id/read", notifHandler.MarkRead)
	if d.Hub != nil {
		api.GET("/notifications/stream", d.Hub.Serve)
	}

	return &Server{e: e}
}

func allowOrigin(origin string) (bool, error) {
	low := strings.ToLower(origin)
	if strings.HasPrefix(low, "http://localhost:") || strings.HasPrefix(low, "http://127.0.0.1:") ||
		strings.HasPrefix(low, "https://localhost:") || strings.HasPrefix(low, "https://127.0.0.1:") {
		return true, nil
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false, nil
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false, nil
	}
	return strings.HasSuffix(u.Hostname(), "vercel.app"), nil
}

func (s *Server) Handler() http.Handler {
	return s.e
}

func (s *Server) Start(addr string) error {
	return s.e.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.e.Shutdown(ctx)
}
