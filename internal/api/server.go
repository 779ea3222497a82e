package api

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/gmsas95/dosetrack/internal/adherence"
	"github.com/gmsas95/dosetrack/internal/config"
	apperrors "github.com/gmsas95/dosetrack/internal/errors"
	"github.com/gmsas95/dosetrack/internal/goals"
	"github.com/gmsas95/dosetrack/internal/meds"
	"github.com/gmsas95/dosetrack/internal/metrics"
	"github.com/gmsas95/dosetrack/internal/notify"
)

// Server exposes the medication tracker over HTTP and WebSocket
type Server struct {
	app       *fiber.App
	config    *config.Config
	meds      *meds.Service
	goals     *goals.Service
	adherence *adherence.Aggregator
	feed      *notify.Feed
	logger    *zap.Logger
}

// New creates a new API server
func New(cfg *config.Config, medsSvc *meds.Service, goalsSvc *goals.Service, agg *adherence.Aggregator, feed *notify.Feed, zlogger *zap.Logger) *Server {
	app := fiber.New(fiber.Config{
		ReadTimeout:           time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:          time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:           120 * time.Second,
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})

	s := &Server{
		app:       app,
		config:    cfg,
		meds:      medsSvc,
		goals:     goalsSvc,
		adherence: agg,
		feed:      feed,
		logger:    zlogger,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	// Middleware
	s.app.Use(recover.New())
	s.app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	s.app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(s.config.Server.AllowOrigins, ","),
		AllowHeaders: "Origin, Content-Type, Accept",
		AllowMethods: "GET, POST, PUT, PATCH, DELETE, OPTIONS",
	}))

	// Health check and metrics
	s.app.Get("/api/health", s.handleHealth)
	s.app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	api := s.app.Group("/api")

	// Medications
	api.Get("/medications", s.handleListMedications)
	api.Post("/medications", s.handleCreateMedication)
	api.Get("/medications/:id", s.handleGetMedication)
	api.Put("/medications/:id", s.handleUpdateMedication)
	api.Delete("/medications/:id", s.handleDeleteMedication)
	api.Post("/medications/:id/entries", s.handleAddManualEntry)

	// Schedule
	api.Get("/schedule", s.handleSchedule)
	api.Get("/schedule/:date", s.handleScheduleForDate)
	api.Patch("/entries/:id/status", s.handleUpdateStatus)

	// Goals
	api.Get("/goals", s.handleListGoals)
	api.Post("/goals", s.handleCreateGoal)
	api.Get("/goals/:id", s.handleGetGoal)
	api.Put("/goals/:id", s.handleUpdateGoal)
	api.Delete("/goals/:id", s.handleDeleteGoal)
	api.Patch("/goals/steps/:id", s.handleCompleteStep)

	// Adherence
	api.Get("/adherence/stats", s.handleAdherenceStats)
	api.Get("/adherence/weekly", s.handleWeeklyAdherence)
	api.Get("/adherence/monthly", s.handleMonthlyAdherence)
	api.Get("/adherence/trend", s.handleAdherenceTrend)
	api.Get("/adherence/insights", s.handleAdherenceInsights)

	// Live notification feed
	s.app.Get("/ws", websocket.New(s.handleWebSocket))
}

// Start begins listening for requests
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Address, s.config.Server.Port)
	s.logger.Info("API server listening", zap.String("addr", addr))
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// handleWebSocket streams fired reminders to the client as JSON
func (s *Server) handleWebSocket(c *websocket.Conn) {
	notifications, unsubscribe := s.feed.Subscribe()
	defer unsubscribe()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case n, ok := <-notifications:
			if !ok {
				return
			}
			if err := c.WriteJSON(n); err != nil {
				return
			}
		}
	}
}

// errorHandler maps domain errors onto HTTP statuses: not-found codes
// become 404, validation codes 400, everything else 500.
func errorHandler(c *fiber.Ctx, err error) error {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return c.Status(fiberErr.Code).JSON(fiber.Map{"error": fiberErr.Message})
	}

	code := apperrors.GetCode(err)
	status := fiber.StatusInternalServerError
	switch {
	case code == "MED_001" || code == "MED_002" || code == "GOAL_001":
		status = fiber.StatusNotFound
	case strings.HasPrefix(code, "VAL_") || code == "GEN_002":
		status = fiber.StatusBadRequest
	}

	return c.Status(status).JSON(fiber.Map{
		"error": err.Error(),
		"code":  code,
	})
}
