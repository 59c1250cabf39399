package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/david/grant-advisor/internal/advisor"
	"github.com/david/grant-advisor/internal/auth"
	"github.com/david/grant-advisor/internal/db"
	"github.com/david/grant-advisor/internal/ingest"
	"github.com/david/grant-advisor/internal/models"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

// Repository is everything the handlers read or write directly. *db.Store
// satisfies it.
type Repository interface {
	advisor.Store
	ListAnnouncements(ctx context.Context, f db.AnnouncementFilter) (*db.AnnouncementPage, error)
	Stats(ctx context.Context) (map[string]interface{}, error)
	UpsertClient(ctx context.Context, c models.ClientProfile) (*models.ClientProfile, error)
	ListClients(ctx context.Context) ([]models.ClientProfile, error)
	DeleteClient(ctx context.Context, id uuid.UUID) error
	ListRecommendations(ctx context.Context, clientID uuid.UUID) ([]models.Recommendation, error)
	RecentRuns(ctx context.Context, limit int) ([]models.IngestRun, error)
}

var _ Repository = (*db.Store)(nil)

// Authenticator handles operator accounts. *auth.Service satisfies it.
type Authenticator interface {
	Signup(ctx context.Context, req auth.SignupRequest) (*auth.AuthResponse, error)
	Login(ctx context.Context, req auth.LoginRequest) (*auth.AuthResponse, error)
}

// Ingester runs catalog collection. *ingest.Pipeline satisfies it.
type Ingester interface {
	IngestSource(ctx context.Context, sourceID string) (ingest.IngestionStats, error)
	IngestAll(ctx context.Context) (map[string]ingest.IngestionStats, error)
	ImportCSV(ctx context.Context, r io.Reader, source string) (ingest.IngestionStats, error)
}

var _ Ingester = (*ingest.Pipeline)(nil)

// Job timeouts for detached ingestion.
const ingestAllTimeout = 30 * time.Minute

type Options struct {
	Repo        Repository
	Auth        Authenticator
	Tokens      *auth.Tokens
	Ingester    Ingester
	Advisor     *advisor.Service
	TopN        int
	AdminSecret string
	CORSOrigins []string
	Log         *zap.Logger
}

type Server struct {
	Repo     Repository
	Auth     Authenticator
	Tokens   *auth.Tokens
	Ingester Ingester
	Advisor  *advisor.Service
	TopN     int
	Echo     *echo.Echo
	Log      *zap.Logger

	adminSecret string

	// Background job tracking
	jobMu      sync.Mutex
	runningJob *backgroundJob
}

type backgroundJob struct {
	ID        string             `json:"id"`
	Status    string             `json:"status"` // running, completed, failed
	StartedAt time.Time          `json:"started_at"`
	EndedAt   time.Time          `json:"ended_at,omitempty"`
	Result    any                `json:"result,omitempty"`
	Error     string             `json:"error,omitempty"`
	Cancel    context.CancelFunc `json:"-"`
}

func NewServer(opts Options) *Server {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	topN := opts.TopN
	if topN <= 0 {
		topN = 10
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(requestLogger(log))
	e.Use(middleware.Recover())

	// CORS: configured origins plus the local dashboard
	allowedOrigins := []string{"http://localhost:4200"}
	for _, o := range opts.CORSOrigins {
		o = strings.TrimSpace(o)
		if o != "" {
			allowedOrigins = append(allowedOrigins, o)
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: allowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, "X-Admin-Secret"},
	}))

	s := &Server{
		Repo:        opts.Repo,
		Auth:        opts.Auth,
		Tokens:      opts.Tokens,
		Ingester:    opts.Ingester,
		Advisor:     opts.Advisor,
		TopN:        topN,
		Echo:        e,
		Log:         log,
		adminSecret: opts.AdminSecret,
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	s.Echo.GET("/health", s.handleHealth)
	api := s.Echo.Group("/api/v1")

	// Public catalog
	api.GET("/announcements", s.handleListAnnouncements)
	api.GET("/announcements/:id", s.handleGetAnnouncement)
	api.GET("/stats", s.handleGetStats)

	// Auth Routes
	api.POST("/auth/signup", s.handleSignup)
	api.POST("/auth/login", s.handleLogin)

	// Protected Routes (operators)
	clients := api.Group("/clients")
	clients.Use(auth.Middleware(s.Tokens))
	clients.GET("", s.handleListClients)
	clients.POST("", s.handleCreateClient)
	clients.GET("/:id", s.handleGetClient)
	clients.PUT("/:id", s.handleUpdateClient)
	clients.DELETE("/:id", s.handleDeleteClient)
	clients.GET("/:id/matches", s.handleMatches)
	clients.PUT("/:id/reviews/:annID", s.handleReview)
	clients.POST("/:id/roadmap", s.handleRegenerateRoadmap)
	clients.GET("/:id/roadmap", s.handleGetRoadmap)
	clients.GET("/:id/export/:kind", s.handleExport)
	clients.GET("/:id/recommendations", s.handleListRecommendations)
	clients.POST("/:id/recommendations", s.handleRecommend)

	// Admin Routes (ingest)
	admin := api.Group("/ingest")
	admin.Use(auth.AdminSecret(s.adminSecret))
	admin.POST("/source/:id", s.handleIngestSource)
	admin.POST("/all", s.handleIngestAll)
	admin.POST("/import", s.handleImportCSV)
	admin.GET("/job/:id", s.handleJobStatus)
	admin.GET("/runs", s.handleRecentRuns)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

func (s *Server) handleSignup(c echo.Context) error {
	var req auth.SignupRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	if err := req.Normalize(); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	resp, err := s.Auth.Signup(c.Request().Context(), req)
	if err != nil {
		if errors.Is(err, auth.ErrUserExists) {
			return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
		}
		return s.internalError(c, "signup failed", err)
	}

	return c.JSON(http.StatusCreated, resp)
}

func (s *Server) handleLogin(c echo.Context) error {
	var req auth.LoginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}

	resp, err := s.Auth.Login(c.Request().Context(), req)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCreds) {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid credentials"})
		}
		return s.internalError(c, "login failed", err)
	}

	return c.JSON(http.StatusOK, resp)
}

func (s *Server) Start(port string) error {
	return s.Echo.Start(":" + port)
}

// Shutdown stops accepting requests and cancels a running ingest job.
func (s *Server) Shutdown(ctx context.Context) error {
	s.jobMu.Lock()
	if s.runningJob != nil && s.runningJob.Status == "running" && s.runningJob.Cancel != nil {
		s.runningJob.Cancel()
	}
	s.jobMu.Unlock()
	return s.Echo.Shutdown(ctx)
}

func (s *Server) today() models.Date {
	if s.Advisor != nil {
		return s.Advisor.Today()
	}
	return models.DateOf(time.Now())
}

// clientID parses the :id path parameter.
func clientID(c echo.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	return id, err == nil
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, map[string]string{"error": msg})
}

// storeError maps lookup misses to 404 and everything else to 500.
func (s *Server) storeError(c echo.Context, what string, err error) error {
	if errors.Is(err, db.ErrNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": what + " not found"})
	}
	return s.internalError(c, what+" lookup failed", err)
}

func (s *Server) internalError(c echo.Context, msg string, err error) error {
	s.Log.Error(msg, zap.String("path", c.Path()), zap.Error(err))
	return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal Server Error"})
}

// requestLogger writes one zap line per request.
func requestLogger(log *zap.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				log.Warn("request", append(fields, zap.Error(v.Error))...)
				return nil
			}
			log.Debug("request", fields...)
			return nil
		},
	})
}
