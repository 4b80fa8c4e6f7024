package handlers

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/ASHISH26940/marketing-ops-api/pkg/appstate"
	"github.com/ASHISH26940/marketing-ops-api/pkg/config"
	"github.com/ASHISH26940/marketing-ops-api/pkg/content"
	"github.com/ASHISH26940/marketing-ops-api/pkg/db"
	"github.com/ASHISH26940/marketing-ops-api/pkg/history"
	"github.com/ASHISH26940/marketing-ops-api/pkg/jobs"
	"github.com/ASHISH26940/marketing-ops-api/pkg/middleware"
	"github.com/ASHISH26940/marketing-ops-api/pkg/services"
	"github.com/ASHISH26940/marketing-ops-api/pkg/storage"
	"github.com/ASHISH26940/marketing-ops-api/pkg/utils"
	"github.com/ASHISH26940/marketing-ops-api/pkg/video"
	"github.com/ASHISH26940/marketing-ops-api/pkg/webhook"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// MaxPollDuration bounds a background generation poll (60 x 15s).
const MaxPollDuration = 15 * time.Minute

// UserRepository is implemented by queries.UserRepo.
type UserRepository interface {
	Create(ctx context.Context, user *db.User) (*db.User, error)
	FindByEmail(ctx context.Context, email string) (*db.User, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// LeadRepository is implemented by queries.LeadRepo.
type LeadRepository interface {
	ReplaceForHistory(ctx context.Context, userID, historyID uuid.UUID, leads []db.Lead) error
	ListByHistory(ctx context.Context, userID, historyID uuid.UUID) ([]db.Lead, error)
}

// VideoRepository is implemented by queries.VideoProjectRepo.
type VideoRepository interface {
	Save(ctx context.Context, row *db.VideoProjectRow) (*db.VideoProjectRow, error)
	Find(ctx context.Context, userID, id uuid.UUID) (*db.VideoProjectRow, error)
}

// Deps are the collaborators of every route.
type Deps struct {
	Config   *config.Config
	Users    UserRepository
	Leads    LeadRepository
	Videos   VideoRepository
	Tokens   *services.TokenService
	Sessions *appstate.Registry
	Jobs     jobs.Store

	Generation *webhook.GenerationService
	Poller     *webhook.Poller
	Importer   *webhook.LeadImporter
	Enricher   *webhook.Enricher
	Forwarder  *webhook.Forwarder
	Scripts    *webhook.ScriptWriter

	// Drafts generates content through the kind webhooks; Direct, when set,
	// is the LLM alternative.
	Drafts content.Generator
	Direct content.Generator

	Media storage.Storage
	// ResolveMedia maps a clip URL to something ffmpeg can read.
	ResolveMedia video.Resolver
	// RunExport executes an export plan; replaced in tests.
	RunExport func(ctx context.Context, plan *video.ExportPlan) error
}

// Handlers serves the API. Background work started by a request (generation
// polls, exports) outlives it and is stopped by Shutdown.
type Handlers struct {
	Deps

	players *playerSet

	bg       context.Context
	cancelBg context.CancelFunc
	wg       sync.WaitGroup
}

// NewHandlers creates a new instance of Handlers.
func NewHandlers(deps Deps) *Handlers {
	out := &Handlers{Deps: deps}
	out.players = newPlayerSet()
	out.bg, out.cancelBg = context.WithCancel(context.Background())
	if out.RunExport == nil {
		out.RunExport = func(ctx context.Context, plan *video.ExportPlan) error { return plan.Run(ctx) }
	}
	if out.ResolveMedia == nil {
		out.ResolveMedia = func(u string) (string, error) { return u, nil }
	}
	return out
}

// goBackground runs fn detached from the request, cancelled on Shutdown.
func (h *Handlers) goBackground(timeout time.Duration, fn func(ctx context.Context)) {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		ctx, cancel := context.WithTimeout(h.bg, timeout)
		defer cancel()
		fn(ctx)
	}()
}

// Shutdown cancels background work and waits for it until ctx ends.
func (h *Handlers) Shutdown(ctx context.Context) error {
	h.cancelBg()
	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RegisterRoutes mounts every route on router.
func (h *Handlers) RegisterRoutes(router *gin.Engine) {
	router.Use(CORS(h.Config.AllowedOrigins))
	router.GET("/health", h.HealthCheck)

	authRoutes := router.Group("/auth")
	{
		authRoutes.POST("/register", h.RegisterUser)
		authRoutes.POST("/login", h.LoginUser)
	}

	// Webhook passthrough for the browser; no auth.
	router.Any("/.netlify/functions/:name", h.Proxy)
	router.Any("/api/proxy/:name", h.Proxy)

	hooks := router.Group("/api/webhooks", WebhookSecret(h.Config.WebhookSecret))
	{
		hooks.POST("/generation-callback", h.GenerationCallback)
		hooks.POST("/enrichment-callback", h.EnrichmentCallback)
	}

	api := router.Group("/api", middleware.AuthMiddleware(h.Tokens))
	{
		api.DELETE("/account", h.DeleteUser)
		api.POST("/session/close", h.CloseSession)

		api.GET("/history", h.ListHistory)
		api.POST("/history/refresh", h.RefreshHistory)
		api.DELETE("/history/:id", h.DeleteHistory)
		api.POST("/history/:id/enrich", h.TriggerEnrichment)
		api.GET("/history/:id/enrichment", h.CheckEnrichment)
		api.POST("/history/:id/import", h.ImportLeads)
		api.GET("/history/:id/leads", h.ListLeads)

		api.POST("/generations/leads", h.GenerateLeads)
		api.GET("/generations/:requestId/status", h.GenerationStatus)

		api.GET("/content/:kind", h.ListContent)
		api.POST("/content/:kind", h.CreateContent)
		api.POST("/content/:kind/generate", h.GenerateContent)
		api.PATCH("/content/:kind/:id", h.UpdateContent)
		api.DELETE("/content/:kind/:id", h.DeleteContent)

		api.POST("/media", h.UploadMedia)

		api.GET("/video/projects/:id", h.GetVideoProject)
		api.PUT("/video/projects/:id", h.PutVideoProject)
		api.PATCH("/video/projects/:id", h.PatchVideoProject)
		api.POST("/video/projects/:id/clips", h.AddVideoClip)
		api.DELETE("/video/projects/:id/clips/:clipId", h.RemoveVideoClip)
		api.PUT("/video/projects/:id/clips/:clipId/trim", h.TrimVideoClip)
		api.POST("/video/projects/:id/export", h.ExportVideoProject)
		api.POST("/video/projects/:id/playback", h.VideoPlayback)
		api.POST("/video/projects/:id/script", h.GenerateVideoScript)
	}
}

// session opens the caller's app state, answering the request on failure.
func (h *Handlers) session(c *gin.Context) (*appstate.Session, bool) {
	userID, ok := middleware.UserID(c)
	if !ok {
		log.Error("session: User claims not found in context.")
		utils.ResponseWithError(c, http.StatusUnauthorized, "Authentication error: User claims not found", nil)
		return nil, false
	}
	sess, err := h.Sessions.Open(c.Request.Context(), userID)
	if err != nil {
		log.Errorf("session: %v", err)
		utils.ResponseWithError(c, http.StatusServiceUnavailable, "Failed to load your data, please retry", nil)
		return nil, false
	}
	return sess, true
}

func parseIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		utils.ResponseWithError(c, http.StatusBadRequest, "Invalid "+name, err.Error())
		return uuid.Nil, false
	}
	return id, true
}

// statusFor maps domain errors to HTTP statuses.
func statusFor(err error) int {
	var upstream *webhook.StatusError
	var transport *url.Error
	switch {
	case errors.Is(err, sql.ErrNoRows),
		errors.Is(err, history.ErrEntryNotFound),
		errors.Is(err, content.ErrItemNotFound),
		errors.Is(err, video.ErrClipNotFound),
		errors.Is(err, jobs.ErrJobNotFound),
		errors.Is(err, webhook.ErrUnknownEndpoint):
		return http.StatusNotFound
	case errors.Is(err, webhook.ErrMethodNotAllowed):
		return http.StatusMethodNotAllowed
	case errors.Is(err, storage.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, webhook.ErrInvalidForm),
		errors.Is(err, webhook.ErrUnknownVariant),
		errors.Is(err, history.ErrInvalidStatus),
		errors.Is(err, content.ErrUnknownKind),
		errors.Is(err, content.ErrNotUpdatable),
		errors.Is(err, content.ErrNoGenerator),
		errors.Is(err, video.ErrInvalidTrim),
		errors.Is(err, video.ErrInvalidClip),
		errors.Is(err, video.ErrInvalidSettings),
		errors.Is(err, video.ErrEmptyPlaylist),
		errors.Is(err, video.ErrNoClipSelected),
		errors.Is(err, storage.ErrInvalidFileType),
		errors.Is(err, storage.ErrEmptyFile),
		errors.Is(err, storage.ErrFilenameTooLong):
		return http.StatusBadRequest
	case errors.Is(err, webhook.ErrPollTimeout),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &upstream),
		errors.As(err, &transport),
		errors.Is(err, webhook.ErrGenerationFailed),
		errors.Is(err, webhook.ErrIncompleteResult),
		errors.Is(err, webhook.ErrUnexpectedResponse),
		errors.Is(err, webhook.ErrEmptyScript),
		errors.Is(err, content.ErrEmptyGenerate):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondErr answers with the status statusFor picks.
func respondErr(c *gin.Context, message string, err error) {
	utils.ResponseWithErr(c, statusFor(err), message, err)
}
