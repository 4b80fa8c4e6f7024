package handlers

import (
	"context"
	"crypto/subtle"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ASHISH26940/marketing-ops-api/pkg/db"
	"github.com/ASHISH26940/marketing-ops-api/pkg/jobs"
	"github.com/ASHISH26940/marketing-ops-api/pkg/lenient"
	"github.com/ASHISH26940/marketing-ops-api/pkg/utils"
	"github.com/ASHISH26940/marketing-ops-api/pkg/webhook"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// WebhookSecretHeader carries the shared secret on automation callbacks.
const WebhookSecretHeader = "X-Webhook-Secret"

// maxCallbackBody caps what a callback may post.
const maxCallbackBody = 1 << 20

// WebhookSecret rejects callbacks without the shared secret. An empty secret
// disables the check.
func WebhookSecret(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}
		got := c.GetHeader(WebhookSecretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			log.Warnf("WebhookSecret: rejected callback to %s from %s", c.FullPath(), c.ClientIP())
			utils.ResponseWithError(c, http.StatusUnauthorized, "Invalid webhook secret", nil)
			c.Abort()
			return
		}
		c.Next()
	}
}

// readCallback decodes the body leniently and insists on an object.
func readCallback(c *gin.Context) (*webhook.StatusBody, bool) {
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxCallbackBody))
	if err != nil {
		utils.ResponseWithError(c, http.StatusBadRequest, "Failed to read callback body", err.Error())
		return nil, false
	}
	resp := webhook.ParseResponse(http.StatusOK, raw)
	if resp.Kind != webhook.KindStatus || resp.Status == nil {
		utils.ResponseWithError(c, http.StatusBadRequest, "Callback body must be a JSON object", nil)
		return nil, false
	}
	if resp.Outcome != lenient.OutcomeParsed {
		log.Warnf("readCallback: %s body needed recovery (%s)", c.FullPath(), resp.Outcome)
	}
	return resp.Status, true
}

// GenerationCallback lets the scenario push the outcome of a run. The job
// keeps its owner and kind; a background poll picks the new state up on its
// next attempt.
func (h *Handlers) GenerationCallback(c *gin.Context) {
	body, ok := readCallback(c)
	if !ok {
		return
	}
	if body.RequestID == "" {
		utils.ResponseWithError(c, http.StatusBadRequest, "Callback is missing requestId", nil)
		return
	}
	ctx := c.Request.Context()

	status := jobs.Status{RequestID: body.RequestID, Kind: jobs.KindLeads}
	if prev, err := h.Jobs.Get(ctx, body.RequestID); err == nil {
		if prev.Terminal() {
			log.Infof("GenerationCallback: %s already %s, ignoring", prev.RequestID, prev.State)
			utils.ResponseWithSuccess(c, http.StatusOK, "Job already finished", prev)
			return
		}
		status.UserID, status.Kind = prev.UserID, prev.Kind
	} else if !errors.Is(err, jobs.ErrJobNotFound) {
		respondErr(c, "Failed to read job", err)
		return
	}

	switch {
	case body.HasSheet() || body.IsComplete():
		status.State = jobs.StateComplete
		status.SheetID, status.SheetLink, status.LeadsCount = body.SheetID, body.SheetLink, int(body.LeadsCount)
	case body.IsFailed():
		status.State = jobs.StateFailed
		status.Message = firstNonEmpty(body.Error, body.Message, "lead generation failed")
	default:
		status.State = jobs.StateProcessing
		status.Message = body.Message
	}

	if err := h.Jobs.Put(ctx, status); err != nil {
		respondErr(c, "Failed to store job status", err)
		return
	}
	log.Infof("GenerationCallback: request %s is %s", status.RequestID, status.State)
	utils.ResponseWithSuccess(c, http.StatusOK, "Callback received", status)
}

// EnrichmentCallback closes an enrichment run started by TriggerEnrichment.
// The history entry is found through the job recorded at trigger time.
func (h *Handlers) EnrichmentCallback(c *gin.Context) {
	body, ok := readCallback(c)
	if !ok {
		return
	}
	historyID, err := uuid.Parse(body.Field("historyId", "history_id"))
	if err != nil {
		utils.ResponseWithError(c, http.StatusBadRequest, "Callback is missing a valid historyId", nil)
		return
	}
	ctx := c.Request.Context()

	key := jobs.EnrichmentKey(historyID.String())
	job, err := h.Jobs.Get(ctx, key)
	if err != nil {
		respondErr(c, "No enrichment run is waiting for this entry", err)
		return
	}
	userID, err := uuid.Parse(job.UserID)
	if err != nil {
		log.Errorf("EnrichmentCallback: job %s has no owner: %v", key, err)
		utils.ResponseWithError(c, http.StatusInternalServerError, "Enrichment job is corrupt", nil)
		return
	}

	enrichment, state := db.EnrichmentCompleted, jobs.StateComplete
	if body.IsFailed() {
		enrichment, state = db.EnrichmentNotStarted, jobs.StateFailed
	} else if body.IsProcessing() {
		utils.ResponseWithSuccess(c, http.StatusOK, "Callback received", job)
		return
	}

	entry, err := h.recordEnrichment(ctx, userID, historyID, enrichment)
	if err != nil {
		respondErr(c, "Failed to update enrichment status", err)
		return
	}
	job.State, job.Message, job.UpdatedAt = state, firstNonEmpty(body.Error, body.Message), time.Time{}
	if err := h.Jobs.Put(ctx, *job); err != nil {
		log.Errorf("EnrichmentCallback: failed to store job %s: %v", key, err)
	}
	log.Infof("EnrichmentCallback: entry %s enrichment %s", historyID, enrichment)
	utils.ResponseWithSuccess(c, http.StatusOK, "Callback received", entry)
}

func (h *Handlers) recordEnrichment(ctx context.Context, userID, historyID uuid.UUID, status string) (*db.LeadHistory, error) {
	sess, err := h.Sessions.Open(ctx, userID)
	if err != nil {
		return nil, err
	}
	return sess.History.UpdateEnrichmentStatus(ctx, historyID, status)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
