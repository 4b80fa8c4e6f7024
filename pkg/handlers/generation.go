package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/ASHISH26940/marketing-ops-api/pkg/history"
	"github.com/ASHISH26940/marketing-ops-api/pkg/jobs"
	"github.com/ASHISH26940/marketing-ops-api/pkg/middleware"
	"github.com/ASHISH26940/marketing-ops-api/pkg/utils"
	"github.com/ASHISH26940/marketing-ops-api/pkg/webhook"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// GenerateLeadsRequest is the lead form plus the webhook variant.
type GenerateLeadsRequest struct {
	webhook.LeadForm
	Variant string `json:"variant"`
}

// GenerateLeads submits the form once. A finished result is recorded in the
// history right away; a pending one is polled in the background and recorded
// when it resolves.
func (h *Handlers) GenerateLeads(c *gin.Context) {
	var req GenerateLeadsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ResponseWithError(c, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	variant, err := webhook.ParseVariant(req.Variant)
	if err != nil {
		utils.ResponseWithErr(c, http.StatusBadRequest, "Unknown generation variant", err)
		return
	}
	form := req.LeadForm
	if err := form.Validate(); err != nil {
		utils.ResponseWithErr(c, http.StatusBadRequest, "Incomplete lead form", err)
		return
	}
	sess, ok := h.session(c)
	if !ok {
		return
	}

	form.RequestID = uuid.NewString()
	form.CallbackURL = h.Config.BaseURL() + "/api/webhooks/generation-callback"
	ctx := c.Request.Context()

	res := h.Generation.Generate(ctx, form, variant)
	if res.Pending {
		h.trackGeneration(ctx, sess.UserID, form, res.RequestID)
		utils.ResponseWithSuccess(c, http.StatusAccepted, "Lead generation in progress", res)
		return
	}

	entry, err := sess.History.Add(ctx, history.EntryFromResult(form, res))
	if err != nil {
		respondErr(c, "Lead generation finished but could not be saved to history", err)
		return
	}
	if !res.Success {
		log.Warnf("GenerateLeads: request %s failed: %s", res.RequestID, res.Error)
		utils.ResponseWithError(c, http.StatusBadGateway, res.Error, gin.H{"history": entry, "requestId": res.RequestID})
		return
	}
	utils.ResponseWithSuccess(c, http.StatusCreated, "Leads generated", gin.H{"result": res, "history": entry})
}

// trackGeneration records the job and starts the background poll.
func (h *Handlers) trackGeneration(ctx context.Context, userID uuid.UUID, form webhook.LeadForm, requestID string) {
	h.putIfAbsent(ctx, jobs.Status{
		RequestID: requestID,
		UserID:    userID.String(),
		Kind:      jobs.KindLeads,
		State:     jobs.StateProcessing,
	})

	h.goBackground(MaxPollDuration, func(ctx context.Context) {
		body, err := h.Poller.PollUntilComplete(ctx, requestID)
		res := webhook.GenerationResult{RequestID: requestID}
		status := jobs.Status{RequestID: requestID, UserID: userID.String(), Kind: jobs.KindLeads}
		switch {
		case err == nil:
			res.Success = true
			res.SheetID, res.SheetLink, res.LeadsCount = body.SheetID, body.SheetLink, int(body.LeadsCount)
			status.State, status.SheetID, status.SheetLink, status.LeadsCount = jobs.StateComplete, body.SheetID, body.SheetLink, res.LeadsCount
		case errors.Is(err, context.Canceled):
			log.Warnf("trackGeneration: poll for %s abandoned at shutdown", requestID)
			return
		default:
			res.Error = err.Error()
			status.State, status.Message = jobs.StateFailed, err.Error()
		}

		// a fresh context: the poll context may be exhausted by now
		saveCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := h.Jobs.Put(saveCtx, status); err != nil {
			log.Errorf("trackGeneration: failed to store final status of %s: %v", requestID, err)
		}
		sess, err := h.Sessions.Open(saveCtx, userID)
		if err != nil {
			log.Errorf("trackGeneration: cannot record %s for user %s: %v", requestID, userID, err)
			return
		}
		if _, err := sess.History.Add(saveCtx, history.EntryFromResult(form, res)); err != nil {
			log.Errorf("trackGeneration: failed to record %s in history: %v", requestID, err)
			return
		}
		log.Infof("trackGeneration: request %s resolved as %s", requestID, status.State)
	})
}

// putIfAbsent stores status unless a record exists, so a callback that beat
// us here is not overwritten.
func (h *Handlers) putIfAbsent(ctx context.Context, status jobs.Status) {
	if _, err := h.Jobs.Get(ctx, status.RequestID); err == nil {
		return
	} else if !errors.Is(err, jobs.ErrJobNotFound) {
		log.Warnf("putIfAbsent: reading job %s: %v", status.RequestID, err)
	}
	if err := h.Jobs.Put(ctx, status); err != nil {
		log.Errorf("putIfAbsent: failed to store job %s: %v", status.RequestID, err)
	}
}

// GenerationStatus reports a generation or export job owned by the caller.
func (h *Handlers) GenerationStatus(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		utils.ResponseWithError(c, http.StatusUnauthorized, "Authentication error: User claims not found", nil)
		return
	}
	status, err := h.Jobs.Get(c.Request.Context(), c.Param("requestId"))
	if err == nil && status.UserID != userID.String() {
		err = jobs.ErrJobNotFound
	}
	if err != nil {
		respondErr(c, "Job not found", err)
		return
	}
	utils.ResponseWithSuccess(c, http.StatusOK, "Job status retrieved", status)
}
