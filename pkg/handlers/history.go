package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ASHISH26940/marketing-ops-api/pkg/db"
	"github.com/ASHISH26940/marketing-ops-api/pkg/jobs"
	"github.com/ASHISH26940/marketing-ops-api/pkg/middleware"
	"github.com/ASHISH26940/marketing-ops-api/pkg/utils"
	"github.com/ASHISH26940/marketing-ops-api/pkg/webhook"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

type EnrichRequest struct {
	Variant string `json:"variant" binding:"required"`
}

func (h *Handlers) ListHistory(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	utils.ResponseWithSuccess(c, http.StatusOK, "History retrieved", sess.History.Entries())
}

func (h *Handlers) RefreshHistory(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	if err := sess.History.Refresh(c.Request.Context()); err != nil {
		log.Errorf("RefreshHistory: user %s: %v", sess.UserID, err)
		respondErr(c, "Failed to refresh history", err)
		return
	}
	utils.ResponseWithSuccess(c, http.StatusOK, "History refreshed", sess.History.Entries())
}

func (h *Handlers) DeleteHistory(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	sess, ok := h.session(c)
	if !ok {
		return
	}
	if err := sess.History.Delete(c.Request.Context(), id); err != nil {
		respondErr(c, "Failed to delete history entry", err)
		return
	}
	utils.ResponseWithSuccess(c, http.StatusOK, "History entry deleted", nil)
}

// TriggerEnrichment starts an enrichment scenario for the entry's sheet and
// marks the entry in progress once the scenario accepted it.
func (h *Handlers) TriggerEnrichment(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req EnrichRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ResponseWithError(c, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	kind, err := webhook.ParseEnrichmentKind(req.Variant)
	if err != nil {
		utils.ResponseWithErr(c, http.StatusBadRequest, "Unknown enrichment variant", err)
		return
	}
	sess, ok := h.session(c)
	if !ok {
		return
	}
	entry, found := sess.History.Get(id)
	if !found {
		utils.ResponseWithError(c, http.StatusNotFound, "History entry not found", nil)
		return
	}
	if entry.SheetID == "" {
		utils.ResponseWithError(c, http.StatusConflict, "History entry has no lead sheet to enrich", nil)
		return
	}

	ctx := c.Request.Context()
	err = h.Enricher.Trigger(ctx, kind, webhook.EnrichRequest{
		SheetID:     entry.SheetID,
		HistoryID:   entry.ID.String(),
		CallbackURL: h.Config.BaseURL() + "/api/webhooks/enrichment-callback",
	})
	if err != nil {
		respondErr(c, "Failed to start enrichment", err)
		return
	}

	updated, err := sess.History.UpdateEnrichmentStatus(ctx, id, db.EnrichmentInProgress)
	if err != nil {
		respondErr(c, "Enrichment started but its status could not be saved", err)
		return
	}
	if err := h.Jobs.Put(ctx, jobs.Status{
		RequestID: jobs.EnrichmentKey(id.String()),
		UserID:    sess.UserID.String(),
		Kind:      jobs.KindEnrichment,
		State:     jobs.StateProcessing,
		Message:   string(kind),
	}); err != nil {
		log.Errorf("TriggerEnrichment: failed to track enrichment of %s: %v", id, err)
	}
	log.Infof("TriggerEnrichment: %s enrichment started for entry %s", kind, id)
	utils.ResponseWithSuccess(c, http.StatusAccepted, "Enrichment started", updated)
}

func (h *Handlers) CheckEnrichment(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	sess, ok := h.session(c)
	if !ok {
		return
	}
	entry, err := sess.History.CheckEnrichmentStatus(c.Request.Context(), id)
	if err != nil {
		respondErr(c, "Failed to check enrichment status", err)
		return
	}
	utils.ResponseWithSuccess(c, http.StatusOK, "Enrichment status retrieved", gin.H{
		"enrichmentStatus":    entry.EnrichmentStatus,
		"enrichmentTimestamp": entry.EnrichmentTimestamp,
		"enrichmentCount":     entry.EnrichmentCount,
	})
}

// ImportLeads pulls the rows of the entry's sheet, stores them as leads and
// marks the entry completed.
func (h *Handlers) ImportLeads(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	sess, ok := h.session(c)
	if !ok {
		return
	}
	entry, found := sess.History.Get(id)
	if !found {
		utils.ResponseWithError(c, http.StatusNotFound, "History entry not found", nil)
		return
	}
	if entry.SheetID == "" {
		utils.ResponseWithError(c, http.StatusConflict, "History entry has no lead sheet to import", nil)
		return
	}

	ctx := c.Request.Context()
	records, err := h.Importer.Import(ctx, entry.SheetID)
	if err != nil {
		respondErr(c, "Failed to import leads", err)
		return
	}

	leads, err := leadsFromRecords(entry.SheetID, records)
	if err != nil {
		log.Errorf("ImportLeads: %v", err)
		utils.ResponseWithError(c, http.StatusInternalServerError, "Failed to import leads", nil)
		return
	}
	if err := h.Leads.ReplaceForHistory(ctx, sess.UserID, id, leads); err != nil {
		respondErr(c, "Failed to store imported leads", err)
		return
	}
	updated, err := sess.History.MarkImported(ctx, id, len(leads))
	if err != nil {
		respondErr(c, "Leads imported but the history entry could not be updated", err)
		return
	}
	utils.ResponseWithSuccess(c, http.StatusOK, fmt.Sprintf("Imported %d leads", len(leads)), updated)
}

func (h *Handlers) ListLeads(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	userID, ok := middleware.UserID(c)
	if !ok {
		utils.ResponseWithError(c, http.StatusUnauthorized, "Authentication error: User claims not found", nil)
		return
	}
	leads, err := h.Leads.ListByHistory(c.Request.Context(), userID, id)
	if err != nil {
		respondErr(c, "Failed to list leads", err)
		return
	}
	out := make([]json.RawMessage, 0, len(leads))
	for _, l := range leads {
		out = append(out, json.RawMessage(l.Data))
	}
	utils.ResponseWithSuccess(c, http.StatusOK, "Leads retrieved", out)
}

func leadsFromRecords(sheetID string, records []map[string]string) ([]db.Lead, error) {
	leads := make([]db.Lead, 0, len(records))
	for _, r := range records {
		data, err := json.Marshal(r)
		if err != nil {
			return nil, fmt.Errorf("failed to encode lead row: %w", err)
		}
		leads = append(leads, db.Lead{SheetID: sheetID, Data: data})
	}
	return leads, nil
}
