package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ASHISH26940/marketing-ops-api/pkg/appstate"
	"github.com/ASHISH26940/marketing-ops-api/pkg/content"
	"github.com/ASHISH26940/marketing-ops-api/pkg/db"
	"github.com/ASHISH26940/marketing-ops-api/pkg/utils"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx/types"
	log "github.com/sirupsen/logrus"
)

type CreateContentRequest struct {
	Title    string          `json:"title" binding:"required"`
	Content  string          `json:"content"`
	Metadata json.RawMessage `json:"metadata"`
}

type UpdateContentRequest struct {
	Title    *string         `json:"title"`
	Content  *string         `json:"content"`
	Metadata json.RawMessage `json:"metadata"`
}

// GenerateContentRequest selects the drafting backend with Source: "webhook"
// (default) or "direct".
type GenerateContentRequest struct {
	content.Prompt
	Source string `json:"source"`
}

// contentStore resolves the :kind param against the caller's session.
func (h *Handlers) contentStore(c *gin.Context) (*appstate.Session, *content.Store, bool) {
	kind, err := content.ParseKind(c.Param("kind"))
	if err != nil {
		utils.ResponseWithErr(c, http.StatusNotFound, "Unknown content kind", err)
		return nil, nil, false
	}
	sess, ok := h.session(c)
	if !ok {
		return nil, nil, false
	}
	return sess, sess.Content(kind), true
}

func (h *Handlers) ListContent(c *gin.Context) {
	_, store, ok := h.contentStore(c)
	if !ok {
		return
	}
	if c.Query("refresh") == "true" {
		if err := store.Load(c.Request.Context()); err != nil {
			respondErr(c, "Failed to load content", err)
			return
		}
	}
	utils.ResponseWithSuccess(c, http.StatusOK, "Content retrieved", store.Items())
}

func (h *Handlers) CreateContent(c *gin.Context) {
	var req CreateContentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ResponseWithError(c, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	if len(req.Metadata) > 0 && !json.Valid(req.Metadata) {
		utils.ResponseWithError(c, http.StatusBadRequest, "metadata must be JSON", nil)
		return
	}
	_, store, ok := h.contentStore(c)
	if !ok {
		return
	}
	item, err := store.Add(c.Request.Context(), db.ContentItem{
		Title:    req.Title,
		Content:  req.Content,
		Metadata: types.JSONText(req.Metadata),
	})
	if err != nil {
		respondErr(c, "Failed to save content", err)
		return
	}
	utils.ResponseWithSuccess(c, http.StatusCreated, "Content saved", item)
}

// GenerateContent drafts an item and saves it.
func (h *Handlers) GenerateContent(c *gin.Context) {
	var req GenerateContentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ResponseWithError(c, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	if strings.TrimSpace(req.Topic) == "" {
		utils.ResponseWithError(c, http.StatusBadRequest, "topic is required", nil)
		return
	}

	gen := h.Drafts
	if strings.EqualFold(req.Source, "direct") {
		if h.Direct == nil {
			utils.ResponseWithError(c, http.StatusNotImplemented, "Direct generation is not configured", nil)
			return
		}
		gen = h.Direct
	}
	if gen == nil {
		utils.ResponseWithError(c, http.StatusNotImplemented, "Content generation is not configured", nil)
		return
	}

	sess, store, ok := h.contentStore(c)
	if !ok {
		return
	}
	item, err := store.Generate(c.Request.Context(), gen, req.Prompt)
	if err != nil {
		respondErr(c, "Failed to generate content", err)
		return
	}
	log.Infof("GenerateContent: %s item %s generated for user %s", store.Kind(), item.ID, sess.UserID)
	utils.ResponseWithSuccess(c, http.StatusCreated, "Content generated", item)
}

func (h *Handlers) UpdateContent(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req UpdateContentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ResponseWithError(c, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	if req.Title == nil && req.Content == nil && len(req.Metadata) == 0 {
		utils.ResponseWithError(c, http.StatusBadRequest, "Nothing to update", nil)
		return
	}
	if len(req.Metadata) > 0 && !json.Valid(req.Metadata) {
		utils.ResponseWithError(c, http.StatusBadRequest, "metadata must be JSON", nil)
		return
	}
	_, store, ok := h.contentStore(c)
	if !ok {
		return
	}
	item, err := store.Update(c.Request.Context(), id, db.ContentPatch{
		Title:    req.Title,
		Content:  req.Content,
		Metadata: types.JSONText(req.Metadata),
	})
	if err != nil {
		respondErr(c, "Failed to update content", err)
		return
	}
	utils.ResponseWithSuccess(c, http.StatusOK, "Content updated", item)
}

func (h *Handlers) DeleteContent(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	_, store, ok := h.contentStore(c)
	if !ok {
		return
	}
	if err := store.Delete(c.Request.Context(), id); err != nil {
		respondErr(c, "Failed to delete content", err)
		return
	}
	utils.ResponseWithSuccess(c, http.StatusOK, "Content deleted", nil)
}
