package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/ASHISH26940/marketing-ops-api/pkg/db"
	"github.com/ASHISH26940/marketing-ops-api/pkg/jobs"
	"github.com/ASHISH26940/marketing-ops-api/pkg/middleware"
	"github.com/ASHISH26940/marketing-ops-api/pkg/utils"
	"github.com/ASHISH26940/marketing-ops-api/pkg/video"
	"github.com/ASHISH26940/marketing-ops-api/pkg/webhook"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// MaxExportDuration bounds one ffmpeg run.
const MaxExportDuration = 30 * time.Minute

// PlaybackRequest drives the project's playback controller.
type PlaybackRequest struct {
	Action string  `json:"action" binding:"required"`
	ClipID string  `json:"clipId"`
	Time   float64 `json:"time"`
}

// ScriptRequest asks for a script; AttachVoiceover adds the returned
// voiceover to the project as an audio track.
type ScriptRequest struct {
	Topic           string `json:"topic"`
	Tone            string `json:"tone"`
	Voice           string `json:"voice"`
	AttachVoiceover bool   `json:"attachVoiceover"`
}

type TrimRequest struct {
	Start float64 `json:"start"`
	End   float64 `json:"end" binding:"required"`
}

// loadProject reads the caller's project. A project never saved comes back
// as a fresh empty one with found == false.
func (h *Handlers) loadProject(ctx context.Context, userID, id uuid.UUID) (p *video.Project, found bool, err error) {
	row, err := h.Videos.Find(ctx, userID, id)
	if errors.Is(err, sql.ErrNoRows) {
		return video.NewProject(id.String(), "Untitled project"), false, nil
	}
	if err != nil {
		return nil, false, err
	}
	p, err = video.Decode(row.Document)
	if err != nil {
		return nil, false, err
	}
	p.ID = id.String()
	return p, true, nil
}

func (h *Handlers) saveProject(ctx context.Context, userID, id uuid.UUID, p *video.Project) error {
	doc, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode video project: %w", err)
	}
	_, err = h.Videos.Save(ctx, &db.VideoProjectRow{ID: id, UserID: userID, Title: p.Title, Document: doc})
	return err
}

// projectRequest resolves the caller and the :id param.
func projectRequest(c *gin.Context) (userID, id uuid.UUID, ok bool) {
	id, ok = parseIDParam(c, "id")
	if !ok {
		return
	}
	userID, ok = middleware.UserID(c)
	if !ok {
		utils.ResponseWithError(c, http.StatusUnauthorized, "Authentication error: User claims not found", nil)
	}
	return
}

func (h *Handlers) GetVideoProject(c *gin.Context) {
	userID, id, ok := projectRequest(c)
	if !ok {
		return
	}
	p, _, err := h.loadProject(c.Request.Context(), userID, id)
	if err != nil {
		respondErr(c, "Failed to load video project", err)
		return
	}
	utils.ResponseWithSuccess(c, http.StatusOK, "Video project retrieved", p)
}

// PutVideoProject replaces the whole project. Missing clip fields get the
// same defaults as clips added one by one.
func (h *Handlers) PutVideoProject(c *gin.Context) {
	userID, id, ok := projectRequest(c)
	if !ok {
		return
	}
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		utils.ResponseWithError(c, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	doc, err := video.Decode(raw)
	if err != nil {
		utils.ResponseWithErr(c, http.StatusBadRequest, "Invalid video project", err)
		return
	}
	p, err := video.NewProject(id.String(), doc.Title).Merge(video.ProjectPatch{
		Clips:          &doc.Clips,
		AudioTracks:    &doc.AudioTracks,
		TextOverlays:   &doc.TextOverlays,
		Effects:        &doc.Effects,
		ExportSettings: &doc.ExportSettings,
	})
	if err != nil {
		respondErr(c, "Invalid video project", err)
		return
	}
	if err := h.saveProject(c.Request.Context(), userID, id, p); err != nil {
		respondErr(c, "Failed to save video project", err)
		return
	}
	h.players.get(userID, p.ID, p.Clips)
	utils.ResponseWithSuccess(c, http.StatusOK, "Video project saved", p)
}

// PatchVideoProject merges the body into the stored project. An invalid
// result leaves the stored project untouched.
func (h *Handlers) PatchVideoProject(c *gin.Context) {
	userID, id, ok := projectRequest(c)
	if !ok {
		return
	}
	var patch video.ProjectPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		utils.ResponseWithError(c, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	h.mutateProject(c, userID, id, func(p *video.Project) (*video.Project, error) {
		return p.Merge(patch)
	})
}

func (h *Handlers) AddVideoClip(c *gin.Context) {
	userID, id, ok := projectRequest(c)
	if !ok {
		return
	}
	var clip video.Clip
	if err := c.ShouldBindJSON(&clip); err != nil {
		utils.ResponseWithError(c, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	h.mutateProject(c, userID, id, func(p *video.Project) (*video.Project, error) {
		_, err := p.AddClip(clip)
		return p, err
	})
}

func (h *Handlers) RemoveVideoClip(c *gin.Context) {
	userID, id, ok := projectRequest(c)
	if !ok {
		return
	}
	clipID := c.Param("clipId")
	h.mutateProject(c, userID, id, func(p *video.Project) (*video.Project, error) {
		return p, p.RemoveClip(clipID)
	})
}

func (h *Handlers) TrimVideoClip(c *gin.Context) {
	userID, id, ok := projectRequest(c)
	if !ok {
		return
	}
	var req TrimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ResponseWithError(c, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	clipID := c.Param("clipId")
	h.mutateProject(c, userID, id, func(p *video.Project) (*video.Project, error) {
		return p, p.SetTrim(clipID, req.Start, req.End)
	})
}

// mutateProject loads, changes and saves a project, keeping its playback
// controller on the new clip list.
func (h *Handlers) mutateProject(c *gin.Context, userID, id uuid.UUID, change func(*video.Project) (*video.Project, error)) {
	ctx := c.Request.Context()
	p, _, err := h.loadProject(ctx, userID, id)
	if err != nil {
		respondErr(c, "Failed to load video project", err)
		return
	}
	next, err := change(p)
	if err != nil {
		respondErr(c, "Video project not changed", err)
		return
	}
	if err := h.saveProject(ctx, userID, id, next); err != nil {
		respondErr(c, "Failed to save video project", err)
		return
	}
	h.players.get(userID, next.ID, next.Clips)
	utils.ResponseWithSuccess(c, http.StatusOK, "Video project saved", next)
}

// ExportVideoProject compiles the project to an ffmpeg run and executes it in
// the background. Progress is reported as an export job.
func (h *Handlers) ExportVideoProject(c *gin.Context) {
	userID, id, ok := projectRequest(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	p, found, err := h.loadProject(ctx, userID, id)
	if err != nil {
		respondErr(c, "Failed to load video project", err)
		return
	}
	if !found {
		utils.ResponseWithError(c, http.StatusNotFound, "Video project not found", nil)
		return
	}

	name := fmt.Sprintf("%s-%d.%s", id, time.Now().Unix(), p.ExportSettings.Format)
	plan, err := video.PlanExport(p, h.ResolveMedia, filepath.Join(h.Config.ExportDir, name))
	if err != nil {
		respondErr(c, "Video project cannot be exported", err)
		return
	}

	requestID := uuid.NewString()
	job := jobs.Status{RequestID: requestID, UserID: userID.String(), Kind: jobs.KindExport, State: jobs.StateProcessing}
	if err := h.Jobs.Put(ctx, job); err != nil {
		respondErr(c, "Failed to start export", err)
		return
	}

	h.goBackground(MaxExportDuration, func(ctx context.Context) {
		h.runExport(ctx, plan, job)
	})
	log.Infof("ExportVideoProject: export %s of project %s started (%.2fs)", requestID, id, plan.Duration)
	utils.ResponseWithSuccess(c, http.StatusAccepted, "Export started", gin.H{
		"requestId": requestID,
		"duration":  plan.Duration,
	})
}

func (h *Handlers) runExport(ctx context.Context, plan *video.ExportPlan, job jobs.Status) {
	if err := os.MkdirAll(filepath.Dir(plan.Output), 0o755); err != nil {
		job.State, job.Message = jobs.StateFailed, err.Error()
	} else if err := h.RunExport(ctx, plan); err != nil {
		job.State, job.Message = jobs.StateFailed, err.Error()
	} else {
		job.State, job.Output = jobs.StateComplete, plan.Output
		if url, err := h.publishExport(ctx, plan.Output); err != nil {
			log.Warnf("runExport: keeping %s local, upload failed: %v", plan.Output, err)
		} else if url != "" {
			job.Output = url
		}
	}
	job.UpdatedAt = time.Time{}

	saveCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := h.Jobs.Put(saveCtx, job); err != nil {
		log.Errorf("runExport: failed to store status of %s: %v", job.RequestID, err)
	}
}

// publishExport hands the rendered file to media storage.
func (h *Handlers) publishExport(ctx context.Context, path string) (string, error) {
	if h.Media == nil {
		return "", nil
	}
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return h.Media.Upload(ctx, f, filepath.Base(path), contentType)
}

// VideoPlayback applies one controller action and returns the new state.
func (h *Handlers) VideoPlayback(c *gin.Context) {
	userID, id, ok := projectRequest(c)
	if !ok {
		return
	}
	var req PlaybackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ResponseWithError(c, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	p, _, err := h.loadProject(c.Request.Context(), userID, id)
	if err != nil {
		respondErr(c, "Failed to load video project", err)
		return
	}
	player := h.players.get(userID, p.ID, p.Clips)

	switch req.Action {
	case "select":
		err = player.SelectClip(req.ClipID)
	case "play":
		err = player.Play()
	case "pause":
		player.Pause()
	case "seek":
		err = player.Seek(req.Time)
	case "clipEnd":
		player.OnClipEnd()
	case "timeUpdate":
		player.OnTimeUpdate(req.Time)
	case "state":
	default:
		utils.ResponseWithError(c, http.StatusBadRequest, "Unknown playback action", req.Action)
		return
	}
	if err != nil {
		respondErr(c, "Playback action failed", err)
		return
	}
	utils.ResponseWithSuccess(c, http.StatusOK, "Playback state", player.Snapshot())
}

// GenerateVideoScript drafts a script for the project through the
// script-voiceover scenario.
func (h *Handlers) GenerateVideoScript(c *gin.Context) {
	if h.Scripts == nil {
		utils.ResponseWithError(c, http.StatusNotImplemented, "Script generation is not configured", nil)
		return
	}
	userID, id, ok := projectRequest(c)
	if !ok {
		return
	}
	var req ScriptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ResponseWithError(c, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	ctx := c.Request.Context()
	p, found, err := h.loadProject(ctx, userID, id)
	if err != nil {
		respondErr(c, "Failed to load video project", err)
		return
	}
	if req.AttachVoiceover && !found {
		utils.ResponseWithError(c, http.StatusNotFound, "Save the project before attaching a voiceover", nil)
		return
	}

	script, err := h.Scripts.Write(ctx, webhook.ScriptRequest{
		ProjectID:       p.ID,
		Title:           p.Title,
		Topic:           req.Topic,
		Tone:            req.Tone,
		Voice:           req.Voice,
		DurationSeconds: p.Duration,
	})
	if err != nil {
		respondErr(c, "Script generation failed", err)
		return
	}

	out := gin.H{"script": script}
	if req.AttachVoiceover && script.VoiceoverURL != "" && script.VoiceoverDuration > 0 {
		p.AudioTracks = append(p.AudioTracks, video.AudioTrack{
			ID:        uuid.NewString(),
			Name:      "Voiceover",
			SourceURL: script.VoiceoverURL,
			Duration:  script.VoiceoverDuration,
			Trim:      video.Trim{Start: 0, End: script.VoiceoverDuration},
			Volume:    1,
		})
		if err := p.Validate(); err != nil {
			respondErr(c, "Voiceover cannot be attached", err)
			return
		}
		if err := h.saveProject(ctx, userID, id, p); err != nil {
			respondErr(c, "Failed to save video project", err)
			return
		}
		out["project"] = p
	}
	log.Infof("GenerateVideoScript: script for project %s (%d chars)", id, len(script.Text))
	utils.ResponseWithSuccess(c, http.StatusOK, "Script generated", out)
}
