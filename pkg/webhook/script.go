package webhook

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ASHISH26940/marketing-ops-api/pkg/lenient"
	log "github.com/sirupsen/logrus"
)

var ErrEmptyScript = errors.New("script webhook returned no script")

// ScriptRequest asks the scenario for a video script and, optionally, a
// synthesized voiceover of it.
type ScriptRequest struct {
	ProjectID       string  `json:"projectId"`
	Title           string  `json:"title"`
	Topic           string  `json:"topic"`
	Tone            string  `json:"tone,omitempty"`
	Voice           string  `json:"voice,omitempty"`
	DurationSeconds float64 `json:"durationSeconds,omitempty"`
}

// Script is the scenario's answer. VoiceoverURL and VoiceoverDuration are
// empty when no audio was produced.
type Script struct {
	Text              string  `json:"text"`
	VoiceoverURL      string  `json:"voiceoverUrl,omitempty"`
	VoiceoverDuration float64 `json:"voiceoverDuration,omitempty"`
	Recovery          string  `json:"recovery,omitempty"`
}

type ScriptWriter struct {
	poster Poster
}

func NewScriptWriter(poster Poster) *ScriptWriter {
	return &ScriptWriter{poster: poster}
}

func (w *ScriptWriter) Write(ctx context.Context, req ScriptRequest) (*Script, error) {
	if strings.TrimSpace(req.Topic) == "" && strings.TrimSpace(req.Title) == "" {
		return nil, fmt.Errorf("%w: topic or title is required", ErrInvalidForm)
	}

	resp, err := w.poster.Post(ctx, EndpointScriptVoiceover, req)
	if err != nil {
		log.Errorf("ScriptWriter.Write: project %s: %v", req.ProjectID, err)
		return nil, fmt.Errorf("failed to generate script: %w", err)
	}

	script := &Script{}
	switch resp.Kind {
	case KindStatus:
		body := resp.Status
		if body.IsFailed() {
			return nil, fmt.Errorf("%w: %s", ErrGenerationFailed, firstText(body.Error, body.Message))
		}
		script.Text = firstText(body.Field("script", "text"), body.Content, body.Message)
		script.VoiceoverURL = body.Field("voiceoverUrl", "voiceover_url", "audioUrl", "audio_url")
		if d, err := strconv.ParseFloat(body.Field("voiceoverDuration", "audioDuration", "duration"), 64); err == nil && d > 0 {
			script.VoiceoverDuration = d
		}
		if resp.Outcome != lenient.OutcomeParsed {
			script.Recovery = resp.Outcome.String()
		}
	case KindText:
		if !resp.IsAccepted() {
			script.Text = strings.TrimSpace(resp.Text)
		}
	case KindRows:
		lines := make([]string, 0, len(resp.Rows))
		for _, row := range resp.Rows {
			lines = append(lines, strings.Join(row, " "))
		}
		script.Text = strings.Join(lines, "\n")
	}

	if strings.TrimSpace(script.Text) == "" {
		return nil, ErrEmptyScript
	}
	return script, nil
}

func firstText(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
