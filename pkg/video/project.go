// Package video models the editor's projects: clips with trims, audio tracks
// and text overlays, a playback controller over the clip list, and the
// ffmpeg export of a project.
package video

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrClipNotFound    = errors.New("clip not found")
	ErrInvalidTrim     = errors.New("invalid trim")
	ErrInvalidClip     = errors.New("invalid clip")
	ErrInvalidSettings = errors.New("invalid export settings")
)

// Speed and volume bounds accepted on a clip.
const (
	MinSpeed  = 0.25
	MaxSpeed  = 4.0
	MaxVolume = 2.0
)

// Trim is the played window of a clip in source seconds.
type Trim struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

func (t Trim) Length() float64 { return t.End - t.Start }

// Filters are colour adjustments; zero values leave the picture unchanged.
type Filters struct {
	Brightness float64 `json:"brightness"` // -1..1
	Contrast   float64 `json:"contrast"`   // 0 means unchanged, else 0..2
	Saturation float64 `json:"saturation"` // 0 means unchanged, else 0..3
	Grayscale  bool    `json:"grayscale,omitempty"`
}

func (f Filters) IsZero() bool { return f == Filters{} }

type Transform struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Scale    float64 `json:"scale"`
	Rotation float64 `json:"rotation"`
}

type Clip struct {
	ID        string    `json:"id"`
	Name      string    `json:"name,omitempty"`
	SourceURL string    `json:"sourceUrl"`
	Duration  float64   `json:"duration"`
	Trim      Trim      `json:"trim"`
	Speed     float64   `json:"speed"`
	Volume    float64   `json:"volume"`
	Muted     bool      `json:"muted,omitempty"`
	Filters   Filters   `json:"filters"`
	Transform Transform `json:"transform"`
}

// PlayedLength is the clip's length on the timeline after speed.
func (c Clip) PlayedLength() float64 {
	speed := c.Speed
	if speed <= 0 {
		speed = 1
	}
	return c.Trim.Length() / speed
}

// Validate enforces 0 <= trim.start < trim.end <= duration.
func (c Clip) Validate() error {
	if c.SourceURL == "" {
		return fmt.Errorf("%w %s: source url is required", ErrInvalidClip, c.ID)
	}
	if !(c.Duration > 0) || math.IsInf(c.Duration, 0) {
		return fmt.Errorf("%w %s: duration must be positive", ErrInvalidClip, c.ID)
	}
	if c.Trim.Start < 0 || c.Trim.Start >= c.Trim.End || c.Trim.End > c.Duration {
		return fmt.Errorf("%w on clip %s: need 0 <= start (%g) < end (%g) <= duration (%g)",
			ErrInvalidTrim, c.ID, c.Trim.Start, c.Trim.End, c.Duration)
	}
	if c.Speed < MinSpeed || c.Speed > MaxSpeed {
		return fmt.Errorf("%w %s: speed %g outside %g..%g", ErrInvalidClip, c.ID, c.Speed, MinSpeed, MaxSpeed)
	}
	if c.Volume < 0 || c.Volume > MaxVolume {
		return fmt.Errorf("%w %s: volume %g outside 0..%g", ErrInvalidClip, c.ID, c.Volume, MaxVolume)
	}
	return nil
}

// withDefaults fills an id, a full-length trim, unit speed and volume.
func (c Clip) withDefaults() Clip {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Trim == (Trim{}) {
		c.Trim = Trim{Start: 0, End: c.Duration}
	}
	if c.Speed == 0 {
		c.Speed = 1
	}
	if c.Volume == 0 {
		c.Volume = 1
	}
	return c
}

type AudioTrack struct {
	ID        string  `json:"id"`
	Name      string  `json:"name,omitempty"`
	SourceURL string  `json:"sourceUrl"`
	Duration  float64 `json:"duration"`
	Start     float64 `json:"start"` // timeline offset in seconds
	Trim      Trim    `json:"trim"`
	Volume    float64 `json:"volume"`
}

type TextOverlay struct {
	ID       string  `json:"id"`
	Text     string  `json:"text"`
	Start    float64 `json:"start"`
	End      float64 `json:"end"`
	X        float64 `json:"x"` // 0..1 of the frame width
	Y        float64 `json:"y"` // 0..1 of the frame height
	FontSize int     `json:"fontSize"`
	Color    string  `json:"color"`
}

type Effect struct {
	ID     string             `json:"id"`
	Type   string             `json:"type"`
	ClipID string             `json:"clipId,omitempty"`
	Params map[string]float64 `json:"params,omitempty"`
}

type Resolution struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type ExportSettings struct {
	Format     string     `json:"format"` // mp4 or webm
	Resolution Resolution `json:"resolution"`
	FPS        int        `json:"fps"`
	Quality    string     `json:"quality"` // low, medium or high
}

// DefaultExportSettings is 1080p mp4 at 30 fps.
func DefaultExportSettings() ExportSettings {
	return ExportSettings{Format: "mp4", Resolution: Resolution{Width: 1920, Height: 1080}, FPS: 30, Quality: "high"}
}

func (s ExportSettings) Validate() error {
	switch s.Format {
	case "mp4", "webm":
	default:
		return fmt.Errorf("%w: format %q", ErrInvalidSettings, s.Format)
	}
	if s.Resolution.Width <= 0 || s.Resolution.Height <= 0 || s.Resolution.Width%2 != 0 || s.Resolution.Height%2 != 0 {
		return fmt.Errorf("%w: resolution %dx%d must be positive and even", ErrInvalidSettings, s.Resolution.Width, s.Resolution.Height)
	}
	if s.FPS <= 0 || s.FPS > 120 {
		return fmt.Errorf("%w: fps %d", ErrInvalidSettings, s.FPS)
	}
	if _, ok := qualityCRF[s.Quality]; !ok {
		return fmt.Errorf("%w: quality %q", ErrInvalidSettings, s.Quality)
	}
	return nil
}

// Project is one editor project. Duration is derived from the clips.
type Project struct {
	ID             string         `json:"id"`
	Title          string         `json:"title"`
	Duration       float64        `json:"duration"`
	Clips          []Clip         `json:"clips"`
	AudioTracks    []AudioTrack   `json:"audioTracks"`
	TextOverlays   []TextOverlay  `json:"textOverlays"`
	Effects        []Effect       `json:"effects"`
	ExportSettings ExportSettings `json:"exportSettings"`
}

func NewProject(id, title string) *Project {
	if id == "" {
		id = uuid.NewString()
	}
	return &Project{
		ID:             id,
		Title:          title,
		Clips:          []Clip{},
		AudioTracks:    []AudioTrack{},
		TextOverlays:   []TextOverlay{},
		Effects:        []Effect{},
		ExportSettings: DefaultExportSettings(),
	}
}

// Validate checks every clip, overlay and the export settings.
func (p *Project) Validate() error {
	seen := make(map[string]bool, len(p.Clips))
	for _, c := range p.Clips {
		if seen[c.ID] {
			return fmt.Errorf("%w: duplicate clip id %s", ErrInvalidClip, c.ID)
		}
		seen[c.ID] = true
		if err := c.Validate(); err != nil {
			return err
		}
	}
	for _, o := range p.TextOverlays {
		if strings.TrimSpace(o.Text) == "" || o.Start < 0 || o.End <= o.Start {
			return fmt.Errorf("%w: text overlay %s needs text and 0 <= start < end", ErrInvalidClip, o.ID)
		}
	}
	for _, a := range p.AudioTracks {
		if a.SourceURL == "" || a.Start < 0 || a.Volume < 0 || a.Volume > MaxVolume {
			return fmt.Errorf("%w: audio track %s", ErrInvalidClip, a.ID)
		}
	}
	return p.ExportSettings.Validate()
}

// RecomputeDuration sets Duration to the sum of the clips' played lengths.
func (p *Project) RecomputeDuration() {
	total := 0.0
	for _, c := range p.Clips {
		total += c.PlayedLength()
	}
	p.Duration = math.Round(total*1000) / 1000
}

func (p *Project) ClipIndex(id string) int {
	for i, c := range p.Clips {
		if c.ID == id {
			return i
		}
	}
	return -1
}

// AddClip appends c after filling defaults. An invalid clip is rejected and
// the project left unchanged.
func (p *Project) AddClip(c Clip) (Clip, error) {
	c = c.withDefaults()
	if err := c.Validate(); err != nil {
		return Clip{}, err
	}
	if p.ClipIndex(c.ID) >= 0 {
		return Clip{}, fmt.Errorf("%w: duplicate clip id %s", ErrInvalidClip, c.ID)
	}
	p.Clips = append(p.Clips, c)
	p.RecomputeDuration()
	return c, nil
}

func (p *Project) RemoveClip(id string) error {
	i := p.ClipIndex(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrClipNotFound, id)
	}
	p.Clips = append(p.Clips[:i], p.Clips[i+1:]...)
	p.RecomputeDuration()
	return nil
}

// SetTrim changes a clip's trim window if the result stays valid.
func (p *Project) SetTrim(id string, start, end float64) error {
	i := p.ClipIndex(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrClipNotFound, id)
	}
	c := p.Clips[i]
	c.Trim = Trim{Start: start, End: end}
	if err := c.Validate(); err != nil {
		return err
	}
	p.Clips[i] = c
	p.RecomputeDuration()
	return nil
}

// ProjectPatch is a whole-object merge: every non-nil field replaces the
// project's value.
type ProjectPatch struct {
	Title          *string         `json:"title,omitempty"`
	Clips          *[]Clip         `json:"clips,omitempty"`
	AudioTracks    *[]AudioTrack   `json:"audioTracks,omitempty"`
	TextOverlays   *[]TextOverlay  `json:"textOverlays,omitempty"`
	Effects        *[]Effect       `json:"effects,omitempty"`
	ExportSettings *ExportSettings `json:"exportSettings,omitempty"`
}

// Merge returns a copy of p with patch applied, or an error if the result is
// invalid. p itself is never modified.
func (p *Project) Merge(patch ProjectPatch) (*Project, error) {
	next := p.Clone()
	if patch.Title != nil {
		next.Title = *patch.Title
	}
	if patch.Clips != nil {
		clips := make([]Clip, len(*patch.Clips))
		for i, c := range *patch.Clips {
			clips[i] = c.withDefaults()
		}
		next.Clips = clips
	}
	if patch.AudioTracks != nil {
		next.AudioTracks = append([]AudioTrack{}, *patch.AudioTracks...)
	}
	if patch.TextOverlays != nil {
		next.TextOverlays = append([]TextOverlay{}, *patch.TextOverlays...)
	}
	if patch.Effects != nil {
		next.Effects = append([]Effect{}, *patch.Effects...)
	}
	if patch.ExportSettings != nil {
		next.ExportSettings = *patch.ExportSettings
	}
	if err := next.Validate(); err != nil {
		return nil, err
	}
	next.RecomputeDuration()
	return next, nil
}

// Clone deep-copies the project through its JSON form.
func (p *Project) Clone() *Project {
	b, _ := json.Marshal(p)
	out := &Project{}
	_ = json.Unmarshal(b, out)
	return out
}

// Decode parses a stored project document and fills missing collections.
func Decode(doc []byte) (*Project, error) {
	p := &Project{}
	if err := json.Unmarshal(doc, p); err != nil {
		return nil, fmt.Errorf("failed to decode video project: %w", err)
	}
	if p.Clips == nil {
		p.Clips = []Clip{}
	}
	if p.AudioTracks == nil {
		p.AudioTracks = []AudioTrack{}
	}
	if p.TextOverlays == nil {
		p.TextOverlays = []TextOverlay{}
	}
	if p.Effects == nil {
		p.Effects = []Effect{}
	}
	if p.ExportSettings == (ExportSettings{}) {
		p.ExportSettings = DefaultExportSettings()
	}
	return p, nil
}
