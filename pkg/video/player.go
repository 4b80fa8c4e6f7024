package video

import (
	"errors"
	"fmt"
	"sync"
)

// PlayState is the playback controller state.
type PlayState string

const (
	StateIdle    PlayState = "idle"
	StatePlaying PlayState = "playing"
	StatePaused  PlayState = "paused"
	StateStopped PlayState = "stopped"
)

var (
	ErrEmptyPlaylist  = errors.New("project has no clips")
	ErrNoClipSelected = errors.New("no clip selected")
)

// PlaybackState is a snapshot of the controller for clients.
type PlaybackState struct {
	State         PlayState `json:"state"`
	ClipID        string    `json:"clipId,omitempty"`
	Position      float64   `json:"position"`
	EndOfPlaylist bool      `json:"endOfPlaylist"`
}

// Player walks a project's clips in array order. Position is in source
// seconds of the current clip and stays inside its trim window.
type Player struct {
	mu       sync.Mutex
	clips    []Clip
	current  int // -1 when no clip is selected
	state    PlayState
	position float64
	ended    bool
}

func NewPlayer(clips []Clip) *Player {
	p := &Player{current: -1, state: StateIdle}
	p.clips = append([]Clip(nil), clips...)
	return p
}

// SetClips replaces the playlist, keeping the selection when its clip survives.
func (p *Player) SetClips(clips []Clip) {
	p.mu.Lock()
	defer p.mu.Unlock()
	selected := ""
	if p.current >= 0 {
		selected = p.clips[p.current].ID
	}
	p.clips = append([]Clip(nil), clips...)
	p.current = -1
	for i, c := range p.clips {
		if c.ID == selected {
			p.current = i
			p.position = clamp(p.position, c.Trim.Start, c.Trim.End)
			return
		}
	}
	if selected != "" {
		p.state = StateIdle
		p.position = 0
	}
}

// SelectClip makes id current, idle at its trim start.
func (p *Player) SelectClip(id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, c := range p.clips {
		if c.ID == id {
			p.selectLocked(i)
			p.state = StateIdle
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrClipNotFound, id)
}

// Play resumes the current clip, selecting the first clip when none is.
func (p *Player) Play() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current < 0 {
		if len(p.clips) == 0 {
			return ErrEmptyPlaylist
		}
		p.selectLocked(0)
	}
	p.state = StatePlaying
	p.ended = false
	return nil
}

func (p *Player) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == StatePlaying {
		p.state = StatePaused
	}
}

// Seek moves within the current clip and always leaves playback paused.
func (p *Player) Seek(t float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current < 0 {
		return ErrNoClipSelected
	}
	trim := p.clips[p.current].Trim
	p.position = clamp(t, trim.Start, trim.End)
	p.state = StatePaused
	return nil
}

// OnClipEnd advances to the next clip and keeps playing, or stops with no
// clip selected at the end of the playlist.
func (p *Player) OnClipEnd() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clipEndLocked()
}

// OnTimeUpdate records the media element's position. Reaching the trim end
// of the current clip counts as the clip ending.
func (p *Player) OnTimeUpdate(t float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current < 0 {
		return
	}
	trim := p.clips[p.current].Trim
	if t >= trim.End {
		p.position = trim.End
		if p.state == StatePlaying {
			p.clipEndLocked()
		}
		return
	}
	p.position = clamp(t, trim.Start, trim.End)
}

func (p *Player) State() PlayState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// CurrentClip returns the selected clip, if any.
func (p *Player) CurrentClip() (Clip, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current < 0 {
		return Clip{}, false
	}
	return p.clips[p.current], true
}

func (p *Player) Position() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.position
}

// EndOfPlaylist reports whether playback ran off the last clip.
func (p *Player) EndOfPlaylist() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ended
}

func (p *Player) Snapshot() PlaybackState {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := PlaybackState{State: p.state, Position: p.position, EndOfPlaylist: p.ended}
	if p.current >= 0 {
		s.ClipID = p.clips[p.current].ID
	}
	return s
}

func (p *Player) selectLocked(i int) {
	p.current = i
	p.position = p.clips[i].Trim.Start
	p.ended = false
}

func (p *Player) clipEndLocked() {
	if p.current >= 0 && p.current+1 < len(p.clips) {
		p.selectLocked(p.current + 1)
		p.state = StatePlaying
		return
	}
	p.current = -1
	p.position = 0
	p.state = StateStopped
	p.ended = true
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
