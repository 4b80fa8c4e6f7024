package handlers

import (
	"sync"

	"github.com/ASHISH26940/marketing-ops-api/pkg/video"
	"github.com/google/uuid"
)

type playerKey struct {
	user    uuid.UUID
	project string
}

// playerSet holds one playback controller per user and project.
type playerSet struct {
	mu      sync.Mutex
	players map[playerKey]*video.Player
}

func newPlayerSet() *playerSet {
	return &playerSet{players: make(map[playerKey]*video.Player)}
}

// get returns the controller for the project, refreshed with clips.
func (s *playerSet) get(userID uuid.UUID, projectID string, clips []video.Clip) *video.Player {
	key := playerKey{user: userID, project: projectID}
	s.mu.Lock()
	p, ok := s.players[key]
	if !ok {
		p = video.NewPlayer(clips)
		s.players[key] = p
	}
	s.mu.Unlock()
	if ok {
		p.SetClips(clips)
	}
	return p
}

func (s *playerSet) dropUser(userID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.players {
		if k.user == userID {
			delete(s.players, k)
		}
	}
}
