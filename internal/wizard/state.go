// Package wizard drives the character creation flow: cast face candidates,
// select one, shoot a full-body scene from it.
package wizard

import (
	"errors"
	"fmt"
	"time"

	"github.com/HyeBin-Hub/Film-Storyboard-Web-1/internal/casting"
)

// ErrInvalidTransition is returned when a trigger does not apply to the
// session's current state.
var ErrInvalidTransition = errors.New("wizard: invalid transition")

// State is a wizard step.
type State string

const (
	StateCasting   State = "casting"
	StateSelecting State = "selecting"
	StateShooting  State = "shooting"
	StateDone      State = "done"
)

// Trigger moves a session between states.
type Trigger string

const (
	CandidatesReceived Trigger = "candidatesReceived"
	FaceSelected       Trigger = "faceSelected"
	SceneReceived      Trigger = "sceneReceived"
	Restart            Trigger = "restart"
)

// transitions lists, per trigger, the states it may fire from and its target.
// Restart applies from every state.
var transitions = map[Trigger]struct {
	from []State
	to   State
}{
	CandidatesReceived: {from: []State{StateCasting, StateSelecting}, to: StateSelecting},
	FaceSelected:       {from: []State{StateSelecting, StateShooting}, to: StateShooting},
	SceneReceived:      {from: []State{StateShooting, StateDone}, to: StateDone},
}

// Next returns the state reached by firing t in s.
func Next(s State, t Trigger) (State, error) {
	if t == Restart {
		return StateCasting, nil
	}
	rule, ok := transitions[t]
	if !ok {
		return s, fmt.Errorf("%w: unknown trigger %q", ErrInvalidTransition, t)
	}
	for _, from := range rule.from {
		if from == s {
			return rule.to, nil
		}
	}
	return s, fmt.Errorf("%w: %s from %s", ErrInvalidTransition, t, s)
}

// Session is the state of one wizard run.
type Session struct {
	ID           string              `json:"id"`
	State        State               `json:"state"`
	Face         casting.FaceRequest `json:"face"`
	Candidates   []string            `json:"candidates"`
	SelectedFace string              `json:"selected_face,omitempty"`
	Outfit       string              `json:"outfit,omitempty"`
	Scenes       []string            `json:"scenes"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

// NewSession returns a session at the casting step.
func NewSession(id string, now time.Time) Session {
	return Session{
		ID:         id,
		State:      StateCasting,
		Candidates: []string{},
		Scenes:     []string{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// ReceiveCandidates stores a fresh batch of face candidates.
func (s *Session) ReceiveCandidates(face casting.FaceRequest, urls []string, now time.Time) error {
	next, err := Next(s.State, CandidatesReceived)
	if err != nil {
		return err
	}
	s.State = next
	s.Face = face
	s.Candidates = append([]string{}, urls...)
	s.SelectedFace = ""
	s.Scenes = []string{}
	s.Outfit = ""
	s.UpdatedAt = now
	return nil
}

// SelectFace picks one of the current candidates.
func (s *Session) SelectFace(url string, now time.Time) error {
	next, err := Next(s.State, FaceSelected)
	if err != nil {
		return err
	}
	if !s.hasCandidate(url) {
		return ErrUnknownCandidate
	}
	s.State = next
	s.SelectedFace = url
	s.Scenes = []string{}
	s.UpdatedAt = now
	return nil
}

// ReceiveScene stores the images shot for the selected face.
func (s *Session) ReceiveScene(outfit string, urls []string, now time.Time) error {
	next, err := Next(s.State, SceneReceived)
	if err != nil {
		return err
	}
	s.State = next
	s.Outfit = outfit
	s.Scenes = append([]string{}, urls...)
	s.UpdatedAt = now
	return nil
}

// Reset returns the session to the casting step and drops its data.
func (s *Session) Reset(now time.Time) {
	created := s.CreatedAt
	*s = NewSession(s.ID, now)
	s.CreatedAt = created
}

func (s *Session) hasCandidate(url string) bool {
	for _, c := range s.Candidates {
		if c == url {
			return true
		}
	}
	return false
}

func (s Session) clone() Session {
	s.Candidates = append([]string{}, s.Candidates...)
	s.Scenes = append([]string{}, s.Scenes...)
	return s
}
