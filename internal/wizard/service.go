package wizard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/HyeBin-Hub/Film-Storyboard-Web-1/internal/casting"
	"github.com/HyeBin-Hub/Film-Storyboard-Web-1/internal/infra"
	"github.com/HyeBin-Hub/Film-Storyboard-Web-1/internal/runcomfy"
)

// ErrNoScenes is returned when an archive is requested before any scene exists.
var ErrNoScenes = errors.New("wizard: session has no scene images")

// Options configures a Service.
type Options struct {
	Client *runcomfy.Client
	Store  Store
	Layout casting.Layout
	// EmbedFace re-encodes the selected face as a data URI before the scene
	// job, for deployments whose image loader rejects URLs.
	EmbedFace bool
	Logger    *infra.Logger
	Now       func() time.Time
}

// Service runs wizard steps against a workflow deployment.
type Service struct {
	client    *runcomfy.Client
	store     Store
	layout    casting.Layout
	embedFace bool
	logger    *infra.Logger
	now       func() time.Time
}

// Image is a downloaded scene image.
type Image struct {
	Name string
	MIME string
	Data []byte
}

// NewService wires a Service with defaults for omitted options.
func NewService(opts Options) *Service {
	client := opts.Client
	if client == nil {
		client = runcomfy.NewClient(runcomfy.Options{Logger: opts.Logger})
	}
	store := opts.Store
	if store == nil {
		store = NewMemoryStore()
	}
	layout := opts.Layout
	if layout == (casting.Layout{}) {
		layout = casting.DefaultLayout()
	}
	logger := opts.Logger
	if logger == nil {
		l := infra.Logger(zerolog.New(io.Discard))
		logger = &l
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		client:    client,
		store:     store,
		layout:    layout,
		embedFace: opts.EmbedFace,
		logger:    logger,
		now:       now,
	}
}

// Create starts a new session at the casting step.
func (s *Service) Create(ctx context.Context) (Session, error) {
	sess := NewSession(uuid.NewString(), s.now().UTC())
	if err := s.store.Put(ctx, sess); err != nil {
		return Session{}, err
	}
	s.logger.Info().Str("session_id", sess.ID).Msg("wizard: session created")
	return sess, nil
}

// Get returns a session by id.
func (s *Service) Get(ctx context.Context, id string) (Session, error) {
	return s.store.Get(ctx, id)
}

// Delete drops a session.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.store.Delete(ctx, id)
}

// Cast generates face candidates. Credentials that are not valid fall back to
// the client's configured ones.
func (s *Service) Cast(ctx context.Context, id string, creds runcomfy.Credentials, req casting.FaceRequest) (Session, error) {
	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return Session{}, err
	}
	if _, err := Next(sess.State, CandidatesReceived); err != nil {
		return Session{}, err
	}
	client := s.clientFor(creds)
	if !client.HasCredentials() {
		return Session{}, &runcomfy.Error{Op: "cast", Kind: runcomfy.ErrConfiguration}
	}
	overrides, normalized, err := s.layout.FaceOverrides(req)
	if err != nil {
		return Session{}, err
	}
	out, err := client.Run(ctx, overrides, s.layout.FaceExtraction())
	if err != nil {
		s.logger.Error().Err(err).Str("session_id", id).Msg("wizard: casting failed")
		return Session{}, err
	}
	s.logger.Info().
		Str("session_id", id).
		Str("request_id", out.RequestID).
		Int("candidates", len(out.Images)).
		Msg("wizard: candidates received")
	return s.update(ctx, id, func(sess *Session) error {
		return sess.ReceiveCandidates(normalized, out.Images, s.now().UTC())
	})
}

// Select marks one candidate as the chosen face.
func (s *Service) Select(ctx context.Context, id, url string) (Session, error) {
	url = strings.TrimSpace(url)
	return s.update(ctx, id, func(sess *Session) error {
		return sess.SelectFace(url, s.now().UTC())
	})
}

// Shoot generates the full-body scene for the selected face.
func (s *Service) Shoot(ctx context.Context, id string, creds runcomfy.Credentials, outfit string) (Session, error) {
	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return Session{}, err
	}
	if _, err := Next(sess.State, SceneReceived); err != nil {
		return Session{}, err
	}
	client := s.clientFor(creds)
	if !client.HasCredentials() {
		return Session{}, &runcomfy.Error{Op: "shoot", Kind: runcomfy.ErrConfiguration}
	}
	overrides, err := s.layout.SceneOverrides(casting.SceneRequest{FaceImage: sess.SelectedFace, OutfitPrompt: outfit})
	if err != nil {
		return Session{}, err
	}
	if s.embedFace {
		face, err := client.EncodeImageURL(ctx, sess.SelectedFace)
		if err != nil {
			s.logger.Error().Err(err).Str("session_id", id).Msg("wizard: embedding face failed")
			return Session{}, err
		}
		overrides.Set(s.layout.ReferenceImage, "image", face)
	}
	out, err := client.Run(ctx, overrides, s.layout.SceneExtraction())
	if err != nil {
		s.logger.Error().Err(err).Str("session_id", id).Msg("wizard: shooting failed")
		return Session{}, err
	}
	s.logger.Info().
		Str("session_id", id).
		Str("request_id", out.RequestID).
		Int("scenes", len(out.Images)).
		Msg("wizard: scene received")
	outfit = strings.TrimSpace(outfit)
	return s.update(ctx, id, func(sess *Session) error {
		return sess.ReceiveScene(outfit, out.Images, s.now().UTC())
	})
}

// Restart returns a session to the casting step.
func (s *Service) Restart(ctx context.Context, id string) (Session, error) {
	return s.update(ctx, id, func(sess *Session) error {
		sess.Reset(s.now().UTC())
		return nil
	})
}

// SceneImages downloads the session's scene images.
func (s *Service) SceneImages(ctx context.Context, id string) ([]Image, error) {
	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(sess.Scenes) == 0 {
		return nil, ErrNoScenes
	}
	images := make([]Image, 0, len(sess.Scenes))
	for i, src := range sess.Scenes {
		data, mimeType, err := s.client.Load(ctx, src)
		if err != nil {
			return nil, fmt.Errorf("wizard: scene %d: %w", i+1, err)
		}
		images = append(images, Image{Name: runcomfy.ImageFileName("scene", i, src, mimeType), MIME: mimeType, Data: data})
	}
	return images, nil
}

func (s *Service) clientFor(creds runcomfy.Credentials) *runcomfy.Client {
	if creds.Valid() {
		return s.client.WithCredentials(creds)
	}
	return s.client
}

func (s *Service) update(ctx context.Context, id string, apply func(*Session) error) (Session, error) {
	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return Session{}, err
	}
	if err := apply(&sess); err != nil {
		return Session{}, err
	}
	if err := s.store.Put(ctx, sess); err != nil {
		return Session{}, err
	}
	return sess, nil
}
