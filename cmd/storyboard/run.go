package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/HyeBin-Hub/Film-Storyboard-Web-1/internal/casting"
	"github.com/HyeBin-Hub/Film-Storyboard-Web-1/internal/infra"
	"github.com/HyeBin-Hub/Film-Storyboard-Web-1/internal/runcomfy"
	"github.com/HyeBin-Hub/Film-Storyboard-Web-1/internal/storage"
)

type options struct {
	face    casting.FaceRequest
	faceURL string
	outfit  string
	out     string
	timeout time.Duration
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options
	fs := flag.NewFlagSet("storyboard", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.face.Prompt, "prompt", "", "character description for face casting")
	fs.IntVar(&opts.face.BatchSize, "batch", casting.DefaultBatchSize, fmt.Sprintf("number of face candidates (1-%d)", casting.MaxBatchSize))
	fs.StringVar(&opts.face.Shot, "shot", casting.DefaultShot, "shot type")
	fs.StringVar(&opts.face.Lighting, "lighting", casting.DefaultLighting, "lighting type")
	fs.StringVar(&opts.face.FaceShape, "face-shape", casting.DefaultFaceShape, "face shape")
	fs.StringVar(&opts.face.EyesColor, "eyes", casting.DefaultEyesColor, "eye color")
	fs.StringVar(&opts.face.Nationality, "nationality", casting.DefaultNationality, "nationality")
	fs.StringVar(&opts.faceURL, "face", "", "selected face image URL or data URI; switches to scene mode")
	fs.StringVar(&opts.outfit, "outfit", "", "outfit description for scene mode")
	fs.StringVar(&opts.out, "out", "", "directory to download the images into")
	fs.DurationVar(&opts.timeout, "timeout", 0, "overall deadline, e.g. 5m (0 uses the client's max wait)")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if fs.NArg() > 0 {
		return options{}, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	opts.faceURL = strings.TrimSpace(opts.faceURL)
	if opts.faceURL == "" && strings.TrimSpace(opts.face.Prompt) == "" {
		return options{}, errors.New("-prompt is required (or -face with -outfit for a scene)")
	}
	if opts.faceURL != "" && strings.TrimSpace(opts.outfit) == "" {
		return options{}, errors.New("-outfit is required with -face")
	}
	return opts, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(stderr, "storyboard:", err)
		return 2
	}

	cfg, err := infra.LoadConfig()
	if err != nil {
		fmt.Fprintln(stderr, "storyboard:", err)
		return 1
	}
	if !cfg.HasRunComfyCredentials() {
		fmt.Fprintln(stderr, "storyboard: RUNCOMFY_API_KEY and DEPLOYMENT_ID must be set")
		return 1
	}
	logger := infra.NewLoggerTo(stderr, "cli").With().Str("cmd", "storyboard").Logger()

	client := runcomfy.NewClient(runcomfy.Options{
		BaseURL: cfg.RunComfyBaseURL,
		Credentials: runcomfy.Credentials{
			APIKey:       cfg.RunComfyAPIKey,
			DeploymentID: cfg.DeploymentID,
		},
		RequestTimeout: cfg.RunComfyTimeout,
		PollInterval:   cfg.RunComfyPollInterval,
		MaxWait:        cfg.RunComfyMaxWait,
		Logger:         &logger,
	})
	layout := casting.DefaultLayout()
	layout.FaceOutput = cfg.FaceOutputNode
	layout.SceneOutput = cfg.SceneOutputNode

	if opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.timeout)
		defer cancel()
	}

	var (
		overrides  runcomfy.Overrides
		extraction runcomfy.Extraction
		prefix     string
	)
	if opts.faceURL != "" {
		overrides, err = layout.SceneOverrides(casting.SceneRequest{FaceImage: opts.faceURL, OutfitPrompt: opts.outfit})
		extraction, prefix = layout.SceneExtraction(), "scene"
	} else {
		overrides, _, err = layout.FaceOverrides(opts.face)
		extraction, prefix = layout.FaceExtraction(), "face"
	}
	if err != nil {
		fmt.Fprintln(stderr, "storyboard:", err)
		return 2
	}
	if opts.faceURL != "" && cfg.EmbedFaceImage {
		face, err := client.EncodeImageURL(ctx, opts.faceURL)
		if err != nil {
			logger.Error().Err(err).Msg("embedding face failed")
			return 1
		}
		overrides.Set(layout.ReferenceImage, "image", face)
	}

	out, err := client.Run(ctx, overrides, extraction)
	if err != nil {
		evt := logger.Error().Err(err)
		if details := runcomfy.DetailsOf(err); len(details) > 0 {
			evt = evt.RawJSON("details", details)
		}
		evt.Msg("job failed")
		return 1
	}
	logger.Info().Str("request_id", out.RequestID).Int("images", len(out.Images)).Msg("job completed")
	for _, u := range out.Images {
		fmt.Fprintln(stdout, u)
	}

	if opts.out == "" {
		return 0
	}
	if err := save(ctx, client, opts.out, prefix, out.Images, logger); err != nil {
		logger.Error().Err(err).Msg("saving images failed")
		return 1
	}
	return 0
}

func save(ctx context.Context, client *runcomfy.Client, dir, prefix string, images []string, logger infra.Logger) error {
	store, err := storage.NewFileStore(dir)
	if err != nil {
		return err
	}
	for i, src := range images {
		data, mimeType, err := client.Load(ctx, src)
		if err != nil {
			return fmt.Errorf("image %d: %w", i+1, err)
		}
		written, err := store.Write(ctx, runcomfy.ImageFileName(prefix, i, src, mimeType), data)
		if err != nil {
			return err
		}
		logger.Info().Str("path", written).Msg("saved")
	}
	return nil
}
