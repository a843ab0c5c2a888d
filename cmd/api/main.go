package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/HyeBin-Hub/Film-Storyboard-Web-1/internal/casting"
	"github.com/HyeBin-Hub/Film-Storyboard-Web-1/internal/http/handlers"
	"github.com/HyeBin-Hub/Film-Storyboard-Web-1/internal/http/httpapi"
	"github.com/HyeBin-Hub/Film-Storyboard-Web-1/internal/infra"
	"github.com/HyeBin-Hub/Film-Storyboard-Web-1/internal/infra/geoip"
	"github.com/HyeBin-Hub/Film-Storyboard-Web-1/internal/runcomfy"
	"github.com/HyeBin-Hub/Film-Storyboard-Web-1/internal/wizard"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	if !cfg.HasRunComfyCredentials() {
		logger.Warn().Msg("RUNCOMFY_API_KEY or DEPLOYMENT_ID not set; callers must send credential headers")
	}

	resolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip disabled")
	}
	defer resolver.Close()

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

	svc := wizard.NewService(wizard.Options{
		Client:    client,
		Store:     wizard.NewMemoryStore(),
		Layout:    layout,
		EmbedFace: cfg.EmbedFaceImage,
		Logger:    &logger,
	})

	app := handlers.NewApp(svc, cfg, &logger)
	router := httpapi.NewRouter(app, resolver.Lookup())
	server := infra.NewHTTPServer(cfg, router, logger)

	go func() {
		logger.Info().Str("addr", server.Addr()).Str("deployment", client.DeploymentID()).Msg("storyboard api listening")
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
