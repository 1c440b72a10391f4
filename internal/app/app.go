// Package app builds the pipeline and its logger from configuration. The CLI
// and the worker share it so both run the same collaborators.
package app

import (
	"context"
	"net/http"
	"os"
	"sync"
	"time"

	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"
	ytapi "google.golang.org/api/youtube/v3"

	"avatarpipe/internal/adapters/gmail"
	"avatarpipe/internal/adapters/sheets"
	"avatarpipe/internal/adapters/youtube"
	"avatarpipe/internal/config"
	"avatarpipe/internal/googleauth"
	"avatarpipe/internal/pipeline"
	"avatarpipe/internal/pkg/errors"
	"avatarpipe/internal/pkg/logger"
	"avatarpipe/internal/poller"
	"avatarpipe/internal/publish"
	"avatarpipe/internal/render"
	"avatarpipe/internal/speech"
	"avatarpipe/internal/storage"
)

// NewLogger creates the process logger from the logging section.
func NewLogger(cfg *config.Config, service string) *logger.Logger {
	return logger.New(logger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Output:      os.Stderr,
		File:        cfg.Logging.File,
		AddSource:   config.BoolEnv("LOG_SOURCE", false),
		ServiceName: service,
	})
}

// NewPipeline wires the synthesis, render and polling clients plus the
// publication steps. Google clients are created on first use, so missing
// credentials only fail the steps that need them.
func NewPipeline(cfg *config.Config, log *logger.Logger) *pipeline.Pipeline {
	renderClient := render.NewHTTPClient(render.Config{
		APIKey:        cfg.Render.APIKey,
		AvatarID:      cfg.Render.AvatarID,
		BaseURL:       cfg.Render.BaseURL,
		UploadURL:     cfg.Render.UploadURL,
		Width:         cfg.Render.Width,
		Height:        cfg.Render.Height,
		StatusTimeout: time.Duration(cfg.Render.StatusTimeoutSeconds) * time.Second,
	}, log)

	return pipeline.New(pipeline.Deps{
		Speech: speech.NewClient(speech.Config{
			APIKey:        cfg.Speech.APIKey,
			VoiceID:       cfg.Speech.VoiceID,
			Model:         cfg.Speech.Model,
			FallbackModel: cfg.Speech.FallbackModel,
			BaseURL:       cfg.Speech.BaseURL,
			Timeout:       time.Duration(cfg.Speech.TimeoutSeconds) * time.Second,
		}, log),
		Render: renderClient,
		Poller: poller.New(renderClient, poller.Config{
			Interval:       cfg.PollInterval(),
			MaxWait:        cfg.MaxWait(),
			NetworkBackoff: cfg.NetworkBackoff(),
			NetworkRetries: cfg.Render.NetworkRetries,
		}, log),
		Cloud:   CloudSteps(cfg, log),
		YouTube: YouTubeStep(cfg, log),
		Paths: pipeline.Paths{
			OutputDir: cfg.Paths.OutputDir,
			TempDir:   cfg.Paths.TempDir,
		},
		NotifyEmail:    cfg.Notify.Email,
		YouTubePrivacy: cfg.YouTube.Privacy,
		Log:            log,
	})
}

// CloudSteps returns the archive, sheet and email steps in run order.
func CloudSteps(cfg *config.Config, log *logger.Logger) []publish.Step {
	google := newGoogleClient(cfg)
	return []publish.Step{
		publish.Lazy(publish.StepStorage, func(ctx context.Context) (publish.Step, error) {
			sp, err := storage.NewProvider(ctx, cfg)
			if err != nil {
				return nil, err
			}
			return publish.StorageStep{Provider: sp}, nil
		}),
		publish.Lazy(publish.StepSheet, func(ctx context.Context) (publish.Step, error) {
			hc, err := google.get(ctx)
			if err != nil {
				return nil, err
			}
			srv, err := gsheets.NewService(ctx, option.WithHTTPClient(hc))
			if err != nil {
				return nil, errors.Wrap(err, "app.sheets", "create sheets service")
			}
			return publish.SheetStep{Log: sheets.New(srv, cfg.Google.SheetID, cfg, log)}, nil
		}),
		publish.Lazy(publish.StepEmail, func(ctx context.Context) (publish.Step, error) {
			hc, err := google.get(ctx)
			if err != nil {
				return nil, err
			}
			srv, err := gmailapi.NewService(ctx, option.WithHTTPClient(hc))
			if err != nil {
				return nil, errors.Wrap(err, "app.gmail", "create gmail service")
			}
			return publish.EmailStep{Sender: gmail.NewSender(srv, log)}, nil
		}),
	}
}

// YouTubeStep returns the optional upload step.
func YouTubeStep(cfg *config.Config, log *logger.Logger) publish.Step {
	google := newGoogleClient(cfg)
	return publish.Lazy(publish.StepYouTube, func(ctx context.Context) (publish.Step, error) {
		hc, err := google.get(ctx)
		if err != nil {
			return nil, err
		}
		srv, err := ytapi.NewService(ctx, option.WithHTTPClient(hc))
		if err != nil {
			return nil, errors.Wrap(err, "app.youtube", "create youtube service")
		}
		return publish.YouTubeStep{
			Uploader:   youtube.NewUploader(srv, cfg.YouTube.MaxRetries, log),
			CategoryID: cfg.YouTube.CategoryID,
		}, nil
	})
}

// googleClient builds the OAuth client once. The client outlives the run
// that first needed it, so it is not bound to that run's cancellation.
type googleClient struct {
	cfg  *config.Config
	once sync.Once
	hc   *http.Client
	err  error
}

func newGoogleClient(cfg *config.Config) *googleClient {
	return &googleClient{cfg: cfg}
}

func (g *googleClient) get(ctx context.Context) (*http.Client, error) {
	g.once.Do(func() {
		g.hc, g.err = googleauth.HTTPClient(context.WithoutCancel(ctx), g.cfg.Google)
	})
	return g.hc, g.err
}
