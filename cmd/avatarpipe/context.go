package main

import (
	"context"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"avatarpipe/internal/app"
	"avatarpipe/internal/config"
	"avatarpipe/internal/pipeline"
	"avatarpipe/internal/pkg/logger"
)

// runner is the pipeline surface the CLI drives.
type runner interface {
	GenerateAudio(ctx context.Context, scriptPath string, opts pipeline.Options) (*pipeline.AudioResult, error)
	ContinueWithAudio(ctx context.Context, audioPath string, opts pipeline.Options) (*pipeline.VideoResult, error)
	RunFull(ctx context.Context, scriptPath string, opts pipeline.Options) (*pipeline.FullResult, error)
}

type runnerFactory func(cfg *config.Config, log *logger.Logger) runner

func defaultRunnerFactory(cfg *config.Config, log *logger.Logger) runner {
	return app.NewPipeline(cfg, log)
}

type commandContext struct {
	configFlag *string
	newRunner  runnerFactory

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string, newRunner runnerFactory) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		newRunner:  newRunner,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
