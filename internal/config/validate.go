package config

import (
	"errors"
	"fmt"
	"slices"
)

// Validate ensures the configuration is usable. Vendor credentials are checked
// by the components that need them, so a config without them still loads.
func (c *Config) Validate() error {
	if err := c.validateRender(); err != nil {
		return err
	}
	if err := c.validateYouTube(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateRender() error {
	if c.Render.Width <= 0 || c.Render.Height <= 0 {
		return errors.New("render.width and render.height must be positive")
	}
	if c.Render.PollIntervalSeconds <= 0 {
		return errors.New("render.poll_interval_seconds must be positive")
	}
	if c.Render.MaxWaitSeconds <= 0 {
		return errors.New("render.max_wait_seconds must be positive")
	}
	if c.Render.NetworkBackoffSeconds < 0 {
		return errors.New("render.network_backoff_seconds must not be negative")
	}
	return nil
}

func (c *Config) validateYouTube() error {
	if !slices.Contains([]string{"private", "unlisted", "public"}, c.YouTube.Privacy) {
		return fmt.Errorf("youtube.privacy must be private, unlisted or public, got %q", c.YouTube.Privacy)
	}
	if c.YouTube.MaxRetries < 0 {
		return errors.New("youtube.max_retries must not be negative")
	}
	return nil
}

func (c *Config) validateStorage() error {
	switch c.Storage.Provider {
	case "gdrive", "localfs":
		return nil
	default:
		return fmt.Errorf("storage.provider must be gdrive or localfs, got %q", c.Storage.Provider)
	}
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json", "text":
	default:
		return fmt.Errorf("logging.format must be console, json or text, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	return nil
}
