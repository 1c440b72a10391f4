// Package models holds the records the API and worker share through
// PostgreSQL.
package models

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"avatarpipe/internal/adapters/youtube"
	"avatarpipe/internal/pkg/errors"
)

// Mode selects which part of the pipeline a run executes.
type Mode string

const (
	ModeAudio    Mode = "audio"
	ModeContinue Mode = "continue"
	ModeFull     Mode = "full"
)

// Status is the lifecycle state of a run row.
type Status string

const (
	StatusQueued  Status = "QUEUED"
	StatusRunning Status = "RUNNING"
	StatusDone    Status = "DONE"
	StatusFailed  Status = "FAILED"
)

// ValidStatus reports whether s is a known status.
func ValidStatus(s Status) bool {
	switch s {
	case StatusQueued, StatusRunning, StatusDone, StatusFailed:
		return true
	}
	return false
}

// RunOptions are the per-run pipeline options accepted by the API.
type RunOptions struct {
	OutputName     string `json:"output_name,omitempty"`
	Background     string `json:"background,omitempty"`
	SkipCloud      bool   `json:"skip_cloud,omitempty"`
	Email          string `json:"email,omitempty"`
	UploadYouTube  bool   `json:"youtube,omitempty"`
	YouTubeTitle   string `json:"youtube_title,omitempty"`
	YouTubePrivacy string `json:"youtube_privacy,omitempty"`
}

// Run is one queued pipeline execution.
type Run struct {
	ID         string          `json:"id"`
	Mode       Mode            `json:"mode"`
	Status     Status          `json:"status"`
	Phase      string          `json:"phase,omitempty"`
	ScriptPath string          `json:"script_path,omitempty"`
	AudioPath  string          `json:"audio_path,omitempty"`
	Options    RunOptions      `json:"options"`
	Result     json.RawMessage `json:"result,omitempty"`
	ErrorText  string          `json:"error,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	StartedAt  *time.Time      `json:"started_at,omitempty"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
}

// CreateRunRequest is the POST /runs body.
type CreateRunRequest struct {
	Mode       Mode       `json:"mode"`
	ScriptPath string     `json:"script_path,omitempty"`
	AudioPath  string     `json:"audio_path,omitempty"`
	Options    RunOptions `json:"options"`
}

// Validate checks the request fields required by its mode.
func (r *CreateRunRequest) Validate() error {
	r.ScriptPath = strings.TrimSpace(r.ScriptPath)
	r.AudioPath = strings.TrimSpace(r.AudioPath)

	switch r.Mode {
	case ModeAudio, ModeFull:
		if r.ScriptPath == "" {
			return errors.ValidationField("script_path", "script_path is required for mode "+string(r.Mode))
		}
	case ModeContinue:
		if r.AudioPath == "" {
			return errors.ValidationField("audio_path", "audio_path is required for mode continue")
		}
	case "":
		return errors.ValidationField("mode", "mode is required")
	default:
		return errors.ValidationField("mode", "mode must be one of audio, continue, full")
	}

	if p := r.Options.YouTubePrivacy; p != "" && !youtube.ValidPrivacy(p) {
		return errors.ValidationField("options.youtube_privacy", "youtube_privacy must be private, unlisted or public")
	}
	return nil
}

// NewRun builds a queued run from a validated request.
func NewRun(req CreateRunRequest, now time.Time) *Run {
	return &Run{
		ID:         NewRunID(),
		Mode:       req.Mode,
		Status:     StatusQueued,
		ScriptPath: req.ScriptPath,
		AudioPath:  req.AudioPath,
		Options:    req.Options,
		CreatedAt:  now.UTC(),
	}
}

// NewRunID returns a unique run identifier.
func NewRunID() string {
	return "run_" + uuid.NewString()
}
