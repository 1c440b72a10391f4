package models

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"avatarpipe/internal/pkg/errors"
)

func TestCreateRunRequestValidate(t *testing.T) {
	tests := []struct {
		name  string
		req   CreateRunRequest
		field string
	}{
		{"audio ok", CreateRunRequest{Mode: ModeAudio, ScriptPath: "scripts/a.txt"}, ""},
		{"full ok", CreateRunRequest{Mode: ModeFull, ScriptPath: "a.docx"}, ""},
		{"continue ok", CreateRunRequest{Mode: ModeContinue, AudioPath: "out/a_audio_OptionB.mp3"}, ""},
		{"missing mode", CreateRunRequest{ScriptPath: "a.txt"}, "mode"},
		{"unknown mode", CreateRunRequest{Mode: "video", ScriptPath: "a.txt"}, "mode"},
		{"audio without script", CreateRunRequest{Mode: ModeAudio, ScriptPath: "  "}, "script_path"},
		{"continue without audio", CreateRunRequest{Mode: ModeContinue, ScriptPath: "a.txt"}, "audio_path"},
		{"bad privacy", CreateRunRequest{
			Mode: ModeFull, ScriptPath: "a.txt",
			Options: RunOptions{UploadYouTube: true, YouTubePrivacy: "friends"},
		}, "options.youtube_privacy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.field == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.CodeValidation))
			assert.Equal(t, tt.field, errors.GetFields(err)["field"])
		})
	}
}

func TestNewRun(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.FixedZone("CET", 3600))
	req := CreateRunRequest{Mode: ModeAudio, ScriptPath: "a.txt", Options: RunOptions{SkipCloud: true}}

	run := NewRun(req, now)

	assert.True(t, strings.HasPrefix(run.ID, "run_"))
	assert.Equal(t, StatusQueued, run.Status)
	assert.Equal(t, ModeAudio, run.Mode)
	assert.True(t, run.Options.SkipCloud)
	assert.Equal(t, time.UTC, run.CreatedAt.Location())
	assert.NotEqual(t, run.ID, NewRun(req, now).ID)
}

func TestValidStatus(t *testing.T) {
	assert.True(t, ValidStatus(StatusDone))
	assert.False(t, ValidStatus("done"))
}
