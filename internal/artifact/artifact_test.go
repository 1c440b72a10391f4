package artifact

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"avatarpipe/internal/pkg/errors"
	"avatarpipe/internal/speech"
)

func TestParseAudioName(t *testing.T) {
	tests := []struct {
		path    string
		base    string
		variant Variant
	}{
		{"sample_script_audio_OptionA.mp3", "sample_script", OptionA},
		{"/out/sample_script_audio_OptionB.mp3", "sample_script", OptionB},
		{"sample_script_OptionB.mp3", "sample_script", OptionB},
		{"intro_part_2_OptionA.mp3", "intro_part_2", OptionA},
		{"custom.mp3", "custom", Custom},
		{"voice_OptionC.mp3", "voice_OptionC", Custom},
		{"noext", "noext", Custom},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			base, v := ParseAudioName(tt.path)
			assert.Equal(t, tt.base, base)
			assert.Equal(t, tt.variant, v)
		})
	}
}

func TestNamesRoundTrip(t *testing.T) {
	for _, v := range []Variant{OptionA, OptionB} {
		base, got := ParseAudioName(AudioName("weekly_update", v))
		assert.Equal(t, "weekly_update", base)
		assert.Equal(t, v, got)
	}
	assert.Equal(t, filepath.Join("out", "demo_video.mp4"), VideoPath("out", "demo"))
}

func TestMetaRoundTrip(t *testing.T) {
	audio := filepath.Join(t.TempDir(), AudioName("demo", OptionB))
	want := Meta{
		ScriptName:   "demo.docx",
		BaseName:     "demo",
		Variant:      OptionB,
		ScriptLength: 500,
		Model:        "eleven_v3",
		Voice:        speech.Expressive,
		CreatedAt:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	require.NoError(t, WriteMeta(audio, want))
	assert.FileExists(t, SidecarPath(audio))

	got, err := ReadMeta(audio)
	require.NoError(t, err)
	assert.Equal(t, want.ScriptName, got.ScriptName)
	assert.Equal(t, want.Variant, got.Variant)
	assert.Equal(t, 500, got.ScriptLength)
	assert.Equal(t, speech.Expressive, got.Voice)
	assert.True(t, want.CreatedAt.Equal(got.CreatedAt))
}

func TestReadMetaMissing(t *testing.T) {
	_, err := ReadMeta(filepath.Join(t.TempDir(), "none.mp3"))
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestDescribePrefersSidecar(t *testing.T) {
	dir := t.TempDir()
	audio := filepath.Join(dir, "renamed_by_hand.mp3")
	require.NoError(t, WriteMeta(audio, Meta{BaseName: "quarterly", Variant: OptionA, ScriptLength: 42}))

	m, ok := Describe(audio)
	assert.True(t, ok)
	assert.Equal(t, "quarterly", m.BaseName)
	assert.Equal(t, OptionA, m.Variant)
	assert.Equal(t, 42, m.ScriptLength)
}

func TestDescribeFallsBackOnInvalidSidecar(t *testing.T) {
	dir := t.TempDir()
	audio := filepath.Join(dir, "talk_audio_OptionB.mp3")
	require.NoError(t, os.WriteFile(SidecarPath(audio), []byte("variant = [broken"), 0o644))

	m, ok := Describe(audio)
	assert.False(t, ok)
	assert.Equal(t, "talk", m.BaseName)
	assert.Equal(t, OptionB, m.Variant)
	assert.Zero(t, m.ScriptLength)
}

func TestDescribeRejectsUnknownVariant(t *testing.T) {
	dir := t.TempDir()
	audio := filepath.Join(dir, "x_audio_OptionA.mp3")
	require.NoError(t, os.WriteFile(SidecarPath(audio), []byte("base_name = \"x\"\nvariant = \"OptionZ\"\n"), 0o644))

	_, err := ReadMeta(audio)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeValidation))

	m, ok := Describe(audio)
	assert.False(t, ok)
	assert.Equal(t, OptionA, m.Variant)
}
