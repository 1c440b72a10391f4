// Package artifact names the files the pipeline produces and records what
// each audio take was made from.
package artifact

import (
	"path/filepath"
	"strings"
)

// Variant identifies which take a reviewer kept.
type Variant string

const (
	OptionA Variant = "OptionA"
	OptionB Variant = "OptionB"
	Custom  Variant = "Custom"
)

const (
	audioMarker = "_audio_"
	audioExt    = ".mp3"
	videoSuffix = "_video.mp4"
)

// Valid reports whether v is one of the known variants.
func (v Variant) Valid() bool {
	switch v {
	case OptionA, OptionB, Custom:
		return true
	}
	return false
}

// AudioName returns the published file name of a take, e.g.
// "intro_audio_OptionA.mp3".
func AudioName(stem string, v Variant) string {
	return stem + audioMarker + string(v) + audioExt
}

// AudioPath joins dir and AudioName.
func AudioPath(dir, stem string, v Variant) string {
	return filepath.Join(dir, AudioName(stem, v))
}

// VideoName returns the file name of a finished video.
func VideoName(name string) string {
	return name + videoSuffix
}

// VideoPath joins dir and VideoName.
func VideoPath(dir, name string) string {
	return filepath.Join(dir, VideoName(name))
}

// ParseAudioName recovers the script base name and variant from an audio
// file name or path.
//
//	intro_audio_OptionA.mp3  -> intro, OptionA
//	intro_OptionB.mp3        -> intro, OptionB
//	voiceover.mp3            -> voiceover, Custom
func ParseAudioName(path string) (string, Variant) {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))

	for _, v := range []Variant{OptionA, OptionB} {
		marker := audioMarker + string(v)
		if strings.Contains(stem, marker) {
			return strings.Replace(stem, marker, "", 1), v
		}
	}

	for _, v := range []Variant{OptionA, OptionB} {
		if strings.HasSuffix(stem, "_"+string(v)) {
			i := strings.LastIndex(stem, "_")
			return stem[:i], v
		}
	}

	return stem, Custom
}
