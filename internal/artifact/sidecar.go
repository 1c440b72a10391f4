package artifact

import (
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"

	"avatarpipe/internal/pkg/errors"
	"avatarpipe/internal/speech"
)

const sidecarExt = ".meta.toml"

// Meta is the provenance of one audio take, stored next to it.
type Meta struct {
	ScriptName   string               `toml:"script_name"`
	BaseName     string               `toml:"base_name"`
	Variant      Variant              `toml:"variant"`
	ScriptLength int                  `toml:"script_length"`
	Model        string               `toml:"model"`
	Voice        speech.VoiceSettings `toml:"voice"`
	CreatedAt    time.Time            `toml:"created_at"`
}

// SidecarPath returns the metadata path for an audio file.
func SidecarPath(audioPath string) string {
	return audioPath + sidecarExt
}

// WriteMeta stores m next to audioPath.
func WriteMeta(audioPath string, m Meta) error {
	const op = "artifact.write_meta"

	data, err := toml.Marshal(m)
	if err != nil {
		return errors.Wrap(err, op, "encode sidecar")
	}

	path := SidecarPath(audioPath)
	tmp, err := os.CreateTemp(filepath.Dir(path), ".meta-*")
	if err != nil {
		return errors.Wrap(err, op, "create sidecar")
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.Wrap(err, op, "write sidecar")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, op, "close sidecar")
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, op, "rename sidecar")
	}
	return nil
}

// ReadMeta loads the sidecar for audioPath. A missing file is NOT_FOUND.
func ReadMeta(audioPath string) (Meta, error) {
	const op = "artifact.read_meta"

	path := SidecarPath(audioPath)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Meta{}, errors.NotFound("sidecar", path).WithOp(op)
		}
		return Meta{}, errors.Wrap(err, op, "read sidecar")
	}

	var m Meta
	if err := toml.Unmarshal(data, &m); err != nil {
		return Meta{}, errors.WrapWithCode(err, errors.CodeValidation, op, "decode sidecar")
	}
	if m.BaseName == "" || !m.Variant.Valid() {
		return Meta{}, errors.Validation("sidecar is missing base_name or variant").
			WithOp(op).
			WithField("path", path)
	}
	return m, nil
}

// Describe returns the base name and variant of an audio file, preferring its
// sidecar and falling back to the file name convention. ok reports whether the
// sidecar was used.
func Describe(audioPath string) (meta Meta, ok bool) {
	if m, err := ReadMeta(audioPath); err == nil {
		return m, true
	}
	base, v := ParseAudioName(audioPath)
	return Meta{BaseName: base, Variant: v}, false
}
