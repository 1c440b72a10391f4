package pipeline

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"avatarpipe/internal/artifact"
	"avatarpipe/internal/pkg/errors"
	"avatarpipe/internal/script"
	"avatarpipe/internal/speech"
)

const audioSteps = 4

// GenerateAudio runs Phase 1: it reads the script, synthesizes the Stable and
// Expressive takes and saves them to the output directory for review. No
// render job is created.
func (p *Pipeline) GenerateAudio(ctx context.Context, scriptPath string, opts Options) (*AudioResult, error) {
	start := p.now()
	opts.phase(PhaseAudioGenerating)

	// 1. Read the script
	opts.step(1, audioSteps, "read script")
	sc, err := script.Read(scriptPath)
	if err != nil {
		return nil, err
	}
	if sc.Text == "" {
		return nil, errors.Validation("script file is empty").
			WithOp("pipeline.audio").
			WithField("script", scriptPath)
	}

	log := p.log.FromContext(ctx).With("script", sc.Name)
	log.Info("script loaded", "length", sc.Length, "format", filepath.Ext(sc.Name))

	// 2. Synthesize both takes
	opts.step(2, audioSteps, "generate audio options")
	tmpBase := filepath.Join(p.deps.Paths.TempDir, "audio", sc.Stem)
	if err := os.MkdirAll(filepath.Dir(tmpBase), 0o755); err != nil {
		return nil, errors.Wrap(err, "pipeline.audio", "create temp directory")
	}
	dual, err := p.deps.Speech.SynthesizeDual(ctx, sc.Text, tmpBase)
	if err != nil {
		return nil, err
	}

	// 3. Publish the takes for review
	opts.step(3, audioSteps, "save audio options")
	if err := os.MkdirAll(p.deps.Paths.OutputDir, 0o755); err != nil {
		return nil, errors.Wrap(err, "pipeline.audio", "create output directory")
	}

	takes := []struct {
		variant artifact.Variant
		out     speech.Output
	}{
		{artifact.OptionA, dual.Stable},
		{artifact.OptionB, dual.Expressive},
	}
	saved := make([]string, 0, len(takes))
	for _, take := range takes {
		dst := artifact.AudioPath(p.deps.Paths.OutputDir, sc.Stem, take.variant)
		if err := copyFile(take.out.Path, dst); err != nil {
			return nil, errors.Wrapf(err, "pipeline.audio", "save %s", take.variant)
		}
		meta := artifact.Meta{
			ScriptName:   sc.Name,
			BaseName:     sc.Stem,
			Variant:      take.variant,
			ScriptLength: sc.Length,
			Model:        take.out.Model,
			Voice:        take.out.Settings,
			CreatedAt:    p.now().UTC(),
		}
		if err := artifact.WriteMeta(dst, meta); err != nil {
			log.Warn("could not write sidecar", "audio", dst, "error", err.Error())
		}
		saved = append(saved, dst)
	}

	// 4. Ready for review
	opts.step(4, audioSteps, "audio ready for review")
	opts.phase(PhaseAudioReady)

	res := &AudioResult{
		ScriptName:      sc.Name,
		ScriptStem:      sc.Stem,
		ScriptLength:    sc.Length,
		StableAudio:     saved[0],
		ExpressiveAudio: saved[1],
		Elapsed:         p.now().Sub(start),
	}
	log.Info("audio generation complete",
		"stable", res.StableAudio,
		"expressive", res.ExpressiveAudio,
		"elapsed", res.Elapsed.String(),
	)
	return res, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
