package pipeline

import (
	"context"
	"os"

	"avatarpipe/internal/artifact"
	"avatarpipe/internal/pkg/errors"
	"avatarpipe/internal/publish"
	"avatarpipe/internal/render"
)

const videoSteps = 3

// ContinueWithAudio runs Phase 2 with the take the reviewer kept: it uploads
// the audio, renders the avatar video, downloads it and runs the publication
// steps. Publication failures are recorded in the result, never returned.
func (p *Pipeline) ContinueWithAudio(ctx context.Context, audioPath string, opts Options) (*VideoResult, error) {
	const op = "pipeline.video"

	start := p.now()

	if _, err := os.Stat(audioPath); err != nil {
		return nil, errors.NotFound("audio file", audioPath).WithOp(op)
	}

	meta, fromSidecar := artifact.Describe(audioPath)
	videoName := opts.OutputName
	if videoName == "" {
		videoName = meta.BaseName
	}
	videoPath := artifact.VideoPath(p.deps.Paths.OutputDir, videoName)

	background := opts.Background
	if background == "" {
		background = DefaultBackground
	}

	steps := p.publishSteps(opts)
	total := videoSteps + len(steps)

	log := p.log.FromContext(ctx).With("audio", audioPath)
	log.Info("continuing with audio",
		"variant", string(meta.Variant),
		"base_name", meta.BaseName,
		"from_sidecar", fromSidecar,
		"video", videoPath,
	)

	// 1. Upload audio
	opts.phase(PhaseVideoGenerating)
	opts.step(1, total, "upload audio")
	assetID, err := p.deps.Render.UploadAudio(ctx, audioPath)
	if err != nil {
		return nil, err
	}

	// 2. Create render job
	opts.step(2, total, "generate avatar video")
	job, err := p.deps.Render.CreateJob(ctx, render.JobRequest{
		AudioAssetID: assetID,
		Background:   background,
	})
	if err != nil {
		return nil, err
	}
	log = log.With("job_id", job.ID)
	log.Info("render job created", "asset_id", assetID)

	// 3. Wait and download
	opts.step(3, total, "wait for video and download")
	video, err := p.deps.Poller.WaitAndDownload(ctx, job.ID, videoPath)
	if err != nil {
		return nil, err
	}

	opts.phase(PhaseVideoReady)

	res := &VideoResult{
		VideoPath:       video.Path,
		AudioPath:       audioPath,
		BaseName:        meta.BaseName,
		SelectedVariant: meta.Variant,
		JobID:           job.ID,
		Duration:        p.now().Sub(start),
	}

	if len(steps) > 0 {
		email := opts.Email
		if email == "" {
			email = p.deps.NotifyEmail
		}
		privacy := opts.YouTubePrivacy
		if privacy == "" {
			privacy = p.deps.YouTubePrivacy
		}
		out := &publish.Outcome{
			VideoPath:      video.Path,
			VideoName:      videoName,
			AudioPath:      audioPath,
			BaseName:       meta.BaseName,
			ScriptLength:   meta.ScriptLength,
			Elapsed:        res.Duration,
			Email:          email,
			YouTubeTitle:   opts.YouTubeTitle,
			YouTubePrivacy: privacy,
		}

		n := videoSteps
		res.Publication = publish.Run(ctx, out, steps, p.log, func(name string) {
			n++
			opts.step(n, total, name)
		})
		res.DriveLink = out.DriveLink
		res.SheetLink = out.SheetLink
		res.YouTubeURL = out.YouTubeURL
	}

	log.Info("pipeline complete",
		"video", res.VideoPath,
		"drive_link", res.DriveLink,
		"youtube_url", res.YouTubeURL,
		"failed_steps", len(res.Publication.Failed()),
		"duration", res.Duration.String(),
	)
	return res, nil
}

func (p *Pipeline) publishSteps(opts Options) []publish.Step {
	var steps []publish.Step
	if !opts.SkipCloud {
		steps = append(steps, p.deps.Cloud...)
	}
	if opts.UploadYouTube && p.deps.YouTube != nil {
		steps = append(steps, p.deps.YouTube)
	}
	return steps
}
