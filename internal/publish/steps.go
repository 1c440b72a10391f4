package publish

import (
	"context"
	"os"
	"path/filepath"

	"avatarpipe/internal/adapters/gmail"
	"avatarpipe/internal/adapters/sheets"
	"avatarpipe/internal/adapters/youtube"
	"avatarpipe/internal/pkg/errors"
	"avatarpipe/internal/ports"
)

// Step names.
const (
	StepStorage = "storage"
	StepSheet   = "sheet"
	StepEmail   = "email"
	StepYouTube = "youtube"
)

// StorageStep archives the video and records a shareable link.
type StorageStep struct {
	Provider ports.StorageProvider
}

func (StorageStep) Name() string { return StepStorage }

func (s StorageStep) Run(ctx context.Context, out *Outcome) error {
	const op = "publish.storage"

	f, err := os.Open(out.VideoPath)
	if err != nil {
		return errors.NotFound("video", out.VideoPath).WithOp(op)
	}
	defer f.Close()

	var size int64
	if st, err := f.Stat(); err == nil {
		size = st.Size()
	}

	put, err := s.Provider.PutObject(ctx, ports.PutObjectInput{
		ObjectKey:   filepath.Base(out.VideoPath),
		ContentType: "video/mp4",
		Reader:      f,
		Size:        size,
	})
	if err != nil {
		return errors.Wrap(err, op, "archive video")
	}

	link, err := s.Provider.Share(ctx, put.ObjectKey)
	if err != nil {
		return errors.Wrap(err, op, "share video")
	}
	out.DriveLink = link
	return nil
}

// Appender is the part of the sheet log the step uses.
type Appender interface {
	Append(ctx context.Context, e sheets.Entry) (sheets.Result, error)
}

// SheetStep appends a row to the tracking sheet.
type SheetStep struct {
	Log Appender
}

func (SheetStep) Name() string { return StepSheet }

func (s SheetStep) Run(ctx context.Context, out *Outcome) error {
	res, err := s.Log.Append(ctx, sheets.Entry{
		ScriptName:   out.BaseName,
		ScriptLength: out.ScriptLength,
		AudioFile:    filepath.Base(out.AudioPath),
		VideoFile:    filepath.Base(out.VideoPath),
		DriveLink:    out.DriveLink,
		Status:       "Completed",
		Duration:     out.Elapsed,
	})
	if err != nil {
		return errors.Wrap(err, "publish.sheet", "log to sheet")
	}
	out.SheetLink = res.SheetLink
	out.SheetRow = res.Row
	return nil
}

// Notifier is the part of the mail adapter the step uses.
type Notifier interface {
	Send(ctx context.Context, n gmail.Notification) (string, error)
}

// EmailStep sends the video-ready notification.
type EmailStep struct {
	Sender Notifier
}

func (EmailStep) Name() string { return StepEmail }

func (s EmailStep) Run(ctx context.Context, out *Outcome) error {
	_, err := s.Sender.Send(ctx, gmail.Notification{
		To:         out.Email,
		VideoName:  out.VideoName,
		VideoLink:  out.DriveLink,
		ScriptName: out.BaseName,
		Duration:   out.Elapsed,
		SheetLink:  out.SheetLink,
	})
	if err != nil {
		return errors.Wrap(err, "publish.email", "send notification")
	}
	return nil
}

// VideoUploader is the part of the YouTube adapter the step uses.
type VideoUploader interface {
	Upload(ctx context.Context, v youtube.Video) (youtube.Result, error)
}

// YouTubeStep uploads the video to YouTube.
type YouTubeStep struct {
	Uploader   VideoUploader
	CategoryID string
}

func (YouTubeStep) Name() string { return StepYouTube }

func (s YouTubeStep) Run(ctx context.Context, out *Outcome) error {
	title := out.YouTubeTitle
	if title == "" {
		title = youtube.DefaultTitle(out.VideoName)
	}
	res, err := s.Uploader.Upload(ctx, youtube.Video{
		Path:        out.VideoPath,
		Title:       title,
		Description: youtube.DefaultDescription(out.BaseName),
		CategoryID:  s.CategoryID,
		Privacy:     out.YouTubePrivacy,
	})
	if err != nil {
		return errors.Wrap(err, "publish.youtube", "upload to youtube")
	}
	out.YouTubeURL = res.URL
	return nil
}

// Builder constructs a step on demand.
type Builder func(ctx context.Context) (Step, error)

// Lazy defers building a step until it runs, so a step whose client cannot be
// set up (missing credentials) fails on its own instead of failing the run.
func Lazy(name string, build Builder) Step {
	return lazyStep{name: name, build: build}
}

type lazyStep struct {
	name  string
	build Builder
}

func (l lazyStep) Name() string { return l.name }

func (l lazyStep) Run(ctx context.Context, out *Outcome) error {
	step, err := l.build(ctx)
	if err != nil {
		return errors.Wrapf(err, "publish."+l.name, "set up %s step", l.name)
	}
	return step.Run(ctx, out)
}
