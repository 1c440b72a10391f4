// Package youtube uploads finished videos to YouTube.
package youtube

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"syscall"
	"time"
	"unicode/utf8"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	ytapi "google.golang.org/api/youtube/v3"

	"avatarpipe/internal/googleauth"
	"avatarpipe/internal/pkg/errors"
	"avatarpipe/internal/pkg/logger"
)

const (
	vendor = "youtube"

	MaxTitle       = 100
	MaxDescription = 5000

	DefaultCategory   = "22"
	DefaultMaxRetries = 10

	chunkSize = 1 << 20
)

// Privacy values accepted by the API.
const (
	Private  = "private"
	Unlisted = "unlisted"
	Public   = "public"
)

var retriableStatus = map[int]bool{
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// ValidPrivacy reports whether p is an accepted privacy status.
func ValidPrivacy(p string) bool {
	switch p {
	case Private, Unlisted, Public:
		return true
	}
	return false
}

// DefaultTitle is the title used when none is given.
func DefaultTitle(videoName string) string {
	return "Avatar Video: " + videoName
}

// DefaultDescription names the script the video was made from.
func DefaultDescription(scriptName string) string {
	return "Generated with the automated avatar video pipeline\n\nScript: " + scriptName
}

// Video is an upload request.
type Video struct {
	Path        string
	Title       string
	Description string
	Tags        []string
	CategoryID  string
	Privacy     string
}

// Result identifies the uploaded video.
type Result struct {
	VideoID string
	URL     string
	Title   string
	Privacy string
}

// Uploader performs uploads with bounded retries.
type Uploader struct {
	srv        *ytapi.Service
	maxRetries int
	sleep      func(ctx context.Context, d time.Duration) error
	log        *logger.Logger
}

// Option customises an Uploader.
type Option func(*Uploader)

// WithSleep replaces the backoff sleep.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(u *Uploader) { u.sleep = fn }
}

func NewUploader(srv *ytapi.Service, maxRetries int, log *logger.Logger, opts ...Option) *Uploader {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	u := &Uploader{
		srv:        srv,
		maxRetries: maxRetries,
		sleep:      sleepCtx,
		log:        log.WithComponent("youtube"),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Upload sends v to YouTube. Server errors 500, 502, 503 and 504 and
// transport failures are retried with a 2^n second backoff; anything else
// fails immediately.
func (u *Uploader) Upload(ctx context.Context, v Video) (Result, error) {
	const op = "youtube.upload"

	log := u.log.FromContext(ctx)

	if _, err := os.Stat(v.Path); err != nil {
		return Result{}, errors.NotFound("video", v.Path).WithOp(op)
	}
	if v.Privacy == "" {
		v.Privacy = Private
	}
	if !ValidPrivacy(v.Privacy) {
		return Result{}, errors.ValidationField("privacy",
			fmt.Sprintf("invalid privacy status %q: use private, unlisted or public", v.Privacy)).WithOp(op)
	}
	if v.CategoryID == "" {
		v.CategoryID = DefaultCategory
	}
	if v.Title == "" {
		v.Title = DefaultTitle(filepath.Base(v.Path))
	}

	var cut bool
	if v.Title, cut = truncate(v.Title, MaxTitle); cut {
		log.Warn("title truncated", "max", MaxTitle)
	}
	if v.Description, cut = truncate(v.Description, MaxDescription); cut {
		log.Warn("description truncated", "max", MaxDescription)
	}

	log.Info("uploading video", "path", v.Path, "title", v.Title, "privacy", v.Privacy)

	retries := 0
	for {
		id, err := u.insert(ctx, v)
		if err == nil {
			res := Result{
				VideoID: id,
				URL:     "https://www.youtube.com/watch?v=" + id,
				Title:   v.Title,
				Privacy: v.Privacy,
			}
			log.Info("upload complete", "video_id", id, "url", res.URL)
			return res, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, errors.Wrap(ctxErr, op, "upload canceled")
		}
		if !retriable(err) {
			return Result{}, googleauth.APIError(err, vendor, op, "upload failed")
		}

		retries++
		if retries > u.maxRetries {
			return Result{}, errors.Wrapf(googleauth.APIError(err, vendor, op, "upload failed"), op,
				"maximum retries exceeded (%d)", u.maxRetries)
		}
		wait := time.Duration(1<<retries) * time.Second
		log.Warn("retriable upload error",
			"attempt", retries,
			"max", u.maxRetries,
			"retry_in", wait.String(),
			"error", err.Error(),
		)
		if err := u.sleep(ctx, wait); err != nil {
			return Result{}, errors.Wrap(err, op, "upload canceled")
		}
	}
}

func (u *Uploader) insert(ctx context.Context, v Video) (string, error) {
	f, err := os.Open(v.Path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	video := &ytapi.Video{
		Snippet: &ytapi.VideoSnippet{
			Title:       v.Title,
			Description: v.Description,
			Tags:        v.Tags,
			CategoryId:  v.CategoryID,
		},
		Status: &ytapi.VideoStatus{
			PrivacyStatus:           v.Privacy,
			SelfDeclaredMadeForKids: false,
			ForceSendFields:         []string{"SelfDeclaredMadeForKids"},
		},
	}

	created, err := u.srv.Videos.Insert([]string{"snippet", "status"}, video).
		Media(f, googleapi.ChunkSize(chunkSize), googleapi.ContentType("video/mp4")).
		Context(ctx).
		Do()
	if err != nil {
		return "", err
	}
	return created.Id, nil
}

// retriableErrnos are the connection failures worth another attempt.
var retriableErrnos = []error{
	syscall.ECONNRESET,
	syscall.ECONNREFUSED,
	syscall.EPIPE,
	io.ErrUnexpectedEOF,
	io.EOF,
}

// retriable reports whether an insert failure is a server-side 5xx or a
// low-level transport error. Token refresh failures, decode errors and
// every other client-side error are fatal.
func retriable(err error) bool {
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		return false
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return retriableStatus[gerr.Code]
	}
	for _, target := range retriableErrnos {
		if errors.Is(err, target) {
			return true
		}
	}

	// *url.Error satisfies net.Error whatever it wraps; judge the cause.
	var uerr *url.Error
	if errors.As(err, &uerr) {
		err = uerr.Err
	}
	var nerr net.Error
	return errors.As(err, &nerr)
}

// truncate shortens s to at most n characters.
func truncate(s string, n int) (string, bool) {
	if utf8.RuneCountInString(s) <= n {
		return s, false
	}
	return string([]rune(s)[:n]), true
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
