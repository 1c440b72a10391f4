// Package render drives the HeyGen avatar render API: audio asset upload,
// render job creation, status queries and result download.
package render

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"avatarpipe/internal/pkg/errors"
	"avatarpipe/internal/pkg/logger"
)

const (
	DefaultBaseURL   = "https://api.heygen.com"
	DefaultUploadURL = "https://upload.heygen.com"
	DefaultWidth     = 1280
	DefaultHeight    = 720

	// uploadOK is the vendor's in-body success code for asset uploads.
	uploadOK     = 100
	maxErrorBody = 2048
)

// Vendor job statuses.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusWaiting    = "waiting"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Client is the render vendor surface the pipeline depends on.
type Client interface {
	UploadAudio(ctx context.Context, path string) (string, error)
	CreateJob(ctx context.Context, req JobRequest) (Job, error)
	Status(ctx context.Context, jobID string) (JobStatus, error)
	Download(ctx context.Context, videoURL, dst string) (string, error)
}

// Config holds credentials, endpoints and output dimensions.
type Config struct {
	APIKey        string
	AvatarID      string
	BaseURL       string
	UploadURL     string
	Width         int
	Height        int
	StatusTimeout time.Duration
}

// JobRequest describes a render. Empty fields take the client defaults.
type JobRequest struct {
	AudioAssetID string
	AvatarID     string
	Background   string
	Width        int
	Height       int
}

// Job is a render job accepted by the vendor.
type Job struct {
	ID           string
	AudioAssetID string
	AvatarRef    string
	Background   string
	Width        int
	Height       int
}

// JobStatus is one status observation.
type JobStatus struct {
	Status   string
	VideoURL string
	Error    string
}

// Video is the downloaded result of a completed job.
type Video struct {
	Path      string
	SourceJob string
}

// HTTPClient talks to the vendor over HTTPS.
type HTTPClient struct {
	cfg    Config
	client *http.Client
	status *http.Client
	log    *logger.Logger
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient creates a render client.
func NewHTTPClient(cfg Config, log *logger.Logger) *HTTPClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.UploadURL == "" {
		cfg.UploadURL = DefaultUploadURL
	}
	if cfg.Width == 0 {
		cfg.Width = DefaultWidth
	}
	if cfg.Height == 0 {
		cfg.Height = DefaultHeight
	}
	if cfg.StatusTimeout == 0 {
		cfg.StatusTimeout = 30 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	cfg.UploadURL = strings.TrimRight(cfg.UploadURL, "/")

	return &HTTPClient{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Minute},
		status: &http.Client{Timeout: cfg.StatusTimeout},
		log:    log.WithComponent("render"),
	}
}

type uploadResponse struct {
	Code int `json:"code"`
	Data struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	} `json:"data"`
	Message string `json:"message"`
}

// UploadAudio uploads an MP3 and returns the vendor asset ID.
func (c *HTTPClient) UploadAudio(ctx context.Context, path string) (string, error) {
	const op = "render.upload"

	if err := c.requireKey(op); err != nil {
		return "", err
	}

	audio, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.NotFound("audio file", path).WithOp(op)
		}
		return "", errors.Wrap(err, op, "read audio")
	}

	c.log.FromContext(ctx).Info("uploading audio", "path", path, "bytes", len(audio))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.UploadURL+"/v1/asset", bytes.NewReader(audio))
	if err != nil {
		return "", errors.Wrap(err, op, "build request")
	}
	req.Header.Set("X-API-KEY", c.cfg.APIKey)
	req.Header.Set("Content-Type", "audio/mpeg")

	status, body, err := c.do(c.client, req)
	if err != nil {
		return "", errors.WrapWithCode(err, errors.CodeNetwork, op, "upload request failed")
	}
	if status != http.StatusOK {
		return "", errors.Vendor(errors.CodeUpload, "heygen", status, string(body)).WithOp(op)
	}

	var res uploadResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return "", errors.WrapWithCode(err, errors.CodeUpload, op, "decode upload response")
	}
	if res.Code != uploadOK || res.Data.ID == "" {
		return "", errors.Vendor(errors.CodeUpload, "heygen", status, string(body)).
			WithOp(op).
			WithField("vendor_code", res.Code)
	}

	c.log.FromContext(ctx).Info("audio uploaded", "asset_id", res.Data.ID)
	return res.Data.ID, nil
}

type generatePayload struct {
	VideoInputs []videoInput `json:"video_inputs"`
	Dimension   dimension    `json:"dimension"`
}

type videoInput struct {
	Character  character  `json:"character"`
	Voice      voice      `json:"voice"`
	Background background `json:"background"`
}

type character struct {
	Type           string `json:"type"`
	TalkingPhotoID string `json:"talking_photo_id"`
}

type voice struct {
	Type         string `json:"type"`
	AudioAssetID string `json:"audio_asset_id"`
}

type background struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type dimension struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type generateResponse struct {
	Error json.RawMessage `json:"error"`
	Data  struct {
		VideoID string `json:"video_id"`
	} `json:"data"`
}

// CreateJob submits a render of the uploaded audio with the configured avatar.
func (c *HTTPClient) CreateJob(ctx context.Context, jr JobRequest) (Job, error) {
	const op = "render.create"

	if err := c.requireKey(op); err != nil {
		return Job{}, err
	}

	job := Job{
		AudioAssetID: jr.AudioAssetID,
		AvatarRef:    firstNonEmpty(jr.AvatarID, c.cfg.AvatarID),
		Background:   firstNonEmpty(jr.Background, "#ffffff"),
		Width:        firstPositive(jr.Width, c.cfg.Width),
		Height:       firstPositive(jr.Height, c.cfg.Height),
	}
	if job.AvatarRef == "" {
		return Job{}, errors.MissingConfig("HEYGEN_AVATAR_ID").WithOp(op)
	}
	if job.AudioAssetID == "" {
		return Job{}, errors.ValidationField("audio_asset_id", "audio asset ID is required").WithOp(op)
	}

	payload := generatePayload{
		VideoInputs: []videoInput{{
			Character:  character{Type: "talking_photo", TalkingPhotoID: job.AvatarRef},
			Voice:      voice{Type: "audio", AudioAssetID: job.AudioAssetID},
			Background: background{Type: "color", Value: job.Background},
		}},
		Dimension: dimension{Width: job.Width, Height: job.Height},
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Job{}, errors.Wrap(err, op, "encode request")
	}

	c.log.FromContext(ctx).Info("creating render job", "avatar", job.AvatarRef, "asset_id", job.AudioAssetID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v2/video/generate", bytes.NewReader(raw))
	if err != nil {
		return Job{}, errors.Wrap(err, op, "build request")
	}
	req.Header.Set("X-Api-Key", c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	status, body, err := c.do(c.client, req)
	if err != nil {
		return Job{}, errors.WrapWithCode(err, errors.CodeNetwork, op, "render request failed")
	}
	if status != http.StatusOK {
		return Job{}, errors.Vendor(errors.CodeRenderRequest, "heygen", status, string(body)).WithOp(op)
	}

	var res generateResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return Job{}, errors.WrapWithCode(err, errors.CodeRenderRequest, op, "decode render response")
	}
	if msg := vendorError(res.Error); msg != "" {
		return Job{}, errors.Newf(errors.CodeRenderRequest, "render request rejected: %s", msg).WithOp(op)
	}
	if res.Data.VideoID == "" {
		return Job{}, errors.Vendor(errors.CodeRenderRequest, "heygen", status, string(body)).
			WithOp(op).
			WithField("reason", "no video_id returned")
	}

	job.ID = res.Data.VideoID
	c.log.FromContext(ctx).Info("render job started", "job_id", job.ID)
	return job, nil
}

type statusResponse struct {
	Data struct {
		Status   string          `json:"status"`
		VideoURL string          `json:"video_url"`
		Error    json.RawMessage `json:"error"`
	} `json:"data"`
}

// Status queries a job once. Transport failures and client timeouts are
// transient (NETWORK_TRANSIENT); a non-200 answer is a vendor rejection.
func (c *HTTPClient) Status(ctx context.Context, jobID string) (JobStatus, error) {
	const op = "render.status"

	if err := c.requireKey(op); err != nil {
		return JobStatus{}, err
	}

	u := c.cfg.BaseURL + "/v1/video_status.get?" + url.Values{"video_id": {jobID}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return JobStatus{}, errors.Wrap(err, op, "build request")
	}
	req.Header.Set("X-Api-Key", c.cfg.APIKey)

	status, body, err := c.do(c.status, req)
	if err != nil {
		return JobStatus{}, errors.WrapWithCode(err, errors.CodeNetwork, op, "status query failed").
			WithField("job_id", jobID)
	}
	if status != http.StatusOK {
		return JobStatus{}, errors.Vendor(errors.CodeVendorRejection, "heygen", status, string(body)).
			WithOp(op).
			WithField("job_id", jobID)
	}

	var res statusResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return JobStatus{}, errors.WrapWithCode(err, errors.CodeVendorRejection, op, "decode status response")
	}
	return JobStatus{
		Status:   res.Data.Status,
		VideoURL: res.Data.VideoURL,
		Error:    vendorError(res.Data.Error),
	}, nil
}

// Download streams the finished video to dst, creating parent directories.
// A partial file never replaces dst.
func (c *HTTPClient) Download(ctx context.Context, videoURL, dst string) (string, error) {
	const op = "render.download"

	c.log.FromContext(ctx).Info("downloading video", "path", dst)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, videoURL, nil)
	if err != nil {
		return "", errors.WrapWithCode(err, errors.CodeDownload, op, "build request")
	}

	res, err := c.client.Do(req)
	if err != nil {
		return "", errors.WrapWithCode(err, errors.CodeDownload, op, "download request failed")
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
		return "", errors.Vendor(errors.CodeDownload, "heygen", res.StatusCode, string(body)).WithOp(op)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", errors.Wrap(err, op, "create output directory")
	}

	part := dst + ".part"
	f, err := os.Create(part)
	if err != nil {
		return "", errors.Wrap(err, op, "create output file")
	}
	n, err := io.Copy(f, res.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(part)
		return "", errors.WrapWithCode(err, errors.CodeDownload, op, "write video")
	}
	if err := os.Rename(part, dst); err != nil {
		os.Remove(part)
		return "", errors.Wrap(err, op, "finalize video")
	}

	c.log.FromContext(ctx).Info("video downloaded", "path", dst, "bytes", n)
	return dst, nil
}

func (c *HTTPClient) requireKey(op string) error {
	if c.cfg.APIKey == "" {
		return errors.MissingConfig("HEYGEN_API_KEY").WithOp(op)
	}
	return nil
}

func (c *HTTPClient) do(client *http.Client, req *http.Request) (int, []byte, error) {
	res, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer res.Body.Close()

	limit := int64(1 << 20)
	if res.StatusCode != http.StatusOK {
		limit = maxErrorBody
	}
	body, err := io.ReadAll(io.LimitReader(res.Body, limit))
	if err != nil {
		return 0, nil, err
	}
	return res.StatusCode, body, nil
}

// vendorError renders the vendor's error field, which may be null, a string
// or an object with a message.
func vendorError(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ""
	}

	var s string
	if err := json.Unmarshal(trimmed, &s); err == nil {
		return s
	}

	var obj struct {
		Code    any    `json:"code"`
		Message string `json:"message"`
		Detail  string `json:"detail"`
	}
	if err := json.Unmarshal(trimmed, &obj); err == nil {
		if obj.Message == "" && obj.Detail == "" {
			if obj.Code == nil {
				return ""
			}
			return fmt.Sprintf("code %v", obj.Code)
		}
		parts := []string{}
		if obj.Message != "" {
			parts = append(parts, obj.Message)
		}
		if obj.Detail != "" {
			parts = append(parts, obj.Detail)
		}
		return strings.Join(parts, ": ")
	}
	return string(trimmed)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}
