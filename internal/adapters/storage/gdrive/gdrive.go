package gdrive

import (
	"context"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"

	"avatarpipe/internal/googleauth"
	"avatarpipe/internal/pkg/errors"
	"avatarpipe/internal/ports"
)

const vendor = "google-drive"

// Client implements ports.StorageProvider backed by Google Drive.
// The returned ObjectKey is the Drive file ID; the input ObjectKey becomes
// the file name.
type Client struct {
	srv      *drive.Service
	folderID string
}

func NewClient(srv *drive.Service, folderID string) *Client {
	return &Client{srv: srv, folderID: folderID}
}

func (c *Client) Provider() string { return "gdrive" }

func (c *Client) PutObject(ctx context.Context, in ports.PutObjectInput) (ports.PutObjectOutput, error) {
	const op = "gdrive.put"

	if in.ObjectKey == "" {
		return ports.PutObjectOutput{}, errors.ValidationField("object_key", "object_key is required").WithOp(op)
	}

	file := &drive.File{Name: in.ObjectKey}
	if c.folderID != "" {
		file.Parents = []string{c.folderID}
	}

	call := c.srv.Files.Create(file).Fields("id", "size")
	if in.ContentType != "" {
		call = call.Media(in.Reader, googleapi.ContentType(in.ContentType))
	} else {
		call = call.Media(in.Reader)
	}

	created, err := call.Context(ctx).Do()
	if err != nil {
		return ports.PutObjectOutput{}, googleauth.APIError(err, vendor, op, "drive upload failed")
	}

	size := in.Size
	if created.Size > 0 {
		size = created.Size
	}
	return ports.PutObjectOutput{ObjectKey: created.Id, Size: size}, nil
}

// Share grants anyone-with-link read access and returns the web view link.
func (c *Client) Share(ctx context.Context, objectKey string) (string, error) {
	const op = "gdrive.share"

	perm := &drive.Permission{Type: "anyone", Role: "reader"}
	if _, err := c.srv.Permissions.Create(objectKey, perm).
		SupportsAllDrives(true).
		Context(ctx).
		Do(); err != nil {
		return "", googleauth.APIError(err, vendor, op, "set sharing permission")
	}

	f, err := c.srv.Files.Get(objectKey).
		Fields("webViewLink").
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return "", googleauth.APIError(err, vendor, op, "read share link")
	}
	return f.WebViewLink, nil
}

func (c *Client) Check(ctx context.Context) error {
	if _, err := c.srv.About.Get().Fields("user").Context(ctx).Do(); err != nil {
		return googleauth.APIError(err, vendor, "gdrive.check", "drive unavailable")
	}
	return nil
}
