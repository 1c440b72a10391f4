// Package googleauth builds the OAuth client shared by the Drive, Sheets,
// Gmail and YouTube adapters.
package googleauth

import (
	"context"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	drive "google.golang.org/api/drive/v3"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	sheets "google.golang.org/api/sheets/v4"
	youtube "google.golang.org/api/youtube/v3"

	"avatarpipe/internal/config"
	"avatarpipe/internal/pkg/errors"
)

// Scopes is everything the publication steps need from one consent.
var Scopes = []string{
	drive.DriveFileScope,
	sheets.SpreadsheetsScope,
	gmail.GmailSendScope,
	youtube.YoutubeUploadScope,
}

// OAuthConfig returns the installed-app OAuth config for cfg.
func OAuthConfig(cfg config.Google, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       Scopes,
		RedirectURL:  redirectURL,
	}
}

// HTTPClient returns a client that refreshes access tokens from the
// configured refresh token.
func HTTPClient(ctx context.Context, cfg config.Google) (*http.Client, error) {
	const op = "googleauth.client"

	switch {
	case cfg.ClientID == "":
		return nil, errors.MissingConfig("GOOGLE_CLIENT_ID").WithOp(op)
	case cfg.ClientSecret == "":
		return nil, errors.MissingConfig("GOOGLE_CLIENT_SECRET").WithOp(op)
	case cfg.RefreshToken == "":
		return nil, errors.MissingConfig("GOOGLE_REFRESH_TOKEN").WithOp(op)
	}

	tok := &oauth2.Token{RefreshToken: cfg.RefreshToken}
	return OAuthConfig(cfg, "").Client(ctx, tok), nil
}

// APIError converts a Google API failure into a coded error. Responses with a
// status are vendor rejections; anything else is a transport failure.
func APIError(err error, vendor, op, message string) error {
	if err == nil {
		return nil
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		rejected := errors.Vendor(errors.CodeVendorRejection, vendor, gerr.Code, gerr.Message)
		rejected.Err = err
		return errors.Wrap(rejected, op, message)
	}
	return errors.WrapWithCode(err, errors.CodeNetwork, op, message)
}

// StatusCode returns the HTTP status of a Google API error, or 0.
func StatusCode(err error) int {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code
	}
	return 0
}
