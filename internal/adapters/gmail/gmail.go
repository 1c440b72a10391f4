// Package gmail sends video-ready notifications through the Gmail API.
package gmail

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	htmltemplate "html/template"
	"mime"
	"mime/multipart"
	"net/textproto"
	texttemplate "text/template"
	"time"

	gmailapi "google.golang.org/api/gmail/v1"

	"avatarpipe/internal/googleauth"
	"avatarpipe/internal/pkg/errors"
	"avatarpipe/internal/pkg/logger"
)

const vendor = "gmail"

// Notification describes a finished video.
type Notification struct {
	To         string
	VideoName  string
	VideoLink  string
	ScriptName string
	Duration   time.Duration
	SheetLink  string
	Time       time.Time
}

// Subject is the notification subject line.
func (n Notification) Subject() string {
	return "Your video is ready: " + n.VideoName
}

type view struct {
	Notification
	Script     string
	Processing string
	Generated  string
}

func (n Notification) view() view {
	ts := n.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	v := view{
		Notification: n,
		Script:       "N/A",
		Processing:   "N/A",
		Generated:    ts.Format("2006-01-02 15:04:05"),
	}
	if n.ScriptName != "" {
		v.Script = n.ScriptName
	}
	if secs := int(n.Duration.Seconds()); secs > 0 {
		v.Processing = fmt.Sprintf("%d seconds", secs)
	}
	return v
}

var textBody = texttemplate.Must(texttemplate.New("text").Parse(`Hi,

Your avatar video "{{.VideoName}}" has been generated successfully!

Video link: {{if .VideoLink}}{{.VideoLink}}{{else}}not available{{end}}

Details:
- Script: {{.Script}}
- Audio: Saved to output folder
- Processing time: {{.Processing}}
{{if .SheetLink}}
View tracking sheet: {{.SheetLink}}
{{end}}
Generated on: {{.Generated}}

---
Automated Avatar Video Pipeline
`))

var htmlBody = htmltemplate.Must(htmltemplate.New("html").Parse(`<html>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
  <h2 style="color: #2c5282;">Your Video is Ready!</h2>
  <p>Your avatar video <strong>"{{.VideoName}}"</strong> has been generated successfully!</p>
{{- if .VideoLink}}
  <p style="margin: 20px 0;">
    <a href="{{.VideoLink}}" style="background-color: #4299e1; color: white; padding: 12px 24px; text-decoration: none; border-radius: 5px; display: inline-block;">Watch Video</a>
  </p>
{{- end}}
  <h3 style="color: #2c5282;">Details</h3>
  <ul>
    <li><strong>Script:</strong> {{.Script}}</li>
    <li><strong>Audio:</strong> Saved to output folder</li>
    <li><strong>Processing time:</strong> {{.Processing}}</li>
  </ul>
{{- if .SheetLink}}
  <p><a href="{{.SheetLink}}">View Tracking Sheet</a></p>
{{- end}}
  <hr style="border: none; border-top: 1px solid #e2e8f0; margin: 20px 0;">
  <p style="color: #718096; font-size: 12px;">Generated on: {{.Generated}}<br>Automated Avatar Video Pipeline</p>
</body>
</html>
`))

// Message renders n as an RFC 5322 multipart/alternative message.
func Message(n Notification) ([]byte, error) {
	v := n.view()

	var text, html bytes.Buffer
	if err := textBody.Execute(&text, v); err != nil {
		return nil, err
	}
	if err := htmlBody.Execute(&html, v); err != nil {
		return nil, err
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, part := range []struct {
		contentType string
		content     []byte
	}{
		{"text/plain; charset=utf-8", text.Bytes()},
		{"text/html; charset=utf-8", html.Bytes()},
	} {
		w, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {part.contentType},
			"Content-Transfer-Encoding": {"8bit"},
		})
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(part.content); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "To: %s\r\n", n.To)
	fmt.Fprintf(&msg, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", n.Subject()))
	msg.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", mw.Boundary())
	msg.Write(body.Bytes())
	return msg.Bytes(), nil
}

// Sender delivers notifications.
type Sender struct {
	srv *gmailapi.Service
	log *logger.Logger
}

func NewSender(srv *gmailapi.Service, log *logger.Logger) *Sender {
	return &Sender{srv: srv, log: log.WithComponent("gmail")}
}

// Send delivers n and returns the Gmail message ID.
func (s *Sender) Send(ctx context.Context, n Notification) (string, error) {
	const op = "gmail.send"

	if n.To == "" {
		return "", errors.MissingConfig("NOTIFICATION_EMAIL").WithOp(op)
	}

	raw, err := Message(n)
	if err != nil {
		return "", errors.Wrap(err, op, "render notification")
	}

	sent, err := s.srv.Users.Messages.Send("me", &gmailapi.Message{
		Raw: base64.URLEncoding.EncodeToString(raw),
	}).Context(ctx).Do()
	if err != nil {
		return "", googleauth.APIError(err, vendor, op, "send notification")
	}

	s.log.FromContext(ctx).Info("notification sent", "to", n.To, "message_id", sent.Id)
	return sent.Id, nil
}
