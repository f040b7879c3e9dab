package mail

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	netmail "net/mail"
	"net/textproto"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/google/uuid"
)

// SESAPI is the slice of the SESv2 API the sender uses.
type SESAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

var _ SESAPI = (*sesv2.Client)(nil)

// Sender delivers pipeline mail through SES.
type Sender struct {
	ses SESAPI
}

func NewSender(ses SESAPI) *Sender {
	return &Sender{ses: ses}
}

func NewSenderClient(ctx context.Context) (*Sender, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewSender(sesv2.NewFromConfig(cfg)), nil
}

// Invite is an outbound invitation or cancellation. Calendar carries the
// rendered iTIP payload and Method must match its METHOD line so mail
// clients surface the RSVP buttons.
type Invite struct {
	From     string
	To       string
	Subject  string
	TextBody string
	HTMLBody string
	Calendar []byte
	Method   string
}

// SendInvite sends a raw multipart message. The calendar rides twice, as
// a text/calendar alternative for clients that render invites inline and
// as an application/ics attachment for the ones that do not.
func (s *Sender) SendInvite(ctx context.Context, inv Invite) error {
	raw, err := buildInviteMIME(inv)
	if err != nil {
		return fmt.Errorf("build invite mime: %w", err)
	}
	_, err = s.ses.SendEmail(ctx, &sesv2.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{inv.To},
		},
		Content: &types.EmailContent{
			Raw: &types.RawMessage{Data: raw},
		},
	})
	if err != nil {
		return fmt.Errorf("send invite to %v: %w", inv.To, err)
	}
	return nil
}

// Send delivers a plain notification. Empty bodies are left out of the
// message so text-only notices stay text-only.
func (s *Sender) Send(ctx context.Context, from, to, subject, htmlBody, textBody string) error {
	body := &types.Body{}
	if htmlBody != "" {
		body.Html = &types.Content{Data: aws.String(htmlBody), Charset: aws.String("UTF-8")}
	}
	if textBody != "" {
		body.Text = &types.Content{Data: aws.String(textBody), Charset: aws.String("UTF-8")}
	}
	_, err := s.ses.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(from),
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(subject), Charset: aws.String("UTF-8")},
				Body:    body,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("send mail to %v: %w", to, err)
	}
	return nil
}

// FormatAddress renders a display-name address header value, quoting and
// encoding the name when it needs it.
func FormatAddress(name, email string) string {
	return (&netmail.Address{Name: name, Address: email}).String()
}

func buildInviteMIME(inv Invite) ([]byte, error) {
	var buf bytes.Buffer
	mixed := multipart.NewWriter(&buf)

	fmt.Fprintf(&buf, "From: %s\r\n", inv.From)
	fmt.Fprintf(&buf, "To: %s\r\n", inv.To)
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("UTF-8", inv.Subject))
	fmt.Fprintf(&buf, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%q\r\n", mixed.Boundary())
	fmt.Fprintf(&buf, "\r\n")

	altBoundary := "alt_" + uuid.NewString()
	altPart, err := mixed.CreatePart(textproto.MIMEHeader{
		"Content-Type": {fmt.Sprintf("multipart/alternative; boundary=%q", altBoundary)},
	})
	if err != nil {
		return nil, err
	}
	alt := multipart.NewWriter(altPart)
	if err := alt.SetBoundary(altBoundary); err != nil {
		return nil, err
	}

	if err := writeTextPart(alt, "text/plain; charset=UTF-8", inv.TextBody); err != nil {
		return nil, err
	}
	if err := writeTextPart(alt, "text/html; charset=UTF-8", inv.HTMLBody); err != nil {
		return nil, err
	}

	calendar, err := alt.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {fmt.Sprintf("text/calendar; method=%s; charset=UTF-8", inv.Method)},
		"Content-Transfer-Encoding": {"base64"},
	})
	if err != nil {
		return nil, err
	}
	writeBase64(calendar, inv.Calendar)
	if err := alt.Close(); err != nil {
		return nil, err
	}

	attachment, err := mixed.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {`application/ics; name="invite.ics"`},
		"Content-Disposition":       {`attachment; filename="invite.ics"`},
		"Content-Transfer-Encoding": {"base64"},
	})
	if err != nil {
		return nil, err
	}
	writeBase64(attachment, inv.Calendar)
	if err := mixed.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeTextPart(w *multipart.Writer, contentType, body string) error {
	part, err := w.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {contentType},
		"Content-Transfer-Encoding": {"quoted-printable"},
	})
	if err != nil {
		return err
	}
	qp := quotedprintable.NewWriter(part)
	if _, err := qp.Write([]byte(body)); err != nil {
		return err
	}
	return qp.Close()
}

// writeBase64 wraps the encoded payload at 76 characters per RFC 2045.
func writeBase64(w io.Writer, data []byte) {
	encoded := base64.StdEncoding.EncodeToString(data)
	for len(encoded) > 76 {
		io.WriteString(w, encoded[:76])
		io.WriteString(w, "\r\n")
		encoded = encoded[76:]
	}
	io.WriteString(w, encoded)
	io.WriteString(w, "\r\n")
}
