// Package mail parses what SES receives and builds what SES sends. The
// pipeline only ever needs three things out of a received message: who
// sent it, its calendar part and (for bulk senders) its CSV attachment.
package mail

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"strings"
)

// Inbound is the pipeline's view of one received message.
type Inbound struct {
	From       string
	FromName   string
	ReturnPath string
	Calendar   []byte
	CSV        []byte
}

// ParseInbound walks the MIME tree of a raw message. The first
// text/calendar part and the first CSV attachment win; everything else is
// ignored.
func ParseInbound(raw []byte) (*Inbound, error) {
	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("read message: %w", err)
	}

	in := &Inbound{}
	if addr, err := mail.ParseAddress(msg.Header.Get("From")); err == nil {
		in.From = strings.ToLower(addr.Address)
		in.FromName = addr.Name
	}
	if rp := msg.Header.Get("Return-Path"); rp != "" {
		if addr, err := mail.ParseAddress(rp); err == nil {
			in.ReturnPath = strings.ToLower(addr.Address)
		}
	}
	if in.ReturnPath == "" {
		in.ReturnPath = in.From
	}

	err = in.walk(
		msg.Header.Get("Content-Type"),
		msg.Header.Get("Content-Transfer-Encoding"),
		"",
		msg.Body,
	)
	if err != nil {
		return nil, err
	}
	return in, nil
}

func (in *Inbound) walk(contentType, encoding, filename string, body io.Reader) error {
	if contentType == "" {
		contentType = "text/plain"
	}
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		// A part we cannot classify is a part we do not need.
		return nil
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		boundary := params["boundary"]
		if boundary == "" {
			return fmt.Errorf("multipart %s without boundary", mediaType)
		}
		mr := multipart.NewReader(body, boundary)
		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return fmt.Errorf("read part: %w", err)
			}
			err = in.walk(
				part.Header.Get("Content-Type"),
				part.Header.Get("Content-Transfer-Encoding"),
				part.FileName(),
				part,
			)
			if err != nil {
				return err
			}
		}
	}

	switch {
	case mediaType == "text/calendar" || mediaType == "application/ics":
		if in.Calendar != nil {
			return nil
		}
		data, err := decodePart(body, encoding)
		if err != nil {
			return fmt.Errorf("decode calendar part: %w", err)
		}
		in.Calendar = data
	case isCSV(mediaType, filename):
		if in.CSV != nil {
			return nil
		}
		data, err := decodePart(body, encoding)
		if err != nil {
			return fmt.Errorf("decode csv part: %w", err)
		}
		in.CSV = data
	}
	return nil
}

// isCSV matches both proper text/csv parts and the text/plain or
// octet-stream attachments mail clients actually produce.
func isCSV(mediaType, filename string) bool {
	if mediaType == "text/csv" {
		return true
	}
	return strings.HasSuffix(strings.ToLower(filename), ".csv") &&
		(mediaType == "text/plain" || mediaType == "application/octet-stream" || mediaType == "application/vnd.ms-excel")
}

func decodePart(r io.Reader, encoding string) ([]byte, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "base64":
		return io.ReadAll(base64.NewDecoder(base64.StdEncoding, r))
	case "quoted-printable":
		return io.ReadAll(quotedprintable.NewReader(r))
	default:
		return io.ReadAll(r)
	}
}
