package mime

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"strings"
)

// ContentTypeMultipartRelated is the MIME type of SwA messages
const ContentTypeMultipartRelated = "multipart/related"

// ErrNoRoot is returned when no part matches the start parameter
var ErrNoRoot = errors.New("mime: root part not found")

// Part is one body part
type Part struct {
	ContentID   string
	ContentType string
	Data        []byte
}

// Message is a parsed multipart/related body
type Message struct {
	Root        Part
	Attachments []Part
}

// IsMultipart reports whether contentType announces a multipart body.
func IsMultipart(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && strings.HasPrefix(mediaType, "multipart/")
}

// Parse reads a multipart body announced by contentType.
func Parse(r io.Reader, contentType string) (*Message, error) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, fmt.Errorf("mime: parse content type: %w", err)
	}
	if !strings.HasPrefix(mediaType, "multipart/") {
		return nil, fmt.Errorf("mime: not a multipart message: %s", mediaType)
	}
	boundary := params["boundary"]
	if boundary == "" {
		return nil, errors.New("mime: boundary not found in content type")
	}
	start := normalizeContentID(params["start"])

	var parts []Part
	reader := multipart.NewReader(r, boundary)
	for {
		p, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("mime: read part: %w", err)
		}
		data, err := io.ReadAll(p)
		if err != nil {
			return nil, fmt.Errorf("mime: read part data: %w", err)
		}
		parts = append(parts, Part{
			ContentID:   normalizeContentID(p.Header.Get("Content-ID")),
			ContentType: p.Header.Get("Content-Type"),
			Data:        data,
		})
	}
	if len(parts) == 0 {
		return nil, ErrNoRoot
	}

	root := 0
	if start != "" {
		root = -1
		for i, p := range parts {
			if p.ContentID == start {
				root = i
				break
			}
		}
		if root < 0 {
			return nil, fmt.Errorf("%w: start %q", ErrNoRoot, start)
		}
	}

	msg := &Message{Root: parts[root]}
	for i, p := range parts {
		if i != root {
			msg.Attachments = append(msg.Attachments, p)
		}
	}
	return msg, nil
}

// Attachment returns the attachment with the given Content-ID, which may be
// written as a cid: reference or in angle brackets.
func (m *Message) Attachment(contentID string) *Part {
	contentID = normalizeContentID(contentID)
	for i := range m.Attachments {
		if m.Attachments[i].ContentID == contentID {
			return &m.Attachments[i]
		}
	}
	return nil
}

func normalizeContentID(contentID string) string {
	contentID = strings.TrimSpace(contentID)
	contentID = strings.TrimPrefix(contentID, "cid:")
	contentID = strings.TrimPrefix(contentID, "<")
	return strings.TrimSuffix(contentID, ">")
}
