package attachments

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"github.com/platinummonkey/helpdesk/pkg/apperr"
)

// MaxSize is the largest accepted decoded file size.
const MaxSize = 10 << 20

// TooLargeMessage is returned for files over MaxSize.
const TooLargeMessage = "File size must be less than 10MB"

// Upload is an inline file as sent by clients.
type Upload struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Data string `json:"data"`
}

// Empty reports whether no file was attached.
func (u *Upload) Empty() bool {
	return u == nil || strings.TrimSpace(u.Data) == ""
}

// Decode validates the upload and returns the file bytes. A data URL
// prefix ("data:<type>;base64,") is accepted and its type is used when Type
// is blank.
func (u *Upload) Decode() ([]byte, error) {
	if u.Empty() {
		return nil, apperr.Validation("file data is required")
	}
	if strings.TrimSpace(u.Name) == "" {
		return nil, apperr.Validation("file name is required")
	}

	data := strings.TrimSpace(u.Data)
	if strings.HasPrefix(data, "data:") {
		comma := strings.Index(data, ",")
		if comma < 0 {
			return nil, apperr.Validation("file data is not valid base64")
		}
		if u.Type == "" {
			u.Type = strings.TrimSuffix(strings.TrimPrefix(data[:comma], "data:"), ";base64")
		}
		data = data[comma+1:]
	}

	if base64.StdEncoding.DecodedLen(len(data)) > MaxSize+2 {
		return nil, apperr.Validation(TooLargeMessage)
	}
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, apperr.Validation("file data is not valid base64")
	}
	if len(raw) > MaxSize {
		return nil, apperr.Validation(TooLargeMessage)
	}
	if u.Type == "" {
		u.Type = "application/octet-stream"
	}
	return raw, nil
}

// Encode reads a file and returns it as an Upload. Files over MaxSize are
// rejected before encoding.
func Encode(name, contentType string, r io.Reader) (*Upload, error) {
	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(r, MaxSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	if n > MaxSize {
		return nil, apperr.Validation(TooLargeMessage)
	}
	return &Upload{
		Name: name,
		Type: contentType,
		Data: base64.StdEncoding.EncodeToString(buf.Bytes()),
	}, nil
}
