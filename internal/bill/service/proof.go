package service

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"
	billdomain "github.com/smallbiznis/sekarnet/internal/bill/domain"
)

const octetStream = "application/octet-stream"

var qrisAllowedTypes = map[string]struct{}{
	"image/jpeg":      {},
	"image/jpg":       {},
	"image/png":       {},
	"application/pdf": {},
}

type checkedProof struct {
	body        io.Reader
	contentType string
	ext         string
	size        int64
}

// checkQRISProof buffers at most maxBytes+1 bytes and matches both the declared
// and the sniffed content type against the allow-list.
func checkQRISProof(upload billdomain.Upload, maxBytes int64) (checkedProof, error) {
	if upload.Content == nil {
		return checkedProof{}, billdomain.ErrEmptyFile
	}

	declared := mediaType(upload.ContentType)
	if declared != "" && declared != octetStream {
		if _, ok := qrisAllowedTypes[declared]; !ok {
			return checkedProof{}, fmt.Errorf("%w: %s", billdomain.ErrUnsupportedFileType, declared)
		}
	}
	if upload.Size > maxBytes {
		return checkedProof{}, billdomain.ErrFileTooLarge
	}

	data, err := io.ReadAll(io.LimitReader(upload.Content, maxBytes+1))
	if err != nil {
		return checkedProof{}, fmt.Errorf("%w: %w", billdomain.ErrInvalidFile, err)
	}
	if int64(len(data)) > maxBytes {
		return checkedProof{}, billdomain.ErrFileTooLarge
	}
	if len(data) == 0 {
		return checkedProof{}, billdomain.ErrEmptyFile
	}

	kind, err := filetype.Match(data)
	if err != nil || kind == filetype.Unknown {
		return checkedProof{}, billdomain.ErrUnsupportedFileType
	}
	if _, ok := qrisAllowedTypes[kind.MIME.Value]; !ok {
		return checkedProof{}, fmt.Errorf("%w: %s", billdomain.ErrUnsupportedFileType, kind.MIME.Value)
	}

	return checkedProof{
		body:        bytes.NewReader(data),
		contentType: kind.MIME.Value,
		ext:         "." + kind.Extension,
		size:        int64(len(data)),
	}, nil
}

func mediaType(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	parsed, _, err := mime.ParseMediaType(raw)
	if err != nil {
		return strings.ToLower(raw)
	}
	return strings.ToLower(parsed)
}

// safeExt keeps a short alphanumeric extension from a client file name.
func safeExt(filename string) string {
	ext := strings.ToLower(filepath.Ext(strings.TrimSpace(filename)))
	if len(ext) < 2 || len(ext) > 8 {
		return ""
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}
