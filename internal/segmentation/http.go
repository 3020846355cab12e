package segmentation

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"sort"
	"strings"
)

const (
	defaultFieldName = "file"
	// error bodies are truncated to this many bytes
	maxErrorBody = 512
)

// HTTPSegmenter posts the image as multipart form data to a rembg compatible
// server (`rembg s`, endpoint /api/remove) and returns the response body
type HTTPSegmenter struct {
	url        string
	fieldName  string
	formFields map[string]string
	client     *http.Client
}

// NewHTTPSegmenter creates a segmenter for the given endpoint. An empty fieldName
// falls back to "file".
func NewHTTPSegmenter(url, fieldName string, formFields map[string]string, client *http.Client) (*HTTPSegmenter, error) {
	if url == "" {
		return nil, errors.New("model url is required")
	}
	if fieldName == "" {
		fieldName = defaultFieldName
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPSegmenter{
		url:        url,
		fieldName:  fieldName,
		formFields: formFields,
		client:     client,
	}, nil
}

func newHTTPSegmenterFromConfig(cfg Config) (Segmenter, error) {
	return NewHTTPSegmenter(cfg.URL, cfg.FieldName, cfg.FormFields, nil)
}

func (s *HTTPSegmenter) Remove(ctx context.Context, png []byte) ([]byte, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile(s.fieldName, "image.png")
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(png); err != nil {
		return nil, fmt.Errorf("write form file: %w", err)
	}

	keys := make([]string, 0, len(s.formFields))
	for k := range s.formFields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := writer.WriteField(k, s.formFields[k]); err != nil {
			return nil, fmt.Errorf("write form field %s: %w", k, err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("model server returned %s: %s", resp.Status, strings.TrimSpace(string(snippet)))
	}

	result, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	slog.Debug("segmentation: model responded",
		"url", s.url,
		"input_size_bytes", len(png),
		"output_size_bytes", len(result))

	return result, nil
}
