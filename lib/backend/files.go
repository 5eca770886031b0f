// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package backend

import (
	"context"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"path/filepath"
	"strings"

	"github.com/bytedance/sonic"
)

// File is the server's record of an uploaded attachment. ID is what a
// message references in file_ids.
type File struct {
	ID          string `json:"id"`
	URL         string `json:"url"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// UploadFile streams content to the server as a multipart form with
// the file in field "file". The content type is guessed from name's
// extension.
func (client *Client) UploadFile(ctx context.Context, name string, content io.Reader) (*File, error) {
	base := filepath.Base(name)
	if base == "." || base == string(filepath.Separator) {
		return nil, fmt.Errorf("backend: upload needs a file name, got %q", name)
	}
	contentType := mime.TypeByExtension(strings.ToLower(filepath.Ext(base)))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	reader, writer := io.Pipe()
	form := multipart.NewWriter(writer)
	go func() {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", mime.FormatMediaType("form-data",
			map[string]string{"name": "file", "filename": base}))
		header.Set("Content-Type", contentType)
		part, err := form.CreatePart(header)
		if err == nil {
			_, err = io.Copy(part, content)
		}
		if err == nil {
			err = form.Close()
		}
		writer.CloseWithError(err)
	}()

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, client.base+endpointFileUpload, reader)
	if err != nil {
		reader.Close()
		return nil, fmt.Errorf("backend: creating request: %w", err)
	}
	request.Header.Set("Content-Type", form.FormDataContentType())

	response, err := client.do(request)
	if err != nil {
		reader.CloseWithError(err)
		return nil, err
	}
	defer response.Body.Close()

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("backend: reading upload response: %w", err)
	}
	var file File
	if err := sonic.Unmarshal(body, &file); err != nil {
		return nil, fmt.Errorf("backend: decoding upload response: %w", err)
	}
	if file.ID == "" {
		return nil, fmt.Errorf("backend: upload response has no file id")
	}
	if file.Filename == "" {
		file.Filename = base
	}
	client.logger.Info("file uploaded", "file_id", file.ID, "filename", file.Filename, "size", file.Size)
	return &file, nil
}
