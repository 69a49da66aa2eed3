package blob

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrNotConfigured is returned when blob-store credentials are missing. It is
// raised before any database write is attempted.
var ErrNotConfigured = errors.New("blob store configuration is missing")

// Uploader stores a binary payload and returns a durable public URL.
type Uploader interface {
	Upload(ctx context.Context, data []byte, name string) (string, error)
}

// CloudinaryUploader posts payloads to Cloudinary's unsigned upload endpoint.
type CloudinaryUploader struct {
	CloudName    string
	UploadPreset string
	BaseURL      string // overridable for tests
	Client       *http.Client
}

func NewCloudinaryUploader(cloudName, uploadPreset string) *CloudinaryUploader {
	return &CloudinaryUploader{
		CloudName:    cloudName,
		UploadPreset: uploadPreset,
		BaseURL:      "https://api.cloudinary.com/v1_1",
		Client:       &http.Client{Timeout: 30 * time.Second},
	}
}

type uploadResponse struct {
	SecureURL string `json:"secure_url"`
}

// Upload sends one payload and returns its public URL. A failure aborts the
// caller's whole operation; nothing is retried here.
func (u *CloudinaryUploader) Upload(ctx context.Context, data []byte, name string) (string, error) {
	if u.CloudName == "" || u.UploadPreset == "" {
		return "", ErrNotConfigured
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", name)
	if err != nil {
		return "", fmt.Errorf("failed to build upload form: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("failed to write upload payload: %v", err)
	}
	if err := writer.WriteField("upload_preset", u.UploadPreset); err != nil {
		return "", fmt.Errorf("failed to write upload preset: %v", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize upload form: %v", err)
	}

	url := fmt.Sprintf("%s/%s/image/upload", u.BaseURL, u.CloudName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return "", fmt.Errorf("failed to build upload request: %v", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := u.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("image upload failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		logrus.WithField("status", resp.StatusCode).Warn("Blob store rejected upload")
		return "", fmt.Errorf("image upload failed with status %d: %s", resp.StatusCode, respBody)
	}

	var parsed uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode upload response: %v", err)
	}
	if parsed.SecureURL == "" {
		return "", fmt.Errorf("upload response did not contain a URL")
	}

	return parsed.SecureURL, nil
}
