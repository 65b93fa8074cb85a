package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/empathyapp/backend/internal/apperrors"
)

// SpeechClient is an HTTP client for the speech-to-text Python microservice.
// The backend only proxies audio; the model runs over there.
type SpeechClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewSpeechClient creates a new speech client.
func NewSpeechClient(baseURL string) *SpeechClient {
	return &SpeechClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 2 * time.Minute, // transcription of long recordings can take a while
		},
	}
}

// transcribeResponse is the speech service payload for POST /transcribe.
type transcribeResponse struct {
	Text string `json:"text"`
}

// Transcribe forwards the uploaded audio to the speech service and returns the
// transcribed text. Upstream transport failures surface as
// apperrors.ErrProviderUnavailable; raw upstream error bodies stay in logs.
func (c *SpeechClient) Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error) {
	var body bytes.Buffer

	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}

	if _, err := io.Copy(part, audio); err != nil {
		return "", fmt.Errorf("copy audio: %w", err)
	}

	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close multipart writer: %w", err)
	}

	url := c.baseURL + "/transcribe"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	slog.InfoContext(ctx, "forwarding audio for transcription", "url", url, "filename", filename)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("transcription aborted: %w", ctx.Err())
		}

		return "", apperrors.NewProviderUnavailableError("speech service unavailable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		slog.ErrorContext(ctx, "speech service returned error",
			"status", resp.StatusCode, "body", string(respBody))

		return "", apperrors.NewProviderUnavailableError(
			fmt.Sprintf("speech service returned %d", resp.StatusCode), nil)
	}

	var payload transcribeResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", apperrors.NewMalformedResponseError("speech service payload is not valid JSON", err)
	}

	return payload.Text, nil
}
