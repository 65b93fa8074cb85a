package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/empathyapp/backend/internal/api/response"
	"github.com/empathyapp/backend/internal/models"
)

// Transcriber defines the interface for forwarding audio to the speech service.
type Transcriber interface {
	Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error)
}

// TranscribeHandler handles HTTP requests for audio transcription.
type TranscribeHandler struct {
	speech Transcriber
}

// NewTranscribeHandler creates a new transcribe handler.
func NewTranscribeHandler(speech Transcriber) *TranscribeHandler {
	return &TranscribeHandler{speech: speech}
}

// maxAudioMemoryBytes bounds how much of the multipart body is held in memory;
// larger uploads spill to temp files.
const maxAudioMemoryBytes = 10 << 20

// Transcribe handles POST /api/transcribe. The audio arrives as a multipart
// "file" part and is forwarded to the speech service as-is.
func (h *TranscribeHandler) Transcribe(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxAudioMemoryBytes); err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			response.RespondBadRequest(w, "Expected multipart/form-data body")

			return
		}

		response.RespondBadRequest(w, "Invalid multipart body")

		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		response.RespondBadRequest(w, "file part is required")

		return
	}
	defer file.Close()

	text, err := h.speech.Transcribe(r.Context(), header.Filename, file)
	if err != nil {
		response.RespondAppError(w, err)

		return
	}

	response.RespondJSON(w, http.StatusOK, models.TranscribeResponse{Text: text})
}
