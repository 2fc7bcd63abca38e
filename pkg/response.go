package pkg

import (
	"encoding/json"
	"net/http"

	log "github.com/sirupsen/logrus"
)

var ContentType = struct {
	JSON string
	Text string
	HTML string
}{
	JSON: "application/json",
	Text: "text/plain",
	HTML: "text/html",
}

// ApiResponse is the uniform JSON envelope returned by all content routes.
type ApiResponse struct {
	Success bool              `json:"success"`
	Data    interface{}       `json:"data,omitempty"`
	Message string            `json:"message,omitempty"`
	Error   string            `json:"error,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

func WriteResponse(w http.ResponseWriter, contentType, message string, statusCode int) {
	WriteResponseBytes(w, contentType, []byte(message), statusCode)
}

func WriteResponseBytes(w http.ResponseWriter, contentType string, message []byte, statusCode int) {
	if contentType != "" {
		w.Header().Add("Content-Type", contentType)
	}
	w.WriteHeader(statusCode)

	if _, err := w.Write(message); err != nil {
		log.Errorf("failed to write response [%s]: %s", message, err)
	}
}

func WriteResponseBytesOK(w http.ResponseWriter, contentType string, message []byte) {
	WriteResponseBytes(w, contentType, message, http.StatusOK)
}

func WriteTextResponseOK(w http.ResponseWriter, message string) {
	WriteResponse(w, ContentType.Text, message, http.StatusOK)
}

func WriteJSONEnvelope(w http.ResponseWriter, statusCode int, resp ApiResponse) {
	respBytes, err := json.Marshal(resp)
	if err != nil {
		log.Errorf("marshal response envelope: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	WriteResponseBytes(w, ContentType.JSON, respBytes, statusCode)
}

func WriteSuccessJSON(w http.ResponseWriter, statusCode int, data interface{}, message string) {
	WriteJSONEnvelope(w, statusCode, ApiResponse{
		Success: true,
		Data:    data,
		Message: message,
	})
}

func WriteErrorJSON(w http.ResponseWriter, statusCode int, errMessage string) {
	WriteJSONEnvelope(w, statusCode, ApiResponse{
		Success: false,
		Error:   errMessage,
	})
}

// WriteValidationErrorJSON - schema rejects input: 400 plus per-field details
func WriteValidationErrorJSON(w http.ResponseWriter, details map[string]string) {
	WriteJSONEnvelope(w, http.StatusBadRequest, ApiResponse{
		Success: false,
		Error:   "validation failed",
		Details: details,
	})
}
