package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/sitefeed/internal/model"
)

func TestWriteErrorResponse_WritesUnifiedFormat(t *testing.T) {
	w := httptest.NewRecorder()
	WriteErrorResponse(w, http.StatusConflict, model.NewDuplicateWebsiteError("https://example.com"))

	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Code != model.ErrCodeDuplicateWebsite || body.Category != "website" || body.Action == "" {
		t.Errorf("body = %+v", body)
	}
	if !strings.Contains(body.Message, "https://example.com") {
		t.Errorf("message = %q", body.Message)
	}
}

func TestStatusForCode(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{model.ErrCodeWebsiteNotFound, http.StatusNotFound},
		{model.ErrCodeFeedNotFound, http.StatusNotFound},
		{model.ErrCodeForbidden, http.StatusForbidden},
		{model.ErrCodeDuplicateWebsite, http.StatusConflict},
		{model.ErrCodeFetchFailed, http.StatusBadGateway},
		{model.ErrCodeCompletionFailed, http.StatusBadGateway},
		{model.ErrCodeParseFailed, http.StatusUnprocessableEntity},
		{model.ErrCodeInvalidURL, http.StatusBadRequest},
		{model.ErrCodeInvalidRequest, http.StatusBadRequest},
		{model.ErrCodeSSRFBlocked, http.StatusBadRequest},
		{model.ErrCodeUnauthorized, http.StatusUnauthorized},
		{"SOMETHING_ELSE", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			if got := StatusForCode(tt.code); got != tt.want {
				t.Errorf("StatusForCode(%q) = %d, want %d", tt.code, got, tt.want)
			}
		})
	}
}

func TestWriteServiceError(t *testing.T) {
	t.Run("ラップされたAPIError", func(t *testing.T) {
		var buf bytes.Buffer
		w := httptest.NewRecorder()
		err := fmt.Errorf("scrape: %w", model.NewParseFailedError("Not an array"))
		WriteServiceError(w, newTestLogger(&buf), err)

		if w.Code != http.StatusUnprocessableEntity {
			t.Errorf("status = %d, want 422", w.Code)
		}
		if buf.Len() != 0 {
			t.Errorf("APIError should not be logged as internal: %s", buf.String())
		}
	})

	t.Run("その他のエラー", func(t *testing.T) {
		var buf bytes.Buffer
		w := httptest.NewRecorder()
		WriteServiceError(w, newTestLogger(&buf), errors.New("pq: connection reset"))

		if w.Code != http.StatusInternalServerError {
			t.Errorf("status = %d, want 500", w.Code)
		}
		if strings.Contains(w.Body.String(), "pq:") {
			t.Error("internal error detail leaked to client")
		}
		if !strings.Contains(buf.String(), "connection reset") {
			t.Errorf("log = %s", buf.String())
		}
	})
}
