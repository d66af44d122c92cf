package responses

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	pkgerrors "github.com/avilesdev/storefront-backend/pkg/errors"
	"github.com/avilesdev/storefront-backend/pkg/logger"
	"github.com/avilesdev/storefront-backend/pkg/types"
)

func TestWriteSuccessEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteSuccess(rec, map[string]string{"status": "ok"})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("unexpected content type %q", ct)
	}

	var envelope struct {
		Data map[string]string `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if envelope.Data["status"] != "ok" {
		t.Fatalf("unexpected payload: %+v", envelope)
	}
}

func TestWriteErrorPassesValidationMessage(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(context.Background(), nil, rec, pkgerrors.New(pkgerrors.CodeValidation, "please enter address"))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	var envelope types.ErrorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if envelope.Error.Message != "please enter address" {
		t.Fatalf("validation message must pass through, got %q", envelope.Error.Message)
	}
	if envelope.Error.Code != string(pkgerrors.CodeValidation) {
		t.Fatalf("unexpected code %q", envelope.Error.Code)
	}
}

func TestWriteErrorMasksInternalMessage(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(context.Background(), nil, rec, pkgerrors.Wrap(pkgerrors.CodeInternal, errors.New("pq: relation missing"), "load cart"))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}

	var envelope types.ErrorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if envelope.Error.Message != "internal server error" {
		t.Fatalf("internal details must be masked, got %q", envelope.Error.Message)
	}
}

func TestWriteErrorWrapsUntypedErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(context.Background(), nil, rec, errors.New("boom"))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func captureLevel(t *testing.T, err error) string {
	t.Helper()

	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "responses-test", Output: &buf})

	rec := httptest.NewRecorder()
	WriteError(context.Background(), logg, rec, err)

	var line struct {
		Level string `json:"level"`
	}
	if jsonErr := json.Unmarshal(buf.Bytes(), &line); jsonErr != nil {
		t.Fatalf("decode log line: %v", jsonErr)
	}
	return line.Level
}

func TestWriteErrorLogsClientFailuresAtWarn(t *testing.T) {
	clientErrs := []error{
		pkgerrors.New(pkgerrors.CodeValidation, "please enter address"),
		pkgerrors.New(pkgerrors.CodeUnauthorized, "missing token"),
		pkgerrors.New(pkgerrors.CodeNotFound, "Product not found"),
		pkgerrors.New(pkgerrors.CodeConflict, "cart is being modified, retry shortly"),
	}
	for _, err := range clientErrs {
		if level := captureLevel(t, err); level != "warn" {
			t.Fatalf("expected warn for %v, got %q", err, level)
		}
	}
}

func TestWriteErrorLogsServerFailuresAtError(t *testing.T) {
	serverErrs := []error{
		pkgerrors.Wrap(pkgerrors.CodeInternal, errors.New("pq: relation missing"), "load cart"),
		pkgerrors.New(pkgerrors.CodeDependency, "redis unavailable"),
		errors.New("boom"),
	}
	for _, err := range serverErrs {
		if level := captureLevel(t, err); level != "error" {
			t.Fatalf("expected error for %v, got %q", err, level)
		}
	}
}
