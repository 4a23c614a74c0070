package logging

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func captureDefault(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	old := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(old) })
	return &buf
}

func TestWithDocument(t *testing.T) {
	buf := captureDefault(t)

	WithDocument("doc-123").Info("Document scored", "chunks", 3)

	out := buf.String()
	assert.Contains(t, out, "document_id=doc-123")
	assert.Contains(t, out, "chunks=3")
}

func TestWithError(t *testing.T) {
	buf := captureDefault(t)

	WithError(errors.New("connection refused")).Error("Leader election failed")

	assert.Contains(t, buf.String(), `error="connection refused"`)
}
