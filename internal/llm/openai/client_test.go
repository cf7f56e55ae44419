package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schemati/schemati/internal/common"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

func completionResponse(content string) string {
	payload := map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
	}
	b, _ := json.Marshal(payload)
	return string(b)
}

func newTestClient(t *testing.T, handler http.HandlerFunc, lenient bool) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := NewClient(Config{
		APIKey:            "test-key",
		BaseURL:           srv.URL,
		Model:             "gpt-4o-mini",
		RequestsPerSecond: 1000,
		Burst:             100,
		Lenient:           lenient,
	}, nil)
	return client, srv
}

func TestExtractPage(t *testing.T) {
	var gotAuth string
	var gotBody map[string]any

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_, _ = w.Write([]byte(completionResponse(`{"instruments":[{"tag":"PT-101","type":"pressure transmitter"}]}`)))
	}, false)

	out, raw, err := client.ExtractPage(context.Background(), pngMagic, "system prompt")
	require.NoError(t, err)

	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "gpt-4o-mini", gotBody["model"])

	// the image travels as a PNG data URL inside the user message
	msgs := gotBody["messages"].([]any)
	require.Len(t, msgs, 3)
	user := msgs[1].(map[string]any)
	parts := user["content"].([]any)
	imagePart := parts[1].(map[string]any)["image_url"].(map[string]any)["url"].(string)
	assert.True(t, strings.HasPrefix(imagePart, "data:image/png;base64,"))

	require.Len(t, out.Instruments, 1)
	assert.Equal(t, "PT-101", out.Instruments[0].Tag)
	assert.JSONEq(t, `{"instruments":[{"tag":"PT-101","type":"pressure transmitter"}]}`, string(raw))
}

func TestExtractPageStripsCodeFences(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(completionResponse("```json\n{\"valves\":[{\"tag\":\"XV-1\"}]}\n```")))
	}, false)

	out, _, err := client.ExtractPage(context.Background(), pngMagic, "p")
	require.NoError(t, err)
	require.Len(t, out.Valves, 1)
	assert.Equal(t, "XV-1", out.Valves[0].Tag)
}

func TestExtractPageStrictRejectsSchemaViolation(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(completionResponse(`{"instruments":[{"tag":101}]}`)))
	}, false)

	_, _, err := client.ExtractPage(context.Background(), pngMagic, "p")
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrExtraction)
}

func TestExtractPageLenientSanitizes(t *testing.T) {
	// numeric tag and a null field would fail strict validation
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(completionResponse(`{"instruments":[{"tag":101,"location":null}]}`)))
	}, true)

	out, _, err := client.ExtractPage(context.Background(), pngMagic, "p")
	require.NoError(t, err)
	require.Len(t, out.Instruments, 1)
	assert.Equal(t, "101", out.Instruments[0].Tag)
	assert.Empty(t, out.Instruments[0].Location)
}

func TestExtractPageServerError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}, false)

	_, _, err := client.ExtractPage(context.Background(), pngMagic, "p")
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrExtraction)
	assert.Contains(t, err.Error(), "503")
}

func TestExtractPageNoChoices(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}, false)

	_, _, err := client.ExtractPage(context.Background(), pngMagic, "p")
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrExtraction)
}

func TestSniffImageMIME(t *testing.T) {
	assert.Equal(t, "image/png", sniffImageMIME(pngMagic))
	assert.Equal(t, "image/jpeg", sniffImageMIME([]byte{0xFF, 0xD8, 0xFF, 0xE0}))
	assert.Equal(t, "application/octet-stream", sniffImageMIME([]byte("??")))
}
