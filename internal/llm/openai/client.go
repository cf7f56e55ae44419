package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/schemati/schemati/internal/common"
	"github.com/schemati/schemati/internal/llm"
)

// ExtractPage implements llm.PageExtractor using a vision chat
// completion: the fragment image travels as a base64 data URL, the
// response is schema-validated before decoding. Every failure mode
// (transport, empty response, malformed JSON, schema mismatch) comes
// back as an extraction error; callers contain it per fragment.
func (c *Client) ExtractPage(ctx context.Context, imageBytes []byte, prompt string) (llm.PageEntities, []byte, error) {
	rid := uuid.New().String()
	start := time.Now()

	c.log.Info("llm.extract.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"temp", c.cfg.Temperature,
		"image_bytes", len(imageBytes),
	)

	if err := c.limiter.Wait(ctx); err != nil {
		return llm.PageEntities{}, nil, common.NewExtractionError("rate limiter wait", err)
	}

	schema := llm.BuildPageJSONSchema()
	dataURL := "data:" + sniffImageMIME(imageBytes) + ";base64," + base64.StdEncoding.EncodeToString(imageBytes)

	body := map[string]any{
		"model":           c.cfg.Model,
		"temperature":     c.cfg.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "system", "content": prompt},
			{"role": "user", "content": []map[string]any{
				{"type": "text", "text": llm.BuildUserPrompt()},
				{"type": "image_url", "image_url": map[string]any{"url": dataURL}},
			}},
			{"role": "system", "content": "JSON Schema:\n" + mustJSON(schema)},
		},
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	raw, httpErr := c.post(ctx, endpoint, body)
	if httpErr != nil {
		c.log.Error("llm.extract.http_error",
			"req_id", rid, "error", httpErr,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.PageEntities{}, nil, common.NewExtractionError("chat completion request", httpErr)
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		c.log.Error("llm.extract.decode_error",
			"req_id", rid, "error", err, "raw_bytes", len(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.PageEntities{}, raw, common.NewExtractionError("decode completion response", err)
	}
	if len(cc.Choices) == 0 {
		c.log.Error("llm.extract.no_choices",
			"req_id", rid,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.PageEntities{}, raw, common.NewExtractionError("no choices in completion response", nil)
	}

	content := llm.ExtractJSONPayload(cc.Choices[0].Message.Content)

	// Validate strictly first.
	if err := llm.ValidateJSONAgainstSchema(schema, content); err != nil {
		if !c.cfg.Lenient {
			c.log.Error("llm.extract.schema_validation_failed",
				"req_id", rid, "error", err,
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
			return llm.PageEntities{}, content, common.NewExtractionError("schema validation", err)
		}
		cleaned, dropped, sErr := llm.SanitizeResponse(content)
		if sErr != nil {
			c.log.Error("llm.extract.sanitize_failed",
				"req_id", rid, "error", sErr,
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
			return llm.PageEntities{}, content, common.NewExtractionError("sanitize response", sErr)
		}
		if vErr := llm.ValidateJSONAgainstSchema(schema, cleaned); vErr != nil {
			c.log.Error("llm.extract.schema_validation_failed",
				"req_id", rid, "error", vErr,
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
			return llm.PageEntities{}, content, common.NewExtractionError("schema validation", vErr)
		}
		c.log.Warn("llm.extract.lenient_sanitize_applied",
			"req_id", rid, "dropped", dropped,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		content = cleaned
	}

	var out llm.PageEntities
	if err := json.Unmarshal(content, &out); err != nil {
		c.log.Error("llm.extract.unmarshal_failed",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.PageEntities{}, content, common.NewExtractionError("unmarshal entities", err)
	}

	c.log.Info("llm.extract.ok",
		"req_id", rid,
		"lines", len(out.ProcessLines),
		"instruments", len(out.Instruments),
		"equipment", len(out.Equipment),
		"valves", len(out.Valves),
		"annotations", len(out.Annotations),
		"has_title_block", out.TitleBlock != nil,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, content, nil
}

func (c *Client) post(ctx context.Context, url string, body map[string]any) ([]byte, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("model http error: %w", err)
	}
	defer func(body io.ReadCloser) {
		if err := body.Close(); err != nil {
			c.log.Warn("response body close error", "error", err)
		}
	}(resp.Body)

	buf := new(bytes.Buffer)
	_, _ = buf.ReadFrom(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("model status %d: %s", resp.StatusCode, buf.String())
	}
	return buf.Bytes(), nil
}

// sniffImageMIME recognizes the two encodings the tiler produces.
func sniffImageMIME(b []byte) string {
	if len(b) >= 8 && bytes.HasPrefix(b, []byte{0x89, 'P', 'N', 'G'}) {
		return "image/png"
	}
	if len(b) >= 3 && b[0] == 0xFF && b[1] == 0xD8 {
		return "image/jpeg"
	}
	return "application/octet-stream"
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
