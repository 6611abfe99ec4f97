package validation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"funnel-coach/internal/common/chunking"
	apperrors "funnel-coach/internal/common/errors"
	"funnel-coach/internal/models"
)

const (
	MsgMissingTranscript    = "No transcript provided."
	MsgMissingSalesRepNames = "Sales Rep name(s) not provided."
	MsgMalformedBody        = "Request body must be a JSON object."
	MsgUnsupportedType      = "Content-Type must be application/json."
	MsgBodyTooLarge         = "Request body is too large."
	MsgTranscriptTooLong    = "Transcript is too long."
)

// analyzeRequestSchema only checks shape. Presence and emptiness are checked
// afterwards so each field gets its own message.
const analyzeRequestSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"properties": {
		"transcript":      {"type": ["string", "null"]},
		"sales_rep_names": {"type": ["string", "null"]},
		"merchant_names":  {"type": ["string", "null"]}
	}
}`

// Limits bounds what the request validator accepts.
type Limits struct {
	MaxBodyBytes       int64
	MaxTranscriptChars int
	DefaultMerchant    string
}

// ValidationResult lists the schema violations of a document.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// GetErrorMessages returns a simple list of error messages
func (vr *ValidationResult) GetErrorMessages() []string {
	messages := make([]string, len(vr.Errors))
	for i, err := range vr.Errors {
		messages[i] = fmt.Sprintf("%s: %s", err.Field, err.Message)
	}
	return messages
}

// RequestValidator checks the body of POST /analyze. It has no side effects.
type RequestValidator struct {
	limits Limits
	schema *gojsonschema.Schema
}

func NewRequestValidator(limits Limits) (*RequestValidator, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(analyzeRequestSchema))
	if err != nil {
		return nil, fmt.Errorf("compile request schema: %w", err)
	}
	if limits.DefaultMerchant == "" {
		limits.DefaultMerchant = "Customer"
	}
	return &RequestValidator{limits: limits, schema: schema}, nil
}

// CheckContentLength rejects a declared body size over the limit before any
// byte is read. An unknown length (-1) passes.
func (v *RequestValidator) CheckContentLength(length int64) error {
	if v.limits.MaxBodyBytes > 0 && length > v.limits.MaxBodyBytes {
		return apperrors.NewTooLargeError(MsgBodyTooLarge, length, v.limits.MaxBodyBytes)
	}
	return nil
}

// CheckContentType accepts application/json with optional parameters.
func (v *RequestValidator) CheckContentType(contentType string) error {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || !isJSONMediaType(mediaType) {
		return apperrors.NewMalformedBodyError(MsgUnsupportedType, err)
	}
	return nil
}

func isJSONMediaType(mediaType string) bool {
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

// ReadBody reads at most MaxBodyBytes from r, failing when the stream is longer.
func (v *RequestValidator) ReadBody(r io.Reader) ([]byte, error) {
	if v.limits.MaxBodyBytes <= 0 {
		return io.ReadAll(r)
	}
	body, err := io.ReadAll(io.LimitReader(r, v.limits.MaxBodyBytes+1))
	if err != nil {
		if isMaxBytesError(err) {
			return nil, apperrors.NewTooLargeError(MsgBodyTooLarge, v.limits.MaxBodyBytes+1, v.limits.MaxBodyBytes)
		}
		return nil, apperrors.NewMalformedBodyError(MsgMalformedBody, err)
	}
	if int64(len(body)) > v.limits.MaxBodyBytes {
		return nil, apperrors.NewTooLargeError(MsgBodyTooLarge, int64(len(body)), v.limits.MaxBodyBytes)
	}
	return body, nil
}

func isMaxBytesError(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}

// ValidateBody parses body and applies the field checks in order: shape,
// transcript, sales_rep_names, transcript length. The first violation wins.
func (v *RequestValidator) ValidateBody(body []byte) (*models.AnalysisRequest, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, apperrors.NewMalformedBodyError(MsgMalformedBody, fmt.Errorf("empty body"))
	}
	if !json.Valid(trimmed) {
		return nil, apperrors.NewMalformedBodyError(MsgMalformedBody, fmt.Errorf("invalid json"))
	}

	result, err := v.ValidateDocument(trimmed)
	if err != nil {
		return nil, apperrors.NewMalformedBodyError(MsgMalformedBody, err)
	}
	if !result.Valid {
		return nil, apperrors.NewMalformedBodyError(MsgMalformedBody,
			fmt.Errorf("schema: %s", strings.Join(result.GetErrorMessages(), "; ")))
	}

	var raw struct {
		Transcript    *string `json:"transcript"`
		SalesRepNames *string `json:"sales_rep_names"`
		MerchantNames *string `json:"merchant_names"`
	}
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, apperrors.NewMalformedBodyError(MsgMalformedBody, err)
	}

	if raw.Transcript == nil || *raw.Transcript == "" {
		return nil, apperrors.NewMissingFieldError("transcript", MsgMissingTranscript)
	}
	if raw.SalesRepNames == nil || *raw.SalesRepNames == "" {
		return nil, apperrors.NewMissingFieldError("sales_rep_names", MsgMissingSalesRepNames)
	}

	if n := chunking.Len(*raw.Transcript); v.limits.MaxTranscriptChars > 0 && n > v.limits.MaxTranscriptChars {
		return nil, apperrors.NewTooLargeError(MsgTranscriptTooLong, int64(n), int64(v.limits.MaxTranscriptChars))
	}

	req := &models.AnalysisRequest{
		Transcript:    *raw.Transcript,
		SalesRepNames: *raw.SalesRepNames,
		MerchantNames: v.limits.DefaultMerchant,
	}
	if raw.MerchantNames != nil && *raw.MerchantNames != "" {
		req.MerchantNames = *raw.MerchantNames
	}
	return req, nil
}

// ValidateDocument checks a JSON document against the request schema.
func (v *RequestValidator) ValidateDocument(doc []byte) (*ValidationResult, error) {
	res, err := v.schema.Validate(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return nil, err
	}

	out := &ValidationResult{Valid: res.Valid()}
	for _, e := range res.Errors() {
		out.Errors = append(out.Errors, ValidationError{
			Field:   e.Field(),
			Message: e.Description(),
			Code:    e.Type(),
		})
	}
	return out, nil
}
