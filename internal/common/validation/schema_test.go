package validation

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "funnel-coach/internal/common/errors"
)

func newValidator(t *testing.T) *RequestValidator {
	t.Helper()
	v, err := NewRequestValidator(Limits{
		MaxBodyBytes:       5 * 1024 * 1024,
		MaxTranscriptChars: 100000,
		DefaultMerchant:    "Customer",
	})
	require.NoError(t, err)
	return v
}

func requireCode(t *testing.T, err error, code apperrors.ErrorCode) *apperrors.StandardError {
	t.Helper()
	require.Error(t, err)
	stdErr := apperrors.Normalize(err)
	require.Equal(t, code, stdErr.Code, stdErr.Details)
	return stdErr
}

func TestValidateBody_Valid(t *testing.T) {
	v := newValidator(t)

	req, err := v.ValidateBody([]byte(`{"transcript":"Alice: Hi\nBob: Hello","sales_rep_names":"Alice","merchant_names":"Bob"}`))
	require.NoError(t, err)
	assert.Equal(t, "Alice: Hi\nBob: Hello", req.Transcript)
	assert.Equal(t, "Alice", req.SalesRepNames)
	assert.Equal(t, "Bob", req.MerchantNames)
}

func TestValidateBody_DefaultMerchant(t *testing.T) {
	v := newValidator(t)

	for _, body := range []string{
		`{"transcript":"Alice: Hi","sales_rep_names":"Alice"}`,
		`{"transcript":"Alice: Hi","sales_rep_names":"Alice","merchant_names":""}`,
		`{"transcript":"Alice: Hi","sales_rep_names":"Alice","merchant_names":null}`,
	} {
		req, err := v.ValidateBody([]byte(body))
		require.NoError(t, err, body)
		assert.Equal(t, "Customer", req.MerchantNames, body)
	}
}

func TestValidateBody_Failures(t *testing.T) {
	v := newValidator(t)

	tests := []struct {
		name    string
		body    string
		code    apperrors.ErrorCode
		message string
	}{
		{name: "empty body", body: ``, code: apperrors.ErrCodeMalformedBody, message: MsgMalformedBody},
		{name: "not json", body: `transcript=hello`, code: apperrors.ErrCodeMalformedBody, message: MsgMalformedBody},
		{name: "array", body: `["Alice: Hi"]`, code: apperrors.ErrCodeMalformedBody, message: MsgMalformedBody},
		{name: "null", body: `null`, code: apperrors.ErrCodeMalformedBody, message: MsgMalformedBody},
		{name: "transcript wrong type", body: `{"transcript":42,"sales_rep_names":"Alice"}`, code: apperrors.ErrCodeMalformedBody, message: MsgMalformedBody},
		{name: "missing transcript", body: `{"sales_rep_names":"Alice"}`, code: apperrors.ErrCodeMissingField, message: MsgMissingTranscript},
		{name: "empty transcript", body: `{"transcript":"","sales_rep_names":"Alice"}`, code: apperrors.ErrCodeMissingField, message: MsgMissingTranscript},
		{name: "missing both reports transcript first", body: `{}`, code: apperrors.ErrCodeMissingField, message: MsgMissingTranscript},
		{name: "missing reps", body: `{"transcript":"Alice: Hi"}`, code: apperrors.ErrCodeMissingField, message: MsgMissingSalesRepNames},
		{name: "empty reps", body: `{"transcript":"Alice: Hi","sales_rep_names":""}`, code: apperrors.ErrCodeMissingField, message: MsgMissingSalesRepNames},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.ValidateBody([]byte(tt.body))
			stdErr := requireCode(t, err, tt.code)
			assert.Equal(t, tt.message, stdErr.Message)
		})
	}
}

func TestValidateBody_TranscriptLength(t *testing.T) {
	v := newValidator(t)

	atLimit := `{"transcript":"` + strings.Repeat("a", 100000) + `","sales_rep_names":"Alice"}`
	_, err := v.ValidateBody([]byte(atLimit))
	require.NoError(t, err)

	overLimit := `{"transcript":"` + strings.Repeat("a", 100001) + `","sales_rep_names":"Alice"}`
	_, err = v.ValidateBody([]byte(overLimit))
	stdErr := requireCode(t, err, apperrors.ErrCodeTooLarge)
	assert.Equal(t, http.StatusRequestEntityTooLarge, stdErr.HTTPStatus())
	assert.Equal(t, MsgTranscriptTooLong, stdErr.Message)

	// characters, not bytes
	multibyte := `{"transcript":"` + strings.Repeat("é", 100000) + `","sales_rep_names":"Alice"}`
	_, err = v.ValidateBody([]byte(multibyte))
	require.NoError(t, err)
}

func TestCheckContentLength(t *testing.T) {
	v := newValidator(t)

	assert.NoError(t, v.CheckContentLength(-1))
	assert.NoError(t, v.CheckContentLength(5*1024*1024))

	stdErr := requireCode(t, v.CheckContentLength(5*1024*1024+1), apperrors.ErrCodeTooLarge)
	assert.Equal(t, http.StatusRequestEntityTooLarge, stdErr.HTTPStatus())
}

func TestCheckContentType(t *testing.T) {
	v := newValidator(t)

	assert.NoError(t, v.CheckContentType("application/json"))
	assert.NoError(t, v.CheckContentType("application/json; charset=utf-8"))
	assert.NoError(t, v.CheckContentType("application/merge-patch+json"))

	for _, ct := range []string{"", "text/plain", "application/x-www-form-urlencoded", "multipart/form-data; boundary=x"} {
		requireCode(t, v.CheckContentType(ct), apperrors.ErrCodeMalformedBody)
	}
}

func TestReadBody(t *testing.T) {
	v, err := NewRequestValidator(Limits{MaxBodyBytes: 16})
	require.NoError(t, err)

	body, err := v.ReadBody(strings.NewReader(`{"a":"b"}`))
	require.NoError(t, err)
	assert.Equal(t, `{"a":"b"}`, string(body))

	_, err = v.ReadBody(strings.NewReader(strings.Repeat("x", 17)))
	requireCode(t, err, apperrors.ErrCodeTooLarge)
}

func TestReadBody_MaxBytesReader(t *testing.T) {
	v := newValidator(t)

	rec := httptest.NewRecorder()
	r := http.MaxBytesReader(rec, nopCloser{bytes.NewReader(bytes.Repeat([]byte("x"), 64))}, 10)

	_, err := v.ReadBody(r)
	requireCode(t, err, apperrors.ErrCodeTooLarge)
}

func TestValidateDocument(t *testing.T) {
	v := newValidator(t)

	res, err := v.ValidateDocument([]byte(`{"transcript":["a"]}`))
	require.NoError(t, err)
	assert.False(t, res.Valid)
	require.NotEmpty(t, res.Errors)
	assert.Contains(t, res.GetErrorMessages()[0], "transcript")
}

type nopCloser struct{ *bytes.Reader }

func (nopCloser) Close() error { return nil }
