package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/forgo/bastion/internal/model"
)

func serveNormalize(t *testing.T, opts NormalizeOptions, r *http.Request) (*httptest.ResponseRecorder, string, *eventCapture) {
	t.Helper()
	events := &eventCapture{}
	var got string
	h := Normalize(events, opts)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, err := io.ReadAll(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			return
		}
		got = string(b)
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, r)
	return rr, got, events
}

func jsonRequest(body string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/v1/echo", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	return r
}

func TestNormalize_CanonicalizesStrings(t *testing.T) {
	t.Parallel()

	// "e" + combining acute, a bell character, and a tab that must survive.
	rr, got, _ := serveNormalize(t, NormalizeOptions{}, jsonRequest(`{"name":"cafe\u0301\u0007","note":"a\tb","n":12.50}`))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"name":"caf\u00e9","note":"a\tb","n":12.50}`, got)
	assert.Contains(t, got, "12.50", "numbers keep their literal form")
}

func TestNormalize_RejectsMalformedJSON(t *testing.T) {
	t.Parallel()

	for _, body := range []string{`{"a":`, `{"a":1} {"b":2}`, `not json`} {
		rr, _, events := serveNormalize(t, NormalizeOptions{}, jsonRequest(body))

		assert.Equal(t, http.StatusBadRequest, rr.Code, body)
		assert.Equal(t, []model.EventCategory{model.EventValidationFailure}, events.categories(), body)
	}
}

func TestNormalize_DeclaredLengthOverLimit(t *testing.T) {
	t.Parallel()

	r := jsonRequest(`{"a":"` + strings.Repeat("x", 64) + `"}`)
	rr, _, events := serveNormalize(t, NormalizeOptions{MaxBodyBytes: 16}, r)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Len(t, events.all(), 1)
}

func TestNormalize_StreamedBodyOverLimit(t *testing.T) {
	t.Parallel()

	r := jsonRequest(`{"a":"` + strings.Repeat("x", 64) + `"}`)
	r.ContentLength = -1
	rr, _, _ := serveNormalize(t, NormalizeOptions{MaxBodyBytes: 16}, r)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestNormalize_NonJSONPassesThroughCapped(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader(strings.Repeat("b", 32)))
	r.Header.Set("Content-Type", "application/octet-stream")
	r.ContentLength = -1
	rr, _, _ := serveNormalize(t, NormalizeOptions{MaxBodyBytes: 8}, r)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
}

func TestNormalize_EmptyBody(t *testing.T) {
	t.Parallel()

	rr, got, _ := serveNormalize(t, NormalizeOptions{}, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, got)
}

func TestNormalizeString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "\u00e9", NormalizeString("e\u0301"))
	assert.Equal(t, "ab", NormalizeString("a\x00b"))
	assert.Equal(t, "line\r\nnext", NormalizeString("line\r\nnext"))
}
