package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"

	"github.com/forgo/bastion/internal/audit"
	"github.com/forgo/bastion/internal/model"
	"github.com/forgo/bastion/internal/security"
)

// DefaultInspectBytes bounds how much of a body PatternGuard reads.
const DefaultInspectBytes = DefaultMaxBodyBytes

// PatternOptions configures PatternGuard
type PatternOptions struct {
	// InspectBody enables scanning JSON, form and multipart bodies.
	InspectBody bool
	// MaxInspectBytes is the largest inspectable body; larger ones are
	// rejected (default 1 MiB).
	MaxInspectBytes int64
}

// PatternGuard rejects requests whose user agent, URL, referer or body match
// an attack signature. Matches are never cleaned up and passed on.
func PatternGuard(d *security.Detector, events audit.Recorder, opts PatternOptions) Middleware {
	if opts.MaxInspectBytes <= 0 {
		opts.MaxInspectBytes = DefaultInspectBytes
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reason, err := inspectRequest(d, r, opts)
			if err != nil {
				reject(w, r, events, &model.Denial{Kind: model.DenialValidation, Reason: "body rejected", Err: err})
				return
			}
			if reason != "" {
				reject(w, r, events, &model.Denial{
					Kind:     model.DenialValidation,
					Reason:   reason,
					Category: model.EventSuspiciousActivity,
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

var errBodyTooLarge = errors.New("body exceeds inspection limit")

// inspectRequest returns a non-empty reason when r matches, or an error when
// the body cannot be inspected in full. It may replace r.Body with an
// equivalent reader.
func inspectRequest(d *security.Detector, r *http.Request, opts PatternOptions) (string, error) {
	if ua := r.UserAgent(); d.IsSuspiciousUserAgent(ua) {
		return "suspicious user agent", nil
	}
	if reason := describe(d, r.URL.RequestURI(), "url"); reason != "" {
		return reason, nil
	}
	if reason := describe(d, r.Referer(), "referer"); reason != "" {
		return reason, nil
	}
	if opts.InspectBody && r.Body != nil && r.Body != http.NoBody {
		return inspectBody(d, r, opts.MaxInspectBytes)
	}
	return "", nil
}

func describe(d *security.Detector, input, where string) string {
	if input == "" {
		return ""
	}
	set := d.Classify(input)
	if set.Empty() {
		return ""
	}
	rule, _ := d.Match(input)
	return fmt.Sprintf("%s matched in %s (rule %s)", set, where, rule.Name)
}

func inspectBody(d *security.Detector, r *http.Request, limit int64) (string, error) {
	mediaType, params, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/json", "application/x-www-form-urlencoded", "multipart/form-data":
	default:
		return "", nil
	}

	if r.ContentLength > limit {
		return "", fmt.Errorf("%w: declared %d bytes, limit %d", errBodyTooLarge, r.ContentLength, limit)
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > limit {
		return "", fmt.Errorf("%w: limit %d", errBodyTooLarge, limit)
	}
	r.Body = readCloser{Reader: bytes.NewReader(body), Closer: r.Body}

	switch mediaType {
	case "application/json":
		var v any
		if err := json.Unmarshal(body, &v); err != nil {
			// Malformed: scan the raw text instead.
			return describe(d, string(body), "body"), nil
		}
		return walkStrings(v, func(s string) string { return describe(d, s, "body") }), nil
	case "multipart/form-data":
		return inspectMultipart(d, body, params["boundary"]), nil
	default:
		values, err := url.ParseQuery(string(body))
		if err != nil {
			return describe(d, string(body), "body"), nil
		}
		for key, vs := range values {
			if reason := describe(d, key, "body"); reason != "" {
				return reason, nil
			}
			for _, v := range vs {
				if reason := describe(d, v, "body"); reason != "" {
					return reason, nil
				}
			}
		}
	}
	return "", nil
}

// inspectMultipart scans field names and the values of non-file parts. File
// contents are opaque and file names are sanitized by the handler. A body the
// multipart reader cannot parse is left to the handler, which uses the same
// reader and rejects it.
func inspectMultipart(d *security.Detector, body []byte, boundary string) string {
	if boundary == "" {
		return ""
	}
	mr := multipart.NewReader(bytes.NewReader(body), boundary)
	for {
		part, err := mr.NextPart()
		if err != nil {
			return ""
		}
		if reason := describe(d, part.FormName(), "multipart field"); reason != "" {
			return reason
		}
		if part.FileName() != "" {
			continue
		}
		value, err := io.ReadAll(part)
		if err != nil {
			return ""
		}
		if reason := describe(d, string(value), "multipart field"); reason != "" {
			return reason
		}
	}
}

// walkStrings calls fn on every key and string value in v, stopping at the
// first non-empty result.
func walkStrings(v any, fn func(string) string) string {
	switch t := v.(type) {
	case string:
		return fn(t)
	case map[string]any:
		for k, val := range t {
			if res := fn(k); res != "" {
				return res
			}
			if res := walkStrings(val, fn); res != "" {
				return res
			}
		}
	case []any:
		for _, val := range t {
			if res := walkStrings(val, fn); res != "" {
				return res
			}
		}
	}
	return ""
}

type readCloser struct {
	io.Reader
	io.Closer
}
