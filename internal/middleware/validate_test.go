package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgo/bastion/internal/model"
)

type signupBody struct {
	Email    string `json:"email" validate:"required,email"`
	Username string `json:"username" validate:"required,min=3,max=20"`
	Plan     string `json:"plan,omitempty" validate:"omitempty,oneof=free pro"`
}

func serveValidate(body string) (*httptest.ResponseRecorder, *signupBody, *eventCapture) {
	events := &eventCapture{}
	var got *signupBody
	h := Validate[signupBody](NewValidator(), events)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = ValidatedBody[signupBody](r.Context())
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)))
	return rr, got, events
}

func TestValidate_Accepts(t *testing.T) {
	t.Parallel()

	rr, got, events := serveValidate(`{"email":"a@example.com","username":"alice","plan":"pro"}`)

	assert.Equal(t, http.StatusOK, rr.Code)
	require.NotNil(t, got)
	assert.Equal(t, "alice", got.Username)
	assert.Empty(t, events.all())
}

func TestValidate_FieldErrors(t *testing.T) {
	t.Parallel()

	rr, got, events := serveValidate(`{"email":"nope","username":"al","plan":"gold"}`)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Nil(t, got)

	p := decodeProblem(t, rr)
	assert.Equal(t, model.ErrCodeValidation, p.Code)
	assert.ElementsMatch(t, []model.FieldError{
		{Field: "email", Message: "must be a valid email address"},
		{Field: "username", Message: "must be at least 3"},
		{Field: "plan", Message: "must be one of: free pro"},
	}, p.Errors)
	assert.Equal(t, []model.EventCategory{model.EventValidationFailure}, events.categories())
}

func TestValidate_RejectsUnknownFieldsAndBadJSON(t *testing.T) {
	t.Parallel()

	for _, body := range []string{
		`{"email":"a@example.com","username":"alice","admin":true}`,
		`{"email":`,
		``,
	} {
		rr, got, _ := serveValidate(body)
		assert.Equal(t, http.StatusBadRequest, rr.Code, body)
		assert.Nil(t, got, body)
	}
}

func TestValidatedBody_Absent(t *testing.T) {
	t.Parallel()

	_, ok := ValidatedBody[signupBody](httptest.NewRequest(http.MethodGet, "/", nil).Context())

	assert.False(t, ok)
}
