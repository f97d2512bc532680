package httpkit

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"leadflow_backend/platform/apperr"

	"github.com/gin-gonic/gin"
)

func handleErrorStatus(err error) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	HandleError(c, err)
	return rec
}

func TestHandleErrorMapsDomainKinds(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{apperr.NotFound("lead not found"), http.StatusNotFound},
		{apperr.Validation("phone is required"), http.StatusBadRequest},
		{apperr.Internal("unexpected failure"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rec := handleErrorStatus(tc.err)
		if rec.Code != tc.want {
			t.Errorf("%v: status = %d, want %d", tc.err, rec.Code, tc.want)
		}
	}
}

func TestHandleErrorWrappedDomainError(t *testing.T) {
	err := fmt.Errorf("listing leads: %w", apperr.NotFound("lead not found"))
	rec := handleErrorStatus(err)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("wrapped domain error: status = %d, want 404", rec.Code)
	}
}

func TestHandleErrorUntypedErrorIs500(t *testing.T) {
	rec := handleErrorStatus(errors.New("connection refused"))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("untyped error: status = %d, want 500", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "connection refused") {
		t.Fatalf("raw error text leaked to the client: %s", rec.Body.String())
	}
}

func TestHandleErrorNilIsNotHandled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	if HandleError(c, nil) {
		t.Fatal("nil error reported as handled")
	}
}
