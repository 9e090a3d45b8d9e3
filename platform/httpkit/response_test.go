package httpkit

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"missedcall_backend/platform/apperr"

	"github.com/gin-gonic/gin"
)

func testContext(t *testing.T) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	return c, rec
}

func TestHandleErrorNil(t *testing.T) {
	c, _ := testContext(t)
	if HandleError(c, nil) {
		t.Fatal("nil error must not be handled")
	}
}

func TestHandleErrorMapsDomainKinds(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{apperr.NotFound("client not found"), http.StatusNotFound},
		{apperr.Unavailable("number pool empty"), http.StatusServiceUnavailable},
		{apperr.Conflict("number already assigned"), http.StatusConflict},
		{fmt.Errorf("load record: %w", apperr.NotFound("onboarding record not found")), http.StatusNotFound},
	}

	for _, tc := range cases {
		c, rec := testContext(t)
		if !HandleError(c, tc.err) {
			t.Fatalf("%v: error must be handled", tc.err)
		}
		if rec.Code != tc.status {
			t.Fatalf("%v: status = %d, want %d", tc.err, rec.Code, tc.status)
		}
	}
}

func TestHandleErrorDefaultsToBadRequest(t *testing.T) {
	c, rec := testContext(t)
	if !HandleError(c, errors.New("boom")) {
		t.Fatal("plain error must be handled")
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
