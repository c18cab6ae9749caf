package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func record(t *testing.T, fn func(c echo.Context) error) APIResponse {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	if err := fn(e.NewContext(req, rec)); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("transport code = %d, want 200", rec.Code)
	}
	var env APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return env
}

func TestSuccessEnvelope(t *testing.T) {
	env := record(t, func(c echo.Context) error {
		return SuccessResponse(c, map[string]string{"state": "live"})
	})
	if env.Status != http.StatusOK || env.Message != "OK" {
		t.Fatalf("envelope = %d %q", env.Status, env.Message)
	}
	data, ok := env.Data.(map[string]interface{})
	if !ok || data["state"] != "live" {
		t.Fatalf("data = %v", env.Data)
	}
}

func TestErrorsTravelAsTransportOK(t *testing.T) {
	env := record(t, func(c echo.Context) error {
		return NotFoundResponse(c, "no such advisory")
	})
	if env.Status != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", env.Status)
	}
	if env.Data != "no such advisory" {
		t.Fatalf("data = %v", env.Data)
	}
}

func TestAppErrorKeepsItsStatus(t *testing.T) {
	env := record(t, func(c echo.Context) error {
		wrapped := fmt.Errorf("journal: %w", NotFoundError("advisory missing").WithError(errors.New("row vanished")))
		return AppErrorResponse(c, wrapped)
	})
	if env.Status != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", env.Status)
	}
}

func TestUnknownErrorBecomes500(t *testing.T) {
	env := record(t, func(c echo.Context) error {
		return AppErrorResponse(c, errors.New("disk on fire"))
	})
	if env.Status != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", env.Status)
	}
	if s, _ := env.Data.(string); strings.Contains(s, "disk") {
		t.Fatalf("internal detail leaked: %v", env.Data)
	}
}

func TestListEnvelope(t *testing.T) {
	env := record(t, func(c echo.Context) error {
		return ListResponse(c, []int{1, 2, 3}, 3)
	})
	list, ok := env.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("data = %v", env.Data)
	}
	if total, _ := list["total"].(float64); total != 3 {
		t.Fatalf("total = %v", list["total"])
	}
}

func TestAppErrorMessage(t *testing.T) {
	err := BadRequestError("bad symbol").WithField("symbol").WithParam("got", "??")
	if err.Error() != "bad symbol" {
		t.Fatalf("message = %q", err.Error())
	}
	cause := errors.New("parse")
	if got := err.WithError(cause).Error(); got != "bad symbol: parse" {
		t.Fatalf("wrapped message = %q", got)
	}
	if !errors.Is(err, cause) {
		t.Fatal("cause not reachable through Unwrap")
	}
}
