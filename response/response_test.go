package response

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aisgo/ais-modelcode/errors"
	"github.com/gofiber/fiber/v3"
)

type fakeReport struct {
	ok, bad int
}

func (r fakeReport) Succeeded() int { return r.ok }
func (r fakeReport) Failed() int    { return r.bad }

func (r fakeReport) Err() error {
	if r.bad == 0 {
		return nil
	}
	return errors.Newf(errors.ErrCodePartialBatchFailure, "%d items failed", r.bad)
}

func doGet(t *testing.T, app *fiber.App, path string) (int, Result) {
	t.Helper()

	req := httptest.NewRequest("GET", path, nil)
	resp, err := app.Test(req, fiber.TestConfig{Timeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	var got Result
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp.StatusCode, got
}

func TestError_BizError(t *testing.T) {
	t.Parallel()

	app := fiber.New()
	app.Get("/err", func(c fiber.Ctx) error {
		return Error(c, errors.New(errors.ErrCodeConflict, "code SLU-101 already exists"))
	})

	status, got := doGet(t, app, "/err")
	if status != fiber.StatusBadRequest {
		t.Fatalf("unexpected status: got=%d want=%d", status, fiber.StatusBadRequest)
	}
	if got.Success {
		t.Fatalf("expected success=false")
	}
	if got.Code != "CONFLICT" {
		t.Fatalf("unexpected code: %q", got.Code)
	}
	if got.Message != "code SLU-101 already exists" {
		t.Fatalf("unexpected message: %q", got.Message)
	}
}

func TestOkWithData(t *testing.T) {
	t.Parallel()

	app := fiber.New()
	app.Get("/ok", func(c fiber.Ctx) error {
		return OkWithData(c, fiber.Map{"model": "AC-50"})
	})

	status, got := doGet(t, app, "/ok")
	if status != fiber.StatusOK || !got.Success {
		t.Fatalf("unexpected response: %d %+v", status, got)
	}
	data, ok := got.Data.(map[string]any)
	if !ok || data["model"] != "AC-50" {
		t.Fatalf("unexpected data: %#v", got.Data)
	}
	if got.Code != "" {
		t.Fatalf("code must be omitted on success: %q", got.Code)
	}
}

func TestBatchPartialFailure(t *testing.T) {
	t.Parallel()

	app := fiber.New()
	app.Get("/batch", func(c fiber.Ctx) error {
		return Batch(c, fakeReport{ok: 8, bad: 2})
	})
	app.Get("/batch-ok", func(c fiber.Ctx) error {
		return Batch(c, fakeReport{ok: 3})
	})

	status, got := doGet(t, app, "/batch")
	if status != fiber.StatusOK {
		t.Fatalf("unexpected status: %d", status)
	}
	if got.Success || got.Code != "PARTIAL_BATCH_FAILURE" {
		t.Fatalf("unexpected envelope: %+v", got)
	}

	_, got = doGet(t, app, "/batch-ok")
	if !got.Success {
		t.Fatalf("expected full success: %+v", got)
	}
}

type abortedReport struct{ fakeReport }

func (abortedReport) Err() error {
	return errors.New(errors.ErrCodeConflict, "batch aborted")
}

func TestBatchEnvelopeCodeComesFromReportErr(t *testing.T) {
	t.Parallel()

	app := fiber.New()
	app.Get("/batch", func(c fiber.Ctx) error {
		return Batch(c, abortedReport{fakeReport{ok: 1, bad: 1}})
	})

	status, got := doGet(t, app, "/batch")
	if status != fiber.StatusOK {
		t.Fatalf("unexpected status: %d", status)
	}
	if got.Success || got.Code != "CONFLICT" {
		t.Fatalf("unexpected envelope: %+v", got)
	}
}
