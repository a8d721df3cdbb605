package backend

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	apperrors "github.com/menta2k/facade-measure/internal/errors"
	"github.com/menta2k/facade-measure/pkg/calibration"
)

var fakePNG = []byte("\x89PNG\r\n\x1a\nprocessed")

type captured struct {
	action, scale, filename, requestedWith string
	image                                  []byte
}

func newTestServer(t *testing.T, status int) (*httptest.Server, *[]captured, *sync.Mutex) {
	t.Helper()
	var (
		mu   sync.Mutex
		seen []captured
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != DefaultEndpoint {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f, hdr, err := r.FormFile("image")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		data, _ := io.ReadAll(f)
		f.Close()

		mu.Lock()
		seen = append(seen, captured{
			action:        r.FormValue("action"),
			scale:         r.FormValue("scale"),
			filename:      hdr.Filename,
			requestedWith: r.Header.Get("X-Requested-With"),
			image:         data,
		})
		mu.Unlock()

		if status != http.StatusOK {
			http.Error(w, "model failed", status)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(fakePNG)
	}))
	t.Cleanup(srv.Close)
	return srv, &seen, &mu
}

func TestProcessSendsMultipartForm(t *testing.T) {
	srv, seen, _ := newTestServer(t, http.StatusOK)
	c, err := NewClient(Config{BaseURL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	scale := 0.025
	resp, err := c.Process(context.Background(), Request{
		Image:    []byte("jpeg-bytes"),
		Filename: "facade.jpg",
		Action:   ActionMeasureLabeled,
		Scale:    &scale,
	})
	if err != nil {
		t.Fatal(err)
	}
	if string(resp.Data) != string(fakePNG) || resp.ContentType != "image/png" || resp.Action != ActionMeasureLabeled {
		t.Errorf("Unexpected response %+v", resp)
	}

	if len(*seen) != 1 {
		t.Fatalf("Expected one request, got %d", len(*seen))
	}
	got := (*seen)[0]
	if got.action != "medir_yolo_con_medidas" || got.scale != "0.025" || got.filename != "facade.jpg" {
		t.Errorf("Unexpected form %+v", got)
	}
	if got.requestedWith != "XMLHttpRequest" {
		t.Errorf("Missing X-Requested-With header")
	}
	if string(got.image) != "jpeg-bytes" {
		t.Errorf("Image bytes not forwarded")
	}
}

func TestProcessOmitsScale(t *testing.T) {
	srv, seen, _ := newTestServer(t, http.StatusOK)
	c, _ := NewClient(Config{BaseURL: srv.URL})
	if _, err := c.Process(context.Background(), Request{Image: []byte("x"), Action: ActionRemoveU2Net}); err != nil {
		t.Fatal(err)
	}
	if (*seen)[0].scale != "" {
		t.Errorf("Scale sent for an action without one: %q", (*seen)[0].scale)
	}
}

func TestProcessErrors(t *testing.T) {
	srv, _, _ := newTestServer(t, http.StatusInternalServerError)
	c, _ := NewClient(Config{BaseURL: srv.URL})

	_, err := c.Process(context.Background(), Request{Image: []byte("x"), Action: ActionRemove})
	if !apperrors.IsType(err, apperrors.ErrorTypeNetwork) {
		t.Errorf("Expected network error, got %v", err)
	}
	_, err = c.Process(context.Background(), Request{Action: ActionRemove})
	if !errors.Is(err, apperrors.ErrImageNotReady) {
		t.Errorf("Expected image-not-ready, got %v", err)
	}
	_, err = c.Process(context.Background(), Request{Image: []byte("x"), Action: "explode"})
	if !apperrors.IsType(err, apperrors.ErrorTypeValidation) {
		t.Errorf("Expected validation error, got %v", err)
	}
}

func TestNewClientRejectsBadURL(t *testing.T) {
	if _, err := NewClient(Config{BaseURL: "ftp://host"}); err == nil {
		t.Error("Expected an error for an ftp URL")
	}
	c, err := NewClient(Config{BaseURL: "http://host:8000/ignored"})
	if err != nil {
		t.Fatal(err)
	}
	if c.Endpoint() != "http://host:8000/api/procesar-imagen/" {
		t.Errorf("Unexpected endpoint %q", c.Endpoint())
	}
}

func TestActions(t *testing.T) {
	if len(Actions()) != 10 {
		t.Errorf("Expected 10 actions, got %d", len(Actions()))
	}
	for _, a := range MeasurementActions() {
		if !a.NeedsScale() {
			t.Errorf("%s should need a scale", a)
		}
	}
	if ActionEnhance.NeedsScale() || ActionRemove.NeedsScale() {
		t.Error("Only measurement actions take a scale")
	}
	if a, err := ParseAction("remover_basnet"); err != nil || a != ActionRemoveBASNet {
		t.Errorf("ParseAction failed: %v %v", a, err)
	}
}

func TestTrackerSubmitCalibration(t *testing.T) {
	srv, seen, mu := newTestServer(t, http.StatusOK)
	c, _ := NewClient(Config{BaseURL: srv.URL})
	tr := NewTracker(c)

	err := tr.SubmitCalibration(context.Background(), calibration.Result{Scale: 0.5, Snapshot: []byte("snap")})
	if err != nil {
		t.Fatal(err)
	}
	tr.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(*seen) != 3 {
		t.Fatalf("Expected 3 requests, got %d", len(*seen))
	}
	for _, req := range *seen {
		if req.scale != "0.5" {
			t.Errorf("%s sent scale %q", req.action, req.scale)
		}
	}
	for _, a := range MeasurementActions() {
		st := tr.Status(a)
		if st.Loading || st.Err != "" || st.Result == nil {
			t.Errorf("%s: unexpected status %+v", a, st)
		}
	}
	if tr.Loading() {
		t.Error("Tracker still loading after Wait")
	}
}

type failingProcessor struct{}

func (failingProcessor) Process(ctx context.Context, req Request) (*Response, error) {
	return nil, apperrors.NewNetworkError("unreachable", nil)
}

func TestTrackerRecordsErrors(t *testing.T) {
	tr := NewTracker(failingProcessor{})
	tr.Submit(context.Background(), Request{Image: []byte("x"), Action: ActionEnhance})
	tr.Wait()

	st := tr.Status(ActionEnhance)
	if st.Loading || st.Err == "" || st.Result != nil {
		t.Errorf("Unexpected status %+v", st)
	}
	if len(tr.Snapshot()) != 1 {
		t.Error("Expected one tracked action")
	}
}

func TestTrackerRejectsEmptySnapshot(t *testing.T) {
	tr := NewTracker(failingProcessor{})
	if err := tr.SubmitCalibration(context.Background(), calibration.Result{Scale: 1}); !errors.Is(err, apperrors.ErrImageNotReady) {
		t.Errorf("Expected image-not-ready, got %v", err)
	}
	if err := tr.SubmitCalibration(context.Background(), calibration.Result{Snapshot: []byte("x")}); !errors.Is(err, apperrors.ErrInvalidDistance) {
		t.Errorf("Expected invalid distance, got %v", err)
	}
}
