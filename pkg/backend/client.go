// Package backend submits images to the remote processing service that
// removes backgrounds, enhances photos and runs the automatic façade
// measurement models.
package backend

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	apperrors "github.com/menta2k/facade-measure/internal/errors"
	"github.com/menta2k/facade-measure/internal/logger"
)

// DefaultEndpoint is the processing route on the service
const DefaultEndpoint = "/api/procesar-imagen/"

// Action names one processing operation understood by the service
type Action string

const (
	ActionRemove           Action = "remover"
	ActionRemoveCarvekit   Action = "remover_carvekit"
	ActionRemoveBlurFusion Action = "remover_blurfusion"
	ActionRemoveBriaAI     Action = "remover_briaai"
	ActionRemoveU2Net      Action = "remover_u2net"
	ActionRemoveBASNet     Action = "remover_basnet"
	ActionEnhance          Action = "mejorar_s"
	ActionMeasureOriginal  Action = "medir_yolo_original"
	ActionMeasureLabeled   Action = "medir_yolo_con_medidas"
	ActionMeasureLinesOnly Action = "medir_yolo_solo_lineas"
)

// RemovalActions are the background-removal models, in menu order
func RemovalActions() []Action {
	return []Action{ActionRemove, ActionRemoveCarvekit, ActionRemoveBlurFusion, ActionRemoveBriaAI, ActionRemoveU2Net, ActionRemoveBASNet}
}

// MeasurementActions are dispatched together after a calibration
func MeasurementActions() []Action {
	return []Action{ActionMeasureOriginal, ActionMeasureLabeled, ActionMeasureLinesOnly}
}

// Actions lists every known action
func Actions() []Action {
	out := append(RemovalActions(), ActionEnhance)
	return append(out, MeasurementActions()...)
}

// NeedsScale reports whether the action consumes a calibrated scale
func (a Action) NeedsScale() bool {
	for _, m := range MeasurementActions() {
		if a == m {
			return true
		}
	}
	return false
}

// ParseAction validates an action name
func ParseAction(s string) (Action, error) {
	for _, a := range Actions() {
		if string(a) == s {
			return a, nil
		}
	}
	return "", apperrors.NewValidationError(fmt.Sprintf("unknown action %q", s), nil)
}

// Request is one multipart submission
type Request struct {
	Image       []byte
	Filename    string
	ContentType string
	Action      Action
	// Scale is sent only when set
	Scale *float64
}

// Response is the processed image returned by the service
type Response struct {
	Action      Action
	Data        []byte
	ContentType string
}

// Processor is implemented by Client and by test fakes
type Processor interface {
	Process(ctx context.Context, req Request) (*Response, error)
}

// Config holds the client settings
type Config struct {
	BaseURL  string
	Endpoint string
	Timeout  time.Duration
}

// Client talks to the processing service
type Client struct {
	endpoint string
	http     *http.Client
	log      *logrus.Entry
}

// NewClient creates a client for the service at cfg.BaseURL
func NewClient(cfg Config) (*Client, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, apperrors.NewValidationError(fmt.Sprintf("unsupported URL scheme %q", base.Scheme), nil)
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	ref, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 300 * time.Second
	}
	return &Client{
		endpoint: base.ResolveReference(ref).String(),
		http:     &http.Client{Timeout: timeout},
		log:      logger.WithField("component", "backend"),
	}, nil
}

// Endpoint returns the resolved processing URL
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Process uploads req and returns the processed image
func (c *Client) Process(ctx context.Context, req Request) (*Response, error) {
	if len(req.Image) == 0 {
		return nil, apperrors.NewImageNotReadyError("no image to submit")
	}
	if _, err := ParseAction(string(req.Action)); err != nil {
		return nil, err
	}

	body, contentType, err := encodeForm(req)
	if err != nil {
		return nil, apperrors.NewProcessingError("failed to build form", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("X-Requested-With", "XMLHttpRequest")

	start := time.Now()
	log := c.log.WithField("action", req.Action)
	log.Debug("Submitting image")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, apperrors.NewNetworkError(fmt.Sprintf("%s request failed", req.Action), err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.NewNetworkError("failed to read response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apperrors.NewNetworkError(fmt.Sprintf("%s: HTTP %d: %s", req.Action, resp.StatusCode, snippet(data)), nil)
	}

	ct := resp.Header.Get("Content-Type")
	if ct == "" || strings.HasPrefix(ct, "application/octet-stream") {
		ct = "image/png"
	}
	log.WithFields(logrus.Fields{
		"bytes":    len(data),
		"duration": time.Since(start).String(),
	}).Info("Processing complete")

	return &Response{Action: req.Action, Data: data, ContentType: ct}, nil
}

func encodeForm(req Request) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	filename := req.Filename
	if filename == "" {
		filename = "image.jpg"
	}
	ct := req.ContentType
	if ct == "" {
		ct = http.DetectContentType(req.Image)
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename=%q`, filename))
	h.Set("Content-Type", ct)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(req.Image); err != nil {
		return nil, "", err
	}
	if err := w.WriteField("action", string(req.Action)); err != nil {
		return nil, "", err
	}
	if req.Scale != nil {
		if err := w.WriteField("scale", strconv.FormatFloat(*req.Scale, 'f', -1, 64)); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
