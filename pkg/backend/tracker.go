package backend

import (
	"context"
	"math"
	"sync"

	apperrors "github.com/menta2k/facade-measure/internal/errors"
	"github.com/menta2k/facade-measure/internal/logger"
	"github.com/menta2k/facade-measure/pkg/calibration"
)

// Status is the bookkeeping for one action
type Status struct {
	Loading bool
	Result  *Response
	Err     string
}

// Tracker runs submissions in the background and records loading, result
// and error per action. A new submission for an action replaces its
// previous error but keeps its previous result until the new one arrives.
type Tracker struct {
	proc Processor

	mu     sync.Mutex
	status map[Action]Status
	wg     sync.WaitGroup
}

// NewTracker creates a tracker that submits through proc
func NewTracker(proc Processor) *Tracker {
	return &Tracker{proc: proc, status: make(map[Action]Status)}
}

// Submit dispatches req in a goroutine
func (t *Tracker) Submit(ctx context.Context, req Request) {
	t.mu.Lock()
	st := t.status[req.Action]
	st.Loading = true
	st.Err = ""
	t.status[req.Action] = st
	t.mu.Unlock()

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		resp, err := t.proc.Process(ctx, req)

		t.mu.Lock()
		defer t.mu.Unlock()
		st := t.status[req.Action]
		st.Loading = false
		if err != nil {
			st.Err = err.Error()
			if st.Err == "" {
				st.Err = "unknown error"
			}
			logger.WithError(err).WithField("action", req.Action).Warn("Processing failed")
		} else {
			st.Result = resp
		}
		t.status[req.Action] = st
	}()
}

// SubmitCalibration sends the calibration snapshot to every measurement
// action with its scale
func (t *Tracker) SubmitCalibration(ctx context.Context, res calibration.Result) error {
	if len(res.Snapshot) == 0 {
		return apperrors.NewImageNotReadyError("calibration snapshot is empty")
	}
	scale := float64(res.Scale)
	if !(scale > 0) || math.IsInf(scale, 0) {
		return apperrors.NewInvalidDistanceError("scale", nil)
	}
	for _, a := range MeasurementActions() {
		t.Submit(ctx, Request{
			Image:       res.Snapshot,
			Filename:    "escala.jpg",
			ContentType: "image/jpeg",
			Action:      a,
			Scale:       &scale,
		})
	}
	return nil
}

// Wait blocks until every dispatched submission has finished
func (t *Tracker) Wait() {
	t.wg.Wait()
}

// Status returns the bookkeeping for action
func (t *Tracker) Status(action Action) Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status[action]
}

// Loading reports whether any action is in flight
func (t *Tracker) Loading() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, st := range t.status {
		if st.Loading {
			return true
		}
	}
	return false
}

// Snapshot copies the whole status table
func (t *Tracker) Snapshot() map[Action]Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[Action]Status, len(t.status))
	for k, v := range t.status {
		out[k] = v
	}
	return out
}
