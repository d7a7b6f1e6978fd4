package branch

import (
	"context"
	"sync"

	"github.com/Sternrassler/branchdesk/pkg/client"
	"github.com/Sternrassler/branchdesk/pkg/logging"
	"github.com/Sternrassler/branchdesk/pkg/resource"
	"github.com/rs/zerolog"
)

// Form messages.
const (
	MsgCreated      = "Branch created successfully."
	MsgUpdated      = "Branch updated successfully."
	MsgCreateFailed = "Failed to create branch."
	MsgUpdateFailed = "Failed to update branch."
	MsgLoadFailed   = "Failed to load branch data."
)

// Notifier receives user-facing form results.
type Notifier interface {
	Success(message string)
	Error(message string)
}

// LogNotifier writes form results to a zerolog logger.
type LogNotifier struct {
	Logger zerolog.Logger
}

// Success logs message at info level.
func (n LogNotifier) Success(message string) {
	n.Logger.Info().Msg(message)
}

// Error logs message at error level.
func (n LogNotifier) Error(message string) {
	n.Logger.Error().Msg(message)
}

// FormState is a snapshot of the form.
type FormState struct {
	Fields         Branch
	IsLoading      bool
	IsSubmitting   bool
	IsSuccess      bool
	ErrorMessage   string
	SuccessMessage string
	Err            *client.APIError
}

// EditMode reports whether the form holds an existing branch.
func (s FormState) EditMode() bool {
	return s.Fields.ID != 0
}

// FieldErrors maps field names to the server's validation messages.
func (s FormState) FieldErrors() map[string]string {
	out := make(map[string]string)
	if s.Err == nil {
		return out
	}
	for _, fe := range s.Err.FieldErrors {
		if _, seen := out[fe.Field]; !seen {
			out[fe.Field] = fe.Message
		}
	}
	return out
}

// Form loads, creates and updates a single branch.
type Form struct {
	svc      *Service
	notifier Notifier
	logger   zerolog.Logger

	mu    sync.Mutex
	state FormState
}

// NewForm creates a form over svc. A nil notifier logs results.
func NewForm(svc *Service, notifier Notifier) *Form {
	logger := logging.NewLogger("branch-form")
	if notifier == nil {
		notifier = LogNotifier{Logger: logger}
	}
	return &Form{svc: svc, notifier: notifier, logger: logger}
}

// State returns a snapshot of the form.
func (f *Form) State() FormState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// SetFields replaces the editable fields. The ID is kept.
func (f *Form) SetFields(b Branch) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b.ID = f.state.Fields.ID
	f.state.Fields = b
}

// Reset clears fields and messages.
func (f *Form) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = FormState{}
}

// Load resets the form and fills it with branch id (edit mode).
func (f *Form) Load(ctx context.Context, id resource.ID) bool {
	f.mu.Lock()
	f.state = FormState{IsLoading: true}
	f.mu.Unlock()

	out := f.svc.Find(ctx, id)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.state.IsLoading = false
	if !out.OK() {
		f.state.Err = out.Err
		if unauthorized(out.Err) {
			return false
		}
		f.state.ErrorMessage = messageOr(out.Err, MsgLoadFailed)
		f.logger.Warn().Err(out.Err).Int64("branch_id", id).Msg("Failed to load branch")
		return false
	}
	f.state.Fields = out.Data
	return true
}

// Create stores a new branch from payload.
func (f *Form) Create(ctx context.Context, payload Payload) resource.Outcome[Branch] {
	f.begin()
	out := f.svc.Create(ctx, payload)
	f.finish(out, MsgCreated, MsgCreateFailed)
	return out
}

// Update replaces branch id with payload.
func (f *Form) Update(ctx context.Context, id resource.ID, payload Payload) resource.Outcome[Branch] {
	f.begin()
	out := f.svc.Update(ctx, id, payload)
	f.finish(out, MsgUpdated, MsgUpdateFailed)
	return out
}

// Submit updates the loaded branch in edit mode and creates one otherwise.
func (f *Form) Submit(ctx context.Context, payload Payload) resource.Outcome[Branch] {
	if id := f.State().Fields.ID; id != 0 {
		return f.Update(ctx, id, payload)
	}
	return f.Create(ctx, payload)
}

// SubmitFields submits the form's current fields.
func (f *Form) SubmitFields(ctx context.Context) resource.Outcome[Branch] {
	return f.Submit(ctx, f.State().Fields.Payload())
}

func (f *Form) begin() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state.IsSubmitting = true
	f.state.IsSuccess = false
	f.state.SuccessMessage = ""
	f.state.ErrorMessage = ""
	f.state.Err = nil
}

func (f *Form) finish(out resource.Outcome[Branch], success, failure string) {
	f.mu.Lock()
	f.state.IsSubmitting = false
	if out.OK() {
		f.state.Fields = out.Data
		f.state.SuccessMessage = success
		f.state.IsSuccess = true
	} else {
		f.state.Err = out.Err
		if !unauthorized(out.Err) {
			f.state.ErrorMessage = messageOr(out.Err, failure)
		}
	}
	msg := f.state.SuccessMessage
	if !out.OK() {
		msg = f.state.ErrorMessage
	}
	f.mu.Unlock()

	switch {
	case out.OK():
		f.notifier.Success(msg)
	case unauthorized(out.Err):
		// The session's 401 hook already tore the session down.
	default:
		f.logger.Warn().Err(out.Err).Str("error_class", string(out.Err.Class)).Msg("Branch submit failed")
		f.notifier.Error(msg)
	}
}

func unauthorized(err *client.APIError) bool {
	return err != nil && err.Class == client.ErrorClassUnauthorized
}

func messageOr(err *client.APIError, fallback string) string {
	if err != nil && err.Message != "" {
		return err.Message
	}
	return fallback
}
