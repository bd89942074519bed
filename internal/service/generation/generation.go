// Package generation defines the chat-completion capability used by the turn
// pipeline and the errors every backend reports.
package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Client turns a single prompt into a single reply. Implementations block until
// the backend answers or ctx expires.
type Client interface {
	Name() string
	Generate(ctx context.Context, prompt string) (string, error)
}

// CredentialChecker is implemented by clients that need a secret before they
// can generate. The pipeline calls it before every generation.
type CredentialChecker interface {
	CheckCredential() error
}

// ErrMissingCredential is wrapped by AuthError when no secret is configured.
var ErrMissingCredential = errors.New("api key not configured")

// AuthError reports a missing or rejected credential.
type AuthError struct {
	Backend string
	Err     error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: authentication failed: %v", e.Backend, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// BackendError reports a non-success answer from the provider.
type BackendError struct {
	Backend    string
	StatusCode int
	Body       string
}

func (e *BackendError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: status %d: %s", e.Backend, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("%s: %s", e.Backend, e.Body)
}

// TimeoutError reports a provider that did not answer in time.
type TimeoutError struct {
	Backend string
	After   time.Duration
}

func (e *TimeoutError) Error() string {
	if e.After > 0 {
		return fmt.Sprintf("%s: no response after %s", e.Backend, e.After)
	}
	return fmt.Sprintf("%s: request timed out", e.Backend)
}

// Timeout satisfies the net.Error style check.
func (e *TimeoutError) Timeout() bool { return true }

// Describe renders err as the inline text shown in place of a reply.
func Describe(err error) string {
	var (
		authErr    *AuthError
		backendErr *BackendError
		timeoutErr *TimeoutError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &authErr):
		return "❌ Chat error: please check your API key (" + authErr.Err.Error() + ")"
	case errors.As(err, &backendErr):
		body := strings.TrimSpace(backendErr.Body)
		if body == "" {
			body = fmt.Sprintf("status %d", backendErr.StatusCode)
		}
		return "❌ Chat error: " + body
	case errors.As(err, &timeoutErr):
		return "❌ Chat error: the assistant took too long to answer, please try again."
	default:
		return "❌ Chat error: " + err.Error()
	}
}

// Classify converts a transport failure into one of the typed errors. ctx is the
// context the call ran under so deadline expiry maps to TimeoutError.
func Classify(ctx context.Context, backend string, err error) error {
	if err == nil {
		return nil
	}
	var (
		authErr    *AuthError
		backendErr *BackendError
		timeoutErr *TimeoutError
	)
	if errors.As(err, &authErr) || errors.As(err, &backendErr) || errors.As(err, &timeoutErr) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &TimeoutError{Backend: backend, After: remainingBudget(ctx)}
	}
	return &BackendError{Backend: backend, Body: err.Error()}
}

func remainingBudget(ctx context.Context) time.Duration {
	if budget, ok := ctx.Value(budgetKey{}).(time.Duration); ok {
		return budget
	}
	return 0
}

type budgetKey struct{}

// WithTimeout bounds one external call and remembers the budget so a
// TimeoutError can report it.
func WithTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(context.WithValue(ctx, budgetKey{}, d), d)
}

// KeySource yields the current API key. It is consulted on every call so a
// secret added after startup is picked up without a restart.
type KeySource interface {
	Lookup() (string, bool)
}

// StaticKey is a KeySource with a fixed value; empty means "not configured".
type StaticKey string

// Lookup implements KeySource.
func (k StaticKey) Lookup() (string, bool) {
	v := strings.TrimSpace(string(k))
	return v, v != ""
}
