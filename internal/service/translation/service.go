package translation

import (
	"context"
	"log"
	"strings"
)

// Error carries a provider failure. Error() is the inline message shown in
// place of the reply.
type Error struct {
	Target string
	Err    error
}

func (e *Error) Error() string {
	return "Translation error: " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Service translates replies out of the default language.
type Service struct {
	provider        Provider
	defaultLanguage string
}

// NewService 创建翻译服务；defaultLanguage 为空时使用 English
func NewService(provider Provider, defaultLanguage string) *Service {
	code, ok := ResolveLanguage(defaultLanguage)
	if !ok {
		code = DefaultLanguage
	}
	return &Service{provider: provider, defaultLanguage: code}
}

// DefaultLanguage returns the code replies are produced in.
func (s *Service) DefaultLanguage() string {
	return s.defaultLanguage
}

// Translate renders text in target (name or code). Translating into the default
// language returns text untouched without calling the provider. On failure the
// returned text is the inline error message and err is a *Error.
func (s *Service) Translate(ctx context.Context, text, target string) (string, error) {
	code, ok := ResolveLanguage(target)
	if !ok && strings.TrimSpace(target) == "" {
		code, ok = s.defaultLanguage, true
	}
	if ok && code == s.defaultLanguage {
		return text, nil
	}
	if !ok {
		code = strings.TrimSpace(target)
	}

	translated, err := s.provider.Translate(ctx, text, "auto", code)
	if err != nil {
		terr := &Error{Target: code, Err: err}
		log.Printf("[translation] %s: %v", code, err)
		return terr.Error(), terr
	}
	return translated, nil
}
