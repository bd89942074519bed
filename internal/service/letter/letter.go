// Package letter writes short letters "to the world" from the perspective of
// someone remembered, in a chosen emotional register.
package letter

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/zhouzirui/emoaid/backend/internal/service/generation"
)

// Emotion is the register a letter is written in.
type Emotion string

const (
	Hope    Emotion = "Hope"
	Grief   Emotion = "Grief"
	Joy     Emotion = "Joy"
	Anger   Emotion = "Anger"
	Longing Emotion = "Longing"
)

var (
	ErrMissingFields  = errors.New("please fill in both the person and the memory")
	ErrUnknownEmotion = errors.New("unknown emotion")
)

// Emotions lists the selectable emotions in display order.
func Emotions() []Emotion {
	return []Emotion{Hope, Grief, Joy, Anger, Longing}
}

// ParseEmotion matches case-insensitively; empty means Hope.
func ParseEmotion(raw string) (Emotion, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Hope, nil
	}
	for _, e := range Emotions() {
		if strings.EqualFold(string(e), raw) {
			return e, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownEmotion, raw)
}

// Request describes the letter to write.
type Request struct {
	Person  string  `json:"person"`
	Memory  string  `json:"memory"`
	Emotion Emotion `json:"emotion"`
}

// BuildPrompt renders the storyteller prompt. Both text fields are required.
func BuildPrompt(req Request) (string, error) {
	person := strings.TrimSpace(req.Person)
	memory := strings.TrimSpace(req.Memory)
	if person == "" || memory == "" {
		return "", ErrMissingFields
	}
	emotion := req.Emotion
	if emotion == "" {
		emotion = Hope
	}
	return fmt.Sprintf(
		"You are a compassionate storyteller. Write a heartfelt message to the world from the perspective of %s. It should express %s and be inspired by the memory: %s",
		person, strings.ToLower(string(emotion)), memory,
	), nil
}

// Service generates letters through any generation backend.
type Service struct {
	generator   generation.Client
	callTimeout time.Duration
}

func NewService(generator generation.Client, callTimeout time.Duration) *Service {
	return &Service{generator: generator, callTimeout: callTimeout}
}

// Write returns the generated letter. Unlike a chat turn, backend failures are
// returned as errors; Describe(err) gives the user-facing text.
func (s *Service) Write(ctx context.Context, req Request) (string, error) {
	prompt, err := BuildPrompt(req)
	if err != nil {
		return "", err
	}

	if checker, ok := s.generator.(generation.CredentialChecker); ok {
		if err := checker.CheckCredential(); err != nil {
			return "", err
		}
	}

	callCtx, cancel := generation.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	text, err := s.generator.Generate(callCtx, prompt)
	if err != nil {
		err = generation.Classify(callCtx, s.generator.Name(), err)
		log.Printf("[letter] generation via %s failed: %v", s.generator.Name(), err)
		return "", err
	}
	return strings.TrimSpace(text), nil
}
