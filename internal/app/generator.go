package app

import (
	"context"
	"errors"
	"fmt"

	"crisis-quiz-service/internal/config"
)

// TextGenerator is the external text-generation service: prompt in, free text out.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// FallbackGenerator tries the primary credential and, on failure, the secondary one.
// The parser never learns which credential produced the text.
type FallbackGenerator struct {
	primary   TextGenerator
	secondary TextGenerator
}

// NewFallbackGenerator accepts a nil secondary, in which case no retry happens.
func NewFallbackGenerator(primary, secondary TextGenerator) *FallbackGenerator {
	return &FallbackGenerator{primary: primary, secondary: secondary}
}

func (g *FallbackGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	text, err := g.primary.Generate(ctx, prompt)
	if err == nil {
		return text, nil
	}
	if g.secondary == nil || errors.Is(err, context.Canceled) {
		return "", err
	}
	config.WithContext(ctx).WithError(err).Warn("primary generator failed, trying fallback")
	text, fbErr := g.secondary.Generate(ctx, prompt)
	if fbErr != nil {
		return "", fmt.Errorf("fallback generator: %w", errors.Join(err, fbErr))
	}
	return text, nil
}
