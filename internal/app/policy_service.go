package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"crisis-quiz-service/internal/config"
	"crisis-quiz-service/internal/domain"
	"crisis-quiz-service/internal/generation"
)

// Embedder turns texts into embedding vectors, one per text and in order.
type Embedder interface {
	Embed(ctx context.Context, texts ...string) ([][]float32, error)
}

// PolicyService drives the policy governance mode: a generated premise and a
// generated evaluation of the player's written policy.
type PolicyService struct {
	generator TextGenerator
	embedder  Embedder
}

func NewPolicyService(generator TextGenerator, embedder Embedder) *PolicyService {
	return &PolicyService{generator: generator, embedder: embedder}
}

func (s *PolicyService) Scenario(ctx context.Context, theme string) (domain.PolicyScenario, error) {
	raw, err := s.generator.Generate(ctx, generation.BuildPolicyScenarioPrompt(theme))
	if err != nil {
		config.WithContext(ctx).WithError(err).Error("policy scenario generation failed")
		return domain.PolicyScenario{}, fmt.Errorf("%w: %w", domain.ErrGenerationFailed, err)
	}
	text := strings.TrimSpace(strings.ReplaceAll(raw, "**", ""))
	if text == "" {
		return domain.PolicyScenario{}, fmt.Errorf("%w: %w", domain.ErrGenerationFailed, domain.ErrEmptyResponse)
	}
	return domain.PolicyScenario{Scenario: text, WordLimit: generation.PolicyWordLimit}, nil
}

func (s *PolicyService) Evaluate(ctx context.Context, scenario, policyText string) (domain.PolicyEvaluation, error) {
	policyText = strings.TrimSpace(policyText)
	if policyText == "" {
		return domain.PolicyEvaluation{}, fmt.Errorf("%w: policy text is required", domain.ErrInvalidInput)
	}
	if n := generation.WordCount(policyText); n > generation.PolicyWordLimit {
		return domain.PolicyEvaluation{}, fmt.Errorf("%w: policy has %d words, limit is %d", domain.ErrInvalidInput, n, generation.PolicyWordLimit)
	}
	return s.evaluate(ctx, strings.TrimSpace(scenario), policyText)
}

// GenerateAndEvaluate drafts a policy for a fresh scenario and scores it.
// When the draft's embedding is not close enough to the scenario's, the run is
// returned with its similarity and ErrPolicyMisaligned, and nothing is evaluated.
func (s *PolicyService) GenerateAndEvaluate(ctx context.Context, theme string) (domain.PolicyRun, error) {
	if s.embedder == nil {
		return domain.PolicyRun{}, fmt.Errorf("%w: no embedder configured", domain.ErrGenerationFailed)
	}
	log := config.WithContext(ctx)

	scenario, err := s.Scenario(ctx, theme)
	if err != nil {
		return domain.PolicyRun{}, err
	}
	run := domain.PolicyRun{Scenario: scenario.Scenario}

	raw, err := s.generator.Generate(ctx, generation.BuildPolicyDraftPrompt(run.Scenario))
	if err != nil {
		log.WithError(err).Error("policy draft generation failed")
		return domain.PolicyRun{}, fmt.Errorf("%w: %w", domain.ErrGenerationFailed, err)
	}
	run.PolicyText = strings.TrimSpace(strings.ReplaceAll(raw, "**", ""))
	if run.PolicyText == "" {
		return domain.PolicyRun{}, fmt.Errorf("%w: %w", domain.ErrGenerationFailed, domain.ErrEmptyResponse)
	}

	vectors, err := s.embedder.Embed(ctx, run.Scenario, run.PolicyText)
	if err != nil {
		log.WithError(err).Error("policy embedding failed")
		return domain.PolicyRun{}, fmt.Errorf("%w: %w", domain.ErrGenerationFailed, err)
	}
	if len(vectors) != 2 {
		return domain.PolicyRun{}, fmt.Errorf("%w: expected 2 embeddings, got %d", domain.ErrGenerationFailed, len(vectors))
	}
	run.Similarity = generation.CosineSimilarity(vectors[0], vectors[1])
	log = log.WithField("similarity", run.Similarity)
	if run.Similarity < generation.MinPolicySimilarity {
		log.Warn("generated policy rejected as misaligned")
		return run, domain.ErrPolicyMisaligned
	}

	// Drafts are asked to stay under the word limit but are not held to it.
	run.Evaluation, err = s.evaluate(ctx, run.Scenario, run.PolicyText)
	if err != nil {
		return domain.PolicyRun{}, err
	}
	log.WithField("total_score", run.Evaluation.Total).Info("generated policy evaluated")
	return run, nil
}

func (s *PolicyService) evaluate(ctx context.Context, scenario, policyText string) (domain.PolicyEvaluation, error) {
	log := config.WithContext(ctx)
	raw, err := s.generator.Generate(ctx, generation.BuildPolicyEvaluationPrompt(scenario, policyText))
	if err != nil {
		log.WithError(err).Error("policy evaluation generation failed")
		return domain.PolicyEvaluation{}, fmt.Errorf("%w: %w", domain.ErrGenerationFailed, err)
	}
	eval, err := generation.ParsePolicyEvaluation(raw)
	if err != nil {
		log.WithError(err).Debugf("unparseable evaluation:\n%s", raw)
		if errors.Is(err, domain.ErrGenerationFailed) {
			return domain.PolicyEvaluation{}, err
		}
		return domain.PolicyEvaluation{}, fmt.Errorf("%w: %w", domain.ErrGenerationFailed, err)
	}
	return eval, nil
}
