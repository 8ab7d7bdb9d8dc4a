package app

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"crisis-quiz-service/internal/config"
	"crisis-quiz-service/internal/domain"
	"crisis-quiz-service/internal/generation"
)

// Scenarios is the enumerated set of crisis categories topics are drawn from.
var Scenarios = []string{
	"wildlife encounter",
	"building collapse",
	"earthquake",
	"fire",
	"accident",
	"elevator failure",
	"bridge collapse",
	"nuclear disaster",
	"chemical spill",
	"sea tornado",
	"flood situation",
	"cloud burst",
}

// ModePolicy describes how a game mode picks its topic and treats short results.
type ModePolicy struct {
	Mode domain.GameMode
	// FixedTopic is used when set; otherwise a topic is drawn from Scenarios.
	FixedTopic string
	// Frame turns the chosen topic into the topic text of the prompt.
	Frame func(topic string) string
	Label func(topic string) string
	// Strict modes require the full question count.
	Strict bool
}

// DefaultModes returns the built-in game modes.
func DefaultModes() map[domain.GameMode]ModePolicy {
	plain := func(topic string) string { return topic }
	modes := []ModePolicy{
		{
			Mode:  domain.ModeMultiplayer,
			Frame: plain,
			Label: func(topic string) string { return "AI-generated " + topic + " scenario" },
		},
		{
			Mode:  domain.ModeSinglePlayer,
			Frame: plain,
			Label: func(topic string) string { return topic + " Challenge" },
		},
		{
			Mode: domain.ModeRealWorldCrisis,
			Frame: func(topic string) string {
				return "real-world crisis (like pandemics, cyberattacks and economic downturns) involving a " + topic
			},
			Label: func(topic string) string { return "Real-World Crisis: " + topic },
		},
		{
			Mode:       domain.ModeCrisisOlympics,
			FixedTopic: "hurricane, earthquake or pandemic",
			Frame:      plain,
			Label: func(string) string {
				return "You are participating in Crisis Olympics. Respond quickly to manage a crisis situation!"
			},
			Strict: true,
		},
		{
			Mode:       domain.ModeAIVsCrisis,
			FixedTopic: generation.DefaultTopic,
			Frame:      plain,
			Label:      func(string) string { return "Compete against AI in a Crisis Scenario Challenge!" },
			Strict:     true,
		},
	}
	out := make(map[domain.GameMode]ModePolicy, len(modes))
	for _, m := range modes {
		out[m.Mode] = m
	}
	return out
}

// QuestionCache stores generated sets under an explicit key.
type QuestionCache interface {
	Lookup(ctx context.Context, key string) (domain.QuestionSet, bool)
	GetOrLoad(ctx context.Context, key string, load func(context.Context) (domain.QuestionSet, error)) (domain.QuestionSet, error)
}

// RateLimiter caps how often a key may trigger a real generation.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// QuestionArchive keeps every complete set that was generated.
type QuestionArchive interface {
	SaveSet(ctx context.Context, mode domain.GameMode, set domain.QuestionSet) error
	RandomQuestion(ctx context.Context) (domain.ArchivedQuestion, error)
}

// QuestionService turns a game mode into a parsed QuestionSet.
type QuestionService struct {
	generator TextGenerator
	cache     QuestionCache
	limiter   RateLimiter
	archive   QuestionArchive
	modes     map[domain.GameMode]ModePolicy
	intn      func(n int) int
	// loadTimeout bounds a shared load, which no longer follows any caller's ctx.
	loadTimeout time.Duration
}

// DefaultLoadTimeout bounds one shared generation including its retry.
const DefaultLoadTimeout = 90 * time.Second

func NewQuestionService(generator TextGenerator, cache QuestionCache, limiter RateLimiter, archive QuestionArchive) *QuestionService {
	return &QuestionService{
		generator: generator,
		cache:     cache,
		limiter:   limiter,
		archive:   archive,
		modes:     DefaultModes(),
		intn:      rand.Intn,

		loadTimeout: DefaultLoadTimeout,
	}
}

// NewQuestionServiceWithPicker is test-only for deterministic topic selection.
func NewQuestionServiceWithPicker(generator TextGenerator, cache QuestionCache, limiter RateLimiter, archive QuestionArchive, intn func(int) int) *QuestionService {
	s := NewQuestionService(generator, cache, limiter, archive)
	s.intn = intn
	return s
}

// CacheKey is the explicit cache key for a mode and requested topic.
func CacheKey(mode domain.GameMode, topic string) string {
	topic = strings.ToLower(strings.TrimSpace(topic))
	if topic == "" {
		topic = "random"
	}
	return "questions:" + string(mode) + ":" + topic
}

// Generate returns the question set for mode. A caller-supplied topic overrides
// the mode's own selection. Lenient modes may return a non-empty set together
// with a *domain.PartialResultError; strict modes fail with ErrGenerationFailed
// unless the full count was recovered.
func (s *QuestionService) Generate(ctx context.Context, userID string, mode domain.GameMode, topic string) (domain.QuestionSet, error) {
	policy, ok := s.modes[mode]
	if !ok {
		return domain.QuestionSet{}, domain.ErrUnknownMode
	}
	key := CacheKey(mode, topic)
	if set, ok := s.cache.Lookup(ctx, key); ok {
		return set, nil
	}

	// Every caller that would trigger or join a generation pays its own quota.
	if s.limiter != nil {
		allowed, err := s.limiter.Allow(ctx, "generate:"+userID)
		if err != nil {
			config.WithContext(ctx).WithError(err).Warn("rate limiter unavailable, allowing request")
		} else if !allowed {
			return domain.QuestionSet{}, domain.ErrRateLimited
		}
	}

	return s.cache.GetOrLoad(ctx, key, func(loadCtx context.Context) (domain.QuestionSet, error) {
		if s.loadTimeout > 0 {
			var cancel context.CancelFunc
			loadCtx, cancel = context.WithTimeout(loadCtx, s.loadTimeout)
			defer cancel()
		}
		return s.generate(loadCtx, policy, topic)
	})
}

func (s *QuestionService) generate(ctx context.Context, policy ModePolicy, topic string) (domain.QuestionSet, error) {
	log := config.WithContext(ctx).WithField("mode", policy.Mode)

	topic = strings.TrimSpace(topic)
	if topic == "" {
		topic = policy.FixedTopic
	}
	if topic == "" {
		topic = Scenarios[s.intn(len(Scenarios))]
	}
	log = log.WithField("topic", topic)

	req := domain.NewScenarioRequest(policy.Frame(topic))
	prompt := generation.BuildPrompt(req)
	parser := generation.ParserFor(req)
	label := policy.Label(topic)

	var (
		set     domain.QuestionSet
		lastErr error
	)
	for attempt := 1; attempt <= 2; attempt++ {
		raw, err := s.generator.Generate(ctx, prompt)
		if err != nil {
			log.WithError(err).Error("text generation failed")
			return domain.QuestionSet{}, fmt.Errorf("%w: %w", domain.ErrGenerationFailed, err)
		}
		log.Debugf("raw generation result:\n%s", raw)

		set, err = parser.Parse(raw, label)
		if errors.Is(err, domain.ErrEmptyResponse) {
			log.Warn("text generation returned empty response")
			return domain.QuestionSet{}, fmt.Errorf("%w: %w", domain.ErrGenerationFailed, err)
		}
		if err == nil {
			s.archiveSet(ctx, policy.Mode, set)
			return set, nil
		}

		lastErr = err
		log.WithField("attempt", attempt).Warnf("%v", err)
		if !policy.Strict && len(set.Questions) > 0 {
			return set, err
		}
	}
	return domain.QuestionSet{}, fmt.Errorf("%w: %w", domain.ErrGenerationFailed, lastErr)
}

func (s *QuestionService) archiveSet(ctx context.Context, mode domain.GameMode, set domain.QuestionSet) {
	if s.archive == nil {
		return
	}
	if err := s.archive.SaveSet(ctx, mode, set); err != nil {
		config.WithContext(ctx).WithError(err).Warn("failed to archive question set")
	}
}

// RandomQuestion returns one previously generated question.
func (s *QuestionService) RandomQuestion(ctx context.Context) (domain.ArchivedQuestion, error) {
	if s.archive == nil {
		return domain.ArchivedQuestion{}, domain.ErrNoQuestions
	}
	return s.archive.RandomQuestion(ctx)
}
