package generation

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"crisis-quiz-service/internal/domain"
)

// PolicyWordLimit caps the length of a submitted policy.
const PolicyWordLimit = 300

// MinPolicySimilarity is the lowest scenario/policy cosine similarity accepted
// for an AI-drafted policy.
const MinPolicySimilarity = 0.85

// BuildPolicyScenarioPrompt asks for a short crisis premise a policymaker must act on.
func BuildPolicyScenarioPrompt(theme string) string {
	theme = strings.TrimSpace(theme)
	if theme == "" {
		theme = DefaultTopic
	}
	return fmt.Sprintf("Generate a short, crisp %s scenario where a policymaker must take action. "+
		"Limit it to 2-3 lines. Output only the scenario text, with no heading or commentary.", theme)
}

// BuildPolicyDraftPrompt asks for a policy addressing scenario.
func BuildPolicyDraftPrompt(scenario string) string {
	return fmt.Sprintf("Create a clear, concise policy (max %d words) to address the following scenario:\n\n%q", PolicyWordLimit, scenario)
}

// BuildPolicyEvaluationPrompt asks for a JSON score of policyText.
func BuildPolicyEvaluationPrompt(scenario, policyText string) string {
	var b strings.Builder
	if scenario != "" {
		fmt.Fprintf(&b, "Scenario: %q\n\n", scenario)
	}
	fmt.Fprintf(&b, "Evaluate this crisis policy: %q and score it on:\n", policyText)
	b.WriteString("- Risk Mitigation (0-30)\n")
	b.WriteString("- Decision Effectiveness (0-30)\n")
	b.WriteString("- Ethical & Social Responsibility (0-20)\n")
	b.WriteString("- PASSIONIT-PRUTL Balance (0-20)\n\n")
	b.WriteString("Respond only in this JSON format:\n")
	b.WriteString(`{
  "riskMitigationScore": <number>,
  "decisionEffectivenessScore": <number>,
  "ethicalResponsibilityScore": <number>,
  "passionitPrutlScore": <number>,
  "totalScore": <number>,
  "evaluationSummary": "<brief explanation>"
}`)
	return b.String()
}

// ParsePolicyEvaluation decodes the JSON object embedded in raw. Scores are
// clamped to their ranges and the total is recomputed from the parts.
func ParsePolicyEvaluation(raw string) (domain.PolicyEvaluation, error) {
	var eval domain.PolicyEvaluation
	clean := strings.TrimSpace(strings.ReplaceAll(fenceLine.ReplaceAllString(raw, ""), "```", ""))
	if clean == "" {
		return eval, domain.ErrEmptyResponse
	}
	start := strings.Index(clean, "{")
	end := strings.LastIndex(clean, "}")
	if start < 0 || end < start {
		return eval, fmt.Errorf("policy evaluation: no JSON object in response: %w", domain.ErrGenerationFailed)
	}
	if err := json.Unmarshal([]byte(clean[start:end+1]), &eval); err != nil {
		return eval, fmt.Errorf("policy evaluation: decode: %w", err)
	}

	eval.RiskMitigation = clamp(eval.RiskMitigation, 30)
	eval.DecisionEffectiveness = clamp(eval.DecisionEffectiveness, 30)
	eval.EthicalResponsibility = clamp(eval.EthicalResponsibility, 20)
	eval.Balance = clamp(eval.Balance, 20)
	eval.Total = eval.RiskMitigation + eval.DecisionEffectiveness + eval.EthicalResponsibility + eval.Balance
	eval.Summary = strings.TrimSpace(stripEmphasis(eval.Summary))
	return eval, nil
}

// CosineSimilarity compares two embedding vectors. Vectors of different length
// or with zero magnitude have similarity 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// WordCount counts whitespace-separated words.
func WordCount(s string) int {
	return len(strings.Fields(s))
}

func clamp(v, max int) int {
	if v < 0 {
		return 0
	}
	if v > max {
		return max
	}
	return v
}
