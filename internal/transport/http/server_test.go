package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"crisis-quiz-service/internal/app"
	"crisis-quiz-service/internal/auth"
	"crisis-quiz-service/internal/infra/memory"
	"golang.org/x/crypto/bcrypt"
)

type scriptedGenerator struct {
	mu    sync.Mutex
	reply func(prompt string) (string, error)
	calls int
}

func (g *scriptedGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	return g.reply(prompt)
}

func (g *scriptedGenerator) setReply(reply func(prompt string) (string, error)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.reply = reply
}

func (g *scriptedGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func fullQuestions(n int) string {
	var b strings.Builder
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&b, "Question %d: What do you do at step %d?\nA) best\nB) good\nC) poor\nD) worst\n", i, i)
	}
	return b.String()
}

// stubEmbedder maps every text to the same vector until told otherwise.
type stubEmbedder struct {
	mu      sync.Mutex
	vectors [][]float32
}

func (e *stubEmbedder) Embed(_ context.Context, texts ...string) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.vectors != nil {
		return e.vectors, nil
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

func (e *stubEmbedder) set(vectors [][]float32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vectors = vectors
}

type testServer struct {
	*httptest.Server
	gen      *scriptedGenerator
	embedder *stubEmbedder
	issuer   *auth.Issuer
}

func newTestServer(t *testing.T, rateLimit int) *testServer {
	t.Helper()
	gen := &scriptedGenerator{reply: func(prompt string) (string, error) {
		if strings.Contains(prompt, "JSON") {
			return "```json\n{\"riskMitigationScore\": 25, \"decisionEffectivenessScore\": 20, \"ethicalResponsibilityScore\": 15, \"passionitPrutlScore\": 10, \"totalScore\": 70, \"evaluationSummary\": \"Solid plan\"}\n```", nil
		}
		if strings.Contains(prompt, "multiple-choice") {
			return fullQuestions(5), nil
		}
		return "A chemical plant is leaking near a school.", nil
	}}
	embedder := &stubEmbedder{}
	issuer, err := auth.NewIssuer("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("issuer: %v", err)
	}

	questions := app.NewQuestionService(
		gen,
		memory.NewQuestionCache(time.Minute),
		memory.NewRateLimiter(rateLimit, time.Minute),
		memory.NewQuestionArchive(),
	)
	router := NewRouter(RouterConfig{
		Questions: questions,
		Policy:    app.NewPolicyService(gen, embedder),
		Accounts:  app.NewAccountServiceWithCost(memory.NewUserStore(), issuer, bcrypt.MinCost),
		Rooms:     app.NewRoomService(memory.NewRoomStore(), questions),
		Issuer:    issuer,
	})
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return &testServer{Server: server, gen: gen, embedder: embedder, issuer: issuer}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, s.URL+path, reader)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do %s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var decoded map[string]any
	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err == nil {
		_ = json.Unmarshal(raw, &decoded)
	}
	return resp, decoded
}

// signup registers a player and returns a fresh token.
func (s *testServer) signup(t *testing.T, email, name string) string {
	t.Helper()
	resp, _ := s.do(t, http.MethodPost, "/api/users/signup", "", map[string]string{
		"email": email, "password": "secret", "characterName": name,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("signup status %d", resp.StatusCode)
	}
	resp, body := s.do(t, http.MethodPost, "/api/users/login", "", map[string]string{
		"email": email, "password": "secret",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status %d", resp.StatusCode)
	}
	token, _ := body["token"].(string)
	if token == "" {
		t.Fatalf("expected token in login response, got %v", body)
	}
	return token
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, 5)
	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestSignupLoginAndDuplicates(t *testing.T) {
	srv := newTestServer(t, 5)
	srv.signup(t, "Ada@Example.com", "Ada")

	resp, _ := srv.do(t, http.MethodPost, "/api/users/signup", "", map[string]string{
		"email": "ada@example.com", "password": "x", "characterName": "Other",
	})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate email, got %d", resp.StatusCode)
	}

	resp, _ = srv.do(t, http.MethodPost, "/api/users/login", "", map[string]string{
		"email": "ada@example.com", "password": "wrong",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong password, got %d", resp.StatusCode)
	}

	resp, _ = srv.do(t, http.MethodPost, "/api/users/signup", "", map[string]string{"email": "x@y.z"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing fields, got %d", resp.StatusCode)
	}
}

func TestQuestionsRequireToken(t *testing.T) {
	srv := newTestServer(t, 5)
	resp, _ := srv.do(t, http.MethodPost, "/api/singleplayer/questions", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	resp, _ = srv.do(t, http.MethodPost, "/api/singleplayer/questions", "not-a-token", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for invalid token, got %d", resp.StatusCode)
	}
}

func TestQuestionsFlow(t *testing.T) {
	srv := newTestServer(t, 5)
	token := srv.signup(t, "ada@example.com", "Ada")

	resp, body := srv.do(t, http.MethodPost, "/api/singleplayer/questions", token, map[string]string{"topic": "earthquake"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d (%v)", resp.StatusCode, body)
	}
	if body["scenario"] != "earthquake Challenge" {
		t.Fatalf("unexpected scenario %v", body["scenario"])
	}
	if body["partial"] != false {
		t.Fatalf("expected full set, got %v", body)
	}
	questions, _ := body["questions"].([]any)
	if len(questions) != 5 {
		t.Fatalf("expected 5 questions, got %d", len(questions))
	}
	first := questions[0].(map[string]any)
	options := first["options"].([]any)
	if pts := options[3].(map[string]any)["points"]; pts != float64(-5) {
		t.Fatalf("expected last option worth -5, got %v", pts)
	}

	// Same mode and topic is served from the cache.
	srv.do(t, http.MethodPost, "/api/singleplayer/questions", token, map[string]string{"topic": "earthquake"})
	if calls := srv.gen.callCount(); calls != 1 {
		t.Fatalf("expected cached second request, generator calls=%d", calls)
	}

	resp, body = srv.do(t, http.MethodGet, "/api/questions/random", "", nil)
	if resp.StatusCode != http.StatusOK || body["scenario"] != "earthquake Challenge" {
		t.Fatalf("expected archived question, got %d %v", resp.StatusCode, body)
	}

	resp, body = srv.do(t, http.MethodPost, "/api/ai_vs_crisis/questions", token, nil)
	if resp.StatusCode != http.StatusOK || body["scenario"] != "Compete against AI in a Crisis Scenario Challenge!" {
		t.Fatalf("expected ai_vs_crisis set, got %d %v", resp.StatusCode, body)
	}

	resp, _ = srv.do(t, http.MethodPost, "/api/unknown/questions", token, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown mode, got %d", resp.StatusCode)
	}
	resp, _ = srv.do(t, http.MethodPost, "/api/ai_vs_human/questions", token, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for the old mode path, got %d", resp.StatusCode)
	}
}

func TestQuestionsPartialAndFailure(t *testing.T) {
	srv := newTestServer(t, 10)
	token := srv.signup(t, "ada@example.com", "Ada")

	srv.gen.setReply(func(string) (string, error) { return fullQuestions(2), nil })
	resp, body := srv.do(t, http.MethodPost, "/api/singleplayer/questions", token, nil)
	if resp.StatusCode != http.StatusOK || body["partial"] != true || body["warning"] == nil {
		t.Fatalf("expected partial 200 with warning, got %d %v", resp.StatusCode, body)
	}

	resp, body = srv.do(t, http.MethodPost, "/api/crisis_olympics/questions", token, nil)
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected 502 for strict partial, got %d", resp.StatusCode)
	}
	if body["details"] != "please try again later" {
		t.Fatalf("unexpected error body %v", body)
	}

	srv.gen.setReply(func(string) (string, error) { return "Stay calm and follow official guidance.", nil })
	resp, body = srv.do(t, http.MethodPost, "/api/real_world_crisis/questions", token, nil)
	if resp.StatusCode != http.StatusBadGateway || body["partial"] != nil {
		t.Fatalf("expected 502 when no question was recovered, got %d %v", resp.StatusCode, body)
	}

	srv.gen.setReply(func(string) (string, error) { return "", errors.New("quota") })
	resp, body = srv.do(t, http.MethodPost, "/api/multiplayer/questions", token, nil)
	if resp.StatusCode != http.StatusBadGateway || body["error"] != "failed to generate questions" {
		t.Fatalf("expected 502, got %d %v", resp.StatusCode, body)
	}
}

func TestQuestionsRateLimited(t *testing.T) {
	srv := newTestServer(t, 1)
	token := srv.signup(t, "ada@example.com", "Ada")

	resp, _ := srv.do(t, http.MethodPost, "/api/singleplayer/questions", token, map[string]string{"topic": "fire"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected first request to pass, got %d", resp.StatusCode)
	}
	resp, _ = srv.do(t, http.MethodPost, "/api/singleplayer/questions", token, map[string]string{"topic": "flood"})
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", resp.StatusCode)
	}
}

func TestPolicyEndpoints(t *testing.T) {
	srv := newTestServer(t, 5)
	token := srv.signup(t, "ada@example.com", "Ada")

	resp, body := srv.do(t, http.MethodPost, "/api/policy_governance/questions", token, nil)
	if resp.StatusCode != http.StatusOK || body["wordLimit"] != float64(300) {
		t.Fatalf("unexpected scenario response %d %v", resp.StatusCode, body)
	}

	resp, body = srv.do(t, http.MethodPost, "/api/policy_governance/evaluate", token, map[string]string{
		"scenario": body["scenario"].(string),
		"policy":   "Evacuate the school and seal the plant.",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d %v", resp.StatusCode, body)
	}
	if body["totalScore"] != float64(70) || body["evaluationSummary"] != "Solid plan" {
		t.Fatalf("unexpected evaluation %v", body)
	}

	resp, _ = srv.do(t, http.MethodPost, "/api/policy_governance/evaluate", token, map[string]string{"policy": "  "})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty policy, got %d", resp.StatusCode)
	}
}

func TestPolicyGenerateAndEvaluate(t *testing.T) {
	srv := newTestServer(t, 5)
	token := srv.signup(t, "ada@example.com", "Ada")

	resp, _ := srv.do(t, http.MethodPost, "/api/policy_governance/generate_and_evaluate", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}

	resp, body := srv.do(t, http.MethodPost, "/api/policy_governance/generate_and_evaluate", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d %v", resp.StatusCode, body)
	}
	if body["scenario"] != "A chemical plant is leaking near a school." || body["policyText"] == "" {
		t.Fatalf("unexpected run %v", body)
	}
	if body["similarity"] != "1.000" {
		t.Fatalf("expected similarity with 3 decimals, got %v", body["similarity"])
	}
	if eval, ok := body["evaluation"].(map[string]any); !ok || eval["totalScore"] != float64(70) {
		t.Fatalf("unexpected evaluation %v", body["evaluation"])
	}

	srv.embedder.set([][]float32{{1, 0}, {0, 1}})
	calls := srv.gen.callCount()
	resp, body = srv.do(t, http.MethodPost, "/api/policy_governance/generate_and_evaluate", token, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for misaligned policy, got %d %v", resp.StatusCode, body)
	}
	if body["error"] != "Policy does not align well with the scenario." || body["similarity"] != float64(0) {
		t.Fatalf("unexpected misaligned body %v", body)
	}
	if got := srv.gen.callCount() - calls; got != 2 {
		t.Fatalf("misaligned policy must not be evaluated, generator calls=%d", got)
	}
}

func TestScoresAndLeaderboard(t *testing.T) {
	srv := newTestServer(t, 5)
	ada := srv.signup(t, "ada@example.com", "Ada")
	bob := srv.signup(t, "bob@example.com", "Bob")

	post := func(token string, score int) map[string]any {
		resp, body := srv.do(t, http.MethodPost, "/api/game/update-score", token, map[string]any{
			"gameMode": "singleplayer", "score": score,
		})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("update-score status %d", resp.StatusCode)
		}
		return body
	}
	post(ada, 30)
	body := post(ada, 10)
	if body["totalScore"] != float64(40) || body["gamesPlayed"] != float64(2) {
		t.Fatalf("unexpected totals %v", body)
	}
	if scores := body["scores"].(map[string]any); scores["singleplayer"] != float64(30) {
		t.Fatalf("expected best score kept, got %v", scores)
	}
	post(bob, 50)

	resp, err := http.Get(srv.URL + "/api/game/leaderboard")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	var ranked []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&ranked); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(ranked) != 2 || ranked[0]["characterName"] != "Bob" {
		t.Fatalf("expected Bob leading, got %v", ranked)
	}

	resp2, _ := srv.do(t, http.MethodPost, "/api/game/update-score", ada, map[string]any{"score": 5})
	if resp2.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 without game mode, got %d", resp2.StatusCode)
	}
}
