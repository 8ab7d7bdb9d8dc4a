package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"crisis-quiz-service/internal/app"
	"crisis-quiz-service/internal/auth"
	"crisis-quiz-service/internal/config"
	"crisis-quiz-service/internal/domain"
	"github.com/go-chi/chi/v5"
)

type APIHandler struct {
	questions *app.QuestionService
	policy    *app.PolicyService
	accounts  *app.AccountService
}

func NewAPIHandler(questions *app.QuestionService, policy *app.PolicyService, accounts *app.AccountService) *APIHandler {
	return &APIHandler{questions: questions, policy: policy, accounts: accounts}
}

type signupRequest struct {
	Email         string `json:"email"`
	Password      string `json:"password"`
	CharacterName string `json:"characterName"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

type topicRequest struct {
	Topic string `json:"topic"`
}

type questionsResponse struct {
	Scenario  string                  `json:"scenario"`
	Questions []domain.QuestionRecord `json:"questions"`
	Partial   bool                    `json:"partial"`
	Warning   string                  `json:"warning,omitempty"`
}

type evaluateRequest struct {
	Scenario string `json:"scenario"`
	Policy   string `json:"policy"`
}

type policyRunResponse struct {
	Scenario   string                  `json:"scenario"`
	PolicyText string                  `json:"policyText"`
	Similarity string                  `json:"similarity"`
	Evaluation domain.PolicyEvaluation `json:"evaluation"`
}

type misalignedResponse struct {
	Error      string  `json:"error"`
	Similarity float64 `json:"similarity"`
}

type scoreRequest struct {
	GameMode domain.GameMode `json:"gameMode"`
	Score    int             `json:"score"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func (h *APIHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	user, err := h.accounts.Signup(r.Context(), req.Email, req.Password, req.CharacterName)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (h *APIHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	token, user, err := h.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Token: token, User: user})
}

// Logout is stateless; clients drop their token.
func (h *APIHandler) Logout(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

func (h *APIHandler) Questions(w http.ResponseWriter, r *http.Request) {
	claims, err := auth.ClaimsFromContext(r.Context())
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return
	}
	var req topicRequest
	if !decodeOptional(w, r, &req) {
		return
	}

	mode := domain.GameMode(chi.URLParam(r, "mode"))
	set, err := h.questions.Generate(r.Context(), claims.UserID, mode, req.Topic)
	if err != nil && !domain.IsPartial(err) {
		writeError(w, r, err)
		return
	}
	resp := questionsResponse{Scenario: set.Label, Questions: set.Questions}
	if err != nil {
		resp.Partial = true
		resp.Warning = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *APIHandler) PolicyScenario(w http.ResponseWriter, r *http.Request) {
	var req topicRequest
	if !decodeOptional(w, r, &req) {
		return
	}
	scenario, err := h.policy.Scenario(r.Context(), req.Topic)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, scenario)
}

func (h *APIHandler) PolicyEvaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	eval, err := h.policy.Evaluate(r.Context(), req.Scenario, req.Policy)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, eval)
}

// PolicyGenerateAndEvaluate drafts and scores a policy for a generated scenario.
func (h *APIHandler) PolicyGenerateAndEvaluate(w http.ResponseWriter, r *http.Request) {
	var req topicRequest
	if !decodeOptional(w, r, &req) {
		return
	}
	run, err := h.policy.GenerateAndEvaluate(r.Context(), req.Topic)
	if errors.Is(err, domain.ErrPolicyMisaligned) {
		writeJSON(w, http.StatusBadRequest, misalignedResponse{
			Error:      "Policy does not align well with the scenario.",
			Similarity: run.Similarity,
		})
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, policyRunResponse{
		Scenario:   run.Scenario,
		PolicyText: run.PolicyText,
		Similarity: strconv.FormatFloat(run.Similarity, 'f', 3, 64),
		Evaluation: run.Evaluation,
	})
}

func (h *APIHandler) UpdateScore(w http.ResponseWriter, r *http.Request) {
	claims, err := auth.ClaimsFromContext(r.Context())
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return
	}
	var req scoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	user, err := h.accounts.RecordScore(r.Context(), claims.UserID, req.GameMode, req.Score)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *APIHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	ranked, err := h.accounts.Leaderboard(r.Context(), app.DefaultLeaderboardSize)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ranked)
}

func (h *APIHandler) RandomQuestion(w http.ResponseWriter, r *http.Request) {
	q, err := h.questions.RandomQuestion(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

// decodeOptional accepts an empty body.
func decodeOptional(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.ContentLength == 0 {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	log := config.WithContext(r.Context()).WithError(err)
	switch {
	case errors.Is(err, domain.ErrRateLimited):
		writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "too many requests", Details: "please try again later"})
	case errors.Is(err, domain.ErrGenerationFailed):
		log.Error("generation failed")
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "failed to generate questions", Details: "please try again later"})
	case errors.Is(err, domain.ErrUnknownMode):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrUserExists):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrInvalidCredentials):
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrUserNotFound), errors.Is(err, domain.ErrNoQuestions):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	default:
		log.Error("request failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		config.Logger.WithError(err).Warn("failed to encode response")
	}
}
