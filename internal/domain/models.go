package domain

import "time"

const (
	// DefaultQuestionCount is the number of questions requested per generation.
	DefaultQuestionCount = 5
	// DefaultOptionsPerQuestion is the fixed number of options per question.
	DefaultOptionsPerQuestion = 4
)

// ScenarioRequest is the input to the prompt builder.
type ScenarioRequest struct {
	Topic              string
	QuestionCount      int
	OptionsPerQuestion int
}

// NewScenarioRequest builds a request with the default counts.
func NewScenarioRequest(topic string) ScenarioRequest {
	return ScenarioRequest{
		Topic:              topic,
		QuestionCount:      DefaultQuestionCount,
		OptionsPerQuestion: DefaultOptionsPerQuestion,
	}
}

// OptionRecord is one answer choice; Points derive from its position only.
type OptionRecord struct {
	Text   string `json:"text"`
	Points int    `json:"points"`
}

// QuestionRecord is a parsed question with exactly four options, best first.
type QuestionRecord struct {
	Prompt  string         `json:"question"`
	Options []OptionRecord `json:"options"`
}

// QuestionSet is the parser's top-level result.
type QuestionSet struct {
	Label     string           `json:"scenario"`
	Questions []QuestionRecord `json:"questions"`
}

// GameMode names a question policy exposed over the API.
type GameMode string

const (
	ModeMultiplayer     GameMode = "multiplayer"
	ModeSinglePlayer    GameMode = "singleplayer"
	ModeRealWorldCrisis GameMode = "real_world_crisis"
	ModeCrisisOlympics  GameMode = "crisis_olympics"
	ModeAIVsCrisis      GameMode = "ai_vs_crisis"
	ModePolicy          GameMode = "policy_governance"
)

// User is a registered player. PasswordHash never leaves the service layer.
type User struct {
	ID            string         `json:"id"`
	Email         string         `json:"email"`
	CharacterName string         `json:"characterName"`
	PasswordHash  string         `json:"-"`
	TotalScore    int            `json:"totalScore"`
	GamesPlayed   int            `json:"gamesPlayed"`
	Scores        map[string]int `json:"scores"`
	CreatedAt     time.Time      `json:"createdAt"`
}

// RankedUser is a leaderboard row across all games.
type RankedUser struct {
	UserID        string `json:"userId"`
	CharacterName string `json:"characterName"`
	TotalScore    int    `json:"totalScore"`
	GamesPlayed   int    `json:"gamesPlayed"`
}

// PolicyScenario is a short crisis premise for the policy governance mode.
type PolicyScenario struct {
	Scenario  string `json:"scenario"`
	WordLimit int    `json:"wordLimit"`
}

// PolicyEvaluation scores a submitted policy text.
type PolicyEvaluation struct {
	RiskMitigation        int    `json:"riskMitigationScore"`
	DecisionEffectiveness int    `json:"decisionEffectivenessScore"`
	EthicalResponsibility int    `json:"ethicalResponsibilityScore"`
	Balance               int    `json:"passionitPrutlScore"`
	Total                 int    `json:"totalScore"`
	Summary               string `json:"evaluationSummary"`
}

// PolicyRun is one generate-and-evaluate round: an AI-drafted policy for a
// generated scenario, how closely the two align, and the policy's evaluation.
type PolicyRun struct {
	Scenario   string
	PolicyText string
	Similarity float64
	Evaluation PolicyEvaluation
}

// Player represents a room participant and their accumulated score.
type Player struct {
	UserID      string
	DisplayName string
	Score       int
	Answered    map[int]bool
	LastUpdated time.Time
}

// LeaderboardEntry is a snapshot-friendly view of a player.
type LeaderboardEntry struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	Score       int    `json:"score"`
}

// Leaderboard captures the ordered scoreboard for a room.
type Leaderboard struct {
	RoomID    string             `json:"roomId"`
	Entries   []LeaderboardEntry `json:"entries"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// AnswerSubmission models a player's choice by position.
type AnswerSubmission struct {
	QuestionIndex int
	OptionIndex   int
}

// AnswerResult summarizes the outcome of a submission for a single player.
type AnswerResult struct {
	QuestionIndex int `json:"questionIndex"`
	Awarded       int `json:"awarded"`
	TotalScore    int `json:"totalScore"`
}

// ArchivedQuestion is a stored question together with the scenario it came from.
type ArchivedQuestion struct {
	ID       string         `json:"id"`
	Mode     GameMode       `json:"mode"`
	Scenario string         `json:"scenario"`
	Question QuestionRecord `json:"question"`
}
