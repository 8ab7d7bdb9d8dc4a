package app

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"crisis-quiz-service/internal/config"
	"crisis-quiz-service/internal/domain"
)

// RoomRepository abstracts how multiplayer rooms are stored (in-memory, Redis, etc).
type RoomRepository interface {
	GetOrCreate(roomID string, questions domain.QuestionSet) *Room
	Get(roomID string) (*Room, bool)
	DeleteIfEmpty(roomID string)
}

// QuestionSource produces the questions a new room is played with.
type QuestionSource interface {
	Generate(ctx context.Context, userID string, mode domain.GameMode, topic string) (domain.QuestionSet, error)
}

// RoomService contains the multiplayer use cases.
type RoomService struct {
	rooms     RoomRepository
	questions QuestionSource
}

func NewRoomService(rooms RoomRepository, questions QuestionSource) *RoomService {
	return &RoomService{rooms: rooms, questions: questions}
}

// NewRoom is exported for infrastructure layers that need to seed rooms.
func NewRoom(id string, questions domain.QuestionSet) *Room {
	return newRoomWithClock(id, questions, time.Now)
}

// NewRoomWithClock is test-only for deterministic timestamps.
func NewRoomWithClock(id string, questions domain.QuestionSet, now func() time.Time) *Room {
	return newRoomWithClock(id, questions, now)
}

// Join registers or refreshes a player. The first join of a room generates
// its questions; a short but non-empty set is accepted.
func (s *RoomService) Join(ctx context.Context, roomID, userID, displayName string) (domain.Leaderboard, domain.QuestionSet, error) {
	room, ok := s.rooms.Get(roomID)
	if !ok {
		set, err := s.questions.Generate(ctx, userID, domain.ModeMultiplayer, "")
		if err != nil && !domain.IsPartial(err) {
			return domain.Leaderboard{}, domain.QuestionSet{}, err
		}
		if len(set.Questions) == 0 {
			return domain.Leaderboard{}, domain.QuestionSet{}, fmt.Errorf("%w: %w", domain.ErrGenerationFailed, domain.ErrNoQuestions)
		}
		if err != nil {
			config.WithContext(ctx).WithField("room_id", roomID).Warnf("room starts with %v", err)
		}
		room = s.rooms.GetOrCreate(roomID, set)
	}
	return room.join(userID, displayName), room.Questions(), nil
}

// SubmitAnswer scores the chosen option by its position and updates the leaderboard.
func (s *RoomService) SubmitAnswer(_ context.Context, roomID, userID string, submission domain.AnswerSubmission) (domain.Leaderboard, domain.AnswerResult, error) {
	room, ok := s.rooms.Get(roomID)
	if !ok {
		return domain.Leaderboard{}, domain.AnswerResult{}, domain.ErrRoomNotFound
	}
	return room.applyAnswer(userID, submission)
}

// Subscribe returns a channel that receives leaderboard updates for a room.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *RoomService) Subscribe(_ context.Context, roomID string) (<-chan domain.Leaderboard, func(), error) {
	room, ok := s.rooms.Get(roomID)
	if !ok {
		return nil, nil, domain.ErrRoomNotFound
	}
	ch, cancel := room.subscribe()
	return ch, cancel, nil
}

// Leave removes a player from the room and drops the room if empty.
func (s *RoomService) Leave(_ context.Context, roomID, userID string) {
	room, ok := s.rooms.Get(roomID)
	if !ok {
		return
	}
	room.leave(userID)
	if room.isEmpty() {
		s.rooms.DeleteIfEmpty(roomID)
	}
}

// Room is an in-memory multiplayer game over one question set.
type Room struct {
	id          string
	questions   domain.QuestionSet
	now         func() time.Time
	mu          sync.RWMutex
	players     map[string]*domain.Player
	subscribers map[chan domain.Leaderboard]struct{}
}

func newRoomWithClock(id string, questions domain.QuestionSet, now func() time.Time) *Room {
	return &Room{
		id:          id,
		questions:   questions,
		now:         now,
		players:     make(map[string]*domain.Player),
		subscribers: make(map[chan domain.Leaderboard]struct{}),
	}
}

// Questions returns the set the room is played with.
func (r *Room) Questions() domain.QuestionSet {
	return r.questions
}

func (r *Room) join(userID, displayName string) domain.Leaderboard {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if player, ok := r.players[userID]; ok {
		player.DisplayName = displayName
		player.LastUpdated = now
	} else {
		r.players[userID] = &domain.Player{
			UserID:      userID,
			DisplayName: displayName,
			Answered:    make(map[int]bool),
			LastUpdated: now,
		}
	}
	return r.broadcastLocked()
}

func (r *Room) applyAnswer(userID string, submission domain.AnswerSubmission) (domain.Leaderboard, domain.AnswerResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	player, ok := r.players[userID]
	if !ok {
		return domain.Leaderboard{}, domain.AnswerResult{}, domain.ErrPlayerNotFound
	}
	qi := submission.QuestionIndex
	if qi < 0 || qi >= len(r.questions.Questions) {
		return domain.Leaderboard{}, domain.AnswerResult{}, domain.ErrQuestionNotFound
	}
	options := r.questions.Questions[qi].Options
	oi := submission.OptionIndex
	if oi < 0 || oi >= len(options) {
		return domain.Leaderboard{}, domain.AnswerResult{}, domain.ErrOptionNotFound
	}
	if player.Answered[qi] {
		return domain.Leaderboard{}, domain.AnswerResult{}, domain.ErrAlreadyAnswered
	}

	awarded := options[oi].Points
	player.Answered[qi] = true
	player.Score += awarded
	player.LastUpdated = r.now()

	return r.broadcastLocked(), domain.AnswerResult{
		QuestionIndex: qi,
		Awarded:       awarded,
		TotalScore:    player.Score,
	}, nil
}

func (r *Room) leave(userID string) domain.Leaderboard {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.players, userID)
	return r.broadcastLocked()
}

func (r *Room) isEmpty() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.players) == 0
}

// IsEmpty reports whether the room has no players.
func (r *Room) IsEmpty() bool {
	return r.isEmpty()
}

func (r *Room) subscribe() (<-chan domain.Leaderboard, func()) {
	ch := make(chan domain.Leaderboard, 8)

	r.mu.Lock()
	r.subscribers[ch] = struct{}{}
	initial := r.snapshotLocked()
	r.mu.Unlock()

	ch <- initial

	cancel := func() {
		r.mu.Lock()
		if _, ok := r.subscribers[ch]; ok {
			delete(r.subscribers, ch)
			close(ch)
		}
		r.mu.Unlock()
	}
	return ch, cancel
}

func (r *Room) broadcastLocked() domain.Leaderboard {
	lb := r.snapshotLocked()
	for ch := range r.subscribers {
		select {
		case ch <- lb:
		default:
			// Slow subscriber: replace its oldest pending snapshot.
			select {
			case <-ch:
			default:
			}
			ch <- lb
		}
	}
	return lb
}

func (r *Room) snapshotLocked() domain.Leaderboard {
	entries := make([]domain.LeaderboardEntry, 0, len(r.players))
	for _, player := range r.players {
		entries = append(entries, domain.LeaderboardEntry{
			UserID:      player.UserID,
			DisplayName: player.DisplayName,
			Score:       player.Score,
		})
	}

	// Score desc, then whoever reached it first, then name.
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		pi := r.players[entries[i].UserID]
		pj := r.players[entries[j].UserID]
		if pi != nil && pj != nil && !pi.LastUpdated.Equal(pj.LastUpdated) {
			return pi.LastUpdated.Before(pj.LastUpdated)
		}
		return entries[i].DisplayName < entries[j].DisplayName
	})

	return domain.Leaderboard{
		RoomID:    r.id,
		Entries:   entries,
		UpdatedAt: r.now(),
	}
}
