package redis

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"crisis-quiz-service/internal/app"
	"crisis-quiz-service/internal/config"
	"crisis-quiz-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

// RoomStore is a Redis-aware implementation of app.RoomRepository.
// Players and broadcast fan-out stay in process. The room's question set is
// kept under room:live:{id} so an instance that does not host the room yet
// plays it with the same questions instead of generating new ones.
type RoomStore struct {
	client *redis.Client
	ttl    time.Duration
	mu     sync.RWMutex
	rooms  map[string]*app.Room
}

func NewRoomStore(client *redis.Client, ttl time.Duration) *RoomStore {
	return &RoomStore{
		client: client,
		ttl:    ttl,
		rooms:  make(map[string]*app.Room),
	}
}

func (s *RoomStore) GetOrCreate(roomID string, questions domain.QuestionSet) *app.Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	if room, ok := s.rooms[roomID]; ok {
		return room
	}
	room := app.NewRoom(roomID, questions)
	s.rooms[roomID] = room

	ctx := context.Background()
	data, err := json.Marshal(questions)
	if err != nil {
		config.WithContext(ctx).WithError(err).WithField("room_id", roomID).Warn("encode room questions")
		return room
	}
	// SETNX keeps the set another instance published first.
	if err := s.client.SetNX(ctx, s.key(roomID), data, s.ttl).Err(); err != nil {
		config.WithContext(ctx).WithError(err).WithField("room_id", roomID).Warn("room store write failed")
	}
	return room
}

// Get returns the local room, or rebuilds it from the shared question set when
// another instance started it.
func (s *RoomStore) Get(roomID string) (*app.Room, bool) {
	s.mu.RLock()
	room, ok := s.rooms[roomID]
	s.mu.RUnlock()
	if ok {
		return room, true
	}

	questions, ok := s.load(context.Background(), roomID)
	if !ok {
		return nil, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if room, ok := s.rooms[roomID]; ok {
		return room, true
	}
	room = app.NewRoom(roomID, questions)
	s.rooms[roomID] = room
	return room, true
}

func (s *RoomStore) DeleteIfEmpty(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return
	}
	if room.IsEmpty() {
		delete(s.rooms, roomID)
		_ = s.client.Del(context.Background(), s.key(roomID)).Err()
	}
}

func (s *RoomStore) load(ctx context.Context, roomID string) (domain.QuestionSet, bool) {
	data, err := s.client.Get(ctx, s.key(roomID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			config.WithContext(ctx).WithError(err).WithField("room_id", roomID).Warn("room store read failed")
		}
		return domain.QuestionSet{}, false
	}
	var questions domain.QuestionSet
	if err := json.Unmarshal(data, &questions); err != nil || len(questions.Questions) == 0 {
		config.WithContext(ctx).WithField("room_id", roomID).Warn("ignoring unreadable room questions")
		return domain.QuestionSet{}, false
	}
	return questions, true
}

func (s *RoomStore) key(roomID string) string {
	return "room:live:" + roomID
}
