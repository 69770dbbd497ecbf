package room

import (
	"context"
	"sort"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps room membership in Redis sets so every instance sees
// the same rooms.
//
//	{prefix}:room:{conversationID}   set of session ids
//	{prefix}:session:{sessionID}     set of conversation ids
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a RedisStore whose keys start with prefix
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "chat"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) roomKey(conversationID uint64) string {
	return s.prefix + ":room:" + strconv.FormatUint(conversationID, 10)
}

func (s *RedisStore) sessionKey(sessionID string) string {
	return s.prefix + ":session:" + sessionID
}

func (s *RedisStore) Add(ctx context.Context, conversationID uint64, sessionID string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, s.roomKey(conversationID), sessionID)
		pipe.SAdd(ctx, s.sessionKey(sessionID), strconv.FormatUint(conversationID, 10))
		return nil
	})
	return err
}

func (s *RedisStore) Remove(ctx context.Context, conversationID uint64, sessionID string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SRem(ctx, s.roomKey(conversationID), sessionID)
		pipe.SRem(ctx, s.sessionKey(sessionID), strconv.FormatUint(conversationID, 10))
		return nil
	})
	return err
}

func (s *RedisStore) Members(ctx context.Context, conversationID uint64) ([]string, error) {
	members, err := s.client.SMembers(ctx, s.roomKey(conversationID)).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(members)
	return members, nil
}

func (s *RedisStore) RoomsOf(ctx context.Context, sessionID string) ([]uint64, error) {
	raw, err := s.client.SMembers(ctx, s.sessionKey(sessionID)).Result()
	if err != nil {
		return nil, err
	}

	rooms := make([]uint64, 0, len(raw))
	for _, r := range raw {
		if id, err := strconv.ParseUint(r, 10, 64); err == nil {
			rooms = append(rooms, id)
		}
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i] < rooms[j] })
	return rooms, nil
}

func (s *RedisStore) Close(ctx context.Context, conversationID uint64) ([]string, error) {
	members, err := s.Members(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	room := strconv.FormatUint(conversationID, 10)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, sid := range members {
			pipe.SRem(ctx, s.sessionKey(sid), room)
		}
		pipe.Del(ctx, s.roomKey(conversationID))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return members, nil
}
