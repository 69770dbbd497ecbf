package presence

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rentalhub/rental-backend/pkg/logger"
)

// registerScript atomically binds a session to a user, evicting the user's
// previous session and the session's previous user.
//
// KEYS: user key, session key, online set. ARGV: userID, sessionID, user prefix, session prefix, ttl ms.
var registerScript = redis.NewScript(`
local prevUser = redis.call('GET', KEYS[2])
if prevUser and prevUser ~= ARGV[1] then
    local prevUserKey = ARGV[3] .. prevUser
    if redis.call('GET', prevUserKey) == ARGV[2] then
        redis.call('DEL', prevUserKey)
        redis.call('SREM', KEYS[3], prevUser)
    end
end

local prior = redis.call('GET', KEYS[1])
if prior and prior ~= ARGV[2] then
    redis.call('DEL', ARGV[4] .. prior)
end

redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[5])
redis.call('SET', KEYS[2], ARGV[1], 'PX', ARGV[5])
redis.call('SADD', KEYS[3], ARGV[1])
return 1
`)

// unregisterScript removes a session and, when it is still current, its user.
//
// KEYS: session key, online set. ARGV: sessionID, user prefix.
var unregisterScript = redis.NewScript(`
local uid = redis.call('GET', KEYS[1])
if not uid then
    return 0
end
redis.call('DEL', KEYS[1])

local userKey = ARGV[2] .. uid
if redis.call('GET', userKey) == ARGV[1] then
    redis.call('DEL', userKey)
    redis.call('SREM', KEYS[2], uid)
end
return 1
`)

// touchScript extends the lease of a session and, when it is still current,
// of its user.
//
// KEYS: session key. ARGV: sessionID, user prefix, ttl ms.
var touchScript = redis.NewScript(`
local uid = redis.call('GET', KEYS[1])
if not uid then
    return 0
end
redis.call('PEXPIRE', KEYS[1], ARGV[3])

local userKey = ARGV[2] .. uid
if redis.call('GET', userKey) == ARGV[1] then
    redis.call('PEXPIRE', userKey, ARGV[3])
end
return 1
`)

// listScript returns the online users, dropping members whose user key
// has expired.
//
// KEYS: online set. ARGV: user prefix.
var listScript = redis.NewScript(`
local online = {}
for _, uid in ipairs(redis.call('SMEMBERS', KEYS[1])) do
    if redis.call('EXISTS', ARGV[1] .. uid) == 1 then
        table.insert(online, uid)
    else
        redis.call('SREM', KEYS[1], uid)
    end
end
return online
`)

// DefaultTTL is the presence lease used when none is configured
const DefaultTTL = 2 * time.Minute

// RedisRegistry is a Registry shared by every instance through Redis.
// Entries are leased for ttl and renewed by Touch, so sessions of an
// instance that died without unregistering disappear on their own.
type RedisRegistry struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisRegistry creates a RedisRegistry whose keys start with prefix.
// A non-positive ttl selects DefaultTTL.
func NewRedisRegistry(client *redis.Client, prefix string, ttl time.Duration) *RedisRegistry {
	if prefix == "" {
		prefix = "chat"
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisRegistry{client: client, prefix: prefix, ttl: ttl}
}

func (r *RedisRegistry) ttlMillis() string {
	return strconv.FormatInt(r.ttl.Milliseconds(), 10)
}

func (r *RedisRegistry) userPrefix() string    { return r.prefix + ":presence:user:" }
func (r *RedisRegistry) sessionPrefix() string { return r.prefix + ":presence:session:" }
func (r *RedisRegistry) onlineKey() string     { return r.prefix + ":presence:online" }

func (r *RedisRegistry) userKey(userID uint64) string {
	return r.userPrefix() + strconv.FormatUint(userID, 10)
}

func (r *RedisRegistry) sessionKey(sessionID string) string {
	return r.sessionPrefix() + sessionID
}

func (r *RedisRegistry) Register(ctx context.Context, userID uint64, sessionID string) {
	err := registerScript.Run(ctx, r.client,
		[]string{r.userKey(userID), r.sessionKey(sessionID), r.onlineKey()},
		strconv.FormatUint(userID, 10), sessionID, r.userPrefix(), r.sessionPrefix(), r.ttlMillis(),
	).Err()
	if err != nil {
		logger.GetLogger().Error().Err(err).
			Uint64("user_id", userID).Str("session_id", sessionID).
			Msg("presence register failed")
	}
}

func (r *RedisRegistry) Unregister(ctx context.Context, sessionID string) {
	err := unregisterScript.Run(ctx, r.client,
		[]string{r.sessionKey(sessionID), r.onlineKey()},
		sessionID, r.userPrefix(),
	).Err()
	if err != nil {
		logger.GetLogger().Error().Err(err).Str("session_id", sessionID).Msg("presence unregister failed")
	}
}

func (r *RedisRegistry) Touch(ctx context.Context, sessionID string) {
	err := touchScript.Run(ctx, r.client,
		[]string{r.sessionKey(sessionID)},
		sessionID, r.userPrefix(), r.ttlMillis(),
	).Err()
	if err != nil {
		logger.GetLogger().Warn().Err(err).Str("session_id", sessionID).Msg("presence touch failed")
	}
}

func (r *RedisRegistry) Lookup(ctx context.Context, userID uint64) (string, bool) {
	sessionID, err := r.client.Get(ctx, r.userKey(userID)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.GetLogger().Error().Err(err).Uint64("user_id", userID).Msg("presence lookup failed")
		}
		return "", false
	}
	return sessionID, true
}

func (r *RedisRegistry) List(ctx context.Context) []uint64 {
	members, err := listScript.Run(ctx, r.client, []string{r.onlineKey()}, r.userPrefix()).StringSlice()
	if err != nil {
		logger.GetLogger().Error().Err(err).Msg("presence list failed")
		return []uint64{}
	}

	ids := make([]uint64, 0, len(members))
	for _, m := range members {
		if id, err := strconv.ParseUint(m, 10, 64); err == nil {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
