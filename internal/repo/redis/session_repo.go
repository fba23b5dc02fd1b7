package redis

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	authsvc "github.com/4kciclone/gato-comics-sub000/internal/services/auth"
)

// Key layout: a session hash, a refresh-token hash pointing back at its
// session, and a per-session pointer to the current refresh token so logout
// can drop all three.
const (
	keySession        = "gc:session:"
	keyRefresh        = "gc:refresh:"
	keySessionRefresh = "gc:session:refresh:"
)

const (
	fieldUserID    = "uid"
	fieldRole      = "role"
	fieldSID       = "sid"
	fieldExpiresAt = "exp"
)

type SessionRepo struct {
	client *goredis.Client
}

func NewSessionRepo(client *goredis.Client) *SessionRepo {
	return &SessionRepo{client: client}
}

func (r *SessionRepo) Create(ctx context.Context, session authsvc.SessionRecord, refreshToken string) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if strings.TrimSpace(session.SID) == "" || strings.TrimSpace(refreshToken) == "" || session.UserID <= 0 {
		return authsvc.ErrInvalidInput
	}

	ttl := ttlUntil(session.ExpiresAt)

	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, keySession+session.SID, sessionHash(session))
	pipe.Expire(ctx, keySession+session.SID, ttl)
	pipe.HSet(ctx, keyRefresh+refreshToken, refreshHash(session))
	pipe.Expire(ctx, keyRefresh+refreshToken, ttl)
	pipe.Set(ctx, keySessionRefresh+session.SID, refreshToken, ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("create redis session: %w", err)
	}

	return nil
}

func (r *SessionRepo) GetSession(ctx context.Context, sid string) (authsvc.SessionRecord, error) {
	if r.client == nil {
		return authsvc.SessionRecord{}, fmt.Errorf("redis client is nil")
	}

	values, err := r.client.HGetAll(ctx, keySession+sid).Result()
	if err != nil {
		return authsvc.SessionRecord{}, fmt.Errorf("get session hash: %w", err)
	}
	if len(values) == 0 {
		return authsvc.SessionRecord{}, authsvc.ErrSessionNotFound
	}

	session, err := sessionFromHash(values)
	if err != nil {
		return authsvc.SessionRecord{}, err
	}
	session.SID = sid
	return session, nil
}

func (r *SessionRepo) GetByRefreshToken(ctx context.Context, refreshToken string) (authsvc.SessionRecord, error) {
	if r.client == nil {
		return authsvc.SessionRecord{}, fmt.Errorf("redis client is nil")
	}

	values, err := r.client.HGetAll(ctx, keyRefresh+refreshToken).Result()
	if err != nil {
		return authsvc.SessionRecord{}, fmt.Errorf("get refresh hash: %w", err)
	}
	if len(values) == 0 {
		return authsvc.SessionRecord{}, authsvc.ErrRefreshNotFound
	}

	session, err := sessionFromHash(values)
	if err != nil {
		return authsvc.SessionRecord{}, err
	}

	sid := strings.TrimSpace(values[fieldSID])
	if sid == "" {
		return authsvc.SessionRecord{}, authsvc.ErrRefreshNotFound
	}
	session.SID = sid

	return session, nil
}

func (r *SessionRepo) RotateRefresh(ctx context.Context, sid, oldRefreshToken, newRefreshToken string, expiresAt time.Time) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}

	session, err := r.GetByRefreshToken(ctx, oldRefreshToken)
	if err != nil {
		return err
	}
	if sid != "" && sid != session.SID {
		return authsvc.ErrRefreshNotFound
	}

	session.ExpiresAt = expiresAt
	ttl := ttlUntil(expiresAt)

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, keyRefresh+oldRefreshToken)
	pipe.HSet(ctx, keyRefresh+newRefreshToken, refreshHash(session))
	pipe.Expire(ctx, keyRefresh+newRefreshToken, ttl)
	pipe.HSet(ctx, keySession+session.SID, sessionHash(session))
	pipe.Expire(ctx, keySession+session.SID, ttl)
	pipe.Set(ctx, keySessionRefresh+session.SID, newRefreshToken, ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("rotate refresh token: %w", err)
	}

	return nil
}

func (r *SessionRepo) DeleteSession(ctx context.Context, sid string) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if strings.TrimSpace(sid) == "" {
		return nil
	}

	refreshToken, err := r.client.Get(ctx, keySessionRefresh+sid).Result()
	if err != nil && err != goredis.Nil {
		return fmt.Errorf("load session refresh pointer: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, keySession+sid)
	pipe.Del(ctx, keySessionRefresh+sid)
	if refreshToken != "" {
		pipe.Del(ctx, keyRefresh+refreshToken)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}

	return nil
}

func sessionHash(session authsvc.SessionRecord) map[string]interface{} {
	return map[string]interface{}{
		fieldUserID:    session.UserID,
		fieldRole:      session.Role,
		fieldExpiresAt: session.ExpiresAt.Unix(),
	}
}

func refreshHash(session authsvc.SessionRecord) map[string]interface{} {
	hash := sessionHash(session)
	hash[fieldSID] = session.SID
	return hash
}

func sessionFromHash(values map[string]string) (authsvc.SessionRecord, error) {
	userID, err := strconv.ParseInt(values[fieldUserID], 10, 64)
	if err != nil || userID <= 0 {
		return authsvc.SessionRecord{}, authsvc.ErrUnauthorized
	}

	expiresUnix, err := strconv.ParseInt(values[fieldExpiresAt], 10, 64)
	if err != nil {
		return authsvc.SessionRecord{}, authsvc.ErrUnauthorized
	}

	return authsvc.SessionRecord{
		UserID:    userID,
		Role:      values[fieldRole],
		ExpiresAt: time.Unix(expiresUnix, 0).UTC(),
	}, nil
}

func ttlUntil(expiresAt time.Time) time.Duration {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return time.Second
	}
	return ttl
}
