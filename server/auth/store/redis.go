package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/viant/mcpauth/internal/logging"
	"github.com/viant/mcpauth/internal/metrics"
	"github.com/viant/mcpauth/internal/redact"
	"github.com/viant/mcpauth/server/auth/credential"
	"pkt.systems/pslog"
)

const maxWatchRetries = 5

// RedisStore keeps each record under its own expiring key:
//
//	<prefix>:user_token:<subject>  -> token
//	<prefix>:token_user:<digest>   -> subject
//	<prefix>:metadata:<digest>     -> Metadata JSON
//
// plus two index sets (<prefix>:subjects, <prefix>:tokens) used for enumeration.
// Index entries outlive their keys until CleanupExpired reconciles them.
type RedisStore struct {
	client    redis.UniversalClient
	prefix    string
	scanCount int64
	logger    pslog.Logger
	metrics   *metrics.Metrics
}

// NewRedisStore wraps an existing client; Close closes it.
func NewRedisStore(client redis.UniversalClient, opts ...Option) *RedisStore {
	o := newOptions(opts)
	return &RedisStore{
		client:    client,
		prefix:    o.keyPrefix,
		scanCount: o.scanCount,
		logger:    logging.Subsystem(o.logger, "tokenstore", "redis"),
		metrics:   o.metrics,
	}
}

func (s *RedisStore) userKey(subject string) string { return s.prefix + ":user_token:" + subject }

func (s *RedisStore) tokenKey(digest string) string { return s.prefix + ":token_user:" + digest }

func (s *RedisStore) metadataKey(digest string) string { return s.prefix + ":metadata:" + digest }

func (s *RedisStore) subjectsKey() string { return s.prefix + ":subjects" }

func (s *RedisStore) tokensKey() string { return s.prefix + ":tokens" }

// tokenDigest keeps raw credentials out of key names.
func tokenDigest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func (s *RedisStore) SetUserToken(ctx context.Context, subject, token string, ttl time.Duration) error {
	if subject == "" || token == "" {
		return fmt.Errorf("tokenstore: subject and token are required")
	}
	ttl = effectiveTTL(ttl)
	now := time.Now().UTC()
	digest := tokenDigest(token)
	payload, err := json.Marshal(&Metadata{Subject: subject, CreatedAt: now, ExpiresAt: now.Add(ttl)})
	if err != nil {
		return err
	}
	userKey := s.userKey(subject)
	txf := func(tx *redis.Tx) error {
		previous, err := tx.Get(ctx, userKey).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if previous != "" && previous != token {
				previousDigest := tokenDigest(previous)
				pipe.Del(ctx, s.tokenKey(previousDigest), s.metadataKey(previousDigest))
				pipe.SRem(ctx, s.tokensKey(), previousDigest)
			}
			pipe.Set(ctx, userKey, token, ttl)
			pipe.Set(ctx, s.tokenKey(digest), subject, ttl)
			pipe.Set(ctx, s.metadataKey(digest), payload, ttl)
			pipe.SAdd(ctx, s.subjectsKey(), subject)
			pipe.SAdd(ctx, s.tokensKey(), digest)
			return nil
		})
		return err
	}
	if err = s.watch(ctx, txf, userKey); err != nil {
		s.metrics.StorageError("tokenstore", "set")
		return fmt.Errorf("tokenstore: set %s: %w: %v", subject, credential.ErrStorageUnavailable, err)
	}
	s.logger.Debug("tokenstore.redis.set", "subject", subject, "token", redact.Token(token))
	return nil
}

func (s *RedisStore) GetUserToken(ctx context.Context, subject string) (string, bool) {
	token, err := s.client.Get(ctx, s.userKey(subject)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.degraded("get", err)
		}
		return "", false
	}
	return token, token != ""
}

func (s *RedisStore) RemoveUserToken(ctx context.Context, subject string) error {
	userKey := s.userKey(subject)
	txf := func(tx *redis.Tx) error {
		token, err := tx.Get(ctx, userKey).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, userKey)
			pipe.SRem(ctx, s.subjectsKey(), subject)
			if token != "" {
				digest := tokenDigest(token)
				pipe.Del(ctx, s.tokenKey(digest), s.metadataKey(digest))
				pipe.SRem(ctx, s.tokensKey(), digest)
			}
			return nil
		})
		return err
	}
	if err := s.watch(ctx, txf, userKey); err != nil {
		s.metrics.StorageError("tokenstore", "remove")
		return fmt.Errorf("tokenstore: remove %s: %w: %v", subject, credential.ErrStorageUnavailable, err)
	}
	return nil
}

// FindSubjectByToken confirms the forward mapping still points at token, so a
// reverse key left behind by a racing writer never resolves.
func (s *RedisStore) FindSubjectByToken(ctx context.Context, token string) (string, bool) {
	subject, err := s.client.Get(ctx, s.tokenKey(tokenDigest(token))).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.degraded("find", err)
		}
		return "", false
	}
	current, ok := s.GetUserToken(ctx, subject)
	if !ok || current != token {
		return "", false
	}
	return subject, true
}

func (s *RedisStore) AllSubjects(ctx context.Context) []string {
	var ret []string
	err := s.scan(ctx, s.subjectsKey(), func(members []string) error {
		live, err := s.existing(ctx, members, s.userKey)
		if err != nil {
			return err
		}
		for i, member := range members {
			if live[i] {
				ret = append(ret, member)
			}
		}
		return nil
	})
	if err != nil {
		s.degraded("subjects", err)
	}
	sort.Strings(ret)
	return ret
}

// CleanupExpired walks both index sets with SSCAN and drops members whose
// backing key has expired. Each removal re-checks the key under WATCH, so a
// write landing after the scan keeps its index entry.
func (s *RedisStore) CleanupExpired(ctx context.Context) (int, error) {
	subjects, err := s.reconcile(ctx, s.subjectsKey(), s.userKey, nil)
	if err != nil {
		s.metrics.StorageError("tokenstore", "cleanup")
		return subjects, fmt.Errorf("tokenstore: cleanup subjects: %w: %v", credential.ErrStorageUnavailable, err)
	}
	tokens, err := s.reconcile(ctx, s.tokensKey(), s.tokenKey, func(pipe redis.Pipeliner, digest string) {
		pipe.Del(ctx, s.metadataKey(digest))
	})
	if err != nil {
		s.metrics.StorageError("tokenstore", "cleanup")
		return subjects + tokens, fmt.Errorf("tokenstore: cleanup tokens: %w: %v", credential.ErrStorageUnavailable, err)
	}
	if removed := subjects + tokens; removed > 0 {
		s.logger.Info("tokenstore.redis.cleanup", "subjects", subjects, "tokens", tokens)
	}
	return subjects + tokens, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

// IndexSize returns the cardinality of the subject index set.
func (s *RedisStore) IndexSize(ctx context.Context) (int64, error) {
	return s.client.SCard(ctx, s.subjectsKey()).Result()
}

// reconcile collects stale members over the whole SSCAN walk before removing
// any, since SREM during the walk can make the cursor skip members.
func (s *RedisStore) reconcile(ctx context.Context, indexKey string, backing func(string) string, also func(redis.Pipeliner, string)) (int, error) {
	var stale []string
	err := s.scan(ctx, indexKey, func(members []string) error {
		live, err := s.existing(ctx, members, backing)
		if err != nil {
			return err
		}
		for i, member := range members {
			if !live[i] {
				stale = append(stale, member)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, member := range stale {
		ok, err := s.removeStale(ctx, indexKey, member, backing(member), also)
		if err != nil {
			return removed, err
		}
		if ok {
			removed++
		}
	}
	return removed, nil
}

func (s *RedisStore) removeStale(ctx context.Context, indexKey, member, key string, also func(redis.Pipeliner, string)) (bool, error) {
	removed := false
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.SRem(ctx, indexKey, member)
			if also != nil {
				also(pipe, member)
			}
			return nil
		})
		if err == nil {
			removed = true
		}
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return false, nil
	}
	return removed, err
}

func (s *RedisStore) scan(ctx context.Context, key string, visit func(members []string) error) error {
	var cursor uint64
	for {
		members, next, err := s.client.SScan(ctx, key, cursor, "", s.scanCount).Result()
		if err != nil {
			return err
		}
		if len(members) > 0 {
			if err = visit(members); err != nil {
				return err
			}
		}
		if cursor = next; cursor == 0 {
			return nil
		}
	}
}

func (s *RedisStore) existing(ctx context.Context, members []string, keyOf func(string) string) ([]bool, error) {
	pipe := s.client.Pipeline()
	cmds := make([]*redis.IntCmd, len(members))
	for i, member := range members {
		cmds[i] = pipe.Exists(ctx, keyOf(member))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}
	ret := make([]bool, len(members))
	for i, cmd := range cmds {
		ret[i] = cmd.Val() > 0
	}
	return ret, nil
}

func (s *RedisStore) watch(ctx context.Context, txf func(*redis.Tx) error, keys ...string) error {
	var err error
	for attempt := 0; attempt < maxWatchRetries; attempt++ {
		if err = s.client.Watch(ctx, txf, keys...); !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return err
}

func (s *RedisStore) degraded(op string, err error) {
	s.metrics.StorageError("tokenstore", op)
	s.logger.Warn("tokenstore.redis.unavailable", "op", op, "error", err)
}
