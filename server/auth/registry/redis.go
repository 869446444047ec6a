package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"
	"github.com/viant/mcpauth/internal/logging"
	"github.com/viant/mcpauth/server/auth/credential"
	"pkt.systems/pslog"
)

// DefaultNamespace is the Redis hash holding registrations.
const DefaultNamespace = "mcpauth:client_registry"

// RedisRegistry stores each registration as a JSON field of one hash.
type RedisRegistry struct {
	client    redis.UniversalClient
	namespace string
	logger    pslog.Logger
}

// NewRedisRegistry wraps an existing client.
func NewRedisRegistry(client redis.UniversalClient, namespace string, logger pslog.Logger) *RedisRegistry {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &RedisRegistry{client: client, namespace: namespace, logger: logging.Subsystem(logger, "registry", "redis")}
}

func (r *RedisRegistry) LoadAll(ctx context.Context) ([]*Registration, error) {
	entries, err := r.client.HGetAll(ctx, r.namespace).Result()
	if err != nil {
		return nil, fmt.Errorf("registry: load %s: %w: %v", r.namespace, credential.ErrStorageUnavailable, err)
	}
	ret := make([]*Registration, 0, len(entries))
	for id, payload := range entries {
		registration, err := decode(id, payload)
		if err != nil {
			r.logger.Warn("registry.redis.decode_failed", "client_id", id, "error", err)
			continue
		}
		ret = append(ret, registration)
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i].ClientID < ret[j].ClientID })
	return ret, nil
}

func (r *RedisRegistry) Get(ctx context.Context, clientID string) (*Registration, bool, error) {
	payload, err := r.client.HGet(ctx, r.namespace, clientID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("registry: get %s: %w: %v", clientID, credential.ErrStorageUnavailable, err)
	}
	registration, err := decode(clientID, payload)
	if err != nil {
		return nil, false, err
	}
	return registration, true, nil
}

func (r *RedisRegistry) Save(ctx context.Context, registration *Registration) error {
	if err := registration.Validate(); err != nil {
		return err
	}
	payload, err := json.Marshal(registration)
	if err != nil {
		return err
	}
	if err = r.client.HSet(ctx, r.namespace, registration.ClientID, payload).Err(); err != nil {
		return fmt.Errorf("registry: save %s: %w: %v", registration.ClientID, credential.ErrStorageUnavailable, err)
	}
	return nil
}

func (r *RedisRegistry) Remove(ctx context.Context, clientID string) error {
	if err := r.client.HDel(ctx, r.namespace, clientID).Err(); err != nil {
		return fmt.Errorf("registry: remove %s: %w: %v", clientID, credential.ErrStorageUnavailable, err)
	}
	return nil
}

func decode(id, payload string) (*Registration, error) {
	registration := &Registration{}
	if err := json.Unmarshal([]byte(payload), registration); err != nil {
		return nil, err
	}
	if registration.ClientID == "" {
		registration.ClientID = id
	}
	registration.Normalize()
	return registration, nil
}
