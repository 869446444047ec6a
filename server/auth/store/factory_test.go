package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	server := miniredis.RunT(t)
	var testCases = []struct {
		description string
		config      *Config
		expectRedis bool
	}{
		{description: "no redis url", config: &Config{}, expectRedis: false},
		{description: "nil config", config: nil, expectRedis: false},
		{description: "reachable redis", config: &Config{RedisURL: "redis://" + server.Addr() + "/0"}, expectRedis: true},
		{description: "unreachable redis falls back", config: &Config{RedisURL: "redis://127.0.0.1:1/0", ProbeTimeout: 200 * time.Millisecond}, expectRedis: false},
		{description: "invalid url falls back", config: &Config{RedisURL: "::not-a-url"}, expectRedis: false},
	}
	for _, testCase := range testCases {
		actual := New(context.Background(), testCase.config)
		_, isRedis := actual.(*RedisStore)
		assert.Equal(t, testCase.expectRedis, isRedis, testCase.description)
		_ = actual.Close()
	}
}
