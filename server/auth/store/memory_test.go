package store

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/mcpauth/internal/logging"
	"pkt.systems/pslog"
)

func TestMemoryStore_UsageWarnings(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	s := NewMemoryStore(WithMaxEntries(5), WithWarnFraction(0.6), WithLogger(logging.NewWriter(&buf, pslog.InfoLevel)))

	for i := 0; i < 2; i++ {
		require.NoError(t, s.SetUserToken(ctx, fmt.Sprintf("s%d", i), fmt.Sprintf("t%d", i), time.Hour))
	}
	assert.NotContains(t, buf.String(), "tokenstore.memory.high_water")

	// ceil(5*0.6) = 3
	require.NoError(t, s.SetUserToken(ctx, "s2", "t2", time.Hour))
	require.NoError(t, s.SetUserToken(ctx, "s3", "t3", time.Hour))
	assert.Equal(t, 1, strings.Count(buf.String(), "tokenstore.memory.high_water"))

	require.NoError(t, s.SetUserToken(ctx, "s4", "t4", time.Hour))
	require.NoError(t, s.SetUserToken(ctx, "s5", "t5", time.Hour))
	assert.Equal(t, 1, strings.Count(buf.String(), "tokenstore.memory.capacity"))
	assert.Equal(t, 6, s.Len(), "writes past capacity are accepted")

	for i := 0; i < 6; i++ {
		require.NoError(t, s.RemoveUserToken(ctx, fmt.Sprintf("s%d", i)))
	}
	require.NoError(t, s.SetUserToken(ctx, "a", "ta", time.Hour))
	require.NoError(t, s.SetUserToken(ctx, "b", "tb", time.Hour))
	require.NoError(t, s.SetUserToken(ctx, "c", "tc", time.Hour))
	assert.Equal(t, 2, strings.Count(buf.String(), "tokenstore.memory.high_water"))
}

func TestMemoryStore_TokenMovesBetweenSubjects(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.SetUserToken(ctx, "a", "shared", time.Hour))
	require.NoError(t, s.SetUserToken(ctx, "b", "shared", time.Hour))
	_, ok := s.GetUserToken(ctx, "a")
	assert.False(t, ok)
	subject, ok := s.FindSubjectByToken(ctx, "shared")
	assert.True(t, ok)
	assert.Equal(t, "b", subject)
}

func TestMemoryStore_DefaultTTL(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Now()}
	s := NewMemoryStore(WithClock(clock.Now))
	require.NoError(t, s.SetUserToken(ctx, "a", "t", 0))
	clock.Advance(DefaultTTL - time.Minute)
	_, ok := s.GetUserToken(ctx, "a")
	assert.True(t, ok)
	clock.Advance(2 * time.Minute)
	_, ok = s.GetUserToken(ctx, "a")
	assert.False(t, ok)
	assert.Equal(t, 0, s.Len(), "expired entry is dropped on read")
}
