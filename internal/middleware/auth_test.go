package middleware

import (
	"context"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/rentledger/internal/auth"
)

type ping struct{}

// callWith runs interceptor around a handler that echoes the context actor.
func callWith(t *testing.T, interceptor connect.UnaryInterceptorFunc, authHeader string) (string, error) {
	t.Helper()
	var seen string
	next := connect.UnaryFunc(func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		seen = ContextActor{Fallback: "system"}.Actor(ctx)
		return connect.NewResponse(&ping{}), nil
	})

	req := connect.NewRequest(&ping{})
	if authHeader != "" {
		req.Header().Set("Authorization", authHeader)
	}
	_, err := interceptor(next)(context.Background(), req)
	return seen, err
}

func TestRequireAuth(t *testing.T) {
	jwtManager := auth.NewJWTManager("test-secret", time.Hour)
	token, err := jwtManager.Generate("clerk")
	require.NoError(t, err)

	actor, err := callWith(t, RequireAuth(jwtManager), "Bearer "+token)
	require.NoError(t, err)
	assert.Equal(t, "clerk", actor)

	_, err = callWith(t, RequireAuth(jwtManager), "")
	assert.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(err))

	_, err = callWith(t, RequireAuth(jwtManager), "Bearer not-a-token")
	assert.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(err))
}

func TestOptionalAuth(t *testing.T) {
	jwtManager := auth.NewJWTManager("test-secret", time.Hour)
	token, err := jwtManager.Generate("clerk")
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"valid token sets actor", "Bearer " + token, "clerk"},
		{"anonymous falls back", "", "system"},
		{"invalid token falls back", "Bearer not-a-token", "system"},
		{"malformed header falls back", "Basic abc", "system"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actor, err := callWith(t, OptionalAuth(jwtManager), tt.header)
			require.NoError(t, err)
			assert.Equal(t, tt.want, actor)
		})
	}
}
