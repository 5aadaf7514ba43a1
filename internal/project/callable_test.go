package project

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCallableExists(t *testing.T) {
	hooks := &Hooks{Build: func(context.Context, Options) error { return nil }}

	require.True(t, NewCallable(hooks, "build", nil).Exists())
	require.False(t, NewCallable(hooks, "install", nil).Exists())
	require.False(t, NewCallable(hooks, "unknown", nil).Exists())
	require.False(t, NewCallable(nil, "build", nil).Exists())
}

func TestCallableCallPassesOptions(t *testing.T) {
	var got Options
	hooks := &Hooks{PostDeploy: func(_ context.Context, opts Options) error {
		got = opts
		return nil
	}}
	opts := Options{"env": "prod"}

	require.NoError(t, NewCallable(hooks, "postDeploy", opts).Call(context.Background()))
	require.Equal(t, "prod", got.String("env"))
}

func TestCallableMissingMethod(t *testing.T) {
	err := NewCallable(&Hooks{}, "deploy", nil).Call(context.Background())
	require.True(t, HasCode(err, ErrCodeMethodNotFound))
	require.Contains(t, err.Error(), "deploy")
}

func TestCallablePropagatesHookError(t *testing.T) {
	boom := errors.New("boom")
	hooks := &Hooks{Install: func(context.Context, Options) error { return boom }}

	require.ErrorIs(t, NewCallable(hooks, "install", nil).Call(context.Background()), boom)
}

func TestCallableBind(t *testing.T) {
	calls := 0
	first := &Hooks{Install: func(context.Context, Options) error { calls++; return nil }}
	second := &Hooks{}
	pending := NewCallable(nil, "install", nil)

	require.False(t, pending.Exists())
	require.True(t, pending.Bind(first).Exists())
	require.False(t, pending.Bind(second).Exists())
	require.NoError(t, pending.Bind(first).Call(context.Background()))
	require.Equal(t, 1, calls)
	require.Equal(t, "install", pending.Method())
}

func TestMethodPostName(t *testing.T) {
	require.Equal(t, "postInstall", MethodInstall.PostName())
	require.Equal(t, "postBuild", MethodBuild.PostName())
	require.Equal(t, "postDeploy", MethodDeploy.PostName())
	require.ElementsMatch(t, []string{"install", "postInstall", "build", "postBuild", "deploy", "postDeploy"}, HookNames())
}

func TestOptionsGetters(t *testing.T) {
	opts := Options{"setup": "true", "env": "staging", "count": 3}

	require.True(t, opts.Bool("setup"))
	require.False(t, opts.Bool("missing"))
	require.Equal(t, "staging", opts.String("env"))
	require.Equal(t, "3", opts.String("count"))
	require.True(t, opts.BoolOr("missing", true))
	require.False(t, Options(nil).Bool("setup"))
}
