package subsystem

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/socialchef/beacon/internal/registry"
)

type recordingSubsystem struct {
	name    string
	calls   *[]string
	preErr  error
	postErr error
	stopErr error
}

func (s *recordingSubsystem) Name() string { return s.name }

func (s *recordingSubsystem) PreInitialise(*registry.Context) error {
	*s.calls = append(*s.calls, s.name+".pre")
	return s.preErr
}

func (s *recordingSubsystem) PostInitialise(context.Context, *registry.Context) error {
	*s.calls = append(*s.calls, s.name+".post")
	return s.postErr
}

func (s *recordingSubsystem) Shutdown(context.Context) error {
	*s.calls = append(*s.calls, s.name+".shutdown")
	return s.stopErr
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestEngine_Order(t *testing.T) {
	var calls []string
	a := &recordingSubsystem{name: "a", calls: &calls}
	b := &recordingSubsystem{name: "b", calls: &calls}
	engine := NewEngine(registry.New(), discardLogger(), a, b)

	require.NoError(t, engine.Start(context.Background()))
	require.NoError(t, engine.Shutdown(context.Background()))

	assert.Equal(t, []string{
		"a.pre", "b.pre",
		"a.post", "b.post",
		"b.shutdown", "a.shutdown",
	}, calls)
}

func TestEngine_AbortOnPreInitialise(t *testing.T) {
	var calls []string
	boom := errors.New("boom")
	a := &recordingSubsystem{name: "a", calls: &calls}
	b := &recordingSubsystem{name: "b", calls: &calls, preErr: boom}
	c := &recordingSubsystem{name: "c", calls: &calls}
	engine := NewEngine(registry.New(), discardLogger(), a, b, c)

	err := engine.Start(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "b: pre-initialise")
	assert.Equal(t, []string{"a.pre", "b.pre", "a.shutdown"}, calls)
}

func TestEngine_AbortOnPostInitialise(t *testing.T) {
	var calls []string
	boom := errors.New("boom")
	a := &recordingSubsystem{name: "a", calls: &calls, postErr: boom}
	b := &recordingSubsystem{name: "b", calls: &calls}
	engine := NewEngine(registry.New(), discardLogger(), a, b)

	err := engine.Start(context.Background())
	require.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"a.pre", "b.pre", "a.post", "b.shutdown", "a.shutdown"}, calls)
}

func TestEngine_ShutdownJoinsErrors(t *testing.T) {
	var calls []string
	errA := errors.New("a failed")
	errB := errors.New("b failed")
	a := &recordingSubsystem{name: "a", calls: &calls, stopErr: errA}
	b := &recordingSubsystem{name: "b", calls: &calls, stopErr: errB}
	engine := NewEngine(registry.New(), discardLogger(), a, b)

	require.NoError(t, engine.Start(context.Background()))
	err := engine.Shutdown(context.Background())
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)

	calls = nil
	assert.NoError(t, engine.Shutdown(context.Background()))
	assert.Empty(t, calls)
}

func TestEngine_Registry(t *testing.T) {
	reg := registry.New()
	engine := NewEngine(reg, discardLogger())
	assert.Same(t, reg, engine.Registry())
}
