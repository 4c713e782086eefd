package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"linestatus/internal/channel"
	"linestatus/internal/config"
	"linestatus/internal/element"
	"linestatus/internal/fault"
	"linestatus/internal/p9"
	"linestatus/internal/pidfile"
)

func parse(t *testing.T, args ...string) (*runFlags, *pflag.FlagSet) {
	t.Helper()
	var f runFlags
	fs := pflag.NewFlagSet("linestatus", pflag.ContinueOnError)
	f.register(fs)
	fs.SetNormalizeFunc(normalizeFlag)
	require.NoError(t, fs.Parse(args))
	return &f, fs
}

func TestRunFlags_Aliases(t *testing.T) {
	f, fs := parse(t, "--line-color", "#00ff00", "--orient", "horizontal", "--pos", "10,20", "--debug")
	cfg := config.DefaultConfig()
	require.NoError(t, f.apply(cfg, fs, "laptop"))

	assert.Equal(t, "laptop", cfg.General.Type)
	assert.True(t, cfg.General.Debug)

	specs, err := cfg.Specs()
	require.NoError(t, err)
	require.Len(t, specs, 1)
	assert.Equal(t, element.Color{G: 0xFF}, specs[0].Color)
	assert.Equal(t, element.Horizontal, specs[0].Orientation)
	assert.Equal(t, element.Anchor{Edge: element.EdgeOffset, X: 10, Y: 20}, specs[0].Anchor)
}

func TestRunFlags_OrientationResetsPosition(t *testing.T) {
	f, fs := parse(t, "--orientation", "horizontal")
	cfg := config.DefaultConfig()
	cfg.Elements[0].Position = "right"
	require.NoError(t, f.apply(cfg, fs, ""))

	specs, err := cfg.Specs()
	require.NoError(t, err)
	assert.Equal(t, element.Anchor{Edge: element.EdgeBottom}, specs[0].Anchor)
	assert.Equal(t, config.DefaultType, cfg.General.Type)
}

func TestRunFlags_Multi(t *testing.T) {
	f, fs := parse(t, "--multi", "--initial", "0.1", "--no-9p")
	cfg := config.DefaultConfig()
	require.NoError(t, f.apply(cfg, fs, ""))

	require.Len(t, cfg.Elements, 2)
	assert.False(t, cfg.Server.Enabled)
	specs, err := cfg.Specs()
	require.NoError(t, err)
	assert.InDelta(t, 0.1, specs[0].Initial, 1e-9)
	assert.InDelta(t, config.MultiInitial, specs[1].Initial, 1e-9)
}

func TestRunFlags_Invalid(t *testing.T) {
	for _, args := range [][]string{
		{"--color", "orange"},
		{"--poll-interval", "5ms"},
		{"--initial", "2"},
		{"--name", "a b"},
	} {
		f, fs := parse(t, args...)
		assert.Error(t, f.apply(config.DefaultConfig(), fs, ""), "%v", args)
	}

	f, fs := parse(t, "--name", "mic")
	cfg := config.DefaultConfig()
	cfg.Elements = config.MultiPreset()
	assert.Error(t, f.apply(cfg, fs, ""))
}

func TestSend_Validates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "none.sock")

	assert.ErrorIs(t, send(path, "abc", true), fault.ErrInvalidValue)
	assert.ErrorIs(t, send(path, "volume:", true), fault.ErrMalformedCommand)
	assert.Error(t, send(path, "1234567890123456789012345678901234", true))
	assert.Error(t, send(path, "50", true), "nothing listening")
}

func TestServe_Headless(t *testing.T) {
	dir, err := os.MkdirTemp("", "ls")
	require.NoError(t, err)
	defer os.RemoveAll(dir)
	t.Setenv("XDG_RUNTIME_DIR", dir)
	t.Setenv("NAMESPACE", filepath.Join(dir, "ns"))

	cfg := config.DefaultConfig()
	cfg.General.Type = "test"
	cfg.General.Headless = true
	cfg.General.PollInterval = config.MinPollInterval
	cfg.Elements = config.MultiPreset()

	core, logs := observer.New(zapcore.DebugLevel)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, cfg, zap.New(core)) }()

	sock := channel.SocketPath(dir, "test")
	ninep := filepath.Join(dir, "ns", p9.ServiceName("test"))
	require.Eventually(t, func() bool {
		_, err1 := os.Stat(sock)
		_, err2 := os.Stat(ninep)
		return err1 == nil && err2 == nil
	}, 2*time.Second, 10*time.Millisecond)

	pid, err := pidfile.Lookup(pidfile.Path("test"))
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)

	require.NoError(t, send(sock, "brightness:30", true))
	require.NoError(t, send(sock, "75", true))
	require.Eventually(t, func() bool {
		return logs.FilterMessage("value updated").Len() == 2
	}, 2*time.Second, 10*time.Millisecond)

	updates := logs.FilterMessage("value updated").All()
	assert.Equal(t, "brightness", updates[0].ContextMap()["element"])
	assert.Equal(t, "volume", updates[1].ContextMap()["element"])
	assert.Equal(t, 2, logs.FilterMessage("redraw").Len())

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("serve did not return")
	}

	for _, p := range []string{sock, ninep, pidfile.Path("test")} {
		_, err := os.Stat(p)
		assert.True(t, os.IsNotExist(err), p)
	}
}
