// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexora-labs/nexora-tui/internal/model"
)

// isolate points the config dir at a temp dir and clears env overrides.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("NEXORA_HOME", dir)
	for _, key := range []string{"NEXORA_URL", "NEXORA_BACKEND", "NEXORA_MODEL", "NEXORA_LOG_LEVEL"} {
		t.Setenv(key, "")
	}
	return dir
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, BackendRelay, cfg.Backend.Kind)
	assert.Equal(t, "http://127.0.0.1:8000", cfg.Backend.URL)
	assert.Equal(t, "/chat", cfg.Backend.ChatPath)
	assert.Equal(t, "gpt-3.5-turbo", cfg.Models.Default)
	assert.Contains(t, cfg.Models.Available, "grok-2-latest")
}

func TestLoad_NoFileUsesDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default().Backend, cfg.Backend)
}

func TestLoad_SearchOrder(t *testing.T) {
	dir := isolate(t)

	writeFile(t, filepath.Join(dir, "config.json"), `{"backend":{"url":"http://json.local:1"}}`)
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://json.local:1", cfg.Backend.URL)

	writeFile(t, filepath.Join(dir, "config.yaml"), "backend:\n  url: http://yaml.local:2\n")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, "http://yaml.local:2", cfg.Backend.URL)

	writeFile(t, filepath.Join(dir, "config.toml"), "[backend]\nurl = \"http://toml.local:3\"\n")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, "http://toml.local:3", cfg.Backend.URL)

	active, err := ActivePath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "config.toml"), active)
}

func TestLoadFromPath_TOML(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "nexora.toml")
	writeFile(t, path, `
[backend]
kind = "ollama"

[models]
available = ["llama3.2", "qwen2.5:7b"]
default = "qwen2.5:7b"

[ui]
max_fps = 60
show_timestamps = true
`)

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, BackendOllama, cfg.Backend.Kind)
	assert.Equal(t, "http://127.0.0.1:11434", cfg.Backend.URL, "ollama gets its own default URL")
	assert.Equal(t, 60, cfg.UI.MaxFPS)
	assert.True(t, cfg.UI.ShowTimestamps)
	assert.Equal(t, "info", cfg.Log.Level)

	sel, err := cfg.NewSelector()
	require.NoError(t, err)
	assert.Equal(t, model.ID("qwen2.5:7b"), sel.Current())
	assert.Equal(t, []model.ID{"llama3.2", "qwen2.5:7b"}, sel.Catalog().IDs())
}

func TestLoadFromPath_Invalid(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "bad.toml")
	writeFile(t, path, `
[backend]
kind = "carrier-pigeon"
url = "not a url"
chat_path = "chat"

[models]
available = ["a", "b"]
default = "c"

[log]
level = "loud"
`)

	_, err := LoadFromPath(path)
	require.Error(t, err)

	var verrs ValidateErrors
	require.True(t, errors.As(err, &verrs))

	fields := map[string]bool{}
	for _, v := range verrs {
		fields[v.Field] = true
	}
	for _, want := range []string{"backend.kind", "backend.url", "backend.chat_path", "models.default", "log.level"} {
		assert.True(t, fields[want], "expected error for %s, got %v", want, verrs)
	}
}

func TestLoadFromPath_Malformed(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "broken.toml")
	writeFile(t, path, "[backend\nurl = ")

	_, err := LoadFromPath(path)
	assert.Error(t, err)
}

func TestValidate_Ranges(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"timeout zero", func(c *Config) { c.Backend.ConnectTimeoutSecs = 0 }, "backend.connect_timeout_secs"},
		{"timeout huge", func(c *Config) { c.Backend.ConnectTimeoutSecs = 1000 }, "backend.connect_timeout_secs"},
		{"chunk negative", func(c *Config) { c.Backend.ChunkSize = -1 }, "backend.chunk_size"},
		{"fps", func(c *Config) { c.UI.MaxFPS = 500 }, "ui.max_fps"},
		{"duplicate models", func(c *Config) { c.Models.Available = []string{"a", "a"}; c.Models.Default = "a" }, "models.available"},
		{"ftp url", func(c *Config) { c.Backend.URL = "ftp://host" }, "backend.url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("NEXORA_MODEL", "gpt-4o")
	t.Setenv("NEXORA_LOG_LEVEL", "DEBUG")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", cfg.Models.Default)
	assert.Equal(t, "debug", cfg.Log.Level)

	t.Setenv("NEXORA_BACKEND", "ollama")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, BackendOllama, cfg.Backend.Kind)
	assert.Equal(t, "http://127.0.0.1:11434", cfg.Backend.URL)

	t.Setenv("NEXORA_URL", "http://gpu-box:11434")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, "http://gpu-box:11434", cfg.Backend.URL)
}

func TestEnvModelMustBeInCatalog(t *testing.T) {
	isolate(t)
	t.Setenv("NEXORA_MODEL", "not-a-model")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "models.default")
}

func TestSave_RoundTrip(t *testing.T) {
	isolate(t)
	cfg := Default()
	cfg.Backend.URL = "https://relay.example.com"
	cfg.UI.MaxFPS = 15

	require.NoError(t, Save(cfg))

	path, err := ConfigPathTOML()
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "# nexora configuration file"))

	loaded, err := Load()
	require.NoError(t, err)
	assert.Equal(t, cfg.Backend, loaded.Backend)
	assert.Equal(t, cfg.Models, loaded.Models)
	assert.Equal(t, 15, loaded.UI.MaxFPS)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasPrefix(e.Name(), ".tmp-"), "temp file left behind: %s", e.Name())
	}
}

func TestGetSet(t *testing.T) {
	cfg := Default()

	v, err := cfg.Get("backend.chat_path")
	require.NoError(t, err)
	assert.Equal(t, "/chat", v)

	require.NoError(t, cfg.Set("ui.max_fps", "45"))
	assert.Equal(t, 45, cfg.UI.MaxFPS)

	require.NoError(t, cfg.Set("ui.show_timestamps", "yes"))
	assert.True(t, cfg.UI.ShowTimestamps)

	require.NoError(t, cfg.Set("models.available", "gpt-4o, grok-2-latest"))
	assert.Equal(t, []string{"gpt-4o", "grok-2-latest"}, cfg.Models.Available)

	require.NoError(t, cfg.Set("backend.url", "http://10.0.0.2:8000"))
	assert.Equal(t, "http://10.0.0.2:8000", cfg.Backend.URL)

	_, err = cfg.Get("backend.nope")
	assert.Error(t, err)
	assert.Error(t, cfg.Set("ui.max_fps", "fast"))
	assert.Error(t, cfg.Set("", "x"))

	for _, key := range GetAllKeys() {
		_, err := cfg.Get(key)
		assert.NoError(t, err, key)
	}
}

func TestClone_IsDeep(t *testing.T) {
	cfg := Default()
	clone := cfg.Clone()
	clone.Models.Available[0] = "changed"
	assert.NotEqual(t, "changed", cfg.Models.Available[0])
}

func TestLogPath(t *testing.T) {
	dir := isolate(t)
	cfg := Default()

	path, err := cfg.LogPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "nexora.log"), path)

	cfg.Log.File = "/var/log/nexora.log"
	path, err = cfg.LogPath()
	require.NoError(t, err)
	assert.Equal(t, "/var/log/nexora.log", path)
}

// TestConfig_ConcurrentAccess checks Global and SetGlobal under -race.
func TestConfig_ConcurrentAccess(t *testing.T) {
	isolate(t)
	ResetGlobalForTesting()
	defer ResetGlobalForTesting()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			SetGlobal(Default())
		}()
		go func() {
			defer wg.Done()
			if Global() == nil {
				t.Error("Global() returned nil")
			}
		}()
	}
	wg.Wait()
}

func TestWatch_ReloadsOnChange(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, SaveTOML(Default(), path))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan *Config, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, 20*time.Millisecond, func(cfg *Config, err error) {
			if err != nil {
				return
			}
			select {
			case reloaded <- cfg:
			default:
			}
		})
	}()

	// keep rewriting until the watcher has registered and reloaded
	updated := Default()
	updated.Backend.URL = "http://reloaded:9000"
	require.Eventually(t, func() bool {
		if err := SaveTOML(updated, path); err != nil {
			return false
		}
		select {
		case cfg := <-reloaded:
			return cfg.Backend.URL == "http://reloaded:9000"
		case <-time.After(200 * time.Millisecond):
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}

func TestWatch_IgnoresOtherFiles(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, SaveTOML(Default(), path))

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	var calls int
	var mu sync.Mutex
	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hi"), 0644)
	}()

	require.NoError(t, Watch(ctx, path, 10*time.Millisecond, func(*Config, error) {
		mu.Lock()
		calls++
		mu.Unlock()
	}))

	mu.Lock()
	defer mu.Unlock()
	assert.Zero(t, calls)
}
