package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"engagedl/pkg/checkpoint"
	"engagedl/pkg/config"
	"engagedl/pkg/engagement"
	"engagedl/pkg/storage"
	"engagedl/pkg/ui"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestReadIDs(t *testing.T) {
	input := "# header\n1001\n\n  1002  \n#1003\n1001\n"

	ids, err := readIDs(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []string{"1001", "1002", "1001"}, ids)
}

func TestReadIDsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ids.txt")
	require.NoError(t, os.WriteFile(path, []byte("A\r\nB\r\n"), 0644))

	ids, err := readIDsFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, ids)

	_, err = readIDsFile(filepath.Join(t.TempDir(), "missing.txt"))
	assert.ErrorContains(t, err, "open ids file")
}

func TestRequestedTypes(t *testing.T) {
	types, err := requestedTypes(config.APIConfig{})
	require.NoError(t, err)
	assert.Equal(t, engagement.DefaultTypes(), types)

	types, err = requestedTypes(config.APIConfig{Owned: true})
	require.NoError(t, err)
	assert.Equal(t, engagement.OwnedTypes(), types)

	types, err = requestedTypes(config.APIConfig{Owned: true, EngagementTypes: []string{"replies"}})
	require.NoError(t, err)
	assert.Equal(t, []engagement.Type{engagement.Replies}, types)

	_, err = requestedTypes(config.APIConfig{EngagementTypes: []string{"likes"}})
	assert.Error(t, err)
}

func TestMaskedConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.API.ConsumerKey = "abcdefghijkl"
	cfg.API.ConsumerSecret = "short"

	display := maskedConfig(cfg)
	assert.Equal(t, "abcd...ijkl", display.API.ConsumerKey)
	assert.Equal(t, "***", display.API.ConsumerSecret)
	assert.Equal(t, "abcdefghijkl", cfg.API.ConsumerKey, "original untouched")
}

func TestExampleConfigParses(t *testing.T) {
	cfg := config.DefaultConfig()
	require.NoError(t, yaml.Unmarshal([]byte(exampleConfig), cfg))
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, "engagement.csv", cfg.Storage.Output)
}

func newPlanFixture(t *testing.T) (*config.Config, storage.Sink, *checkpoint.Manager) {
	t.Helper()
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	ui.SetQuietMode(true)
	t.Cleanup(func() {
		ui.SetQuietMode(false)
		resumeDownload, forceRestart = false, false
	})

	cfg := config.DefaultConfig()
	cfg.Storage.Output = filepath.Join(t.TempDir(), "totals.csv")

	sink := storage.NewCSVSink(cfg.Storage.Output)
	require.NoError(t, sink.Save(context.Background(), []storage.Row{{ID: "A", Favorites: 1}}))

	mgr, err := checkpoint.NewManager(cfg.Storage.Output)
	require.NoError(t, err)
	cp, err := mgr.Create(1000, 0)
	require.NoError(t, err)
	require.NoError(t, mgr.UpdateProgress(cp, 500, 2, 1))

	return cfg, sink, mgr
}

func TestPlanStartResume(t *testing.T) {
	cfg, sink, mgr := newPlanFixture(t)
	resumeDownload = true

	plan, err := planStart(context.Background(), cfg, false, 1000, sink, mgr)
	require.NoError(t, err)
	assert.Equal(t, 500, plan.offset)
	assert.Equal(t, []storage.Row{{ID: "A", Favorites: 1}}, plan.rows)
	require.NotNil(t, plan.checkpoint)

	cfg.Download.StartOffset = 250
	plan, err = planStart(context.Background(), cfg, true, 1000, sink, mgr)
	require.NoError(t, err)
	assert.Equal(t, 250, plan.offset, "explicit offset wins")
}

func TestPlanStartFresh(t *testing.T) {
	cfg, sink, mgr := newPlanFixture(t)

	plan, err := planStart(context.Background(), cfg, false, 1000, sink, mgr)
	require.NoError(t, err)
	assert.Equal(t, 0, plan.offset)
	assert.Empty(t, plan.rows)
	assert.Nil(t, plan.checkpoint)
	assert.True(t, mgr.Exists())
}

func TestPlanStartForceRestart(t *testing.T) {
	cfg, sink, mgr := newPlanFixture(t)
	forceRestart = true
	resumeDownload = true

	plan, err := planStart(context.Background(), cfg, false, 1000, sink, mgr)
	require.NoError(t, err)
	assert.Equal(t, 0, plan.offset)
	assert.Nil(t, plan.checkpoint)
	assert.False(t, mgr.Exists())
}
