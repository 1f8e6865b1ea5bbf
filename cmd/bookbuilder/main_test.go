package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/bookbuilder/internal/config"
)

func TestApplyBuildOverrides(t *testing.T) {
	m, err := config.Parse([]byte(`
book:
  title: Notes
  parts:
    - title: Main
      chapters: [index.md]
`))
	require.NoError(t, err)

	CLI.Build.Output = "/tmp/out"
	CLI.Build.Freeze = "refresh"
	t.Cleanup(func() { CLI.Build.Output = ""; CLI.Build.Freeze = "" })

	require.NoError(t, applyBuildOverrides(m))
	assert.Equal(t, "/tmp/out", m.Output.Directory)
	assert.Equal(t, config.FreezeRefresh, m.Format.HTML.Freeze)

	CLI.Build.Freeze = "sometimes"
	assert.Error(t, applyBuildOverrides(m))
}

func TestFreezeDBPath(t *testing.T) {
	assert.Equal(t, filepath.Join("/src", ".bookbuilder", "freeze.db"), freezeDBPath("/src"))
}
