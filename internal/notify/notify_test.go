package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/bookbuilder/internal/site"
)

func TestNilNotifierIsSafe(t *testing.T) {
	var n *Notifier
	assert.NoError(t, n.PublishBuild("Developer Notes", &site.BuildReport{}))
	n.Close()
}

func TestNewNotifierUnconfigured(t *testing.T) {
	n, err := NewNotifier(nil)
	require.NoError(t, err)
	assert.Nil(t, n)
}
