package metrics

import (
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoopRecorderIsSafe(t *testing.T) {
	var r Recorder = NoopRecorder{}
	r.ObserveStageDuration("render_chapters", time.Second)
	r.ObserveBuildDuration(time.Second)
	r.IncStageResult("render_chapters", ResultSuccess)
	r.IncBuildOutcome("success")
	r.IncChapterRendered(true)
	r.IncChapterFailed()
}

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	r := NewPrometheusRecorder(reg)

	r.IncChapterRendered(false)
	r.IncChapterRendered(false)
	r.IncChapterRendered(true)
	r.IncChapterFailed()
	r.IncBuildOutcome("warning")
	r.IncStageResult("render_chapters", ResultWarning)
	r.ObserveBuildDuration(250 * time.Millisecond)
	r.ObserveStageDuration("indexes", 10*time.Millisecond)

	rendered := testutil.ToFloat64(r.chaptersRendered.WithLabelValues("render"))
	assert.Equal(t, 2.0, rendered)
	cached := testutil.ToFloat64(r.chaptersRendered.WithLabelValues("cache"))
	assert.Equal(t, 1.0, cached)
	assert.Equal(t, 1.0, testutil.ToFloat64(r.chaptersFailed))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.buildOutcome.WithLabelValues("warning")))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestPrometheusRecorderNilReceiverSafe(t *testing.T) {
	var r *PrometheusRecorder
	r.IncChapterRendered(true)
	r.IncBuildOutcome("success")
	r.ObserveBuildDuration(time.Second)
}
