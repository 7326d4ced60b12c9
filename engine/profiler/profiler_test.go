package profiler

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Carmen-Shannon/oxy-technique/common"
)

func TestPassTimerAverage(t *testing.T) {
	p := NewProfiler()
	timer := p.Pass("opaque")
	assert.Same(t, timer, p.Pass("opaque"))
	assert.Zero(t, timer.Average())

	timer.Record(2 * time.Millisecond)
	timer.Record(4 * time.Millisecond)
	assert.Equal(t, 3*time.Millisecond, timer.Average())
	assert.Equal(t, 4*time.Millisecond, timer.Last())
	assert.Equal(t, 2, timer.Samples())

	timer.Reset()
	assert.Zero(t, timer.Samples())
	assert.Zero(t, timer.Average())
}

func TestPassTimerStart(t *testing.T) {
	timer := NewProfiler().Pass("combine")
	stop := timer.Start()
	time.Sleep(time.Millisecond)
	stop()
	assert.Equal(t, 1, timer.Samples())
	assert.GreaterOrEqual(t, timer.Last(), time.Millisecond)
}

func TestTickLogsPassAverages(t *testing.T) {
	orig := common.Logger()
	t.Cleanup(func() { common.SetLogger(orig) })
	var buf bytes.Buffer
	common.SetLogger(slog.New(slog.NewTextHandler(&buf, nil)))

	p := NewProfiler(WithInterval(time.Nanosecond))
	p.RecordPasses(map[string]time.Duration{
		"shadows": 6 * time.Millisecond,
		"opaque":  2 * time.Millisecond,
	})
	time.Sleep(time.Millisecond)
	require.True(t, p.Tick())

	out := buf.String()
	assert.Contains(t, out, "fps=")
	assert.Contains(t, out, "passes.shadows=6ms")
	assert.Contains(t, out, "passes.opaque=2ms")
	assert.Zero(t, p.Pass("shadows").Samples())
}

func TestTickWaitsForInterval(t *testing.T) {
	p := NewProfiler(WithInterval(time.Hour))
	assert.False(t, p.Tick())
	assert.False(t, p.Tick())
}
