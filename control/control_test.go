package control_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/joeycumines/logiface"
	"github.com/momentics/hioload-mt/api"
	"github.com/momentics/hioload-mt/control"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_OverridesDefaults(t *testing.T) {
	cfg, err := control.Parse([]byte(`
name: edge
dispatcher:
  max: 8
  poll_timeout: 250ms
chain_queue:
  capacity: 4
timed_event:
  interval: 2s
thread:
  cpu: 1
`))
	require.NoError(t, err)
	assert.Equal(t, "edge", cfg.Name)
	assert.Equal(t, 8, cfg.Dispatcher.Max)
	assert.Equal(t, "epoll_service", cfg.Dispatcher.Service)
	assert.Equal(t, 250*time.Millisecond, cfg.Dispatcher.PollTimeout)
	assert.Equal(t, 4, cfg.ChainQueue.Capacity)
	assert.Equal(t, 16, cfg.ChainQueue.MaxBatch)
	assert.Equal(t, 2*time.Second, cfg.TimedEvent.Interval)
	assert.Equal(t, 1, cfg.Thread.CPU)
}

func TestParse_RejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"zero max":      "dispatcher:\n  max: 0\n",
		"empty service": "dispatcher:\n  service: \"\"\n",
		"zero capacity": "chain_queue:\n  capacity: 0\n",
		"zero interval": "timed_event:\n  interval: 0s\n",
		"bad cpu":       "thread:\n  cpu: -2\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := control.Parse([]byte(doc))
			assert.ErrorIs(t, err, api.ErrInvalidArgument)
		})
	}

	_, err := control.Parse([]byte("dispatcher: ["))
	assert.Error(t, err)
}

func TestDefaultConfig_Valid(t *testing.T) {
	require.NoError(t, control.DefaultConfig().Validate())
}

func TestResolve(t *testing.T) {
	m := control.NewMetrics()
	p := control.NewDebugProbes()
	s, err := control.Resolve("chainqueue", []control.Option{
		nil,
		control.WithName("jobs"),
		control.WithMetrics(m),
		control.WithProbes(p),
		control.WithLogger(nil),
	})
	require.NoError(t, err)
	assert.Equal(t, "jobs", s.Name)
	assert.Same(t, m, s.Metrics)
	assert.Same(t, p, s.Probes)
	assert.Nil(t, s.Logger)

	s, err = control.Resolve("event", nil)
	require.NoError(t, err)
	assert.Equal(t, "event", s.Name)

	_, err = control.Resolve("event", []control.Option{control.WithName("")})
	assert.ErrorIs(t, err, api.ErrInvalidArgument)
}

func TestMetrics_RecordAndRegister(t *testing.T) {
	m := control.NewMetrics()
	reg := prometheus.NewRegistry()
	require.NoError(t, m.Register(reg))
	assert.Error(t, m.Register(reg))

	m.RecordPosted("q", 3)
	m.RecordDelivered("q")
	m.RecordDelivered("q")
	m.RecordTimeout("t")
	m.RecordError("q", api.ErrCodeInvalidArgument.String())
	m.RecordPending("q", 5)
	m.RecordRegistrations("d", 2)
	m.RecordBatch("d", 3)
	m.RecordBatch("d", 0)
	m.RecordNotification("d", "continue")

	assert.Equal(t, 3.0, testutil.ToFloat64(m.Posted.WithLabelValues("q")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Delivered.WithLabelValues("q")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Timeouts.WithLabelValues("t")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Errors.WithLabelValues("q", "invalid_argument")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.Pending.WithLabelValues("q")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Registrations.WithLabelValues("d")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Iterations.WithLabelValues("d")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Notifications.WithLabelValues("d", "continue")))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *control.Metrics
	assert.NotPanics(t, func() {
		m.RecordPosted("x", 1)
		m.RecordDelivered("x")
		m.RecordCoalesced("x")
		m.RecordTimeout("x")
		m.RecordError("x", "y")
		m.RecordPending("x", 1)
		m.RecordNotification("x", "y")
		m.RecordRegistrations("x", 1)
		m.RecordBatch("x", 1)
	})
}

func TestDebugProbes(t *testing.T) {
	dp := control.NewDebugProbes()
	dp.RegisterProbe("b", func() any { return 2 })
	dp.RegisterProbe("a", func() any { return "one" })
	control.RegisterPlatformProbes(dp)

	state := dp.DumpState()
	assert.Equal(t, 2, state["b"])
	assert.Equal(t, "one", state["a"])
	assert.Contains(t, state, "platform.cpus")

	dp.UnregisterProbe("b")
	assert.NotContains(t, dp.Names(), "b")
	assert.Equal(t, "a", dp.Names()[0])

	var nilProbes *control.DebugProbes
	assert.NotPanics(t, func() {
		nilProbes.RegisterProbe("x", func() any { return nil })
		nilProbes.UnregisterProbe("x")
	})
}

func TestNewTextLogger_WritesLevelAndSortedFields(t *testing.T) {
	var buf bytes.Buffer
	logger := control.NewTextLogger(&buf, logiface.LevelInformational)

	logger.Info().Str("processor", "chains").Int("free", 3).Log("ready")
	logger.Debug().Log("hidden")
	logger.Err().Err(errors.New("boom")).Log("failed")
	logger.Info().Err(nil).Log("nil error")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "INF ready free=3 processor=chains")
	assert.Contains(t, lines[1], "ERR failed error=boom")
	assert.NotContains(t, buf.String(), "hidden")
	assert.True(t, strings.HasSuffix(lines[2], "INF nil error"))
}

func TestNewJSONLogger_WritesOneObjectPerEvent(t *testing.T) {
	var buf bytes.Buffer
	logger := control.NewJSONLogger(&buf, logiface.LevelDebug)

	logger.Debug().Uint64("id", 7).Dur("timeout", 2*time.Millisecond).Log("armed")
	logger.Crit().Bool("fatal", false).Log("still running")
	logger.Trace().Log("hidden")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var first map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "debug", first["level"])
	assert.Equal(t, "armed", first["message"])
	assert.Equal(t, 7.0, first["id"])
	assert.Equal(t, 2.0, first["timeout"])
	assert.Contains(t, first, "time")

	// critical maps to zerolog's fatal level without exiting
	var second map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, "fatal", second["level"])
	assert.Equal(t, false, second["fatal"])
}
