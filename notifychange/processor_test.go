package notifychange_test

import (
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/momentics/hioload-mt/api"
	"github.com/momentics/hioload-mt/control"
	"github.com/momentics/hioload-mt/notifychange"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type delivery struct {
	user  api.User
	value string
}

type recorder struct {
	mu  sync.Mutex
	got []delivery
	ch  chan struct{}
}

func newRecorder() *recorder { return &recorder{ch: make(chan struct{}, 16)} }

func (r *recorder) Process(user api.User, value string) {
	r.mu.Lock()
	r.got = append(r.got, delivery{user, value})
	r.mu.Unlock()
	r.ch <- struct{}{}
}

func (r *recorder) deliveries() []delivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]delivery(nil), r.got...)
}

type factory func(t *testing.T, initial string, opts ...control.Option) *notifychange.Processor[string]

func flavours() map[string]factory {
	out := map[string]factory{
		"cond": func(t *testing.T, initial string, opts ...control.Option) *notifychange.Processor[string] {
			p, err := notifychange.NewCond(initial, opts...)
			require.NoError(t, err)
			return p
		},
	}
	if runtime.GOOS == "linux" {
		out["eventfd"] = func(t *testing.T, initial string, opts ...control.Option) *notifychange.Processor[string] {
			p, err := notifychange.New(initial, opts...)
			require.NoError(t, err)
			return p
		}
	}
	return out
}

// drain runs Process in the background until the processor is closed.
func drain(p *notifychange.Processor[string], r *recorder) <-chan error {
	done := make(chan error, 1)
	go func() {
		for {
			if err := p.Process(r, 1); err != nil {
				done <- err
				return
			}
		}
	}()
	return done
}

func TestPost_SameValueTwiceDeliversOnce(t *testing.T) {
	for name, mk := range flavours() {
		t.Run(name, func(t *testing.T) {
			m := control.NewMetrics()
			p := mk(t, "", control.WithName("state"), control.WithMetrics(m))
			c := p.MakeClient(1)

			changed, err := c.Post("A")
			require.NoError(t, err)
			assert.True(t, changed)
			changed, err = c.Post("A")
			require.NoError(t, err)
			assert.False(t, changed)

			r := newRecorder()
			done := drain(p, r)
			<-r.ch
			time.Sleep(20 * time.Millisecond)
			require.NoError(t, p.Close())
			<-done

			assert.Equal(t, []delivery{{1, "A"}}, r.deliveries())
			assert.Equal(t, 1.0, testutil.ToFloat64(m.Coalesced.WithLabelValues("state")))
		})
	}
}

func TestPost_LatestDistinctValueWins(t *testing.T) {
	for name, mk := range flavours() {
		t.Run(name, func(t *testing.T) {
			p := mk(t, "")
			a, b := p.MakeClient(1), p.MakeClient(2)

			_, err := a.Post("A")
			require.NoError(t, err)
			_, err = b.Post("B")
			require.NoError(t, err)

			r := newRecorder()
			done := drain(p, r)
			<-r.ch
			time.Sleep(20 * time.Millisecond)
			require.NoError(t, p.Close())
			<-done

			assert.Equal(t, []delivery{{2, "B"}}, r.deliveries())
		})
	}
}

func TestPost_InitialValueIsNotAChange(t *testing.T) {
	for name, mk := range flavours() {
		t.Run(name, func(t *testing.T) {
			p := mk(t, "idle")
			defer p.Close()
			changed, err := p.MakeClient(0).Post("idle")
			require.NoError(t, err)
			assert.False(t, changed)

			user, value := p.Value()
			assert.Equal(t, api.NoUser, user)
			assert.Equal(t, "idle", value)
		})
	}
}

func TestPost_ChangeAfterDeliveryIsDeliveredAgain(t *testing.T) {
	for name, mk := range flavours() {
		t.Run(name, func(t *testing.T) {
			p := mk(t, "")
			c := p.MakeClient(4)
			r := newRecorder()
			done := drain(p, r)

			_, err := c.Post("on")
			require.NoError(t, err)
			<-r.ch
			_, err = c.Post("off")
			require.NoError(t, err)
			<-r.ch
			// flipping back to a value seen earlier is still a change
			_, err = c.Post("on")
			require.NoError(t, err)
			<-r.ch

			require.NoError(t, p.Close())
			<-done
			assert.Equal(t, []delivery{{4, "on"}, {4, "off"}, {4, "on"}}, r.deliveries())
		})
	}
}

func TestClient_InvalidStates(t *testing.T) {
	for name, mk := range flavours() {
		t.Run(name, func(t *testing.T) {
			p := mk(t, "")
			c := p.MakeClient(1)
			moved := c.Move()
			_, err := c.Post("x")
			assert.ErrorIs(t, err, api.ErrUsedWhileInvalid)
			assert.True(t, moved.Valid())

			require.NoError(t, p.Close())
			_, err = moved.Post("x")
			assert.ErrorIs(t, err, api.ErrUsedWhileInvalid)
			assert.ErrorIs(t, p.Process(newRecorder(), 1), api.ErrUsedWhileInvalid)

			var zero notifychange.Client[string]
			assert.False(t, zero.Valid())
		})
	}
}
