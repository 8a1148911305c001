// control/options.go
// Author: momentics <momentics@gmail.com>
//
// Functional options shared by every processor and the dispatcher.

package control

import (
	"fmt"

	"github.com/joeycumines/logiface"
	"github.com/momentics/hioload-mt/api"
)

// Logger is the structured logger accepted by all components. A nil
// *Logger is valid and discards everything.
type Logger = logiface.Logger[logiface.Event]

// Settings is the resolved form of a set of Option values.
type Settings struct {
	Name    string
	Logger  *Logger
	Metrics *Metrics
	Probes  *DebugProbes
}

// Option configures a processor or dispatcher.
type Option interface {
	apply(*Settings) error
}

type optionFunc func(*Settings) error

func (f optionFunc) apply(s *Settings) error { return f(s) }

// WithName sets the instance name used in logs, metric labels and probes.
func WithName(name string) Option {
	return optionFunc(func(s *Settings) error {
		if name == "" {
			return fmt.Errorf("control: %w: empty name", api.ErrInvalidArgument)
		}
		s.Name = name
		return nil
	})
}

// WithLogger attaches a logger.
func WithLogger(logger *Logger) Option {
	return optionFunc(func(s *Settings) error {
		s.Logger = logger
		return nil
	})
}

// WithMetrics attaches a metrics set.
func WithMetrics(m *Metrics) Option {
	return optionFunc(func(s *Settings) error {
		s.Metrics = m
		return nil
	})
}

// WithProbes attaches a probe registry; components register a state probe
// under their name.
func WithProbes(p *DebugProbes) Option {
	return optionFunc(func(s *Settings) error {
		s.Probes = p
		return nil
	})
}

// Resolve applies opts over the defaults for kind. Nil options are skipped.
func Resolve(kind string, opts []Option) (Settings, error) {
	s := Settings{Name: kind}
	for _, o := range opts {
		if o == nil {
			continue
		}
		if err := o.apply(&s); err != nil {
			return Settings{}, err
		}
	}
	return s, nil
}
