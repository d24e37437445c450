package node

import (
	"reflect"

	"go.uber.org/fx"
)

// Option is a functional option which can be used with the New function to
// change how the node is constructed
type Option func(*Settings) error

// Settings holds the fx options the node is built from
type Settings struct {
	// modules is a map of constructors for DI, keyed by the type they provide
	modules map[reflect.Type]fx.Option

	// invokes are separate from modules as they can't be referenced by return
	// type, and must be applied in correct order
	invokes []fx.Option

	// outputs are populated from the container once it is built
	outputs []fx.Option
}

// Invokes are called in the order they are defined.
type invoke int

const (
	// seed the provider directory from the config before anything runs
	SeedProvidersKey = invoke(iota)
	TracingKey
	RecordInfoKey
	ServeHTTPKey

	_nInvokes // keep this last
)

// Options groups multiple options into one
func Options(opts ...Option) Option {
	return func(s *Settings) error {
		for _, opt := range opts {
			if err := opt(s); err != nil {
				return err
			}
		}
		return nil
	}
}

// Override option changes constructor for a given type, or sets the function
// called for an invoke key. Values that are not functions are supplied as is.
func Override(typ, constructor interface{}) Option {
	return func(s *Settings) error {
		if i, ok := typ.(invoke); ok {
			s.invokes[i] = fx.Invoke(constructor)
			return nil
		}

		rt := reflect.TypeOf(typ).Elem()
		if reflect.TypeOf(constructor).Kind() != reflect.Func {
			s.modules[rt] = fx.Supply(constructor)
			return nil
		}
		s.modules[rt] = fx.Provide(constructor)
		return nil
	}
}

// Unset removes the constructor or invoke for the given key
func Unset(typ interface{}) Option {
	return func(s *Settings) error {
		if i, ok := typ.(invoke); ok {
			s.invokes[i] = nil
			return nil
		}
		delete(s.modules, reflect.TypeOf(typ).Elem())
		return nil
	}
}

// If applies the options only when the condition holds
func If(b bool, opts ...Option) Option {
	return func(s *Settings) error {
		if b {
			return Options(opts...)(s)
		}
		return nil
	}
}

// Output fills the pointers with the values built by the node
func Output(targets ...interface{}) Option {
	return func(s *Settings) error {
		s.outputs = append(s.outputs, fx.Populate(targets...))
		return nil
	}
}
