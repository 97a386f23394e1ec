// Package demo contains small applications that run on the hosted core.
package demo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"omibyte.io/halos/src/runtime/hosted"
)

var ErrUnknownApp = errors.New("unknown application")

// Report writes what an application observed during its run.
type Report func(w io.Writer)

// App is an application: Setup spawns its tasks and installs its handlers.
type App struct {
	Name        string
	Description string

	// TickPeriod is used when the configuration does not set one. Zero
	// means the application does not depend on preemption.
	TickPeriod time.Duration

	Setup func(s *hosted.System) (Report, error)
}

var apps = map[string]App{}

func register(app App) {
	apps[app.Name] = app
}

// All returns the applications sorted by name.
func All() []App {
	names := maps.Keys(apps)
	slices.Sort(names)
	out := make([]App, 0, len(names))
	for _, name := range names {
		out = append(out, apps[name])
	}
	return out
}

func Lookup(name string) (App, error) {
	app, ok := apps[name]
	if !ok {
		return App{}, fmt.Errorf("%w: %s", ErrUnknownApp, name)
	}
	return app, nil
}

// Run runs app on a hosted system built from cfg until it stops, faults or
// ctx ends. The system is returned for inspection even on error, closed.
func Run(ctx context.Context, app App, cfg hosted.Config) (*hosted.System, Report, error) {
	if cfg.TickPeriod == 0 {
		cfg.TickPeriod = app.TickPeriod
	}
	s, err := hosted.NewSystem(cfg)
	if err != nil {
		return nil, nil, err
	}
	defer s.Close()

	report, err := app.Setup(s)
	if err != nil {
		return s, nil, fmt.Errorf("setup %s: %w", app.Name, err)
	}
	if err := s.Run(ctx); err != nil {
		return s, report, fmt.Errorf("run %s: %w", app.Name, err)
	}
	return s, report, nil
}
