package hosted

import "errors"

var (
	ErrConfig    = errors.New("invalid core configuration")
	ErrRunning   = errors.New("core already started")
	ErrBooted    = errors.New("system already booted")
	ErrNoTasks   = errors.New("no tasks defined")
	ErrNoSuchIRQ = errors.New("no such interrupt")
	ErrUnmapped  = errors.New("bus address not mapped")
	ErrTaskPanic = errors.New("task panicked")
)
