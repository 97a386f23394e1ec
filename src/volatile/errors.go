package volatile

import "errors"

var (
	ErrOutOfRange       = errors.New("address outside of memory window")
	ErrUnaligned        = errors.New("unaligned memory window")
	ErrUnsupported      = errors.New("device memory is not supported on this platform")
	ErrClosed           = errors.New("memory window is closed")
	ErrUnexpectedAccess = errors.New("unexpected register access")
	ErrUnreplayed       = errors.New("expected register access never happened")
)
