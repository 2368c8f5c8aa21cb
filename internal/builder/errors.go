package builder

import "errors"

var (
	ErrBuilderUnavailable = errors.New("builder unavailable")
	ErrState              = errors.New("builder state error")
)
