package launch

import "errors"

var (
	ErrConfigInvalid = errors.New("invalid runtime configuration")
	ErrPrivileged    = errors.New("refusing to run as root")
	ErrUnhealthy     = errors.New("service unhealthy")
)
