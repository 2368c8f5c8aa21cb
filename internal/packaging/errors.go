package packaging

import "errors"

var (
	ErrSpecInvalid  = errors.New("invalid packaging spec")
	ErrRenderFailed  = errors.New("dockerfile rendering failed")
)
