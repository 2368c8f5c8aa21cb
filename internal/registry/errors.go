package registry

import "errors"

var (
	ErrAuthenticationFailed = errors.New("registry authentication failed")
	ErrPublishFailed        = errors.New("publish failed")
	ErrLayoutInvalid        = errors.New("invalid image layout")
)
