package identity

import "errors"

var (
	ErrPathMissing     = errors.New("owned path does not exist")
	ErrIdentityInvalid = errors.New("invalid identity mapping")
	ErrAccount         = errors.New("account setup failed")
)
