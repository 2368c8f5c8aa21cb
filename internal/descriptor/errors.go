package descriptor

import "errors"

var (
	ErrDescriptorInvalid = errors.New("descriptor invalid")
	ErrTargetNotFound    = errors.New("target not found")
)
