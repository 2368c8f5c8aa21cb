package pipeline

import "errors"

var (
	ErrPublishPartialFailure = errors.New("one or more tags failed to publish")
)
