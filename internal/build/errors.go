package build

import "errors"

var (
	ErrBuildFailed         = errors.New("build failed")
	ErrFileSystemOperation = errors.New("file system operation failed")
)
