package config

import "errors"

var (
	// ErrInvalidConfig wraps every validation failure returned by Validate and Load.
	ErrInvalidConfig = errors.New("invalid build configuration")

	ErrMissingField      = errors.New("missing required field")
	ErrInvalidMode       = errors.New("invalid mode")
	ErrInvalidPattern    = errors.New("invalid file pattern")
	ErrEmptyPipeline     = errors.New("empty transformation pipeline")
	ErrInvalidPort       = errors.New("invalid dev server port")
	ErrInvalidPath       = errors.New("invalid path")
	ErrUnsupportedFormat = errors.New("unsupported config format")
)
