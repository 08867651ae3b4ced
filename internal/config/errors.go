package config

import "errors"

// Sentinel errors, for errors.Is in callers.
var (
	ErrInvalidConfig = errors.New("invalid config")
	ErrLoadConfig    = errors.New("load config failed")
)
