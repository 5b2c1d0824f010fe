package contract

import "errors"

var (
	ErrModelInvoke     = errors.New("model invoke failed")
	ErrSchemaViolation = errors.New("model response violates schema")
	ErrToolInvoke      = errors.New("tool invoke failed")
	ErrNotConnected    = errors.New("gateway not connected")
	ErrValidation      = errors.New("validation failed")
)
