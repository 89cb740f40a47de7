package loadgen

import "errors"

var (
	ErrInvalidConfig = errors.New("invalid load config")
	ErrUnhealthy     = errors.New("service is not healthy")
	ErrVerification  = errors.New("verification failed")
	errRetryable     = errors.New("retryable status")
)
