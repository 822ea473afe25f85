package screenshot

import "errors"

var (
	// ErrBrowserUnavailable indicates every browser in the pool is busy or broken
	ErrBrowserUnavailable = errors.New("browser pool exhausted")

	// ErrScreenshotFailed indicates navigation or capture failed
	ErrScreenshotFailed = errors.New("screenshot capture failed")

	// ErrTimeout indicates the capture ran past its deadline
	ErrTimeout = errors.New("screenshot operation timed out")

	// ErrInvalidURL indicates the provided URL is empty or not http(s)
	ErrInvalidURL = errors.New("invalid URL provided")

	ErrQueueFull    = errors.New("screenshot queue is full")
	ErrQueueTimeout = errors.New("queue wait timeout")
	ErrClosed       = errors.New("screenshotter is closed")
)
