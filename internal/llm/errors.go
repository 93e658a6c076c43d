package llm

import "errors"

var (
	ErrProviderNotConfigured = errors.New("llm: provider api key is not configured")
	ErrTimeout               = errors.New("llm: provider call timed out")
	ErrProviderError         = errors.New("llm: provider returned an error")
	ErrEmptyResponse         = errors.New("llm: provider response has no content")
)
