package util

import "errors"

var (
	ErrEmailRegistered      = errors.New("该邮箱已被注册")
	ErrPermissionDenied     = errors.New("permission denied")
	ErrTestNotFound         = errors.New("test not found")
	ErrTestNotPublished     = errors.New("test not published or not accessible")
	ErrTestNotLoadable      = errors.New("cannot load this test")
	ErrSessionNotFound      = errors.New("session not found")
	ErrTestAlreadySubmitted = errors.New("test already submitted")
	ErrTooManySelections    = errors.New("single choice question accepts at most one selection")
)
