package webclient

import "errors"

// ErrNilRequest is returned by Do when called without a request.
var ErrNilRequest = errors.New("request cannot be nil")
