package caps

import "errors"

// ErrInvalidCap is returned by NewPolicy for malformed caps.
var ErrInvalidCap = errors.New("invalid cap")
