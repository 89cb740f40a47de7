package streak

import "errors"

var errShelterCount = errors.New("shelter count must be positive")
