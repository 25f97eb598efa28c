package gallery

import (
	"errors"

	"flickrgallery/connectivity"
	"flickrgallery/feed"
)

// Failure classes. None of them escapes a Manager operation as a returned
// error except ErrStorageWrite from SaveSnapshot and Clear; the rest are
// folded into fallback values and reported through Result fields and logs.
var (
	ErrStorageRead  = errors.New("gallery: storage read failed")
	ErrStorageWrite = errors.New("gallery: storage write failed")
	ErrNetworkFetch = feed.ErrNetworkFetch
	ErrProbe        = connectivity.ErrProbe

	ErrScreenInactive = errors.New("gallery: screen is not active")
)
