package config

import "errors"

// ErrBadConfig is the sentinel wrapped by every error LoadDescriptors
// returns, so callers can errors.Is(err, config.ErrBadConfig) without
// depending on internal/hub's error taxonomy.
var ErrBadConfig = errors.New("bad config")
