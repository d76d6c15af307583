package cmd

import "errors"

var errUnknownLogLevel = errors.New("unknown log level")
