package actor

import (
	btclog "github.com/btcsuite/btclog/v2"
)

// Subsystem is the logging subsystem tag for the actor runtime.
const Subsystem = "ACTR"

// log is the package-level logger. It defaults to disabled until the
// application wires a backend via UseLogger.
var log = btclog.Disabled

// UseLogger assigns the logger used by this package.
func UseLogger(logger btclog.Logger) {
	log = logger
}
