package future

import "github.com/joeycumines/go-workq/workq"

// Logger is the structured logger type accepted by WithLogger: the same
// logiface binding workq uses, so a single Logger can be shared across a
// program's work-queues and futures. The nil value logs nothing.
type Logger = workq.Logger
