package derivedtables

import "github.com/pocnet/pocd/infrastructure/logger"

var log = logger.RegisterSubSystem("DRVT")
