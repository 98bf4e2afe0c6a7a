package forging

import (
	"github.com/pocnet/pocd/infrastructure/logger"
	"github.com/pocnet/pocd/util/panics"
)

var log = logger.RegisterSubSystem("FRGE")
var spawn = panics.GoroutineWrapperFunc(log)
