package peer

import (
	"github.com/pocnet/pocd/infrastructure/logger"
	"github.com/pocnet/pocd/util/panics"
)

var log = logger.RegisterSubSystem("PEER")
var spawn = panics.GoroutineWrapperFunc(log)
