package metrics

import (
	"github.com/pocnet/pocd/infrastructure/logger"
	"github.com/pocnet/pocd/util/panics"
)

var log = logger.RegisterSubSystem("MTRC")
var spawn = panics.GoroutineWrapperFunc(log)
