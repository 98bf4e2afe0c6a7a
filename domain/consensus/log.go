package consensus

import (
	"github.com/pocnet/pocd/infrastructure/logger"
	"github.com/pocnet/pocd/util/panics"
)

var log = logger.RegisterSubSystem("CNSS")
var spawn = panics.GoroutineWrapperFunc(log)
