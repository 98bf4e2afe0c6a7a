package blocksync

import (
	"github.com/pocnet/pocd/infrastructure/logger"
	"github.com/pocnet/pocd/util/panics"
)

var log = logger.RegisterSubSystem("SYNC")
var spawn = panics.GoroutineWrapperFunc(log)
