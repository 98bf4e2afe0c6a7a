package blockverifier

import (
	"github.com/pocnet/pocd/infrastructure/logger"
	"github.com/pocnet/pocd/util/panics"
)

var log = logger.RegisterSubSystem("BVRF")
var spawn = panics.GoroutineWrapperFunc(log)
