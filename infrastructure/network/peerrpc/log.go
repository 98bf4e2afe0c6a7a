package peerrpc

import (
	"github.com/pocnet/pocd/infrastructure/logger"
	"github.com/pocnet/pocd/util/panics"
)

var log = logger.RegisterSubSystem("PRPC")
var spawn = panics.GoroutineWrapperFunc(log)
