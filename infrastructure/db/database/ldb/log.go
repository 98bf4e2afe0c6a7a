package ldb

import "github.com/pocnet/pocd/infrastructure/logger"

var log = logger.RegisterSubSystem("LDB")
