package bdb

import (
	"github.com/streamingfast/logging"
)

var zlog, _ = logging.PackageLogger("bdb", "github.com/noidtools/bdbexport/bdb")
