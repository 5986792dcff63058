package utils

import (
	"log"

	"github.com/davecgh/go-spew/spew"
)

var spewConfig *spew.ConfigState
var spewShallowConfig *spew.ConfigState

func init() {
	spewConfig = spew.NewDefaultConfig()
	spewConfig.DisableCapacities = true
	spewConfig.DisablePointerAddresses = true

	spewShallowConfig = spew.NewDefaultConfig()
	spewShallowConfig.DisableCapacities = true
	spewShallowConfig.DisablePointerAddresses = true
	spewShallowConfig.MaxDepth = 4
}

func SDump(a ...interface{}) string {
	return spewConfig.Sdump(a...)
}

// SDumpShallow cuts nesting so pointer graphs stay readable.
func SDumpShallow(a ...interface{}) string {
	return spewShallowConfig.Sdump(a...)
}

func LogDump(a ...interface{}) {
	log.Println(spewConfig.Sdump(a...))
}
