// Package interpreters gathers the available expression interpreters.
package interpreters

import (
	"github.com/Comcast/flowcmd/core"
	"github.com/Comcast/flowcmd/interpreters/ecmascript"
)

func Standard() core.InterpretersMap {
	is := core.NewInterpretersMap()

	is["native"] = core.Native
	is[""] = core.Native

	es := ecmascript.NewInterpreter()
	is["ecmascript"] = es
	is["goja"] = es

	return is
}
