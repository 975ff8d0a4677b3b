package browser

import (
	"strings"

	"github.com/go-rod/rod/lib/proto"
)

// ConsoleText renders a console call the way browsers show it: string
// arguments verbatim, everything else as JSON or its description, joined
// by single spaces.
func ConsoleText(e *proto.RuntimeConsoleAPICalled) string {
	if e == nil {
		return ""
	}
	parts := make([]string, 0, len(e.Args))
	for _, arg := range e.Args {
		parts = append(parts, remoteObjectText(arg))
	}
	return strings.Join(parts, " ")
}

func remoteObjectText(arg *proto.RuntimeRemoteObject) string {
	if arg == nil {
		return ""
	}
	switch arg.Type {
	case proto.RuntimeRemoteObjectTypeString:
		return arg.Value.Str()
	case proto.RuntimeRemoteObjectTypeUndefined:
		return "undefined"
	}
	if arg.Value.Nil() {
		if arg.Description != "" {
			return arg.Description
		}
		if arg.Subtype == proto.RuntimeRemoteObjectSubtypeNull {
			return "null"
		}
		return string(arg.Type)
	}
	return arg.Value.JSON("", "")
}
