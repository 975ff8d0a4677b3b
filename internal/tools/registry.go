package tools

// Definition describes a tool exposed to MCP clients.
type Definition struct {
	Name        string
	Description string
	Parameters  []Parameter
}

type ParameterType string

const (
	ParamString  ParameterType = "string"
	ParamNumber  ParameterType = "number"
	ParamBoolean ParameterType = "boolean"
	ParamArray   ParameterType = "array"
)

type Parameter struct {
	Name        string
	Type        ParameterType
	Description string
	Required    bool
	// Items is the element count for number arrays.
	Items int
}

// JSONType maps pt to a JSON Schema type; unknown types are strings.
func (pt ParameterType) JSONType() string {
	switch pt {
	case ParamString, ParamNumber, ParamBoolean, ParamArray:
		return string(pt)
	default:
		return "string"
	}
}

const (
	ToolNavigate        = "navigate"
	ToolClickLabel      = "click_label"
	ToolUpdatePlacement = "update_placement"
	ToolGetPosition     = "get_position"
	ToolListObjects     = "list_objects"
	ToolScreenshot      = "screenshot"
	ToolConsoleLog      = "console_log"
)

var definitions = []Definition{
	{
		Name:        ToolNavigate,
		Description: "Load the CAD application (or the given URL) in the shared browser page.",
		Parameters: []Parameter{
			{Name: "url", Type: ParamString, Description: "optional URL; defaults to the configured app URL"},
		},
	},
	{
		Name:        ToolClickLabel,
		Description: "Click the single element whose accessible label equals the given text, e.g. \"Toggle Menu\" or \"Add Box\".",
		Parameters: []Parameter{
			{Name: "label", Type: ParamString, Description: "exact accessible label", Required: true},
		},
	},
	{
		Name:        ToolUpdatePlacement,
		Description: "Call the store's updatePlacement action for an object.",
		Parameters: []Parameter{
			{Name: "id", Type: ParamNumber, Description: "object id; defaults to the configured object id"},
			{Name: "position", Type: ParamArray, Items: 3, Description: "[x, y, z]", Required: true},
			{Name: "rotation", Type: ParamArray, Items: 4, Description: "quaternion [x, y, z, w]; defaults to identity"},
		},
	},
	{
		Name:        ToolGetPosition,
		Description: "Read an object's position from the store. Prints undefined when no such object exists.",
		Parameters: []Parameter{
			{Name: "id", Type: ParamNumber, Description: "object id; defaults to the configured object id"},
		},
	},
	{
		Name:        ToolListObjects,
		Description: "List every object in the store as JSON.",
	},
	{
		Name:        ToolScreenshot,
		Description: "Capture a PNG screenshot of the page.",
		Parameters: []Parameter{
			{Name: "output", Type: ParamString, Description: "optional file path; when set the image is written there instead of returned inline"},
		},
	},
	{
		Name:        ToolConsoleLog,
		Description: "Return page console messages captured since the last call.",
		Parameters: []Parameter{
			{Name: "keep", Type: ParamBoolean, Description: "do not clear the buffer after reading"},
		},
	},
}

// List returns all registered tool definitions.
func List() []Definition {
	out := make([]Definition, len(definitions))
	copy(out, definitions)
	return out
}

// Lookup finds a tool definition by name.
func Lookup(name string) (Definition, bool) {
	for _, def := range definitions {
		if def.Name == name {
			return def, true
		}
	}
	return Definition{}, false
}
