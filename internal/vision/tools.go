package vision

// actionToolSchemas declares the closed, ten-action tool-use vocabulary the
// model is constrained to choose from on every call.
var actionToolSchemas = []ToolSchema{
	{
		Name:        "click",
		Description: "Click an element by accessibility ref, or at raw page coordinates.",
		InputSchema: objectSchema(map[string]interface{}{
			"ref":    stringProp("Accessibility ref of the element to click, e.g. e5"),
			"x":      numberProp("X coordinate, used when ref is not given"),
			"y":      numberProp("Y coordinate, used when ref is not given"),
			"button": stringProp("Mouse button: left (default), right, or middle"),
		}),
	},
	{
		Name:        "type",
		Description: "Type text into an element by ref, or into the currently focused element.",
		InputSchema: objectSchema(map[string]interface{}{
			"ref":         stringProp("Accessibility ref of the input to type into"),
			"text":        stringProp("Text to type"),
			"clear_first": boolProp("Clear the field before typing"),
		}, "text"),
	},
	{
		Name:        "scroll",
		Description: "Scroll the page in a direction.",
		InputSchema: objectSchema(map[string]interface{}{
			"direction": stringProp("One of up, down, left, right"),
			"amount":    numberProp("Pixels to scroll, default 300"),
		}, "direction"),
	},
	{
		Name:        "navigate",
		Description: "Navigate the page to a URL.",
		InputSchema: objectSchema(map[string]interface{}{
			"url": stringProp("Destination URL"),
		}, "url"),
	},
	{
		Name:        "keyboard",
		Description: "Press a key or key combination, e.g. Enter or Control+a.",
		InputSchema: objectSchema(map[string]interface{}{
			"key": stringProp("Key or combo to press"),
		}, "key"),
	},
	{
		Name:        "wait",
		Description: "Pause for a fixed duration to let the page settle.",
		InputSchema: objectSchema(map[string]interface{}{
			"ms": numberProp("Milliseconds to wait, default 1000"),
		}),
	},
	{
		Name:        "hover",
		Description: "Hover over an element by ref, or at raw page coordinates.",
		InputSchema: objectSchema(map[string]interface{}{
			"ref": stringProp("Accessibility ref of the element to hover"),
			"x":   numberProp("X coordinate, used when ref is not given"),
			"y":   numberProp("Y coordinate, used when ref is not given"),
		}),
	},
	{
		Name:        "select",
		Description: "Select an option in a <select> element by ref.",
		InputSchema: objectSchema(map[string]interface{}{
			"ref":   stringProp("Accessibility ref of the select element"),
			"value": stringProp("Option value or visible label to select"),
		}, "ref", "value"),
	},
	{
		Name:        "done",
		Description: "Declare the task complete.",
		InputSchema: objectSchema(map[string]interface{}{
			"success":        boolProp("Whether the task succeeded"),
			"summary":        stringProp("Short summary of what was accomplished"),
			"extracted_data": objectSchema(map[string]interface{}{}),
		}, "success", "summary"),
	},
	{
		Name:        "fail",
		Description: "Declare the task cannot be completed.",
		InputSchema: objectSchema(map[string]interface{}{
			"reason": stringProp("Why the task could not be completed"),
		}, "reason"),
	},
}

func objectSchema(properties map[string]interface{}, required ...string) map[string]interface{} {
	schema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func stringProp(description string) map[string]interface{} {
	return map[string]interface{}{"type": "string", "description": description}
}

func numberProp(description string) map[string]interface{} {
	return map[string]interface{}{"type": "number", "description": description}
}

func boolProp(description string) map[string]interface{} {
	return map[string]interface{}{"type": "boolean", "description": description}
}
