package llm

// BuildPageJSONSchema returns a JSON-Schema (draft 2020-12 subset) as a
// generic map. We pass this to the model as a structured output
// constraint and also use it locally to validate responses.
func BuildPageJSONSchema() map[string]any {
	titleBlock := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"document_title":  strProp(),
			"document_number": strProp(),
			"revision":        strProp(),
			"project":         strProp(),
			"drawn_by":        strProp(),
			"checked_by":      strProp(),
			"approved_by":     strProp(),
			"date":            strProp(),
			"client":          strProp(),
			"sheet_number":    strProp(),
			"total_sheets":    strProp(),
			"other_fields": map[string]any{
				"type":                 "object",
				"additionalProperties": strProp(),
			},
		},
	}

	processLine := objectProp(map[string]any{
		"line_number": strProp(),
		"line_size":   strProp(),
		"fluid_type":  strProp(),
		"spec_code":   strProp(),
		"insulation":  strProp(),
		"tracing":     strProp(),
		"service":     strProp(),
	})
	instrument := objectProp(map[string]any{
		"tag":          strProp(),
		"type":         strProp(),
		"location":     strProp(),
		"function":     strProp(),
		"connected_to": strListProp(),
	})
	equipment := objectProp(map[string]any{
		"tag":             strProp(),
		"type":            strProp(),
		"service":         strProp(),
		"capacity":        strProp(),
		"connected_lines": strListProp(),
	})
	valve := objectProp(map[string]any{
		"tag":             strProp(),
		"type":            strProp(),
		"operator":        strProp(),
		"position":        strProp(),
		"connected_lines": strListProp(),
	})
	annotation := objectProp(map[string]any{
		"text":                 strProp(),
		"location_description": strProp(),
	})

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"title_block":        titleBlock,
			"process_lines":      arrayProp(processLine),
			"instruments":        arrayProp(instrument),
			"equipment":          arrayProp(equipment),
			"valves":             arrayProp(valve),
			"annotations":        arrayProp(annotation),
			"warnings_and_notes": strListProp(),
		},
	}
}

func strProp() map[string]any {
	return map[string]any{"type": "string"}
}

func strListProp() map[string]any {
	return map[string]any{"type": "array", "items": strProp()}
}

func arrayProp(items map[string]any) map[string]any {
	return map[string]any{"type": "array", "items": items}
}

func objectProp(props map[string]any) map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
	}
}
