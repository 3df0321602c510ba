package gemini

import genai "google.golang.org/genai"

// Declared response schemas for the structured operations. The model must
// return a document conforming exactly; anything else fails the call.

func detectionSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"items": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"id":          {Type: genai.TypeString},
						"name":        {Type: genai.TypeString},
						"description": {Type: genai.TypeString},
					},
					Required: []string{"id", "name", "description"},
				},
			},
		},
		Required: []string{"items"},
	}
}

func diagnosisSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"title":               {Type: genai.TypeString},
			"problem_description": {Type: genai.TypeString},
			"root_cause":          {Type: genai.TypeString},
			"safety_warnings": {
				Type:  genai.TypeArray,
				Items: &genai.Schema{Type: genai.TypeString},
			},
			"tools_needed": {
				Type:  genai.TypeArray,
				Items: &genai.Schema{Type: genai.TypeString},
			},
			"steps": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"step_number": {Type: genai.TypeInteger},
						"instruction": {Type: genai.TypeString},
						"detail":      {Type: genai.TypeString},
					},
					Required: []string{"step_number", "instruction"},
				},
			},
			"visual_guide_text": {Type: genai.TypeString},
			"annotations": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"label": {Type: genai.TypeString},
						"box": {
							Type: genai.TypeObject,
							Properties: map[string]*genai.Schema{
								"y_min": {Type: genai.TypeInteger},
								"x_min": {Type: genai.TypeInteger},
								"y_max": {Type: genai.TypeInteger},
								"x_max": {Type: genai.TypeInteger},
							},
							Required: []string{"y_min", "x_min", "y_max", "x_max"},
						},
					},
					Required: []string{"label", "box"},
				},
			},
		},
		Required: []string{
			"title", "problem_description", "root_cause",
			"safety_warnings", "tools_needed", "steps", "visual_guide_text",
		},
	}
}
