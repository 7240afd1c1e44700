package runtime

const DefaultFlowID = "default"

func temperature(v float64) *float64 {
	return &v
}

// DefaultFlow is the starter flow the studio opens with: research, then
// positioning built on the research, then calls to action built on the
// positioning.
func DefaultFlow() Flow {
	return Flow{
		ID:          DefaultFlowID,
		Name:        "Product launch copy",
		Description: "Research summary, positioning statement and call to action for a product release.",
		InputVariables: *NewVariables(
			"product", "FlowForge AI",
			"audience", "senior product managers",
			"tone", "confident",
		),
		Steps: []Step{
			{
				ID:           "research",
				Title:        "Research Summary",
				SystemPrompt: "You are a research assistant generating fast, factual summaries for product teams.",
				UserPrompt:   "Summarize the latest release notes for {{product}}. Highlight what matters to {{audience}}.",
				Model:        DefaultModel,
				Temperature:  temperature(0.2),
				OutputKey:    "research_summary",
			},
			{
				ID:           "positioning",
				Title:        "Positioning Draft",
				SystemPrompt: "You are a marketing strategist crafting crisp positioning statements.",
				UserPrompt: "Using this research: {{research_summary}}\n\n" +
					"Draft a high-level positioning statement for {{product}} aimed at {{audience}}. Tone: {{tone}}.",
				Model:       DefaultModel,
				Temperature: temperature(0.5),
				OutputKey:   "positioning",
			},
			{
				ID:           "call_to_action",
				Title:        "Call to Action",
				SystemPrompt: "You are a conversion copywriter who writes persuasive but authentic CTAs.",
				UserPrompt:   "Using the positioning: {{positioning}}\n\nWrite two compelling call-to-action options.",
				Model:        DefaultModel,
				Temperature:  temperature(0.7),
				OutputKey:    "cta",
			},
		},
	}
}
