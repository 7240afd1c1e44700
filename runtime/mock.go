package runtime

import (
	"fmt"
	"strings"
)

const (
	mockPreviewPairs     = 3
	mockPreviewSeparator = " | "
	mockEmptyPreview     = "(empty)"
)

// MockOutput fabricates the deterministic output of a step in mock mode from
// the step title and the first few context entries, in context order.
func MockOutput(title string, ctx *Variables) string {
	keys := ctx.Keys()
	if len(keys) > mockPreviewPairs {
		keys = keys[:mockPreviewPairs]
	}

	pairs := make([]string, len(keys))
	for i, k := range keys {
		pairs[i] = fmt.Sprintf("%s: %s", k, ctx.Get(k))
	}

	preview := strings.Join(pairs, mockPreviewSeparator)
	if preview == "" {
		preview = mockEmptyPreview
	}
	return fmt.Sprintf("🔧 Mocked response for \"%s\"\nContext → %s", title, preview)
}
