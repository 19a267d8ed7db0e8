package infer

import (
	"fmt"
	"strings"
)

const classifySystemPrompt = `You are a capability classifier. Given the descriptor of one resource type
from a system under inspection, respond with a single JSON object and
nothing else:

{
  "name": "<resource type name>",
  "tags": ["<lowercase tag>", ...],
  "description": "<one to three sentences describing what it does>",
  "complexity": "basic" | "intermediate" | "advanced",
  "confidence": <number between 0 and 1>
}

Rules:
- tags: 2-6 short lowercase keywords describing the capability area
- complexity reflects how involved the resource type is to use
- confidence reflects how certain you are of the classification
- do not add fields, prose, or markdown around the JSON object`

// maxDescriptorLen bounds the descriptor text sent to the classification
// service so one oversized item cannot blow the prompt budget.
const maxDescriptorLen = 8000

// buildClassifyPrompt renders the user prompt for one item.
func buildClassifyPrompt(itemName, descriptor string) string {
	descriptor = strings.TrimSpace(descriptor)
	if len(descriptor) > maxDescriptorLen {
		descriptor = descriptor[:maxDescriptorLen] + "\n[descriptor truncated]"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Resource type: %s\n\n", itemName)
	sb.WriteString("Descriptor:\n")
	sb.WriteString(descriptor)
	return sb.String()
}
