package infer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capscanio/capscan/pkg/domain/capability"
)

const validPayload = `{
	"name": "port-scan",
	"tags": ["network", "recon"],
	"description": "Scans TCP ports on a target host.",
	"complexity": "intermediate",
	"confidence": 0.9
}`

func TestParseRecord_BareJSON(t *testing.T) {
	record, err := ParseRecord("port-scan", validPayload)
	require.NoError(t, err)
	assert.Equal(t, "port-scan", record.Name)
	assert.Equal(t, []string{"network", "recon"}, record.Tags)
	assert.Equal(t, capability.ComplexityIntermediate, record.Complexity)
	assert.InDelta(t, 0.9, record.Confidence, 1e-9)
	assert.True(t, record.ID.Equals(capability.RecordID("port-scan")))
}

func TestParseRecord_FencedPayload(t *testing.T) {
	raw := "Here is the classification you asked for:\n\n```json\n" + validPayload + "\n```\n\nLet me know if you need more."
	record, err := ParseRecord("port-scan", raw)
	require.NoError(t, err)
	assert.Equal(t, "port-scan", record.Name)
}

func TestParseRecord_PayloadEmbeddedInProse(t *testing.T) {
	raw := "Sure! The result is " + validPayload + " and that concludes the analysis."
	record, err := ParseRecord("port-scan", raw)
	require.NoError(t, err)
	assert.Equal(t, capability.ComplexityIntermediate, record.Complexity)
}

func TestParseRecord_BracesInsideStrings(t *testing.T) {
	raw := `{"name":"x","tags":["a"],"description":"uses {braces} and \"quotes\" inside","complexity":"basic","confidence":0.5}`
	record, err := ParseRecord("x", raw)
	require.NoError(t, err)
	assert.Contains(t, record.Description, "{braces}")
}

func TestParseRecord_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		reason string
	}{
		{
			name:   "empty response",
			raw:    "   ",
			reason: "empty response",
		},
		{
			name:   "no JSON at all",
			raw:    "I could not classify this item, sorry.",
			reason: "no JSON object",
		},
		{
			name:   "unbalanced object",
			raw:    `{"name": "x", "tags": ["a"`,
			reason: "unbalanced",
		},
		{
			name:   "missing description",
			raw:    `{"name":"x","tags":["a"],"complexity":"basic","confidence":0.5}`,
			reason: "description",
		},
		{
			name:   "missing tags",
			raw:    `{"name":"x","description":"d","complexity":"basic","confidence":0.5}`,
			reason: "tags",
		},
		{
			name:   "missing complexity",
			raw:    `{"name":"x","tags":["a"],"description":"d","confidence":0.5}`,
			reason: "complexity",
		},
		{
			name:   "missing confidence",
			raw:    `{"name":"x","tags":["a"],"description":"d","complexity":"basic"}`,
			reason: "confidence",
		},
		{
			name:   "complexity outside closed set",
			raw:    `{"name":"x","tags":["a"],"description":"d","complexity":"expert","confidence":0.5}`,
			reason: "complexity",
		},
		{
			name:   "confidence above one",
			raw:    `{"name":"x","tags":["a"],"description":"d","complexity":"basic","confidence":1.5}`,
			reason: "confidence",
		},
		{
			name:   "negative confidence",
			raw:    `{"name":"x","tags":["a"],"description":"d","complexity":"basic","confidence":-0.2}`,
			reason: "confidence",
		},
		{
			name:   "confidence as string is not coerced",
			raw:    `{"name":"x","tags":["a"],"description":"d","complexity":"basic","confidence":"0.9"}`,
			reason: "JSON",
		},
		{
			name:   "blank tag entry",
			raw:    `{"name":"x","tags":["a",""],"description":"d","complexity":"basic","confidence":0.5}`,
			reason: "tags",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRecord("x", tt.raw)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidOutput)
			assert.Contains(t, strings.ToLower(err.Error()), strings.ToLower(tt.reason))
		})
	}
}

func TestParseRecord_ComplexityCaseInsensitive(t *testing.T) {
	raw := `{"name":"x","tags":["a"],"description":"d","complexity":"Basic","confidence":0.5}`
	record, err := ParseRecord("x", raw)
	require.NoError(t, err)
	assert.Equal(t, capability.ComplexityBasic, record.Complexity)
}

func TestParseRecord_ErrorIncludesTruncatedExcerpt(t *testing.T) {
	long := "garbage " + strings.Repeat("x", 500)
	_, err := ParseRecord("x", long)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "...")
	assert.Less(t, len(err.Error()), 400, "excerpt must be truncated")
}
