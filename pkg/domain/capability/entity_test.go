package capability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordID_Deterministic(t *testing.T) {
	a := RecordID("kubectl-describe")
	b := RecordID("kubectl-describe")
	assert.True(t, a.Equals(b), "same name must yield the same record ID")

	c := RecordID("kubectl-logs")
	assert.False(t, a.Equals(c), "different names must yield different IDs")
}

func TestRecordID_TrimsWhitespace(t *testing.T) {
	assert.True(t, RecordID("stat").Equals(RecordID("  stat  ")))
}

func TestNewRecord(t *testing.T) {
	tests := []struct {
		name       string
		itemName   string
		tags       []string
		desc       string
		complexity Complexity
		confidence float64
		wantErr    bool
	}{
		{
			name:       "valid record",
			itemName:   "port-scan",
			tags:       []string{"network", "recon"},
			desc:       "Scans TCP ports on a target host",
			complexity: ComplexityIntermediate,
			confidence: 0.92,
		},
		{
			name:       "missing name",
			tags:       []string{"network"},
			desc:       "something",
			complexity: ComplexityBasic,
			confidence: 0.5,
			wantErr:    true,
		},
		{
			name:       "missing description",
			itemName:   "port-scan",
			tags:       []string{"network"},
			complexity: ComplexityBasic,
			confidence: 0.5,
			wantErr:    true,
		},
		{
			name:       "no tags",
			itemName:   "port-scan",
			desc:       "something",
			complexity: ComplexityBasic,
			confidence: 0.5,
			wantErr:    true,
		},
		{
			name:       "blank tag",
			itemName:   "port-scan",
			tags:       []string{"network", "  "},
			desc:       "something",
			complexity: ComplexityBasic,
			confidence: 0.5,
			wantErr:    true,
		},
		{
			name:       "invalid complexity",
			itemName:   "port-scan",
			tags:       []string{"network"},
			desc:       "something",
			complexity: Complexity("expert"),
			confidence: 0.5,
			wantErr:    true,
		},
		{
			name:       "confidence above one",
			itemName:   "port-scan",
			tags:       []string{"network"},
			desc:       "something",
			complexity: ComplexityBasic,
			confidence: 1.01,
			wantErr:    true,
		},
		{
			name:       "negative confidence",
			itemName:   "port-scan",
			tags:       []string{"network"},
			desc:       "something",
			complexity: ComplexityBasic,
			confidence: -0.1,
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record, err := NewRecord(tt.itemName, tt.tags, tt.desc, tt.complexity, tt.confidence)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.itemName, record.Name)
			assert.True(t, record.ID.Equals(RecordID(tt.itemName)))
			assert.False(t, record.ScannedAt.IsZero())
		})
	}
}

func TestComplexity_IsValid(t *testing.T) {
	for _, c := range AllComplexities() {
		assert.True(t, c.IsValid(), c.String())
	}
	assert.False(t, Complexity("trivial").IsValid())
	assert.False(t, Complexity("").IsValid())
}
