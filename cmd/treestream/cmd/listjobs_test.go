package cmd

import (
	"testing"

	"github.com/dbsmedya/treestream/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestDescribeRoots(t *testing.T) {
	tests := []struct {
		name string
		job  config.JobConfig
		want string
	}{
		{
			name: "All roots by default",
			job:  config.JobConfig{},
			want: "all root containers",
		},
		{
			name: "By name",
			job:  config.JobConfig{RootName: "Fashion"},
			want: `containers named "Fashion"`,
		},
		{
			name: "By ref",
			job:  config.JobConfig{RootRef: "42"},
			want: "container ref 42",
		},
		{
			name: "Ref wins over name",
			job:  config.JobConfig{RootRef: "42", RootName: "Fashion"},
			want: "container ref 42",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, describeRoots(&tt.job))
		})
	}
}

func TestDescribeOutput(t *testing.T) {
	assert.Equal(t, "stdout", describeOutput("-"))
	assert.Equal(t, "/var/export/catalog.ndjson", describeOutput("/var/export/catalog.ndjson"))
}

func TestPadLabel(t *testing.T) {
	// All labels pad to the same display width.
	a := padLabel("Roots:")
	b := padLabel("Missing modified:")
	assert.Equal(t, len("Roots:")+12, len(a))
	assert.Equal(t, len(b), len(a))
}
