package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInfo(t *testing.T) {
	old := GitCommit
	GitCommit = "abc123"
	t.Cleanup(func() { GitCommit = old })

	info := Info()
	assert.Equal(t, Version, info["version"])
	assert.Equal(t, "abc123", info["commit"])
	assert.Contains(t, info, "build_date")
}
