package version_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Sumatoshi-tech/buildtracker/pkg/version"
)

func TestString(t *testing.T) {
	t.Parallel()

	version.InitBinaryVersion()

	assert.NotEmpty(t, version.Version)
	assert.Contains(t, version.String(), "commit: "+version.Commit)
	assert.Contains(t, version.String(), "built: "+version.Date)
}
