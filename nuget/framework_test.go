package nuget

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeFramework(t *testing.T) {
	tests := map[string]string{
		".NETStandard2.0":    "netstandard2.0",
		".NETStandard2.1":    "netstandard2.1",
		".NETCoreApp3.1":     "netcoreapp3.1",
		".NETCoreApp5.0":     "net5.0",
		".NETFramework4.7.2": "net472",
		"net8.0":             "net8.0",
		"NetStandard2.0":     "netstandard2.0",
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, want, NormalizeFramework(in))
		})
	}
}

func TestFrameworkSelector(t *testing.T) {
	sel := DefaultSelector()

	t.Run("Candidates", func(t *testing.T) {
		assert.Equal(t, []string{"net8.0", "netstandard2.1", "netstandard2.0"}, sel.Candidates())
	})

	t.Run("ExactTargetWins", func(t *testing.T) {
		best, ok := sel.Best([]string{"netstandard2.0", "net8.0", "net6.0"})
		assert.True(t, ok)
		assert.Equal(t, "net8.0", best)
	})

	t.Run("FallbackOrder", func(t *testing.T) {
		best, ok := sel.Best([]string{"net462", "netstandard2.0", "netstandard2.1"})
		assert.True(t, ok)
		assert.Equal(t, "netstandard2.1", best)
	})

	t.Run("KeepsOriginalSpelling", func(t *testing.T) {
		best, ok := sel.Best([]string{".NETStandard2.0"})
		assert.True(t, ok)
		assert.Equal(t, ".NETStandard2.0", best)
	})

	t.Run("NoMatch", func(t *testing.T) {
		_, ok := sel.Best([]string{"net462", "uap10.0"})
		assert.False(t, ok)
	})
}
