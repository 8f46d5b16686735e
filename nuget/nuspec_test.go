package nuget

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const groupedNuspec = `<?xml version="1.0" encoding="utf-8"?>
<package xmlns="http://schemas.microsoft.com/packaging/2013/05/nuspec.xsd">
  <metadata>
    <id>Sample.Lib</id>
    <version>2.1.0</version>
    <dependencies>
      <group targetFramework=".NETFramework4.6.2">
        <dependency id="Legacy.Only" version="1.0.0" />
      </group>
      <group targetFramework=".NETStandard2.0">
        <dependency id="Microsoft.Extensions.Logging" version="6.0.0" />
        <dependency id="Other.Lib" version="[1.2,2.0)" />
      </group>
      <group>
        <dependency id="Neutral.Lib" version="3.0.0" />
      </group>
    </dependencies>
  </metadata>
</package>`

func TestParseNuspec(t *testing.T) {
	t.Run("Grouped", func(t *testing.T) {
		m, err := ParseNuspec(strings.NewReader(groupedNuspec))
		require.NoError(t, err)
		assert.Equal(t, "Sample.Lib", m.ID)
		assert.Equal(t, "2.1.0", m.Version)
		require.Len(t, m.Groups, 3)
		assert.Equal(t, ".NETStandard2.0", m.Groups[1].TargetFramework)
		assert.Equal(t, "", m.Groups[2].TargetFramework)
	})

	t.Run("Flat", func(t *testing.T) {
		src := `<package><metadata><id>Flat</id><version>1.0.0</version>
<dependencies><dependency id="Dep.A" version="1.0" /><dependency id="" version="1.0" /></dependencies>
</metadata></package>`
		m, err := ParseNuspec(strings.NewReader(src))
		require.NoError(t, err)
		require.Len(t, m.Dependencies, 1)
		assert.Equal(t, "Dep.A", m.Dependencies[0].ID)
		assert.Equal(t, "1.0", m.Dependencies[0].Range.MinVersion)
	})

	t.Run("MissingID", func(t *testing.T) {
		_, err := ParseNuspec(strings.NewReader(`<package><metadata><version>1.0</version></metadata></package>`))
		require.Error(t, err)
	})

	t.Run("InvalidXML", func(t *testing.T) {
		_, err := ParseNuspec(strings.NewReader(`<package><metadata>`))
		require.Error(t, err)
	})
}

func TestManifestDependenciesFor(t *testing.T) {
	m, err := ParseNuspec(strings.NewReader(groupedNuspec))
	require.NoError(t, err)

	t.Run("BestGroup", func(t *testing.T) {
		deps := m.DependenciesFor(DefaultSelector())
		ids := make([]string, 0, len(deps))
		for _, d := range deps {
			ids = append(ids, d.ID)
		}
		assert.Equal(t, []string{"Microsoft.Extensions.Logging", "Other.Lib"}, ids)
	})

	t.Run("NeutralGroupFallback", func(t *testing.T) {
		sel := FrameworkSelector{Target: "net9.0"}
		deps := m.DependenciesFor(sel)
		require.Len(t, deps, 1)
		assert.Equal(t, "Neutral.Lib", deps[0].ID)
	})
}
