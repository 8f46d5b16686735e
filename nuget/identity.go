package nuget

import (
	"fmt"
	"regexp"
	"strings"
)

// Identity uniquely identifies a package across cache layers.
type Identity struct {
	Name    string
	Version string
}

// Key returns the name@version key used by the session caches.
func (id Identity) Key() string {
	return id.Name + "@" + id.Version
}

var (
	idPattern      = regexp.MustCompile(`^\w+(?:[_.-]\w+)*$`)
	versionPattern = regexp.MustCompile(`^[0-9A-Za-z]+(?:[.+-][0-9A-Za-z]+)*$`)
)

// ValidID reports whether name follows the package id grammar.
func ValidID(name string) bool {
	return idPattern.MatchString(name)
}

// ValidVersion reports whether v is a floating version or holds only version
// characters.
func ValidVersion(v string) bool {
	return v == "*" || versionPattern.MatchString(v)
}

// Validate rejects identities that cannot name a cache directory.
func (id Identity) Validate() error {
	if !ValidID(id.Name) {
		return fmt.Errorf("invalid package id %q", id.Name)
	}
	if id.Version != "" && !ValidVersion(id.Version) {
		return fmt.Errorf("invalid version %q of %s", id.Version, id.Name)
	}
	return nil
}

// DirName returns the Name.Version directory name used by the on-disk store.
func (id Identity) DirName() string {
	return id.Name + "." + id.Version
}

func (id Identity) String() string {
	return id.Key()
}

// lower returns the lowercase id and version used in feed URLs and object keys.
func (id Identity) lower() (string, string) {
	return strings.ToLower(id.Name), strings.ToLower(id.Version)
}

// IsFloating reports whether the version asks for the newest available version.
func (id Identity) IsFloating() bool {
	v := strings.TrimSpace(id.Version)
	return v == "" || v == "*" || strings.EqualFold(v, LatestVersion)
}

// LatestVersion is the sentinel version selecting the newest stable release.
const LatestVersion = "latest"
