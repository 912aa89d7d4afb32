package domain

import (
	"testing"

	"provcore/testutil"
)

// TestDomainBoundaryGuards keeps the public contract package standalone:
// it must not import internal packages, directly or transitively.
func TestDomainBoundaryGuards(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.InternalImportForbidden,
		"pkg/domain is the public contract and must not depend on internal packages")

	testutil.AssertNoTransitiveDependency(t, ".", testutil.InternalImportForbidden,
		"pkg/domain must not pull internal packages through its dependencies")
}
