package testutil

import (
	"testing"

	"github.com/davecgh/go-spew/spew"
)

var dumper = spew.ConfigState{
	Indent:                  "  ",
	SortKeys:                true,
	DisablePointerAddresses: true,
	DisableCapacities:       true,
}

// Dump renders v deterministically: map keys sorted, no pointer addresses.
func Dump(v interface{}) string {
	return dumper.Sdump(v)
}

// AssertSameDump fails when two values render differently, printing both
// dumps. Use it to check that repeated runs produce identical output.
func AssertSameDump(t *testing.T, want, got interface{}) bool {
	t.Helper()

	w, g := Dump(want), Dump(got)
	if w == g {
		return true
	}
	t.Errorf("values differ\n--- want\n%s\n--- got\n%s", w, g)
	return false
}
