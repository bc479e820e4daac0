package assettag

import (
	"testing"

	"go.uber.org/goleak"
)

// ExportZIP fans out on an errgroup; every test must leave no render
// goroutines behind.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener"),
	)
}
