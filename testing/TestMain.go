// Package testing switches the process into test mode when blank-imported by a
// test binary, so commands return before dialling Postgres or Redis.
package testing

import (
	"os"

	"github.com/odyssey-erp/backoffice/internal/app"
)

func init() {
	_ = os.Setenv("BACKOFFICE_TEST_MODE", "1")
	if os.Getenv("LOG_LEVEL") == "" {
		_ = os.Setenv("LOG_LEVEL", "error")
	}
	app.RefreshTestMode()
}
