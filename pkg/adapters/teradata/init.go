package teradata

import (
	"database/sql"
	"log/slog"

	"github.com/leapstack-labs/waterfall/pkg/adapter"
)

// sqlDrivers is swapped in tests.
var sqlDrivers = sql.Drivers

func init() {
	adapter.Register("teradata", func(logger *slog.Logger) adapter.Adapter { return New(logger) })
}
