package engine

import (
	"database/sql"

	"github.com/strrl/focus-signals/internal/activity"
	"github.com/strrl/focus-signals/internal/store"
)

// DuckDBStores backs every engine component with the given DuckDB handle.
func DuckDBStores(db *sql.DB) Stores {
	s := store.New(db)
	return Stores{
		Activity:       activity.NewDuckDBSource(db),
		Signals:        s.Signals(),
		Preferences:    s.Calibrations(),
		ReturnContexts: s.ReturnContexts(),
	}
}
