package migrations

import (
	"io/fs"

	profilesync "github.com/goliatone/go-profilesync"
)

func init() {
	coreFS, err := fs.Sub(profilesync.MigrationsFS, "data/sql/migrations")
	if err != nil {
		return
	}
	Register(coreFS)
}
