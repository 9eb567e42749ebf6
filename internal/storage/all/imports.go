// Package all registers every built-in resumption state backend with the
// storage factory. Import it for its side effects:
//
//	import _ "eksupdater/internal/storage/all"
//
// Kinds made available: "file", "sqlite", "postgres", "mssql", "mysql", "mongo".
package all

import (
	_ "eksupdater/internal/storage/file"
	_ "eksupdater/internal/storage/mongo"
	_ "eksupdater/internal/storage/mssql"
	_ "eksupdater/internal/storage/mysql"
	_ "eksupdater/internal/storage/postgres"
	_ "eksupdater/internal/storage/sqlite"
)
