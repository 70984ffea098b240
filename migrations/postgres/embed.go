// Package migrations embebe los archivos SQL del esquema global.
package migrations

import "embed"

// FS contiene las migraciones de Postgres, ordenadas por prefijo numérico.
//
//go:embed *.sql
var FS embed.FS
