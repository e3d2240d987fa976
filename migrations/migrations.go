// Package migrations схема базы в формате golang-migrate, встроенная в бинарник
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
