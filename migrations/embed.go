package migrations

import "embed"

// Files embeds the ordered *.up.sql schema migrations.
//
//go:embed *.up.sql
var Files embed.FS
