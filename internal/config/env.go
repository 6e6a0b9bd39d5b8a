package config

import "strings"

// MEDIASHARE_POSTGRES_DSN -> postgres.dsn
var envKeyReplacer = strings.NewReplacer(".", "_")
