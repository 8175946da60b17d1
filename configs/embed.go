// Package configs holds configuration templates embedded at build time.
//
// ProjectConfigTemplate is written by `rustrag init` as .rustrag.yaml in the
// project root. Edit project-config.example.yaml and rebuild to change it.
package configs

import _ "embed"

// ProjectConfigTemplate is the commented default project configuration.
//
//go:embed project-config.example.yaml
var ProjectConfigTemplate string
