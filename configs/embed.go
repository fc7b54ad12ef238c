// Package configs provides embedded configuration templates for lexstore.
//
// How Configuration Templates Work:
//
// Templates are embedded at build time using Go's //go:embed directive.
// This ensures they are available in ALL distributions:
//   - Source builds (go install)
//   - Binary releases
//
// The templates are used by:
//   - cmd/lexstore/cmd/init.go → creates .lexstore.yaml in the project root
//   - cmd/lexstore/cmd/config.go → creates user config at ~/.config/lexstore/config.yaml
//
// Template files:
//   - project-config.example.yaml: Per-practice settings (metadata defaults, chunking, upload)
//   - user-config.example.yaml: Machine-specific settings (endpoint, retry tuning, history)
//
// Configuration Hierarchy (see internal/config/config.go Load()):
//   1. Hardcoded defaults (internal/config/config.go NewConfig())
//   2. User config (~/.config/lexstore/config.yaml)
//   3. Project config (.lexstore.yaml)
//   4. Environment variables (LEXSTORE_*)
//
// The API key is deliberately absent from both templates: it is read only
// from the LEXSTORE_API_KEY environment variable, optionally via a .env
// file next to .lexstore.yaml, and is never written to YAML.
//
// To modify templates, edit the .yaml files in this directory and rebuild.
// Changes will be embedded in the next build.
package configs

import _ "embed"

// UserConfigTemplate is the template for user/machine-level configuration.
// Created by: `lexstore config init` at ~/.config/lexstore/config.yaml
// Contains: Machine-specific settings like the LexHub endpoint, retry
// tuning and the local history log.
// Use case: Settings that apply to all practices on this machine.
//
//go:embed user-config.example.yaml
var UserConfigTemplate string

// ProjectConfigTemplate is the template for project-level configuration.
// Created by: `lexstore init` at .lexstore.yaml in the practice root
// Contains: Per-practice settings like metadata defaults and chunking.
// Use case: Settings that are version-controlled with the practice files.
//
//go:embed project-config.example.yaml
var ProjectConfigTemplate string
