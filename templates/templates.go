// Package templates provides embedded prompt templates.
package templates

import "embed"

// Prompts contains the prompt templates sent to the planning assistant.
//
//go:embed prompts/*.md
var Prompts embed.FS
