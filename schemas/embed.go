// Package schemas ships the JSON Schemas that model output must satisfy.
package schemas

import "embed"

// Files holds every *.schema.json in this directory.
//
//go:embed *.schema.json
var Files embed.FS

// Schema file names.
const (
	Proposal  = "proposal.schema.json"
	Knowledge = "knowledge.schema.json"
	Sales     = "sales.schema.json"
)
