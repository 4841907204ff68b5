// Package domain translates MCP tool calls into workspace operations.
//
// The package is intentionally explicit about that mapping:
// - declare each tool's argument schema next to its typed input,
// - resolve widget references (id or name) against the workspace,
// - and translate workspace failures into the tool error taxonomy.
//
// Handlers never build their collaborators. The dispatcher passes a Deps
// value on every call, so tests run the same handlers against a fake
// workspace.
package domain
