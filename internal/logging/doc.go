// Package logging provides file-based structured logging with rotation.
// Logs are written as JSON lines to ~/.lexstore/logs/ so that long-running
// uploads and the MCP server leave a diagnosable trail without polluting
// stdout.
//
// In MCP mode stdout carries only JSON-RPC frames, so logging must go to
// file exclusively; see SetupMCPMode.
package logging
