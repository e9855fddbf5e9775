// Package mcp exposes the level-aware retrieval and analysis engine as
// Model Context Protocol tools.
//
// Six tools are registered: retrieve_documents, cross_level_analysis,
// integration_points, compliance_check, knowledge_store, and
// collection_stats. Tool outputs are plain text reports; the consuming
// agent is responsible for turning them into natural language.
//
// Error handling follows the MCP convention: caller faults (invalid
// levels, unknown strategies, malformed ranges) come back as IsError
// tool results, while engine and backend faults propagate as protocol
// errors.
package mcp
