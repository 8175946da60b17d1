// Package logging configures structured logging for RustRAG.
//
// Logs are JSON lines written through a size-rotating file writer under
// ~/.rustrag/logs/, optionally teed to stderr. With no file configured,
// logs go to stderr as text.
package logging
