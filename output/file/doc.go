// Package file provides FileWriter, a terminal routine that records the exit
// of every message and persists it to disk.
//
// Three formats are supported:
//
//   - jsonl: one encoded message per line (the default)
//   - json: indented encoded messages, for inspection
//   - raw: the bytes of frame payloads back to back; other payloads are skipped
//
// Records are buffered and flushed every buffer_size messages and when the
// routine is cleaned up, so a stopped component leaves a complete file.
//
// # Configuration
//
//	routine_type_name: FileWriter
//	queue: frames
//	directory: /var/lib/pipert
//	file_prefix: camera0
//	format: jsonl
//	append: true
//	buffer_size: 100
//
// The VideoWriter component type registered by componentregistry pairs a
// writer queue with a FileWriter routine.
package file
