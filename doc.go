package esml

// Package esml validates self-describing event logs: streams in which the
// schema of every event type is itself declared by earlier events in the
// same log.
//
// It provides:
//
// - A sequential Validator that replays {type, data} records in file order,
//   registering accepted type declarations and checking ordinary events
//   against the schemas registered so far (Feed/ValidateAll/ValidateSource)
// - A per-pass Registry with single-parent version lineage per type name
// - A stable error model via Issues (JSON Pointer path, code, message)
// - Record sources for concatenated-JSON and YAML renditions under source/
//
// Design policy:
// - Keep the public API in the root package; the schema node model lives in
//   schema/ as pure data, input decoding in source/, the CLI in cmd/esml.
// - The core interprets no type outside the reserved core. namespace: a
//   record is treated as a type declaration only because its registered
//   schema requires name and schema fields, never because of its name.
// - Prefer black-box testing against public APIs.
//
// Typical usage:
//
//	rep, err := esml.ValidateSource(ctx, source.JSONBytes(data))
//	if err != nil {
//		// first record was not the bootstrap self-declaration
//	}
//	fmt.Println(rep.Summary())
