// Package harness runs end-to-end scenarios against the toolkit.
//
// A scenario is a YAML file naming a module (by path or inline text), the
// pipeline that lowers it, the expected verification outcome and a list of
// invocations with expected results or traps:
//
//	name: add_i32
//	description: add doubles its i32 argument
//	module: modules/add_i32.mlir
//	invocations:
//	  - function: add
//	    args: [42]
//	    expect: [84]
//	golden: add_i32_lowered
//
// Every run records its artifact and invocations in a run log (an
// in-memory SQLite store unless WithStorePath is given) stamped by a
// deterministic clock. The trace used by assertions and golden files is
// read back from that log, so a scenario run twice produces identical
// output.
package harness
