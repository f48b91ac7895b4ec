// Package engine executes modules lowered to the llvm dialect.
//
// Compile verifies a module, checks that it contains nothing but llvm
// operations, and turns every llvm.func into a closure program: each SSA
// value is resolved to a register slot of the function's frame at compile
// time, and each operation becomes a closure reading and writing those
// slots. The result is an immutable Artifact.
//
// Functions are called through the packed interface: one 8-byte Slot per
// parameter, followed by one Slot per result. Argument slots are read and
// never written; result slots are overwritten with the return values.
//
// Integer values are kept zero-extended to their bit width inside a Slot.
// Signed operations sign-extend on the fly, so every width from i1 to i64
// wraps exactly as the corresponding machine integer.
//
// Traps (division by zero, signed division overflow and exceeding the call
// depth limit) abort the invocation with an *InvocationError of kind
// Trap. Since an artifact never changes after Compile, any number of
// goroutines may invoke it at the same time.
package engine
