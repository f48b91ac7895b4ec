// Package ir provides the core data structures of the irkit intermediate
// representation.
//
// This package contains the object model only. All other internal packages
// import ir; ir imports nothing internal.
//
// # Structure
//
// A Context owns every interned Type and Attribute and the registry of
// operation kinds. A Module is a builtin.module Operation whose single region
// holds one block of top-level operations (conventionally functions). Every
// Operation may own Regions; a Region owns Blocks; a Block owns Operations and
// declares typed block arguments.
//
//	Context
//	  └── Module (builtin.module)
//	        └── Region → Block → Operation → Region → ...
//
// # Key constraints
//
//   - Types and Attributes are interned handles: structurally equal requests
//     return handles that compare equal with ==.
//   - Every Value has exactly one defining site and a fixed Type.
//   - Operations are created detached and become owned when appended to a
//     Block. Erasing an operation whose results still have uses fails.
//   - Nothing created from one Context may be mixed into another.
//   - A Module is mutated by one writer at a time; pipelines take Module.Lock.
package ir
