// Package signature builds the normalized model of a function annotated with a
// backon directive.
//
// The model records what the code synthesizer needs to rewrite the function
// without touching its body:
//   - whether the function suspends, i.e. takes a context.Context first
//   - how a method holds its receiver (value, read-only pointer, writing pointer)
//   - every parameter binding, with its type exactly as written
//   - the result list and the original body text
//
// Receiver classification for pointer receivers is syntactic: a method whose body
// assigns through the receiver, increments a field of it or takes the address of
// something rooted at it is a mutable borrow. Everything else is an immutable
// borrow, including methods that mutate through atomics or locks.
//
// Usage:
//
//	src := signature.Source{Fset: fset, File: file, Src: data}
//	sig, err := signature.Build(src, funcDecl)
//	if err != nil {
//		return err // shape diagnostic
//	}
//	fmt.Println(sig.IsSuspending, sig.Receiver.Kind)
package signature
