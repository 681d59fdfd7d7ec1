// Package tlsf is a two-level segregated fit allocator over memory supplied by the caller.
//
// Every operation other than Validate and the statistics walks runs in constant time. Free blocks
// are kept in a table of lists indexed by a power-of-two size class and a linear subdivision of
// that class, and a pair of bitmaps finds the smallest non-empty list that can serve a request.
// Freed blocks are merged with free physical neighbors immediately.
//
// The allocator stores nothing outside the memory it is given. Its control structure occupies the
// start of the memory passed to Create, and block headers and free list links live inside the
// pools passed to AddPool. Blocks are named by Ptr, an encoded pool and offset, and their payloads
// are reached through Bytes.
//
// An Allocator is not safe for concurrent use. The heap subpackage wraps one with optional
// locking and grows it on demand.
package tlsf
