// Package bitmap provides an atomic multi-field bitmap used to claim and
// release runs of blocks concurrently.
//
// The bitmap is an array of 64-bit fields, each mutated only through atomic
// operations. A run of bits may span adjacent fields; cross-field claims are
// made atomic with respect to each other by claiming fields in index order
// and rolling back on conflict.
//
// # Indexing
//
// An Index is an absolute bit position: field*FieldBits + bit. Use NewIndex
// to build one and Field/Bit to split it again.
//
// # Thread safety
//
// All operations are safe for concurrent use. Claim operations never block;
// they spin on CAS with a bounded number of cross-field retries.
package bitmap
