// Package session holds the signed-in identity for one running client and the
// auth-changed Bus every other component listens on.
//
// The Store is the only state shared by all mounted views. It is mutated by the
// Session Gate's authentication probe and by explicit sign-in, sign-out and
// profile deletion; broadcasting mutations go through the Bus so views can react
// without polling.
//
// Tokens are inspected, never verified: the backend is authoritative.
package session
