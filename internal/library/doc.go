// Package library holds the sound library domain: sounds, a user's saved
// entries, search history and the maintenance rewrites applied to stored
// audio URLs.
//
// Service implements the operations behind every surface. It depends on
// small repository interfaces so the store can be swapped in tests.
package library
