// Package search finds sounds, either through the hosted search endpoint or
// by fuzzy matching the local store, falling back from one to the other.
package search
