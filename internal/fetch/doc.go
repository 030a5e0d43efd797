// Package fetch downloads sound files over HTTP through the audio cache,
// rate limited, and drains the fetch queue in the background.
package fetch
