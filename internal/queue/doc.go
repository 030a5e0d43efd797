// Package queue orders audio fetches. Play requests jump ahead of lookahead
// requests for cards that are merely visible, and a URL is only ever queued
// once.
package queue
