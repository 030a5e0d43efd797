// Package audio plays decoded sound samples through the system audio device
// using the oto/v3 library. A Device wraps the single oto context; each
// sound gets its own Track, which is the audio handle a player widget owns.
package audio
