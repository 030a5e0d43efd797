// Package playback coordinates audio playback across independently mounted
// player widgets so that at most one of them is playing at any time.
//
// A Coordinator owns the playback token and a broadcast channel. Widgets
// request the token before starting their audio and release it when they
// pause or finish. When a widget takes the token from another one, the
// previous holder's audio is paused and every subscriber receives a
// Notification so it can clear its own playing flag.
package playback
