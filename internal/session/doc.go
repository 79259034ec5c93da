// Package session tracks which account a client is acting as.
//
// A Tracker is either Anonymous or Authenticated. Login moves it to
// Authenticated and persists a signed token through a MarkerStore; Logout
// moves it back and clears the marker. Restore is run once when a process
// starts: the tracker stays Anonymous unless the marker verifies and names an
// account that still exists and is not banned. Reconcile repeats that check
// for a live session, so a ban or deletion made elsewhere ends it.
//
// FileMarker is used by the commons CLI and lives next to the config file.
package session
