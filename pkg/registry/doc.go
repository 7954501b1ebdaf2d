// Package registry owns the mapping from request path to a registered file.
//
// A single goroutine (Actor.Run) holds the map and applies commands from a
// bounded inbox in arrival order, so registration, lookup-and-remove and
// counting never race and need no lock. A dispatch that finds its entry
// removes it, answers the requester, and hands the file to a stream.Pump
// goroutine; the actor moves on without waiting for the transfer.
//
// Registrations are single-use: once a path has been dispatched it is gone
// until registered again.
package registry
