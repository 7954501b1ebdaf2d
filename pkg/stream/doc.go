// Package stream moves a file into a bounded channel of chunks.
package stream
