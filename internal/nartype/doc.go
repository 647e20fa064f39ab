// Package nartype holds sentinel errors shared by the archive, index and
// listing packages. Public packages re-export them.
package nartype
