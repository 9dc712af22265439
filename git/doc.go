// Package git gives read-only access to the references of a bare mirror
// through go-git. All mutating git operations go through the git CLI (see
// package retry); this package never writes to a repository.
package git
