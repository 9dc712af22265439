// Package mirror manages the persistent bare mirrors that checkouts borrow
// objects from.
//
// Mirrors live under a shared root:
//
//	<root>/v1/<owner>-<repo>             default identity
//	<root>/v1/uid-<uid>/<owner>-<repo>   any other user
//
// A mirror is created once with `git clone --mirror` and afterwards only
// fetched into; nothing here ever deletes it. Several jobs, possibly running
// as different users, may share the root, so the version directory is kept
// world-writable. There is no locking: creation is guarded by an existence
// check and a lost race falls back to a refresh.
package mirror
