// Package checkout materializes a working checkout that borrows objects from
// a mirror.
//
// The working repository is initialized empty rather than cloned, so the
// remote, the alternates link and the fetched refs are fully under control:
//
//	exec := checkout.NewExecutor(git, checkout.WithServerURL(serverURL))
//	head, err := exec.Materialize(ctx, checkout.Request{
//	    Owner:      "acme",
//	    Repo:       "widgets",
//	    FetchDepth: 1,
//	}, mirrorPath, refspecs, resolution, workDir)
//
// Objects already present in the mirror are never downloaded. Unless the
// checkout is dissociated, it keeps depending on the mirror through
// .git/objects/info/alternates.
package checkout
