// Package github looks up repository metadata through the GitHub REST API.
//
// The orchestrator only needs it when the mirror cannot tell which branch is
// the default one; everything else is served from the mirror.
//
//	client, err := github.NewClient(github.WithToken(token), github.WithAPIURL(apiURL))
//	branch, err := client.DefaultBranch(ctx, "acme", "widgets")
package github
