// Package exec runs external commands such as git, sudo and the submodule
// helper.
//
// Command implements the Executor interface on top of os/exec. Settings made
// through the Option constructors are global and survive every Run; settings
// made through the fluent With* methods are local and reset after the next
// Run. Output is always captured and can additionally be streamed to the
// configured writers with passthrough.
//
//	git := exec.NewWrapper(exec.New(exec.WithInheritEnv()), "git")
//	res, err := git.WithDir(repoDir).Run("rev-parse", "HEAD")
//
// Failed commands return an *ExecError that carries the exit code and the
// captured streams. The retry layer relies on it to report git failures.
package exec
