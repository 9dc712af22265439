// Package action wires the checkout components into a single run.
//
// A run is configured from two sources: the runner environment, read with
// LoadEnv, and the action inputs, validated once by NewRequest into an
// immutable Request. Orchestrator.Run then executes the steps strictly in
// order:
//
//  1. install global git credentials
//  2. create or refresh the mirror
//  3. resolve the ref and plan the fetch
//  4. materialize the working checkout
//  5. check out submodules, if requested
//  6. persist credentials locally, if requested
//  7. remove global git credentials, whatever happened before
//
// Example:
//
//	env, err := action.LoadEnv(ctx)
//	if err != nil {
//	    return err
//	}
//	req, err := action.NewRequest(inputs, env)
//	if err != nil {
//	    return err
//	}
//	result, err := action.NewOrchestrator(env).Run(ctx, req)
package action
