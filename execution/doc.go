// Package execution is the entry point for running a submission.
//
// The Service validates a request against the language registry before any
// sandbox resource is touched, optionally bounds the number of executions in
// flight and hands the job to the sandbox Runner. Validation problems come
// back as a *ValidationError; everything that happens after validation is
// reported inside the returned sandbox.Result.
//
// Usage:
//
//	svc := execution.New(logger, registry, runner, execution.WithMaxConcurrent(8))
//	result, err := svc.Execute(ctx, execution.Request{
//	    Code:     "print('Hello, World!')",
//	    Language: "python",
//	})
package execution
