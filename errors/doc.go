/*
Package errors implements the error handling used across simplex.

The idea is to reuse as many root errors from this package as possible and
define custom package errors only when absolutely necessary. Every error
created at runtime should wrap one of the registered root errors so that the
kind of a failure can be tested with Is, no matter how many times it was
wrapped on its way up.

If you want to register a custom error - use Register(code, description).
For reusing errors - use ErrXyz.New, ErrXyz.Newf or Wrap(ErrXyz, "...").

Stack traces are attached at the innermost wrap. Once you have an error, you
can use fmt to get more context
	%s is just the error message
	%+v is the full stack trace
*/
package errors
