// Package flows contains the orchestration behind each Engine operation.
//
// Each flow function (RunValidateLocal, RunValidateDirectory, RunEstablishSession)
// accepts a typed dependency struct and returns results without side-effects
// beyond those dependencies. The Engine builds the dependency struct and maps
// its public types onto the flow-local records defined here.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import caseAuth (to avoid import cycles).
//   - Perform I/O directly; all I/O is mediated through dependency funcs.
package flows
