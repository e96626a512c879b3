// Package cli holds the error types the apiprobe command line maps to exit
// codes and user guidance.
//
// AuthRequiredError means no usable credential exists and the user has to
// run "apiprobe auth login". AuthFailedError wraps a failure of the OAuth
// flow itself. ClassifyConnectionError recognizes transport failures (TLS,
// DNS, timeouts, refused connections) so they can be reported as such instead
// of as authentication problems.
package cli
