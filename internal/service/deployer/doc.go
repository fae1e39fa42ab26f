// Package deployer runs one customization deployment.
//
// It resolves the package directory, logs in, uploads every package in
// publish-level order, requests publication, follows it to a terminal status
// and always logs out when a session was opened. The run outcome maps to the
// process exit code of the CLI.
package deployer
