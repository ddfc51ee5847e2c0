// Package cli implements vaultctl, a small command-line front end to the
// vault service.
//
// Commands:
//
//	health                  check that the vault service is serving
//	breach                  check a password against the breach corpus
//	validate <archive>      verify an archive file without any key
//	backup <archive>        export the vault to a local archive file
//	restore <archive>       replace the vault with the archive content
//	export                  store a backup in the server's archive store
//	share <key>             print a time-limited download link for a stored backup
//	fetch <url> <archive>   download a shared archive and verify it
//	list [deleted]          list credentials (metadata only)
//	versions <credential>   list the version history of a credential
//	2fa                     show two-factor status
//
// Secrets are never accepted as arguments. They are read from the terminal
// without echo, or as one line from stdin when it is not a terminal.
package cli
