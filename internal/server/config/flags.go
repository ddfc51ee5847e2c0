package config

import (
	"flag"
	"os"

	"github.com/dmitrijs2005/gophvault/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   gRPC bind address (e.g., ":50051")
//	-d string   PostgreSQL DSN
//	-s string   JWT HMAC secret key
//	-v string   log level (debug, info, warn, error)
//	-u string   S3 root user
//	-p string   S3 root password
//	-b string   S3 bucket name
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//	-k string   archive store: "s3", "bolt" or "" to disable export
//	-l string   bbolt archive file
//	-m uint     Argon2id memory, KiB
//	-i string   TOTP issuer
//	-w uint     TOTP window, time steps
//	-f uint     TOTP fallback window, time steps
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with other components.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-s", "-v", "-u", "-p", "-b", "-g", "-e", "-k", "-l", "-m", "-i", "-w", "-f"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrGRPC, "a", config.EndpointAddrGRPC, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.StringVar(&config.LogLevel, "v", config.LogLevel, "log level")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 root bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 root region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	fs.StringVar(&config.ArchiveStore, "k", config.ArchiveStore, "archive store (s3|bolt)")
	fs.StringVar(&config.BoltPath, "l", config.BoltPath, "bbolt archive file")

	kdfMemory := fs.Uint("m", uint(config.KDFMemoryKiB), "argon2id memory (KiB)")

	fs.StringVar(&config.TOTPIssuer, "i", config.TOTPIssuer, "TOTP issuer")
	fs.UintVar(&config.TOTPWindow, "w", config.TOTPWindow, "TOTP window (steps)")
	fs.UintVar(&config.TOTPFallbackWindow, "f", config.TOTPFallbackWindow, "TOTP fallback window (steps)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.KDFMemoryKiB = uint32(*kdfMemory)
}
