// Command phiaudit-admin drives the administrative operations of the audit
// subsystem: salt rotation, chain verification, retention sweeps, and a
// status summary. Configuration comes from PHIAUDIT_* environment variables
// (a local .env file is honored when present).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/hengadev/phiaudit"
	"github.com/hengadev/phiaudit/providers/s3archive"
	"github.com/hengadev/phiaudit/providers/vaultsecrets"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	// Best effort: developers keep PHIAUDIT_* in .env locally.
	_ = godotenv.Load()

	command := os.Args[1]
	switch command {
	case "rotate":
		rotateCommand(os.Args[2:])
	case "verify":
		verifyCommand(os.Args[2:])
	case "sweep":
		sweepCommand(os.Args[2:])
	case "status":
		statusCommand(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: %s <command> [options]\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "\nCommands:\n")
	fmt.Fprintf(os.Stderr, "  rotate   Retire the active salt epoch and activate a fresh one\n")
	fmt.Fprintf(os.Stderr, "  verify   Verify the audit chain across a sequence range\n")
	fmt.Fprintf(os.Stderr, "  sweep    Run one retention archival/purge pass\n")
	fmt.Fprintf(os.Stderr, "  status   Show chain head and active epoch\n")
	fmt.Fprintf(os.Stderr, "\nRun '%s <command> -h' for help on a specific command.\n", os.Args[0])
}

// loadConfig resolves configuration from the environment. When
// PHIAUDIT_VAULT_PATH is set the secret comes from Vault KV instead of
// PHIAUDIT_SECRET.
func loadConfig() (phiaudit.Config, error) {
	cfg, err := phiaudit.LoadConfigFromEnvironment()
	if err != nil {
		return phiaudit.Config{}, err
	}
	if vaultPath := os.Getenv("PHIAUDIT_VAULT_PATH"); vaultPath != "" {
		source, err := vaultsecrets.New(vaultPath)
		if err != nil {
			return phiaudit.Config{}, err
		}
		cfg.SecretSource = source
	}
	return cfg, nil
}

func openService(ctx context.Context) *phiaudit.Service {
	cfg, err := loadConfig()
	if err != nil {
		fatal(err)
	}
	svc, err := phiaudit.NewWithConfig(ctx, cfg)
	if err != nil {
		fatal(err)
	}
	return svc
}

func rotateCommand(args []string) {
	fs := flag.NewFlagSet("rotate", flag.ExitOnError)
	memory := fs.Uint("memory", 0, "Override Argon2 memory (KiB) for the new epoch")
	iterations := fs.Uint("iterations", 0, "Override Argon2 iterations for the new epoch")
	fs.Parse(args)

	ctx := context.Background()
	svc := openService(ctx)
	defer svc.Close()

	var opts phiaudit.RotateOptions
	if *memory > 0 || *iterations > 0 {
		params := phiaudit.DefaultArgon2Params()
		if *memory > 0 {
			params.Memory = uint32(*memory)
		}
		if *iterations > 0 {
			params.Iterations = uint32(*iterations)
		}
		opts.WorkFactor = &params
	}

	epoch, err := svc.RotateSalt(ctx, opts)
	if err != nil {
		fatal(err)
	}
	fmt.Printf("rotated: new active epoch %d (activated %s)\n", epoch.ID, epoch.ActivatedAt.Format(time.RFC3339))
}

func verifyCommand(args []string) {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	from := fs.Int64("from", 1, "First sequence number to verify")
	to := fs.Int64("to", 0, "Last sequence number to verify (0 = chain head)")
	timeout := fs.Duration("timeout", 10*time.Minute, "Verification deadline")
	fs.Parse(args)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	svc := openService(ctx)
	defer svc.Close()

	toSeq := *to
	if toSeq == 0 {
		toSeq, _ = svc.Writer.Head()
	}

	report, err := svc.VerifyChain(ctx, *from, toSeq)
	if err != nil {
		if phiaudit.IsIntegrityError(err) {
			fmt.Fprintf(os.Stderr, "INTEGRITY FAILURE: chain diverges at sequence %d (%d records checked)\n",
				report.FirstDivergentSeq, report.Checked)
			os.Exit(2)
		}
		fatal(err)
	}
	fmt.Printf("chain intact: %d records verified (%d..%d)\n", report.Checked, *from, toSeq)
}

func sweepCommand(args []string) {
	fs := flag.NewFlagSet("sweep", flag.ExitOnError)
	archiveDir := fs.String("archive-dir", "", "Archive expired batches to this local directory")
	s3Bucket := fs.String("s3-bucket", "", "Archive expired batches to this S3 bucket")
	s3Prefix := fs.String("s3-prefix", "phiaudit", "Key prefix inside the S3 bucket")
	fs.Parse(args)

	ctx := context.Background()
	cfg, err := loadConfig()
	if err != nil {
		fatal(err)
	}
	switch {
	case *s3Bucket != "":
		store, err := s3archive.New(ctx, *s3Bucket, *s3Prefix)
		if err != nil {
			fatal(err)
		}
		cfg.Archive = store
	case *archiveDir != "":
		cfg.Archive = phiaudit.DirArchiveStore{Dir: *archiveDir}
	}
	svc, err := phiaudit.NewWithConfig(ctx, cfg)
	if err != nil {
		fatal(err)
	}
	defer svc.Close()

	result, err := svc.Sweep(ctx, time.Now())
	if err != nil {
		fatal(err)
	}
	fmt.Printf("sweep complete: archived %d, purged %d\n", result.Archived, result.Purged)
}

func statusCommand(args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	fs.Parse(args)

	ctx := context.Background()
	svc := openService(ctx)
	defer svc.Close()

	epoch, err := svc.Epochs.ActiveEpoch(ctx)
	if err != nil {
		fatal(err)
	}
	seq, checksum := svc.Writer.Head()
	fmt.Printf("active epoch: %s (ephemeral=%t)\n", epoch, epoch.Ephemeral)
	fmt.Printf("chain head:   sequence %d, checksum %s\n", seq, checksum)
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "phiaudit-admin: %v\n", err)
	os.Exit(1)
}
