// Command ethernity is a thin demonstration CLI over the backup/recovery
// core: it exercises backup.Build and backup.Recover against real files on
// disk. It does not render QR images or PDFs; that rendering layer is
// explicitly out of scope for the core this command wires together.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ethernity-paper/ethernity/backup"
	"github.com/ethernity-paper/ethernity/envelope"
	"github.com/ethernity-paper/ethernity/fallback"
	"github.com/ethernity-paper/ethernity/qrcap"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger init failed:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	var runErr error
	switch os.Args[1] {
	case "backup":
		runErr = runBackup(logger, os.Args[2:])
	case "recover":
		runErr = runRecover(logger, os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if runErr != nil {
		logger.Error("command failed", zap.Error(runErr))
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: ethernity backup --out DIR [flags] <files...>")
	fmt.Fprintln(os.Stderr, "       ethernity recover --out DIR [flags] <recovery.txt>")
}

// fakeQRGenerator stands in for a real QR rasterizer: it reports whether a
// payload fits a fixed character budget, the same contract a real encoder
// bound to a chosen version/error-correction level would. Wiring an actual
// QR library is outside the core's scope (spec §1, §6).
func fakeQRGenerator(maxChars int) qrcap.Generator {
	return qrcap.FakeGenerator{MaxChars: maxChars}
}

func runBackup(logger *zap.Logger, args []string) error {
	fs := flag.NewFlagSet("backup", flag.ExitOnError)
	outDir := fs.String("out", "", "directory to write backup artifacts into")
	sealed := fs.Bool("sealed", false, "leave the signing seed out of the manifest, so no new shards can be signed later")
	passphrase := fs.String("passphrase", "", "passphrase to encrypt under (generated if empty)")
	mnemonicWords := fs.Int("mnemonic-words", backupDefaultMnemonicWords, "BIP-39 word count when generating a passphrase")
	shardSpec := fs.String("shard-passphrase", "", "threshold/shares, e.g. 3/5, to Shamir-split the passphrase")
	seedShardSpec := fs.String("shard-signing-seed", "", "threshold/shares to also Shamir-split the signing seed")
	chunkSize := fs.Int("chunk-size", 800, "preferred MAIN frame chunk size in bytes before the QR capacity probe")
	qrMaxChars := fs.Int("qr-max-chars", 2000, "character budget used by the demonstration QR capacity stand-in")
	debugUnsafeLogSecrets := fs.Bool("debug-unsafe-log-secrets", false, "log the resolved passphrase (unsafe; debugging only)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	files := fs.Args()
	if len(files) == 0 || *outDir == "" {
		return fmt.Errorf("backup requires at least one file and --out")
	}

	sessionID := uuid.New()
	logger = logger.With(zap.String("session_id", sessionID.String()))

	parts, err := readParts(files)
	if err != nil {
		return err
	}

	var sharing, seedSharing *backup.ShareSet
	if *shardSpec != "" {
		sharing, err = parseShareSet(*shardSpec)
		if err != nil {
			return err
		}
	}
	seedMode := backup.SigningSeedEmbedded
	if *seedShardSpec != "" {
		seedSharing, err = parseShareSet(*seedShardSpec)
		if err != nil {
			return err
		}
		seedMode = backup.SigningSeedSharded
	}

	plan, err := backup.NewDocumentPlan(*sealed, sharing, seedMode, seedSharing)
	if err != nil {
		return err
	}

	artifacts, err := backup.Build(backup.BuildRequest{
		Parts:              parts,
		Plan:               plan,
		Passphrase:         *passphrase,
		MnemonicWords:      *mnemonicWords,
		PreferredChunkSize: *chunkSize,
		QRGenerator:        fakeQRGenerator(*qrMaxChars),
		CreatedAt:          time.Now().Unix(),
	})
	if err != nil {
		return err
	}

	if err := writeArtifacts(*outDir, artifacts); err != nil {
		return err
	}

	fields := []zap.Field{
		zap.String("doc_id", fmt.Sprintf("%x", artifacts.DocID)),
		zap.Int("main_frames", len(artifacts.MainFrames)),
		zap.Int("key_frames", len(artifacts.KeyFrames)),
		zap.String("out_dir", *outDir),
	}
	if *debugUnsafeLogSecrets {
		fields = append(fields, zap.String("passphrase", artifacts.Passphrase))
	}
	logger.Info("backup complete", fields...)
	return nil
}

const backupDefaultMnemonicWords = 24

func runRecover(logger *zap.Logger, args []string) error {
	fs := flag.NewFlagSet("recover", flag.ExitOnError)
	outDir := fs.String("out", "", "directory to write recovered files into")
	passphrase := fs.String("passphrase", "", "passphrase to decrypt with, when no KEY frames are provided")
	allowUnsigned := fs.Bool("allow-unsigned", false, "proceed when AUTH verification is missing or fails")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 || *outDir == "" {
		return fmt.Errorf("recover requires a recovery text file and --out")
	}

	text, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return fmt.Errorf("reading recovery text: %w", err)
	}

	sections, err := fallback.ParseText(string(text))
	if err != nil {
		return err
	}

	req := backup.RecoverRequest{Passphrase: *passphrase, AllowUnsigned: *allowUnsigned}
	for _, s := range sections {
		f, err := fallback.LinesToFrame(s.Lines)
		if err != nil {
			return err
		}
		req.Frames = append(req.Frames, f)
	}

	result, err := backup.Recover(req)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(*outDir, 0o700); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	for _, f := range result.Files {
		dest := filepath.Join(*outDir, filepath.FromSlash(f.Path))
		if err := os.MkdirAll(filepath.Dir(dest), 0o700); err != nil {
			return fmt.Errorf("creating directory for %s: %w", f.Path, err)
		}
		if err := os.WriteFile(dest, f.Data, 0o600); err != nil {
			return fmt.Errorf("writing %s: %w", f.Path, err)
		}
	}

	fields := []zap.Field{
		zap.String("doc_id", fmt.Sprintf("%x", result.DocID)),
		zap.Bool("auth_verified", result.AuthVerified),
		zap.Int("files", len(result.Files)),
	}
	if result.PolicyWarning != "" {
		fields = append(fields, zap.String("policy_warning", result.PolicyWarning))
		logger.Warn("recovery completed with a downgraded verification", fields...)
	} else {
		logger.Info("recovery complete", fields...)
	}
	return nil
}

func readParts(paths []string) ([]envelope.Part, error) {
	parts := make([]envelope.Part, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", p, err)
		}
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", p, err)
		}
		mtime := info.ModTime().Unix()
		parts = append(parts, envelope.Part{
			Path:  filepath.ToSlash(filepath.Base(p)),
			Data:  data,
			MTime: &mtime,
		})
	}
	return parts, nil
}

func parseShareSet(spec string) (*backup.ShareSet, error) {
	pieces := strings.SplitN(spec, "/", 2)
	if len(pieces) != 2 {
		return nil, fmt.Errorf("share spec must be threshold/shares, got %q", spec)
	}
	threshold, err := strconv.Atoi(pieces[0])
	if err != nil {
		return nil, fmt.Errorf("invalid threshold in %q: %w", spec, err)
	}
	shares, err := strconv.Atoi(pieces[1])
	if err != nil {
		return nil, fmt.Errorf("invalid share count in %q: %w", spec, err)
	}
	return &backup.ShareSet{Threshold: threshold, Shares: shares}, nil
}

func writeArtifacts(outDir string, artifacts backup.Artifacts) error {
	if err := os.MkdirAll(outDir, 0o700); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(outDir, "recovery.txt"), []byte(artifacts.FallbackText), 0o600); err != nil {
		return fmt.Errorf("writing recovery text: %w", err)
	}

	summary := struct {
		DocHash string `json:"doc_hash"`
		DocID   string `json:"doc_id"`
		Frames  int    `json:"main_frames"`
		Shards  int    `json:"key_frames"`
	}{
		DocHash: fmt.Sprintf("%x", artifacts.DocHash),
		DocID:   fmt.Sprintf("%x", artifacts.DocID),
		Frames:  len(artifacts.MainFrames),
		Shards:  len(artifacts.KeyFrames),
	}
	summaryBytes, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling summary: %w", err)
	}
	if err := os.WriteFile(filepath.Join(outDir, "summary.json"), summaryBytes, 0o600); err != nil {
		return fmt.Errorf("writing summary: %w", err)
	}
	if artifacts.Passphrase != "" {
		if err := os.WriteFile(filepath.Join(outDir, "passphrase.txt"), []byte(artifacts.Passphrase+"\n"), 0o600); err != nil {
			return fmt.Errorf("writing passphrase: %w", err)
		}
	}
	return nil
}
