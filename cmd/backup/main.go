package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"babyofficehours/internal/config"
	"babyofficehours/internal/remote"
	"babyofficehours/internal/repository"
	"babyofficehours/internal/service"

	log "github.com/sirupsen/logrus"
)

func main() {
	// Define subcommands
	exportCmd := flag.NewFlagSet("export", flag.ExitOnError)
	importCmd := flag.NewFlagSet("import", flag.ExitOnError)

	// Export flags
	exportOutput := exportCmd.String("output", "", "Output file path (default: backup_YYYYMMDD_HHMMSS.json)")

	// Import flags
	importInput := importCmd.String("input", "", "Input file path (required)")
	importClear := importCmd.Bool("clear", false, "Clear existing data before import (WARNING: destructive)")

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.DatabaseType == config.StorageMemory {
		log.Fatal("Nothing to back up: DATABASE_TYPE is memory")
	}

	store, err := repository.OpenStore(cfg, remote.Collections...)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer store.Close()

	backupService := service.NewBackupService(store, remote.Collections)
	ctx := context.Background()

	switch os.Args[1] {
	case "export":
		exportCmd.Parse(os.Args[2:])
		handleExport(ctx, backupService, *exportOutput)

	case "import":
		importCmd.Parse(os.Args[2:])
		if *importInput == "" {
			fmt.Println("Error: -input flag is required")
			importCmd.PrintDefaults()
			os.Exit(1)
		}
		handleImport(ctx, backupService, *importInput, *importClear)

	default:
		printUsage()
		os.Exit(1)
	}
}

func handleExport(ctx context.Context, backupService *service.BackupService, outputPath string) {
	if outputPath == "" {
		timestamp := time.Now().Format("20060102_150405")
		outputPath = fmt.Sprintf("backup_%s.json", timestamp)
	}

	dir := filepath.Dir(outputPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("Failed to create output directory: %v", err)
		}
	}

	log.WithField("path", outputPath).Info("Exporting documents")
	if err := backupService.Export(ctx, outputPath); err != nil {
		log.Fatalf("Export failed: %v", err)
	}

	fileInfo, err := os.Stat(outputPath)
	if err != nil {
		log.Fatalf("Export failed: %v", err)
	}
	log.WithField("size_kb", fileInfo.Size()/1024).Info("Export complete")
}

func handleImport(ctx context.Context, backupService *service.BackupService, inputPath string, clearData bool) {
	if _, err := os.Stat(inputPath); os.IsNotExist(err) {
		log.Fatalf("Input file does not exist: %s", inputPath)
	}

	if clearData {
		fmt.Print("WARNING: This will delete all existing babies, invites and users. Type 'yes' to confirm: ")
		var confirmation string
		fmt.Scanln(&confirmation)
		if confirmation != "yes" {
			log.Info("Import cancelled")
			return
		}
	}

	log.WithFields(log.Fields{"path": inputPath, "clear": clearData}).Info("Importing documents")
	if err := backupService.Import(ctx, inputPath, clearData); err != nil {
		log.Fatalf("Import failed: %v", err)
	}

	log.Info("Import complete")
}

func printUsage() {
	fmt.Println("Baby Office Hours Backup Tool")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  backup export [options]    Export all documents to a JSON file")
	fmt.Println("  backup import [options]    Import documents from a JSON file")
	fmt.Println()
	fmt.Println("Export Options:")
	fmt.Println("  -output <file>    Output file path (default: backup_YYYYMMDD_HHMMSS.json)")
	fmt.Println()
	fmt.Println("Import Options:")
	fmt.Println("  -input <file>     Input file path (required)")
	fmt.Println("  -clear            Clear existing documents before import (WARNING: destructive)")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  backup export -output mybackup.json")
	fmt.Println("  backup import -input backup.json")
	fmt.Println("  backup import -input backup.json -clear")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  DATABASE_TYPE    sqlite, postgres, mysql or bbolt (default: sqlite)")
	fmt.Println("  DB_PATH          SQLite database path (default: ./babyofficehours.db)")
	fmt.Println("  DATABASE_URL     PostgreSQL or MySQL connection URL")
	fmt.Println("  BOLT_PATH        bbolt file path (default: ./babyofficehours.bolt)")
}
