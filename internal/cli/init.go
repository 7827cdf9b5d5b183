package cli

import (
	"fmt"
	"os"

	"github.com/carahq/cara/internal/config"
	"github.com/spf13/cobra"
)

var initOwner string

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize cara in the current directory",
	Long:  "Creates a .cara/ directory with default config and database.",
	RunE:  runInit,
}

func init() {
	initCmd.Flags().StringVarP(&initOwner, "owner", "o", "", "Owner id tasks are scoped to (required)")
	initCmd.MarkFlagRequired("owner")
}

func runInit(cmd *cobra.Command, args []string) error {
	// Check if already initialized.
	if _, err := os.Stat(caraDirName); err == nil {
		return fmt.Errorf("cara already initialized in this directory (.cara/ exists)")
	}

	if err := os.MkdirAll(caraDirName, 0755); err != nil {
		return fmt.Errorf("create .cara: %w", err)
	}

	cfg := config.Default()
	cfg.Owner = initOwner
	if err := config.Save(caraPath("cara.yaml"), cfg); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	// Create database by opening the store (migration runs automatically).
	s, err := mustStore(cfg)
	if err != nil {
		return fmt.Errorf("create database: %w", err)
	}
	s.Close()

	fmt.Println("Initialized cara in .cara/")
	fmt.Println("")
	fmt.Println("Next steps:")
	fmt.Printf("  1. Edit .cara/cara.yaml and export %s\n", cfg.Inference.APIKeyEnv)
	fmt.Println("  2. Run: cara task add \"your first task\"")
	fmt.Println("  3. Run: cara board")

	return nil
}
