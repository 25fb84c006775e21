package main

import (
	"fmt"
	"os"

	"github.com/jward/trailhead"
	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "trailhead",
	Short:         "Create and maintain Sourcetrail-compatible code index databases",
	Long:          "Trailhead manages the SQLite project databases that Sourcetrail reads. Indexers write into them through the library API; this tool handles project lifecycle.",
	SilenceErrors: true,
	SilenceUsage:  true,
	// No Run — prints help by default.
}

var flagForce bool

func init() {
	createCmd.Flags().BoolVar(&flagForce, "force", false, "overwrite an existing database")
	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(clearCmd)
}

var createCmd = &cobra.Command{
	Use:   "create <path>",
	Short: "Create an empty project database",
	Long:  "Creates a .srctrldb database with the full schema and its sibling .srctrlprj project file. Fails if the database exists unless --force is given.",
	Args:  cobra.ExactArgs(1),
	RunE:  runCreate,
}

func runCreate(cmd *cobra.Command, args []string) error {
	path := args[0]
	if flagForce && trailhead.Exists(path) {
		db, err := trailhead.OpenOrCreate(path, true)
		if err != nil {
			return err
		}
		defer db.Close()
		fmt.Fprintf(os.Stderr, "Recreated project: %s\n", db.Path())
		return nil
	}

	db, err := trailhead.Create(path)
	if err != nil {
		return err
	}
	defer db.Close()
	fmt.Fprintf(os.Stderr, "Created project: %s\n", db.Path())
	return nil
}

var clearCmd = &cobra.Command{
	Use:   "clear <path>",
	Short: "Wipe all index data from a project database",
	Long:  "Deletes every recorded symbol, reference and location while keeping the database a valid, empty project.",
	Args:  cobra.ExactArgs(1),
	RunE:  runClear,
}

func runClear(cmd *cobra.Command, args []string) error {
	db, err := trailhead.Open(args[0])
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Clear(); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Cleared project: %s\n", db.Path())
	return nil
}
