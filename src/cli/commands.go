package cli

import (
	"github.com/spf13/cobra"

	"kcl-navigator/src/internal/common"
	versionpkg "kcl-navigator/src/internal/version"
)

// CLI Constants
const (
	CmdIndex      = "index"
	CmdDefinition = "definition"
	CmdReferences = "references"
	CmdWords      = "words"
	CmdWatch      = "watch"
	CmdVersion    = "version"
	FlagConfig    = "config"
	FlagJSON      = "json"
	FlagVerbose   = "verbose"
	FlagWord      = "word"
	FlagFilter    = "filter"
	FlagUseIndex  = "use-index"
	FlagStrict    = "strict"
)

// CLI Variables
var (
	configPath    string
	formatJSON    bool
	verbose       bool
	wordName      string
	filterPattern string
	useIndex      bool
	strict        bool
)

// Root command
var rootCmd = &cobra.Command{
	Use:   "kcl-navigator",
	Short: "Go-to-definition and find-references for KCL workspaces",
	Long: `kcl-navigator answers navigation queries over a KCL workspace from the shell.

Positions are 0-based line and character offsets, the same coordinates an
editor sends over the Language Server Protocol. Characters count runes.

AVAILABLE COMMANDS:
  kcl-navigator index [root]                       # Build the word index and print statistics
  kcl-navigator definition <file> <line> <col>     # Jump to the declaration under the cursor
  kcl-navigator references <file> <line> <col>     # List every reference to that declaration
  kcl-navigator words <file>                       # Show how a file is split into words
  kcl-navigator watch [root]                       # Keep the index current while files change

Configuration is read from --config, $KCL_NAVIGATOR_CONFIG, .kcl-navigator.yaml in
the workspace root or ~/.kcl-navigator/config.yaml, in that order.

Use 'kcl-navigator <command> --help' for detailed command information.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Command definitions
var (
	indexCmd = &cobra.Command{
		Use:   CmdIndex + " [root]",
		Short: "Build the word index",
		Long: `Scan the workspace, tokenize every source file and print index statistics.

Examples:
  kcl-navigator index                         # Index the current directory
  kcl-navigator index ./config --word Son     # Also list every occurrence of Son
  kcl-navigator index --word port --filter 'app/**/*.k'`,
		Args: cobra.MaximumNArgs(1),
		RunE: runIndexCmd,
	}

	definitionCmd = &cobra.Command{
		Use:   CmdDefinition + " <file> <line> <col>",
		Short: "Find the declaration of the identifier at a position",
		Long: `Resolve the identifier at the given 0-based position to its declaration.

Nothing to jump to (whitespace, keywords, undeclared names) prints an empty
result and exits successfully.

Examples:
  kcl-navigator definition main.k 3 7
  kcl-navigator definition main.k 3 7 --json`,
		Args: cobra.ExactArgs(3),
		RunE: runDefinitionCmd,
	}

	referencesCmd = &cobra.Command{
		Use:   CmdReferences + " <file> <line> <col>",
		Short: "Find every reference to the identifier at a position",
		Long: `List every occurrence in the workspace that resolves to the same declaration
as the identifier at the given 0-based position, the declaration included.

By default candidates come from a fresh scan of the workspace. --use-index draws
them from the word index instead. Files that cannot be read are reported on
stderr; --strict turns them into a failure.

Examples:
  kcl-navigator references main.k 3 7
  kcl-navigator references main.k 3 7 --use-index --filter 'app/'`,
		Args: cobra.ExactArgs(3),
		RunE: runReferencesCmd,
	}

	wordsCmd = &cobra.Command{
		Use:   CmdWords + " <file>",
		Short: "Show the words of a file",
		Long:  `Print every identifier word of a file with its line and rune range.`,
		Args:  cobra.ExactArgs(1),
		RunE:  runWordsCmd,
	}

	watchCmd = &cobra.Command{
		Use:   CmdWatch + " [root]",
		Short: "Keep the word index current while files change",
		Long: `Build the word index, then watch the workspace and apply every create,
write, rename and delete to the index until interrupted.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runWatchCmd,
	}

	versionCmd = &cobra.Command{
		Use:   CmdVersion,
		Short: "Show version information",
		Long: `Display version information for kcl-navigator.

Examples:
  kcl-navigator version              # Show version number
  kcl-navigator version --verbose    # Show detailed build information`,
		RunE: runVersionCmd,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, FlagConfig, "c", "", "Configuration file path (optional)")
	rootCmd.PersistentFlags().BoolVar(&formatJSON, FlagJSON, false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, FlagVerbose, "v", false, "Enable debug logging")

	indexCmd.Flags().StringVar(&wordName, FlagWord, "", "List every occurrence of this word")
	indexCmd.Flags().StringVar(&filterPattern, FlagFilter, "", "Only list occurrences in files matching this glob")

	referencesCmd.Flags().BoolVar(&useIndex, FlagUseIndex, false, "Draw candidates from the word index")
	referencesCmd.Flags().StringVar(&filterPattern, FlagFilter, "", "Only list references in files matching this glob")
	referencesCmd.Flags().BoolVar(&strict, FlagStrict, false, "Fail when any file has to be skipped")
	definitionCmd.Flags().BoolVar(&strict, FlagStrict, false, "Fail when any file has to be skipped")

	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(definitionCmd)
	rootCmd.AddCommand(referencesCmd)
	rootCmd.AddCommand(wordsCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(versionCmd)
}

func runVersionCmd(cmd *cobra.Command, args []string) error {
	if formatJSON {
		return printJSON(cmd.OutOrStdout(), map[string]string{
			"version":    versionpkg.Version,
			"commit":     versionpkg.GitCommit,
			"build_date": versionpkg.BuildDate,
			"go":         versionpkg.GoVersion,
		})
	}
	if verbose {
		printLine(cmd.OutOrStdout(), versionpkg.GetFullVersionInfo())
		return nil
	}
	printLine(cmd.OutOrStdout(), "kcl-navigator "+versionpkg.GetVersion())
	return nil
}

// Execute runs the root command
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		common.CLILogger.Debug("Command failed: %v", err)
	}
	return err
}
