package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/timedeck/internal/catalog"
	"github.com/derickschaefer/timedeck/internal/model"
)

// completionCmd wraps Cobra's built-in shell completion generator.
// Running `timedeck completion bash` prints a script the user can source.
var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion scripts",
	Long: `Generate shell completion scripts for timedeck.

To load completions in the current shell session:

  # bash
  source <(timedeck completion bash)

  # zsh
  source <(timedeck completion zsh)

  # fish
  timedeck completion fish | source

Persist across sessions by adding the source line to your shell profile
(~/.bashrc, ~/.zshrc, ~/.config/fish/completions/timedeck.fish, etc.).`,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.ExactValidArgs(1),
	DisableFlagsInUseLine: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		root := cmd.Root()
		switch args[0] {
		case "bash":
			return root.GenBashCompletion(cmd.OutOrStdout())
		case "zsh":
			return root.GenZshCompletion(cmd.OutOrStdout())
		case "fish":
			return root.GenFishCompletion(cmd.OutOrStdout(), true)
		case "powershell":
			return root.GenPowerShellCompletionWithDesc(cmd.OutOrStdout())
		default:
			return cmd.Help()
		}
	},
}

// completeCatalogIDs suggests catalog ids for `cities add`. It reads only
// the catalog, so completion never opens the database.
func completeCatalogIDs(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return matchIDs(cat.All(), args, toComplete), cobra.ShellCompDirectiveNoFileComp
}

// completeTrackedIDs suggests tracked ids for `cities remove|move|order`.
func completeTrackedIDs(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	deps, err := buildDeps(cmd.Context())
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	defer deps.Close()
	return matchIDs(deps.Dashboard.Cities(), args, toComplete), cobra.ShellCompDirectiveNoFileComp
}

// matchIDs returns "id\tName, Country" for each city whose id starts with
// prefix and is not already in args.
func matchIDs(cities []model.City, args []string, prefix string) []string {
	used := make(map[string]bool, len(args))
	for _, a := range args {
		used[strings.ToLower(a)] = true
	}
	var out []string
	for _, c := range cities {
		if used[c.ID] || !strings.HasPrefix(c.ID, strings.ToLower(prefix)) {
			continue
		}
		out = append(out, c.ID+"\t"+c.Label())
	}
	return out
}

func init() {
	rootCmd.AddCommand(completionCmd)

	citiesAddCmd.ValidArgsFunction = completeCatalogIDs
	citiesRemoveCmd.ValidArgsFunction = completeTrackedIDs
	citiesOrderCmd.ValidArgsFunction = completeTrackedIDs
	citiesMoveCmd.ValidArgsFunction = func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) > 0 {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		return completeTrackedIDs(cmd, args, toComplete)
	}
}
