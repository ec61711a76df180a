package cli

import (
	"github.com/spf13/cobra"

	"github.com/matzehuels/maskcloud/pkg/buildinfo"
)

// RootCommand creates the root cobra command with all subcommands registered.
//
// The commands are:
//   - generate: pack the words of a text into the dark region of a mask image
//   - serve: run the HTTP upload service
//   - cache: inspect and clear the local artifact cache
//   - config: locate, create and print the config file
//   - completion: shell completion scripts
//
// Every command logs through c.Logger; it is also attached to the command
// context so helpers can reach it with loggerFromContext.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "maskcloud packs words into the shape of a mask image",
		Long: `maskcloud generates word clouds whose words fill the dark region of a mask
image. Word sizes follow word frequency; the layout is deterministic for a
given seed.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())

	root.AddCommand(c.generateCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.configCommand())
	root.AddCommand(c.completionCommand())

	return root
}
