package cmd

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/genea-app/genea/internal/build"
)

// NewVersionCommand returns the command to get the genea version
func NewVersionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Return the Genea version",
		Long:  "Return the Genea version.",
		RunE:  version,
		Args:  cobra.NoArgs,
	}

	return cmd
}

// print out the built version
func version(_ *cobra.Command, _ []string) error {
	log.Printf("Genea Version %s Date %s commit id %s ", build.Version, build.Date, build.Commit)
	return nil
}
