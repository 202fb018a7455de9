package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/alissayuxuan/OMNI-SYS/internal/interfaces/cli/agentcmd"
	"github.com/alissayuxuan/OMNI-SYS/internal/interfaces/cli/migrate"
	"github.com/alissayuxuan/OMNI-SYS/internal/interfaces/cli/remote"
	"github.com/alissayuxuan/OMNI-SYS/internal/interfaces/cli/server"
	"github.com/alissayuxuan/OMNI-SYS/internal/shared/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "omnisys",
		Short:   "OMNI-SYS - reliable agent messaging",
		Long:    `OMNI-SYS runs one broker-backed communication node per agent, with buffered retries and an HTTP bridge for sending and reading messages.`,
		Version: version.String(),
	}

	rootCmd.AddCommand(
		server.NewCommand(),
		migrate.NewCommand(),
		agentcmd.NewCommand(),
		remote.NewSendCommand(),
		remote.NewListenCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
