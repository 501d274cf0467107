package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "uniai",
		Short: "One client for many generative AI providers",
		Long: `uniai routes chat, embedding and image calls to a dozen providers
behind one canonical interface. Providers are configured from the
environment (OPENAI_KEY, GOOGLE_KEY, ...) or a .env file.`,
		SilenceUsage: true,
	}

	root.AddCommand(newServeCmd(), newChatCmd(), newModelsCmd())
	return root
}
