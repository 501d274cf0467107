package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/davidbz/uniai/internal/domain"
)

type chatFlags struct {
	provider    string
	model       string
	stream      bool
	temperature float64
	top         float64
	maxLength   int
}

func newChatCmd() *cobra.Command {
	var flags chatFlags

	cmd := &cobra.Command{
		Use:   "chat [prompt]",
		Short: "Send one prompt and print the answer",
		Long: `Send one prompt and print the answer. When no prompt argument is
given and stdin is not a terminal, the prompt is read from stdin.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt, err := readPrompt(args, cmd.InOrStdin())
			if err != nil {
				return err
			}

			opt := domain.ChatOption{
				Provider: flags.provider,
				Model:    flags.model,
				Stream:   flags.stream,
			}
			if cmd.Flags().Changed("temperature") {
				opt.Temperature = &flags.temperature
			}
			if cmd.Flags().Changed("top") {
				opt.TopP = &flags.top
			}
			if cmd.Flags().Changed("max-length") {
				opt.MaxLength = &flags.maxLength
			}

			var messages []domain.ChatMessage
			if prompt != "" {
				messages = []domain.ChatMessage{{Role: domain.RoleUser, Content: prompt}}
			}

			return buildContainer().Invoke(func(gateway *domain.GatewayService) error {
				return runChat(cmd, gateway, messages, opt)
			})
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.provider, "provider", "", "provider tag (openai, google, deepseek, ...)")
	f.StringVar(&flags.model, "model", "", "model id, defaults to the provider's default chat model")
	f.BoolVar(&flags.stream, "stream", false, "print chunks as they arrive")
	f.Float64Var(&flags.temperature, "temperature", 0, "sampling temperature")
	f.Float64Var(&flags.top, "top", 0, "nucleus sampling top-p")
	f.IntVar(&flags.maxLength, "max-length", 0, "maximum completion tokens")

	return cmd
}

func runChat(cmd *cobra.Command, gateway *domain.GatewayService, messages []domain.ChatMessage, opt domain.ChatOption) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if !opt.Stream {
		result, err := gateway.Chat(ctx, messages, opt)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, result.Content)
		fmt.Fprintf(cmd.ErrOrStderr(), "[%s] tokens: %d prompt, %d completion, %d total\n",
			result.Model, result.PromptTokens, result.CompletionTokens, result.TotalTokens)
		return nil
	}

	stream, err := gateway.ChatStream(ctx, messages, opt)
	if err != nil {
		return err
	}
	for chunk, err := range stream.Iter() {
		if err != nil {
			fmt.Fprintln(out)
			return err
		}
		fmt.Fprint(out, chunk.Content)
	}
	fmt.Fprintln(out)
	return nil
}

func readPrompt(args []string, in io.Reader) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return "", nil
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return "", fmt.Errorf("read prompt from stdin: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}
