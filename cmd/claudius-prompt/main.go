// Command claudius-prompt sends a single prompt to the Messages API and
// exits with a status reflecting the outcome, grounded on the original
// source's claudius-prompt binary's exit-code contract: 0 when the
// request succeeds, 1 on an API/transport error, 2 on invalid usage.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/rescrv/claudius"
	"github.com/rescrv/claudius/config"
	"github.com/rescrv/claudius/wire"
)

const (
	exitOK            = 0
	exitRequestFailed = 1
	exitUsage         = 2
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("claudius-prompt", flag.ContinueOnError)
	model := fs.String("model", "claude-opus-4-6", "model to use")
	maxTokens := fs.Int("max-tokens", 1024, "max tokens to generate")
	apiKey := fs.String("api-key", "", "API key (defaults to ANTHROPIC_API_KEY)")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: claudius-prompt [flags] <prompt>")
		return exitUsage
	}
	prompt := fs.Arg(0)

	config.LoadDotEnv(".env")
	client, err := claudius.New(*apiKey)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitUsage
	}

	msg, err := client.Send(context.Background(), wire.MessageCreateParams{
		Model:     *model,
		MaxTokens: *maxTokens,
		Messages: []wire.Message{
			{Role: wire.RoleUser, Content: []wire.ContentBlock{{Kind: wire.BlockText, Text: prompt}}},
		},
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitRequestFailed
	}

	for _, block := range msg.Content {
		if block.Kind == wire.BlockText {
			fmt.Println(block.Text)
		}
	}
	return exitOK
}
