package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var (
	chatConversation string
)

var chatCmd = &cobra.Command{
	Use:   "chat [message]",
	Short: "Talk to the assistant",
	Long: `Starts a conversation (or resumes one with --conversation) and processes
messages through the pipeline. With a message argument, processes that single
message and exits; without one, reads messages interactively from stdin.`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVarP(&chatConversation, "conversation", "c", "", "Resume an existing conversation by id")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	p, err := buildPipeline()
	if err != nil {
		return err
	}
	defer p.Close()

	ctx := context.Background()
	conversationID := chatConversation
	if conversationID == "" {
		conv, err := p.orch.StartConversation(ctx)
		if err != nil {
			return err
		}
		conversationID = conv.ID
		fmt.Printf("Conversation %s\n", conversationID)
	}

	if len(args) > 0 {
		return processOne(ctx, p, conversationID, strings.Join(args, " "))
	}

	fmt.Println("Type your request (ctrl-d to quit):")
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		message := strings.TrimSpace(scanner.Text())
		if message == "" {
			continue
		}
		if err := processOne(ctx, p, conversationID, message); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
	}
	return scanner.Err()
}

func processOne(ctx context.Context, p *pipeline, conversationID, message string) error {
	reply, err := p.orch.ProcessMessage(ctx, conversationID, message)
	printEvents(p.events)
	if err != nil {
		return err
	}
	fmt.Println()
	fmt.Println(reply.Text)
	fmt.Printf("\n[phase: %s]\n", reply.Phase)
	return nil
}
