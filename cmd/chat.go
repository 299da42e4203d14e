package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/lorekit/lore/internal/config"
	"github.com/lorekit/lore/internal/rag"
)

// runChat starts an interactive terminal chat against a running server.
func runChat() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	client := newChatClient(serverURL(cfg), cfg.RequestTimeout())

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	fmt.Printf("Lore %s - chat with your documents\n", AppVersion)
	fmt.Printf("Connected to %s\n", client.baseURL)
	fmt.Println("Type your question, or exit/quit to leave.")
	fmt.Println()

	var history []rag.Message
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			// EOF (Ctrl+D)
			fmt.Println("\nGoodbye!")
			return scanner.Err()
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			fmt.Println("Goodbye!")
			return nil
		}

		messages := append(append([]rag.Message{}, history...), rag.Message{
			Role:    rag.RoleUser,
			Content: input,
		})

		answer, nodes, err := client.stream(ctx, messages, func(token string) {
			fmt.Print(token)
		})
		if err != nil {
			if ctx.Err() != nil {
				fmt.Println("\nGoodbye!")
				return nil
			}
			fmt.Fprintf(os.Stderr, "\nerror: %v\n", err)
			continue
		}
		fmt.Println()
		printSources(nodes)
		fmt.Println()

		history = append(history,
			rag.Message{Role: rag.RoleUser, Content: input},
			rag.Message{Role: rag.RoleAssistant, Content: answer},
		)
	}
}

// serverURL derives the client base URL from the serve configuration.
// A wildcard bind address is dialed via loopback.
func serverURL(cfg *config.Config) string {
	host := cfg.AppHost
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return fmt.Sprintf("http://%s:%d", host, cfg.AppPort)
}

// printSources lists the citation nodes under an answer.
func printSources(nodes []rag.SourceNode) {
	if len(nodes) == 0 {
		return
	}
	fmt.Println("\nSources:")
	for _, node := range nodes {
		line := fmt.Sprintf("  [%s]", node.ID)
		if name, ok := node.Metadata["file_name"].(string); ok && name != "" {
			line += " " + name
		}
		if page, ok := node.Metadata["page"]; ok {
			line += fmt.Sprintf(" (page %v)", page)
		}
		line += fmt.Sprintf(" score=%.2f", node.Score)
		if node.URL != "" {
			line += " " + node.URL
		}
		fmt.Println(line)
	}
}
