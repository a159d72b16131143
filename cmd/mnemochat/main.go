// Command mnemochat is an interactive terminal client for exercising the
// memory system end to end: each line is sent to Claude with memory
// enrichment, and slash commands poke at the memory tiers directly.
//
// It needs ANTHROPIC_API_KEY in the environment (or a .env file).
package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/joho/godotenv"

	"github.com/mnemohq/mnemo/assistant"
	"github.com/mnemohq/mnemo/memory"
	"github.com/mnemohq/mnemo/memory/embedder/mock"
	"github.com/mnemohq/mnemo/memory/semantic"
	"github.com/mnemohq/mnemo/memory/shortterm"
	chromemstore "github.com/mnemohq/mnemo/memory/store/chromem"
)

func main() {
	godotenv.Load()

	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if apiKey == "" {
		log.Fatal("[MNEMOCHAT] ANTHROPIC_API_KEY is required")
	}

	userID := os.Getenv("MNEMO_USER")
	if userID == "" {
		userID = "local"
	}

	backend, err := chromemstore.New()
	if err != nil {
		log.Fatalf("[MNEMOCHAT] vector backend: %v", err)
	}
	embedder := mock.New()
	system := memory.NewSystem(semantic.New(backend, embedder), shortterm.New(shortterm.DefaultTTL), embedder, nil)

	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	loop := assistant.New(&client, system)

	ctx := context.Background()
	fmt.Println("mnemochat: type a message, /search <query>, /remember <text>, /end, or /quit")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch {
		case line == "/quit":
			endSession(ctx, system, userID)
			return

		case line == "/end":
			endSession(ctx, system, userID)

		case strings.HasPrefix(line, "/search "):
			query := strings.TrimSpace(strings.TrimPrefix(line, "/search "))
			results, err := system.Search(ctx, query, memory.SearchOptions{})
			if err != nil {
				fmt.Printf("search failed: %v\n", err)
				continue
			}
			if len(results) == 0 {
				fmt.Println("no memories found")
				continue
			}
			for _, r := range results {
				fmt.Printf("  %.3f [%s] %s\n", r.Similarity, r.Memory.Category, r.Memory.Content)
			}

		case strings.HasPrefix(line, "/remember "):
			content := strings.TrimSpace(strings.TrimPrefix(line, "/remember "))
			id, err := system.Remember(ctx, userID, content)
			if err != nil {
				fmt.Printf("remember failed: %v\n", err)
				continue
			}
			fmt.Printf("stored %s\n", id)

		default:
			reply, err := loop.Respond(ctx, userID, line)
			if err != nil {
				fmt.Printf("error: %v\n", err)
				continue
			}
			fmt.Println(reply)
		}
	}
}

// endSession consolidates the current short-term context and reports what
// was kept.
func endSession(ctx context.Context, system *memory.System, userID string) {
	clusters, err := system.EndSession(ctx, userID)
	if err != nil {
		fmt.Printf("end session failed: %v\n", err)
		return
	}
	if len(clusters) == 0 {
		fmt.Println("session ended, nothing to consolidate")
		return
	}
	for _, c := range clusters {
		if c.Err != nil {
			fmt.Printf("  failed [%s]: %v\n", c.Category, c.Err)
			continue
		}
		fmt.Printf("  kept %s [%s]\n", c.MemoryID, c.Category)
	}
}
