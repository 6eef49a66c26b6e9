// Command chatcli talks to the booking assistant from a terminal. Everything
// is in memory; set GEMINI_API_KEY to exercise the language model classifier.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/edgareichner01-sys/bot-rdv/internal/app/bootstrap"
	appconfig "github.com/edgareichner01-sys/bot-rdv/internal/config"
	"github.com/edgareichner01-sys/bot-rdv/internal/conversation"
	"github.com/edgareichner01-sys/bot-rdv/pkg/logging"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := appconfig.Load()
	tenantID := flag.String("tenant", cfg.DefaultTenantID, "tenant to chat with")
	userID := flag.String("user", "cli-user", "visitor identifier")
	flag.Parse()

	logger := logging.NewWithWriter(cfg.LogLevel, os.Stderr, "text")
	ctx := context.Background()

	llm, closeLLM, err := bootstrap.BuildLLMClient(ctx, cfg, nil, logger)
	if err != nil {
		log.Fatalf("language model: %v", err)
	}
	defer closeLLM()

	engine, err := bootstrap.BuildEngine(cfg, bootstrap.EngineParts{
		Tenants:      bootstrap.BuildTenantStore(nil, nil),
		Sessions:     bootstrap.BuildSessionStore(nil, cfg, nil),
		Appointments: bootstrap.BuildAppointmentService(nil, nil),
		LLM:          llm,
		Notifier:     bootstrap.BuildBookingNotifier(cfg, nil, logger),
	}, logger)
	if err != nil {
		log.Fatalf("engine: %v", err)
	}

	fmt.Printf("Chatting with %s as %s. Type /quit to exit.\n", *tenantID, *userID)
	if err := chat(ctx, engine, *tenantID, *userID, os.Stdin, os.Stdout); err != nil {
		log.Fatal(err)
	}
}

type messageHandler interface {
	HandleMessage(ctx context.Context, req conversation.MessageRequest) (conversation.Reply, error)
}

// chat runs the read-reply loop until EOF or /quit. History is kept locally
// and sent with every message, as the web widget does.
func chat(ctx context.Context, engine messageHandler, tenantID, userID string, in io.Reader, out io.Writer) error {
	var history []conversation.ChatMessage
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/quit" {
			return nil
		}

		reply, err := engine.HandleMessage(ctx, conversation.MessageRequest{
			TenantID: tenantID,
			UserID:   userID,
			Message:  line,
			History:  history,
		})
		if err != nil {
			fmt.Fprintf(out, "(error: %v)\n", err)
		}
		fmt.Fprintf(out, "%s [%s]\n", reply.Text, reply.Status)

		history = append(history,
			conversation.ChatMessage{Role: conversation.ChatRoleUser, Content: line},
			conversation.ChatMessage{Role: conversation.ChatRoleAssistant, Content: reply.Text},
		)
		if len(history) > 16 {
			history = history[len(history)-16:]
		}
	}
}
