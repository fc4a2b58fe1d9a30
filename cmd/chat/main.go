// Command chat runs the virtual secretary as a terminal conversation, using
// the in-memory calendar. Useful for trying prompts without a server.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/lmvieira/secretaria-virtual/internal/clinic"
	appconfig "github.com/lmvieira/secretaria-virtual/internal/config"
	"github.com/lmvieira/secretaria-virtual/internal/conversation"
	"github.com/lmvieira/secretaria-virtual/internal/schedule"
	"github.com/lmvieira/secretaria-virtual/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	if cfg.GeminiAPIKey == "" {
		fmt.Fprintln(os.Stderr, "GEMINI_API_KEY is required")
		os.Exit(1)
	}

	ctx := context.Background()
	llm, err := conversation.NewGeminiLLMClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to initialize Gemini client:", err)
		os.Exit(1)
	}
	defer llm.Close()

	doctors := clinic.DefaultDoctors()
	svc := conversation.NewService(
		llm,
		schedule.NewService(logger),
		conversation.NewMemoryHistoryStore(),
		conversation.SecretaryPrompt(doctors),
		nil,
		logger,
	)

	sessionID := uuid.NewString()
	fmt.Println(svc.Greeting())
	fmt.Println("(digite 'sair' para encerrar)")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if strings.EqualFold(text, "sair") {
			fmt.Println("Até logo!")
			break
		}

		reply, err := svc.ProcessMessage(ctx, sessionID, text)
		if err != nil {
			fmt.Fprintln(os.Stderr, "erro:", err)
			continue
		}
		fmt.Println(reply)
	}
}
