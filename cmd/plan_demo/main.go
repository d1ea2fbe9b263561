// README: Runs one planning pass against the configured provider and prints the validated plan.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"concierge/internal/ai"
	"concierge/internal/config"
	"concierge/internal/infra"
	"concierge/internal/planner"
)

func main() {
	message := flag.String("message", "Book me a villa in Saint-Tropez for 4 people from 2026-07-10 to 2026-07-17.", "user message to plan")
	hint := flag.String("intent", "", "optional intent hint")
	memorySummary := flag.String("memory", "", "optional memory summary")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	infra.SetupLogger(cfg.Log.Level, true)

	ctx := context.Background()
	var provider ai.Provider
	switch cfg.AI.Provider {
	case "gemini":
		p, err := ai.NewGeminiProvider(ctx, cfg.AI.GeminiKey, cfg.AI.GeminiModel)
		if err != nil {
			log.Fatal().Err(err).Msg("gemini provider")
		}
		defer p.Close()
		provider = p
	case "openai":
		p, err := ai.NewOpenAIProvider(cfg.AI.OpenAIKey, cfg.AI.OpenAIModel)
		if err != nil {
			log.Fatal().Err(err).Msg("openai provider")
		}
		provider = p
	default:
		log.Warn().Msg("CONCIERGE_AI_PROVIDER not set, the fallback plan will be printed")
	}

	p, err := planner.New(provider, time.Duration(cfg.AI.TimeoutSeconds)*time.Second)
	if err != nil {
		log.Fatal().Err(err).Msg("planner init")
	}

	fmt.Printf("User: %s\n", *message)
	plan, err := p.GeneratePlan(ctx, planner.Input{
		UserMessage:   *message,
		MemorySummary: *memorySummary,
		IntentHint:    *hint,
		DebugID:       uuid.NewString(),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("generate plan")
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(plan); err != nil {
		log.Fatal().Err(err).Msg("encode plan")
	}
}
