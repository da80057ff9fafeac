package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"telegram-campaign-bot/internal/config"
	"telegram-campaign-bot/internal/domain/model"
	"telegram-campaign-bot/internal/domain/ports/repository"
	pg "telegram-campaign-bot/internal/infra/db/postgres"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 4)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	textRepo := pg.NewTextRepo(pool)
	campaignRepo := pg.NewCampaignRepo(pool)

	// If languages already exist, do nothing.
	langs, err := textRepo.ListLanguages(ctx, repository.NoTX)
	if err != nil {
		log.Fatalf("list languages: %v", err)
	}
	if len(langs) > 0 {
		fmt.Printf("%d languages already present. No changes.\n", len(langs))
		return
	}

	for _, l := range []model.Language{
		{Code: "en", Name: "English", Flag: "🇬🇧", Active: true, Default: true, SortOrder: 1},
		{Code: "de", Name: "Deutsch", Flag: "🇩🇪", Active: true, SortOrder: 2},
		{Code: "ru", Name: "Русский", Flag: "🇷🇺", Active: true, SortOrder: 3},
	} {
		if err := textRepo.SaveLanguage(ctx, repository.NoTX, l); err != nil {
			log.Fatalf("save language %q: %v", l.Code, err)
		}
		fmt.Printf("seeded language: %s %s\n", l.Flag, l.Code)
	}

	texts := []model.BotText{
		{Key: "welcome", Language: "en", Text: "Hello {name}! Welcome aboard.", Description: "greeting after /start"},
		{Key: "welcome", Language: "de", Text: "Hallo {name}! Willkommen an Bord.", Description: "greeting after /start"},
		{Key: "welcome", Language: "ru", Text: "Привет, {name}! Добро пожаловать.", Description: "greeting after /start"},
		{Key: "choose_language", Language: "en", Text: "Please choose your language:", Description: "language picker prompt"},
	}
	for _, t := range texts {
		if err := textRepo.UpsertText(ctx, repository.NoTX, t); err != nil {
			log.Fatalf("upsert text %s/%s: %v", t.Key, t.Language, err)
		}
		fmt.Printf("seeded text: %s/%s\n", t.Key, t.Language)
	}

	demo, err := model.NewCampaign("", "welcome-week", "Welcome Week", map[string]string{
		"en": "Hi {name}, thanks for joining us this week!",
		"de": "Hallo {name}, danke, dass du diese Woche dabei bist!",
	})
	if err != nil {
		log.Fatalf("build demo campaign: %v", err)
	}
	if err := campaignRepo.Save(ctx, repository.NoTX, demo); err != nil {
		log.Fatalf("save demo campaign: %v", err)
	}
	fmt.Printf("seeded campaign: %s (id=%s)\n", demo.Code, demo.ID)

	fmt.Println("✅ Seeding complete.")
}
