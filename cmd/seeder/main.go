package main

import (
	"flag"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/mauv0809/refactored-ladder/internal/config"
	"github.com/mauv0809/refactored-ladder/internal/database"
	"github.com/mauv0809/refactored-ladder/internal/ladder"
)

// Seeds the database with sports and a handful of profiles. Sports have no
// HTTP surface, so this is how a new ladder gets created in every
// environment, local and production alike.
func main() {
	players := flag.Int("players", 4, "number of dummy profiles to create per sport")
	flag.Parse()

	log.Info("Starting database seeder...")
	cfg := config.Load()

	db, teardown, err := database.InitDB(cfg.DBName, cfg.Turso.PrimaryURL, cfg.Turso.AuthToken, cfg.MigrationsDir)
	if err != nil {
		log.Fatalf("Failed to initialize database: %s", err)
	}
	defer teardown()

	store := ladder.New(db)

	sports := []*ladder.Sport{
		{
			ID:   "squash",
			Name: "Squash",
			ScoringConfig: ladder.ScoringConfig{
				Type:         ladder.ScoringSets,
				TotalSets:    5,
				PointsPerSet: 11,
				WinBy:        2,
			},
		},
		{
			ID:   "table-tennis",
			Name: "Table Tennis",
			ScoringConfig: ladder.ScoringConfig{
				Type:         ladder.ScoringSets,
				TotalSets:    5,
				PointsPerSet: 11,
				WinBy:        2,
			},
		},
		{
			ID:   "chess",
			Name: "Chess",
			ScoringConfig: ladder.ScoringConfig{
				Type: ladder.ScoringSimple,
			},
		},
	}

	for _, sport := range sports {
		if err := store.CreateSport(sport); err != nil {
			log.Warn("Sport not created, it may already exist", "sport", sport.ID, "error", err)
			continue
		}
		log.Info("Created sport", "sport", sport.ID)

		for i := 1; i <= *players; i++ {
			p := &ladder.PlayerProfile{
				ID:      fmt.Sprintf("%s-player-%d", sport.ID, i),
				UserID:  fmt.Sprintf("U-SEED-%d", i),
				SportID: sport.ID,
				Name:    fmt.Sprintf("Seeder Player %d", i),
				Rating:  ladder.BaselineRating,
			}
			if err := store.UpsertProfile(p); err != nil {
				log.Fatalf("Failed to insert profile %s: %s", p.ID, err)
			}
		}

		profiles, err := store.GetProfiles(sport.ID)
		if err != nil {
			log.Fatalf("Failed to read back profiles: %s", err)
		}
		ranks := make(map[string]*int, len(profiles))
		for i, p := range profiles {
			rank := i + 1
			ranks[p.ID] = &rank
		}
		if err := store.SetRanks(sport.ID, ranks); err != nil {
			log.Fatalf("Failed to assign initial ranks: %s", err)
		}
		log.Info("Seeded profiles", "sport", sport.ID, "count", len(profiles))
	}

	log.Info("Seeding complete.")
}
