// Command main runs the database seeder for Daily Shot.
package main

import (
	"context"
	"flag"
	"log"

	"dailyshot/internal/config"
	"dailyshot/internal/contest"
	"dailyshot/internal/database"
	"dailyshot/internal/repository"
	"dailyshot/internal/seed"
	"dailyshot/internal/service"
)

func main() {
	defaults := seed.DefaultOptions()
	numUsers := flag.Int("users", defaults.Users, "Number of users to create")
	numDays := flag.Int("days", defaults.Days, "Number of contest days to fill, ending today")
	postRate := flag.Float64("post-rate", defaults.PostRate, "Chance that a user enters on a given day")
	maxVotes := flag.Int("max-votes", defaults.MaxVotesPerPost, "Maximum votes per post")
	seedValue := flag.Int64("seed", 0, "Random seed for reproducible data (0 = random)")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	resolve := flag.Bool("resolve", true, "Crown a winner for every finished day")
	flag.Parse()

	log.Println("Database Seeder")
	log.Printf("Target: %d users over %d days, clean=%v\n", *numUsers, *numDays, *shouldClean)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	loc, err := cfg.Location()
	if err != nil {
		log.Fatalf("Failed to load contest timezone: %v", err)
	}
	cal := contest.NewCalendar(loc)
	s := seed.NewSeeder(db, cal, seed.Options{
		Users:           *numUsers,
		Days:            *numDays,
		PostRate:        *postRate,
		MaxVotesPerPost: *maxVotes,
		Seed:            *seedValue,
	})

	ctx := context.Background()
	if *shouldClean {
		if err := s.ClearAll(ctx); err != nil {
			log.Fatalf("Cleanup failed: %v", err)
		}
	}

	var resolver seed.Resolver
	if *resolve {
		resolver = service.NewWinnerService(repository.NewPostRepository(db), cal, service.PolicyFromConfig(cfg), nil)
	}

	summary, err := s.Run(ctx, resolver)
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}
	log.Printf("Created %d users, %d posts, %d votes; resolved %d day(s)",
		summary.Users, summary.Posts, summary.Votes, summary.Resolved)
	log.Printf("Every seeded account uses the password %q", seed.DefaultPassword)
}
