// Package seed populates the database with development fixtures.
package seed

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/matchpulse/backend/internal/logger"
	"github.com/matchpulse/backend/internal/models"
)

// Seeder handles database seeding operations
type Seeder struct {
	db *gorm.DB
}

// NewSeeder creates a new seeder instance
func NewSeeder(db *gorm.DB) *Seeder {
	_ = gofakeit.Seed(time.Now().UnixNano())
	return &Seeder{db: db}
}

// devEventIDs are the events dev fixtures attach to
var devEventIDs = []string{"evt-derby-final", "evt-cup-semi", "evt-allstar-night"}

// SeedDev seeds the development database with realistic data
func (s *Seeder) SeedDev() error {
	log := func(msg string) {
		logger.Log.Info(msg)
	}

	log("Creating users...")
	users, err := s.seedUsers(50)
	if err != nil {
		return fmt.Errorf("failed to seed users: %w", err)
	}

	log("Creating achievement catalog...")
	if err := s.seedAchievements(); err != nil {
		return fmt.Errorf("failed to seed achievements: %w", err)
	}

	log("Creating polls...")
	if err := s.seedPolls(users, 15); err != nil {
		return fmt.Errorf("failed to seed polls: %w", err)
	}

	log("Creating questions...")
	if err := s.seedQuestions(users, 40); err != nil {
		return fmt.Errorf("failed to seed questions: %w", err)
	}

	log("Creating discussion threads...")
	if err := s.seedThreads(users, 10); err != nil {
		return fmt.Errorf("failed to seed threads: %w", err)
	}

	log("Creating mentorship profiles...")
	if err := s.seedMentorProfiles(users); err != nil {
		return fmt.Errorf("failed to seed mentorship profiles: %w", err)
	}

	log("Creating leaderboard entries...")
	if err := s.seedLeaderboard(users); err != nil {
		return fmt.Errorf("failed to seed leaderboard: %w", err)
	}

	logger.Log.Info("✅ Development seed complete", zap.Int("users", len(users)))
	return nil
}

// SeedTest seeds the test database with minimal, predictable data
func (s *Seeder) SeedTest() error {
	hash, err := bcrypt.GenerateFromPassword([]byte("testpass123"), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	fixtures := []models.User{
		{Email: "organizer@matchpulse.test", Username: "organizer", DisplayName: "Test Organizer", Role: "organizer", PasswordHash: string(hash)},
		{Email: "attendee@matchpulse.test", Username: "attendee", DisplayName: "Test Attendee", Role: "attendee", PasswordHash: string(hash)},
	}
	for i := range fixtures {
		if err := s.db.Where("email = ?", fixtures[i].Email).FirstOrCreate(&fixtures[i]).Error; err != nil {
			return fmt.Errorf("failed to create test user %s: %w", fixtures[i].Email, err)
		}
	}

	return s.seedAchievements()
}

// Clean removes seeded rows. Destructive, development only.
func (s *Seeder) Clean() error {
	tables := []interface{}{
		&models.PollVote{}, &models.PollOption{}, &models.Poll{},
		&models.Answer{}, &models.Question{},
		&models.DiscussionMessage{}, &models.DiscussionThread{},
		&models.MentorMatch{}, &models.MentorProfile{},
		&models.Reaction{}, &models.UserAchievement{}, &models.Achievement{},
		&models.LeaderboardEntry{}, &models.User{},
	}
	for _, t := range tables {
		if err := s.db.Session(&gorm.Session{AllowGlobalUpdate: true}).Unscoped().Delete(t).Error; err != nil {
			return err
		}
	}
	logger.Log.Info("🧹 Seed data removed")
	return nil
}

func (s *Seeder) seedUsers(count int) ([]models.User, error) {
	// One known login so developers can poke the API without registering
	hash, err := bcrypt.GenerateFromPassword([]byte("devpass123"), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	users := []models.User{
		{Email: "dev@matchpulse.local", Username: "dev", DisplayName: "Dev Organizer", Role: "organizer", PasswordHash: string(hash)},
	}

	for i := 0; i < count; i++ {
		person := gofakeit.Person()
		users = append(users, models.User{
			Email:        gofakeit.Email(),
			Username:     fmt.Sprintf("%s%d", gofakeit.Username(), i),
			DisplayName:  person.FirstName + " " + person.LastName,
			AvatarURL:    gofakeit.ImageURL(128, 128),
			Role:         "attendee",
			PasswordHash: string(hash),
		})
	}

	for i := range users {
		if err := s.db.Where("email = ?", users[i].Email).FirstOrCreate(&users[i]).Error; err != nil {
			return nil, err
		}
	}
	return users, nil
}

func (s *Seeder) seedAchievements() error {
	catalog := []models.Achievement{
		{Slug: "first-cheer", Name: "First Cheer", Description: "Posted your first reaction", Points: 5},
		{Slug: "poll-pioneer", Name: "Poll Pioneer", Description: "Created your first poll", Points: 10},
		{Slug: "curious-mind", Name: "Curious Mind", Description: "Asked five questions", Points: 15},
		{Slug: "crowd-favorite", Name: "Crowd Favorite", Description: "A question of yours reached 25 upvotes", Points: 25},
		{Slug: "conversation-starter", Name: "Conversation Starter", Description: "Opened a discussion thread", Points: 10},
		{Slug: "mentor-matched", Name: "Mentor Matched", Description: "Accepted a mentorship pairing", Points: 20},
		{Slug: "super-fan", Name: "Super Fan", Description: "Active in three different events", Points: 50},
	}
	for i := range catalog {
		if err := s.db.Where("slug = ?", catalog[i].Slug).FirstOrCreate(&catalog[i]).Error; err != nil {
			return err
		}
	}
	return nil
}

func (s *Seeder) seedPolls(users []models.User, count int) error {
	prompts := []string{
		"Who takes MVP tonight?",
		"Best goal of the first half?",
		"Will this go to overtime?",
		"Which substitution changes the game?",
		"Score prediction for the final?",
	}

	for i := 0; i < count; i++ {
		creator := users[rand.Intn(len(users))]
		poll := models.Poll{
			EventID:   devEventIDs[rand.Intn(len(devEventIDs))],
			CreatorID: creator.ID,
			Question:  prompts[rand.Intn(len(prompts))],
			ClosesAt:  time.Now().UTC().Add(time.Duration(10+rand.Intn(50)) * time.Minute),
		}
		if err := s.db.Create(&poll).Error; err != nil {
			return err
		}

		optionCount := 2 + rand.Intn(3)
		for pos := 0; pos < optionCount; pos++ {
			option := models.PollOption{
				PollID:   poll.ID,
				Label:    gofakeit.HipsterWord(),
				Position: pos,
			}
			if err := s.db.Create(&option).Error; err != nil {
				return err
			}

			// Sprinkle votes across options
			for v := 0; v < rand.Intn(8); v++ {
				voter := users[rand.Intn(len(users))]
				vote := models.PollVote{PollID: poll.ID, UserID: voter.ID, OptionID: option.ID}
				// Unique index on (poll, user) makes duplicate voters a no-op
				s.db.Where("poll_id = ? AND user_id = ?", poll.ID, voter.ID).FirstOrCreate(&vote)
			}
		}
	}
	return nil
}

func (s *Seeder) seedQuestions(users []models.User, count int) error {
	for i := 0; i < count; i++ {
		asker := users[rand.Intn(len(users))]
		question := models.Question{
			EventID: devEventIDs[rand.Intn(len(devEventIDs))],
			UserID:  asker.ID,
			Body:    gofakeit.Question(),
			Upvotes: rand.Intn(30),
		}
		if err := s.db.Create(&question).Error; err != nil {
			return err
		}

		if rand.Intn(2) == 0 {
			answer := models.Answer{
				QuestionID: question.ID,
				UserID:     users[rand.Intn(len(users))].ID,
				Body:       gofakeit.Sentence(12),
				IsOfficial: rand.Intn(4) == 0,
			}
			if err := s.db.Create(&answer).Error; err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Seeder) seedThreads(users []models.User, count int) error {
	for i := 0; i < count; i++ {
		creator := users[rand.Intn(len(users))]
		thread := models.DiscussionThread{
			EventID:   devEventIDs[rand.Intn(len(devEventIDs))],
			CreatorID: creator.ID,
			Title:     gofakeit.Phrase(),
			IsPinned:  i == 0,
		}
		if err := s.db.Create(&thread).Error; err != nil {
			return err
		}

		for m := 0; m < 3+rand.Intn(8); m++ {
			message := models.DiscussionMessage{
				ThreadID: thread.ID,
				UserID:   users[rand.Intn(len(users))].ID,
				Body:     gofakeit.Sentence(8 + rand.Intn(10)),
			}
			if err := s.db.Create(&message).Error; err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Seeder) seedMentorProfiles(users []models.User) error {
	skillPool := []string{"tactics", "statistics", "broadcasting", "coaching", "refereeing", "scouting", "fan-engagement"}

	for i, u := range users {
		if i%3 != 0 {
			continue
		}
		skills := models.Skills{}
		for _, skill := range skillPool {
			if rand.Intn(3) == 0 {
				skills = append(skills, skill)
			}
		}
		if len(skills) == 0 {
			skills = models.Skills{skillPool[rand.Intn(len(skillPool))]}
		}

		profile := models.MentorProfile{
			UserID:       u.ID,
			Bio:          gofakeit.Sentence(14),
			Skills:       skills,
			IsMentor:     i%6 == 0,
			SeekingMatch: true,
		}
		if err := s.db.Where("user_id = ?", u.ID).FirstOrCreate(&profile).Error; err != nil {
			return err
		}
	}
	return nil
}

func (s *Seeder) seedLeaderboard(users []models.User) error {
	for _, eventID := range devEventIDs {
		for i, u := range users {
			if i%2 != 0 {
				continue
			}
			entry := models.LeaderboardEntry{
				EventID: eventID,
				UserID:  u.ID,
				Score:   rand.Intn(500),
			}
			if err := s.db.Where("event_id = ? AND user_id = ?", eventID, u.ID).FirstOrCreate(&entry).Error; err != nil {
				return err
			}
		}
	}
	return nil
}
