package services

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/matchpulse/backend/internal/cache"
	"github.com/matchpulse/backend/internal/database"
	"github.com/matchpulse/backend/internal/feed"
	"github.com/matchpulse/backend/internal/models"
	"github.com/matchpulse/backend/internal/wspool"
)

// nullBroadcaster swallows feed traffic while counting publishes
type nullBroadcaster struct {
	mu       sync.Mutex
	channels []string
}

func (n *nullBroadcaster) Publish(channel string, data interface{}, userID string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.channels = append(n.channels, channel)
	return nil
}

func (n *nullBroadcaster) Subscribe(ctx context.Context, userID, channel string, callback wspool.MessageCallback, url string) error {
	return nil
}

func (n *nullBroadcaster) Unsubscribe(channel, userID string) {}

func (n *nullBroadcaster) publishedChannels() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.channels))
	copy(out, n.channels)
	return out
}

type testEnv struct {
	db          *gorm.DB
	cache       *cache.Service
	feeds       *feed.Manager
	broadcaster *nullBroadcaster
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := database.OpenForTests()
	require.NoError(t, err)

	cacheService := cache.New(cache.NewMemoryStore())
	require.NoError(t, cacheService.RegisterDefaults())

	b := &nullBroadcaster{}
	feeds := feed.NewManager(b, "ws://relay.test/ws")
	feeds.InitializeFeed("evt1")

	return &testEnv{db: db, cache: cacheService, feeds: feeds, broadcaster: b}
}

func (e *testEnv) createUser(t *testing.T, username string) *models.User {
	t.Helper()
	user := &models.User{
		Email:        username + "@example.com",
		Username:     username,
		DisplayName:  username,
		PasswordHash: "x",
	}
	require.NoError(t, e.db.Create(user).Error)
	return user
}
