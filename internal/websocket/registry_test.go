package websocket

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryRegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	now := time.Now()

	conn := r.Add("c1", newMockSession("c1"), now)
	assert.Same(t, conn, r.Add("c1", newMockSession("c1"), now))
	assert.False(t, conn.Registered())

	_, ok := r.LookupUser("c1")
	assert.False(t, ok)

	prev, ok := r.Register("c1", "u1", "u1@example.com", now)
	require.True(t, ok)
	assert.Empty(t, prev)

	userID, ok := r.LookupUser("c1")
	require.True(t, ok)
	assert.Equal(t, "u1", userID)
	assert.Equal(t, 1, r.RegisteredLen())

	_, ok = r.Register("missing", "u1", "", now)
	assert.False(t, ok)
}

func TestRegistryReRegisterMovesUser(t *testing.T) {
	r := NewRegistry()
	r.Add("c1", newMockSession("c1"), time.Now())

	r.Register("c1", "u1", "", time.Now())
	prev, ok := r.Register("c1", "u2", "", time.Now())
	require.True(t, ok)
	assert.Equal(t, "u1", prev)

	assert.Empty(t, r.ConnectionsOf("u1"))
	assert.Len(t, r.ConnectionsOf("u2"), 1)
	assert.Equal(t, 1, r.RegisteredLen())
}

func TestRegistryRemove(t *testing.T) {
	r := NewRegistry()
	r.Add("c1", newMockSession("c1"), time.Now())
	r.Add("c2", newMockSession("c2"), time.Now())
	r.Register("c1", "u1", "", time.Now())
	r.Register("c2", "u1", "", time.Now())

	conn, ok := r.Remove("c1")
	require.True(t, ok)
	assert.Equal(t, "c1", conn.ID)
	assert.Len(t, r.ConnectionsOf("u1"), 1)

	_, ok = r.Remove("c1")
	assert.False(t, ok)

	r.Remove("c2")
	assert.Zero(t, r.Len())
	assert.Zero(t, r.RegisteredLen())
	assert.Empty(t, r.ConnectionsOf("u1"))
}

func TestTopicIndexSubscribeIsIdempotent(t *testing.T) {
	r := NewRegistry()
	idx := NewTopicIndex(false)
	conn := r.Add("c1", newMockSession("c1"), time.Now())

	require.NoError(t, idx.Subscribe(conn, PlatformTopic("tiktok")))
	require.NoError(t, idx.Subscribe(conn, PlatformTopic("tiktok")))

	assert.Len(t, idx.MembersOf(PlatformTopic("tiktok")), 1)
	assert.Equal(t, []Topic{"platform:tiktok"}, conn.Topics())
	assert.Equal(t, 1, idx.Len())
}

func TestTopicIndexUnsubscribe(t *testing.T) {
	r := NewRegistry()
	idx := NewTopicIndex(false)
	conn := r.Add("c1", newMockSession("c1"), time.Now())

	assert.False(t, idx.Unsubscribe(conn, TopicCompetitors))

	require.NoError(t, idx.Subscribe(conn, TopicCompetitors))
	assert.True(t, idx.Unsubscribe(conn, TopicCompetitors))
	assert.False(t, idx.Unsubscribe(conn, TopicCompetitors))

	assert.False(t, conn.IsSubscribed(TopicCompetitors))
	assert.Empty(t, idx.MembersOf(TopicCompetitors))
	assert.Zero(t, idx.Len())
}

func TestTopicIndexRequiresIdentity(t *testing.T) {
	r := NewRegistry()
	idx := NewTopicIndex(true)
	conn := r.Add("c1", newMockSession("c1"), time.Now())

	err := idx.Subscribe(conn, TopicCompetitors)
	assert.ErrorIs(t, err, ErrNotRegistered)
	assert.Zero(t, idx.Len())

	r.Register("c1", "u1", "", time.Now())
	assert.NoError(t, idx.Subscribe(conn, TopicCompetitors))
}

func TestTopicIndexPurge(t *testing.T) {
	r := NewRegistry()
	idx := NewTopicIndex(false)
	a := r.Add("a", newMockSession("a"), time.Now())
	b := r.Add("b", newMockSession("b"), time.Now())

	topics := []Topic{PlatformTopic("facebook"), CampaignTopic("c1"), TopicCompetitors}
	for _, topic := range topics {
		require.NoError(t, idx.Subscribe(a, topic))
	}
	require.NoError(t, idx.Subscribe(b, TopicCompetitors))

	purged := idx.Purge(a)
	assert.ElementsMatch(t, topics, purged)
	assert.Empty(t, a.Topics())

	for _, topic := range topics {
		for _, member := range idx.MembersOf(topic) {
			assert.NotEqual(t, "a", member.ID)
		}
	}
	assert.Equal(t, map[Topic]int{TopicCompetitors: 1}, idx.Counts())
}

func TestTopicIndexMembersOfReturnsCopy(t *testing.T) {
	r := NewRegistry()
	idx := NewTopicIndex(false)
	a := r.Add("a", newMockSession("a"), time.Now())
	require.NoError(t, idx.Subscribe(a, TopicCompetitors))

	members := idx.MembersOf(TopicCompetitors)
	idx.Unsubscribe(a, TopicCompetitors)

	assert.Len(t, members, 1)
	assert.Empty(t, idx.MembersOf("platform:unknown"))
}
