package room

import (
	"sync"
	"testing"

	"chatapp/internal/domain"
	"chatapp/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func member(conn, name string) domain.Member {
	return domain.Member{ConnectionID: conn, Username: name}
}

func TestRoom_JoinIsIdempotentByConnection(t *testing.T) {
	r := New(DefaultRoom, 10)

	assert.True(t, r.Join(member("c1", "alice")))
	assert.False(t, r.Join(member("c1", "alice")))
	assert.True(t, r.Join(member("c3", "bob")))

	assert.Equal(t, []string{"alice", "bob"}, r.Members())
	assert.Equal(t, []string{"c1", "c3"}, r.Recipients(""))
}

func TestRoom_Leave(t *testing.T) {
	r := New(DefaultRoom, 10)
	r.Join(member("c1", "alice"))
	r.Join(member("c2", "bob"))

	assert.True(t, r.Leave("c1"))
	assert.False(t, r.Leave("c1"))
	assert.False(t, r.Leave("unknown"))
	assert.Equal(t, []string{"bob"}, r.Members())
}

func TestRoom_RecipientsExclude(t *testing.T) {
	r := New(DefaultRoom, 10)
	r.Join(member("c1", "alice"))
	r.Join(member("c2", "bob"))
	r.Join(member("c3", "carol"))

	assert.Equal(t, []string{"c1", "c3"}, r.Recipients("c2"))
	assert.Equal(t, []string{"c1", "c2", "c3"}, r.Recipients("unknown"))
}

func TestRoom_Enter(t *testing.T) {
	r := New(DefaultRoom, 100)
	r.Join(member("c1", "alice"))
	for _, m := range testutil.NewTestMessages(30) {
		r.Post(m, func([]string) {})
	}

	var history []domain.Message
	var others []string
	r.Enter(member("c2", "bob"), 20, func(h []domain.Message, o []string) {
		history, others = h, o
	})

	require.Len(t, history, 20)
	assert.Equal(t, "m10", history[0].Body)
	assert.Equal(t, "m29", history[19].Body)
	assert.Equal(t, []string{"c1"}, others)
	assert.Equal(t, []string{"alice", "bob"}, r.Members())
}

func TestRoom_Exit(t *testing.T) {
	r := New(DefaultRoom, 10)
	r.Join(member("c1", "alice"))
	r.Join(member("c2", "bob"))

	var remaining []string
	r.Exit("c1", func(ids []string) { remaining = ids })

	assert.Equal(t, []string{"c2"}, remaining)
	assert.Equal(t, []string{"bob"}, r.Members())
}

func TestRoom_PostIncludesAuthor(t *testing.T) {
	r := New(DefaultRoom, 10)
	r.Join(member("c1", "alice"))
	r.Join(member("c2", "bob"))

	var recipients []string
	msg := testutil.NewTestMessage(testutil.WithAuthor("alice"))
	r.Post(msg, func(ids []string) { recipients = ids })

	assert.Equal(t, []string{"c1", "c2"}, recipients)
	assert.Equal(t, []domain.Message{msg}, r.History(10))
}

func TestRoom_Broadcast(t *testing.T) {
	r := New(DefaultRoom, 10)
	r.Join(member("c1", "alice"))
	r.Join(member("c2", "bob"))

	var recipients []string
	r.Broadcast("c1", func(ids []string) { recipients = ids })

	assert.Equal(t, []string{"c2"}, recipients)
}

// A name freed by a disconnecting connection can be taken by a new one
// before the old connection has left the room. The old exit must not evict
// the new member.
func TestRoom_RejoinBeforeStaleExitKeepsNewMember(t *testing.T) {
	r := New(DefaultRoom, 10)
	r.Enter(member("c1", "alice"), 20, func([]domain.Message, []string) {})
	r.Enter(member("c2", "alice"), 20, func([]domain.Message, []string) {})

	var remaining []string
	r.Exit("c1", func(ids []string) { remaining = ids })
	assert.Equal(t, []string{"c2"}, remaining)

	var recipients []string
	r.Post(testutil.NewTestMessage(testutil.WithAuthor("alice")), func(ids []string) { recipients = ids })
	assert.Equal(t, []string{"c2"}, recipients)
	assert.Equal(t, []string{"alice"}, r.Members())
}

// A member entering while messages are posted must see every message
// exactly once, either in its history or live.
func TestRoom_EnterDuringPostsSeesEachMessageOnce(t *testing.T) {
	r := New(DefaultRoom, 1000)
	r.Join(member("c1", "alice"))

	var mu sync.Mutex
	seen := make(map[string]int)

	messages := testutil.NewTestMessages(200)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for _, m := range messages {
			r.Post(m, func(ids []string) {
				for _, id := range ids {
					if id == "c2" {
						mu.Lock()
						seen[m.ID]++
						mu.Unlock()
					}
				}
			})
		}
	}()

	r.Enter(member("c2", "bob"), 1000, func(history []domain.Message, _ []string) {
		mu.Lock()
		for _, m := range history {
			seen[m.ID]++
		}
		mu.Unlock()
	})
	wg.Wait()

	assert.Len(t, seen, len(messages))
	for id, n := range seen {
		assert.Equal(t, 1, n, "message %s", id)
	}
}

func TestDirectory(t *testing.T) {
	d := NewDirectory(25)

	def := d.Default()
	require.NotNil(t, def)
	assert.Equal(t, DefaultRoom, def.Name())
	assert.Equal(t, 25, def.store.Capacity())

	got, ok := d.Get(DefaultRoom)
	assert.True(t, ok)
	assert.Same(t, def, got)

	_, ok = d.Get("random")
	assert.False(t, ok)

	assert.Equal(t, []string{DefaultRoom}, d.Names())
}
