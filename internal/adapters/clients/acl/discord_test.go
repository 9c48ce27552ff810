package acl

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/quotebook/internal/adapters/clients"
	"github.com/jsamuelsen/quotebook/internal/domain"
)

const (
	testBotID   = "900"
	testChannel = "111"
	testAnnounc = "222"
)

// fakeDiscord records requests and serves canned Discord API responses.
type fakeDiscord struct {
	mu       sync.Mutex
	requests []string
	bodies   []string
	auth     []string
	pins     string
	editCode int
}

func (f *fakeDiscord) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	f.mu.Lock()
	f.requests = append(f.requests, r.Method+" "+r.URL.Path)
	f.bodies = append(f.bodies, string(body))
	f.auth = append(f.auth, r.Header.Get("Authorization"))
	pins := f.pins
	editCode := f.editCode
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/users/@me":
		_, _ = w.Write([]byte(`{"id":"` + testBotID + `","username":"quotebot"}`))

	case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/pins"):
		if pins == "" {
			pins = "[]"
		}
		_, _ = w.Write([]byte(pins))

	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/messages"):
		channel := strings.Split(r.URL.Path, "/")[2]
		_, _ = w.Write([]byte(`{"id":"555","channel_id":"` + channel + `","content":"posted","pinned":false}`))

	case r.Method == http.MethodPut && strings.Contains(r.URL.Path, "/pins/"):
		w.WriteHeader(http.StatusNoContent)

	case r.Method == http.MethodPatch:
		if editCode != 0 {
			w.WriteHeader(editCode)
			_, _ = w.Write([]byte(`{"code":10008,"message":"Unknown Message"}`))

			return
		}
		_, _ = w.Write([]byte(`{"id":"555","content":"edited"}`))

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeDiscord) seen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]string(nil), f.requests...)
}

func (f *fakeDiscord) lastBody() string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.bodies[len(f.bodies)-1]
}

func newTestPublisher(t *testing.T, fake *fakeDiscord, announce string) *DiscordPublisher {
	t.Helper()

	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	cfg := testConfig(server.URL)
	cfg.ServiceName = "discord"
	cfg.AuthFunc = func(r *http.Request) {
		r.Header.Set("Authorization", "Bot test-token")
	}

	client, err := clients.New(cfg)
	require.NoError(t, err)

	return NewDiscordPublisher(DiscordConfig{
		Client:               client,
		LeaderboardChannelID: testChannel,
		AnnounceChannelID:    announce,
	})
}

func TestNewDiscordPublisher_PanicsWithoutClient(t *testing.T) {
	assert.Panics(t, func() {
		NewDiscordPublisher(DiscordConfig{})
	})
}

func TestDiscordPublisher_FindOwned_PrefersMarkedPin(t *testing.T) {
	fake := &fakeDiscord{pins: `[
		{"id":"1","content":"hello","author":{"id":"` + testBotID + `"},"pinned":true},
		{"id":"2","content":"board\n` + domain.LeaderboardMarker + `","author":{"id":"` + testBotID + `"},"pinned":true}
	]`}
	pub := newTestPublisher(t, fake, "")

	msg, found, err := pub.FindOwned(context.Background())

	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "2", msg.ID)
	assert.True(t, msg.Pinned)
	assert.Contains(t, fake.seen(), "GET /channels/"+testChannel+"/pins")
}

func TestDiscordPublisher_FindOwned_AdoptsBotPin(t *testing.T) {
	fake := &fakeDiscord{pins: `[
		{"id":"1","content":"` + domain.LeaderboardMarker + `","author":{"id":"42"},"pinned":true},
		{"id":"3","content":"old board","author":{"id":"` + testBotID + `"},"pinned":true}
	]`}
	pub := newTestPublisher(t, fake, "")

	msg, found, err := pub.FindOwned(context.Background())

	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "3", msg.ID, "pins by other authors are ignored even when marked")
}

func TestDiscordPublisher_FindOwned_NoneFound(t *testing.T) {
	fake := &fakeDiscord{pins: `[{"id":"1","content":"x","author":{"id":"42"},"pinned":true}]`}
	pub := newTestPublisher(t, fake, "")

	_, found, err := pub.FindOwned(context.Background())

	require.NoError(t, err)
	assert.False(t, found)
}

func TestDiscordPublisher_FindOwned_CachesBotIdentity(t *testing.T) {
	fake := &fakeDiscord{}
	pub := newTestPublisher(t, fake, "")

	_, _, err := pub.FindOwned(context.Background())
	require.NoError(t, err)
	_, _, err = pub.FindOwned(context.Background())
	require.NoError(t, err)

	selfCalls := 0
	for _, r := range fake.seen() {
		if r == "GET /users/@me" {
			selfCalls++
		}
	}
	assert.Equal(t, 1, selfCalls)
}

func TestDiscordPublisher_Create(t *testing.T) {
	fake := &fakeDiscord{}
	pub := newTestPublisher(t, fake, "")

	msg, err := pub.Create(context.Background(), "board")

	require.NoError(t, err)
	assert.Equal(t, "555", msg.ID)
	assert.Equal(t, []string{"POST /channels/" + testChannel + "/messages"}, fake.seen())
	assert.JSONEq(t, `{"content":"board"}`, fake.lastBody())
	assert.Equal(t, "Bot test-token", fake.auth[0])
}

func TestDiscordPublisher_Pin(t *testing.T) {
	fake := &fakeDiscord{}
	pub := newTestPublisher(t, fake, "")

	require.NoError(t, pub.Pin(context.Background(), "555"))
	assert.Equal(t, []string{"PUT /channels/" + testChannel + "/pins/555"}, fake.seen())
}

func TestDiscordPublisher_Pin_RequiresID(t *testing.T) {
	pub := newTestPublisher(t, &fakeDiscord{}, "")

	err := pub.Pin(context.Background(), "")

	assert.True(t, domain.IsValidation(err))
}

func TestDiscordPublisher_Edit(t *testing.T) {
	fake := &fakeDiscord{}
	pub := newTestPublisher(t, fake, "")

	require.NoError(t, pub.Edit(context.Background(), "555", "new board"))
	assert.Equal(t, []string{"PATCH /channels/" + testChannel + "/messages/555"}, fake.seen())
	assert.JSONEq(t, `{"content":"new board"}`, fake.lastBody())
}

func TestDiscordPublisher_Edit_DeletedMessage(t *testing.T) {
	fake := &fakeDiscord{editCode: http.StatusNotFound}
	pub := newTestPublisher(t, fake, "")

	err := pub.Edit(context.Background(), "555", "new board")

	require.Error(t, err)
	assert.True(t, domain.IsNotFound(err))
}

func TestDiscordPublisher_Announce(t *testing.T) {
	fake := &fakeDiscord{}
	pub := newTestPublisher(t, fake, testAnnounc)

	require.NoError(t, pub.Announce(context.Background(), "quote of the week"))
	assert.Equal(t, []string{"POST /channels/" + testAnnounc + "/messages"}, fake.seen())
}

func TestDiscordPublisher_Announce_NoChannel(t *testing.T) {
	fake := &fakeDiscord{}
	pub := newTestPublisher(t, fake, "")

	err := pub.Announce(context.Background(), "quote of the week")

	require.Error(t, err)
	assert.True(t, domain.IsUnavailable(err))
	assert.Empty(t, fake.seen())
}

func TestDiscordPublisher_Check(t *testing.T) {
	fake := &fakeDiscord{}
	pub := newTestPublisher(t, fake, "")

	require.NoError(t, pub.Check(context.Background()))
	assert.Equal(t, "discord", pub.Name())
	assert.False(t, pub.Critical())
}

func TestDiscordPublisher_Check_Unreachable(t *testing.T) {
	client, err := clients.New(testConfig("http://127.0.0.1:1"))
	require.NoError(t, err)

	pub := NewDiscordPublisher(DiscordConfig{Client: client, LeaderboardChannelID: testChannel})

	err = pub.Check(context.Background())

	require.Error(t, err)
	assert.True(t, domain.IsUnavailable(err))
}
