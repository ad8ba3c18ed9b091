package journal_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/jrsteele09/go-daybook/cache"
	"github.com/jrsteele09/go-daybook/gateway"
	apperrors "github.com/jrsteele09/go-daybook/internal/errors"
	"github.com/jrsteele09/go-daybook/journal"
	"github.com/jrsteele09/go-daybook/token"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type fakeJournalAPI struct {
	mu         sync.Mutex
	feed       map[int][]journal.Post
	totalPages int
	queries    []string

	likeGated   atomic.Bool
	likeGate    chan struct{}
	likeStatus  atomic.Int32
	likeCalls   atomic.Int32
	lastMethod  atomic.Value
	taskBody    atomic.Value
	readCalls   atomic.Int32
	followCalls atomic.Int32
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (f *fakeJournalAPI) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/posts/feed", func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		f.mu.Lock()
		f.queries = append(f.queries, r.URL.RawQuery)
		items := f.feed[page]
		total := f.totalPages
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{
			"data": items, "page": page, "totalPages": total, "totalCount": 4,
		})
	})
	mux.HandleFunc("GET /api/posts/{id}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, journal.Post{ID: r.PathValue("id"), LikeCount: 10})
	})
	like := func(w http.ResponseWriter, r *http.Request) {
		f.likeCalls.Add(1)
		f.lastMethod.Store(r.Method)
		if f.likeGated.Load() {
			<-f.likeGate
		}
		status := int(f.likeStatus.Load())
		if status == 0 {
			status = http.StatusNoContent
		}
		if status >= 400 {
			writeJSON(w, status, map[string]string{"error": "like failed"})
			return
		}
		w.WriteHeader(status)
	}
	mux.HandleFunc("POST /api/posts/{id}/like", like)
	mux.HandleFunc("DELETE /api/posts/{id}/like", like)
	mux.HandleFunc("PATCH /api/tasks/{id}", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]bool
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.taskBody.Store(body)
		writeJSON(w, http.StatusOK, journal.Task{ID: r.PathValue("id"), Title: "server title", Completed: body["completed"]})
	})
	mux.HandleFunc("PATCH /api/notifications/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.readCalls.Add(1)
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/api/users/{id}/follow", func(w http.ResponseWriter, r *http.Request) {
		f.followCalls.Add(1)
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "cannot follow yourself"})
	})
	mux.HandleFunc("GET /api/notifications", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"data": []journal.Notification{{ID: "n1"}, {ID: "n2"}},
			"page": 1, "totalPages": 1, "totalCount": 2,
		})
	})
	mux.HandleFunc("GET /api/users/{id}/followers", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"data": []journal.Profile{{ID: "u2", FollowerCount: 5}},
			"page": 1, "totalPages": 1, "totalCount": 1,
		})
	})
	mux.HandleFunc("GET /api/tasks", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"data": []journal.Task{{ID: "t1", Title: "write tests"}},
			"page": 1, "totalPages": 1, "totalCount": 1,
		})
	})
	return mux
}

type testFixture struct {
	api    *fakeJournalAPI
	client *journal.Client
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()
	api := &fakeJournalAPI{
		feed: map[int][]journal.Post{
			1: {{ID: "1", LikeCount: 10}, {ID: "2"}, {ID: "3"}},
			2: {{ID: "3", LikeCount: 7}, {ID: "4"}},
		},
		totalPages: 2,
		likeGate:   make(chan struct{}),
	}
	server := httptest.NewServer(api.handler())
	t.Cleanup(server.Close)

	tokens := token.NewStore()
	tokens.Set(&oauth2.Token{AccessToken: "access", TokenType: "Bearer"})
	gw, err := gateway.New(server.URL, gateway.WithTokenStore(tokens))
	require.NoError(t, err)

	return &testFixture{api: api, client: journal.NewClient(gw, 3)}
}

func postIDs(posts []journal.Post) []string {
	out := make([]string, len(posts))
	for i, p := range posts {
		out[i] = p.ID
	}
	return out
}

func TestClient_FeedPagesAndDeduplicates(t *testing.T) {
	f := setupTestFixture(t)
	feed := f.client.Feed()

	require.NoError(t, feed.LoadMore(context.Background()))
	require.True(t, feed.State().HasMore)
	require.NoError(t, feed.LoadMore(context.Background()))
	require.NoError(t, feed.LoadMore(context.Background()))

	state := feed.State()
	require.Equal(t, []string{"1", "2", "3", "4"}, postIDs(state.Items))
	require.Equal(t, 7, state.Items[2].LikeCount)
	require.False(t, state.HasMore)
	require.Equal(t, []string{"maxPageSize=3&page=1", "maxPageSize=3&page=2"}, f.api.queries)
}

func TestClient_ToggleLikeAppliesImmediately(t *testing.T) {
	f := setupTestFixture(t)
	f.api.likeGated.Store(true)
	feed := f.client.Feed()
	require.NoError(t, feed.LoadMore(context.Background()))
	detail, err := f.client.Post(context.Background(), "1")
	require.NoError(t, err)

	done := make(chan error)
	go func() { done <- f.client.ToggleLike(context.Background(), "1", feed, detail) }()
	require.Eventually(t, func() bool { return f.api.likeCalls.Load() == 1 }, timeout, tick)

	p, _ := feed.Lookup("1")
	require.True(t, p.Liked)
	require.Equal(t, 11, p.LikeCount)
	p, _ = detail.Lookup("1")
	require.True(t, p.Liked)
	require.Equal(t, 11, p.LikeCount)

	close(f.api.likeGate)
	require.NoError(t, <-done)
	require.Equal(t, http.MethodPost, f.api.lastMethod.Load())
	p, _ = feed.Lookup("1")
	require.Equal(t, 11, p.LikeCount)
}

func TestClient_ToggleLikeRollsBack(t *testing.T) {
	f := setupTestFixture(t)
	f.api.likeStatus.Store(http.StatusInternalServerError)
	feed := f.client.Feed()
	require.NoError(t, feed.LoadMore(context.Background()))

	err := f.client.ToggleLike(context.Background(), "1", feed)
	require.ErrorIs(t, err, apperrors.ErrServer)

	p, _ := feed.Lookup("1")
	require.False(t, p.Liked)
	require.Equal(t, 10, p.LikeCount)
}

func TestClient_ToggleLikeFailureKeepsReloadedFeed(t *testing.T) {
	f := setupTestFixture(t)
	f.api.likeGated.Store(true)
	f.api.likeStatus.Store(http.StatusInternalServerError)
	feed := f.client.Feed()
	require.NoError(t, feed.LoadMore(context.Background()))

	done := make(chan error)
	go func() { done <- f.client.ToggleLike(context.Background(), "1", feed) }()
	require.Eventually(t, func() bool { return f.api.likeCalls.Load() == 1 }, timeout, tick)

	// pull-to-refresh while the like is still on the wire
	f.api.mu.Lock()
	f.api.feed[1] = []journal.Post{{ID: "1", Liked: true, LikeCount: 57}, {ID: "2"}, {ID: "3"}}
	f.api.mu.Unlock()
	require.NoError(t, feed.Reload(context.Background()))

	close(f.api.likeGate)
	require.ErrorIs(t, <-done, apperrors.ErrServer)

	p, ok := feed.Lookup("1")
	require.True(t, ok)
	require.True(t, p.Liked)
	require.Equal(t, 57, p.LikeCount)
}

func TestClient_ToggleLikeRequiresCachedPost(t *testing.T) {
	f := setupTestFixture(t)
	feed := f.client.Feed()

	require.Error(t, f.client.ToggleLike(context.Background(), "1", feed))
	require.Equal(t, int32(0), f.api.likeCalls.Load())
}

func TestClient_SetTaskCompletedReconciles(t *testing.T) {
	f := setupTestFixture(t)
	tasks := f.client.Tasks()
	require.NoError(t, tasks.LoadMore(context.Background()))

	require.NoError(t, f.client.SetTaskCompleted(context.Background(), "t1", true, tasks))
	task, ok := tasks.Lookup("t1")
	require.True(t, ok)
	require.True(t, task.Completed)
	require.Equal(t, "server title", task.Title)
	require.Equal(t, map[string]bool{"completed": true}, f.api.taskBody.Load())
}

func TestClient_MarkNotificationRead(t *testing.T) {
	f := setupTestFixture(t)
	notifications := f.client.Notifications()
	require.NoError(t, notifications.LoadMore(context.Background()))

	require.NoError(t, f.client.MarkNotificationRead(context.Background(), "n2", notifications))
	n, _ := notifications.Lookup("n2")
	require.True(t, n.Read)
	n, _ = notifications.Lookup("n1")
	require.False(t, n.Read)
	require.Equal(t, int32(1), f.api.readCalls.Load())
}

func TestClient_SetFollowRollsBackOnValidationError(t *testing.T) {
	f := setupTestFixture(t)
	followers := f.client.Followers("me")
	require.NoError(t, followers.LoadMore(context.Background()))

	var seen []cache.ListState[journal.Profile]
	sub := followers.Subscribe(func(s cache.ListState[journal.Profile]) { seen = append(seen, s) })
	defer sub.Close()

	err := f.client.SetFollow(context.Background(), "u2", true, followers)
	require.ErrorIs(t, err, apperrors.ErrValidation)
	require.ErrorContains(t, err, "cannot follow yourself")

	p, _ := followers.Lookup("u2")
	require.False(t, p.Following)
	require.Equal(t, 5, p.FollowerCount)

	// initial, optimistic, rolled back
	require.Len(t, seen, 3)
	require.True(t, seen[1].Items[0].Following)
	require.Equal(t, 6, seen[1].Items[0].FollowerCount)
}
