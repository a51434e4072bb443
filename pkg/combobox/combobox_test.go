package combobox

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type user struct {
	ID      int64
	Name    string
	Company string
}

var people = []user{
	{ID: 1, Name: "Asha", Company: "Acme"},
	{ID: 2, Name: "Ben"},
	{ID: 3, Name: "Cara", Company: "Globex"},
	{ID: 4, Name: "Dev", Company: "Acme"},
	{ID: 5, Name: "Bea"},
}

func staticConfig() Config[user, int64] {
	return Config[user, int64]{
		Options: people,
		Value:   func(u user) int64 { return u.ID },
		Label:   func(u user) string { return u.Name },
		Group:   func(u user) string { return u.Company },
	}
}

func labels(items []Item[user]) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Label)
	}
	return out
}

func TestItems_GroupOrder(t *testing.T) {
	c := New(staticConfig())
	assert.Equal(t, []string{"Ben", "Bea", "Asha", "Dev", "Cara"}, labels(c.Items()))

	groups := c.Groups()
	require.Len(t, groups, 3)
	assert.Equal(t, "", groups[0].Name)
	assert.Equal(t, "Acme", groups[1].Name)
	assert.Equal(t, "Globex", groups[2].Name)
}

func TestItems_FilterCaseInsensitive(t *testing.T) {
	c := New(staticConfig())
	c.SetQuery(context.Background(), "BE")
	assert.Equal(t, []string{"Ben", "Bea"}, labels(c.Items()))

	c.SetQuery(context.Background(), "zz")
	assert.Empty(t, c.Items())
}

func TestSelect_Single(t *testing.T) {
	c := New(staticConfig())
	c.SetQuery(context.Background(), "ca")
	require.True(t, c.IsOpen())

	c.Select(people[2])
	v, ok := c.Selected()
	require.True(t, ok)
	assert.Equal(t, int64(3), v)
	assert.False(t, c.IsOpen())
	assert.Equal(t, "", c.Query())

	c.Select(people[0])
	assert.Equal(t, []int64{1}, c.Values())

	c.Clear()
	_, ok = c.Selected()
	assert.False(t, ok)
}

func TestSelect_MultipleToggles(t *testing.T) {
	cfg := staticConfig()
	cfg.Multiple = true
	c := New(cfg)
	c.SetValue(2, 3)
	c.Open()

	c.Select(people[1])
	assert.Equal(t, []int64{3}, c.Values())
	assert.True(t, c.IsOpen())

	c.Select(people[0])
	assert.Equal(t, []int64{3, 1}, c.Values())

	c.Remove(3)
	assert.Equal(t, []int64{1}, c.Values())
}

func TestSetValue_SingleKeepsFirst(t *testing.T) {
	c := New(staticConfig())
	c.SetValue(4, 5)
	assert.Equal(t, []int64{4}, c.Values())

	c.Remove(4)
	assert.Equal(t, []int64{4}, c.Values())
}

func TestHandleKey(t *testing.T) {
	ctx := context.Background()
	c := New(staticConfig())

	require.NoError(t, c.HandleKey(ctx, KeyArrowDown))
	assert.True(t, c.IsOpen())
	assert.Equal(t, 0, c.Highlight())

	for i := 0; i < 10; i++ {
		require.NoError(t, c.HandleKey(ctx, KeyArrowDown))
	}
	assert.Equal(t, len(people)-1, c.Highlight())

	require.NoError(t, c.HandleKey(ctx, KeyArrowUp))
	assert.Equal(t, len(people)-2, c.Highlight())

	require.NoError(t, c.HandleKey(ctx, KeyEnter))
	v, ok := c.Selected()
	require.True(t, ok)
	assert.Equal(t, int64(4), v, "Dev is second to last in grouped order")
	assert.False(t, c.IsOpen())

	c.Open()
	require.NoError(t, c.HandleKey(ctx, KeyEscape))
	assert.False(t, c.IsOpen())

	c.Open()
	require.NoError(t, c.HandleKey(ctx, KeyTab))
	assert.False(t, c.IsOpen())
}

func TestHandleKey_QueryResetsHighlight(t *testing.T) {
	ctx := context.Background()
	c := New(staticConfig())
	c.Open()
	require.NoError(t, c.HandleKey(ctx, KeyArrowDown))
	require.NoError(t, c.HandleKey(ctx, KeyArrowDown))
	assert.Equal(t, 2, c.Highlight())

	c.SetQuery(ctx, "a")
	assert.Equal(t, 0, c.Highlight())
}

func TestCreate(t *testing.T) {
	ctx := context.Background()
	cfg := staticConfig()
	cfg.Creatable = true
	cfg.OnCreate = func(_ context.Context, label string) (user, error) {
		return user{ID: 9, Name: label}, nil
	}
	c := New(cfg)

	c.SetQuery(ctx, "asha")
	items := c.Items()
	require.Len(t, items, 1)
	assert.False(t, items[0].Create, "no create row for an exact label match")
	assert.ErrorIs(t, c.Create(ctx), ErrNotCreatable)

	c.SetQuery(ctx, "  Zed ")
	items = c.Items()
	require.Len(t, items, 1)
	assert.True(t, items[0].Create)
	assert.Equal(t, "Zed", items[0].Label)

	require.NoError(t, c.HandleKey(ctx, KeyEnter))
	v, ok := c.Selected()
	require.True(t, ok)
	assert.Equal(t, int64(9), v)

	c.SetQuery(ctx, "zed")
	assert.Equal(t, []string{"Zed"}, labels(c.Items()))
}

func TestCreate_Error(t *testing.T) {
	cfg := staticConfig()
	cfg.Creatable = true
	cfg.OnCreate = func(context.Context, string) (user, error) { return user{}, errors.New("boom") }
	c := New(cfg)
	c.SetQuery(context.Background(), "Zed")

	assert.EqualError(t, c.HandleKey(context.Background(), KeyEnter), "boom")
	_, ok := c.Selected()
	assert.False(t, ok)
}

func remoteConfig(load func(ctx context.Context, q string) ([]user, error)) Config[user, int64] {
	return Config[user, int64]{
		Loader:          load,
		Value:           func(u user) int64 { return u.ID },
		Label:           func(u user) string { return u.Name },
		DebounceTimeout: time.Millisecond,
	}
}

func matching(q string) []user {
	var out []user
	for _, p := range people {
		if strings.Contains(strings.ToLower(p.Name), strings.ToLower(q)) {
			out = append(out, p)
		}
	}
	return out
}

func TestRemote_Search(t *testing.T) {
	var calls []string
	c := New(remoteConfig(func(_ context.Context, q string) ([]user, error) {
		calls = append(calls, q)
		return matching(q), nil
	}))

	c.Search(context.Background(), "be")
	assert.False(t, c.Loading())
	assert.Equal(t, []string{"Ben", "Bea"}, labels(c.Items()))

	c.Search(context.Background(), "  ")
	assert.Empty(t, c.Items())
	assert.Equal(t, []string{"be"}, calls, "blank query never reaches the loader")
}

func TestRemote_ErrorClearsOptions(t *testing.T) {
	fail := false
	c := New(remoteConfig(func(_ context.Context, q string) ([]user, error) {
		if fail {
			return nil, errors.New("unreachable")
		}
		return matching(q), nil
	}))
	c.Search(context.Background(), "a")
	require.NotEmpty(t, c.Items())

	fail = true
	c.Search(context.Background(), "as")
	assert.Empty(t, c.Items())
	assert.False(t, c.Loading())
}

func TestRemote_DebounceCollapsesTyping(t *testing.T) {
	var mu sync.Mutex
	var calls []string
	cfg := remoteConfig(func(_ context.Context, q string) ([]user, error) {
		mu.Lock()
		calls = append(calls, q)
		mu.Unlock()
		return matching(q), nil
	})
	cfg.DebounceTimeout = 50 * time.Millisecond
	c := New(cfg)

	ctx := context.Background()
	c.SetQuery(ctx, "b")
	c.SetQuery(ctx, "be")
	c.SetQuery(ctx, "ben")
	assert.True(t, c.Loading())

	require.Eventually(t, func() bool { return !c.Loading() }, time.Second, 5*time.Millisecond)
	mu.Lock()
	assert.Equal(t, []string{"ben"}, calls)
	mu.Unlock()
	assert.Equal(t, []string{"Ben"}, labels(c.Items()))
}

func TestRemote_LastQueryWins(t *testing.T) {
	release := map[string]chan struct{}{
		"a":  make(chan struct{}),
		"as": make(chan struct{}),
	}
	started := make(chan string, 2)
	changed := make(chan struct{}, 2)
	cfg := remoteConfig(func(_ context.Context, q string) ([]user, error) {
		started <- q
		<-release[q]
		return matching(q), nil
	})
	cfg.OnChange = func() { changed <- struct{}{} }
	c := New(cfg)

	ctx := context.Background()
	c.SetQuery(ctx, "a")
	require.Equal(t, "a", <-started)
	c.SetQuery(ctx, "as")
	require.Equal(t, "as", <-started)

	close(release["as"])
	<-changed
	assert.Equal(t, []string{"Asha"}, labels(c.Items()))

	close(release["a"])
	assert.Never(t, func() bool { return len(changed) > 0 }, 50*time.Millisecond, 5*time.Millisecond)
	assert.Equal(t, []string{"Asha"}, labels(c.Items()))
	assert.False(t, c.Loading())
}

func TestRemote_SelectDropsPendingSearch(t *testing.T) {
	var calls atomic.Int32
	cfg := remoteConfig(func(_ context.Context, q string) ([]user, error) {
		calls.Add(1)
		return matching(q), nil
	})
	cfg.Multiple = true
	cfg.DebounceTimeout = 30 * time.Millisecond
	c := New(cfg)

	ctx := context.Background()
	c.Search(ctx, "a")
	require.Equal(t, []string{"Asha", "Cara", "Bea"}, labels(c.Items()))

	c.SetQuery(ctx, "as")
	c.Select(people[0])

	assert.Never(t, func() bool { return calls.Load() > 1 }, 100*time.Millisecond, 5*time.Millisecond)
	assert.Equal(t, "", c.Query())
	assert.False(t, c.Loading())
	assert.True(t, c.IsOpen())
	assert.Empty(t, c.Items())
	assert.Equal(t, []int64{1}, c.Values())
}

func TestRemote_FiltersFetchedOptionsByLabel(t *testing.T) {
	cfg := remoteConfig(func(context.Context, string) ([]user, error) {
		return people, nil
	})
	cfg.DebounceTimeout = time.Hour
	cfg.Creatable = true
	cfg.OnCreate = func(_ context.Context, label string) (user, error) {
		return user{ID: 9, Name: label}, nil
	}
	c := New(cfg)

	ctx := context.Background()
	c.Search(ctx, "be")
	assert.Equal(t, []string{"Ben", "Bea", "be"}, labels(c.Items()))

	// the previous results stay narrowed while the next search waits
	c.SetQuery(ctx, "bea")
	assert.True(t, c.Loading())
	items := c.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "Bea", items[0].Label)
	assert.False(t, items[0].Create)
}

func TestCreate_KeepsCallerOptions(t *testing.T) {
	opts := make([]user, 2, 4)
	copy(opts, people[:2])
	cfg := staticConfig()
	cfg.Options = opts
	cfg.Creatable = true
	cfg.OnCreate = func(_ context.Context, label string) (user, error) {
		return user{ID: 9, Name: label}, nil
	}
	c := New(cfg)

	c.SetQuery(context.Background(), "Zed")
	require.NoError(t, c.Create(context.Background()))

	assert.Equal(t, user{}, opts[:3][2])
	c.SetQuery(context.Background(), "zed")
	assert.Equal(t, []string{"Zed"}, labels(c.Items()))
}
