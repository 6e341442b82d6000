package studio

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imagestudio/internal/catalog"
	"imagestudio/internal/history"
	"imagestudio/internal/providers/genai"
	"imagestudio/internal/storage"
)

type call struct {
	prompt      string
	aspectRatio string
}

type fakeGenerator struct {
	mu       sync.Mutex
	calls    []call
	started  chan struct{}
	release  chan struct{}
	generate func(n int) (*genai.Result, error)
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt, aspectRatio string) (*genai.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, call{prompt: prompt, aspectRatio: aspectRatio})
	n := len(f.calls)
	f.mu.Unlock()

	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}
	if f.generate != nil {
		return f.generate(n)
	}
	return &genai.Result{ImageBytes: []byte{0xff, 0xd8, byte(n)}, MIMEType: "image/jpeg"}, nil
}

func (f *fakeGenerator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type persistFailKV struct {
	*storage.MemoryStore
}

func (persistFailKV) Set(ctx context.Context, key string, value []byte) error {
	return errors.New("quota exceeded")
}

func fixedClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

func newController(t *testing.T, gen Generator, kv storage.KV) (*Controller, *history.Store) {
	t.Helper()
	if kv == nil {
		kv = storage.NewMemoryStore()
	}
	store, err := history.NewStore(kv, history.Options{})
	require.NoError(t, err)
	c, err := New(context.Background(), gen, store, WithClock(fixedClock()))
	require.NoError(t, err)
	return c, store
}

func TestNewDefaults(t *testing.T) {
	c, _ := newController(t, &fakeGenerator{}, nil)
	v := c.View()
	assert.Equal(t, StatusIdle, v.Status)
	assert.Equal(t, catalog.DefaultStyle().Value, v.Style)
	assert.Equal(t, catalog.DefaultAspectRatio().Value, v.AspectRatio)
	assert.Empty(t, v.Prompt)
	assert.Empty(t, v.History)
	assert.False(t, v.CanGenerate)
}

func TestNewRequiresDependencies(t *testing.T) {
	store, err := history.NewStore(storage.NewMemoryStore(), history.Options{})
	require.NoError(t, err)

	_, err = New(context.Background(), nil, store)
	assert.Error(t, err)
	_, err = New(context.Background(), &fakeGenerator{}, nil)
	assert.Error(t, err)
}

func TestNewLoadsPersistedHistory(t *testing.T) {
	kv := storage.NewMemoryStore()
	require.NoError(t, kv.Set(context.Background(), history.DefaultKey,
		[]byte(`[{"id":"a","prompt":"p","style":"minimalist, clean lines, simple","aspectRatio":"1:1","imageUrl":"data:image/jpeg;base64,AA=="}]`)))

	c, _ := newController(t, &fakeGenerator{}, kv)
	v := c.View()
	require.Len(t, v.History, 1)
	assert.Equal(t, "a", v.History[0].ID)
	assert.Equal(t, StatusIdle, v.Status, "loading history must not display an image")
	assert.Empty(t, v.ImageURL)
}

func TestGenerateBlankPromptIsNoop(t *testing.T) {
	for _, prompt := range []string{"", "   ", "\n\t"} {
		gen := &fakeGenerator{}
		c, _ := newController(t, gen, nil)
		c.SetPrompt(prompt)

		assert.False(t, c.Generate(context.Background()))
		assert.False(t, c.Start(context.Background()))
		assert.ErrorIs(t, c.TryStart(context.Background()), ErrBlankPrompt)
		assert.Equal(t, StatusIdle, c.View().Status)
		assert.Zero(t, gen.callCount())
	}
}

func TestGenerateRedFoxScenario(t *testing.T) {
	gen := &fakeGenerator{}
	c, store := newController(t, gen, nil)

	c.SetPrompt("a red fox")
	require.NoError(t, c.SetStyle(catalog.StylePresets[0].Value))
	require.NoError(t, c.SetAspectRatio("1:1"))

	require.True(t, c.Generate(context.Background()))

	require.Equal(t, 1, gen.callCount())
	assert.Equal(t, "a red fox, photorealistic, 8k, detailed, professional photography", gen.calls[0].prompt)
	assert.Equal(t, "1:1", gen.calls[0].aspectRatio)

	v := c.View()
	assert.Equal(t, StatusSucceeded, v.Status)
	assert.Empty(t, v.Error)
	assert.True(t, strings.HasPrefix(v.ImageURL, "data:image/jpeg;base64,"))
	assert.Regexp(t, `^imagen-ai-\d+\.jpeg$`, v.DownloadName)
	assert.True(t, v.HasImage())
	assert.True(t, v.CanGenerate)

	require.Len(t, v.History, 1)
	got := v.History[0]
	assert.Equal(t, "a red fox", got.Prompt)
	assert.Equal(t, "photorealistic, 8k, detailed, professional photography", got.Style)
	assert.Equal(t, "1:1", got.AspectRatio)
	assert.Equal(t, v.ImageURL, got.ImageURL)
	assert.NotEmpty(t, got.ID)

	assert.Equal(t, v.History, store.Load(context.Background()), "history must be persisted")
}

func TestGenerateKeepsPromptAsTyped(t *testing.T) {
	gen := &fakeGenerator{}
	c, _ := newController(t, gen, nil)
	c.SetPrompt("  lighthouse at dusk  ")

	require.True(t, c.Generate(context.Background()))
	assert.Equal(t, "lighthouse at dusk, "+catalog.DefaultStyle().Value, gen.calls[0].prompt)
	assert.Equal(t, "  lighthouse at dusk  ", c.View().History[0].Prompt)
}

func TestGenerateSafetyBlock(t *testing.T) {
	gen := &fakeGenerator{generate: func(int) (*genai.Result, error) {
		return nil, &genai.Error{Kind: genai.ErrNoImageProduced}
	}}
	c, store := newController(t, gen, nil)
	c.SetPrompt("something blocked")

	require.True(t, c.Generate(context.Background()))

	v := c.View()
	assert.Equal(t, StatusFailed, v.Status)
	assert.Contains(t, v.Error, "modify your prompt")
	assert.Empty(t, v.ImageURL)
	assert.False(t, v.HasImage())
	assert.Empty(t, v.History)
	assert.Empty(t, store.Load(context.Background()))
}

func TestGenerateErrorMessages(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "credential", err: &genai.Error{Kind: genai.ErrInvalidCredential}, want: "API key is not valid"},
		{name: "service", err: &genai.Error{Kind: genai.ErrServiceError, Cause: errors.New("500 internal")}, want: "Failed to generate image"},
		{name: "unclassified", err: errors.New("boom"), want: "Failed to generate image"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			gen := &fakeGenerator{generate: func(int) (*genai.Result, error) { return nil, tc.err }}
			c, _ := newController(t, gen, nil)
			c.SetPrompt("p")
			require.True(t, c.Generate(context.Background()))
			v := c.View()
			assert.Equal(t, StatusFailed, v.Status)
			assert.Contains(t, v.Error, tc.want)
			assert.NotContains(t, v.Error, "500 internal")
		})
	}
}

func TestGenerateEmptyResultIsNoImage(t *testing.T) {
	gen := &fakeGenerator{generate: func(int) (*genai.Result, error) { return &genai.Result{}, nil }}
	c, _ := newController(t, gen, nil)
	c.SetPrompt("p")
	require.True(t, c.Generate(context.Background()))
	assert.Equal(t, StatusFailed, c.View().Status)
	assert.Contains(t, c.View().Error, "modify your prompt")
}

func TestFailureThenSuccessClearsError(t *testing.T) {
	gen := &fakeGenerator{generate: func(n int) (*genai.Result, error) {
		if n == 1 {
			return nil, &genai.Error{Kind: genai.ErrServiceError}
		}
		return &genai.Result{ImageBytes: []byte{1}, MIMEType: "image/jpeg"}, nil
	}}
	c, _ := newController(t, gen, nil)
	c.SetPrompt("p")

	require.True(t, c.Generate(context.Background()))
	require.Equal(t, StatusFailed, c.View().Status)

	require.True(t, c.Generate(context.Background()))
	v := c.View()
	assert.Equal(t, StatusSucceeded, v.Status)
	assert.Empty(t, v.Error)
}

func TestFourSuccessesKeepLastThree(t *testing.T) {
	gen := &fakeGenerator{}
	c, store := newController(t, gen, nil)

	prompts := []string{"one", "two", "three", "four"}
	for _, p := range prompts {
		c.SetPrompt(p)
		require.True(t, c.Generate(context.Background()))
		assert.LessOrEqual(t, len(c.View().History), history.MaxEntries)
	}

	v := c.View()
	require.Len(t, v.History, 3)
	assert.Equal(t, "four", v.History[0].Prompt)
	assert.Equal(t, "three", v.History[1].Prompt)
	assert.Equal(t, "two", v.History[2].Prompt)
	assert.Equal(t, v.History, store.Load(context.Background()))

	ids := map[string]bool{}
	for _, e := range v.History {
		assert.False(t, ids[e.ID], "duplicate id %s", e.ID)
		ids[e.ID] = true
	}
}

func TestGenerateWhileInFlightIsRejected(t *testing.T) {
	gen := &fakeGenerator{started: make(chan struct{}, 1), release: make(chan struct{})}
	c, _ := newController(t, gen, nil)
	c.SetPrompt("slow")

	require.True(t, c.Start(context.Background()))
	<-gen.started

	v := c.View()
	assert.Equal(t, StatusGenerating, v.Status)
	assert.False(t, v.CanGenerate)
	assert.False(t, c.Generate(context.Background()))
	assert.False(t, c.Start(context.Background()))
	assert.ErrorIs(t, c.TryStart(context.Background()), ErrInFlight)

	c.SetPrompt("   ")
	assert.ErrorIs(t, c.TryStart(context.Background()), ErrBlankPrompt, "a blank prompt is reported even while in flight")

	close(gen.release)
	c.Wait()

	assert.Equal(t, 1, gen.callCount())
	assert.Equal(t, StatusSucceeded, c.View().Status)
}

func TestConcurrentGenerateIssuesOneCall(t *testing.T) {
	gen := &fakeGenerator{release: make(chan struct{})}
	c, _ := newController(t, gen, nil)
	c.SetPrompt("race")

	var wg sync.WaitGroup
	results := make(chan bool, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- c.Start(context.Background())
		}()
	}
	wg.Wait()
	close(results)

	started := 0
	for ok := range results {
		if ok {
			started++
		}
	}
	close(gen.release)
	c.Wait()

	assert.Equal(t, 1, started)
	assert.Equal(t, 1, gen.callCount())
}

func TestGenerateClearsPreviousResult(t *testing.T) {
	gen := &fakeGenerator{started: make(chan struct{}, 2), release: make(chan struct{}, 2)}
	c, _ := newController(t, gen, nil)
	c.SetPrompt("p")

	gen.release <- struct{}{}
	require.True(t, c.Generate(context.Background()))
	<-gen.started
	require.NotEmpty(t, c.View().ImageURL)

	require.True(t, c.Start(context.Background()))
	<-gen.started
	v := c.View()
	assert.Equal(t, StatusGenerating, v.Status)
	assert.Empty(t, v.ImageURL)
	assert.Empty(t, v.Error)

	gen.release <- struct{}{}
	c.Wait()
}

func TestSelectHistory(t *testing.T) {
	gen := &fakeGenerator{}
	c, _ := newController(t, gen, nil)

	c.SetPrompt("first")
	require.NoError(t, c.SetStyle("anime style, vibrant, detailed background"))
	require.NoError(t, c.SetAspectRatio("9:16"))
	require.True(t, c.Generate(context.Background()))
	first := c.View().History[0]

	c.SetPrompt("second")
	require.NoError(t, c.SetStyle("minimalist, clean lines, simple"))
	require.NoError(t, c.SetAspectRatio("4:3"))
	require.True(t, c.Generate(context.Background()))

	assert.False(t, c.SelectHistory("missing"))
	require.True(t, c.SelectHistory(first.ID))

	v := c.View()
	assert.Equal(t, first.Prompt, v.Prompt)
	assert.Equal(t, first.Style, v.Style)
	assert.Equal(t, first.AspectRatio, v.AspectRatio)
	assert.Equal(t, first.ImageURL, v.ImageURL)
	assert.Equal(t, StatusSucceeded, v.Status)
	assert.Len(t, v.History, 2, "selecting must not change history")
	assert.Equal(t, 2, gen.callCount(), "selecting must not call the generator")
}

func TestSelectHistoryClearsError(t *testing.T) {
	gen := &fakeGenerator{generate: func(n int) (*genai.Result, error) {
		if n == 2 {
			return nil, &genai.Error{Kind: genai.ErrServiceError}
		}
		return &genai.Result{ImageBytes: []byte{9}, MIMEType: "image/jpeg"}, nil
	}}
	c, _ := newController(t, gen, nil)
	c.SetPrompt("p")
	require.True(t, c.Generate(context.Background()))
	require.True(t, c.Generate(context.Background()))
	require.Equal(t, StatusFailed, c.View().Status)

	require.True(t, c.SelectHistory(c.View().History[0].ID))
	v := c.View()
	assert.Empty(t, v.Error)
	assert.True(t, v.HasImage())
}

func TestSelectHistoryDuringGenerationIsOverwritten(t *testing.T) {
	gen := &fakeGenerator{started: make(chan struct{}, 2), release: make(chan struct{}, 2)}
	c, _ := newController(t, gen, nil)
	c.SetPrompt("old")
	gen.release <- struct{}{}
	require.True(t, c.Generate(context.Background()))
	<-gen.started
	old := c.View().History[0]

	c.SetPrompt("new")
	require.True(t, c.Start(context.Background()))
	<-gen.started

	require.True(t, c.SelectHistory(old.ID))
	v := c.View()
	assert.Equal(t, StatusGenerating, v.Status, "selection leaves the in-flight state alone")
	assert.Equal(t, "old", v.Prompt)

	gen.release <- struct{}{}
	c.Wait()

	v = c.View()
	assert.Equal(t, StatusSucceeded, v.Status)
	assert.Equal(t, "new", v.History[0].Prompt)
	assert.Equal(t, v.History[0].ImageURL, v.ImageURL, "completion replaces the selected image")
}

type staticHistory struct {
	entries []history.Entry
}

func (s staticHistory) Load(ctx context.Context) []history.Entry {
	return s.entries
}

func (s staticHistory) Append(ctx context.Context, entry history.Entry, current []history.Entry) ([]history.Entry, error) {
	return append([]history.Entry{entry}, current...), nil
}

func TestSelectHistoryFallsBackToCatalogDefaults(t *testing.T) {
	gen := &fakeGenerator{}
	store := staticHistory{entries: []history.Entry{{
		ID:          "x",
		Prompt:      "cat",
		Style:       "not a preset",
		AspectRatio: "7:3",
		ImageURL:    "data:image/jpeg;base64,AA==",
	}}}
	c, err := New(context.Background(), gen, store, WithClock(fixedClock()))
	require.NoError(t, err)

	require.True(t, c.SelectHistory("x"))
	v := c.View()
	assert.Equal(t, "cat", v.Prompt)
	assert.Equal(t, catalog.DefaultStyle().Value, v.Style)
	assert.Equal(t, catalog.DefaultAspectRatio().Value, v.AspectRatio)

	require.True(t, c.Generate(context.Background()))
	require.Equal(t, 1, gen.callCount())
	assert.Equal(t, catalog.ComposePrompt("cat", catalog.DefaultStyle().Value), gen.calls[0].prompt)
	assert.Equal(t, catalog.DefaultAspectRatio().Value, gen.calls[0].aspectRatio)
}

func TestSelectHistoryIgnoresStoredEntriesOutsideCatalog(t *testing.T) {
	kv := storage.NewMemoryStore()
	require.NoError(t, kv.Set(context.Background(), history.DefaultKey,
		[]byte(`[{"id":"x","prompt":"cat","style":"not a preset","aspectRatio":"7:3","imageUrl":"data:image/jpeg;base64,AA=="}]`)))

	c, _ := newController(t, &fakeGenerator{}, kv)
	assert.Empty(t, c.View().History)
	assert.False(t, c.SelectHistory("x"))
}

func TestSetStyleAndAspectRejectUnknown(t *testing.T) {
	c, _ := newController(t, &fakeGenerator{}, nil)

	assert.ErrorIs(t, c.SetStyle("vaporwave"), ErrUnknownStyle)
	assert.ErrorIs(t, c.SetAspectRatio("2:1"), ErrUnknownAspectRatio)
	assert.ErrorIs(t, c.SetForm("p", "vaporwave", "1:1"), ErrUnknownStyle)
	assert.ErrorIs(t, c.SetForm("p", catalog.DefaultStyle().Value, "2:1"), ErrUnknownAspectRatio)

	v := c.View()
	assert.Equal(t, catalog.DefaultStyle().Value, v.Style)
	assert.Equal(t, catalog.DefaultAspectRatio().Value, v.AspectRatio)
	assert.Empty(t, v.Prompt, "rejected SetForm must not apply the prompt")
}

func TestPersistFailureStillUpdatesHistory(t *testing.T) {
	gen := &fakeGenerator{}
	c, _ := newController(t, gen, persistFailKV{storage.NewMemoryStore()})
	c.SetPrompt("p")

	require.True(t, c.Generate(context.Background()))
	v := c.View()
	assert.Equal(t, StatusSucceeded, v.Status)
	assert.Len(t, v.History, 1)
}

func TestSubscribeReceivesChanges(t *testing.T) {
	gen := &fakeGenerator{started: make(chan struct{}, 1), release: make(chan struct{})}
	c, _ := newController(t, gen, nil)
	updates, cancel := c.Subscribe()
	defer cancel()

	c.SetPrompt("watch me")
	v := <-updates
	assert.Equal(t, "watch me", v.Prompt)

	require.True(t, c.Start(context.Background()))
	<-gen.started
	v = <-updates
	assert.Equal(t, StatusGenerating, v.Status)

	close(gen.release)
	c.Wait()
	v = <-updates
	assert.Equal(t, StatusSucceeded, v.Status)
	assert.Len(t, v.History, 1)
}

func TestSubscribeLatestWins(t *testing.T) {
	c, _ := newController(t, &fakeGenerator{}, nil)
	updates, cancel := c.Subscribe()

	c.SetPrompt("a")
	c.SetPrompt("b")
	c.SetPrompt("c")

	v := <-updates
	assert.Equal(t, "c", v.Prompt)

	cancel()
	cancel()
	_, open := <-updates
	assert.False(t, open)

	c.SetPrompt("after cancel")
}

func TestDataURLRoundTrip(t *testing.T) {
	url := EncodeDataURL("image/jpeg", []byte{0xff, 0xd8, 0xff})
	assert.Equal(t, "data:image/jpeg;base64,/9j/", url)

	data, mime, err := DecodeDataURL(url)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", mime)
	assert.Equal(t, []byte{0xff, 0xd8, 0xff}, data)

	for _, bad := range []string{"https://example.com/x.jpg", "data:image/jpeg,raw", "data:image/jpeg;base64", "data:image/jpeg;base64,@@"} {
		_, _, err := DecodeDataURL(bad)
		assert.Error(t, err, bad)
	}
}
