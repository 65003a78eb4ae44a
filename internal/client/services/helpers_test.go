package services

import (
	"context"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/fridgekeeper/internal/client/client"
	"github.com/dmitrijs2005/fridgekeeper/internal/client/models"
	"github.com/dmitrijs2005/fridgekeeper/internal/client/repositories"
	"github.com/dmitrijs2005/fridgekeeper/internal/client/repositories/records"
	"github.com/dmitrijs2005/fridgekeeper/internal/client/session"
	"github.com/dmitrijs2005/fridgekeeper/internal/client/store"
	"github.com/dmitrijs2005/fridgekeeper/internal/logging"
)

var t0 = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

type testEnv struct {
	repos   *repositories.Repositories
	store   *store.Observable
	api     *fakeAPI
	session *fakeSession
	trigger *countingTrigger
	inv     *Inventory
	push    *PushAgent
	delta   *DeltaAgent
	engine  *Engine
	clock   *fakeClock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	repos, err := repositories.InitDatabase(ctx, repositories.DSN(filepath.Join(t.TempDir(), "fridge.db")), logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = repos.Close() })

	log := logging.Discard()
	env := &testEnv{
		repos:   repos,
		store:   store.NewObservable(repos.Records, log),
		api:     newFakeAPI(),
		session: &fakeSession{s: session.Session{Mode: session.ModeAuthenticated, Token: "tok"}},
		trigger: &countingTrigger{},
		clock:   &fakeClock{now: t0},
	}
	env.inv = NewInventory(env.store, env.trigger, log)
	env.inv.now = env.clock.Now
	env.push = NewPushAgent(env.store, env.api, env.session, log)
	env.push.now = env.clock.Now
	env.delta = NewDeltaAgent(env.store, repos.Metadata, env.api, env.session, log)
	env.delta.now = env.clock.Now
	env.engine = NewEngine(env.push, env.delta, log)
	return env
}

func (e *testEnv) get(t *testing.T, id string) *models.Record {
	t.Helper()
	rec, err := e.store.Get(context.Background(), id)
	require.NoError(t, err)
	return rec
}

func (e *testEnv) rowCount(t *testing.T, id string) int {
	t.Helper()
	var n int
	require.NoError(t, e.repos.DB.QueryRow(`SELECT COUNT(*) FROM records WHERE client_id = ?`, id).Scan(&n))
	return n
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Millisecond)
	return c.now
}

type fakeSession struct {
	mu       sync.Mutex
	s        session.Session
	reported int
}

func (f *fakeSession) Current(context.Context) (session.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.s, nil
}

func (f *fakeSession) ReportUnauthorized(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reported++
	f.s.NeedsReauth = true
	return nil
}

type countingTrigger struct{ n atomic.Int32 }

func (c *countingTrigger) RequestSyncPass() { c.n.Add(1) }

type apiCall struct {
	op string
	id string
}

// fakeAPI is an in-memory server keyed by client id.
type fakeAPI struct {
	mu    sync.Mutex
	items map[string]models.Item
	notes map[string]models.Note
	calls []apiCall
	clock time.Time

	// fail decides the outcome of a call before it is applied.
	fail func(op, id string) error
	// lose applies the call and then fails it, as if the ack was lost.
	lose func(op, id string) error
	// during runs while the call is in flight.
	during func(op, id string)

	itemDelta *client.ItemDelta
	noteDelta *client.NoteDelta
	deltaErr  error
	sinces    []time.Time
}

var _ client.Client = (*fakeAPI)(nil)

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		items: map[string]models.Item{},
		notes: map[string]models.Note{},
		clock: t0.Add(time.Hour),
	}
}

func (f *fakeAPI) begin(op, id string) (time.Time, error) {
	f.mu.Lock()
	f.calls = append(f.calls, apiCall{op, id})
	f.clock = f.clock.Add(time.Second)
	now := f.clock
	fail, during := f.fail, f.during
	f.mu.Unlock()

	if during != nil {
		during(op, id)
	}
	if fail != nil {
		if err := fail(op, id); err != nil {
			return now, err
		}
	}
	return now, nil
}

func (f *fakeAPI) end(op, id string) error {
	if f.lose != nil {
		return f.lose(op, id)
	}
	return nil
}

func (f *fakeAPI) CreateItem(_ context.Context, item models.Item) (client.PushAck, error) {
	now, err := f.begin("create-item", item.ClientID)
	if err != nil {
		return client.PushAck{}, err
	}
	f.mu.Lock()
	f.items[item.ClientID] = item
	f.mu.Unlock()
	return client.PushAck{ClientID: item.ClientID, UpdatedAt: &now}, f.end("create-item", item.ClientID)
}

func (f *fakeAPI) DeleteItem(_ context.Context, id string) error {
	if _, err := f.begin("delete-item", id); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[id]; !ok {
		return &client.APIError{StatusCode: 404, Detail: "not found"}
	}
	delete(f.items, id)
	return nil
}

func (f *fakeAPI) CreateNote(_ context.Context, note models.Note) (client.PushAck, error) {
	now, err := f.begin("create-note", note.ClientID)
	if err != nil {
		return client.PushAck{}, err
	}
	f.mu.Lock()
	f.notes[note.ClientID] = note
	f.mu.Unlock()
	return client.PushAck{ClientID: note.ClientID, UpdatedAt: &now}, f.end("create-note", note.ClientID)
}

func (f *fakeAPI) DeleteNote(_ context.Context, id string) error {
	if _, err := f.begin("delete-note", id); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.notes[id]; !ok {
		return &client.APIError{StatusCode: 404, Detail: "not found"}
	}
	delete(f.notes, id)
	return nil
}

func (f *fakeAPI) ItemsSince(_ context.Context, since time.Time) (*client.ItemDelta, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sinces = append(f.sinces, since)
	if f.deltaErr != nil {
		return nil, f.deltaErr
	}
	if f.itemDelta != nil {
		return f.itemDelta, nil
	}
	return &client.ItemDelta{Since: since, ServerTime: f.clock}, nil
}

func (f *fakeAPI) NotesSince(_ context.Context, since time.Time) (*client.NoteDelta, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deltaErr != nil {
		return nil, f.deltaErr
	}
	if f.noteDelta != nil {
		return f.noteDelta, nil
	}
	return &client.NoteDelta{Since: since, ServerTime: f.clock}, nil
}

func (f *fakeAPI) Ping(context.Context) error { return nil }

func (f *fakeAPI) callsOf(op string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for _, c := range f.calls {
		if c.op == op {
			ids = append(ids, c.id)
		}
	}
	return ids
}

func (f *fakeAPI) allCalls() []apiCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]apiCall(nil), f.calls...)
}

func (f *fakeAPI) itemIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.items))
	for id := range f.items {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// flakyStore fails Update for one client id a limited number of times.
type flakyStore struct {
	records.Repository
	failID   string
	failures int
	err      error
}

func (f *flakyStore) Update(ctx context.Context, id string, fn records.UpdateFunc) (records.Op, error) {
	if id == f.failID && f.failures > 0 {
		f.failures--
		return records.OpKeep, f.err
	}
	return f.Repository.Update(ctx, id, fn)
}
