package server

import (
	"sort"
	"sync"
	"time"

	"github.com/jonathan/boot-release/internal/pipeline"
	"github.com/jonathan/boot-release/internal/types"
)

const (
	// maxRuns is how many run summaries are kept in memory; older finished
	// runs are only reachable through History
	maxRuns = 50
	// subscriberBuffer is the per-stream event backlog; slower readers drop events
	subscriberBuffer = 32
)

// registry tracks the active run and recent summaries. At most one run is
// active at a time.
type registry struct {
	mu     sync.Mutex
	active string
	runs   map[string]*types.RunSummary
	order  []string
	subs   map[string]map[chan pipeline.ProgressEvent]struct{}
}

func newRegistry() *registry {
	return &registry{
		runs: make(map[string]*types.RunSummary),
		subs: make(map[string]map[chan pipeline.ProgressEvent]struct{}),
	}
}

func (r *registry) busy() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active != ""
}

// begin marks runID as the active run. It returns false if another run is active.
func (r *registry) begin(runID string, event types.TriggerEvent, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active != "" {
		return false
	}
	r.active = runID
	r.runs[runID] = &types.RunSummary{
		RunID:     runID,
		Reference: event.Reference,
		Tag:       event.TagName(),
		State:     types.RunIdle,
		StartedAt: now,
	}
	r.order = append(r.order, runID)
	r.evict()
	return true
}

func (r *registry) progress(e pipeline.ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.runs[e.RunID]
	if !ok {
		return
	}
	if e.State != "" {
		s.State = e.State
	}
	if e.Platform != "" && e.Status != "" {
		jobs := append([]types.BuildJob(nil), s.Jobs...)
		found := false
		for i := range jobs {
			if jobs[i].Descriptor.PlatformID == e.Platform {
				jobs[i].Status = e.Status
				found = true
			}
		}
		if !found {
			jobs = append(jobs, types.BuildJob{Descriptor: types.PlatformDescriptor{PlatformID: e.Platform}, Status: e.Status})
		}
		s.Jobs = jobs
	}

	for ch := range r.subs[e.RunID] {
		select {
		case ch <- e:
		default:
		}
	}
}

// finish stores the final summary, releases the active slot and closes
// every event stream for the run
func (r *registry) finish(runID string, summary *types.RunSummary) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if summary != nil {
		r.runs[runID] = summary
	}
	if r.active == runID {
		r.active = ""
	}
	for ch := range r.subs[runID] {
		close(ch)
	}
	delete(r.subs, runID)
}

// get returns a copy of the summary safe to read without the lock
func (r *registry) get(runID string) (types.RunSummary, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.runs[runID]
	if !ok {
		return types.RunSummary{}, false
	}
	cp := *s
	cp.Jobs = append([]types.BuildJob(nil), s.Jobs...)
	return cp, true
}

// list returns copies of the kept summaries, newest first
func (r *registry) list() []types.RunSummary {
	r.mu.Lock()
	ids := append([]string(nil), r.order...)
	r.mu.Unlock()

	out := make([]types.RunSummary, 0, len(ids))
	for _, id := range ids {
		if s, ok := r.get(id); ok {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	return out
}

// subscribe returns a channel of progress events for an active run. The
// channel is closed when the run finishes. ok is false if runID is not the
// active run.
func (r *registry) subscribe(runID string) (events <-chan pipeline.ProgressEvent, cancel func(), ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active != runID {
		return nil, func() {}, false
	}
	ch := make(chan pipeline.ProgressEvent, subscriberBuffer)
	if r.subs[runID] == nil {
		r.subs[runID] = make(map[chan pipeline.ProgressEvent]struct{})
	}
	r.subs[runID][ch] = struct{}{}

	cancel = func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if _, ok := r.subs[runID][ch]; ok {
			delete(r.subs[runID], ch)
			close(ch)
		}
	}
	return ch, cancel, true
}

// evict drops the oldest finished summaries beyond maxRuns. Caller holds mu.
func (r *registry) evict() {
	for len(r.order) > maxRuns {
		oldest := r.order[0]
		if oldest == r.active {
			return
		}
		delete(r.runs, oldest)
		r.order = r.order[1:]
	}
}
