package updater

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/oshokin/docker-image-updater/internal/domain/image"
)

// fakeRuntime serves image IDs from two maps: before and after the first pull of a ref.
type fakeRuntime struct {
	mu sync.Mutex

	before map[string]image.ID
	after  map[string]image.ID

	inspectErr map[string]error
	pullErr    map[string]error

	// events are replayed by every stream, streamErr ends it instead of io.EOF.
	events    []image.PullEvent
	streamErr error
	// block makes streams wait for the pull context.
	block bool

	pulled   map[string]bool
	inspects []string
	pulls    []string
	closed   int
}

func newFakeRuntime() *fakeRuntime {
	return &fakeRuntime{
		before:     map[string]image.ID{},
		after:      map[string]image.ID{},
		inspectErr: map[string]error{},
		pullErr:    map[string]error{},
		pulled:     map[string]bool{},
	}
}

func (f *fakeRuntime) InspectImage(_ context.Context, ref string) (image.ID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.inspects = append(f.inspects, ref)

	if err := f.inspectErr[ref]; err != nil {
		return image.NoID, err
	}

	ids := f.before
	if f.pulled[ref] {
		ids = f.after
	}

	id, ok := ids[ref]
	if !ok {
		return image.NoID, fmt.Errorf("%w: %s", image.ErrNotFound, ref)
	}

	return id, nil
}

func (f *fakeRuntime) PullImage(ctx context.Context, ref string) (image.PullStream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.pulls = append(f.pulls, ref)

	if err := f.pullErr[ref]; err != nil {
		return nil, err
	}

	f.pulled[ref] = true

	return &fakeStream{
		ctx:    ctx,
		owner:  f,
		events: append([]image.PullEvent(nil), f.events...),
		err:    f.streamErr,
		block:  f.block,
	}, nil
}

func (f *fakeRuntime) pullCount(ref string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	count := 0

	for _, pulled := range f.pulls {
		if pulled == ref {
			count++
		}
	}

	return count
}

type fakeStream struct {
	ctx    context.Context //nolint:containedctx // Mirrors a stream bound to its request context.
	owner  *fakeRuntime
	events []image.PullEvent
	err    error
	block  bool
}

func (s *fakeStream) Next() (image.PullEvent, error) {
	if s.block {
		<-s.ctx.Done()
		return image.PullEvent{}, s.ctx.Err()
	}

	if len(s.events) > 0 {
		event := s.events[0]
		s.events = s.events[1:]

		return event, nil
	}

	if s.err != nil {
		return image.PullEvent{}, s.err
	}

	return image.PullEvent{}, io.EOF
}

func (s *fakeStream) Close() error {
	s.owner.mu.Lock()
	defer s.owner.mu.Unlock()

	s.owner.closed++

	return nil
}

// checkResult is the canned answer of fakeChecker for one image.
type checkResult struct {
	changed bool
	err     error
}

// fakeChecker answers Check from a map and records calls.
type fakeChecker struct {
	results map[string]checkResult
	calls   []string
}

func (f *fakeChecker) Check(_ context.Context, ref string) (bool, error) {
	f.calls = append(f.calls, ref)
	result := f.results[ref]

	return result.changed, result.err
}

// fakeRunner records commands and fails the ones listed in errs.
type fakeRunner struct {
	errs map[string]error
	ran  []string
	// onRun is called after a command has been recorded.
	onRun func(command string)
}

func (f *fakeRunner) Run(_ context.Context, command string) error {
	f.ran = append(f.ran, command)

	if f.onRun != nil {
		f.onRun(command)
	}

	return f.errs[command]
}
