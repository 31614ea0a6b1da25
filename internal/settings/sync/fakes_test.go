package sync

import (
	"context"
	stdsync "sync"

	"github.com/maxsxu/settings-repository-plus/internal/settings/repo"
	"github.com/maxsxu/settings-repository-plus/internal/settings/store"
)

// fakeRepo scripts the repository manager contract and records calls.
type fakeRepo struct {
	mu stdsync.Mutex

	upstream bool
	ahead    int

	commitErr  error
	commitSome bool
	pullResult *repo.UpdateResult
	pullErr    error
	resetToRemoteResult *repo.UpdateResult
	resetToRemoteErr    error
	resetToLocalResult  *repo.UpdateResult
	pushErr error

	commitCalls        int
	pullCalls          int
	pushCalls          int
	resetToRemoteCalls int
	resetToLocalCalls  int
	initializerRan     bool

	// onOperation observes every repository call, e.g. to assert the write
	// interlock is held.
	onOperation func()
}

func (f *fakeRepo) observe() {
	if f.onOperation != nil {
		f.onOperation()
	}
}

func (f *fakeRepo) Commit(ctx context.Context, tag string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.observe()
	f.commitCalls++
	if f.commitErr != nil {
		return false, f.commitErr
	}
	return f.commitSome, nil
}

func (f *fakeRepo) Pull(ctx context.Context) (*repo.UpdateResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.observe()
	f.pullCalls++
	if f.pullErr != nil {
		return nil, f.pullErr
	}
	if f.pullResult == nil {
		return repo.NewUpdateResult(), nil
	}
	return f.pullResult, nil
}

func (f *fakeRepo) Push(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.observe()
	f.pushCalls++
	return f.pushErr
}

func (f *fakeRepo) ResetToRemote(ctx context.Context) (*repo.UpdateResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.observe()
	f.resetToRemoteCalls++
	if f.resetToRemoteErr != nil {
		return nil, f.resetToRemoteErr
	}
	if f.resetToRemoteResult == nil {
		return repo.NewUpdateResult(), nil
	}
	return f.resetToRemoteResult, nil
}

func (f *fakeRepo) ResetToLocal(ctx context.Context, initializer repo.Initializer) (*repo.UpdateResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.observe()
	f.resetToLocalCalls++
	if initializer != nil {
		f.initializerRan = true
		if err := initializer(ctx); err != nil {
			return nil, err
		}
	}
	if f.resetToLocalResult == nil {
		return repo.NewUpdateResult(), nil
	}
	return f.resetToLocalResult, nil
}

func (f *fakeRepo) HasUpstream() bool {
	return f.upstream
}

func (f *fakeRepo) AheadCommitCount(ctx context.Context) (int, error) {
	return f.ahead, nil
}

// fakeStore scripts the ConfigStore contract.
type fakeStore struct {
	storages map[string]struct{}
	affected []store.ComponentName
	notReloadable []store.ComponentName
	schemes  []store.SchemeManager

	applyErr error

	flushCalls   int
	applyChanged []string
	applyDeleted []string
	reinitNames  []store.ComponentName
	reinitCalls  int
}

func newFakeStore(storages ...string) *fakeStore {
	fs := &fakeStore{storages: make(map[string]struct{})}
	for _, s := range storages {
		fs.storages[s] = struct{}{}
	}
	return fs
}

func (f *fakeStore) FlushPending() error {
	f.flushCalls++
	return nil
}

func (f *fakeStore) HasStorage(fileSpec string) bool {
	_, ok := f.storages[fileSpec]
	return ok
}

func (f *fakeStore) ApplyStorageDeltas(ctx context.Context, changed, deleted []string) ([]store.ComponentName, error) {
	f.applyChanged = append(f.applyChanged, changed...)
	f.applyDeleted = append(f.applyDeleted, deleted...)
	return f.affected, f.applyErr
}

func (f *fakeStore) NotReloadable(names []store.ComponentName) []store.ComponentName {
	return f.notReloadable
}

func (f *fakeStore) ReinitComponents(ctx context.Context, names, notReloadable []store.ComponentName) error {
	f.reinitCalls++
	f.reinitNames = append(f.reinitNames, names...)
	return nil
}

func (f *fakeStore) SchemeManagers() []store.SchemeManager {
	return f.schemes
}

// fakeScheme counts reloads.
type fakeScheme struct {
	name     string
	fileSpec string
	reloads  int
}

func (f *fakeScheme) Name() string     { return f.name }
func (f *fakeScheme) FileSpec() string { return f.fileSpec }
func (f *fakeScheme) Reload() error {
	f.reloads++
	return nil
}

// fakeReadOnly scripts the read-only sources contract.
type fakeReadOnly struct {
	roots []string
	err   error
	calls int
}

func (f *fakeReadOnly) Update(ctx context.Context) ([]string, error) {
	f.calls++
	return f.roots, f.err
}

// fakeRestarter records restart requests.
type fakeRestarter struct {
	calls int
}

func (f *fakeRestarter) Restart() {
	f.calls++
}

// promptScript answers restart prompts with a fixed decision.
type promptScript struct {
	accept bool
	asked  []store.ComponentName
}

func (p *promptScript) ConfirmRestart(notReloadable []store.ComponentName) bool {
	p.asked = append(p.asked, notReloadable...)
	return p.accept
}

func changedResult(paths ...string) *repo.UpdateResult {
	ur := repo.NewUpdateResult()
	for _, p := range paths {
		ur.AddChanged(p)
	}
	return ur
}

func deletedResult(paths ...string) *repo.UpdateResult {
	ur := repo.NewUpdateResult()
	for _, p := range paths {
		ur.AddDeleted(p)
	}
	return ur
}
