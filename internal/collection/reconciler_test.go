package collection

import (
	"context"
	"testing"

	"github.com/Slavster/vinyl-list/internal/discogs"
	"github.com/Slavster/vinyl-list/internal/httpx"
)

type instance struct {
	releaseID  int
	instanceID int
	folderID   int
}

type fakeCatalog struct {
	instances []instance
	folders   map[string]int
	nextID    int
	addErr    error
	moveErr   error
	findMiss  int

	addCalls    int
	moveCalls   int
	updateCalls int
	updates     map[int]string
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		folders: map[string]int{},
		nextID:  5000,
		updates: map[int]string{},
	}
}

func (f *fakeCatalog) FindInstance(_ context.Context, releaseID, folderID int) (int, int, bool, error) {
	if f.findMiss > 0 {
		f.findMiss--
		return 0, 0, false, nil
	}
	for _, inst := range f.instances {
		if inst.releaseID == releaseID {
			return inst.instanceID, inst.folderID, true, nil
		}
	}
	return 0, 0, false, nil
}

func (f *fakeCatalog) AddToCollection(_ context.Context, releaseID, folderID int) (int, error) {
	f.addCalls++
	if f.addErr != nil {
		return 0, f.addErr
	}
	f.nextID++
	f.instances = append(f.instances, instance{releaseID: releaseID, instanceID: f.nextID, folderID: folderID})
	return f.nextID, nil
}

func (f *fakeCatalog) GetOrCreateFolder(_ context.Context, name string) (int, error) {
	if id, ok := f.folders[name]; ok {
		return id, nil
	}
	id := len(f.folders) + 10
	f.folders[name] = id
	return id, nil
}

func (f *fakeCatalog) MoveInstance(_ context.Context, releaseID, instanceID, sourceFolderID, targetFolderID int) error {
	f.moveCalls++
	if f.moveErr != nil {
		return f.moveErr
	}
	for i, inst := range f.instances {
		if inst.instanceID == instanceID {
			f.instances[i].folderID = targetFolderID
		}
	}
	return nil
}

func (f *fakeCatalog) ConditionFieldIDs(context.Context) (discogs.FieldIDs, error) {
	return discogs.FieldIDs{Media: 1, Sleeve: 2}, nil
}

func (f *fakeCatalog) UpdateInstanceField(_ context.Context, folderID, releaseID, instanceID, fieldID int, value string) error {
	f.updateCalls++
	f.updates[fieldID] = value
	return nil
}

func newTestReconciler(catalog *fakeCatalog) *Reconciler {
	return NewReconciler(catalog, 1, "Very Good (VG)", "Good Plus (G+)", nil)
}

func TestEnsureInCollectionIdempotent(t *testing.T) {
	catalog := newFakeCatalog()
	r := newTestReconciler(catalog)
	ctx := context.Background()

	first, _, err := r.EnsureInCollection(ctx, 42)
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	second, _, err := r.EnsureInCollection(ctx, 42)
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if first != second {
		t.Errorf("instance ids differ: %d vs %d", first, second)
	}
	if len(catalog.instances) != 1 {
		t.Errorf("instance count = %d, want 1", len(catalog.instances))
	}
	if catalog.addCalls != 1 {
		t.Errorf("add calls = %d, want 1", catalog.addCalls)
	}
}

func TestEnsureInCollectionConflictIsSuccess(t *testing.T) {
	catalog := newFakeCatalog()
	catalog.addErr = &httpx.StatusError{Code: 409, Body: "already in collection"}
	r := newTestReconciler(catalog)

	// Find misses, add conflicts, and nothing turns up on re-find: that is
	// a real inconsistency and should error.
	_, _, err := r.EnsureInCollection(context.Background(), 42)
	if err == nil {
		t.Fatal("expected error when conflict add leaves nothing findable")
	}

	// Find misses, add conflicts, re-find hits: the conflict is success.
	catalog.instances = []instance{{releaseID: 42, instanceID: 9001, folderID: 1}}
	catalog.findMiss = 1
	instanceID, _, err := r.EnsureInCollection(context.Background(), 42)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if instanceID != 9001 {
		t.Errorf("instance = %d, want 9001", instanceID)
	}
}

func TestEnsureFiledAlreadyInTargetMakesZeroMoves(t *testing.T) {
	catalog := newFakeCatalog()
	catalog.folders["Dad"] = 10
	catalog.instances = []instance{{releaseID: 42, instanceID: 9001, folderID: 10}}
	r := newTestReconciler(catalog)

	if err := r.EnsureFiled(context.Background(), 42, "Dad"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if catalog.moveCalls != 0 {
		t.Errorf("move calls = %d, want 0", catalog.moveCalls)
	}
}

func TestEnsureFiledMovesFromIntake(t *testing.T) {
	catalog := newFakeCatalog()
	catalog.instances = []instance{{releaseID: 42, instanceID: 9001, folderID: 1}}
	r := newTestReconciler(catalog)

	if err := r.EnsureFiled(context.Background(), 42, "Dad"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if catalog.moveCalls != 1 {
		t.Errorf("move calls = %d, want 1", catalog.moveCalls)
	}
	if got := catalog.instances[0].folderID; got != catalog.folders["Dad"] {
		t.Errorf("folder = %d, want %d", got, catalog.folders["Dad"])
	}
}

func TestEnsureFiledMoveConflictIsSuccess(t *testing.T) {
	catalog := newFakeCatalog()
	catalog.instances = []instance{{releaseID: 42, instanceID: 9001, folderID: 1}}
	catalog.moveErr = &httpx.StatusError{Code: 409, Body: "already in folder"}
	r := newTestReconciler(catalog)

	if err := r.EnsureFiled(context.Background(), 42, "Dad"); err != nil {
		t.Fatalf("conflict should be success, got %v", err)
	}
}

func TestEnsureConditionsSetSkipsAliasedInstance(t *testing.T) {
	catalog := newFakeCatalog()
	r := newTestReconciler(catalog)

	err := r.EnsureConditionsSet(context.Background(), discogs.Instance{
		ReleaseID:  42,
		InstanceID: 42,
		FolderID:   1,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if catalog.updateCalls != 0 {
		t.Errorf("update calls = %d, want 0 for aliased instance", catalog.updateCalls)
	}
}

func TestEnsureConditionsSetOnlyBlankFields(t *testing.T) {
	catalog := newFakeCatalog()
	r := newTestReconciler(catalog)

	err := r.EnsureConditionsSet(context.Background(), discogs.Instance{
		ReleaseID:      42,
		InstanceID:     9001,
		FolderID:       1,
		MediaCondition: "Near Mint (NM or M-)",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if catalog.updateCalls != 1 {
		t.Fatalf("update calls = %d, want 1", catalog.updateCalls)
	}
	if got := catalog.updates[2]; got != "Good Plus (G+)" {
		t.Errorf("sleeve value = %q, want default", got)
	}
	if _, ok := catalog.updates[1]; ok {
		t.Error("media field was updated despite being set")
	}
}

func TestEnsureConditionsSetNoopWhenBothSet(t *testing.T) {
	catalog := newFakeCatalog()
	r := newTestReconciler(catalog)

	err := r.EnsureConditionsSet(context.Background(), discogs.Instance{
		ReleaseID:       42,
		InstanceID:      9001,
		FolderID:        1,
		MediaCondition:  "Very Good (VG)",
		SleeveCondition: "Good Plus (G+)",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if catalog.updateCalls != 0 {
		t.Errorf("update calls = %d, want 0", catalog.updateCalls)
	}
}
