// Package collection holds the idempotent reconciliation operations against
// the remote Discogs collection: ensure a release is present, ensure it is
// filed in its owner's folder, ensure condition fields are set. All three are
// safe to re-run; none of them ever removes anything.
package collection

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Slavster/vinyl-list/internal/discogs"
	"github.com/Slavster/vinyl-list/internal/httpx"
)

// Catalog is the slice of the Discogs client the reconciler needs.
type Catalog interface {
	FindInstance(ctx context.Context, releaseID, folderID int) (instanceID, actualFolderID int, found bool, err error)
	AddToCollection(ctx context.Context, releaseID, folderID int) (int, error)
	GetOrCreateFolder(ctx context.Context, name string) (int, error)
	MoveInstance(ctx context.Context, releaseID, instanceID, sourceFolderID, targetFolderID int) error
	ConditionFieldIDs(ctx context.Context) (discogs.FieldIDs, error)
	UpdateInstanceField(ctx context.Context, folderID, releaseID, instanceID, fieldID int, value string) error
}

// Reconciler drives the three ensure operations.
type Reconciler struct {
	catalog        Catalog
	intakeFolderID int
	mediaDefault   string
	sleeveDefault  string
	logger         *slog.Logger
}

// NewReconciler builds a reconciler. intakeFolderID is the folder new
// additions land in; mediaDefault and sleeveDefault are the condition values
// written into blank fields.
func NewReconciler(catalog Catalog, intakeFolderID int, mediaDefault, sleeveDefault string, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		catalog:        catalog,
		intakeFolderID: intakeFolderID,
		mediaDefault:   mediaDefault,
		sleeveDefault:  sleeveDefault,
		logger:         logger,
	}
}

// EnsureInCollection makes sure one instance of the release exists,
// returning its instance id and current folder. An existing instance is a
// no-op; an add that reports a conflict is treated as success and followed
// by a fresh lookup.
func (r *Reconciler) EnsureInCollection(ctx context.Context, releaseID int) (instanceID, folderID int, err error) {
	instanceID, folderID, found, err := r.catalog.FindInstance(ctx, releaseID, r.intakeFolderID)
	if err != nil {
		return 0, 0, fmt.Errorf("look up release %d: %w", releaseID, err)
	}
	if found {
		r.logger.Debug("release already in collection", "release", releaseID, "instance", instanceID)
		return instanceID, folderID, nil
	}

	instanceID, err = r.catalog.AddToCollection(ctx, releaseID, r.intakeFolderID)
	if err != nil {
		if !httpx.IsConflict(err) {
			return 0, 0, fmt.Errorf("add release %d: %w", releaseID, err)
		}
		r.logger.Debug("add reported conflict, treating as present", "release", releaseID)
		instanceID, folderID, found, err = r.catalog.FindInstance(ctx, releaseID, r.intakeFolderID)
		if err != nil {
			return 0, 0, fmt.Errorf("re-find release %d after conflict: %w", releaseID, err)
		}
		if !found {
			return 0, 0, fmt.Errorf("release %d reported as already added but not found in folder %d", releaseID, r.intakeFolderID)
		}
		return instanceID, folderID, nil
	}
	r.logger.Info("added release to collection", "release", releaseID, "instance", instanceID)
	return instanceID, r.intakeFolderID, nil
}

// EnsureFiled moves the release's instance into the owner's folder, creating
// the folder if needed. An instance already in the target folder triggers
// zero move calls; a conflict from the move is success.
func (r *Reconciler) EnsureFiled(ctx context.Context, releaseID int, owner string) error {
	if owner == "" {
		return nil
	}
	targetID, err := r.catalog.GetOrCreateFolder(ctx, owner)
	if err != nil {
		return fmt.Errorf("resolve folder for %q: %w", owner, err)
	}

	instanceID, currentFolderID, found, err := r.catalog.FindInstance(ctx, releaseID, r.intakeFolderID)
	if err != nil {
		return fmt.Errorf("locate release %d for filing: %w", releaseID, err)
	}
	if !found {
		// Already filed somewhere else, or never added; check the target.
		instanceID, currentFolderID, found, err = r.catalog.FindInstance(ctx, releaseID, targetID)
		if err != nil {
			return fmt.Errorf("locate release %d in folder %q: %w", releaseID, owner, err)
		}
		if !found {
			return fmt.Errorf("release %d has no collection instance to file", releaseID)
		}
	}
	if currentFolderID == targetID {
		r.logger.Debug("release already filed", "release", releaseID, "folder", owner)
		return nil
	}

	if err := r.catalog.MoveInstance(ctx, releaseID, instanceID, currentFolderID, targetID); err != nil {
		if httpx.IsConflict(err) {
			r.logger.Debug("move reported conflict, treating as filed", "release", releaseID, "folder", owner)
			return nil
		}
		return fmt.Errorf("file release %d into %q: %w", releaseID, owner, err)
	}
	r.logger.Info("filed release", "release", releaseID, "instance", instanceID, "folder", owner)
	return nil
}

// EnsureConditionsSet backfills blank media/sleeve condition fields on one
// instance. An instance whose instance id equals its release id is a known
// malformed-listing shape and is skipped before any remote call.
func (r *Reconciler) EnsureConditionsSet(ctx context.Context, inst discogs.Instance) error {
	if inst.InstanceID == inst.ReleaseID {
		r.logger.Warn("skipping instance aliasing its release id", "release", inst.ReleaseID, "instance", inst.InstanceID)
		return nil
	}
	if inst.MediaCondition != "" && inst.SleeveCondition != "" {
		return nil
	}

	fieldIDs, err := r.catalog.ConditionFieldIDs(ctx)
	if err != nil {
		return fmt.Errorf("discover condition fields: %w", err)
	}
	if inst.MediaCondition == "" {
		if err := r.catalog.UpdateInstanceField(ctx, inst.FolderID, inst.ReleaseID, inst.InstanceID, fieldIDs.Media, r.mediaDefault); err != nil {
			return fmt.Errorf("set media condition on instance %d: %w", inst.InstanceID, err)
		}
		r.logger.Info("set media condition", "release", inst.ReleaseID, "instance", inst.InstanceID, "value", r.mediaDefault)
	}
	if inst.SleeveCondition == "" {
		if err := r.catalog.UpdateInstanceField(ctx, inst.FolderID, inst.ReleaseID, inst.InstanceID, fieldIDs.Sleeve, r.sleeveDefault); err != nil {
			return fmt.Errorf("set sleeve condition on instance %d: %w", inst.InstanceID, err)
		}
		r.logger.Info("set sleeve condition", "release", inst.ReleaseID, "instance", inst.InstanceID, "value", r.sleeveDefault)
	}
	return nil
}
