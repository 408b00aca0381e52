package discogs

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	gocache "github.com/patrickmn/go-cache"
)

const (
	foldersKey  = "folders"
	fieldIDsKey = "field_ids"
)

// Instance is one physical copy entry in the user's collection. InstanceID
// and ReleaseID are distinct identities; a malformed listing can alias them,
// which the reconciler guards against.
type Instance struct {
	ReleaseID       int
	InstanceID      int
	FolderID        int
	MediaCondition  string
	SleeveCondition string
}

// FolderRelease is the basic information for one release in a folder.
type FolderRelease struct {
	ReleaseID int
	Title     string
	Artist    string
	Year      int
	URL       string
}

// FieldIDs are the collection note field ids for the two condition fields.
type FieldIDs struct {
	Media  int
	Sleeve int
}

type collectionItem struct {
	ID         int `json:"id"`
	InstanceID int `json:"instance_id"`
	FolderID   int `json:"folder_id"`
	Notes      []struct {
		FieldID int    `json:"field_id"`
		Value   string `json:"value"`
	} `json:"notes"`
	BasicInformation struct {
		ID          int    `json:"id"`
		Title       string `json:"title"`
		Year        int    `json:"year"`
		ResourceURL string `json:"resource_url"`
		Artists     []struct {
			Name string `json:"name"`
		} `json:"artists"`
	} `json:"basic_information"`
}

type collectionPage struct {
	Releases   []collectionItem `json:"releases"`
	Pagination Pagination       `json:"pagination"`
}

// Folders returns the user's collection folders as name -> id, memoized
// until a folder creation invalidates it.
func (c *Client) Folders(ctx context.Context) (map[string]int, error) {
	if cached, ok := c.folders.Get(foldersKey); ok {
		return cached.(map[string]int), nil
	}
	var resp struct {
		Folders []struct {
			ID   int    `json:"id"`
			Name string `json:"name"`
		} `json:"folders"`
	}
	err := c.http.GetJSON(ctx, fmt.Sprintf("%s/users/%s/collection/folders", c.baseURL, c.cfg.User), nil, c.headers(), &resp)
	if err != nil {
		return nil, fmt.Errorf("list collection folders: %w", err)
	}
	folders := make(map[string]int, len(resp.Folders))
	for _, f := range resp.Folders {
		folders[f.Name] = f.ID
	}
	c.folders.Set(foldersKey, folders, gocache.NoExpiration)
	return folders, nil
}

// InvalidateFolders drops the memoized folder listing. Called after remote
// folder state changes underneath the cache.
func (c *Client) InvalidateFolders() {
	c.folders.Delete(foldersKey)
}

// CreateFolder creates a collection folder and returns its id. The caller
// handles conflict-as-success; this just reports what the API said.
func (c *Client) CreateFolder(ctx context.Context, name string) (int, error) {
	var resp struct {
		ID int `json:"id"`
	}
	err := c.http.PostJSON(ctx, fmt.Sprintf("%s/users/%s/collection/folders", c.baseURL, c.cfg.User),
		c.headers(), map[string]string{"name": name}, &resp)
	if err != nil {
		return 0, fmt.Errorf("create folder %q: %w", name, err)
	}
	c.InvalidateFolders()
	return resp.ID, nil
}

// GetOrCreateFolder resolves a folder id by name, creating the folder on a
// miss. A create that loses a race to a concurrent creation falls back to a
// fresh name lookup.
func (c *Client) GetOrCreateFolder(ctx context.Context, name string) (int, error) {
	folders, err := c.Folders(ctx)
	if err != nil {
		return 0, err
	}
	if id, ok := folders[name]; ok {
		return id, nil
	}

	c.logger.Info("creating collection folder", "name", name)
	id, err := c.CreateFolder(ctx, name)
	if err == nil {
		return id, nil
	}
	c.InvalidateFolders()
	folders, ferr := c.Folders(ctx)
	if ferr == nil {
		if id, ok := folders[name]; ok {
			return id, nil
		}
	}
	return 0, err
}

// AddToCollection adds a release to a folder and returns the new instance id.
func (c *Client) AddToCollection(ctx context.Context, releaseID, folderID int) (int, error) {
	var resp struct {
		InstanceID int `json:"instance_id"`
		ID         int `json:"id"`
	}
	err := c.http.PostJSON(ctx,
		fmt.Sprintf("%s/users/%s/collection/folders/%d/releases/%d", c.baseURL, c.cfg.User, folderID, releaseID),
		c.headers(), nil, &resp)
	if err != nil {
		return 0, fmt.Errorf("add release %d to folder %d: %w", releaseID, folderID, err)
	}
	if resp.InstanceID != 0 {
		return resp.InstanceID, nil
	}
	return resp.ID, nil
}

// FindInstance scans a folder for an instance of the given release. It
// returns the instance id and the folder the item actually reports itself
// in, which may differ from the folder scanned.
func (c *Client) FindInstance(ctx context.Context, releaseID, folderID int) (instanceID, actualFolderID int, found bool, err error) {
	err = c.eachFolderPage(ctx, folderID, func(item collectionItem) bool {
		if item.BasicInformation.ID != releaseID {
			return true
		}
		instanceID = item.InstanceID
		if instanceID == 0 {
			instanceID = item.ID
		}
		actualFolderID = item.FolderID
		if actualFolderID == 0 {
			actualFolderID = folderID
		}
		found = true
		return false
	})
	if err != nil {
		return 0, 0, false, err
	}
	return instanceID, actualFolderID, found, nil
}

// MoveInstance moves an instance between folders. The Discogs move endpoint
// is addressed to the instance's CURRENT folder, with the target folder id
// in the request body. Moving to the folder it is already in is a no-op.
func (c *Client) MoveInstance(ctx context.Context, releaseID, instanceID, sourceFolderID, targetFolderID int) error {
	if sourceFolderID == targetFolderID {
		return nil
	}
	err := c.http.PostJSON(ctx,
		fmt.Sprintf("%s/users/%s/collection/folders/%d/releases/%d/instances/%d",
			c.baseURL, c.cfg.User, sourceFolderID, releaseID, instanceID),
		c.headers(), map[string]int{"folder_id": targetFolderID}, nil)
	if err != nil {
		return fmt.Errorf("move instance %d (release %d) to folder %d: %w", instanceID, releaseID, targetFolderID, err)
	}
	return nil
}

// ConditionFieldIDs discovers the collection field ids for media and sleeve
// condition, memoized per run.
func (c *Client) ConditionFieldIDs(ctx context.Context) (FieldIDs, error) {
	if cached, ok := c.fields.Get(fieldIDsKey); ok {
		return cached.(FieldIDs), nil
	}
	var resp struct {
		Fields []struct {
			ID   int    `json:"id"`
			Name string `json:"name"`
		} `json:"fields"`
	}
	err := c.http.GetJSON(ctx, fmt.Sprintf("%s/users/%s/collection/fields", c.baseURL, c.cfg.User), nil, c.headers(), &resp)
	if err != nil {
		return FieldIDs{}, fmt.Errorf("list collection fields: %w", err)
	}

	var ids FieldIDs
	for _, f := range resp.Fields {
		name := strings.ToLower(f.Name)
		switch {
		case strings.Contains(name, "media condition"):
			ids.Media = f.ID
		case strings.Contains(name, "sleeve condition"):
			ids.Sleeve = f.ID
		}
	}
	if ids.Media == 0 || ids.Sleeve == 0 {
		names := make([]string, 0, len(resp.Fields))
		for _, f := range resp.Fields {
			names = append(names, f.Name)
		}
		return ids, fmt.Errorf("condition fields not found in collection fields: %s", strings.Join(names, ", "))
	}
	c.fields.Set(fieldIDsKey, ids, gocache.NoExpiration)
	return ids, nil
}

// UpdateInstanceField sets one note field on a collection instance. The
// folder id in the path must be the folder the instance currently lives in.
func (c *Client) UpdateInstanceField(ctx context.Context, folderID, releaseID, instanceID, fieldID int, value string) error {
	err := c.http.PostJSON(ctx,
		fmt.Sprintf("%s/users/%s/collection/folders/%d/releases/%d/instances/%d/fields/%d",
			c.baseURL, c.cfg.User, folderID, releaseID, instanceID, fieldID),
		c.headers(), map[string]string{"value": value}, nil)
	c.pace(releasePace)
	if err != nil {
		return fmt.Errorf("update field %d on instance %d: %w", fieldID, instanceID, err)
	}
	return nil
}

// FolderReleases lists all releases in one folder with their basic
// information, draining every page.
func (c *Client) FolderReleases(ctx context.Context, folderID int) ([]FolderRelease, error) {
	var releases []FolderRelease
	err := c.eachFolderPage(ctx, folderID, func(item collectionItem) bool {
		bi := item.BasicInformation
		if bi.ID == 0 {
			return true
		}
		artist := ""
		if len(bi.Artists) > 0 {
			artist = bi.Artists[0].Name
		}
		releaseURL := bi.ResourceURL
		if releaseURL == "" {
			releaseURL = fmt.Sprintf("https://www.discogs.com/release/%d", bi.ID)
		}
		releases = append(releases, FolderRelease{
			ReleaseID: bi.ID,
			Title:     bi.Title,
			Artist:    artist,
			Year:      bi.Year,
			URL:       releaseURL,
		})
		return true
	})
	if err != nil {
		return nil, err
	}
	return releases, nil
}

// AllInstances lists every instance across all folders, with condition
// values read from the note fields.
func (c *Client) AllInstances(ctx context.Context) ([]Instance, error) {
	fieldIDs, err := c.ConditionFieldIDs(ctx)
	if err != nil {
		return nil, err
	}
	folders, err := c.Folders(ctx)
	if err != nil {
		return nil, err
	}

	var instances []Instance
	for _, folderID := range folders {
		err := c.eachFolderPage(ctx, folderID, func(item collectionItem) bool {
			releaseID := item.BasicInformation.ID
			if releaseID == 0 || item.InstanceID == 0 {
				return true
			}
			actualFolderID := item.FolderID
			if actualFolderID == 0 {
				actualFolderID = folderID
			}
			inst := Instance{
				ReleaseID:  releaseID,
				InstanceID: item.InstanceID,
				FolderID:   actualFolderID,
			}
			for _, note := range item.Notes {
				switch note.FieldID {
				case fieldIDs.Media:
					inst.MediaCondition = note.Value
				case fieldIDs.Sleeve:
					inst.SleeveCondition = note.Value
				}
			}
			instances = append(instances, inst)
			return true
		})
		if err != nil {
			return nil, err
		}
	}
	return instances, nil
}

// CollectionReleaseIDs returns every release id present anywhere in the
// collection, for duplicate detection.
func (c *Client) CollectionReleaseIDs(ctx context.Context) (map[int]bool, error) {
	folders, err := c.Folders(ctx)
	if err != nil {
		return nil, err
	}
	ids := make(map[int]bool)
	for _, folderID := range folders {
		err := c.eachFolderPage(ctx, folderID, func(item collectionItem) bool {
			if item.BasicInformation.ID != 0 {
				ids[item.BasicInformation.ID] = true
			}
			return true
		})
		if err != nil {
			return nil, err
		}
	}
	return ids, nil
}

// eachFolderPage drains the paginated listing of one folder, calling visit
// for each item until it returns false.
func (c *Client) eachFolderPage(ctx context.Context, folderID int, visit func(collectionItem) bool) error {
	page := 1
	for {
		params := url.Values{}
		params.Set("per_page", strconv.Itoa(perPage))
		params.Set("page", strconv.Itoa(page))
		var resp collectionPage
		err := c.http.GetJSON(ctx,
			fmt.Sprintf("%s/users/%s/collection/folders/%d/releases", c.baseURL, c.cfg.User, folderID),
			params, c.headers(), &resp)
		if err != nil {
			return fmt.Errorf("list folder %d page %d: %w", folderID, page, err)
		}
		for _, item := range resp.Releases {
			if !visit(item) {
				return nil
			}
		}
		if resp.Pagination.Page >= resp.Pagination.Pages {
			return nil
		}
		page = resp.Pagination.Page + 1
		c.pace(pagePace)
	}
}
