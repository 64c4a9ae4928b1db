package engine

import (
	"context"

	"github.com/gnomeskillet/kiosk/internal/remote"
)

// FolderIndex resolves remote folders by name under a parent, creating them
// when absent. Results are memoized so one sync run issues at most one
// lookup-or-create per distinct (parent, name) pair.
//
// Duplicate remote folders are tolerated: the first listed match wins and no
// reconciliation happens. Two racing runs may still create duplicates; that is
// an accepted limitation, not a failure.
type FolderIndex struct {
	store remote.Store
	memo  map[folderKey]string
}

type folderKey struct {
	parentID string
	name     string
}

// NewFolderIndex creates an index backed by store.
func NewFolderIndex(store remote.Store) *FolderIndex {
	return &FolderIndex{
		store: store,
		memo:  make(map[folderKey]string),
	}
}

// EnsureFolder returns the id of the folder called name under parentID,
// creating it when no folder by that name exists. created reports whether a
// new remote folder was made.
func (fi *FolderIndex) EnsureFolder(ctx context.Context, name, parentID string) (id string, created bool, err error) {
	key := folderKey{parentID: parentID, name: name}
	if id, ok := fi.memo[key]; ok {
		return id, false, nil
	}

	children, err := fi.store.ListChildren(ctx, parentID, name)
	if err != nil {
		return "", false, err
	}
	for _, child := range children {
		if child.IsFolder() {
			fi.memo[key] = child.ID
			return child.ID, false, nil
		}
	}

	id, err = fi.store.CreateFolder(ctx, name, parentID)
	if err != nil {
		return "", false, err
	}
	fi.memo[key] = id
	return id, true, nil
}
