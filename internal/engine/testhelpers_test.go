package engine

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/gnomeskillet/kiosk/internal/remote"
)

// fakeStore is an in-memory remote.Store that records call counts per
// (parent, name) pair and can be scripted to fail on a given file name.
type fakeStore struct {
	mu       sync.Mutex
	nextID   int
	children map[string][]remote.Node // parentID -> nodes
	contents map[string][]byte        // file id -> data

	listCalls         map[string]int
	createFolderCalls map[string]int

	failOnName string // operations on this name return an error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		children:          make(map[string][]remote.Node),
		contents:          make(map[string][]byte),
		listCalls:         make(map[string]int),
		createFolderCalls: make(map[string]int),
	}
}

func callKey(parentID, name string) string { return parentID + "/" + name }

// seedFolder puts an existing folder under parentID and returns its id.
func (f *fakeStore) seedFolder(name, parentID string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.newID()
	f.children[parentID] = append(f.children[parentID], remote.Node{
		ID: id, Name: name, MimeType: remote.FolderMimeType,
	})
	return id
}

// seedFile puts an existing file under parentID and returns its id.
func (f *fakeStore) seedFile(name, parentID string, data []byte) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.newID()
	f.children[parentID] = append(f.children[parentID], remote.Node{
		ID: id, Name: name, MimeType: "application/octet-stream",
	})
	f.contents[id] = data
	return id
}

func (f *fakeStore) newID() string {
	f.nextID++
	return fmt.Sprintf("id-%d", f.nextID)
}

func (f *fakeStore) ListChildren(_ context.Context, parentID, name string) ([]remote.Node, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls[callKey(parentID, name)]++
	if name != "" && name == f.failOnName {
		return nil, fmt.Errorf("fake store: list %s failed", name)
	}

	if name == "" {
		return append([]remote.Node(nil), f.children[parentID]...), nil
	}
	var out []remote.Node
	for _, n := range f.children[parentID] {
		if n.Name == name {
			out = append(out, n)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateFolder(_ context.Context, name, parentID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createFolderCalls[callKey(parentID, name)]++
	if name == f.failOnName {
		return "", fmt.Errorf("fake store: create folder %s failed", name)
	}
	id := f.newID()
	f.children[parentID] = append(f.children[parentID], remote.Node{
		ID: id, Name: name, MimeType: remote.FolderMimeType,
	})
	return id, nil
}

func (f *fakeStore) CreateFile(_ context.Context, name, parentID string, r io.Reader, _ int64, mimeType string) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if name == f.failOnName {
		return "", fmt.Errorf("fake store: create file %s failed", name)
	}
	id := f.newID()
	f.children[parentID] = append(f.children[parentID], remote.Node{
		ID: id, Name: name, MimeType: mimeType,
	})
	f.contents[id] = data
	return id, nil
}

func (f *fakeStore) UpdateFile(_ context.Context, id string, r io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.contents[id]; !ok {
		return fmt.Errorf("fake store: update of unknown id %s", id)
	}
	f.contents[id] = data
	return nil
}
