package sync

import (
	"fmt"
	goSync "sync"

	"github.com/driftsync/driftsync/pkg/drive"
)

// fakeDrive is an in-memory drive used by the daemon tests. Listing order
// follows the order ids were registered in children.
type fakeDrive struct {
	lock goSync.Mutex

	objects  map[string]drive.Meta
	children map[string][]string
	contents map[string][]byte

	// authFailures makes the next N remote calls fail with ErrUnauthorized.
	authFailures int
	refreshCalls int

	// vanished ids are still listed by their parent, but GetObject can no
	// longer find them. Simulates deletion mid-walk.
	vanished map[string]bool

	listed    []string
	downloads []string
	creates   []string
	updates   []string
	trashes   []string

	nextID int
}

func newFakeDrive() *fakeDrive {
	return &fakeDrive{
		objects:  map[string]drive.Meta{},
		children: map[string][]string{},
		contents: map[string][]byte{},
	}
}

// addFolder registers a folder object under the given parent.
func (f *fakeDrive) addFolder(parentID, id, name, version string) {
	f.objects[id] = drive.Meta{
		ID: id, Name: name, Version: version, IsFolder: true,
	}
	f.children[parentID] = append(f.children[parentID], id)
}

// addFile registers a file object under the given parent.
func (f *fakeDrive) addFile(parentID, id, name, version string, contents []byte) {
	f.objects[id] = drive.Meta{
		ID: id, Name: name, Version: version, ContentHash: hashBytes(contents),
	}
	f.contents[id] = contents
	f.children[parentID] = append(f.children[parentID], id)
}

func (f *fakeDrive) auth() error {
	if f.authFailures > 0 {
		f.authFailures--
		return drive.ErrUnauthorized
	}
	return nil
}

func (f *fakeDrive) GetObject(id string) (*drive.Meta, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if err := f.auth(); err != nil {
		return nil, err
	}

	meta, ok := f.objects[id]
	if !ok || f.vanished[id] {
		return nil, nil
	}
	return &meta, nil
}

func (f *fakeDrive) ListChildren(parentID string) ([]drive.Meta, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if err := f.auth(); err != nil {
		return nil, err
	}

	f.listed = append(f.listed, parentID)
	var metas []drive.Meta
	for _, id := range f.children[parentID] {
		metas = append(metas, f.objects[id])
	}
	return metas, nil
}

func (f *fakeDrive) Download(id string) ([]byte, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if err := f.auth(); err != nil {
		return nil, err
	}

	f.downloads = append(f.downloads, id)
	return f.contents[id], nil
}

func (f *fakeDrive) Upload(parentID, name string, contents []byte) (*drive.Meta, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if err := f.auth(); err != nil {
		return nil, err
	}

	f.nextID++
	meta := drive.Meta{
		ID:          fmt.Sprintf("up-%d", f.nextID),
		Name:        name,
		Version:     "1",
		ContentHash: hashBytes(contents),
	}
	f.objects[meta.ID] = meta
	f.contents[meta.ID] = contents
	f.children[parentID] = append(f.children[parentID], meta.ID)
	f.creates = append(f.creates, name)
	return &meta, nil
}

func (f *fakeDrive) UpdateContent(id string, contents []byte) (*drive.Meta, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if err := f.auth(); err != nil {
		return nil, err
	}

	meta := f.objects[id]
	meta.Version += "'"
	meta.ContentHash = hashBytes(contents)
	f.objects[id] = meta
	f.contents[id] = contents
	f.updates = append(f.updates, id)
	return &meta, nil
}

func (f *fakeDrive) CreateFolder(parentID, name string) (*drive.Meta, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if err := f.auth(); err != nil {
		return nil, err
	}

	f.nextID++
	meta := drive.Meta{
		ID:       fmt.Sprintf("dir-%d", f.nextID),
		Name:     name,
		Version:  "1",
		IsFolder: true,
	}
	f.objects[meta.ID] = meta
	f.children[parentID] = append(f.children[parentID], meta.ID)
	f.creates = append(f.creates, name)
	return &meta, nil
}

func (f *fakeDrive) Trash(id string) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	if err := f.auth(); err != nil {
		return err
	}

	f.trashes = append(f.trashes, id)
	return nil
}

func (f *fakeDrive) FindRootFolder(name string) (*drive.Meta, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if err := f.auth(); err != nil {
		return nil, err
	}

	meta := f.objects["root"]
	return &meta, nil
}

func (f *fakeDrive) RefreshSession() (drive.Session, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	f.refreshCalls++
	return drive.Session{AccessToken: "fresh", RefreshToken: "long-lived"}, nil
}

func (f *fakeDrive) Ping() (string, error) {
	return "test", nil
}

func (f *fakeDrive) listCount() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return len(f.listed)
}

func (f *fakeDrive) refreshCount() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.refreshCalls
}

func (f *fakeDrive) downloadCount() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return len(f.downloads)
}
