package navigator

import (
	"context"
	"errors"
	"sync"

	"github.com/capiweb/capishare/internal/models"
)

var errFake = errors.New("fake failure")

// fakeAPI is an in-memory backend that records every call.
type fakeAPI struct {
	mu      sync.Mutex
	files   map[int64]*models.File
	folders map[int64]*models.Folder
	nextID  int64
	calls   []string
	scopes  []models.Scope

	failMove     bool
	failMark     bool
	failDelete   map[int64]bool
	block        map[int64]chan struct{}
	entered      chan int64
	markGate     chan struct{}
	markedFolder []int64
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		files:      make(map[int64]*models.File),
		folders:    make(map[int64]*models.Folder),
		nextID:     1000,
		failDelete: make(map[int64]bool),
		block:      make(map[int64]chan struct{}),
	}
}

func (f *fakeAPI) addFolder(id int64, name string, parent *int64) *models.Folder {
	folder := &models.Folder{ID: id, Name: name, ParentID: parent}
	f.folders[id] = folder
	return folder.Clone()
}

func (f *fakeAPI) addFile(id int64, name string, folder *int64) *models.File {
	file := &models.File{ID: id, Filename: name, Folder: folder}
	f.files[id] = file
	return file.Clone()
}

func (f *fakeAPI) record(call string) {
	f.calls = append(f.calls, call)
}

func (f *fakeAPI) count(call string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (f *fakeAPI) mutations() int {
	n := 0
	for _, c := range []string{"MoveFileToFolder", "MoveFolderToFolder", "CreateFolder", "RenameFile", "RenameFolder", "DeleteFile", "DeleteFolder"} {
		n += f.count(c)
	}
	return n
}

func (f *fakeAPI) GetFolder(ctx context.Context, id int64) (*models.Folder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GetFolder")
	folder, ok := f.folders[id]
	if !ok {
		return nil, errFake
	}
	return folder.Clone(), nil
}

func (f *fakeAPI) ListFolders(ctx context.Context, parentID *int64, scope models.Scope) ([]*models.Folder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ListFolders")
	var out []*models.Folder
	for _, folder := range f.folders {
		if models.SameID(folder.ParentID, parentID) {
			out = append(out, folder.Clone())
		}
	}
	return out, nil
}

func (f *fakeAPI) ListFiles(ctx context.Context, folderID *int64, scope models.Scope) ([]*models.File, error) {
	f.mu.Lock()
	f.record("ListFiles")
	f.scopes = append(f.scopes, scope)
	var gate chan struct{}
	if folderID != nil {
		gate = f.block[*folderID]
	}
	entered := f.entered
	f.mu.Unlock()

	if gate != nil {
		if entered != nil {
			entered <- *folderID
		}
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.File
	for _, file := range f.files {
		if models.SameID(file.Folder, folderID) {
			out = append(out, file.Clone())
		}
	}
	return out, nil
}

func (f *fakeAPI) CreateFolder(ctx context.Context, name string, parentID *int64) (*models.Folder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CreateFolder")
	f.nextID++
	folder := &models.Folder{ID: f.nextID, Name: name, ParentID: parentID}
	f.folders[folder.ID] = folder
	return folder.Clone(), nil
}

func (f *fakeAPI) RenameFolder(ctx context.Context, id int64, name string) (*models.Folder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("RenameFolder")
	folder, ok := f.folders[id]
	if !ok {
		return nil, errFake
	}
	folder.Name = name
	return folder.Clone(), nil
}

func (f *fakeAPI) RenameFile(ctx context.Context, id int64, name string) (*models.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("RenameFile")
	file, ok := f.files[id]
	if !ok {
		return nil, errFake
	}
	file.Filename = name
	return file.Clone(), nil
}

func (f *fakeAPI) DeleteFolder(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("DeleteFolder")
	if f.failDelete[id] {
		return errFake
	}
	delete(f.folders, id)
	return nil
}

func (f *fakeAPI) DeleteFile(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("DeleteFile")
	if f.failDelete[id] {
		return errFake
	}
	delete(f.files, id)
	return nil
}

func (f *fakeAPI) MoveFileToFolder(ctx context.Context, id int64, folderID *int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("MoveFileToFolder")
	if f.failMove {
		return errFake
	}
	f.files[id].Folder = folderID
	return nil
}

func (f *fakeAPI) MoveFolderToFolder(ctx context.Context, id int64, parentID *int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("MoveFolderToFolder")
	if f.failMove {
		return errFake
	}
	f.folders[id].ParentID = parentID
	return nil
}

func (f *fakeAPI) MarkFolderContentsViewed(ctx context.Context, id int64) error {
	f.mu.Lock()
	gate := f.markGate
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("MarkFolderContentsViewed")
	f.markedFolder = append(f.markedFolder, id)
	return nil
}

func (f *fakeAPI) marked() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.markedFolder...)
}

func (f *fakeAPI) MarkFileViewed(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("MarkFileViewed")
	if f.failMark {
		return errFake
	}
	f.files[id].IsViewed = true
	return nil
}

// fakeDownloader records what BulkDownload asked for.
type fakeDownloader struct {
	files     []int64
	folders   []int64
	archive   string
	fileIDs   []int64
	folderIDs []int64
}

func (d *fakeDownloader) DownloadFile(ctx context.Context, file *models.File) error {
	d.files = append(d.files, file.ID)
	return nil
}

func (d *fakeDownloader) DownloadFolder(ctx context.Context, folder *models.Folder) error {
	d.folders = append(d.folders, folder.ID)
	return nil
}

func (d *fakeDownloader) DownloadArchive(ctx context.Context, name string, fileIDs, folderIDs []int64) error {
	d.archive = name
	d.fileIDs = fileIDs
	d.folderIDs = folderIDs
	return nil
}
