package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/capiweb/capishare/internal/config"
	"github.com/capiweb/capishare/internal/diskspace"
	"github.com/capiweb/capishare/internal/models"
	"github.com/capiweb/capishare/internal/transfer"
)

type fakeServer struct {
	mu      sync.Mutex
	uploads map[string]string
	folders []string
	archive map[string][]string
	checked []string
}

func (s *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p := strings.TrimPrefix(r.URL.Path, "/api")
	switch {
	case r.Method == "POST" && p == "/transfers/":
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		file, hdr, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		data, _ := io.ReadAll(file)
		if hdr.Filename == "bad.txt" {
			w.WriteHeader(http.StatusBadRequest)
			io.WriteString(w, `{"detail":"rejected"}`)
			return
		}
		s.mu.Lock()
		s.uploads[hdr.Filename] = string(data)
		s.folders = append(s.folders, r.FormValue("folder"))
		s.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
		fmt.Fprintf(w, `{"id":100,"filename":%q,"size":%d}`, hdr.Filename, len(data))

	case r.Method == "GET" && p == "/transfers/5/download/":
		w.Header().Set("Content-Length", "5")
		io.WriteString(w, "hello")

	case r.Method == "GET" && p == "/transfers/8/download/":
		io.WriteString(w, "zipdata")

	case r.Method == "GET" && p == "/transfers/8/check_archive/":
		s.mu.Lock()
		s.checked = append(s.checked, p)
		s.mu.Unlock()
		io.WriteString(w, `{"has_executables":true,"executable_files":["run.exe"]}`)

	case r.Method == "GET" && p == "/folders/9/download/":
		w.Header().Set("X-Total-Size", "6")
		w.(http.Flusher).Flush()
		io.WriteString(w, "folder")

	case r.Method == "POST" && p == "/transfers/download_multiple/":
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.mu.Lock()
		s.archive = map[string][]string{
			"file_ids":   r.PostForm["file_ids"],
			"folder_ids": r.PostForm["folder_ids"],
		}
		s.mu.Unlock()
		io.WriteString(w, "archive")

	case r.Method == "GET" && p == "/transfers/7/download/":
		io.WriteString(w, "png-bytes")

	default:
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"detail":"not found"}`)
	}
}

func newTestApp(t *testing.T) (*App, *fakeServer) {
	t.Helper()
	fs := &fakeServer{uploads: map[string]string{}}
	srv := httptest.NewServer(fs)
	t.Cleanup(srv.Close)

	cfg := config.NewConfig()
	cfg.APIBaseURL = srv.URL + "/api"
	cfg.APIToken = "tok"
	cfg.Username = "alice"
	cfg.DownloadDir = filepath.Join(t.TempDir(), "downloads")
	cfg.ThumbMinSpacingMs = 1

	app, err := NewApp(cfg, nil)
	if err != nil {
		t.Fatalf("NewApp() error = %v", err)
	}
	t.Cleanup(app.Close)
	return app, fs
}

func waitBatch(t *testing.T, app *App, b Batch) transfer.BatchResult {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := app.Transfers().For(b.Kind).Wait(ctx, b.ID)
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	return res
}

func writeTemp(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestUploadBatch(t *testing.T) {
	app, fs := newTestApp(t)
	dir := t.TempDir()
	paths := []string{
		writeTemp(t, dir, "a.txt", "alpha"),
		writeTemp(t, dir, "b.txt", "bravo"),
		writeTemp(t, dir, "bad.txt", "nope"),
	}

	b, err := app.Upload(paths, models.ID(42))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if b.Len() != 3 || b.Kind != transfer.KindUpload {
		t.Fatalf("batch = %+v", b)
	}

	res := waitBatch(t, app, b)
	if res.Completed != 2 || res.Failed != 1 {
		t.Errorf("result = %+v, want 2 completed 1 failed", res)
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.uploads["a.txt"] != "alpha" || fs.uploads["b.txt"] != "bravo" {
		t.Errorf("uploads = %v", fs.uploads)
	}
	for _, f := range fs.folders {
		if f != "42" {
			t.Errorf("folder field = %q, want 42", f)
		}
	}
	if p := app.Transfers().Uploads().OverallProgress(); p != 100 {
		t.Errorf("overall progress = %d, want 100", p)
	}
}

func TestUploadRejectsDirectory(t *testing.T) {
	app, _ := newTestApp(t)
	_, err := app.Upload([]string{t.TempDir()}, nil)
	if !errors.Is(err, ErrIsDirectory) {
		t.Errorf("error = %v, want ErrIsDirectory", err)
	}
	if _, err := app.Upload(nil, nil); !errors.Is(err, ErrNothingToTransfer) {
		t.Errorf("empty upload error = %v", err)
	}
}

func TestDownloadFileWritesDestination(t *testing.T) {
	app, _ := newTestApp(t)
	b, err := app.EnqueueDownloads([]transfer.Payload{app.FilePayload(&models.File{ID: 5, Filename: "../hello.txt"})})
	if err != nil {
		t.Fatal(err)
	}
	if res := waitBatch(t, app, b); !res.AllCompleted() {
		t.Fatalf("result = %+v", res)
	}

	dest := filepath.Join(app.Config().DownloadDir, "hello.txt")
	data, err := os.ReadFile(dest)
	if err != nil || string(data) != "hello" {
		t.Fatalf("ReadFile = %q, %v", data, err)
	}
	if _, err := os.Stat(dest + ".part"); !os.IsNotExist(err) {
		t.Error("partial file left behind")
	}
	info, _ := app.Transfers().Downloads().Task(b.Tasks[0].ID)
	if info.Progress != 100 || info.Loaded != 5 {
		t.Errorf("task = %+v", info)
	}
}

func TestDownloadFailureRemovesPartial(t *testing.T) {
	app, _ := newTestApp(t)
	b, _ := app.EnqueueDownloads([]transfer.Payload{app.FilePayload(&models.File{ID: 404, Filename: "gone.txt"})})
	if res := waitBatch(t, app, b); res.Failed != 1 {
		t.Fatalf("result = %+v, want 1 failed", res)
	}
	dest := filepath.Join(app.Config().DownloadDir, "gone.txt")
	for _, p := range []string{dest, dest + ".part"} {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("%s should not exist", p)
		}
	}
	info, _ := app.Transfers().Downloads().Task(b.Tasks[0].ID)
	if info.State != transfer.StateError || info.Error == "" {
		t.Errorf("task = %+v", info)
	}
}

func TestDownloadFolderAndArchive(t *testing.T) {
	app, fs := newTestApp(t)
	b, err := app.EnqueueDownloads([]transfer.Payload{
		app.FolderPayload(&models.Folder{ID: 9, Name: "Docs"}),
		app.ArchivePayload("archive_3_items.zip", []int64{1, 2}, []int64{9}),
	})
	if err != nil {
		t.Fatal(err)
	}
	if res := waitBatch(t, app, b); !res.AllCompleted() {
		t.Fatalf("result = %+v", res)
	}

	dir := app.Config().DownloadDir
	if data, _ := os.ReadFile(filepath.Join(dir, "Docs.zip")); string(data) != "folder" {
		t.Errorf("folder zip = %q", data)
	}
	if data, _ := os.ReadFile(filepath.Join(dir, "archive_3_items.zip")); string(data) != "archive" {
		t.Errorf("archive = %q", data)
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()
	files := append([]string(nil), fs.archive["file_ids"]...)
	sort.Strings(files)
	if strings.Join(files, ",") != "1,2" || strings.Join(fs.archive["folder_ids"], ",") != "9" {
		t.Errorf("archive form = %v", fs.archive)
	}
}

func TestDownloadFileChecksArchives(t *testing.T) {
	app, fs := newTestApp(t)
	if err := app.DownloadFile(context.Background(), &models.File{ID: 8, Filename: "bundle.zip"}); err != nil {
		t.Fatal(err)
	}
	if err := app.DownloadFile(context.Background(), &models.File{ID: 5, Filename: "plain.txt"}); err != nil {
		t.Fatal(err)
	}
	fs.mu.Lock()
	checked := len(fs.checked)
	fs.mu.Unlock()
	if checked != 1 {
		t.Errorf("archive checks = %d, want 1", checked)
	}
}

func TestThumbnail(t *testing.T) {
	app, _ := newTestApp(t)
	if c := app.Thumbnail(&models.File{ID: 5, Filename: "notes.txt"}, nil, nil); c != nil {
		t.Error("non-image should have no thumbnail")
	}

	got := make(chan []byte, 1)
	c := app.Thumbnail(&models.File{ID: 7, Filename: "cat.png"}, nil, func(b []byte) { got <- b })
	if c == nil {
		t.Fatal("image should have a thumbnail")
	}
	defer c.Close()
	c.Start(nil)

	select {
	case b := <-got:
		if string(b) != "png-bytes" {
			t.Errorf("thumbnail = %q", b)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("thumbnail not loaded")
	}
	if _, ok := app.Loader().Cache().Get("/transfers/7/download/"); !ok {
		t.Error("thumbnail not cached")
	}
}

func TestClosedApp(t *testing.T) {
	app, _ := newTestApp(t)
	app.Close()
	app.Close()
	if _, err := app.EnqueueDownloads([]transfer.Payload{{Name: "x"}}); !errors.Is(err, ErrClosed) {
		t.Errorf("error = %v, want ErrClosed", err)
	}
}

func TestDownloadFileChecksDiskSpace(t *testing.T) {
	app, _ := newTestApp(t)
	if diskspace.Available(app.Config().DownloadDir) == 0 {
		t.Skip("free space unknown on this file system")
	}
	err := app.DownloadFile(context.Background(), &models.File{ID: 5, Filename: "huge.bin", Size: 1 << 62})
	if !diskspace.IsInsufficientSpaceError(err) {
		t.Fatalf("error = %v, want insufficient space", err)
	}
	if n := len(app.Transfers().Downloads().Snapshot().Tasks); n != 0 {
		t.Errorf("%d tasks enqueued, want 0", n)
	}
}

func TestBatchDownloaderRecordsBatch(t *testing.T) {
	app, _ := newTestApp(t)
	dl := app.BatchDownloader()
	if dl.Batch().Len() != 0 {
		t.Fatal("fresh downloader should have no batch")
	}
	if err := dl.DownloadFile(context.Background(), &models.File{ID: 5, Filename: "hello.txt"}); err != nil {
		t.Fatal(err)
	}
	b := dl.Batch()
	if b.Kind != transfer.KindDownload || b.Len() != 1 {
		t.Fatalf("batch = %+v", b)
	}
	if res := waitBatch(t, app, b); !res.AllCompleted() {
		t.Errorf("result = %+v", res)
	}
}

func TestEnqueueDownloadsRejectsEscapingDestination(t *testing.T) {
	app, _ := newTestApp(t)
	outside := filepath.Join(filepath.Dir(app.Config().DownloadDir), "elsewhere.txt")
	_, err := app.EnqueueDownloads([]transfer.Payload{{Name: "elsewhere.txt", URL: "/transfers/5/download/", Dest: outside}})
	if err == nil {
		t.Fatal("expected destination outside the download directory to be refused")
	}
	if _, err := app.EnqueueDownloads([]transfer.Payload{{Name: "x"}}); err == nil {
		t.Error("expected empty destination to be refused")
	}
}
