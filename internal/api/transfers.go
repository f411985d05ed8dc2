package api

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	nethttp "net/http"
	"net/url"
	"strconv"

	"github.com/capiweb/capishare/internal/constants"
	"github.com/capiweb/capishare/internal/models"
	"github.com/capiweb/capishare/internal/util/buffers"
)

// ProgressFunc receives cumulative bytes moved and the total, or -1 when the
// total is unknown.
type ProgressFunc func(loaded, total int64)

// UploadRequest describes one multipart upload.
type UploadRequest struct {
	Filename  string
	Body      io.Reader
	Size      int64
	FolderID  *int64
	Recipient string // defaults to the configured username
	Owner     string
}

// progressReader reports cumulative reads to onProgress.
type progressReader struct {
	r          io.Reader
	loaded     int64
	total      int64
	onProgress ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.loaded += int64(n)
		if p.onProgress != nil {
			p.onProgress(p.loaded, p.total)
		}
	}
	return n, err
}

// UploadFile streams a multipart POST to /transfers/. It is never retried.
func (c *Client) UploadFile(ctx context.Context, req UploadRequest, onProgress ProgressFunc) (*models.File, error) {
	recipient := req.Recipient
	if recipient == "" {
		recipient = c.config.Username
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		err := writeUploadForm(mw, req, recipient, &progressReader{r: req.Body, total: req.Size, onProgress: onProgress})
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	httpReq, err := nethttp.NewRequestWithContext(ctx, "POST", c.ResolveURL("/transfers/"), pr)
	if err != nil {
		pr.Close()
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.send(ctx, c.transferClient, httpReq)
	if err != nil {
		pr.CloseWithError(err)
		return nil, err
	}
	// Unblocks the form writer if the server answered before reading the body.
	defer pr.Close()

	var file models.File
	if err := decodeJSON(resp, "upload file", &file); err != nil {
		return nil, err
	}
	return &file, nil
}

func writeUploadForm(mw *multipart.Writer, req UploadRequest, recipient string, body io.Reader) error {
	if recipient != "" {
		if err := mw.WriteField("recipient_username", recipient); err != nil {
			return err
		}
	}
	if req.FolderID != nil {
		if err := mw.WriteField("folder", models.FormatID(req.FolderID)); err != nil {
			return err
		}
	}
	if req.Owner != "" {
		if err := mw.WriteField("owner", req.Owner); err != nil {
			return err
		}
	}
	part, err := mw.CreateFormFile("file", req.Filename)
	if err != nil {
		return err
	}
	buf := buffers.GetCopyBuffer()
	defer buffers.PutCopyBuffer(buf)
	_, err = io.CopyBuffer(part, body, *buf)
	return err
}

// FileDownloadURL returns the download URL of a file. Image files also use it
// as their thumbnail URL.
func (c *Client) FileDownloadURL(id int64) string {
	return c.ResolveURL(fmt.Sprintf("/transfers/%d/download/", id))
}

// FolderDownloadURL returns the zip download URL of a folder.
func (c *Client) FolderDownloadURL(id int64) string {
	return c.ResolveURL(fmt.Sprintf("/folders/%d/download/", id))
}

// Download streams a GET of rawURL into w and returns the number of bytes written.
func (c *Client) Download(ctx context.Context, rawURL string, w io.Writer, onProgress ProgressFunc) (int64, error) {
	req, err := nethttp.NewRequestWithContext(ctx, "GET", c.ResolveURL(rawURL), nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.send(ctx, c.transferClient, req)
	if err != nil {
		return 0, err
	}
	return copyBody(resp, "download", w, onProgress)
}

// DownloadMultiple requests one zip of several files and folders.
func (c *Client) DownloadMultiple(ctx context.Context, fileIDs, folderIDs []int64, w io.Writer, onProgress ProgressFunc) (int64, error) {
	form := url.Values{}
	for _, id := range fileIDs {
		form.Add("file_ids", strconv.FormatInt(id, 10))
	}
	for _, id := range folderIDs {
		form.Add("folder_ids", strconv.FormatInt(id, 10))
	}
	resp, err := c.doForm(ctx, c.transferClient, "POST", "/transfers/download_multiple/", form)
	if err != nil {
		return 0, err
	}
	return copyBody(resp, "download archive", w, onProgress)
}

// copyBody writes the response body to w with progress. The total comes from
// Content-Length, or X-Total-Size for streamed folder archives.
func copyBody(resp *nethttp.Response, op string, w io.Writer, onProgress ProgressFunc) (int64, error) {
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, newAPIError(resp, op)
	}

	total := ResponseTotal(resp)
	body := &progressReader{r: resp.Body, total: total, onProgress: onProgress}
	buf := buffers.GetCopyBuffer()
	defer buffers.PutCopyBuffer(buf)
	n, err := io.CopyBuffer(w, body, *buf)
	if err != nil {
		return n, fmt.Errorf("%s interrupted after %d bytes: %w", op, n, err)
	}
	return n, nil
}

// ResponseTotal returns the expected body size, or -1 when unknown.
func ResponseTotal(resp *nethttp.Response) int64 {
	if resp.ContentLength > 0 {
		return resp.ContentLength
	}
	if s := resp.Header.Get("X-Total-Size"); s != "" {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil && n > 0 {
			return n
		}
	}
	return -1
}

// FetchAsset downloads a thumbnail into memory. Bodies over the size cap are rejected.
func (c *Client) FetchAsset(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := nethttp.NewRequestWithContext(ctx, "GET", c.ResolveURL(rawURL), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.send(ctx, c.transferClient, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != nethttp.StatusOK {
		return nil, newAPIError(resp, "fetch asset")
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, constants.ThumbnailMaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read asset: %w", err)
	}
	if int64(len(data)) > constants.ThumbnailMaxBytes {
		return nil, fmt.Errorf("asset exceeds %d bytes", constants.ThumbnailMaxBytes)
	}
	return data, nil
}
