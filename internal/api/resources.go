package api

import (
	"context"
	"fmt"
	"io"
	"net/url"

	"github.com/capiweb/capishare/internal/models"
)

func listQuery(scope models.Scope, key string, id *int64) string {
	q := url.Values{}
	if scope != "" {
		q.Set("scope", string(scope))
	}
	q.Set(key, models.FormatID(id))
	return q.Encode()
}

// ListFiles lists the files directly inside folderID (nil for the scope root).
func (c *Client) ListFiles(ctx context.Context, folderID *int64, scope models.Scope) ([]*models.File, error) {
	resp, err := c.doRequest(ctx, "GET", "/transfers/?"+listQuery(scope, "folder", folderID), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return nil, newAPIError(resp, "list files")
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read file list: %w", err)
	}
	return models.DecodeList[*models.File](data)
}

// ListFolders lists the folders directly inside parentID (nil for the scope root).
func (c *Client) ListFolders(ctx context.Context, parentID *int64, scope models.Scope) ([]*models.Folder, error) {
	resp, err := c.doRequest(ctx, "GET", "/folders/?"+listQuery(scope, "parent", parentID), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return nil, newAPIError(resp, "list folders")
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read folder list: %w", err)
	}
	return models.DecodeList[*models.Folder](data)
}

// GetFolder fetches one folder.
func (c *Client) GetFolder(ctx context.Context, id int64) (*models.Folder, error) {
	resp, err := c.doRequest(ctx, "GET", fmt.Sprintf("/folders/%d/", id), nil)
	if err != nil {
		return nil, err
	}
	var folder models.Folder
	if err := decodeJSON(resp, "get folder", &folder); err != nil {
		return nil, err
	}
	return &folder, nil
}

// CreateFolder creates a folder under parentID (nil for the root).
func (c *Client) CreateFolder(ctx context.Context, name string, parentID *int64) (*models.Folder, error) {
	body := map[string]interface{}{"name": name, "parent": parentID}
	resp, err := c.doRequest(ctx, "POST", "/folders/", body)
	if err != nil {
		return nil, err
	}
	var folder models.Folder
	if err := decodeJSON(resp, "create folder", &folder); err != nil {
		return nil, err
	}
	return &folder, nil
}

// RenameFolder renames a folder and returns the server's copy.
func (c *Client) RenameFolder(ctx context.Context, id int64, name string) (*models.Folder, error) {
	resp, err := c.doRequest(ctx, "PATCH", fmt.Sprintf("/folders/%d/", id), map[string]string{"name": name})
	if err != nil {
		return nil, err
	}
	var folder models.Folder
	if err := decodeJSON(resp, "rename folder", &folder); err != nil {
		return nil, err
	}
	return &folder, nil
}

// RenameFile renames a file and returns the server's copy.
func (c *Client) RenameFile(ctx context.Context, id int64, name string) (*models.File, error) {
	resp, err := c.doRequest(ctx, "PATCH", fmt.Sprintf("/transfers/%d/", id), map[string]string{"filename": name})
	if err != nil {
		return nil, err
	}
	var file models.File
	if err := decodeJSON(resp, "rename file", &file); err != nil {
		return nil, err
	}
	return &file, nil
}

// DeleteFolder deletes a folder and its contents.
func (c *Client) DeleteFolder(ctx context.Context, id int64) error {
	resp, err := c.doRequest(ctx, "DELETE", fmt.Sprintf("/folders/%d/delete_folder/", id), nil)
	if err != nil {
		return err
	}
	return expectStatus(resp, "delete folder")
}

// DeleteFile deletes a file.
func (c *Client) DeleteFile(ctx context.Context, id int64) error {
	resp, err := c.doRequest(ctx, "DELETE", fmt.Sprintf("/transfers/%d/delete_file/", id), nil)
	if err != nil {
		return err
	}
	return expectStatus(resp, "delete file")
}

// MoveFileToFolder moves a file into folderID. nil moves it to the root.
func (c *Client) MoveFileToFolder(ctx context.Context, id int64, folderID *int64) error {
	form := url.Values{}
	form.Set("folder_id", "")
	if folderID != nil {
		form.Set("folder_id", models.FormatID(folderID))
	}
	resp, err := c.doForm(ctx, c.httpClient, "POST", fmt.Sprintf("/transfers/%d/move/", id), form)
	if err != nil {
		return err
	}
	return expectStatus(resp, "move file")
}

// MoveFolderToFolder reparents a folder. nil moves it to the root.
func (c *Client) MoveFolderToFolder(ctx context.Context, id int64, parentID *int64) error {
	resp, err := c.doRequest(ctx, "PATCH", fmt.Sprintf("/folders/%d/", id), map[string]interface{}{"parent": parentID})
	if err != nil {
		return err
	}
	return expectStatus(resp, "move folder")
}

// MarkFolderContentsViewed marks every file in the folder as viewed.
func (c *Client) MarkFolderContentsViewed(ctx context.Context, id int64) error {
	resp, err := c.doRequest(ctx, "POST", fmt.Sprintf("/folders/%d/mark_contents_viewed/", id), nil)
	if err != nil {
		return err
	}
	return expectStatus(resp, "mark folder viewed")
}

// MarkFileViewed marks one file as viewed.
func (c *Client) MarkFileViewed(ctx context.Context, id int64) error {
	resp, err := c.doRequest(ctx, "POST", fmt.Sprintf("/transfers/%d/mark_viewed/", id), nil)
	if err != nil {
		return err
	}
	return expectStatus(resp, "mark file viewed")
}

// CheckArchive asks the server whether an archive contains executables.
func (c *Client) CheckArchive(ctx context.Context, id int64) (*models.ArchiveInfo, error) {
	resp, err := c.doRequest(ctx, "GET", fmt.Sprintf("/transfers/%d/check_archive/", id), nil)
	if err != nil {
		return nil, err
	}
	var info models.ArchiveInfo
	if err := decodeJSON(resp, "check archive", &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// ListFileAccess lists the sharing grants on a file.
func (c *Client) ListFileAccess(ctx context.Context, id int64) ([]models.AccessGrant, error) {
	return c.listAccess(ctx, fmt.Sprintf("/transfers/%d/access/", id), "list file access")
}

// ListFolderAccess lists the sharing grants on a folder.
func (c *Client) ListFolderAccess(ctx context.Context, id int64) ([]models.AccessGrant, error) {
	return c.listAccess(ctx, fmt.Sprintf("/folders/%d/access/", id), "list folder access")
}

func (c *Client) listAccess(ctx context.Context, path, op string) ([]models.AccessGrant, error) {
	resp, err := c.doRequest(ctx, "GET", path, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return nil, newAPIError(resp, op)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read access list: %w", err)
	}
	return models.DecodeList[models.AccessGrant](data)
}
