package gamerhub

import (
	"context"
	"net/http"
)

// Storage object permission levels
const (
	PermissionNoRead    = 0
	PermissionOwnerRead = 1
	PermissionPublic    = 2

	PermissionNoWrite    = 0
	PermissionOwnerWrite = 1
)

// StorageObject is a single record in the platform's per-user key-value
// store, addressed by (collection, key, user id).
type StorageObject struct {
	Collection      string `json:"collection"`
	Key             string `json:"key"`
	UserID          string `json:"user_id,omitempty"`
	Value           string `json:"value"`
	Version         string `json:"version,omitempty"`
	PermissionRead  int    `json:"permission_read"`
	PermissionWrite int    `json:"permission_write"`
}

type storageObjectID struct {
	Collection string `json:"collection"`
	Key        string `json:"key"`
	UserID     string `json:"user_id,omitempty"`
}

type readStorageRequest struct {
	ObjectIDs []storageObjectID `json:"object_ids"`
}

type readStorageResponse struct {
	Objects []StorageObject `json:"objects"`
}

type writeStorageRequest struct {
	Objects []StorageObject `json:"objects"`
}

// ReadStorageObjects fetches the given records. Records the caller cannot
// read, or that do not exist, are simply absent from the result.
func (c *Client) ReadStorageObjects(ctx context.Context, ids ...StorageObject) ([]StorageObject, error) {
	req := readStorageRequest{ObjectIDs: make([]storageObjectID, len(ids))}
	for i, id := range ids {
		req.ObjectIDs[i] = storageObjectID{Collection: id.Collection, Key: id.Key, UserID: id.UserID}
	}

	var resp readStorageResponse
	if err := c.do(ctx, http.MethodPost, "/v2/storage/read", nil, req, &resp); err != nil {
		return nil, err
	}
	return resp.Objects, nil
}

// WriteStorageObjects writes records owned by the current user.
func (c *Client) WriteStorageObjects(ctx context.Context, objects ...StorageObject) error {
	return c.do(ctx, http.MethodPut, "/v2/storage", nil, writeStorageRequest{Objects: objects}, nil)
}

// readStorageObject reads a single record value, returning "" when absent.
func (c *Client) readStorageObject(ctx context.Context, collection, key, userID string) (string, error) {
	objects, err := c.ReadStorageObjects(ctx, StorageObject{Collection: collection, Key: key, UserID: userID})
	if err != nil {
		return "", err
	}
	if len(objects) == 0 {
		return "", nil
	}
	return objects[0].Value, nil
}

func (c *Client) writeStorageObject(ctx context.Context, collection, key, value string, permRead, permWrite int) error {
	return c.WriteStorageObjects(ctx, StorageObject{
		Collection:      collection,
		Key:             key,
		Value:           value,
		PermissionRead:  permRead,
		PermissionWrite: permWrite,
	})
}
