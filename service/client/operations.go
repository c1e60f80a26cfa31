package client

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/itiky/synclist/model"
)

// GetLists returns all lists the user owns or joined.
func (c *Client) GetLists(ctx context.Context) ([]model.ListSummary, error) {
	res := model.GetListsResponse{}
	if err := c.do(ctx, http.MethodGet, "/api/list/", true, nil, &res, http.StatusOK); err != nil {
		return nil, err
	}
	if res.Lists == nil {
		res.Lists = make([]model.ListSummary, 0)
	}

	return res.Lists, nil
}

// GetPartitionedLists returns lists split into owned by the session user and joined ones.
func (c *Client) GetPartitionedLists(ctx context.Context) (owned, joined []model.ListSummary, err error) {
	lists, err := c.GetLists(ctx)
	if err != nil {
		return nil, nil, err
	}

	owned, joined = model.PartitionLists(lists, c.session.UserId())

	return owned, joined, nil
}

// CreateList creates a new list owned by the session user.
func (c *Client) CreateList(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return &ValidationError{Field: "listName", Message: "Enter a Title for the List"}
	}

	req := model.CreateListRequest{Name: name}

	return c.do(ctx, http.MethodPost, "/api/list/", true, req, nil, http.StatusCreated)
}

// DeleteList deletes a list (owner only).
func (c *Client) DeleteList(ctx context.Context, id model.ListId) error {
	if id == "" {
		return &ValidationError{Field: "listId", Message: "List is not selected"}
	}

	return c.do(ctx, http.MethodDelete, "/api/list/"+url.PathEscape(string(id)), true, nil, nil, http.StatusOK)
}

// JoinList adds the session user to list members (the list id is the QR join code payload).
// Returns the server message.
func (c *Client) JoinList(ctx context.Context, id model.ListId) (string, error) {
	id = model.ListId(strings.TrimSpace(string(id)))
	if id == "" {
		return "", &ValidationError{Field: "listId", Message: "Invalid join code"}
	}

	res := model.MessageResponse{}
	if err := c.do(ctx, http.MethodPost, "/api/list/"+url.PathEscape(string(id))+"/join", true, nil, &res, http.StatusOK, http.StatusCreated); err != nil {
		return "", err
	}
	if res.Message == "" {
		res.Message = "Successfully joined the list."
	}

	return res.Message, nil
}

// GetList returns the list snapshot (metadata, items, members).
func (c *Client) GetList(ctx context.Context, id model.ListId) (model.ListSnapshot, error) {
	if id == "" {
		return model.ListSnapshot{}, &ValidationError{Field: "listId", Message: "List is not selected"}
	}

	res := model.GetListItemsResponse{}
	if err := c.do(ctx, http.MethodGet, "/api/item/"+url.PathEscape(string(id)), true, nil, &res, http.StatusOK); err != nil {
		return model.ListSnapshot{}, err
	}

	// The endpoint is keyed by the path id, the body might omit it
	if res.Id == "" {
		res.Id = id
	}
	if res.Items == nil {
		res.Items = make([]model.Item, 0)
	}
	for i := range res.Items {
		res.Items[i] = res.Items[i].Normalize()
	}

	return res, nil
}

// AddItem adds a new item to the list.
// The server assigned id arrives via the itemAdded realtime event (or a snapshot refetch).
func (c *Client) AddItem(ctx context.Context, listId model.ListId, name string) error {
	name = strings.TrimSpace(name)
	if listId == "" {
		return &ValidationError{Field: "listId", Message: "List is not selected"}
	}
	if name == "" {
		return &ValidationError{Field: "itemName", Message: "Enter a Title for the Item"}
	}

	req := model.AddItemRequest{ListId: listId, Name: name}

	return c.do(ctx, http.MethodPost, "/api/item/", true, req, nil, http.StatusCreated)
}

// DeleteItem deletes an item.
func (c *Client) DeleteItem(ctx context.Context, id model.ItemId) error {
	if id == "" {
		return &ValidationError{Field: "itemId", Message: "Item is not selected"}
	}

	return c.do(ctx, http.MethodDelete, "/api/item/"+url.PathEscape(string(id)), true, nil, nil, http.StatusOK)
}

// ClaimItem toggles the item claim state server-side.
func (c *Client) ClaimItem(ctx context.Context, id model.ItemId) error {
	if id == "" {
		return &ValidationError{Field: "itemId", Message: "Item is not selected"}
	}

	return c.do(ctx, http.MethodPut, "/api/item/claim/"+url.PathEscape(string(id)), true, nil, nil, http.StatusOK)
}
