package socialclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/anonto42/rehab-social/backend/internal/models"
	"github.com/pkg/errors"
)

// RESTChannel reaches the request/response API under /api/v1.
type RESTChannel struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewRESTChannel targets baseURL (scheme and host, e.g. https://api.example.com).
// A nil client gets a default one with the given timeout.
func NewRESTChannel(baseURL, token string, client *http.Client, timeout time.Duration) *RESTChannel {
	if client == nil {
		if timeout <= 0 {
			timeout = DefaultRequestTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	return &RESTChannel{
		baseURL: strings.TrimRight(baseURL, "/") + "/api/v1",
		token:   token,
		client:  client,
	}
}

type restErrorBody struct {
	Error struct {
		Message string `json:"message"`
		Code    string `json:"code"`
		Hint    string `json:"hint"`
	} `json:"error"`
}

func (c *RESTChannel) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "encode request")
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var eb restErrorBody
		if err := json.NewDecoder(resp.Body).Decode(&eb); err != nil || eb.Error.Code == "" {
			return errors.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
		}
		return &RemoteError{Code: eb.Error.Code, Message: eb.Error.Message, Hint: eb.Error.Hint, Status: resp.StatusCode}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return errors.Wrapf(json.NewDecoder(resp.Body).Decode(out), "decode %s %s", method, path)
}

func (c *RESTChannel) SendFriendRequest(ctx context.Context, toUserID uint) (*models.FriendRequest, error) {
	var req models.FriendRequest
	if err := c.do(ctx, http.MethodPost, "/friends/requests", models.SendFriendRequest{ToUserID: toUserID}, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

func (c *RESTChannel) AcceptFriendRequest(ctx context.Context, requestID uint) (*models.FriendRequest, error) {
	var req models.FriendRequest
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/friends/requests/%d/accept", requestID), nil, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

func (c *RESTChannel) RejectFriendRequest(ctx context.Context, requestID uint) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/friends/requests/%d/reject", requestID), nil, nil)
}

func (c *RESTChannel) RemoveFriend(ctx context.Context, friendID uint) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/friends/%d", friendID), nil, nil)
}

func (c *RESTChannel) ListFriends(ctx context.Context) ([]models.FriendEntry, error) {
	var friends []models.FriendEntry
	if err := c.do(ctx, http.MethodGet, "/friends", nil, &friends); err != nil {
		return nil, err
	}
	return friends, nil
}

func (c *RESTChannel) ListFriendRequests(ctx context.Context) (*models.RequestLists, error) {
	var lists models.RequestLists
	if err := c.do(ctx, http.MethodGet, "/friends/requests", nil, &lists); err != nil {
		return nil, err
	}
	return &lists, nil
}

func (c *RESTChannel) FriendStatus(ctx context.Context, otherUserID uint) (*models.FriendStatus, error) {
	var status models.FriendStatus
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/friends/status/%d", otherUserID), nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (c *RESTChannel) SendMessage(ctx context.Context, toUserID uint, content string) (*models.Message, error) {
	var msg models.Message
	if err := c.do(ctx, http.MethodPost, "/messages", models.SendMessageRequest{ToUserID: toUserID, Content: content}, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (c *RESTChannel) ListConversations(ctx context.Context) ([]models.ConversationSummary, error) {
	var convs []models.ConversationSummary
	if err := c.do(ctx, http.MethodGet, "/messages/conversations", nil, &convs); err != nil {
		return nil, err
	}
	return convs, nil
}

func (c *RESTChannel) GetMessages(ctx context.Context, otherUserID uint, limit int) ([]models.Message, error) {
	path := fmt.Sprintf("/messages/conversations/%d", otherUserID)
	if limit > 0 {
		path += "?" + url.Values{"limit": {strconv.Itoa(limit)}}.Encode()
	}
	var msgs []models.Message
	if err := c.do(ctx, http.MethodGet, path, nil, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

func (c *RESTChannel) MarkRead(ctx context.Context, messageID uint) (*models.Message, error) {
	var msg models.Message
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/messages/%d/read", messageID), nil, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (c *RESTChannel) MarkConversationRead(ctx context.Context, otherUserID uint) (int64, error) {
	var res updatedResult
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/messages/conversations/%d/read", otherUserID), nil, &res); err != nil {
		return 0, err
	}
	return res.Updated, nil
}

func (c *RESTChannel) UnreadCount(ctx context.Context) (int64, error) {
	var res countResult
	if err := c.do(ctx, http.MethodGet, "/messages/unread-count", nil, &res); err != nil {
		return 0, err
	}
	return res.Count, nil
}
