// Package journal is the typed API client for the day journal. Lists and
// details are served from the cache package; user actions go through
// optimistic mutations.
package journal

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/jrsteele09/go-daybook/cache"
	"github.com/jrsteele09/go-daybook/gateway"
	"github.com/jrsteele09/go-daybook/optimistic"
)

const defaultPageSize = 20

// Client reaches the journal API through a gateway.
type Client struct {
	gw       *gateway.Gateway
	pageSize int

	posts         *optimistic.Guard
	comments      *optimistic.Guard
	profiles      *optimistic.Guard
	tasks         *optimistic.Guard
	notifications *optimistic.Guard
}

func NewClient(gw *gateway.Gateway, pageSize int) *Client {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &Client{
		gw:            gw,
		pageSize:      pageSize,
		posts:         optimistic.NewGuard(),
		comments:      optimistic.NewGuard(),
		profiles:      optimistic.NewGuard(),
		tasks:         optimistic.NewGuard(),
		notifications: optimistic.NewGuard(),
	}
}

// Feed is the signed in user's home feed.
func (c *Client) Feed() *cache.List[Post] {
	return newList[Post](c, "/api/posts/feed", nil)
}

// Search lists posts matching query.
func (c *Client) Search(query string) *cache.List[Post] {
	return newList[Post](c, "/api/posts/search", url.Values{"q": {query}})
}

func (c *Client) Comments(postID string) *cache.List[Comment] {
	return newList[Comment](c, "/api/posts/"+url.PathEscape(postID)+"/comments", nil)
}

func (c *Client) Replies(commentID string) *cache.List[Comment] {
	return newList[Comment](c, "/api/comments/"+url.PathEscape(commentID)+"/replies", nil)
}

func (c *Client) Notifications() *cache.List[Notification] {
	return newList[Notification](c, "/api/notifications", nil)
}

func (c *Client) Followers(userID string) *cache.List[Profile] {
	return newList[Profile](c, "/api/users/"+url.PathEscape(userID)+"/followers", nil)
}

func (c *Client) Following(userID string) *cache.List[Profile] {
	return newList[Profile](c, "/api/users/"+url.PathEscape(userID)+"/following", nil)
}

func (c *Client) DayEntries() *cache.List[DayEntry] {
	return newList[DayEntry](c, "/api/day-entries", nil)
}

func (c *Client) Tasks() *cache.List[Task] {
	return newList[Task](c, "/api/tasks", nil)
}

// Post loads a single post into a detail holder.
func (c *Client) Post(ctx context.Context, id string) (*cache.Detail[Post], error) {
	return loadDetail[Post](ctx, c, "/api/posts/"+url.PathEscape(id))
}

func (c *Client) Profile(ctx context.Context, userID string) (*cache.Detail[Profile], error) {
	return loadDetail[Profile](ctx, c, "/api/users/"+url.PathEscape(userID))
}

func newList[T keyed](c *Client, path string, query url.Values) *cache.List[T] {
	return cache.NewList(fetchPage[T](c, path, query), keyOf[T])
}

// fetchPage requests one page of path, 1-based.
func fetchPage[T any](c *Client, path string, query url.Values) cache.Fetcher[T] {
	return func(ctx context.Context, page int) (*cache.Page[T], error) {
		q := url.Values{}
		for k, v := range query {
			q[k] = v
		}
		q.Set("page", strconv.Itoa(page))
		q.Set("maxPageSize", strconv.Itoa(c.pageSize))

		resp, err := c.gw.Get(ctx, path+"?"+q.Encode())
		if err != nil {
			return nil, err
		}
		var p cache.Page[T]
		if err := gateway.DecodeJSON(resp, &p); err != nil {
			return nil, fmt.Errorf("%s page %d: %w", path, page, err)
		}
		return &p, nil
	}
}

func loadDetail[T keyed](ctx context.Context, c *Client, path string) (*cache.Detail[T], error) {
	resp, err := c.gw.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	var v T
	if err := gateway.DecodeJSON(resp, &v); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	d := cache.NewDetail(keyOf[T])
	d.Set(v)
	return d, nil
}

// send performs a write and decodes the returned record, if any. A 204 or an
// empty body yields nil, leaving the optimistic value in place.
func send[T any](ctx context.Context, c *Client, method, path string, body any) (*T, error) {
	var (
		resp *http.Response
		err  error
	)
	switch method {
	case http.MethodPost:
		resp, err = c.gw.Post(ctx, path, body)
	case http.MethodPatch:
		resp, err = c.gw.Patch(ctx, path, body)
	case http.MethodDelete:
		resp, err = c.gw.Delete(ctx, path)
	default:
		return nil, fmt.Errorf("unsupported method %s", method)
	}
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNoContent || resp.ContentLength == 0 {
		return nil, gateway.DecodeJSON(resp, nil)
	}
	var v T
	if err := gateway.DecodeJSON(resp, &v); err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return &v, nil
}
