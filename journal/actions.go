package journal

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/jrsteele09/go-daybook/cache"
	"github.com/jrsteele09/go-daybook/optimistic"
)

func applyPostLike(p Post, liked bool) Post {
	if p.Liked == liked {
		return p
	}
	p.Liked = liked
	if liked {
		p.LikeCount++
	} else if p.LikeCount > 0 {
		p.LikeCount--
	}
	return p
}

func applyCommentLike(c Comment, liked bool) Comment {
	if c.Liked == liked {
		return c
	}
	c.Liked = liked
	if liked {
		c.LikeCount++
	} else if c.LikeCount > 0 {
		c.LikeCount--
	}
	return c
}

func applyFollow(p Profile, following bool) Profile {
	if p.Following == following {
		return p
	}
	p.Following = following
	if following {
		p.FollowerCount++
	} else if p.FollowerCount > 0 {
		p.FollowerCount--
	}
	return p
}

func applyTaskCompleted(t Task, completed bool) Task {
	t.Completed = completed
	return t
}

func applyRead(n Notification, read bool) Notification {
	n.Read = read
	return n
}

// current finds the record in the first location that holds it.
func current[T any](id string, locations []cache.Location[T]) (T, error) {
	for _, loc := range locations {
		if v, ok := loc.Lookup(id); ok {
			return v, nil
		}
	}
	var zero T
	return zero, fmt.Errorf("%s is not cached", id)
}

// ToggleLike flips the like on a post held in any of locations.
func (c *Client) ToggleLike(ctx context.Context, postID string, locations ...cache.Location[Post]) error {
	post, err := current(postID, locations)
	if err != nil {
		return err
	}
	m := &optimistic.Mutation[Post, bool]{
		Apply: applyPostLike,
		Write: func(ctx context.Context, id string, liked bool) (*Post, error) {
			return send[Post](ctx, c, likeMethod(liked), "/api/posts/"+url.PathEscape(id)+"/like", nil)
		},
		Locations: locations,
		Guard:     c.posts,
	}
	return m.Run(ctx, postID, !post.Liked)
}

func (c *Client) ToggleCommentLike(ctx context.Context, commentID string, locations ...cache.Location[Comment]) error {
	comment, err := current(commentID, locations)
	if err != nil {
		return err
	}
	m := &optimistic.Mutation[Comment, bool]{
		Apply: applyCommentLike,
		Write: func(ctx context.Context, id string, liked bool) (*Comment, error) {
			return send[Comment](ctx, c, likeMethod(liked), "/api/comments/"+url.PathEscape(id)+"/like", nil)
		},
		Locations: locations,
		Guard:     c.comments,
	}
	return m.Run(ctx, commentID, !comment.Liked)
}

// SetFollow follows or unfollows a user.
func (c *Client) SetFollow(ctx context.Context, userID string, follow bool, locations ...cache.Location[Profile]) error {
	m := &optimistic.Mutation[Profile, bool]{
		Apply: applyFollow,
		Write: func(ctx context.Context, id string, follow bool) (*Profile, error) {
			return send[Profile](ctx, c, likeMethod(follow), "/api/users/"+url.PathEscape(id)+"/follow", nil)
		},
		Locations: locations,
		Guard:     c.profiles,
	}
	return m.Run(ctx, userID, follow)
}

func (c *Client) SetTaskCompleted(ctx context.Context, taskID string, completed bool, locations ...cache.Location[Task]) error {
	m := &optimistic.Mutation[Task, bool]{
		Apply: applyTaskCompleted,
		Write: func(ctx context.Context, id string, completed bool) (*Task, error) {
			body := map[string]bool{"completed": completed}
			return send[Task](ctx, c, http.MethodPatch, "/api/tasks/"+url.PathEscape(id), body)
		},
		Locations: locations,
		Guard:     c.tasks,
	}
	return m.Run(ctx, taskID, completed)
}

func (c *Client) MarkNotificationRead(ctx context.Context, notificationID string, locations ...cache.Location[Notification]) error {
	m := &optimistic.Mutation[Notification, bool]{
		Apply: applyRead,
		Write: func(ctx context.Context, id string, read bool) (*Notification, error) {
			body := map[string]bool{"read": read}
			return send[Notification](ctx, c, http.MethodPatch, "/api/notifications/"+url.PathEscape(id), body)
		},
		Locations: locations,
		Guard:     c.notifications,
	}
	return m.Run(ctx, notificationID, true)
}

// likeMethod maps on/off actions onto the POST and DELETE of a relation route.
func likeMethod(on bool) string {
	if on {
		return http.MethodPost
	}
	return http.MethodDelete
}
