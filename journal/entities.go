package journal

import "time"

// Post is an entry in the social feed.
type Post struct {
	ID           string    `json:"id"`
	AuthorID     string    `json:"authorId"`
	Body         string    `json:"body"`
	CreatedAt    time.Time `json:"createdAt"`
	Liked        bool      `json:"liked"`
	LikeCount    int       `json:"likeCount"`
	CommentCount int       `json:"commentCount"`
}

type Comment struct {
	ID         string    `json:"id"`
	PostID     string    `json:"postId"`
	ParentID   string    `json:"parentId,omitempty"`
	AuthorID   string    `json:"authorId"`
	Body       string    `json:"body"`
	CreatedAt  time.Time `json:"createdAt"`
	Liked      bool      `json:"liked"`
	LikeCount  int       `json:"likeCount"`
	ReplyCount int       `json:"replyCount"`
}

type Task struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Completed bool       `json:"completed"`
	DueDate   *time.Time `json:"dueDate,omitempty"`
}

type Note struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Event struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	StartsAt time.Time `json:"startsAt"`
	EndsAt   time.Time `json:"endsAt"`
	Location string    `json:"location,omitempty"`
}

type Notification struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	ActorID   string    `json:"actorId"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}

// Profile is another user as seen by the signed in user.
type Profile struct {
	ID             string `json:"id"`
	Username       string `json:"username"`
	DisplayName    string `json:"displayName"`
	Following      bool   `json:"following"`
	FollowerCount  int    `json:"followerCount"`
	FollowingCount int    `json:"followingCount"`
}

// DayEntry groups what happened on one calendar day.
type DayEntry struct {
	ID     string  `json:"id"`
	Date   string  `json:"date"` // YYYY-MM-DD
	Mood   string  `json:"mood,omitempty"`
	Notes  []Note  `json:"notes"`
	Tasks  []Task  `json:"tasks"`
	Events []Event `json:"events"`
}

func (p Post) Key() string { return p.ID }
func (c Comment) Key() string { return c.ID }
func (t Task) Key() string { return t.ID }
func (n Note) Key() string { return n.ID }
func (e Event) Key() string { return e.ID }
func (n Notification) Key() string { return n.ID }
func (p Profile) Key() string { return p.ID }
func (d DayEntry) Key() string { return d.ID }

type keyed interface {
	Key() string
}

func keyOf[T keyed](v T) string {
	return v.Key()
}
