package model

// Author is the subset of app.bsky.actor.defs#profileViewBasic we render.
type Author struct {
	DID         string `json:"did"`
	Handle      string `json:"handle"`
	DisplayName string `json:"displayName,omitempty"`
	Avatar      string `json:"avatar,omitempty"`
}

// Name returns the display name, falling back to the handle.
func (a Author) Name() string {
	if a.DisplayName != "" {
		return a.DisplayName
	}
	return a.Handle
}

// PostRecord is the app.bsky.feed.post record body.
type PostRecord struct {
	Type      string   `json:"$type,omitempty"`
	Text      string   `json:"text"`
	CreatedAt string   `json:"createdAt"`
	Langs     []string `json:"langs,omitempty"`
}

// Image is one item of an app.bsky.embed.images#view.
type Image struct {
	Thumb    string `json:"thumb"`
	Fullsize string `json:"fullsize"`
	Alt      string `json:"alt"`
}

// External is the link card of an app.bsky.embed.external#view.
type External struct {
	URI         string `json:"uri"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Thumb       string `json:"thumb,omitempty"`
}

// EmbedRecord is a quoted record. For record-with-media embeds the
// quoted post sits one level deeper in Record.
type EmbedRecord struct {
	Type   string       `json:"$type,omitempty"`
	URI    string       `json:"uri,omitempty"`
	CID    string       `json:"cid,omitempty"`
	Author *Author      `json:"author,omitempty"`
	Value  *PostRecord  `json:"value,omitempty"`
	Record *EmbedRecord `json:"record,omitempty"`
}

// EmbedView is the raw embed attached to a post view.
type EmbedView struct {
	Type     string       `json:"$type,omitempty"`
	Record   *EmbedRecord `json:"record,omitempty"`
	Images   []Image      `json:"images,omitempty"`
	External *External    `json:"external,omitempty"`
}

// PostView is app.bsky.feed.defs#postView.
type PostView struct {
	URI         string     `json:"uri"`
	CID         string     `json:"cid"`
	Author      Author     `json:"author"`
	Record      PostRecord `json:"record"`
	Embed       *EmbedView `json:"embed,omitempty"`
	ReplyCount  int        `json:"replyCount"`
	RepostCount int        `json:"repostCount"`
	LikeCount   int        `json:"likeCount"`
	IndexedAt   string     `json:"indexedAt,omitempty"`
}

// ThreadNode is one item of a post thread. Post is nil for
// not-found and blocked items.
type ThreadNode struct {
	Type     string        `json:"$type,omitempty"`
	Post     *PostView     `json:"post,omitempty"`
	Parent   *ThreadNode   `json:"parent,omitempty"`
	Replies  []*ThreadNode `json:"replies,omitempty"`
	NotFound bool          `json:"notFound,omitempty"`
	Blocked  bool          `json:"blocked,omitempty"`
}

// AuthorHandle returns the handle of the node's post author, or "" when
// the node carries no post.
func (n *ThreadNode) AuthorHandle() string {
	if n == nil || n.Post == nil {
		return ""
	}
	return n.Post.Author.Handle
}

// FeedItem is app.bsky.feed.defs#feedViewPost.
type FeedItem struct {
	Post PostView `json:"post"`
}
