package platform

import (
	"regexp"
	"strings"

	"social-pulse/internal/domain"
	"social-pulse/internal/infra/config"
)

var youtubeURL = regexp.MustCompile(`^https?://(www\.|m\.)?(youtube\.com/(watch\?([^#\s]*&)?v=|channel/|@|c/|user/|shorts/)|youtu\.be/)[^/?#&\s]+`)

var (
	ytPostID     = []string{"id", "videoId"}
	ytPostText   = []string{"title", "description", "text"}
	ytPostTime   = []string{"publishedAt", "uploadDate", "timestamp", "date"}
	ytPostAuthor = []string{"channelName", "channelTitle", "author"}
	ytPostLikes  = []string{"likeCount", "likes", "likesCount"}
	ytPostCount  = []string{"commentCount", "commentsCount", "comments"}
	ytPostViews  = []string{"viewCount", "views"}
	ytPostURL    = []string{"url", "videoUrl"}

	ytCommentID     = []string{"id", "commentId", "cid"}
	ytCommentText   = []string{"text", "textDisplay", "comment", "content"}
	ytCommentAuthor = []string{"authorDisplayName", "author", "authorName"}
	ytCommentTime   = []string{"publishedAt", "createdAt", "timestamp", "date"}
	ytCommentLikes  = []string{"likeCount", "voteCount", "likesCount", "likes"}
	ytCommentReply  = []string{"replyCount", "replies", "repliesCount"}
	ytCommentPost   = []string{"videoUrl", "pageUrl", "url", "inputUrl", "videoId"}
)

// YouTube адаптирует streamers/youtube-scraper и актор комментариев.
type YouTube struct {
	postsActor    string
	commentsActor string
}

var _ domain.PlatformAdapter = (*YouTube)(nil)

// NewYouTube создаёт адаптер.
func NewYouTube(actors config.ActorSet) *YouTube {
	return &YouTube{postsActor: actors.YouTubePosts, commentsActor: actors.YouTubeComments}
}

func (y *YouTube) Platform() domain.Platform { return domain.PlatformYouTube }

func (y *YouTube) ValidateTargetURL(raw string) bool {
	return youtubeURL.MatchString(strings.TrimSpace(raw))
}

func (y *YouTube) BuildPostsJob(target string, limit int, dateRange domain.DateRange) domain.JobRequest {
	return domain.JobRequest{
		Kind:       domain.JobKindPosts,
		ActorID:    y.postsActor,
		TargetRefs: []string{target},
		Limit:      limit,
		DateRange:  dateRange,
		Input: map[string]any{
			"startUrls":  startURLs([]string{target}),
			"maxResults": limit,
		},
	}
}

func (y *YouTube) BuildCommentsJob(postURLs []string, totalCap int) domain.JobRequest {
	refs := cleanURLs(postURLs)
	return domain.JobRequest{
		Kind:       domain.JobKindComments,
		ActorID:    y.commentsActor,
		TargetRefs: refs,
		Limit:      totalCap,
		Input: map[string]any{
			"startUrls":   startURLs(refs),
			"maxComments": totalCap,
			"maxReplies":  0,
		},
	}
}

func (y *YouTube) NormalizePost(raw domain.Record) (domain.Post, bool) {
	id := firstString(raw, ytPostID...)
	if id == "" {
		return domain.Post{}, false
	}
	postURL := firstString(raw, ytPostURL...)
	if postURL == "" {
		postURL = "https://www.youtube.com/watch?v=" + id
	}
	text := firstString(raw, ytPostText...)
	return domain.Post{
		ID:          id,
		Platform:    domain.PlatformYouTube,
		PublishedAt: firstTime(raw, ytPostTime...),
		Text:        text,
		Author:      firstString(raw, ytPostAuthor...),
		URL:         postURL,
		Engagement: domain.Engagement{
			Likes:    firstInt(raw, ytPostLikes...),
			Comments: firstInt(raw, ytPostCount...),
			Views:    firstInt(raw, ytPostViews...),
		},
		Comments: []domain.Comment{},
		Extra: pickExtra(raw, "description", "duration", "thumbnailUrl", "channelId", "channelUrl",
			"numberOfSubscribers", "hashtags"),
	}, true
}

func (y *YouTube) NormalizeComment(raw domain.Record) (domain.Comment, bool) {
	id := firstString(raw, ytCommentID...)
	if id == "" {
		return domain.Comment{}, false
	}
	return domain.Comment{
		ID:            id,
		Text:          firstString(raw, ytCommentText...),
		AuthorName:    firstString(raw, ytCommentAuthor...),
		CreatedAt:     firstTime(raw, ytCommentTime...),
		Likes:         firstInt(raw, ytCommentLikes...),
		Replies:       firstInt(raw, ytCommentReply...),
		ParentPostRef: firstString(raw, ytCommentPost...),
	}, true
}

// EngagementRate для YouTube — (лайки + комментарии) / просмотры × 100,
// округлено до сотых; без просмотров — 0.
func (y *YouTube) EngagementRate(post domain.Post) float64 {
	e := post.Engagement
	if e.Views <= 0 {
		return 0
	}
	return roundTo(float64(e.Likes+e.Comments)/float64(e.Views)*100, 2)
}
