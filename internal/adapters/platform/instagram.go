package platform

import (
	"regexp"
	"strings"

	"social-pulse/internal/domain"
	"social-pulse/internal/infra/config"
)

var instagramURL = regexp.MustCompile(`^https?://(www\.)?instagram\.com/[^/?#\s]+`)

var (
	igPostID     = []string{"shortCode", "shortcode", "code", "id"}
	igPostText   = []string{"caption", "text", "edge_media_to_caption"}
	igPostTime   = []string{"timestamp", "takenAt", "taken_at_timestamp", "date"}
	igPostAuthor = []string{"ownerUsername", "owner.username", "ownerFullName", "username"}
	igPostLikes  = []string{"likesCount", "likes", "like_count"}
	igPostCount  = []string{"commentsCount", "comments_count", "comments"}
	igPostViews  = []string{"videoViewCount", "videoPlayCount", "video_view_count"}
	igPostURL    = []string{"url", "postUrl", "permalink"}

	igCommentID     = []string{"id", "commentId", "pk"}
	igCommentText   = []string{"text", "comment", "content"}
	igCommentAuthor = []string{"ownerUsername", "owner.username", "username", "authorName"}
	igCommentTime   = []string{"timestamp", "createdAt", "created_at"}
	igCommentLikes  = []string{"likesCount", "likes", "like_count"}
	igCommentReply  = []string{"repliesCount", "replyCount", "replies_count"}
	igCommentPost   = []string{"postUrl", "post_url", "inputUrl", "url", "shortCode"}
)

// Instagram адаптирует apify/instagram-scraper и актор комментариев.
type Instagram struct {
	postsActor    string
	commentsActor string
}

var _ domain.PlatformAdapter = (*Instagram)(nil)

// NewInstagram создаёт адаптер.
func NewInstagram(actors config.ActorSet) *Instagram {
	return &Instagram{postsActor: actors.InstagramPosts, commentsActor: actors.InstagramComments}
}

func (a *Instagram) Platform() domain.Platform { return domain.PlatformInstagram }

func (a *Instagram) ValidateTargetURL(raw string) bool {
	return instagramURL.MatchString(strings.TrimSpace(raw))
}

func (a *Instagram) BuildPostsJob(target string, limit int, dateRange domain.DateRange) domain.JobRequest {
	input := map[string]any{
		"directUrls":    []string{target},
		"resultsType":   "posts",
		"resultsLimit":  limit,
		"searchLimit":   10,
		"addParentData": false,
	}
	if dateRange.From != nil {
		input["onlyPostsNewerThan"] = dateParam(*dateRange.From)
	}
	return domain.JobRequest{
		Kind:       domain.JobKindPosts,
		ActorID:    a.postsActor,
		TargetRefs: []string{target},
		Limit:      limit,
		DateRange:  dateRange,
		Input:      input,
	}
}

func (a *Instagram) BuildCommentsJob(postURLs []string, totalCap int) domain.JobRequest {
	refs := cleanURLs(postURLs)
	return domain.JobRequest{
		Kind:       domain.JobKindComments,
		ActorID:    a.commentsActor,
		TargetRefs: refs,
		Limit:      totalCap,
		Input: map[string]any{
			"directUrls":   refs,
			"resultsType":  "comments",
			"resultsLimit": totalCap,
		},
	}
}

func (a *Instagram) NormalizePost(raw domain.Record) (domain.Post, bool) {
	id := firstString(raw, igPostID...)
	if id == "" {
		return domain.Post{}, false
	}
	postURL := firstString(raw, igPostURL...)
	if postURL == "" {
		postURL = "https://www.instagram.com/p/" + id + "/"
	}
	return domain.Post{
		ID:          id,
		Platform:    domain.PlatformInstagram,
		PublishedAt: firstTime(raw, igPostTime...),
		Text:        firstString(raw, igPostText...),
		Author:      firstString(raw, igPostAuthor...),
		URL:         postURL,
		Engagement: domain.Engagement{
			Likes:    firstInt(raw, igPostLikes...),
			Comments: firstInt(raw, igPostCount...),
			Views:    firstInt(raw, igPostViews...),
		},
		Comments: []domain.Comment{},
		Extra: pickExtra(raw, "type", "productType", "displayUrl", "hashtags", "mentions",
			"isSponsored", "ownerFullName", "videoPlayCount", "locationName"),
	}, true
}

func (a *Instagram) NormalizeComment(raw domain.Record) (domain.Comment, bool) {
	id := firstString(raw, igCommentID...)
	if id == "" {
		return domain.Comment{}, false
	}
	return domain.Comment{
		ID:            id,
		Text:          firstString(raw, igCommentText...),
		AuthorName:    firstString(raw, igCommentAuthor...),
		CreatedAt:     firstTime(raw, igCommentTime...),
		Likes:         firstInt(raw, igCommentLikes...),
		Replies:       firstInt(raw, igCommentReply...),
		ParentPostRef: firstString(raw, igCommentPost...),
	}, true
}

// EngagementRate для Instagram — лайки плюс комментарии.
func (a *Instagram) EngagementRate(post domain.Post) float64 {
	return float64(post.Engagement.Likes + post.Engagement.Comments)
}
