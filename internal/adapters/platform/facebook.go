package platform

import (
	"regexp"
	"strings"

	"social-pulse/internal/domain"
	"social-pulse/internal/infra/config"
)

var facebookURL = regexp.MustCompile(`^https?://(www\.|m\.|web\.)?(facebook|fb)\.com/[^/?#\s]+`)

// Поля записей акторов Facebook в порядке предпочтения.
var (
	fbPostID     = []string{"postId", "post_id", "id"}
	fbPostText   = []string{"postText", "text", "message", "caption"}
	fbPostTime   = []string{"time", "timestamp", "createdTime", "created_time", "date"}
	fbPostAuthor = []string{"pageName", "author.name", "user.name", "author"}
	fbPostLikes  = []string{"reactionsCount", "reactions_count", "likes", "likesCount"}
	fbPostCount  = []string{"commentsCount", "comments_count", "comments"}
	fbPostShares = []string{"shares", "sharesCount", "shares_count"}
	fbPostViews  = []string{"viewsCount", "videoViewCount", "views"}
	fbPostURL    = []string{"url", "postUrl", "link", "facebookUrl", "pageUrl"}

	fbCommentID     = []string{"comment_id", "commentId", "id", "cid"}
	fbCommentText   = []string{"text", "message", "commentText", "comment", "content"}
	fbCommentAuthor = []string{"author_name", "authorName", "from.name", "profileName", "author.name", "author"}
	fbCommentTime   = []string{"created_time", "createdTime", "created_at", "timestamp", "date"}
	fbCommentLikes  = []string{"likes_count", "like_count", "likesCount", "likes", "reactionsCount"}
	fbCommentReply  = []string{"replies_count", "replyCount", "commentsCount"}
	fbCommentPost   = []string{"post_url", "postUrl", "facebookUrl", "facebook_url", "inputUrl", "url"}
	fbCommentParent = []string{"parent_id", "parentId", "replyToCid"}
)

// Facebook адаптирует акторы постов, комментариев и реакций Facebook.
type Facebook struct {
	postsActor     string
	commentsActor  string
	reactionsActor string
}

var (
	_ domain.PlatformAdapter = (*Facebook)(nil)
	_ domain.ReactionSource  = (*Facebook)(nil)
)

// NewFacebook создаёт адаптер.
func NewFacebook(actors config.ActorSet) *Facebook {
	return &Facebook{
		postsActor:     actors.FacebookPosts,
		commentsActor:  actors.FacebookComments,
		reactionsActor: actors.FacebookReactions,
	}
}

func (f *Facebook) Platform() domain.Platform { return domain.PlatformFacebook }

func (f *Facebook) ValidateTargetURL(raw string) bool {
	return facebookURL.MatchString(strings.TrimSpace(raw))
}

func (f *Facebook) BuildPostsJob(target string, limit int, dateRange domain.DateRange) domain.JobRequest {
	input := map[string]any{
		"pageUrls":     []string{target},
		"resultsLimit": limit,
	}
	if dateRange.From != nil {
		input["onlyPostsNewerThan"] = dateParam(*dateRange.From)
	}
	if dateRange.To != nil {
		input["onlyPostsOlderThan"] = dateParam(*dateRange.To)
	}
	return domain.JobRequest{
		Kind:       domain.JobKindPosts,
		ActorID:    f.postsActor,
		TargetRefs: []string{target},
		Limit:      limit,
		DateRange:  dateRange,
		Input:      input,
	}
}

func (f *Facebook) BuildCommentsJob(postURLs []string, totalCap int) domain.JobRequest {
	refs := cleanURLs(postURLs)
	return domain.JobRequest{
		Kind:       domain.JobKindComments,
		ActorID:    f.commentsActor,
		TargetRefs: refs,
		Limit:      totalCap,
		Input: map[string]any{
			"startUrls":             startURLs(refs),
			"resultsLimit":          totalCap,
			"includeNestedComments": false,
			"viewOption":            "RANKED_UNFILTERED",
		},
	}
}

// BuildReactionsJob собирает запуск актора реакций по ссылкам постов.
func (f *Facebook) BuildReactionsJob(postURLs []string, limit int) domain.JobRequest {
	refs := cleanURLs(postURLs)
	return domain.JobRequest{
		Kind:       domain.JobKindReactions,
		ActorID:    f.reactionsActor,
		TargetRefs: refs,
		Limit:      limit,
		Input: map[string]any{
			"postUrls":     refs,
			"resultsLimit": limit,
		},
	}
}

func (f *Facebook) NormalizePost(raw domain.Record) (domain.Post, bool) {
	id := firstString(raw, fbPostID...)
	if id == "" {
		return domain.Post{}, false
	}
	post := domain.Post{
		ID:          id,
		Platform:    domain.PlatformFacebook,
		PublishedAt: firstTime(raw, fbPostTime...),
		Text:        firstString(raw, fbPostText...),
		Author:      firstString(raw, fbPostAuthor...),
		URL:         firstString(raw, fbPostURL...),
		Engagement: domain.Engagement{
			Likes:     firstInt(raw, fbPostLikes...),
			Reactions: reactionMap(raw["reactions"]),
			Comments:  firstInt(raw, fbPostCount...),
			Shares:    firstInt(raw, fbPostShares...),
			Views:     firstInt(raw, fbPostViews...),
		},
		Comments: []domain.Comment{},
		Extra:    pickExtra(raw, "pageId", "pageUrl", "attachments", "media", "isVideo", "type", "topReactionsCount"),
	}
	return post, true
}

func (f *Facebook) NormalizeComment(raw domain.Record) (domain.Comment, bool) {
	id := firstString(raw, fbCommentID...)
	if id == "" {
		return domain.Comment{}, false
	}
	return domain.Comment{
		ID:            id,
		Text:          firstString(raw, fbCommentText...),
		AuthorName:    firstString(raw, fbCommentAuthor...),
		CreatedAt:     firstTime(raw, fbCommentTime...),
		Likes:         firstInt(raw, fbCommentLikes...),
		Replies:       firstInt(raw, fbCommentReply...),
		ParentPostRef: firstString(raw, fbCommentPost...),
		ParentID:      firstString(raw, fbCommentParent...),
	}, true
}

// EngagementRate для Facebook — сумма реакций, комментариев и репостов.
func (f *Facebook) EngagementRate(post domain.Post) float64 {
	e := post.Engagement
	return float64(e.TotalReactions() + e.Comments + e.Shares)
}

// MergeReactions агрегирует отдельные реакции по посту и типу и записывает
// разбивку в посты. Возвращает число обогащённых постов.
func (f *Facebook) MergeReactions(posts []domain.Post, records []domain.Record) int {
	byPost := make(map[string]map[string]int)
	for _, rec := range records {
		postURL := domain.NormalizeRef(firstString(rec, "postUrl", "post_url", "url"))
		kind := strings.ToLower(firstString(rec, "reactionType", "reaction_type", "type"))
		if postURL == "" || kind == "" {
			continue
		}
		if byPost[postURL] == nil {
			byPost[postURL] = make(map[string]int)
		}
		byPost[postURL][kind]++
	}
	merged := 0
	for i := range posts {
		counts, ok := byPost[domain.NormalizeRef(posts[i].URL)]
		if !ok {
			continue
		}
		posts[i].Engagement.Reactions = counts
		posts[i].Engagement.Likes = posts[i].Engagement.TotalReactions()
		merged++
	}
	return merged
}

func reactionMap(v any) map[string]int {
	m, ok := v.(map[string]any)
	if !ok || len(m) == 0 {
		return nil
	}
	out := make(map[string]int, len(m))
	for k, raw := range m {
		if n := toInt(raw); n > 0 {
			out[strings.ToLower(k)] = n
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
