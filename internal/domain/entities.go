package domain

import "time"

// Platform определяет социальную сеть, из которой собираются посты.
type Platform string

const (
	PlatformFacebook  Platform = "facebook"
	PlatformInstagram Platform = "instagram"
	PlatformYouTube   Platform = "youtube"
)

// Platforms перечисляет поддерживаемые платформы в порядке отображения.
var Platforms = []Platform{PlatformFacebook, PlatformInstagram, PlatformYouTube}

// ParsePlatform приводит строку к Platform.
func ParsePlatform(raw string) (Platform, bool) {
	for _, p := range Platforms {
		if string(p) == raw {
			return p, true
		}
	}
	return "", false
}

// Record — сырая запись из датасета актора.
type Record = map[string]any

// Engagement хранит счётчики вовлечённости поста.
type Engagement struct {
	Likes     int            `json:"likes" bson:"likes"`
	Reactions map[string]int `json:"reactions,omitempty" bson:"reactions,omitempty"`
	Comments  int            `json:"comments" bson:"comments"`
	Shares    int            `json:"shares" bson:"shares"`
	Views     int            `json:"views" bson:"views"`
}

// TotalReactions возвращает сумму реакций, а при их отсутствии — лайки.
func (e Engagement) TotalReactions() int {
	if len(e.Reactions) == 0 {
		return e.Likes
	}
	total := 0
	for _, v := range e.Reactions {
		total += v
	}
	return total
}

// Post — нормализованный пост любой платформы.
type Post struct {
	ID          string         `json:"post_id" bson:"post_id"`
	Platform    Platform       `json:"platform" bson:"platform"`
	PublishedAt time.Time      `json:"published_at" bson:"published_at"`
	Text        string         `json:"text" bson:"text"`
	Author      string         `json:"author" bson:"author"`
	Engagement  Engagement     `json:"engagement" bson:"engagement"`
	URL         string         `json:"post_url" bson:"post_url"`
	Comments    []Comment      `json:"comments" bson:"comments"`
	Extra       map[string]any `json:"platform_extra,omitempty" bson:"platform_extra,omitempty"`
}

// Comment — нормализованный комментарий к посту.
type Comment struct {
	ID            string    `json:"comment_id" bson:"comment_id"`
	Text          string    `json:"text" bson:"text"`
	AuthorName    string    `json:"author_name" bson:"author_name"`
	CreatedAt     time.Time `json:"created_at" bson:"created_at"`
	Likes         int       `json:"likes_count" bson:"likes_count"`
	Replies       int       `json:"replies_count" bson:"replies_count"`
	ParentPostRef string    `json:"parent_post_ref" bson:"parent_post_ref"`
	ParentID      string    `json:"parent_id,omitempty" bson:"parent_id,omitempty"`
}

// DateRange ограничивает выборку постов по дате публикации.
type DateRange struct {
	From *time.Time `json:"from,omitempty"`
	To   *time.Time `json:"to,omitempty"`
}

// Contains проверяет попадание момента в диапазон. Нулевое время проходит всегда.
func (r DateRange) Contains(t time.Time) bool {
	if t.IsZero() {
		return true
	}
	if r.From != nil && t.Before(*r.From) {
		return false
	}
	if r.To != nil && t.After(*r.To) {
		return false
	}
	return true
}

// IsZero сообщает, что диапазон не задан.
func (r DateRange) IsZero() bool {
	return r.From == nil && r.To == nil
}
