package domain

// NormalizePosts нормализует записи постов. Записи без идентификатора и
// повторы по идентификатору отбрасываются; возвращается число отброшенных.
func NormalizePosts(a PlatformAdapter, records []Record) ([]Post, int) {
	posts := make([]Post, 0, len(records))
	seen := make(map[string]struct{}, len(records))
	dropped := 0
	for _, rec := range records {
		post, ok := a.NormalizePost(rec)
		if !ok {
			dropped++
			continue
		}
		if _, dup := seen[post.ID]; dup {
			dropped++
			continue
		}
		seen[post.ID] = struct{}{}
		posts = append(posts, post)
	}
	return posts, dropped
}

// NormalizeComments нормализует записи комментариев, отбрасывая записи без идентификатора.
func NormalizeComments(a PlatformAdapter, records []Record) ([]Comment, int) {
	comments := make([]Comment, 0, len(records))
	dropped := 0
	for _, rec := range records {
		c, ok := a.NormalizeComment(rec)
		if !ok {
			dropped++
			continue
		}
		comments = append(comments, c)
	}
	return comments, dropped
}
