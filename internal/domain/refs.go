package domain

import "strings"

// NormalizeRef приводит ссылку к виду для сравнения: без схемы, www/m и
// фрагмента, из query остаётся только v= (ролики YouTube). Регистр пути
// сохраняется: идентификаторы платформ регистрозависимы.
func NormalizeRef(raw string) string {
	s := strings.TrimSpace(raw)
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	if i := strings.IndexByte(s, '#'); i >= 0 {
		s = s[:i]
	}
	host, path, _ := strings.Cut(s, "/")
	host = strings.ToLower(host)
	for _, prefix := range []string{"www.", "m.", "web."} {
		host = strings.TrimPrefix(host, prefix)
	}
	path, query, _ := strings.Cut(path, "?")
	path = strings.TrimRight(path, "/")
	for _, kv := range strings.Split(query, "&") {
		if strings.HasPrefix(kv, "v=") {
			path += "?" + kv
			break
		}
	}
	if path == "" {
		return host
	}
	return host + "/" + path
}

// MatchesPost сообщает, относится ли ссылка или идентификатор ref к посту:
// точное совпадение с ID или вхождение одной ссылки в другую по границе сегмента.
func MatchesPost(ref string, post Post) bool {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return false
	}
	if post.ID != "" && ref == post.ID {
		return true
	}
	r, u := NormalizeRef(ref), NormalizeRef(post.URL)
	if r == "" || u == "" {
		return false
	}
	short, long := r, u
	if len(short) > len(long) {
		short, long = long, short
	}
	if !strings.Contains(short, "/") {
		return false
	}
	return containsBounded(long, short)
}

func containsBounded(long, short string) bool {
	for from := 0; ; {
		i := strings.Index(long[from:], short)
		if i < 0 {
			return false
		}
		end := from + i + len(short)
		if end == len(long) || strings.ContainsRune("/?&", rune(long[end])) {
			return true
		}
		from += i + 1
	}
}
