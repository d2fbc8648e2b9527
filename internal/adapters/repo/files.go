package repo

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"social-pulse/internal/domain"
)

const fileStamp = "20060102_150405"

// ErrNoSavedFiles — для платформы ещё нет сохранённых результатов.
var ErrNoSavedFiles = errors.New("сохранённых результатов нет")

// SavedFile описывает сохранённый файл с обработанными постами.
type SavedFile struct {
	Path     string          `json:"path"`
	Platform domain.Platform `json:"platform"`
	SavedAt  time.Time       `json:"saved_at"`
	Size     int64           `json:"size"`
}

// Files хранит результаты сбора в каталоге данных:
// raw/ — записи актора как есть, processed/ — нормализованные посты в JSON и CSV.
type Files struct {
	dir string
	now func() time.Time
	mu  sync.Mutex
}

var (
	_ domain.PostRepo   = (*Files)(nil)
	_ domain.RawArchive = (*Files)(nil)
)

// NewFiles создаёт файловое хранилище в каталоге dir.
func NewFiles(dir string) *Files {
	return &Files{dir: dir, now: func() time.Time { return time.Now().UTC() }}
}

func (f *Files) rawDir() string       { return filepath.Join(f.dir, "raw") }
func (f *Files) processedDir() string { return filepath.Join(f.dir, "processed") }

// SaveRaw сохраняет записи актора в raw/{platform}_{ts}.json.
func (f *Files) SaveRaw(_ context.Context, platform domain.Platform, records []domain.Record) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if records == nil {
		records = []domain.Record{}
	}
	path := filepath.Join(f.rawDir(), fmt.Sprintf("%s_%s.json", platform, f.now().Format(fileStamp)))
	if err := writeJSON(path, records); err != nil {
		return "", fmt.Errorf("files: raw: %w", err)
	}
	return path, nil
}

// SavePosts пишет по каждой платформе processed JSON, CSV постов и,
// если есть комментарии, отдельный CSV комментариев.
func (f *Files) SavePosts(_ context.Context, posts []domain.Post) error {
	if len(posts) == 0 {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	stamp := f.now().Format(fileStamp)
	byPlatform := make(map[domain.Platform][]domain.Post)
	var order []domain.Platform
	for _, p := range posts {
		if _, ok := byPlatform[p.Platform]; !ok {
			order = append(order, p.Platform)
		}
		byPlatform[p.Platform] = append(byPlatform[p.Platform], p)
	}
	for _, platform := range order {
		group := byPlatform[platform]
		base := filepath.Join(f.processedDir(), fmt.Sprintf("%s_%s", platform, stamp))
		if err := writeJSON(base+".json", group); err != nil {
			return fmt.Errorf("files: processed json: %w", err)
		}
		if err := writePostsCSV(base+".csv", group); err != nil {
			return fmt.Errorf("files: processed csv: %w", err)
		}
		if countComments(group) == 0 {
			continue
		}
		commentsPath := filepath.Join(f.processedDir(), fmt.Sprintf("%s_comments_%s.csv", platform, stamp))
		if err := writeCommentsCSV(commentsPath, group); err != nil {
			return fmt.Errorf("files: comments csv: %w", err)
		}
	}
	return nil
}

// ListPosts читает последний сохранённый файл платформы.
func (f *Files) ListPosts(_ context.Context, platform domain.Platform, limit int) ([]domain.Post, error) {
	path, err := f.Latest(platform)
	if err != nil {
		return nil, err
	}
	posts, err := LoadPosts(path)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(posts) > limit {
		posts = posts[:limit]
	}
	return posts, nil
}

// ListSaved возвращает сохранённые файлы постов, новые первыми.
// Пустая платформа означает все платформы.
func (f *Files) ListSaved(platform domain.Platform) ([]SavedFile, error) {
	entries, err := os.ReadDir(f.processedDir())
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var files []SavedFile
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || filepath.Ext(name) != ".json" {
			continue
		}
		p, savedAt, ok := parseSavedName(strings.TrimSuffix(name, ".json"))
		if !ok || (platform != "" && p != platform) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, err
		}
		files = append(files, SavedFile{
			Path:     filepath.Join(f.processedDir(), name),
			Platform: p,
			SavedAt:  savedAt,
			Size:     info.Size(),
		})
	}
	sort.SliceStable(files, func(i, j int) bool { return files[i].SavedAt.After(files[j].SavedAt) })
	return files, nil
}

// Latest возвращает путь к последнему файлу платформы.
func (f *Files) Latest(platform domain.Platform) (string, error) {
	files, err := f.ListSaved(platform)
	if err != nil {
		return "", err
	}
	if len(files) == 0 {
		return "", ErrNoSavedFiles
	}
	return files[0].Path, nil
}

// LoadPosts читает посты из processed JSON.
func LoadPosts(path string) ([]domain.Post, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var posts []domain.Post
	if err := json.Unmarshal(raw, &posts); err != nil {
		return nil, fmt.Errorf("files: %s: %w", filepath.Base(path), err)
	}
	return posts, nil
}

// parseSavedName разбирает "{platform}_{YYYYMMDD}_{HHMMSS}".
func parseSavedName(name string) (domain.Platform, time.Time, bool) {
	parts := strings.SplitN(name, "_", 2)
	if len(parts) != 2 {
		return "", time.Time{}, false
	}
	p, ok := domain.ParsePlatform(parts[0])
	if !ok {
		return "", time.Time{}, false
	}
	ts, err := time.Parse(fileStamp, parts[1])
	if err != nil {
		return "", time.Time{}, false
	}
	return p, ts, true
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

var postColumns = []string{
	"platform", "post_id", "published_at", "author", "text", "post_url",
	"likes", "comments", "shares", "views", "reactions", "comments_fetched", "platform_extra",
}

func writePostsCSV(path string, posts []domain.Post) error {
	rows := make([][]string, 0, len(posts)+1)
	rows = append(rows, postColumns)
	for _, p := range posts {
		rows = append(rows, []string{
			string(p.Platform),
			p.ID,
			formatTime(p.PublishedAt),
			p.Author,
			p.Text,
			p.URL,
			strconv.Itoa(p.Engagement.Likes),
			strconv.Itoa(p.Engagement.Comments),
			strconv.Itoa(p.Engagement.Shares),
			strconv.Itoa(p.Engagement.Views),
			jsonCell(p.Engagement.Reactions),
			strconv.Itoa(len(p.Comments)),
			jsonCell(p.Extra),
		})
	}
	return writeCSV(path, rows)
}

var commentColumns = []string{
	"post_id", "comment_id", "parent_id", "author_name", "created_at", "text", "likes_count", "replies_count",
}

func writeCommentsCSV(path string, posts []domain.Post) error {
	rows := [][]string{commentColumns}
	for _, p := range posts {
		for _, c := range p.Comments {
			rows = append(rows, []string{
				p.ID,
				c.ID,
				c.ParentID,
				c.AuthorName,
				formatTime(c.CreatedAt),
				c.Text,
				strconv.Itoa(c.Likes),
				strconv.Itoa(c.Replies),
			})
		}
	}
	return writeCSV(path, rows)
}

func writeCSV(path string, rows [][]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(file)
	if err := w.WriteAll(rows); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}

func jsonCell(v any) string {
	switch t := v.(type) {
	case map[string]int:
		if len(t) == 0 {
			return ""
		}
	case map[string]any:
		if len(t) == 0 {
			return ""
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func countComments(posts []domain.Post) int {
	total := 0
	for _, p := range posts {
		total += len(p.Comments)
	}
	return total
}
