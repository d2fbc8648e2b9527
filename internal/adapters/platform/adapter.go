package platform

import (
	"fmt"
	"strings"
	"time"

	"social-pulse/internal/domain"
	"social-pulse/internal/infra/config"
)

// Registry хранит адаптеры платформ, собранные один раз при старте.
type Registry struct {
	adapters map[domain.Platform]domain.PlatformAdapter
}

// NewRegistry создаёт адаптеры всех платформ из набора акторов.
func NewRegistry(actors config.ActorSet) *Registry {
	return &Registry{adapters: map[domain.Platform]domain.PlatformAdapter{
		domain.PlatformFacebook:  NewFacebook(actors),
		domain.PlatformInstagram: NewInstagram(actors),
		domain.PlatformYouTube:   NewYouTube(actors),
	}}
}

// Get возвращает адаптер платформы.
func (r *Registry) Get(p domain.Platform) (domain.PlatformAdapter, error) {
	a, ok := r.adapters[p]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedPlatform, p)
	}
	return a, nil
}

// Detect подбирает адаптер по ссылке.
func (r *Registry) Detect(rawURL string) (domain.PlatformAdapter, bool) {
	for _, p := range domain.Platforms {
		if a, ok := r.adapters[p]; ok && a.ValidateTargetURL(rawURL) {
			return a, true
		}
	}
	return nil, false
}

// Resolve выбирает адаптер по явной платформе или по ссылке и проверяет ссылку.
func (r *Registry) Resolve(p domain.Platform, rawURL string) (domain.PlatformAdapter, error) {
	if p == "" {
		a, ok := r.Detect(rawURL)
		if !ok {
			return nil, fmt.Errorf("%w: %q", domain.ErrInvalidTarget, rawURL)
		}
		return a, nil
	}
	a, err := r.Get(p)
	if err != nil {
		return nil, err
	}
	if !a.ValidateTargetURL(rawURL) {
		return nil, fmt.Errorf("%w: %q не похожа на ссылку %s", domain.ErrInvalidTarget, rawURL, p)
	}
	return a, nil
}

func dateParam(t time.Time) string {
	return t.Format("2006-01-02")
}

func startURLs(urls []string) []map[string]string {
	out := make([]map[string]string, 0, len(urls))
	for _, u := range urls {
		out = append(out, map[string]string{"url": u})
	}
	return out
}

func cleanURLs(urls []string) []string {
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if u = strings.TrimSpace(u); u != "" {
			out = append(out, u)
		}
	}
	return out
}
