package normalize

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/rishabhpatre/ai-news-agent/app/item"
	"github.com/rishabhpatre/ai-news-agent/app/source"
)

var (
	ErrUnknownSource = errors.New("unknown source")
	ErrEmptyTitle    = errors.New("missing title")
	ErrNoTimestamp   = errors.New("missing publication time")
)

// Profile is what the normalizer needs to know about a source.
type Profile struct {
	Category item.Category
	Weight   float64
	Window   item.Window
}

// ProfileFor resolves the profile of a configured source for a run window.
func ProfileFor(src *source.Config, policy *source.Policy, window item.Window) Profile {
	return Profile{
		Category: src.Category,
		Weight:   policy.WeightFor(src),
		Window:   window,
	}
}

type Normalizer struct {
	profiles     map[string]Profile
	maxBodyRunes int
}

func NewNormalizer(profiles map[string]Profile, maxBodyRunes int) *Normalizer {
	return &Normalizer{profiles: profiles, maxBodyRunes: maxBodyRunes}
}

// Run normalizes every record independently. A rejected record becomes a
// Drop and never affects its siblings.
func (n *Normalizer) Run(raws []item.Raw) ([]item.Canonical, []item.Drop) {
	items := make([]item.Canonical, 0, len(raws))
	var drops []item.Drop

	for _, raw := range raws {
		c, err := n.Normalize(raw)
		if err != nil {
			slog.Debug("Item dropped", "source", raw.SourceID, "link", raw.Link, "reason", err)
			drops = append(drops, item.Drop{
				SourceID: raw.SourceID,
				Title:    raw.Title,
				Link:     raw.Link,
				Reason:   err.Error(),
			})
			continue
		}
		items = append(items, c)
	}

	return items, drops
}

func (n *Normalizer) Normalize(raw item.Raw) (item.Canonical, error) {
	profile, ok := n.profiles[raw.SourceID]
	if !ok {
		return item.Canonical{}, fmt.Errorf("%w %q", ErrUnknownSource, raw.SourceID)
	}

	title := CleanTitle(raw.Title)
	if title == "" {
		return item.Canonical{}, ErrEmptyTitle
	}

	link, err := CanonicalLink(raw.Link)
	if err != nil {
		return item.Canonical{}, err
	}

	if raw.Published.IsZero() {
		return item.Canonical{}, ErrNoTimestamp
	}
	published := raw.Published.UTC()
	if !profile.Window.Contains(published) {
		return item.Canonical{}, fmt.Errorf("published %s outside window %s..%s",
			published.Format("2006-01-02T15:04:05Z"),
			profile.Window.Start.UTC().Format("2006-01-02T15:04:05Z"),
			profile.Window.End.UTC().Format("2006-01-02T15:04:05Z"))
	}

	out := item.Canonical{
		Raw:          raw,
		Category:     profile.Category,
		PublishedUTC: published,
		MatchTitle:   MatchTitle(title),
		TierWeight:   profile.Weight,
	}
	out.Title = title
	out.Link = link
	out.Body = Truncate(StripHTML(raw.Body), n.maxBodyRunes)
	out.Published = published
	out.Author = CollapseSpace(raw.Author)
	out.Venue = CollapseSpace(raw.Venue)

	// Thumbnails keep their query (CDN sizing) but must be absolute.
	if _, err := CanonicalLink(out.Thumbnail); err != nil {
		out.Thumbnail = ""
	}

	return out, nil
}
