// Package channel loads per-channel profile files. A profile bundles the
// defaults, QC thresholds, and templating a channel's uploads share: duration
// rules, prompt constraints for the planner, title/description/CTA templates,
// tag rules, thumbnail styling, and upload defaults.
//
// Profiles are YAML documents under the configured channels directory, one
// file per channel id.
package channel

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrNotFound reports a channel id with no profile file.
var ErrNotFound = errors.New("channel profile not found")

// DurationRules bounds output length and track counts.
type DurationRules struct {
	TargetMinutes   int     `yaml:"target_minutes"`
	MinMinutes      int     `yaml:"min_minutes"`
	MaxMinutes      int     `yaml:"max_minutes"`
	TrackCount      int     `yaml:"track_count"`
	MinTrackSeconds float64 `yaml:"min_track_seconds"`
}

// PromptConstraints steer the planner.
type PromptConstraints struct {
	DefaultInstrumental bool     `yaml:"default_instrumental"`
	DefaultVocals       bool     `yaml:"default_vocals"`
	EnergyLevel         string   `yaml:"energy_level"`
	BannedTerms         []string `yaml:"banned_terms"`
	StyleGuidance       string   `yaml:"style_guidance"`
}

// TitleTemplate is one upload title variant.
type TitleTemplate struct {
	Template string `yaml:"template"`
	Example  string `yaml:"example"`
}

// DescriptionTemplate shapes the upload description.
type DescriptionTemplate struct {
	Template string `yaml:"template"`
	CTABlock string `yaml:"cta_block"`
}

// CTATemplate is one call-to-action variant.
type CTATemplate struct {
	VariantID string `yaml:"variant_id"`
	ShortText string `yaml:"short_text"`
	LongText  string `yaml:"long_text"`
}

// TagRules restrict upload tags.
type TagRules struct {
	Whitelist   []string `yaml:"whitelist"`
	BannedTerms []string `yaml:"banned_terms"`
}

// ThumbnailStyle describes thumbnail composition.
type ThumbnailStyle struct {
	FontFamily    string `yaml:"font_family"`
	LayoutVariant string `yaml:"layout_variant"`
	TextColor     string `yaml:"text_color"`
	FontSizeTitle int    `yaml:"font_size_title"`
}

// UploadDefaults are per-channel upload settings.
type UploadDefaults struct {
	Privacy         string `yaml:"privacy"`
	CategoryID      string `yaml:"category_id"`
	DefaultLanguage string `yaml:"default_language"`
	MadeForKids     bool   `yaml:"made_for_kids"`
}

// Profile is a complete channel configuration.
type Profile struct {
	ChannelID           string              `yaml:"channel_id"`
	Name                string              `yaml:"name"`
	Intent              string              `yaml:"intent"`
	DurationRules       DurationRules       `yaml:"duration_rules"`
	PromptConstraints   PromptConstraints   `yaml:"prompt_constraints"`
	TitleTemplates      []TitleTemplate     `yaml:"title_templates"`
	DescriptionTemplate DescriptionTemplate `yaml:"description_template"`
	CTAVariants         []CTATemplate       `yaml:"cta_variants"`
	TagRules            TagRules            `yaml:"tag_rules"`
	ThumbnailStyle      ThumbnailStyle      `yaml:"thumbnail_style"`
	UploadDefaults      UploadDefaults      `yaml:"upload_defaults"`
}

// Catalog resolves channel ids to profiles on disk.
type Catalog struct {
	dir string
}

// NewCatalog builds a catalog over the channels directory.
func NewCatalog(dir string) *Catalog {
	return &Catalog{dir: dir}
}

// Load reads and validates the profile for id.
func (c *Catalog) Load(id string) (*Profile, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.New("channel id is required")
	}
	path := filepath.Join(c.dir, id+".yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("read channel %s: %w", id, err)
	}

	profile := defaultProfile()
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("parse channel %s: %w", id, err)
	}
	// The filename is authoritative for the id.
	profile.ChannelID = id
	if err := profile.validate(); err != nil {
		return nil, fmt.Errorf("channel %s: %w", id, err)
	}
	return &profile, nil
}

// List returns available channel ids in sorted order.
func (c *Catalog) List() ([]string, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list channels: %w", err)
	}
	var ids []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".yaml") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".yaml"))
	}
	sort.Strings(ids)
	return ids, nil
}

func defaultProfile() Profile {
	return Profile{
		DurationRules: DurationRules{
			TargetMinutes:   60,
			MinMinutes:      30,
			MaxMinutes:      480,
			TrackCount:      25,
			MinTrackSeconds: 60,
		},
		PromptConstraints: PromptConstraints{
			DefaultInstrumental: true,
			EnergyLevel:         "medium",
		},
		ThumbnailStyle: ThumbnailStyle{
			FontFamily:    "Cinzel",
			LayoutVariant: "big_title_small_subtitle",
			TextColor:     "0xF6F6F0",
		},
		UploadDefaults: UploadDefaults{
			Privacy:         "unlisted",
			CategoryID:      "10",
			DefaultLanguage: "en",
		},
	}
}

func (p *Profile) validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return errors.New("name is required")
	}
	if p.DurationRules.TargetMinutes < 1 {
		return errors.New("duration_rules.target_minutes must be positive")
	}
	if p.DurationRules.TrackCount < 1 {
		return errors.New("duration_rules.track_count must be positive")
	}
	switch p.UploadDefaults.Privacy {
	case "public", "private", "unlisted":
	default:
		return fmt.Errorf("upload_defaults.privacy %q is not one of public, private, unlisted", p.UploadDefaults.Privacy)
	}
	return nil
}

// AllowedTags filters tags against the whitelist and banned terms.
func (p *Profile) AllowedTags(tags []string) []string {
	whitelist := make(map[string]struct{}, len(p.TagRules.Whitelist))
	for _, tag := range p.TagRules.Whitelist {
		whitelist[strings.ToLower(tag)] = struct{}{}
	}
	var out []string
	for _, tag := range tags {
		normalized := strings.ToLower(strings.TrimSpace(tag))
		if normalized == "" {
			continue
		}
		if len(whitelist) > 0 {
			if _, ok := whitelist[normalized]; !ok {
				continue
			}
		}
		if p.containsBannedTerm(normalized) {
			continue
		}
		out = append(out, tag)
	}
	return out
}

func (p *Profile) containsBannedTerm(value string) bool {
	for _, banned := range p.TagRules.BannedTerms {
		banned = strings.ToLower(strings.TrimSpace(banned))
		if banned != "" && strings.Contains(value, banned) {
			return true
		}
	}
	return false
}
