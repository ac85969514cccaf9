package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Sources はフェッチ対象フィードURLの2つの互いに素なリストを保持する。
type Sources struct {
	Lifestyle []string `yaml:"lifestyle"`
	Disease   []string `yaml:"disease"`
}

// DefaultSources は組み込みのフィードURLリストを返す。
func DefaultSources() Sources {
	return Sources{
		Lifestyle: []string{
			"https://www.health.harvard.edu/rss/feed",
			"https://www.medicalnewstoday.com/rss/nutrition",
			"https://www.webmd.com/rss/food-nutrition.xml",
			"https://www.menshealth.com/fitness/rss/",
			"https://www.womenshealthmag.com/fitness/rss/",
			"https://www.yogajournal.com/feed/",
			"https://www.mindbodygreen.com/rss/feed",
			"https://www.healthline.com/rss/beauty.xml",
			"https://www.shape.com/rss/beauty",
			"https://www.medicalnewstoday.com/rss/general-health",
			"https://www.self.com/feeds/latest.xml",
			"https://www.health.com/feed",
			"https://www.everydayhealth.com/rss.xml",
			"https://www.eatingwell.com/rss/all/",
			"https://www.runnersworld.com/rss/all.xml",
			"https://www.who.int/feeds/entity/emergencies/en/rss.xml",
			"https://www.nature.com/subjects/infectious-diseases/rss.xml",
			"https://www.news-medical.net/rss/Infectious-Disease.xml",
			"https://www.health.gov.au/news/rss",
			"https://www.livestrong.com/rss/",
			"https://www.wellandgood.com/feed/",
			"https://www.byrdie.com/rss",
			"https://www.womensrunning.com/feed/",
		},
		Disease: []string{
			"https://www.medicalnewstoday.com/rss/infectious-diseases",
			"https://www.cdc.gov/feeds/rss/infectiousdiseases.xml",
			"https://www.who.int/feeds/entity/emergencies/en/rss.xml",
			"https://www.news-medical.net/rss/Infectious-Disease.xml",
		},
	}
}

// Override は空でないリストだけをotherで置き換えたSourcesを返す。
func (s Sources) Override(other Sources) Sources {
	out := s
	if len(other.Lifestyle) > 0 {
		out.Lifestyle = other.Lifestyle
	}
	if len(other.Disease) > 0 {
		out.Disease = other.Disease
	}
	return out
}

// LoadSourcesFile はYAML形式のフィードURLリストを読み込む。
//
//	lifestyle:
//	  - https://example.com/rss
//	disease:
//	  - https://example.com/outbreaks.xml
func LoadSourcesFile(path string) (Sources, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Sources{}, fmt.Errorf("failed to read feed sources file: %w", err)
	}

	var s Sources
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Sources{}, fmt.Errorf("failed to parse feed sources file %s: %w", path, err)
	}
	return s, nil
}
