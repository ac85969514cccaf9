// Package model はドメインモデルを定義する。
package model

import (
	"strings"
	"time"
)

// Category は記事カテゴリを表す。値は閉じた集合のいずれか。
type Category string

const (
	CategoryNutrition         Category = "Nutrition"
	CategoryFitness           Category = "Fitness"
	CategoryYoga              Category = "Yoga"
	CategoryMentalHealth      Category = "Mental Health"
	CategoryBeautySkinCare    Category = "Beauty & Skin Care"
	CategoryGeneralWellness   Category = "General Wellness"
	CategoryHealthyLiving     Category = "Healthy Living"
	CategoryDiseasePrevention Category = "Disease & Prevention"
)

// FallbackCategory はモデル応答にカテゴリが無い、または集合外だった場合の既定値。
const FallbackCategory = CategoryGeneralWellness

// FallbackSummary はモデル応答に要約が無い場合の既定値。
const FallbackSummary = "Stay updated with the latest in health and wellness."

// AllCategories は有効なカテゴリを正規順で返す。
func AllCategories() []Category {
	return []Category{
		CategoryNutrition,
		CategoryFitness,
		CategoryYoga,
		CategoryMentalHealth,
		CategoryBeautySkinCare,
		CategoryGeneralWellness,
		CategoryHealthyLiving,
		CategoryDiseasePrevention,
	}
}

// ParseCategory は大文字小文字と前後の空白を無視してカテゴリを照合し、正規のラベルを返す。
func ParseCategory(s string) (Category, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	for _, c := range AllCategories() {
		if strings.EqualFold(string(c), s) {
			return c, true
		}
	}
	return "", false
}

// Article はフィードから抽出した未保存の記事を表す。
// Title、Link、Descriptionのいずれかが空の記事はパーサーが破棄する。
type Article struct {
	Title       string
	Link        string
	Description string
	ImageURL    string // 画像が見つからない場合は空
}

// Valid は必須フィールドがすべて揃っているかを返す。
func (a Article) Valid() bool {
	return a.Title != "" && a.Link != "" && a.Description != ""
}

// EnrichedArticle は要約・カテゴリ付与後の記事を表す。
type EnrichedArticle struct {
	Article
	Category     Category
	ShortSummary string
	IsPublished  bool
}

// HealthTrend はhealth_trendsテーブルの1行を表す。
type HealthTrend struct {
	ID           string
	Title        string
	Link         string
	Description  string
	ImageURL     string
	Category     Category
	ShortSummary string
	IsPublished  bool
	InsertedAt   time.Time
}

// TrendFilter はトレンド記事一覧の取得条件を表す。
type TrendFilter struct {
	Category Category // 空の場合は全カテゴリ
	Limit    int
}
