package model

import (
	"fmt"
	"strings"
)

// APIError は統一エラーフォーマットを表す。
// 読み取りAPIとレート制限の応答で使用する。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, system
	Action   string // 呼び出し元向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidCategory = "INVALID_CATEGORY"
	ErrCodeInvalidLimit    = "INVALID_LIMIT"
	ErrCodeRateLimited     = "RATE_LIMITED"
	ErrCodeInternal        = "INTERNAL_ERROR"
)

// NewInvalidCategoryError は無効なカテゴリ指定エラーを生成する。
func NewInvalidCategoryError(category string) *APIError {
	names := make([]string, 0, len(AllCategories()))
	for _, c := range AllCategories() {
		names = append(names, string(c))
	}
	return &APIError{
		Code:     ErrCodeInvalidCategory,
		Message:  fmt.Sprintf("無効なカテゴリです: %s", category),
		Category: "validation",
		Action:   fmt.Sprintf("カテゴリには %s のいずれかを指定してください。", strings.Join(names, ", ")),
	}
}

// NewInvalidLimitError は無効な取得件数指定エラーを生成する。
func NewInvalidLimitError(raw string, maxLimit int) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidLimit,
		Message:  fmt.Sprintf("無効な取得件数です: %s", raw),
		Category: "validation",
		Action:   fmt.Sprintf("limitには1から%dまでの整数を指定してください。", maxLimit),
	}
}

// NewInternalError は内部エラーを生成する。詳細はログのみに記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
