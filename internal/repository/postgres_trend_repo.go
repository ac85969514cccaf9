package repository

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/hitoshi/healthtrends/internal/model"
)

const trendsTable = "health_trends"

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var trendColumns = []string{
	"id", "title", "link", "description", "image_url",
	"category", "short_summary", "is_published", "inserted_at",
}

// PostgresTrendRepo はPostgreSQLを使用したトレンド記事リポジトリ。
type PostgresTrendRepo struct {
	db *sql.DB
}

var _ TrendRepository = (*PostgresTrendRepo)(nil)

// NewPostgresTrendRepo はPostgresTrendRepoを生成する。
func NewPostgresTrendRepo(db *sql.DB) *PostgresTrendRepo {
	return &PostgresTrendRepo{db: db}
}

// UpsertBatch はrowsを1トランザクションでUPSERTする。
// 既存のlinkは内容を上書きし、inserted_atを書き込み時刻に更新する。
// inserted_atはclock_timestamp()のため、バッチ内の順序がそのまま挿入順になる。
func (r *PostgresTrendRepo) UpsertBatch(ctx context.Context, rows []model.EnrichedArticle) (int, error) {
	rows = collapseByLink(rows)
	if len(rows) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	for _, row := range rows {
		query, args, err := upsertQuery(row)
		if err != nil {
			return 0, fmt.Errorf("UPSERT文の組み立てに失敗しました: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return 0, fmt.Errorf("記事のUPSERTに失敗しました (link=%s): %w", row.Link, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("トランザクションのコミットに失敗しました: %w", err)
	}
	return len(rows), nil
}

func upsertQuery(row model.EnrichedArticle) (string, []interface{}, error) {
	return psql.Insert(trendsTable).
		Columns("id", "title", "link", "description", "image_url",
			"category", "short_summary", "is_published", "inserted_at").
		Values(uuid.New().String(), row.Title, row.Link, row.Description, nullString(row.ImageURL),
			string(row.Category), row.ShortSummary, row.IsPublished, sq.Expr("clock_timestamp()")).
		Suffix(`ON CONFLICT (link) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			image_url = EXCLUDED.image_url,
			category = EXCLUDED.category,
			short_summary = EXCLUDED.short_summary,
			is_published = EXCLUDED.is_published,
			inserted_at = EXCLUDED.inserted_at`).
		ToSql()
}

// collapseByLink はlinkの重複を1件にまとめる。
// 後に現れた内容を採用し、位置は最初の出現位置を保つ。
func collapseByLink(rows []model.EnrichedArticle) []model.EnrichedArticle {
	index := make(map[string]int, len(rows))
	out := make([]model.EnrichedArticle, 0, len(rows))
	for _, row := range rows {
		if i, ok := index[row.Link]; ok {
			out[i] = row
			continue
		}
		index[row.Link] = len(out)
		out = append(out, row)
	}
	return out
}

// ListIDsByInsertedAt は全行のIDを古い順に返す。
func (r *PostgresTrendRepo) ListIDsByInsertedAt(ctx context.Context) ([]string, error) {
	query, args, err := psql.Select("id").
		From(trendsTable).
		OrderBy("inserted_at ASC", "id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("SELECT文の組み立てに失敗しました: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("記事IDの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("記事IDの読み取りに失敗しました: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("記事IDの取得に失敗しました: %w", err)
	}
	return ids, nil
}

// DeleteByIDs は指定IDの行を削除する。idsが空の場合は何もしない。
func (r *PostgresTrendRepo) DeleteByIDs(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	query, args, err := psql.Delete(trendsTable).
		Where("id = ANY(?::uuid[])", pq.Array(ids)).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("DELETE文の組み立てに失敗しました: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("記事の削除に失敗しました: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("削除件数の取得に失敗しました: %w", err)
	}
	return n, nil
}

// Count は全行数を返す。
func (r *PostgresTrendRepo) Count(ctx context.Context) (int, error) {
	query, args, err := psql.Select("COUNT(*)").From(trendsTable).ToSql()
	if err != nil {
		return 0, fmt.Errorf("SELECT文の組み立てに失敗しました: %w", err)
	}

	var count int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("記事数の取得に失敗しました: %w", err)
	}
	return count, nil
}

// ListRandom は公開済みの行からランダムに取得する。
// filter.Categoryが空でなければそのカテゴリに限定する。
func (r *PostgresTrendRepo) ListRandom(ctx context.Context, filter model.TrendFilter) ([]model.HealthTrend, error) {
	b := psql.Select(trendColumns...).
		From(trendsTable).
		Where(sq.Eq{"is_published": true})
	if filter.Category != "" {
		b = b.Where(sq.Eq{"category": string(filter.Category)})
	}
	if filter.Limit > 0 {
		b = b.Limit(uint64(filter.Limit))
	}

	query, args, err := b.OrderBy("random()").ToSql()
	if err != nil {
		return nil, fmt.Errorf("SELECT文の組み立てに失敗しました: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("トレンド記事の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	trends := []model.HealthTrend{}
	for rows.Next() {
		var t model.HealthTrend
		var imageURL sql.NullString
		var category string
		if err := rows.Scan(
			&t.ID, &t.Title, &t.Link, &t.Description, &imageURL,
			&category, &t.ShortSummary, &t.IsPublished, &t.InsertedAt,
		); err != nil {
			return nil, fmt.Errorf("トレンド記事の読み取りに失敗しました: %w", err)
		}
		t.ImageURL = nullStringValue(imageURL)
		t.Category = model.Category(category)
		trends = append(trends, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("トレンド記事の取得に失敗しました: %w", err)
	}
	return trends, nil
}

// nullString は空文字列をsql.NullStringに変換する。
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullStringValue はsql.NullStringから文字列を取得する。
func nullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}
