package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Samura1T/College-project-js/internal/domain/entity"
	"github.com/Samura1T/College-project-js/internal/domain/port"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// EmotionRepository is the append-only emotion store. The seq column carries
// insertion order for history reads; rows are never updated or deleted.
type EmotionRepository struct {
	pool *pgxpool.Pool
}

func NewEmotionRepository(pool *pgxpool.Pool) *EmotionRepository {
	return &EmotionRepository{pool: pool}
}

func (r *EmotionRepository) Insert(ctx context.Context, record *entity.EmotionRecord) (*entity.EmotionRecord, error) {
	if err := record.Validate(); err != nil {
		return nil, err
	}

	emotions, err := json.Marshal(record.Emotions)
	if err != nil {
		return nil, fmt.Errorf("marshal emotions: %w", err)
	}
	var box []byte
	if record.Box != nil {
		if box, err = json.Marshal(record.Box); err != nil {
			return nil, fmt.Errorf("marshal box: %w", err)
		}
	}
	var metadata []byte
	if record.Metadata != nil {
		if metadata, err = json.Marshal(record.Metadata); err != nil {
			return nil, fmt.Errorf("marshal metadata: %w", err)
		}
	}

	query := `
		INSERT INTO emotion_records (
			id, camera_id, ts, emotions, dominant_emotion, confidence,
			face_detected, frame_url, box, metadata
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING created_at`

	stored := *record
	err = r.pool.QueryRow(ctx, query,
		record.ID, record.CameraID, record.Timestamp, emotions,
		record.DominantEmotion, record.Confidence, record.FaceDetected,
		record.FrameURL, box, metadata,
	).Scan(&stored.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert emotion record: %w", err)
	}
	return &stored, nil
}

func (r *EmotionRepository) History(ctx context.Context, filter port.HistoryFilter) ([]*entity.EmotionRecord, error) {
	query := `
		SELECT id, camera_id, ts, emotions, dominant_emotion, confidence,
			face_detected, frame_url, box, metadata, created_at
		FROM emotion_records WHERE 1=1`

	args := []any{}
	if filter.CameraID != "" {
		args = append(args, filter.CameraID)
		query += fmt.Sprintf(" AND camera_id=$%d", len(args))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		query += fmt.Sprintf(" AND ts >= $%d", len(args))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		query += fmt.Sprintf(" AND ts <= $%d", len(args))
	}
	query += " ORDER BY seq"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query emotion history: %w", err)
	}
	defer rows.Close()

	records := []*entity.EmotionRecord{}
	for rows.Next() {
		record, err := scanEmotionRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate emotion history: %w", err)
	}
	return records, nil
}

func scanEmotionRecord(row pgx.Row) (*entity.EmotionRecord, error) {
	record := &entity.EmotionRecord{}
	var emotions, box, metadata []byte
	err := row.Scan(
		&record.ID, &record.CameraID, &record.Timestamp, &emotions,
		&record.DominantEmotion, &record.Confidence, &record.FaceDetected,
		&record.FrameURL, &box, &metadata, &record.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan emotion record: %w", err)
	}
	if len(emotions) > 0 {
		if err := json.Unmarshal(emotions, &record.Emotions); err != nil {
			return nil, fmt.Errorf("unmarshal emotions: %w", err)
		}
	}
	if len(box) > 0 {
		record.Box = &entity.BoundingBox{}
		if err := json.Unmarshal(box, record.Box); err != nil {
			return nil, fmt.Errorf("unmarshal box: %w", err)
		}
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &record.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	return record, nil
}
