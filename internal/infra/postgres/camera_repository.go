package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/Samura1T/College-project-js/internal/domain/entity"
	"github.com/Samura1T/College-project-js/internal/domain/port"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type CameraRepository struct {
	pool *pgxpool.Pool
}

func NewCameraRepository(pool *pgxpool.Pool) *CameraRepository {
	return &CameraRepository{pool: pool}
}

const cameraColumns = "id, name, stream_url, status, created_at"

func (r *CameraRepository) List(ctx context.Context) ([]*entity.Camera, error) {
	rows, err := r.pool.Query(ctx,
		"SELECT "+cameraColumns+" FROM cameras ORDER BY created_at")
	if err != nil {
		return nil, fmt.Errorf("list cameras: %w", err)
	}
	defer rows.Close()

	cameras := []*entity.Camera{}
	for rows.Next() {
		camera, err := scanCamera(rows)
		if err != nil {
			return nil, err
		}
		cameras = append(cameras, camera)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cameras: %w", err)
	}
	return cameras, nil
}

func (r *CameraRepository) Create(ctx context.Context, camera *entity.Camera) (*entity.Camera, error) {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO cameras (id, name, stream_url, status, created_at)
		 VALUES ($1,$2,$3,$4,$5)`,
		camera.ID, camera.Name, camera.StreamURL, string(camera.Status), camera.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert camera: %w", err)
	}
	return camera, nil
}

func (r *CameraRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Camera, error) {
	row := r.pool.QueryRow(ctx,
		"SELECT "+cameraColumns+" FROM cameras WHERE id=$1", id)
	camera, err := scanCamera(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, port.ErrCameraNotFound
		}
		return nil, err
	}
	return camera, nil
}

// SetOnline flips the camera online and records its stream URL.
func (r *CameraRepository) SetOnline(ctx context.Context, id uuid.UUID, streamURL string) (*entity.Camera, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE cameras SET status=$2, stream_url=$3 WHERE id=$1
		 RETURNING `+cameraColumns,
		id, string(entity.CameraStatusOnline), streamURL,
	)
	camera, err := scanCamera(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, port.ErrCameraNotFound
		}
		return nil, err
	}
	return camera, nil
}

// SetOffline flips the camera offline. The stream URL is kept so the camera
// can come back without re-registering it.
func (r *CameraRepository) SetOffline(ctx context.Context, id uuid.UUID) (*entity.Camera, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE cameras SET status=$2 WHERE id=$1
		 RETURNING `+cameraColumns,
		id, string(entity.CameraStatusOffline),
	)
	camera, err := scanCamera(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, port.ErrCameraNotFound
		}
		return nil, err
	}
	return camera, nil
}

func scanCamera(row pgx.Row) (*entity.Camera, error) {
	camera := &entity.Camera{}
	var status string
	err := row.Scan(&camera.ID, &camera.Name, &camera.StreamURL, &status, &camera.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan camera: %w", err)
	}
	camera.Status = entity.CameraStatus(status)
	return camera, nil
}
