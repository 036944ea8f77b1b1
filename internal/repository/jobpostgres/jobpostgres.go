// Package jobpostgres keeps watermark jobs in PostgreSQL
package jobpostgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"

	"github.com/UnendingLoop/WatermarkManager/internal/model"
	"github.com/wb-go/wbf/dbpg"
)

type PostgresRepo struct {
	DB *dbpg.DB
}

func (p PostgresRepo) Create(ctx context.Context, j *model.Job) error {
	query := `INSERT INTO jobs (job_uid, source_key, wm_key, result_key, source_name, wm_type, wm_text, effects, status, err_msg, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := p.DB.Master.ExecContext(ctx, query,
		j.UID,
		j.SourceKey,
		j.WatermarkKey,
		j.ResultKey,
		j.SourceName,
		j.WatermarkType,
		j.WatermarkText,
		j.Effects,
		j.Status,
		j.ErrMsg,
		j.CreatedAt,
		j.CreatedAt)
	return err
}

func (p PostgresRepo) Get(ctx context.Context, id string) (*model.Job, error) {
	query := `SELECT job_uid, source_key, wm_key, result_key, source_name, wm_type, wm_text, effects, status, err_msg, created_at, updated_at
	FROM jobs
	WHERE job_uid = $1`
	var job model.Job

	err := p.DB.QueryRowContext(ctx, query, id).Scan(&job.UID,
		&job.SourceKey,
		&job.WatermarkKey,
		&job.ResultKey,
		&job.SourceName,
		&job.WatermarkType,
		&job.WatermarkText,
		&job.Effects,
		&job.Status,
		&job.ErrMsg,
		&job.CreatedAt,
		&job.UpdatedAt)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, model.ErrJobNotFound
		default:
			return nil, err // 500
		}
	}
	return &job, nil
}

// GetList - sort и order приходят уже нормализованными из сервиса
func (p PostgresRepo) GetList(ctx context.Context, req *model.ListRequest) ([]model.Job, error) {
	query := fmt.Sprintf(`SELECT job_uid, source_name, wm_type, wm_text, effects, status, err_msg, created_at, updated_at
	FROM jobs
	ORDER BY %s %s
	LIMIT $1
	OFFSET $2`, req.Sort, req.Order)

	offset := (req.Page - 1) * req.Limit

	rows, err := p.DB.QueryContext(ctx, query, req.Limit, offset)
	if err != nil {
		return nil, err
	}

	defer func() {
		if err := rows.Close(); err != nil {
			log.Printf("Error while closing *sql.Rows after scanning: %v", err)
		}
	}()

	jobs := make([]model.Job, 0, req.Limit)
	for rows.Next() {
		var job model.Job
		if err := rows.Scan(&job.UID,
			&job.SourceName,
			&job.WatermarkType,
			&job.WatermarkText,
			&job.Effects,
			&job.Status,
			&job.ErrMsg,
			&job.CreatedAt,
			&job.UpdatedAt); err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return jobs, nil
}

func (p PostgresRepo) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM jobs
	WHERE job_uid = $1`

	res, err := p.DB.Master.ExecContext(ctx, query, id)
	if err != nil {
		return err // 500
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return model.ErrJobNotFound // 404
	}
	return nil
}

func (p PostgresRepo) UpdateStatus(ctx context.Context, id string, newStat model.Status) error {
	query := `UPDATE jobs SET status = $1, updated_at = now() WHERE job_uid = $2 RETURNING job_uid`
	return p.updateReturning(ctx, query, newStat, id)
}

func (p PostgresRepo) SaveResult(ctx context.Context, input *model.Job) error {
	query := `UPDATE jobs SET status = $1, updated_at = $2, result_key = $3 WHERE job_uid = $4 RETURNING job_uid`
	return p.updateReturning(ctx, query, input.Status, input.UpdatedAt, input.ResultKey, input.UID)
}

// MarkFailed ставит статус failed и дописывает причину в err_msg
func (p PostgresRepo) MarkFailed(ctx context.Context, id string, reason string) error {
	query := `UPDATE jobs
	SET status = $1, updated_at = now(), err_msg = COALESCE(err_msg, '[]'::jsonb) || to_jsonb($2::text)
	WHERE job_uid = $3
	RETURNING job_uid`
	return p.updateReturning(ctx, query, model.StatusFailed, reason, id)
}

func (p PostgresRepo) updateReturning(ctx context.Context, query string, args ...any) error {
	var uid string
	if err := p.DB.Master.QueryRowContext(ctx, query, args...).Scan(&uid); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return model.ErrJobNotFound // 404
		default:
			return err // 500
		}
	}
	return nil
}

func (p PostgresRepo) FetchOrphans(ctx context.Context, limit int) ([]string, error) {
	query := `SELECT job_uid
	FROM jobs
	WHERE status IN ($1, $2)
	AND updated_at < now() - interval '10 minutes'
	LIMIT $3`

	rows, err := p.DB.QueryContext(ctx, query, model.StatusCreated, model.StatusInProgress, limit)
	if err != nil {
		return nil, err
	}

	defer func() {
		if err := rows.Close(); err != nil {
			log.Printf("Error while closing *sql.Rows after scanning: %v", err)
		}
	}()

	orphans := make([]string, 0, limit)
	for rows.Next() {
		uid := ""
		if err := rows.Scan(&uid); err != nil {
			return nil, err
		}
		orphans = append(orphans, uid)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return orphans, nil
}
