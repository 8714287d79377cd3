package imgpostgres

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/UnendingLoop/ImageVariants/internal/model"
	"github.com/wb-go/wbf/dbpg"
)

type PostgresRepo struct {
	DB *dbpg.DB
}

//--------------------ORIGINALS

func (p PostgresRepo) CreateOriginal(ctx context.Context, o *model.Original) error {
	query := `INSERT INTO originals (original_uid, title, caption, resource_key, content_type, width, height, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := p.DB.Master.ExecContext(ctx, query, o.UID, o.Title, o.Caption, o.ResourceKey, o.ContentType, o.Width, o.Height, o.CreatedAt)
	return err
}

func (p PostgresRepo) GetOriginal(ctx context.Context, id string) (*model.Original, error) {
	query := `SELECT original_uid, title, caption, resource_key, content_type, width, height, created_at
	FROM originals
	WHERE original_uid = $1`
	var o model.Original

	err := p.DB.QueryRowContext(ctx, query, id).Scan(&o.UID,
		&o.Title,
		&o.Caption,
		&o.ResourceKey,
		&o.ContentType,
		&o.Width,
		&o.Height,
		&o.CreatedAt)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, model.ErrOriginalNotFound
		default:
			return nil, err // 500
		}
	}
	return &o, nil
}

//--------------------VARIANTS

const variantColumns = `variant_uid, original_uid, preset_id, name, resource_key, width, height, adjustments, fingerprint, created_at, updated_at`

// SaveVariant inserts the record or overwrites the rendition of an existing one.
func (p PostgresRepo) SaveVariant(ctx context.Context, v *model.VariantRecord) error {
	query := `INSERT INTO variants (` + variantColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	ON CONFLICT (variant_uid) DO UPDATE SET
		name = EXCLUDED.name,
		resource_key = EXCLUDED.resource_key,
		width = EXCLUDED.width,
		height = EXCLUDED.height,
		adjustments = EXCLUDED.adjustments,
		fingerprint = EXCLUDED.fingerprint,
		updated_at = EXCLUDED.updated_at`
	_, err := p.DB.Master.ExecContext(ctx, query,
		v.UID,
		v.OriginalUID,
		v.PresetID,
		v.Name,
		v.ResourceKey,
		v.Width,
		v.Height,
		v.Adjustments,
		v.Fingerprint,
		v.CreatedAt,
		v.UpdatedAt)
	return err
}

func (p PostgresRepo) GetVariant(ctx context.Context, id string) (*model.VariantRecord, error) {
	query := `SELECT ` + variantColumns + `
	FROM variants
	WHERE variant_uid = $1`

	v, err := scanVariant(p.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, model.ErrVariantNotFound
		default:
			return nil, err // 500
		}
	}
	return v, nil
}

// FindVariantByFingerprint returns model.ErrVariantNotFound when the original has no variant with
// this chain yet.
func (p PostgresRepo) FindVariantByFingerprint(ctx context.Context, originalID, fingerprint string) (*model.VariantRecord, error) {
	query := `SELECT ` + variantColumns + `
	FROM variants
	WHERE original_uid = $1 AND fingerprint = $2
	ORDER BY created_at
	LIMIT 1`

	v, err := scanVariant(p.DB.QueryRowContext(ctx, query, originalID, fingerprint))
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, model.ErrVariantNotFound
		default:
			return nil, err // 500
		}
	}
	return v, nil
}

func (p PostgresRepo) ListVariants(ctx context.Context, originalID string) ([]model.VariantRecord, error) {
	query := `SELECT ` + variantColumns + `
	FROM variants
	WHERE original_uid = $1
	ORDER BY created_at`

	rows, err := p.DB.QueryContext(ctx, query, originalID)
	if err != nil {
		return nil, err
	}

	defer func() {
		if err := rows.Close(); err != nil {
			log.Printf("Error while closing *sql.Rows after scanning: %v", err)
		}
	}()

	variants := []model.VariantRecord{}
	for rows.Next() {
		v, err := scanVariant(rows)
		if err != nil {
			return nil, err
		}
		variants = append(variants, *v)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return variants, nil
}

func (p PostgresRepo) DeleteVariant(ctx context.Context, id string) error {
	query := `DELETE FROM variants
	WHERE variant_uid = $1`

	res, err := p.DB.Master.ExecContext(ctx, query, id)
	if err != nil {
		return err // 500
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return model.ErrVariantNotFound // 404
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanVariant(row scanner) (*model.VariantRecord, error) {
	var v model.VariantRecord
	if err := row.Scan(&v.UID,
		&v.OriginalUID,
		&v.PresetID,
		&v.Name,
		&v.ResourceKey,
		&v.Width,
		&v.Height,
		&v.Adjustments,
		&v.Fingerprint,
		&v.CreatedAt,
		&v.UpdatedAt); err != nil {
		return nil, err
	}
	return &v, nil
}
