package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/mcortz/meshlens/internal/models"
)

// classNames is the classifier's fixed label set, in its output order. The
// per-class probability vector stored alongside each record follows this
// ordering.
var classNames = []string{
	"bathtub", "bed", "chair", "desk", "dresser",
	"monitor", "night_stand", "sofa", "table", "toilet",
}

type HistoryConfig struct {
	ConnString  string
	TableName   string
	SearchLimit int
}

// History persists classification outcomes in PostgreSQL. Each row keeps the
// parsed result plus a pgvector of per-class probabilities, so past uploads
// that classified similarly can be looked up by vector distance.
type History struct {
	config HistoryConfig
	pool   *pgxpool.Pool
}

// Record is one stored classification outcome.
type Record struct {
	ID             string
	FileName       string
	PredictedClass string
	Confidence     float64
	TopPredictions []models.Prediction
	ClassifiedAt   time.Time
}

func NewWithConfig(config HistoryConfig) (*History, error) {
	if config.TableName == "" {
		config.TableName = "classifications"
	}
	if config.SearchLimit == 0 {
		config.SearchLimit = 5
	}

	pool, err := pgxpool.New(context.Background(), config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %v", err)
	}

	h := &History{
		config: config,
		pool:   pool,
	}

	if err := h.initialize(); err != nil {
		pool.Close()
		return nil, err
	}

	return h, nil
}

func (h *History) initialize() error {
	ctx := context.Background()

	// Enable pgvector extension
	_, err := h.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
	if err != nil {
		return fmt.Errorf("failed to create vector extension: %v", err)
	}

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			file_name TEXT NOT NULL,
			predicted_class TEXT NOT NULL,
			confidence DOUBLE PRECISION,
			top_predictions JSONB,
			probs vector(%d),
			classified_at TIMESTAMPTZ NOT NULL
		)`, h.config.TableName, len(classNames))

	_, err = h.pool.Exec(ctx, createTable)
	if err != nil {
		return fmt.Errorf("failed to create table: %v", err)
	}

	createIndex := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s_probs_idx
		ON %s
		USING ivfflat (probs vector_cosine_ops)
		WITH (lists = 100)`,
		h.config.TableName, h.config.TableName)

	_, err = h.pool.Exec(ctx, createIndex)
	if err != nil {
		return fmt.Errorf("failed to create index: %v", err)
	}

	return nil
}

// Save stores one classification outcome.
func (h *History) Save(ctx context.Context, fileName string, res *models.Result) error {
	preds, err := json.Marshal(res.TopPredictions)
	if err != nil {
		return fmt.Errorf("failed to encode predictions: %v", err)
	}

	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, file_name, predicted_class, confidence, top_predictions, probs, classified_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		h.config.TableName)

	_, err = h.pool.Exec(ctx, stmt,
		uuid.NewString(),
		fileName,
		res.PredictedClass,
		res.Confidence,
		preds,
		pgvector.NewVector(ClassVector(res.TopPredictions)),
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert classification: %v", err)
	}

	return nil
}

// Similar returns past records whose probability vectors are closest to the
// given one, nearest first.
func (h *History) Similar(ctx context.Context, probs []float32, limit int) ([]Record, error) {
	if limit == 0 {
		limit = h.config.SearchLimit
	}

	query := fmt.Sprintf(`
		SELECT id, file_name, predicted_class, confidence, top_predictions, classified_at
		FROM %s
		ORDER BY probs <=> $1
		LIMIT $2`,
		h.config.TableName)

	rows, err := h.pool.Query(ctx, query, pgvector.NewVector(probs), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query classifications: %v", err)
	}
	defer rows.Close()

	var recs []Record
	for rows.Next() {
		var rec Record
		var preds []byte
		err := rows.Scan(
			&rec.ID,
			&rec.FileName,
			&rec.PredictedClass,
			&rec.Confidence,
			&preds,
			&rec.ClassifiedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %v", err)
		}
		if len(preds) > 0 {
			if err := json.Unmarshal(preds, &rec.TopPredictions); err != nil {
				return nil, fmt.Errorf("failed to decode predictions: %v", err)
			}
		}
		recs = append(recs, rec)
	}

	return recs, rows.Err()
}

func (h *History) Close() {
	if h.pool != nil {
		h.pool.Close()
	}
}

// ClassVector spreads the classifier's top-k probabilities over the full
// label set, zero elsewhere. Probabilities arrive as percentages and are
// stored as fractions.
func ClassVector(preds []models.Prediction) []float32 {
	vec := make([]float32, len(classNames))
	for _, p := range preds {
		for i, name := range classNames {
			if name == p.ClassName {
				vec[i] = float32(p.Probability / 100)
				break
			}
		}
	}
	return vec
}
