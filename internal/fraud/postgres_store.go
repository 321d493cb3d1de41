package fraud

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// PostgresStore persists fraud results and calibration feedback in
// PostgreSQL. Schema lives in migrations/ (goose); Migrate covers the
// no-migration-runner path used by tests.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the tables if they don't exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS fraud_results (
			transaction_id     VARCHAR(64) PRIMARY KEY,
			user_id            VARCHAR(64) NOT NULL,
			merchant_id        VARCHAR(64) NOT NULL,
			amount             NUMERIC(18,2) NOT NULL,
			currency           VARCHAR(8) NOT NULL,
			fraud_score        NUMERIC(5,4) NOT NULL CHECK (fraud_score >= 0 AND fraud_score <= 1),
			is_fraud           BOOLEAN NOT NULL,
			risk_level         VARCHAR(10) NOT NULL CHECK (risk_level IN ('low', 'medium', 'high')),
			decision           VARCHAR(10) NOT NULL CHECK (decision IN ('approve', 'review', 'decline')),
			top_risk_factors   JSONB NOT NULL DEFAULT '[]',
			model_version      VARCHAR(64),
			processing_time_ms NUMERIC(10,3) NOT NULL,
			evaluated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_fraud_results_user
			ON fraud_results (user_id, evaluated_at DESC);

		CREATE INDEX IF NOT EXISTS idx_fraud_results_flagged
			ON fraud_results (evaluated_at DESC) WHERE decision <> 'approve';

		CREATE TABLE IF NOT EXISTS fraud_feedback (
			id           BIGSERIAL PRIMARY KEY,
			fraud_score  NUMERIC(5,4) NOT NULL,
			actual_fraud BOOLEAN NOT NULL,
			recorded_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`)
	return err
}

func (s *PostgresStore) SaveResult(ctx context.Context, tx *Transaction, result *FraudResult) error {
	factorsJSON, err := json.Marshal(result.TopRiskFactors)
	if err != nil {
		return fmt.Errorf("failed to marshal risk factors: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO fraud_results (
			transaction_id, user_id, merchant_id, amount, currency,
			fraud_score, is_fraud, risk_level, decision,
			top_risk_factors, model_version, processing_time_ms, evaluated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (transaction_id) DO NOTHING
	`,
		result.TransactionID,
		tx.UserID,
		tx.MerchantID,
		tx.Amount,
		tx.Currency,
		result.FraudScore,
		result.IsFraud,
		string(result.RiskLevel),
		string(result.Decision),
		factorsJSON,
		result.ModelVersion,
		result.ProcessingTimeMs,
		result.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to save fraud result: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetResult(ctx context.Context, transactionID string) (*FraudResult, error) {
	var result FraudResult
	var factorsJSON []byte
	var riskLevel, decision string

	err := s.db.QueryRowContext(ctx, `
		SELECT transaction_id, fraud_score, is_fraud, risk_level, decision,
		       top_risk_factors, model_version, processing_time_ms, evaluated_at
		FROM fraud_results
		WHERE transaction_id = $1
	`, transactionID).Scan(
		&result.TransactionID,
		&result.FraudScore,
		&result.IsFraud,
		&riskLevel,
		&decision,
		&factorsJSON,
		&result.ModelVersion,
		&result.ProcessingTimeMs,
		&result.Timestamp,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrResultNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get fraud result: %w", err)
	}

	result.RiskLevel = RiskLevel(riskLevel)
	result.Decision = Decision(decision)
	_ = json.Unmarshal(factorsJSON, &result.TopRiskFactors)
	return &result, nil
}

func (s *PostgresStore) SaveFeedback(ctx context.Context, record *FeedbackRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO fraud_feedback (fraud_score, actual_fraud, recorded_at)
		VALUES ($1, $2, $3)
	`, record.FraudScore, record.ActualFraud, record.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to save feedback: %w", err)
	}
	return nil
}
