// Package fraud implements the real-time transaction scoring engine.
//
// Every transaction is converted into a fixed-schema feature vector from the
// caller's rolling behavioral history, scored by an injected model, and mapped
// to an approve/review/decline decision via two ordered thresholds. The engine
// is designed for a sub-100ms budget per transaction: all history lives in
// bounded in-memory windows and the only external call is the scorer itself.
package fraud

import (
	"context"
	"errors"
	"time"
)

// TransactionType classifies a transaction.
type TransactionType string

const (
	TypePurchase   TransactionType = "purchase"
	TypeWithdrawal TransactionType = "withdrawal"
	TypeTransfer   TransactionType = "transfer"
	TypePayment    TransactionType = "payment"
)

// Channel is the medium a transaction arrived through.
type Channel string

const (
	ChannelOnline Channel = "online"
	ChannelMobile Channel = "mobile"
	ChannelATM    Channel = "atm"
	ChannelPOS    Channel = "pos"
)

// RiskLevel buckets a fraud score.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Decision is the engine's verdict on a transaction.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReview  Decision = "review"
	DecisionDecline Decision = "decline"
)

// Transaction is the immutable input to an evaluation. Callers own it for the
// duration of the call; the engine never mutates it.
type Transaction struct {
	ID         string          `json:"transactionId"`
	UserID     string          `json:"userId"`
	MerchantID string          `json:"merchantId"`
	Amount     float64         `json:"amount"`
	Currency   string          `json:"currency"`
	Timestamp  time.Time       `json:"timestamp"`
	Type       TransactionType `json:"transactionType"`
	Channel    Channel         `json:"channel"`

	// Optional context
	IPAddress  string `json:"ipAddress,omitempty"`
	Country    string `json:"country,omitempty"`
	City       string `json:"city,omitempty"`
	DeviceID   string `json:"deviceId,omitempty"`
	DeviceType string `json:"deviceType,omitempty"`

	IsFirstTransaction bool `json:"isFirstTransaction"`
	AccountAgeDays     int  `json:"accountAgeDays"`
}

// FeatureVector maps feature names to numeric values. Immutable once produced.
type FeatureVector map[string]float64

// Contribution is one (feature, weight) pair from the scorer's explanation.
type Contribution struct {
	Feature      string  `json:"feature"`
	Contribution float64 `json:"contribution"`
}

// FraudResult is the outcome of evaluating a single transaction.
type FraudResult struct {
	TransactionID    string         `json:"transactionId"`
	FraudScore       float64        `json:"fraudScore"`
	IsFraud          bool           `json:"isFraud"`
	RiskLevel        RiskLevel      `json:"riskLevel"`
	Decision         Decision       `json:"decision"`
	TopRiskFactors   []Contribution `json:"topRiskFactors,omitempty"`
	ModelVersion     string         `json:"modelVersion,omitempty"`
	ProcessingTimeMs float64        `json:"processingTimeMs"`
	Timestamp        time.Time      `json:"timestamp"`
}

// FeedbackRecord is a labeled outcome used for threshold calibration.
type FeedbackRecord struct {
	FraudScore  float64   `json:"fraudScore"`
	ActualFraud bool      `json:"actualFraud"`
	Timestamp   time.Time `json:"timestamp"`
}

// MerchantStats are aggregate statistics supplied out-of-band per merchant.
// Absent merchants read as the zero value, which the feature extractor treats
// as "no history", not "zero risk".
type MerchantStats struct {
	AvgAmount        float64 `json:"avgAmount"`
	TransactionCount int     `json:"transactionCount"`
	FraudRate        float64 `json:"fraudRate"`
}

// Scorer is the external model contract. Implementations must be fast,
// side-effect free, and safe for concurrent use. Score returns a fraud
// probability in [0, 1].
type Scorer interface {
	Score(ctx context.Context, features FeatureVector) (float64, error)
	Explain(ctx context.Context, features FeatureVector) ([]Contribution, error)
	Version() string
}

// ResultStore persists evaluation results for the durable-storage collaborator.
type ResultStore interface {
	SaveResult(ctx context.Context, tx *Transaction, result *FraudResult) error
	GetResult(ctx context.Context, transactionID string) (*FraudResult, error)
}

// FeedbackStore persists labeled feedback for audit and offline analysis.
type FeedbackStore interface {
	SaveFeedback(ctx context.Context, record *FeedbackRecord) error
}

// ErrResultNotFound is returned when a transaction id has no stored result.
var ErrResultNotFound = errors.New("fraud result not found")

// ValidationError describes one invalid transaction field.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors is the only error class returned to callers as a hard
// failure; everything else degrades to the fail-safe review decision.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "invalid transaction"
	}
	return "invalid transaction: " + e[0].Field + ": " + e[0].Message
}

// ValidateTransaction checks a transaction before any state is touched.
func ValidateTransaction(tx *Transaction) ValidationErrors {
	var errs ValidationErrors

	if tx.ID == "" {
		errs = append(errs, ValidationError{Field: "transactionId", Message: "is required"})
	}
	if tx.UserID == "" {
		errs = append(errs, ValidationError{Field: "userId", Message: "is required"})
	}
	if tx.MerchantID == "" {
		errs = append(errs, ValidationError{Field: "merchantId", Message: "is required"})
	}
	if tx.Amount <= 0 {
		errs = append(errs, ValidationError{Field: "amount", Message: "must be positive"})
	}
	if tx.Timestamp.IsZero() {
		errs = append(errs, ValidationError{Field: "timestamp", Message: "is required"})
	}

	switch tx.Type {
	case TypePurchase, TypeWithdrawal, TypeTransfer, TypePayment:
	default:
		errs = append(errs, ValidationError{Field: "transactionType", Message: "unknown type " + string(tx.Type)})
	}

	switch tx.Channel {
	case ChannelOnline, ChannelMobile, ChannelATM, ChannelPOS:
	default:
		errs = append(errs, ValidationError{Field: "channel", Message: "unknown channel " + string(tx.Channel)})
	}

	if tx.AccountAgeDays < 0 {
		errs = append(errs, ValidationError{Field: "accountAgeDays", Message: "must not be negative"})
	}

	return errs
}
