package fraud

import (
	"math"
	"time"
)

// Numeric guards. Ratios and z-scores divide by epsilon-floored denominators
// so an empty or constant history can never produce NaN/Inf.
const (
	epsilon = 1e-10

	// noPriorTransaction is the sentinel for time_since_last_transaction_seconds
	// when the entity has no recorded history.
	noPriorTransaction = 999999
)

// Feature schema must stay in lockstep with the model's training pipeline.
// All temporal features are derived in UTC; training uses the same zone.

// ExtractFeatures builds the fixed-schema feature vector for a transaction
// against the given history snapshot and merchant aggregates. It is a pure
// function: identical inputs always produce an identical vector.
func ExtractFeatures(tx *Transaction, history []HistoryEntry, merchant MerchantStats) FeatureVector {
	f := make(FeatureVector, 40)

	transactionFeatures(f, tx)
	temporalFeatures(f, tx)
	entityFeatures(f, tx, history)
	merchantFeatures(f, merchant)
	velocityFeatures(f, tx, history)
	anomalyFeatures(f, tx, history)

	return f
}

func transactionFeatures(f FeatureVector, tx *Transaction) {
	f["amount"] = tx.Amount
	f["amount_log"] = math.Log1p(tx.Amount)

	f["transaction_type_purchase"] = oneHot(tx.Type == TypePurchase)
	f["transaction_type_withdrawal"] = oneHot(tx.Type == TypeWithdrawal)
	f["transaction_type_transfer"] = oneHot(tx.Type == TypeTransfer)
	f["transaction_type_payment"] = oneHot(tx.Type == TypePayment)

	f["channel_online"] = oneHot(tx.Channel == ChannelOnline)
	f["channel_mobile"] = oneHot(tx.Channel == ChannelMobile)
	f["channel_atm"] = oneHot(tx.Channel == ChannelATM)
	f["channel_pos"] = oneHot(tx.Channel == ChannelPOS)

	f["is_first_transaction"] = oneHot(tx.IsFirstTransaction)
	f["account_age_days"] = float64(tx.AccountAgeDays)
	f["account_age_days_log"] = math.Log1p(float64(tx.AccountAgeDays))
}

func temporalFeatures(f FeatureVector, tx *Transaction) {
	ts := tx.Timestamp.UTC()
	hour := ts.Hour()
	// time.Weekday is Sunday=0; the model schema uses Monday=0.
	dow := (int(ts.Weekday()) + 6) % 7

	f["hour"] = float64(hour)
	f["day_of_week"] = float64(dow)
	f["is_weekend"] = oneHot(dow >= 5)
	f["is_night"] = oneHot(hour < 6 || hour > 22)
	f["is_business_hours"] = oneHot(hour >= 9 && hour <= 17)
	f["month"] = float64(ts.Month())
	f["day_of_month"] = float64(ts.Day())
}

func entityFeatures(f FeatureVector, tx *Transaction, history []HistoryEntry) {
	f["user_transaction_count"] = float64(len(history))

	if len(history) == 0 {
		f["user_avg_amount"] = 0
		f["user_std_amount"] = 0
		f["user_max_amount"] = 0
		f["user_total_amount_24h"] = 0
		f["user_transaction_count_24h"] = 0
		return
	}

	mean, std, maxAmount := amountStats(history)

	// Trailing 24h is relative to the transaction's own timestamp, not
	// wall-clock now, so replayed traffic extracts identical features.
	dayAgo := tx.Timestamp.Add(-24 * time.Hour)
	var total24h float64
	var count24h int
	for _, e := range history {
		if e.Timestamp.After(dayAgo) {
			total24h += e.Amount
			count24h++
		}
	}

	f["user_avg_amount"] = mean
	f["user_std_amount"] = std
	f["user_max_amount"] = maxAmount
	f["user_total_amount_24h"] = total24h
	f["user_transaction_count_24h"] = float64(count24h)
}

func merchantFeatures(f FeatureVector, m MerchantStats) {
	f["merchant_avg_amount"] = m.AvgAmount
	f["merchant_transaction_count"] = float64(m.TransactionCount)
	f["merchant_fraud_rate"] = m.FraudRate
}

func velocityFeatures(f FeatureVector, tx *Transaction, history []HistoryEntry) {
	if len(history) == 0 {
		f["time_since_last_transaction_seconds"] = noPriorTransaction
		f["transactions_last_hour"] = 0
		f["transactions_last_day"] = 0
		return
	}

	last := history[len(history)-1]
	f["time_since_last_transaction_seconds"] = tx.Timestamp.Sub(last.Timestamp).Seconds()

	hourAgo := tx.Timestamp.Add(-time.Hour)
	dayAgo := tx.Timestamp.Add(-24 * time.Hour)
	var lastHour, lastDay int
	for _, e := range history {
		if e.Timestamp.After(hourAgo) {
			lastHour++
		}
		if e.Timestamp.After(dayAgo) {
			lastDay++
		}
	}
	f["transactions_last_hour"] = float64(lastHour)
	f["transactions_last_day"] = float64(lastDay)
}

func anomalyFeatures(f FeatureVector, tx *Transaction, history []HistoryEntry) {
	if len(history) == 0 {
		f["amount_deviation_from_avg"] = 0
		f["is_amount_outlier"] = 0
		f["amount_vs_avg_ratio"] = 0
		return
	}

	mean, std, _ := amountStats(history)

	z := (tx.Amount - mean) / (std + epsilon)
	f["amount_deviation_from_avg"] = z
	f["is_amount_outlier"] = oneHot(math.Abs(z) > 3)
	f["amount_vs_avg_ratio"] = tx.Amount / (mean + epsilon)
}

// amountStats returns mean, population standard deviation, and max of the
// window's amounts. A single-entry window has std 0.
func amountStats(history []HistoryEntry) (mean, std, maxAmount float64) {
	var sum float64
	for _, e := range history {
		sum += e.Amount
		if e.Amount > maxAmount {
			maxAmount = e.Amount
		}
	}
	mean = sum / float64(len(history))

	if len(history) > 1 {
		var sq float64
		for _, e := range history {
			d := e.Amount - mean
			sq += d * d
		}
		std = math.Sqrt(sq / float64(len(history)))
	}
	return mean, std, maxAmount
}

func oneHot(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
