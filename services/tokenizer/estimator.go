// Package tokenizer estimates token usage for pre-flight quota admission.
// Final ledger debits always come from the provider-reported usage; the
// estimate only gates whether a request is admitted at all.
package tokenizer

// Estimator predicts token usage for a prompt before dispatch. The
// estimation method is deliberately pluggable: swap in a model-aware
// implementation without touching the enforcement pipeline.
type Estimator interface {
	Estimate(prompt, model string) int64
}

// HeuristicEstimator approximates token usage as ~4 characters per token
// plus fixed message overhead. Intentionally conservative; it only needs
// to be in the right ballpark for admission pre-checks.
type HeuristicEstimator struct {
	// CompletionReserve is added on top of the prompt estimate to account
	// for the response the provider will generate.
	CompletionReserve int64
}

// NewHeuristicEstimator creates an estimator with a default completion
// reserve.
func NewHeuristicEstimator() *HeuristicEstimator {
	return &HeuristicEstimator{CompletionReserve: 0}
}

// Estimate implements Estimator.
func (e *HeuristicEstimator) Estimate(prompt, model string) int64 {
	n := int64(len(prompt))/4 + 4 + 3
	return n + e.CompletionReserve
}

// EstimatorFunc adapts a plain function to the Estimator interface.
type EstimatorFunc func(prompt, model string) int64

// Estimate implements Estimator.
func (f EstimatorFunc) Estimate(prompt, model string) int64 {
	return f(prompt, model)
}
