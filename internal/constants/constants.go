// Package constants centralizes the tunable defaults pinned by the
// playbook engine's component design, so Selector, Reflector, and Storage
// share one source of truth for them instead of repeating literals.
package constants

// Storage and lifecycle defaults.
const (
	// DefaultPruneThreshold is the score at or below which a KPT is pruned.
	DefaultPruneThreshold = -5

	// DefaultMaxKPTs is the maximum total playbook size before eviction.
	DefaultMaxKPTs = 250

	// DefaultBackupKeep is the number of most recent backups retained.
	DefaultBackupKeep = 3

	// DefaultMergeThreshold is the minimum LLM-reported semantic similarity
	// required to combine two KPTs during reflection.
	DefaultMergeThreshold = 0.80

	// DefaultMergeVetoThreshold is the minimum score an optional local
	// similarity.Estimator cross-check must report for an LLM-proposed
	// merge to survive. It only ever removes members from a merge group
	// the LLM already proposed at or above DefaultMergeThreshold; it can
	// never add one.
	DefaultMergeVetoThreshold = 0.2
)

// Selector defaults.
const (
	// DefaultSelectionLimit is the number of KPTs returned per selection
	// when the caller does not override it.
	DefaultSelectionLimit = 6

	// DefaultTemperature is used when no LLM-inferred or adaptive-override
	// temperature is available.
	DefaultTemperature = 0.5

	// HighConfidenceThreshold is the score at or above which a KPT is
	// assigned to the HighConfidence layer rather than Recommendation.
	HighConfidenceThreshold = 2
)

// LLMGateway defaults.
const (
	// DefaultMaxTags is the maximum tag count InferTags returns absent an
	// explicit caller override.
	DefaultMaxTags = 8

	// DefaultLLMRetries is the number of retries on transport errors.
	// Schema errors are never retried.
	DefaultLLMRetries = 2

	// DefaultMigrationConfidenceThreshold is the minimum confidence at
	// which a proposed when/do migration is accepted; below it the legacy
	// text shape is preserved.
	DefaultMigrationConfidenceThreshold = 0.7

	// DefaultNewKPTEffectRating, DefaultNewKPTRiskLevel, and
	// DefaultNewKPTInnovationLevel are the numeric attributes assigned to
	// a newly admitted KPT when the model omits them.
	DefaultNewKPTEffectRating    = 0.5
	DefaultNewKPTRiskLevel       = -0.3
	DefaultNewKPTInnovationLevel = 0.5
)

// Default handler deadlines, applied when the host does not supply one.
const (
	// DefaultPromptSubmitTimeoutSeconds bounds onPromptSubmit.
	DefaultPromptSubmitTimeoutSeconds = 10

	// DefaultReflectionTimeoutSeconds bounds onSessionEnd and onPreCompact.
	DefaultReflectionTimeoutSeconds = 120
)
