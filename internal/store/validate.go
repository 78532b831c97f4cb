package store

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/taskorch/tm/internal/models"
)

// ValidateTitle enforces the non-empty / length constraints on task titles.
func ValidateTitle(title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return models.E(models.KindInvalidInput, "title is required")
	}
	if len(title) > models.MaxTitleLength {
		return models.E(models.KindInvalidInput, "title exceeds max length (%d)", models.MaxTitleLength)
	}
	return nil
}

// ParseCriteria decodes and validates a success-criteria JSON document.
func ParseCriteria(raw string) ([]models.Criterion, error) {
	var criteria []models.Criterion
	if err := json.Unmarshal([]byte(raw), &criteria); err != nil {
		return nil, models.Wrap(models.KindInvalidInput, err, "criteria must be a JSON array of {criterion, measurable}")
	}
	if err := ValidateCriteria(criteria); err != nil {
		return nil, err
	}
	return criteria, nil
}

// ValidateCriteria enforces the item count and per-field length bounds.
func ValidateCriteria(criteria []models.Criterion) error {
	if len(criteria) > models.MaxCriteriaItems {
		return models.E(models.KindInvalidInput, "too many criteria: %d (max %d)", len(criteria), models.MaxCriteriaItems)
	}
	for i, c := range criteria {
		if strings.TrimSpace(c.Criterion) == "" {
			return models.E(models.KindInvalidInput, "criterion %d: description is required", i+1)
		}
		if len(c.Criterion) > models.MaxCriterionLength || len(c.Measurable) > models.MaxCriterionLength {
			return models.E(models.KindInvalidInput, "criterion %d exceeds max length (%d)", i+1, models.MaxCriterionLength)
		}
	}
	return nil
}

// ParseDeadline parses an ISO-8601 UTC timestamp.
func ParseDeadline(raw string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		// Accept a bare date as midnight UTC.
		t, err = time.Parse("2006-01-02", raw)
		if err != nil {
			return time.Time{}, models.E(models.KindInvalidInput, "deadline must be ISO-8601 (got %q)", raw)
		}
	}
	return t.UTC(), nil
}

// ValidateHours rejects negative hour values.
func ValidateHours(field string, hours float64) error {
	if hours < 0 {
		return models.E(models.KindInvalidInput, "%s must be non-negative (got %g)", field, hours)
	}
	return nil
}

// ValidateScore enforces the 1..5 range on feedback scores.
func ValidateScore(field string, score int) error {
	if score < 1 || score > 5 {
		return models.E(models.KindInvalidInput, "%s must be between 1 and 5 (got %d)", field, score)
	}
	return nil
}

// ParseFileRef parses the CLI form "path[:start[:end]]" into a FileRef.
func ParseFileRef(raw string) (models.FileRef, error) {
	parts := strings.Split(raw, ":")
	ref := models.FileRef{Path: parts[0]}
	if ref.Path == "" {
		return ref, models.E(models.KindInvalidInput, "file ref path is required")
	}
	if len(parts) > 3 {
		return ref, models.E(models.KindInvalidInput, "file ref %q: expected path[:start[:end]]", raw)
	}
	if len(parts) >= 2 {
		start, err := strconv.Atoi(parts[1])
		if err != nil || start < 1 {
			return ref, models.E(models.KindInvalidInput, "file ref %q: invalid start line", raw)
		}
		ref.LineStart = start
	}
	if len(parts) == 3 {
		end, err := strconv.Atoi(parts[2])
		if err != nil || end < ref.LineStart {
			return ref, models.E(models.KindInvalidInput, "file ref %q: invalid end line", raw)
		}
		ref.LineEnd = end
	}
	return ref, nil
}

// ValidateSummary enforces the completion summary length bounds.
func ValidateSummary(summary string) error {
	n := len(strings.TrimSpace(summary))
	if n < models.MinCompletionSummaryChars || n > models.MaxCompletionSummaryChars {
		return models.E(models.KindInvalidInput, "completion summary must be %d-%d characters (got %d)",
			models.MinCompletionSummaryChars, models.MaxCompletionSummaryChars, n)
	}
	return nil
}

// marshalJSONColumn encodes v for storage, returning nil for empty slices so
// the column stays NULL.
func marshalJSONColumn[T any](items []T) (any, error) {
	if len(items) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(items)
	if err != nil {
		return nil, models.Wrap(models.KindInternal, err, "failed to encode JSON column")
	}
	return string(b), nil
}
