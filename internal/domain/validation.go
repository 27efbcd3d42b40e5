package domain

// IssueCode enumerates validation failures.
type IssueCode string

const (
	IssueMissingField      IssueCode = "missing_field"
	IssueInvalidPhone      IssueCode = "invalid_phone"
	IssueInvalidQuantity   IssueCode = "invalid_quantity"
	IssueInvalidUnitPrice  IssueCode = "invalid_unit_price"
	IssueInvalidTotal      IssueCode = "invalid_total_amount"
	IssueAmountMismatch    IssueCode = "amount_mismatch"
	IssueProductNotFound   IssueCode = "product_not_found"
	IssueProductInactive   IssueCode = "product_inactive"
	IssueInsufficientStock IssueCode = "insufficient_stock"
	IssueOrderNotFound     IssueCode = "order_not_found"
	IssueInvalidStatus     IssueCode = "invalid_status"
	IssuePaymentExpired    IssueCode = "payment_link_expired"
)

// ValidationIssue is one problem found while validating input.
type ValidationIssue struct {
	Code    IssueCode `json:"code"`
	Field   string    `json:"field,omitempty"`
	Message string    `json:"message"`
}

// ValidationResult aggregates every issue instead of stopping at the first.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationIssue `json:"errors"`
}

// Add records an issue and marks the result invalid.
func (r *ValidationResult) Add(code IssueCode, field, message string) {
	r.Errors = append(r.Errors, ValidationIssue{Code: code, Field: field, Message: message})
	r.Valid = false
}

// Has reports whether an issue with code was recorded.
func (r ValidationResult) Has(code IssueCode) bool {
	for _, issue := range r.Errors {
		if issue.Code == code {
			return true
		}
	}
	return false
}

// NewValidationResult starts a passing result.
func NewValidationResult() ValidationResult {
	return ValidationResult{Valid: true, Errors: []ValidationIssue{}}
}
