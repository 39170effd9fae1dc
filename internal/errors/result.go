package errors

import (
	"fmt"
	"math"
)

// ErrorKind discriminates the outcome of a trading operation.
type ErrorKind string

const (
	KindNone ErrorKind = ""
	// KindValidation covers invalid price/qty, wrong position status, unknown
	// or duplicate symbols.
	KindValidation ErrorKind = "VALIDATION"
	// KindRiskLimit covers size, exposure, concurrency and cash limits.
	KindRiskLimit ErrorKind = "RISK_LIMIT_EXCEEDED"
	// KindInternal is an unexpected fault converted into a rejection.
	KindInternal ErrorKind = "INTERNAL"
)

// Result is the outcome of a state-changing operation. A rejected Result
// guarantees the operation applied nothing.
type Result struct {
	OK     bool
	Kind   ErrorKind
	Reason string
}

func Success(reason string) Result {
	return Result{OK: true, Reason: reason}
}

func Reject(kind ErrorKind, format string, args ...interface{}) Result {
	return Result{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

func Invalid(format string, args ...interface{}) Result {
	return Reject(KindValidation, format, args...)
}

func RiskLimit(format string, args ...interface{}) Result {
	return Reject(KindRiskLimit, format, args...)
}

// Err converts a rejection into a BotError; it returns nil on success.
func (r Result) Err(component, operation string) error {
	if r.OK {
		return nil
	}
	category := ErrorCategoryValidation
	switch r.Kind {
	case KindRiskLimit:
		category = ErrorCategoryRisk
	case KindInternal:
		category = ErrorCategoryInternal
	}
	return NewBotError(category, component, operation, r.Reason)
}

func (r Result) String() string {
	if r.OK {
		return "ok: " + r.Reason
	}
	return fmt.Sprintf("rejected (%s): %s", r.Kind, r.Reason)
}

// Recover turns a panic raised inside an operation into a KindInternal
// rejection stored in *res. It must be deferred directly:
//
//	defer errors.Recover("close_position", &res, onFault)
func Recover(operation string, res *Result, onFault func(operation string, fault interface{})) {
	r := recover()
	if r == nil {
		return
	}
	*res = Reject(KindInternal, "%s: unexpected fault: %v", operation, r)
	if onFault != nil {
		onFault(operation, r)
	}
}

// PositiveFinite reports whether v is a usable price or quantity.
func PositiveFinite(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}
