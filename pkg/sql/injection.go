package sql

import (
	libinjection "github.com/corazawaf/libinjection-go"
)

// InjectionCheckResult contains the result of an injection check on a
// filter value.
type InjectionCheckResult struct {
	IsSQLi      bool   // True if SQL injection pattern detected
	Fingerprint string // libinjection fingerprint of the detected pattern
	ParamName   string // Name of the filter key that failed the check
	ParamValue  any    // The value that was checked
}

// CheckValueForInjection uses libinjection to detect SQL injection patterns
// in a filter value before it is bound to a rendered query.
//
// Only string values are checked - numbers, booleans, and other types cannot
// contain SQL injection patterns and return nil (no injection detected).
func CheckValueForInjection(paramName string, value any) *InjectionCheckResult {
	strValue, ok := value.(string)
	if !ok {
		return nil
	}

	isSQLi, fingerprint := libinjection.IsSQLi(strValue)
	if isSQLi {
		return &InjectionCheckResult{
			IsSQLi:      true,
			Fingerprint: string(fingerprint),
			ParamName:   paramName,
			ParamValue:  value,
		}
	}

	return nil
}

// CheckAllValues validates all filter values for SQL injection attempts.
// Returns one result per value that failed the check; empty when all values
// are clean.
func CheckAllValues(params map[string]any) []*InjectionCheckResult {
	var results []*InjectionCheckResult
	for name, value := range params {
		if result := CheckValueForInjection(name, value); result != nil {
			results = append(results, result)
		}
	}
	return results
}
