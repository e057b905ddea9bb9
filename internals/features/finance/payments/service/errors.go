package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrNotFound       = errors.New("payment not found")
	ErrAuthentication = errors.New("notification authentication failed")
)

// ValidationError: input CreatePayment ditolak, tidak di-retry.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

// ProviderError: gateway menolak initiate (mata uang, nominal, kredensial). Payment tidak dibuat.
type ProviderError struct {
	Code    string
	Message string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("gateway rejected request (%s): %s", e.Code, e.Message)
}

// TransportError: gateway tidak terjangkau, timeout, atau respons tak terbaca.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("gateway %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
