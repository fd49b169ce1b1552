package reports

import "fmt"

// RetrievalError reports a failed network fetch for one report kind.
type RetrievalError struct {
	Kind Kind
	Err  error
}

func (e RetrievalError) Error() string {
	return fmt.Sprintf("unable to retrieve %s report: %v", e.Kind, e.Err)
}

func (e RetrievalError) Unwrap() error {
	return e.Err
}

// EmptyReportError reports an export that parses to zero periods.
type EmptyReportError struct {
	Kind Kind
}

func (e EmptyReportError) Error() string {
	return fmt.Sprintf("no %s report found", e.Kind)
}

// MalformedReportError reports an export that could not be processed for
// a reason other than being empty.
type MalformedReportError struct {
	Kind Kind
	Err  error
}

func (e MalformedReportError) Error() string {
	return fmt.Sprintf("unable to process %s report: %v", e.Kind, e.Err)
}

func (e MalformedReportError) Unwrap() error {
	return e.Err
}
