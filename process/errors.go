package process

import "fmt"

const (
	StageSchema  = "schema"
	StageFetch   = "fetch"
	StageResolve = "resolve"
)

// StageError ends a run. Stage names the step that failed.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
