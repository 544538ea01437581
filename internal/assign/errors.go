package assign

import "errors"

// EmptyInputError rejects a generation over a session with nothing to
// schedule. Staffing shortfall is never an error; an entirely vacuous
// schedule is.
type EmptyInputError struct{}

func (e *EmptyInputError) Error() string {
	return "nothing to schedule: no slots or tasks have been committed"
}

// IsEmptyInputError reports whether err is an EmptyInputError.
func IsEmptyInputError(err error) bool {
	var e *EmptyInputError
	return errors.As(err, &e)
}
