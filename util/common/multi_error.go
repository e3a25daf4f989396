package common

import "strings"

type multiError struct {
	errs []error
}

func (e *multiError) Error() string {
	errs := []string{}
	for _, err := range e.errs {
		errs = append(errs, err.Error())
	}
	return "multiError: " + strings.Join(errs, " | ")
}

// Combine merges errors into one, dropping nils. It returns nil when every
// argument is nil.
func Combine(errs ...error) error {
	errList := []error{}
	for _, err := range errs {
		if err != nil {
			errList = append(errList, err)
		}
	}
	if len(errList) == 0 {
		return nil
	}
	return &multiError{errs: errList}
}
