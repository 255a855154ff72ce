// Package resolve turns a partial fuzz test name into exactly one declared
// full name.
package resolve

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

var (
	ErrNoMatch   = errors.New("no fuzz test matches the name")
	ErrAmbiguous = errors.New("multiple fuzz tests match the name")
)

// MatchError carries the query and the names to show the user: every
// declared name for ErrNoMatch, the matching ones for ErrAmbiguous.
type MatchError struct {
	Query      string
	Candidates []string
	err        error
}

func (e *MatchError) Error() string {
	return fmt.Sprintf("%s: %q", e.err, e.Query)
}

func (e *MatchError) Unwrap() error {
	return e.err
}

// Match returns the full name containing query. An exact match wins even when
// other names also contain the query, so "S.T" selects "S.T" over
// "S.TExtended". Otherwise the query must be a substring of exactly one name.
func Match(query string, fullNames []string) (string, error) {
	var matches []string
	for _, fullName := range fullNames {
		if !strings.Contains(fullName, query) {
			continue
		}
		if fullName == query {
			return fullName, nil
		}
		matches = append(matches, fullName)
	}

	switch len(matches) {
	case 0:
		return "", &MatchError{Query: query, Candidates: fullNames, err: ErrNoMatch}
	case 1:
		return matches[0], nil
	default:
		return "", &MatchError{Query: query, Candidates: matches, err: ErrAmbiguous}
	}
}

// MatchOrExit is Match that terminates the process with exit code 1 when the
// query does not select exactly one test, after printing the query and the
// candidates to errOut. It never guesses. If exit returns, the empty string is
// returned.
func MatchOrExit(query string, fullNames []string, errOut io.Writer, exit func(int)) string {
	name, err := Match(query, fullNames)
	if err == nil {
		return name
	}

	matchErr := err.(*MatchError)
	if errors.Is(err, ErrAmbiguous) {
		fmt.Fprintf(errOut, "\n\nMultiple fuzz tests match the name: %s\n\n", query)
		fmt.Fprintf(errOut, "Please select one. Matching tests:\n")
	} else {
		fmt.Fprintf(errOut, "\n\nNo fuzz test matches the name: %s\n\n", query)
		fmt.Fprintf(errOut, "Valid tests:\n")
	}
	for _, candidate := range matchErr.Candidates {
		fmt.Fprintf(errOut, " %s\n", candidate)
	}
	exit(1)
	return ""
}
