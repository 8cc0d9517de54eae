package classify

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/dochub/internal/compiler"
	"git.home.luguber.info/inful/dochub/internal/config"
	"git.home.luguber.info/inful/dochub/internal/report"
)

func mustClassifier(t *testing.T, extra []config.PatternRule) *Classifier {
	t.Helper()
	c, err := New(extra)
	require.NoError(t, err)
	return c
}

func TestClassifyDefaultPatterns(t *testing.T) {
	c := mustClassifier(t, nil)

	cases := []struct {
		name   string
		stderr string
		want   Category
	}{
		{"python import", "ModuleNotFoundError: No module named 'mypkg.helpers'", CategoryImportOrDependency},
		{"sphinx import", "WARNING: failed to import mypkg.core.engine", CategoryImportOrDependency},
		{"missing template", "Error: template not found: layouts/api.html", CategoryTemplateOrConfig},
		{"bad yaml", "yaml: line 4: mapping values are not allowed", CategoryTemplateOrConfig},
		{"bad theme", "Theme not found in configuration", CategoryTemplateOrConfig},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := &compiler.Result{ExitCode: 1, Stderr: tc.stderr}
			cls := c.Classify(res, nil)
			assert.Equal(t, tc.want, cls.Category)
			assert.Equal(t, report.OutcomeFailedRecoverable, cls.Outcome)
		})
	}
}

func TestClassifySuccess(t *testing.T) {
	c := mustClassifier(t, nil)
	cls := c.Classify(&compiler.Result{ExitCode: 0}, nil)
	assert.Equal(t, report.OutcomeSucceeded, cls.Outcome)
	assert.Empty(t, cls.Category)
}

func TestClassifyTimeout(t *testing.T) {
	c := mustClassifier(t, nil)
	cls := c.Classify(&compiler.Result{ExitCode: -1, TimedOut: true}, nil)
	assert.Equal(t, CategoryTimeout, cls.Category)
	assert.Equal(t, report.OutcomeFailedRecoverable, cls.Outcome)
}

func TestClassifyLaunchFaultIsFatal(t *testing.T) {
	c := mustClassifier(t, nil)
	cls := c.Classify(nil, errors.New("exec: \"doccompile\": executable file not found in $PATH"))
	assert.Equal(t, CategoryFatalTooling, cls.Category)
	assert.Equal(t, report.OutcomeFailedFatal, cls.Outcome)
}

// Output that matches no pattern must stay recoverable so one odd failure
// never aborts the whole run.
func TestClassifyUnmatchedDefaultsRecoverable(t *testing.T) {
	c := mustClassifier(t, nil)
	res := &compiler.Result{ExitCode: 2, Stderr: "segmentation fault (core dumped)"}
	cls := c.Classify(res, nil)
	assert.Equal(t, CategoryImportOrDependency, cls.Category)
	assert.Equal(t, report.OutcomeFailedRecoverable, cls.Outcome)
}

func TestClassifyMatchingIsCaseInsensitive(t *testing.T) {
	c := mustClassifier(t, nil)
	res := &compiler.Result{ExitCode: 1, Stdout: "NO MODULE NAMED 'foo'"}
	assert.Equal(t, CategoryImportOrDependency, c.Classify(res, nil).Category)
}

func TestOperatorRulesCheckedFirst(t *testing.T) {
	c := mustClassifier(t, []config.PatternRule{
		{Category: "template", Substrings: []string{"no module named"}},
		{Category: "import", Regexes: []string{`e1[0-9]{2}: render`}},
	})

	// Operator rule reroutes a string the defaults would call an import error.
	res := &compiler.Result{ExitCode: 1, Stderr: "No module named 'jinja_theme'"}
	assert.Equal(t, CategoryTemplateOrConfig, c.Classify(res, nil).Category)

	res = &compiler.Result{ExitCode: 1, Stderr: "e102: render stage exploded"}
	assert.Equal(t, CategoryImportOrDependency, c.Classify(res, nil).Category)
}

func TestNewRejectsUnknownCategory(t *testing.T) {
	_, err := New([]config.PatternRule{{Category: "mystery", Substrings: []string{"x"}}})
	require.Error(t, err)
}

func TestNewRejectsInvalidRegex(t *testing.T) {
	_, err := New([]config.PatternRule{{Category: "import", Regexes: []string{"["}}})
	require.Error(t, err)
}
