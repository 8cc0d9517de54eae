// Package classify assigns failed compiler invocations to a fixed taxonomy
// so the orchestrator can decide between continuing, skipping dependents, or
// aborting the run. Classification is best-effort pattern matching over
// free-form tool output; the fallback is deliberately conservative (never
// fatal) so one bad package cannot abort a multi-package run.
package classify

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"git.home.luguber.info/inful/dochub/internal/compiler"
	"git.home.luguber.info/inful/dochub/internal/config"
	"git.home.luguber.info/inful/dochub/internal/report"
)

// Category is the failure taxonomy.
type Category string

const (
	// CategoryImportOrDependency covers failures where the compiler tried to
	// resolve an import or dependency from documentation and could not.
	// Recoverable, but logged prominently: it may flag a real code defect.
	CategoryImportOrDependency Category = "import_or_dependency"
	// CategoryTemplateOrConfig covers malformed configuration or template
	// assets. Recoverable; stops the current package only.
	CategoryTemplateOrConfig Category = "template_or_config"
	// CategoryTimeout marks invocations terminated by the timeout.
	CategoryTimeout Category = "timeout"
	// CategoryFatalTooling marks an unusable compiler binary. Escalated to
	// abort the run: no package can plausibly build.
	CategoryFatalTooling Category = "fatal_tooling"
)

// Classification pairs the category with the task outcome it implies.
type Classification struct {
	Category Category
	Outcome  report.Outcome
}

type rule struct {
	category   Category
	substrings []string // matched against lowercased output
	regexes    []*regexp.Regexp
}

// defaultRules is the compiled-in pattern table, checked after any
// operator-supplied rules. Substrings are lowercase.
var defaultRules = []rule{
	{
		category: CategoryImportOrDependency,
		substrings: []string{
			"no module named",
			"modulenotfounderror",
			"importerror",
			"cannot resolve import",
			"unresolved import",
			"failed to import",
			"missing dependency",
		},
	},
	{
		category: CategoryTemplateOrConfig,
		substrings: []string{
			"template not found",
			"theme not found",
			"unknown shortcode",
			"invalid configuration",
			"config file",
			"failed to parse template",
			"yaml:",
			"toml:",
		},
	},
	{
		category:   CategoryTimeout,
		substrings: []string{"compiler timed out"},
	},
}

// Classifier matches invocation results against the pattern table.
type Classifier struct {
	rules []rule
}

// New compiles a classifier. Operator rules from configuration are checked
// before the defaults so newer compiler-version error strings can be routed
// without a code change. Unknown categories or bad regexes are configuration
// errors.
func New(extra []config.PatternRule) (*Classifier, error) {
	rules := make([]rule, 0, len(extra)+len(defaultRules))
	for i, pr := range extra {
		cat, err := parseCategory(pr.Category)
		if err != nil {
			return nil, fmt.Errorf("classifier.patterns[%d]: %w", i, err)
		}
		r := rule{category: cat}
		for _, s := range pr.Substrings {
			r.substrings = append(r.substrings, strings.ToLower(s))
		}
		for _, expr := range pr.Regexes {
			re, err := regexp.Compile(expr)
			if err != nil {
				return nil, fmt.Errorf("classifier.patterns[%d]: invalid regex %q: %w", i, expr, err)
			}
			r.regexes = append(r.regexes, re)
		}
		rules = append(rules, r)
	}
	rules = append(rules, defaultRules...)
	return &Classifier{rules: rules}, nil
}

// Classify maps an invocation to (outcome, category). launchErr, when
// non-nil, is the fault returned by the invoker for a process that never
// started; it always classifies as fatal tooling.
func (c *Classifier) Classify(res *compiler.Result, launchErr error) Classification {
	if launchErr != nil || (res == nil && launchErr == nil) {
		return Classification{Category: CategoryFatalTooling, Outcome: report.OutcomeFailedFatal}
	}
	if res.ExitCode == 0 {
		return Classification{Outcome: report.OutcomeSucceeded}
	}
	if res.TimedOut {
		return Classification{Category: CategoryTimeout, Outcome: report.OutcomeFailedRecoverable}
	}

	output := strings.ToLower(res.CombinedOutput())
	for _, r := range c.rules {
		if r.matches(output) {
			return Classification{Category: r.category, Outcome: outcomeFor(r.category)}
		}
	}
	// Unmatched non-zero exits default to recoverable, never fatal.
	return Classification{Category: CategoryImportOrDependency, Outcome: report.OutcomeFailedRecoverable}
}

func (r rule) matches(loweredOutput string) bool {
	for _, s := range r.substrings {
		if strings.Contains(loweredOutput, s) {
			return true
		}
	}
	for _, re := range r.regexes {
		if re.MatchString(loweredOutput) {
			return true
		}
	}
	return false
}

func outcomeFor(c Category) report.Outcome {
	if c == CategoryFatalTooling {
		return report.OutcomeFailedFatal
	}
	return report.OutcomeFailedRecoverable
}

func parseCategory(s string) (Category, error) {
	switch Category(strings.ToLower(strings.TrimSpace(s))) {
	case CategoryImportOrDependency, Category("import"):
		return CategoryImportOrDependency, nil
	case CategoryTemplateOrConfig, Category("template"):
		return CategoryTemplateOrConfig, nil
	case CategoryTimeout:
		return CategoryTimeout, nil
	case CategoryFatalTooling, Category("fatal"):
		return CategoryFatalTooling, nil
	}
	return "", errors.New("unknown category: " + s)
}
