package campaign

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/leapstack-labs/waterfall/pkg/core"
)

// usernamePattern keeps the username usable as a table name prefix.
var usernamePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateCampaign checks the run metadata.
func ValidateCampaign(c core.Campaign) error {
	var issues []error
	if err := validate.Struct(c); err != nil {
		issues = append(issues, FieldIssues(err)...)
	}
	if c.Username != "" && !usernamePattern.MatchString(c.Username) {
		issues = append(issues, fmt.Errorf("username %q must start with a letter and contain only letters, digits and underscores", c.Username))
	}
	return core.NewConfigError("campaign", issues)
}

// FieldIssues flattens validator errors into one issue per field.
func FieldIssues(err error) []error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []error{err}
	}
	issues := make([]error, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Namespace())
		switch fe.Tag() {
		case "required":
			issues = append(issues, fmt.Errorf("%s is required", field))
		case "oneof":
			issues = append(issues, fmt.Errorf("%s must be one of [%s], got %q", field, fe.Param(), fe.Value()))
		default:
			issues = append(issues, fmt.Errorf("%s failed %q validation (value %v)", field, fe.Tag(), fe.Value()))
		}
	}
	return issues
}

// validateChecks enforces the structural rules of a conditions document.
func validateChecks(checks []core.Check) []error {
	var issues []error

	hasMain := false
	type tmplKey struct{ channel, template string }
	var order []tmplKey
	byTemplate := make(map[tmplKey][]core.Check)
	for _, c := range checks {
		k := tmplKey{c.Channel, c.Template}
		if _, ok := byTemplate[k]; !ok {
			order = append(order, k)
		}
		byTemplate[k] = append(byTemplate[k], c)
		if c.Channel == core.MainChannel {
			hasMain = true
		}
		if strings.TrimSpace(c.SQL) == "" {
			issues = append(issues, fmt.Errorf("%s: sql is required", c.Name))
		}
	}

	if !hasMain {
		issues = append(issues, fmt.Errorf("conditions must contain a %q channel", core.MainChannel))
	}

	for _, k := range order {
		list := byTemplate[k]
		if k.channel == core.MainChannel {
			if k.template != core.BaseTemplate {
				issues = append(issues, fmt.Errorf("%q may only contain the %q template, found %q", core.MainChannel, core.BaseTemplate, k.template))
			}
			for _, c := range list {
				if c.Output {
					issues = append(issues, fmt.Errorf("%s: checks under %s/%s cannot set output", c.Name, core.MainChannel, core.BaseTemplate))
				}
			}
			continue
		}
		if k.template == core.BaseTemplate {
			continue
		}

		outputs := 0
		for _, c := range list {
			if c.Output {
				outputs++
			}
		}
		if outputs > 1 {
			issues = append(issues, fmt.Errorf("%s/%s: only one check may set output, found %d", k.channel, k.template, outputs))
		}
		if outputs == 1 && !list[len(list)-1].Output {
			issues = append(issues, fmt.Errorf("%s/%s: the output check must be the last check of the template", k.channel, k.template))
		}
	}
	return issues
}

// ValidateTables enforces the structural rules of a tables document.
func ValidateTables(ts *core.TableSet) []error {
	var issues []error
	if len(ts.Tables) == 0 && len(ts.WorkTables) == 0 {
		return []error{fmt.Errorf("at least one table or work table is required")}
	}

	froms := 0
	aliases := make(map[string]string)
	checkAlias := func(where, alias string) {
		if alias == "" {
			issues = append(issues, fmt.Errorf("%s: alias is required", where))
			return
		}
		if prev, dup := aliases[alias]; dup {
			issues = append(issues, fmt.Errorf("%s: alias %q already used by %s", where, alias, prev))
			return
		}
		aliases[alias] = where
	}
	checkJoin := func(where, joinType, joinConditions string) {
		if strings.TrimSpace(joinType) == "" {
			issues = append(issues, fmt.Errorf("%s: join_type is required", where))
			return
		}
		if !core.IsValidJoin(joinType) {
			issues = append(issues, fmt.Errorf("%s: unsupported join_type %q", where, joinType))
			return
		}
		if !core.IsFrom(joinType) && !core.IsCrossJoin(joinType) && strings.TrimSpace(joinConditions) == "" {
			issues = append(issues, fmt.Errorf("%s: join_conditions are required for %s", where, joinType))
		}
	}

	for i, t := range ts.Tables {
		where := fmt.Sprintf("tables[%d]", i)
		if t.Name == "" {
			issues = append(issues, fmt.Errorf("%s: table_name is required", where))
		}
		checkAlias(where, t.Alias)
		checkJoin(where, t.JoinType, t.JoinConditions)
		if core.IsFrom(t.JoinType) {
			if i != 0 {
				issues = append(issues, fmt.Errorf("%s: a FROM table must be the first entry of tables", where))
			}
			froms++
		}
	}
	for i, wt := range ts.WorkTables {
		where := fmt.Sprintf("work_tables[%d]", i)
		if strings.TrimSpace(wt.SQL) == "" {
			issues = append(issues, fmt.Errorf("%s: sql is required", where))
		}
		checkAlias(where, wt.Alias)
		checkJoin(where, wt.JoinType, wt.JoinConditions)
		if core.IsFrom(wt.JoinType) {
			froms++
		}
	}

	if froms != 1 {
		issues = append(issues, fmt.Errorf("exactly one FROM is required across tables and work_tables, found %d", froms))
	}
	return issues
}
