package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/mkrupp/teamify/internal/domain"
)

// Output formats accepted by --output.
const (
	OutputText = "text"
	OutputJSON = "json"
	OutputYAML = "yaml"
)

// ErrUnknownOutput is returned for an unsupported --output value.
var ErrUnknownOutput = errors.New("unknown output format")

func validateOutput(format string) error {
	switch format {
	case OutputText, OutputJSON, OutputYAML:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownOutput, format)
	}
}

// render writes v in the requested format. text delegates to the type's
// table layout, falling back to YAML for types without one.
func render(w io.Writer, format string, v any) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")

		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encode json: %w", err)
		}

		return nil
	case OutputYAML:
		return renderYAML(w, v)
	}

	switch v := v.(type) {
	case []domain.UserView:
		return renderUsers(w, v)
	case domain.UserView:
		return renderUsers(w, []domain.UserView{v})
	case []domain.Plan:
		return renderPlans(w, v)
	case *domain.SessionUser:
		_, err := fmt.Fprintf(w, "%s <%s> (id %s, plan %s)\n", v.Name, v.Email, v.ID, orDash(v.Plan))

		return err
	default:
		return renderYAML(w, v)
	}
}

func renderYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)

	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}

	return enc.Close()
}

func renderUsers(w io.Writer, users []domain.UserView) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintln(tw, "ID\tNAME\tEMAIL\tCOMPANY\tPLAN")

	for _, u := range users {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", u.ID, u.Name, u.Email, orDash(u.CompanyName), orDash(u.Plan))
	}

	return tw.Flush()
}

func renderPlans(w io.Writer, plans []domain.Plan) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintln(tw, "NAME\tMONTHLY\tYEARLY\tNOTE")

	for _, p := range plans {
		var notes []string
		if p.Recommended {
			notes = append(notes, "recommended")
		}

		if p.ContactUs {
			notes = append(notes, "contact us")
		}

		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			p.Name, formatPrice(p.MonthlyPrice), formatPrice(p.YearlyPrice), orDash(strings.Join(notes, ", ")))
	}

	return tw.Flush()
}

func formatPrice(p *int) string {
	if p == nil {
		return "-"
	}

	return fmt.Sprintf("$%d", *p)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}

	return s
}
