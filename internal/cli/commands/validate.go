package commands

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/waterfall/internal/cli/output"
)

// errInvalid is returned once every validation issue has been printed.
var errInvalid = errors.New("configuration is invalid")

// NewValidateCommand creates the validate command.
func NewValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check configuration and campaign documents",
		Long: `Load waterfall.yaml, the conditions document and the tables document and
report every problem found. The warehouse is not contacted.`,
		Example: `  waterfall validate
  waterfall validate --config campaigns/spring/waterfall.yaml`,
		RunE: runValidate,
	}
}

func runValidate(cmd *cobra.Command, _ []string) error {
	r := NewCommandContextWithoutEngine(cmd).Renderer

	cc, err := NewCommandContextWithoutState(cmd)
	if errors.Is(err, errNoConfig) {
		return err
	}
	if err != nil {
		issues := errorLines(err)
		if r.EffectiveMode() == output.ModeJSON {
			_ = r.JSON(output.ValidateOutput{Valid: false, Issues: issues})
			return errInvalid
		}
		for _, issue := range issues {
			r.StatusLine(issue, "error", "")
		}
		r.Println("")
		return errInvalid
	}

	def := cc.Engine.Definition()
	out := output.ValidateOutput{
		Valid:      true,
		OfferCode:  def.Campaign.OfferCode,
		Conditions: def.Conditions.Len(),
		Channels:   def.Conditions.Channels(),
	}
	for _, id := range def.Identifiers {
		out.Identifiers = append(out.Identifiers, id.Key)
	}

	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(out)
	}
	r.Header(1, "Campaign "+out.OfferCode)
	r.KeyValue("Conditions", r.Number(int64(out.Conditions)))
	r.KeyValue("Channels", joinOrNone(out.Channels))
	r.KeyValue("Identifiers", joinOrNone(out.Identifiers))
	r.KeyValue("Target", cc.Cfg.Target.Type)
	r.Println("")
	r.Success("Configuration is valid")
	return nil
}
