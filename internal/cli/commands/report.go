package commands

import (
	"fmt"

	"github.com/leapstack-labs/waterfall/internal/cli/output"
	"github.com/leapstack-labs/waterfall/internal/waterfall"
	"github.com/leapstack-labs/waterfall/pkg/core"
)

var metricHeaders = []string{"Unique drop", "Incremental drop", "Cumulative drop", "Regain", "Remaining", "Sole drop"}

// renderReport writes one waterfall table per identifier set.
func renderReport(r *output.Renderer, rep *waterfall.Report) {
	if rep == nil {
		return
	}
	c := rep.Campaign
	r.Header(1, fmt.Sprintf("Waterfall %s", c.OfferCode))
	r.KeyValue("Campaign planner", c.CampaignPlanner)
	r.KeyValue("Lead", c.Lead)
	r.KeyValue("Username", c.Username)
	r.Println("")

	for i := range rep.Identifiers {
		renderIdentifier(r, &rep.Identifiers[i])
	}
}

func renderIdentifier(r *output.Renderer, res *core.IdentifierResult) {
	r.Header(2, res.Key)
	if res.Err != nil {
		r.Error(fmt.Sprintf("%s: %v", res.Key, res.Err))
	}

	headers := append([]string{"Condition", "Description"}, metricHeaders...)
	rows := [][]string{{"Starting population", "", "", "", "", "", r.Number(res.StartingPopulation), ""}}
	for _, row := range res.Rows {
		line := []string{row.Condition, row.Description}
		for _, v := range waterfall.Values(row) {
			line = append(line, r.Number(v))
		}
		rows = append(rows, line)
	}
	r.Table(headers, rows, 2, 3, 4, 5, 6, 7)

	if res.Err == nil {
		r.Println("")
		r.KeyValue("Eligible population", r.Number(res.EligiblePopulation))
	}
	r.Println("")
}
