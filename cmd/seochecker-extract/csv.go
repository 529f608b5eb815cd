package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"seochecker/internal/services/analysis/domain"
)

// readDomains parses domain,price,notes rows; the header row and blank
// lines are skipped, price and notes are optional
func readDomains(r io.Reader) ([]domain.AnalysisDomain, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	var out []domain.AnalysisDomain
	for row := 1; ; row++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(rec) == 0 || strings.TrimSpace(rec[0]) == "" {
			continue
		}
		if row == 1 && strings.EqualFold(strings.TrimSpace(rec[0]), "domain") {
			continue
		}

		d := domain.AnalysisDomain{Domain: strings.TrimSpace(rec[0])}
		if len(rec) > 1 && strings.TrimSpace(rec[1]) != "" {
			p, err := strconv.ParseFloat(strings.TrimSpace(rec[1]), 64)
			if err != nil {
				return nil, fmt.Errorf("row %d: bad price %q", row, rec[1])
			}
			d.Price = &p
		}
		if len(rec) > 2 {
			d.Notes = strings.TrimSpace(strings.Join(rec[2:], ","))
		}
		out = append(out, d)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no domains")
	}
	return out, nil
}
