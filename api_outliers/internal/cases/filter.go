package cases

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Threshold is the total_time above which a case is an outlier.
const Threshold = 3.5

// CaseRecord is one outlier case. TotalTime is always above the threshold it was filtered with.
type CaseRecord struct {
	CaseID         string  `json:"case_id" yaml:"case_id"`
	CaseURL        string  `json:"case_url" yaml:"case_url"`
	AgentLogin     string  `json:"agent_login" yaml:"agent_login"`
	OpsSite        string  `json:"ops_site" yaml:"ops_site"`
	TotalTime      float64 `json:"total_time" yaml:"total_time"`
	StatusCode     string  `json:"beginning_status_code" yaml:"beginning_status_code"`
	StartDate      string  `json:"start_date,omitempty" yaml:"start_date,omitempty"`
	ResolutionDate string  `json:"case_resolution_cal_date,omitempty" yaml:"case_resolution_cal_date,omitempty"`
}

// Filter returns the rows whose total_time is strictly greater than threshold,
// in input order. Rows with an empty total_time never match.
func Filter(rows []Row, threshold float64) ([]Row, error) {
	out := make([]Row, 0, len(rows))
	for _, row := range rows {
		value, ok, err := totalTime(row)
		if err != nil {
			return nil, err
		}
		if ok && value > threshold {
			out = append(out, row)
		}
	}
	return out, nil
}

// NewRecords converts filtered rows into case records.
func NewRecords(rows []Row) ([]CaseRecord, error) {
	records := make([]CaseRecord, 0, len(rows))
	for _, row := range rows {
		value, _, err := totalTime(row)
		if err != nil {
			return nil, err
		}
		records = append(records, CaseRecord{
			CaseID:         strings.TrimSpace(row.Get(ColCaseID)),
			CaseURL:        strings.TrimSpace(row.Get(ColCaseURL)),
			AgentLogin:     strings.TrimSpace(row.Get(ColAgentLogin)),
			OpsSite:        strings.TrimSpace(row.Get(ColOpsSite)),
			TotalTime:      value,
			StatusCode:     strings.TrimSpace(row.Get(ColStatusCode)),
			StartDate:      strings.TrimSpace(row.Get(ColStartDate)),
			ResolutionDate: strings.TrimSpace(row.Get(ColResolutionDate)),
		})
	}
	return records, nil
}

// Extract checks the schema and returns the outlier records of table.
func Extract(table *Table, threshold float64) ([]CaseRecord, error) {
	if err := table.Require(RequiredColumns...); err != nil {
		return nil, err
	}
	rows, err := Filter(table.Rows, threshold)
	if err != nil {
		return nil, err
	}
	return NewRecords(rows)
}

func totalTime(row Row) (float64, bool, error) {
	raw := strings.TrimSpace(row.Get(ColTotalTime))
	if raw == "" {
		return 0, false, nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, false, &ParseError{Line: row.Line, Err: fmt.Errorf("invalid %s value %q", ColTotalTime, raw)}
	}
	return value, true, nil
}
