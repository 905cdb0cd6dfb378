package output

import (
	"encoding/json"
	"io"
)

// JSONRenderer produces machine-readable JSON output.
type JSONRenderer struct {
	w io.Writer
}

type jsonSummary struct {
	RunID          string              `json:"run_id"`
	Mode           string              `json:"mode"`
	Server         string              `json:"server,omitempty"`
	Version        string              `json:"mysql_version,omitempty"`
	Topology       string              `json:"topology,omitempty"`
	Warnings       []string            `json:"warnings,omitempty"`
	BulkTable      bool                `json:"bulk_table"`
	Printed        int                 `json:"printed"`
	Executed       int                 `json:"executed"`
	DurationMS     int64               `json:"duration_ms"`
	Status         string              `json:"status"`
	Error          string              `json:"error,omitempty"`
	Stages         []jsonStage         `json:"stages"`
	Operations     map[string]int      `json:"operations,omitempty"`
	ProblemColumns []jsonProblemColumn `json:"problem_columns,omitempty"`
}

type jsonStage struct {
	Name       string `json:"name"`
	Rows       int    `json:"rows"`
	Statements int    `json:"statements"`
	ElapsedMS  int64  `json:"elapsed_ms"`
}

type jsonProblemColumn struct {
	Database     string `json:"database"`
	Table        string `json:"table"`
	Column       string `json:"column"`
	Index        string `json:"index"`
	IndexType    string `json:"index_type"`
	DataType     string `json:"data_type"`
	PrefixLength int64  `json:"prefix_length"`
}

func (r *JSONRenderer) RenderSummary(s Summary) {
	rep := s.Report
	if rep == nil {
		return
	}

	out := jsonSummary{
		RunID:      rep.RunID,
		Mode:       mode(rep),
		Server:     s.Addr,
		BulkTable:  rep.BulkTable,
		Printed:    rep.Printed,
		Executed:   rep.Executed,
		DurationMS: rep.Duration.Milliseconds(),
		Status:     status(s.Err),
		Stages:     []jsonStage{},
	}
	if s.Server != nil {
		out.Version = s.Server.Version.String()
	}
	if s.Topology != nil {
		out.Topology = string(s.Topology.Type)
		out.Warnings = s.Topology.Warnings()
	}
	if s.Err != nil {
		out.Error = s.Err.Error()
	}

	for _, st := range rep.Stages {
		out.Stages = append(out.Stages, jsonStage{
			Name:       st.Name,
			Rows:       st.Rows,
			Statements: st.Statements,
			ElapsedMS:  st.Elapsed.Milliseconds(),
		})
	}
	if len(rep.Operations) > 0 {
		out.Operations = make(map[string]int, len(rep.Operations))
		for op, n := range rep.Operations {
			out.Operations[string(op)] = n
		}
	}
	for _, p := range rep.ProblemColumns {
		out.ProblemColumns = append(out.ProblemColumns, jsonProblemColumn{
			Database:     p.Schema,
			Table:        p.Table,
			Column:       p.Column,
			Index:        p.IndexName,
			IndexType:    p.IndexType,
			DataType:     p.DataType,
			PrefixLength: p.PrefixLength(),
		})
	}

	enc := json.NewEncoder(r.w)
	enc.SetIndent("", "  ")
	enc.Encode(out)
}
