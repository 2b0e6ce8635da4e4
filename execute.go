package sqlflow

import (
	"context"
	"fmt"
	"strings"
)

// runQuery executes the validated candidate for real and appends a
// human-readable summary of the outcome to the transcript. Execution errors
// at this point are not retried; the error still flows through answer
// translation so the user sees it in their own language.
func (p *Pipeline) runQuery(ctx context.Context, s *State, session Querier) {
	s.Err = false
	sqlCode := s.Candidate.SQLCode

	if !isSelect(sqlCode) {
		if _, err := session.Exec(ctx, sqlCode); err != nil {
			s.log.Error("SQL execution failed", "error", err)
			s.Err = true
			s.appendAssistant(fmt.Sprintf("Error executing SQL query: %v", err))
			return
		}
		s.log.Info("statement executed")
		s.appendAssistant("Query executed successfully. Changes committed.")
		return
	}

	rows, err := session.Query(ctx, sqlCode)
	if err != nil {
		s.log.Error("SQL execution failed", "error", err)
		s.Err = true
		s.appendAssistant(fmt.Sprintf("Error executing SQL query: %v", err))
		return
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		s.log.Error("SQL execution failed", "error", err)
		s.Err = true
		s.appendAssistant(fmt.Sprintf("Error executing SQL query: %v", err))
		return
	}

	var result [][]any
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			s.log.Error("SQL execution failed", "error", err)
			s.Err = true
			s.appendAssistant(fmt.Sprintf("Error executing SQL query: %v", err))
			return
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		result = append(result, values)
	}
	if err := rows.Err(); err != nil {
		s.log.Error("SQL execution failed", "error", err)
		s.Err = true
		s.appendAssistant(fmt.Sprintf("Error executing SQL query: %v", err))
		return
	}

	s.Columns = columns
	s.Rows = result
	s.log.Info("query executed", "rows", len(result))

	switch {
	case len(result) == 0:
		s.NoRowsFound = true
		s.appendAssistant("No records found for your query.")
	case len(result) == 1 && len(result[0]) == 1:
		s.appendAssistant(fmt.Sprintf("The answer is: %v", result[0][0]))
	default:
		s.appendAssistant(fmt.Sprintf("The result is: %v", formatRows(result)))
	}
}

// isSelect classifies a statement by its leading keyword. Anything that does
// not start with SELECT goes through the exec path.
func isSelect(sqlCode string) bool {
	return strings.HasPrefix(strings.ToUpper(strings.TrimSpace(sqlCode)), "SELECT")
}

// formatRows renders a multi-row result as a flat list of row tuples.
func formatRows(rows [][]any) string {
	parts := make([]string, len(rows))
	for i, row := range rows {
		fields := make([]string, len(row))
		for j, v := range row {
			fields[j] = fmt.Sprintf("%v", v)
		}
		parts[i] = "(" + strings.Join(fields, ", ") + ")"
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
