// Package roster loads and searches the student master sheet.
package roster

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
)

// Required column headers, matched exactly.
const (
	colID    = "Student ID"
	colName  = "Full Name"
	colGrade = "Grade"
	colEmail = "Email Address"
)

// Student is one roster row. ID and Name are always non-empty; rows missing
// either are dropped at load time.
type Student struct {
	ID    string
	Name  string
	Grade string
	Email string
}

// Roster holds the loaded sheet in file order.
type Roster struct {
	Students  []Student
	Delimiter rune
}

// Load reads a roster from path. The sheet is comma-separated by default and
// treated as TSV only when a sample of the file is very clearly tab-heavy.
// A UTF-8 BOM is tolerated.
func Load(path string) (*Roster, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}

// Read parses a roster from r.
func Read(r io.Reader) (*Roster, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read roster: %w", err)
	}
	data = []byte(strings.TrimPrefix(string(data), "\ufeff"))

	delim := detectDelimiter(sample(data, 4096))

	cr := csv.NewReader(strings.NewReader(string(data)))
	cr.Comma = delim
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("roster is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("read roster header: %w", err)
	}

	idx := map[string]int{}
	for i, h := range header {
		idx[strings.TrimSpace(h)] = i
	}
	var missing []string
	for _, col := range []string{colID, colName, colGrade, colEmail} {
		if _, ok := idx[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required headers: %s (expected %q, %q, %q, %q)",
			strings.Join(missing, ", "), colID, colName, colGrade, colEmail)
	}

	ros := &Roster{Delimiter: delim}
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read roster row: %w", err)
		}
		s := Student{
			ID:    field(rec, idx[colID]),
			Name:  field(rec, idx[colName]),
			Grade: field(rec, idx[colGrade]),
			Email: field(rec, idx[colEmail]),
		}
		if s.ID == "" || s.Name == "" {
			continue
		}
		ros.Students = append(ros.Students, s)
	}
	return ros, nil
}

// Search filters the roster. A query made of digits and dashes matches
// against ids with dashes ignored; anything else is a case-insensitive
// substring match on name or id. An empty query returns every student.
func (r *Roster) Search(query string) []Student {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return append([]Student(nil), r.Students...)
	}

	qDigits := isDigitsIgnoringDashes(q)
	qBare := strings.ReplaceAll(q, "-", "")

	var out []Student
	for _, s := range r.Students {
		id := strings.ToLower(s.ID)
		name := strings.ToLower(s.Name)
		if qDigits {
			if strings.Contains(strings.ReplaceAll(id, "-", ""), qBare) {
				out = append(out, s)
			}
			continue
		}
		if strings.Contains(name, q) || strings.Contains(id, q) {
			out = append(out, s)
		}
	}
	return out
}

// Len reports how many students loaded.
func (r *Roster) Len() int { return len(r.Students) }

// detectDelimiter prefers comma and falls back to tab only when the sample
// is unambiguously TSV.
func detectDelimiter(sample string) rune {
	comma := strings.Count(sample, ",")
	tab := strings.Count(sample, "\t")
	if tab > comma*2 && tab > 3 {
		return '\t'
	}
	return ','
}

func sample(data []byte, n int) string {
	if len(data) > n {
		data = data[:n]
	}
	return string(data)
}

func field(rec []string, i int) string {
	if i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

func isDigitsIgnoringDashes(s string) bool {
	bare := strings.ReplaceAll(s, "-", "")
	if bare == "" {
		return false
	}
	for _, c := range bare {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
