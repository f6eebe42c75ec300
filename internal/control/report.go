package control

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/vietddude/papersift/internal/core/domain"
	"github.com/vietddude/papersift/internal/infra/credential"
)

// CategoryCount is the number of positive rows tagged with a category.
type CategoryCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Passthrough columns of OpenAlex exports used for the top-cited listing.
const (
	TitleColumn     = "title"
	CitationsColumn = "cited_by_count"
	YearColumn      = "publication_year"
)

// topCitedLimit is how many positive papers the summary lists.
const topCitedLimit = 5

// CitedPaper is a positive row ranked by citations.
type CitedPaper struct {
	RecordID   string `json:"record_id"`
	Title      string `json:"title"`
	Categories string `json:"categories"`
	Confidence string `json:"confidence"`
	Citations  int    `json:"citations"`
	Year       string `json:"year,omitempty"`
}

// Summary aggregates a set of checkpoint rows.
type Summary struct {
	TotalRows  int             `json:"total_rows"`
	Positive   int             `json:"positive"`
	Failed     int             `json:"failed"`
	Categories []CategoryCount `json:"categories"`
	TopCited   []CitedPaper    `json:"top_cited,omitempty"`
}

// Summarize counts positive and failed rows, tallies categories of the
// positive ones, most frequent first, and lists the most cited positives.
// A missing or unparsable citation count ranks as zero.
func Summarize(rows []domain.Row) Summary {
	s := Summary{TotalRows: len(rows)}
	counts := make(map[string]int)
	var cited []CitedPaper

	for _, row := range rows {
		if !row.Succeeded() {
			s.Failed++
			continue
		}
		if !row.IsPositive() {
			continue
		}
		s.Positive++
		for _, c := range row.Categories() {
			counts[c]++
		}
		n, _ := strconv.Atoi(strings.TrimSpace(row.Get(CitationsColumn)))
		cited = append(cited, CitedPaper{
			RecordID:   row.RecordID(),
			Title:      row.Get(TitleColumn),
			Categories: row.Get(domain.ColCategories),
			Confidence: row.Get(domain.ColConfidence),
			Citations:  n,
			Year:       row.Get(YearColumn),
		})
	}

	sort.SliceStable(cited, func(i, j int) bool { return cited[i].Citations > cited[j].Citations })
	if len(cited) > topCitedLimit {
		cited = cited[:topCitedLimit]
	}
	s.TopCited = cited

	s.Categories = make([]CategoryCount, 0, len(counts))
	for name, n := range counts {
		s.Categories = append(s.Categories, CategoryCount{Name: name, Count: n})
	}
	sort.Slice(s.Categories, func(i, j int) bool {
		a, b := s.Categories[i], s.Categories[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Name < b.Name
	})
	return s
}

// PositiveRows returns the rows classified positive.
func PositiveRows(rows []domain.Row) []domain.Row {
	var out []domain.Row
	for _, row := range rows {
		if row.Succeeded() && row.IsPositive() {
			out = append(out, row)
		}
	}
	return out
}

// Report describes one Execute call.
type Report struct {
	Summary

	RunID            string                       `json:"run_id"`
	CheckpointPath   string                       `json:"checkpoint_path"`
	Resumed          bool                         `json:"resumed"`
	ShortCircuited   bool                         `json:"short_circuited"`
	Pending          int                          `json:"pending"`
	SessionProcessed int                          `json:"session_processed"`
	Credentials      []credential.CredentialStats `json:"credentials,omitempty"`
	Elapsed          time.Duration                `json:"elapsed"`
	PositivePath     string                       `json:"positive_path,omitempty"`
}

// Remaining is the number of pending records this call did not finish.
func (r *Report) Remaining() int {
	return r.Pending - r.SessionProcessed
}

// AvgPerRecord is the wall time per record processed in this call.
func (r *Report) AvgPerRecord() time.Duration {
	if r.SessionProcessed == 0 {
		return 0
	}
	return r.Elapsed / time.Duration(r.SessionProcessed)
}
