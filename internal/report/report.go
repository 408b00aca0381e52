// Package report persists per-image outcomes as CSV for human review and
// for the folder-organization step, and renders a run summary table.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
)

// Row is one image's outcome in the records report.
type Row struct {
	Owner               string
	Filename            string
	URI                 string
	Status              string
	Confidence          string
	Method              string
	ReleaseID           int
	URL                 string
	CandidateSource     string
	HasServiceCandidate bool
	Candidate1          string
	Candidate2          string
	Candidate3          string
	ArtistHint          string
	AlbumHint           string
	BestGuess           string
	ErrorMessage        string
	AlreadyInCollection bool
	Reason              string
}

var header = []string{
	"owner", "filename", "uri", "status", "confidence", "method",
	"release_id", "release_url", "candidate_source", "has_service_candidate",
	"candidate_1", "candidate_2", "candidate_3",
	"artist_hint", "album_hint", "best_guess",
	"error", "already_in_collection", "reason",
}

func (r Row) record() []string {
	return []string{
		r.Owner, r.Filename, r.URI, r.Status, r.Confidence, r.Method,
		strconv.Itoa(r.ReleaseID), r.URL, r.CandidateSource, strconv.FormatBool(r.HasServiceCandidate),
		r.Candidate1, r.Candidate2, r.Candidate3,
		r.ArtistHint, r.AlbumHint, r.BestGuess,
		r.ErrorMessage, strconv.FormatBool(r.AlreadyInCollection), r.Reason,
	}
}

// WriteRecords writes the full records report to path.
func WriteRecords(path string, rows []Row) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write report header: %w", err)
	}
	for _, row := range rows {
		if err := w.Write(row.record()); err != nil {
			return fmt.Errorf("write report row for %s: %w", row.Filename, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush report %s: %w", path, err)
	}
	return nil
}

// ReadRecords reads a previously written records report back. Rows with a
// malformed release id keep a zero id rather than failing the read.
func ReadRecords(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open report %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = len(header)

	var rows []Row
	first := true
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read report %s: %w", path, err)
		}
		if first {
			first = false
			if record[0] == header[0] {
				continue
			}
		}
		releaseID, _ := strconv.Atoi(record[6])
		rows = append(rows, Row{
			Owner:               record[0],
			Filename:            record[1],
			URI:                 record[2],
			Status:              record[3],
			Confidence:          record[4],
			Method:              record[5],
			ReleaseID:           releaseID,
			URL:                 record[7],
			CandidateSource:     record[8],
			HasServiceCandidate: record[9] == "true",
			Candidate1:          record[10],
			Candidate2:          record[11],
			Candidate3:          record[12],
			ArtistHint:          record[13],
			AlbumHint:           record[14],
			BestGuess:           record[15],
			ErrorMessage:        record[16],
			AlreadyInCollection: record[17] == "true",
			Reason:              record[18],
		})
	}
	return rows, nil
}
