package automatic

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"
)

var ErrBadLog = errors.New("not a trial log")

// AnalyzeLog summarizes a trial log as written by RunTrials.
func AnalyzeLog(r io.Reader) (Summary, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(LogHeader)

	var acc accumulator
	line := 0
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Summary{}, fmt.Errorf("%w: %v", ErrBadLog, err)
		}
		line++
		if record[0] == LogHeader[0] {
			// header line
			continue
		}
		res, err := parseRecord(record)
		if err != nil {
			return Summary{}, fmt.Errorf("%w: line %d: %v", ErrBadLog, line, err)
		}
		acc.push(res)
	}
	return acc.summary(""), nil
}

func parseRecord(record []string) (TrialResult, error) {
	res := TrialResult{GameID: record[0]}
	seed, err := parseSeed(record[1])
	if err != nil {
		return res, err
	}
	res.Seed = seed[:]
	ints := make([]int, 4)
	for i := range ints {
		if ints[i], err = strconv.Atoi(record[i+2]); err != nil {
			return res, err
		}
	}
	res.Turns, res.Hits, res.Misses = ints[0], ints[1], ints[2]
	res.Elapsed = time.Duration(ints[3]) * time.Millisecond
	if res.Turns != res.Hits+res.Misses {
		return res, fmt.Errorf("%d turns but %d hits and %d misses", res.Turns, res.Hits, res.Misses)
	}
	return res, nil
}

// AnalyzeLogFile summarizes the trial log at path.
func AnalyzeLogFile(path string) (Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		return Summary{}, err
	}
	defer f.Close()
	return AnalyzeLog(f)
}
