// Package trackers implements tracking and saving of experiment
// diagnostics
package trackers

import (
	"encoding/gob"
	"log"
	"os"
)

// Tracker tracks named diagnostic scalars produced by an experiment.
// Experiments send each iteration's diagnostics to every registered
// Tracker through Track(); Save() then persists everything tracked so
// far to disk.
type Tracker interface {
	Track(iteration int, scalars map[string]float64)
	Save()
}

// Record is one iteration's worth of tracked diagnostics
type Record struct {
	Iteration int
	Scalars   map[string]float64
}

// Results tracks the per-iteration diagnostic scalars of an experiment
// and saves them as a gob-encoded slice of Records.
type Results struct {
	filename string
	records  []Record
}

// NewResults creates and returns a new *Results Tracker
func NewResults(filename string) Tracker {
	return &Results{filename: filename}
}

// Track caches one iteration's diagnostics. The scalars map is copied
// so that later mutation by the caller cannot change tracked data.
func (r *Results) Track(iteration int, scalars map[string]float64) {
	copied := make(map[string]float64, len(scalars))
	for k, v := range scalars {
		copied[k] = v
	}

	r.records = append(r.records, Record{Iteration: iteration,
		Scalars: copied})
}

// Save saves the data tracked by the Results Tracker to disk
func (r *Results) Save() {
	file, err := os.Create(r.filename)
	if err != nil {
		log.Fatalf("could not open save file: %v", err)
	}
	defer file.Close()

	en := gob.NewEncoder(file)
	if err = en.Encode(r.records); err != nil {
		log.Fatalf("could not encode tracked results: %v", err)
	}
}

// LoadResults reads back the records saved by a Results Tracker
func LoadResults(filename string) []Record {
	file, err := os.Open(filename)
	if err != nil {
		log.Fatalf("could not open results file: %v", err)
	}
	defer file.Close()

	var records []Record
	if err := gob.NewDecoder(file).Decode(&records); err != nil {
		log.Fatalf("could not decode results file: %v", err)
	}
	return records
}
